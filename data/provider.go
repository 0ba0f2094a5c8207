package data

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// Sample is one epitope/allele pair with its binding label.
type Sample struct {
	Epitope string
	HLA     string
	Label   float64
}

// SampleColumns maps the columns of an epitope CSV file. Header names are
// matched exactly; Separator defaults to comma.
type SampleColumns struct {
	EpitopeHeader string
	HLAHeader     string
	TargetHeader  string
	Separator     string
}

// AlleleColumns maps the columns of an HLA sequence CSV file.
type AlleleColumns struct {
	NameHeader     string
	SequenceHeader string
	Separator      string
}

func separatorRune(sep string) (rune, error) {
	if sep == "" {
		return ',', nil
	}
	runes := []rune(sep)
	if len(runes) != 1 {
		return 0, errors.Errorf("separator must be a single character, got %q", sep)
	}
	return runes[0], nil
}

func readCSV(path string, sep string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	comma, err := separatorRune(sep)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(f)
	reader.Comma = comma
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	if len(records) == 0 {
		return nil, errors.Errorf("%s is empty", path)
	}
	return records, nil
}

func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		if h == name {
			return i, nil
		}
	}
	return 0, errors.Errorf("column %q not found in header %v", name, header)
}

// Option configures a Provider at construction time.
type Option func(*providerOptions)

type providerOptions struct {
	allele string
}

// WithAllele restricts the provider to samples of a single HLA allele.
func WithAllele(name string) Option {
	return func(o *providerOptions) {
		o.allele = name
	}
}

// Provider holds an immutable, indexable collection of binding samples read
// from an epitope CSV file.
type Provider struct {
	samples []Sample
}

// NewProvider reads the sample file at path using the given column mapping.
func NewProvider(path string, cols SampleColumns, opts ...Option) (*Provider, error) {
	var options providerOptions
	for _, opt := range opts {
		opt(&options)
	}

	records, err := readCSV(path, cols.Separator)
	if err != nil {
		return nil, err
	}

	header := records[0]
	epiIdx, err := columnIndex(header, cols.EpitopeHeader)
	if err != nil {
		return nil, err
	}
	hlaIdx, err := columnIndex(header, cols.HLAHeader)
	if err != nil {
		return nil, err
	}
	tgtIdx, err := columnIndex(header, cols.TargetHeader)
	if err != nil {
		return nil, err
	}

	samples := make([]Sample, 0, len(records)-1)
	for line, rec := range records[1:] {
		label, err := strconv.ParseFloat(rec[tgtIdx], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid label on line %d of %s", line+2, path)
		}
		s := Sample{
			Epitope: rec[epiIdx],
			HLA:     rec[hlaIdx],
			Label:   label,
		}
		if options.allele != "" && s.HLA != options.allele {
			continue
		}
		samples = append(samples, s)
	}

	return &Provider{samples: samples}, nil
}

// Len returns the number of samples
func (p *Provider) Len() int {
	return len(p.samples)
}

// Sample returns the sample at index i
func (p *Provider) Sample(i int) (Sample, error) {
	if i < 0 || i >= len(p.samples) {
		return Sample{}, errors.Errorf("sample index %d out of range [0, %d)", i, len(p.samples))
	}
	return p.samples[i], nil
}

// Labels returns the label of every sample, in sample order.
func (p *Provider) Labels() []float64 {
	labels := make([]float64, len(p.samples))
	for i, s := range p.samples {
		labels[i] = s.Label
	}
	return labels
}

// TopHLAs returns the n most frequent alleles, most frequent first. Ties
// break alphabetically so the list is stable across runs.
func (p *Provider) TopHLAs(n int) []string {
	counts := make(map[string]int)
	for _, s := range p.samples {
		counts[s.HLA]++
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	if n > len(names) {
		n = len(names)
	}
	return names[:n]
}

// AlleleTable maps HLA allele names to their amino acid sequences.
type AlleleTable struct {
	sequences map[string]string
}

// NewAlleleTable reads the allele sequence file at path.
func NewAlleleTable(path string, cols AlleleColumns) (*AlleleTable, error) {
	records, err := readCSV(path, cols.Separator)
	if err != nil {
		return nil, err
	}

	header := records[0]
	nameIdx, err := columnIndex(header, cols.NameHeader)
	if err != nil {
		return nil, err
	}
	seqIdx, err := columnIndex(header, cols.SequenceHeader)
	if err != nil {
		return nil, err
	}

	sequences := make(map[string]string, len(records)-1)
	for _, rec := range records[1:] {
		sequences[rec[nameIdx]] = rec[seqIdx]
	}

	return &AlleleTable{sequences: sequences}, nil
}

// Sequence returns the sequence for an allele name and whether it is known
func (t *AlleleTable) Sequence(name string) (string, bool) {
	seq, ok := t.sequences[name]
	return seq, ok
}

// Len returns the number of alleles in the table
func (t *AlleleTable) Len() int {
	return len(t.sequences)
}
