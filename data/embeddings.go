package data

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Store holds precomputed sequence embeddings. Vectors live in a single
// dense matrix, one row per key, so lookups are row views without copies.
type Store struct {
	rows map[string]int
	vecs *mat.Dense
	dim  int
}

// NewStore loads a JSON table of key -> embedding vector from path. Every
// vector must have the same dimension.
func NewStore(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read embedding file %s", path)
	}

	var table map[string][]float64
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, errors.Wrapf(err, "failed to parse embedding file %s", path)
	}
	if len(table) == 0 {
		return nil, errors.Errorf("embedding file %s contains no vectors", path)
	}

	dim := -1
	for key, vec := range table {
		if dim == -1 {
			dim = len(vec)
			if dim == 0 {
				return nil, errors.Errorf("embedding for %q is empty", key)
			}
			continue
		}
		if len(vec) != dim {
			return nil, errors.Errorf("embedding for %q has dimension %d, expected %d", key, len(vec), dim)
		}
	}

	vecs := mat.NewDense(len(table), dim, nil)
	rows := make(map[string]int, len(table))
	i := 0
	for key, vec := range table {
		vecs.SetRow(i, vec)
		rows[key] = i
		i++
	}

	return &Store{rows: rows, vecs: vecs, dim: dim}, nil
}

// Dim returns the embedding dimension
func (s *Store) Dim() int {
	return s.dim
}

// Len returns the number of stored embeddings
func (s *Store) Len() int {
	return len(s.rows)
}

// Lookup returns the embedding vector for a key. The returned slice aliases
// the store's backing matrix and must not be modified.
func (s *Store) Lookup(key string) ([]float64, error) {
	row, ok := s.rows[key]
	if !ok {
		return nil, errors.Errorf("no embedding for key %q", key)
	}
	return s.vecs.RawRowView(row), nil
}
