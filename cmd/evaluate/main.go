// Command evaluate scores a trained binding classifier on the test set and
// renders ROC and precision-recall curves.
package main

import (
	"os"

	"github.com/alexflint/go-arg"
	"github.com/pkg/errors"

	"github.com/mhclab/epibind/checkpoints"
	"github.com/mhclab/epibind/config"
	"github.com/mhclab/epibind/data"
	"github.com/mhclab/epibind/evaluation"
	"github.com/mhclab/epibind/registry"
	"github.com/mhclab/epibind/run"
	"github.com/mhclab/epibind/training"
)

type args struct {
	ConfigPath string `arg:"positional,required" help:"path to the run config YAML"`
}

func (args) Description() string {
	return "Evaluate a trained HLA-epitope binding classifier on its test set."
}

func sampleColumns(c config.SampleColumns) data.SampleColumns {
	return data.SampleColumns{
		EpitopeHeader: c.EpiHeader,
		HLAHeader:     c.HLAHeader,
		TargetHeader:  c.TgtHeader,
		Separator:     c.Separator,
	}
}

func alleleColumns(c config.AlleleColumns) data.AlleleColumns {
	return data.AlleleColumns{
		NameHeader:     c.HLAHeader,
		SequenceHeader: c.SeqHeader,
		Separator:      c.Separator,
	}
}

// score runs inference over every sample of the provider and builds both
// curves for it.
func score(cfg *config.Config, model training.Model, provider *data.Provider, alleles *data.AlleleTable) (*evaluation.Curve, *evaluation.Curve, error) {
	dataset, err := registry.BuildEncoder(cfg.Encoder.Name, provider, alleles, cfg.Encoder.Args)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to build encoder")
	}
	loader, err := training.NewDataLoader(dataset, cfg.Test.BatchSize, false, cfg.Data.NumWorkers, cfg.Seed)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to build loader")
	}

	scores, err := evaluation.Predict(model, loader)
	if err != nil {
		return nil, nil, err
	}
	labels := provider.Labels()

	roc, err := evaluation.ROCCurve(scores, labels)
	if err != nil {
		return nil, nil, err
	}
	pr, err := evaluation.PRCurve(scores, labels)
	if err != nil {
		return nil, nil, err
	}
	return roc, pr, nil
}

func main() {
	var a args
	arg.MustParse(&a)

	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	ctx, err := run.New(cfg.Seed, cfg.LogFile)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer ctx.Close()
	log := ctx.Log

	model, err := registry.BuildModel(cfg.Model.Name, cfg.Model.Args, ctx.RNG)
	if err != nil {
		log.Fatalf("failed to build model: %v", err)
	}

	ckptPath := checkpoints.PrefixPath(cfg.CheckpointStem(), cfg.Test.ChkpPrefix)
	ckpt, err := checkpoints.NewSaver().Load(ckptPath)
	if err != nil {
		log.Fatalf("failed to load checkpoint: %v", err)
	}
	if err := ckpt.Apply(model.Parameters()); err != nil {
		log.Fatalf("checkpoint %s does not match the model: %v", ckptPath, err)
	}
	log.Infof("Loaded model weights from %s", ckptPath)

	testCols := sampleColumns(cfg.Data.TestArgs)
	provider, err := data.NewProvider(cfg.Data.TestPath, testCols)
	if err != nil {
		log.Fatalf("failed to load test samples: %v", err)
	}
	log.Infof("Samples in test set: %d", provider.Len())

	alleles, err := data.NewAlleleTable(cfg.Data.HLAPath, alleleColumns(cfg.Data.HLAArgs))
	if err != nil {
		log.Fatalf("failed to load allele table: %v", err)
	}

	reporter, err := evaluation.NewReporter(cfg.PlotPath)
	if err != nil {
		log.Fatalf("failed to prepare plot directory: %v", err)
	}

	roc, pr, err := score(cfg, model, provider, alleles)
	if err != nil {
		log.Fatalf("evaluation failed: %v", err)
	}
	if err := reporter.WriteROC(cfg.ChkpName, evaluation.Series{Name: "ROC curve", Curve: roc}); err != nil {
		log.Fatalf("failed to write ROC plot: %v", err)
	}
	if err := reporter.WritePR(cfg.ChkpName, evaluation.Series{Name: "PR curve", Curve: pr}); err != nil {
		log.Fatalf("failed to write PR plot: %v", err)
	}
	log.Infof("Global curves written (ROC AUC = %.3f, PR AUC = %.3f)", roc.AUC, pr.AUC)

	// Per-allele overlays for the ten most frequent alleles. Alleles whose
	// test subset is empty or single-class are logged and skipped.
	var rocSeries, prSeries []evaluation.Series
	for _, hla := range provider.TopHLAs(10) {
		sub, err := data.NewProvider(cfg.Data.TestPath, testCols, data.WithAllele(hla))
		if err != nil {
			log.Fatalf("failed to load samples for %s: %v", hla, err)
		}
		log.Infof("Samples in test set for %s: %d", hla, sub.Len())
		if sub.Len() == 0 {
			log.Infof("Skipping %s: no test samples", hla)
			continue
		}

		subROC, subPR, err := score(cfg, model, sub, alleles)
		if errors.Is(err, evaluation.ErrDegenerate) {
			log.Infof("Skipping %s: %v", hla, err)
			continue
		}
		if err != nil {
			log.Fatalf("evaluation failed for %s: %v", hla, err)
		}
		rocSeries = append(rocSeries, evaluation.Series{Name: hla, Curve: subROC})
		prSeries = append(prSeries, evaluation.Series{Name: hla, Curve: subPR})
	}

	if len(rocSeries) > 0 {
		if err := reporter.WriteAlleleROC(cfg.ChkpName, rocSeries...); err != nil {
			log.Fatalf("failed to write per-allele ROC plot: %v", err)
		}
		if err := reporter.WriteAllelePR(cfg.ChkpName, prSeries...); err != nil {
			log.Fatalf("failed to write per-allele PR plot: %v", err)
		}
	}
}
