// Command train fits a binding classifier from a YAML run config.
package main

import (
	"os"

	"github.com/alexflint/go-arg"

	"github.com/mhclab/epibind/checkpoints"
	"github.com/mhclab/epibind/config"
	"github.com/mhclab/epibind/data"
	"github.com/mhclab/epibind/registry"
	"github.com/mhclab/epibind/run"
	"github.com/mhclab/epibind/training"
)

type args struct {
	ConfigPath string `arg:"positional,required" help:"path to the run config YAML"`
}

func (args) Description() string {
	return "Train an HLA-epitope binding classifier from a config file."
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

	provider, err := data.NewProvider(cfg.Data.EpiPath, sampleColumns(cfg.Data.EpiArgs))
	if err != nil {
		log.Fatalf("failed to load samples: %v", err)
	}
	log.Infof("Total samples: %d", provider.Len())

	trainIdx, valIdx, err := data.StratifiedSplit(provider.Labels(), cfg.Data.ValSize, ctx.RNG)
	if err != nil {
		log.Fatalf("failed to split samples: %v", err)
	}

	alleles, err := data.NewAlleleTable(cfg.Data.HLAPath, alleleColumns(cfg.Data.HLAArgs))
	if err != nil {
		log.Fatalf("failed to load allele table: %v", err)
	}

	dataset, err := registry.BuildEncoder(cfg.Encoder.Name, provider, alleles, cfg.Encoder.Args)
	if err != nil {
		log.Fatalf("failed to build encoder: %v", err)
	}

	trainSet, err := training.NewSubset(dataset, trainIdx)
	if err != nil {
		log.Fatalf("failed to build train subset: %v", err)
	}
	valSet, err := training.NewSubset(dataset, valIdx)
	if err != nil {
		log.Fatalf("failed to build validation subset: %v", err)
	}
	log.Infof("Samples in train set: %d", trainSet.Len())
	log.Infof("Samples in validation set: %d", valSet.Len())

	trainLoader, err := training.NewDataLoader(trainSet, cfg.Train.BatchSize, true, cfg.Data.NumWorkers, cfg.Seed)
	if err != nil {
		log.Fatalf("failed to build train loader: %v", err)
	}
	valLoader, err := training.NewDataLoader(valSet, cfg.Train.BatchSize, false, cfg.Data.NumWorkers, cfg.Seed)
	if err != nil {
		log.Fatalf("failed to build validation loader: %v", err)
	}

	model, err := registry.BuildModel(cfg.Model.Name, cfg.Model.Args, ctx.RNG)
	if err != nil {
		log.Fatalf("failed to build model: %v", err)
	}

	// Transfer learning degrades gracefully: a missing or unreadable
	// checkpoint logs and trains from scratch.
	if cfg.Train.Transfer {
		path := checkpoints.PrefixPath(cfg.CheckpointStem(), cfg.Train.ChkpPrefix)
		ckpt, err := checkpoints.NewSaver().Load(path)
		if err != nil {
			log.Infof("Checkpoint %s is invalid or does not exist. Starting training from scratch.", path)
		} else if err := ckpt.Apply(model.Parameters()); err != nil {
			log.Fatalf("checkpoint %s does not match the model: %v", path, err)
		} else {
			log.Infof("Loaded model weights from %s", path)
		}
	}

	criterion, err := registry.Criterion(cfg.Train.Criterion)
	if err != nil {
		log.Fatalf("failed to build criterion: %v", err)
	}
	optimizer, err := registry.Optimizer(cfg.Train.Optimizer, model.Parameters(), cfg.Train.OptimizerArgs)
	if err != nil {
		log.Fatalf("failed to build optimizer: %v", err)
	}

	var scheduler training.LRScheduler
	baseLR := 0.0
	if cfg.Train.UseScheduler {
		totalSteps := cfg.Train.NumEpochs * trainLoader.Len()
		cycle := totalSteps / 10
		warmup := cycle / 10
		if cycle < 1 {
			log.Fatalf("too few training steps (%d) for the warm-restart schedule", totalSteps)
		}
		scheduler = training.NewCosineAnnealingWarmRestarts(cycle, 1, warmup, 0.1, 0.8)
		// The schedule owns the learning rate, so the configured optimizer
		// is replaced by Adam starting at zero.
		optimizer = training.NewAdam(model.Parameters(), 0, 0.9, 0.999, 1e-8, 0)
		log.Infof("Scheduling with cycle length %d and warmup steps %d", cycle, warmup)
		log.Infof("Optimizer is changed to Adam with lr=0 due to scheduler.")
	}

	trainer := training.NewTrainer(model, optimizer, criterion, training.Config{
		Epochs:         cfg.Train.NumEpochs,
		Patience:       cfg.Train.Patience,
		Regularize:     cfg.Train.Regularize,
		CheckpointStem: cfg.CheckpointStem(),
		Scheduler:      scheduler,
		BaseLR:         baseLR,
	}, log)

	if err := trainer.Train(trainLoader, valLoader); err != nil {
		log.Fatalf("training failed: %v", err)
	}
}
