package training

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mhclab/epibind/checkpoints"
	"github.com/mhclab/epibind/tensor"
)

// Config holds configuration for a training run
type Config struct {
	Epochs         int
	Patience       int         // Epochs without val-loss improvement before stopping (0 = never stop early)
	Regularize     bool        // Apply the model's Regularizer hook to the loss, if it has one
	CheckpointStem string      // Path stem for checkpoint files; also the tag in epoch log lines
	Scheduler      LRScheduler // Optional; nil keeps the optimizer's learning rate fixed
	BaseLR         float64     // Floor learning rate handed to the scheduler
	SnapshotAfter  int         // First epoch eligible for a numbered snapshot
	SnapshotEvery  int         // Epoch interval between numbered snapshots
}

// EpochMetrics holds metrics for a single epoch
type EpochMetrics struct {
	Epoch         int
	TrainLoss     float64
	TrainAccuracy float64
	ValidLoss     float64
	ValidAccuracy float64
	Duration      time.Duration
}

// Trainer manages the training process: the epoch loop, validation,
// checkpointing, and early stopping.
type Trainer struct {
	model      Model
	optimizer  Optimizer
	criterion  Loss
	config     Config
	log        *zap.SugaredLogger
	saver      *checkpoints.Saver
	metrics    []EpochMetrics
	globalStep int
}

// NewTrainer creates a new Trainer
func NewTrainer(model Model, optimizer Optimizer, criterion Loss, config Config, log *zap.SugaredLogger) *Trainer {
	if config.SnapshotAfter <= 0 {
		config.SnapshotAfter = 30
	}
	if config.SnapshotEvery <= 0 {
		config.SnapshotEvery = 5
	}
	return &Trainer{
		model:     model,
		optimizer: optimizer,
		criterion: criterion,
		config:    config,
		log:       log,
		saver:     checkpoints.NewSaver(),
		metrics:   make([]EpochMetrics, 0, config.Epochs),
	}
}

// Train runs the complete training loop. The model with the lowest
// validation loss seen so far is kept at the stem's best path; numbered
// snapshots are written on the configured interval.
func (t *Trainer) Train(trainLoader, validLoader *DataLoader) error {
	bestValidLoss := math.Inf(1)
	patienceCounter := 0

	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		epochStart := time.Now()

		t.model.Train()
		trainLoss, trainAcc, err := t.trainEpoch(trainLoader, epoch)
		if err != nil {
			return fmt.Errorf("training epoch %d failed: %v", epoch+1, err)
		}

		t.model.Eval()
		validLoss, validAcc, err := t.validateEpoch(validLoader)
		if err != nil {
			return fmt.Errorf("validation epoch %d failed: %v", epoch+1, err)
		}

		duration := time.Since(epochStart)
		t.metrics = append(t.metrics, EpochMetrics{
			Epoch:         epoch + 1,
			TrainLoss:     trainLoss,
			TrainAccuracy: trainAcc,
			ValidLoss:     validLoss,
			ValidAccuracy: validAcc,
			Duration:      duration,
		})

		t.log.Infof("[%s]-[Epoch %03d/%03d] - Time: %d s, Train Acc: %.5f, Val Acc: %.5f, Train Loss: %.5f, Val Loss: %.5f",
			t.config.CheckpointStem, epoch+1, t.config.Epochs, int(duration.Seconds()),
			trainAcc, validAcc, trainLoss, validLoss)

		if validLoss < bestValidLoss {
			bestValidLoss = validLoss
			patienceCounter = 0
			path := checkpoints.BestPath(t.config.CheckpointStem)
			if err := t.saveCheckpoint(path, epoch+1, bestValidLoss); err != nil {
				return fmt.Errorf("failed to save best checkpoint at epoch %d: %v", epoch+1, err)
			}
			t.log.Infof("Best model updated at epoch %d", epoch+1)
		} else if t.config.Patience > 0 {
			patienceCounter++
		}

		// The best-loss comparison runs first so a snapshot taken on an
		// improving epoch records the updated value.
		if epoch+1 >= t.config.SnapshotAfter && (epoch+1)%t.config.SnapshotEvery == 0 {
			path := checkpoints.EpochPath(t.config.CheckpointStem, epoch+1)
			if err := t.saveCheckpoint(path, epoch+1, bestValidLoss); err != nil {
				return fmt.Errorf("failed to save snapshot at epoch %d: %v", epoch+1, err)
			}
		}

		if t.config.Patience > 0 && patienceCounter >= t.config.Patience {
			t.log.Infof("Early stopping at epoch %d: no improvement for %d epochs", epoch+1, patienceCounter)
			break
		}
	}

	return nil
}

// trainEpoch runs one pass over the training loader. Loss is averaged over
// batches, accuracy over samples.
func (t *Trainer) trainEpoch(trainLoader *DataLoader, epoch int) (float64, float64, error) {
	var lossSum float64
	var correct, total, batchCount int

	// An early error return abandons the iterator; Stop unblocks its workers.
	defer trainLoader.Stop()
	for batch := range trainLoader.Iterator() {
		t.optimizer.ZeroGrad()

		output, err := t.model.Forward(batch.Inputs)
		if err != nil {
			return 0, 0, fmt.Errorf("forward pass failed: %v", err)
		}

		loss, err := t.criterion.Forward(output, batch.Labels)
		if err != nil {
			return 0, 0, fmt.Errorf("loss computation failed: %v", err)
		}

		if t.config.Regularize {
			if reg, ok := t.model.(Regularizer); ok {
				loss, err = reg.Regularize(loss)
				if err != nil {
					return 0, 0, fmt.Errorf("regularization failed: %v", err)
				}
			}
		}

		lossValue, err := loss.Item()
		if err != nil {
			return 0, 0, fmt.Errorf("loss is not scalar: %v", err)
		}

		if err := loss.Backward(); err != nil {
			return 0, 0, fmt.Errorf("backward pass failed: %v", err)
		}

		if t.config.Scheduler != nil {
			t.optimizer.SetLR(t.config.Scheduler.GetLR(epoch, t.globalStep, t.config.BaseLR))
		}
		if err := t.optimizer.Step(); err != nil {
			return 0, 0, fmt.Errorf("optimizer step failed: %v", err)
		}
		t.globalStep++

		c, n, err := countCorrect(output, batch.Labels)
		if err != nil {
			return 0, 0, err
		}
		correct += c
		total += n
		lossSum += lossValue
		batchCount++
	}
	if err := trainLoader.Err(); err != nil {
		return 0, 0, fmt.Errorf("data loading failed: %v", err)
	}
	if batchCount == 0 {
		return 0, 0, fmt.Errorf("training loader produced no batches")
	}

	return lossSum / float64(batchCount), float64(correct) / float64(total), nil
}

// validateEpoch runs one gradient-free pass over the validation loader
func (t *Trainer) validateEpoch(validLoader *DataLoader) (float64, float64, error) {
	var lossSum float64
	var correct, total, batchCount int

	defer validLoader.Stop()
	for batch := range validLoader.Iterator() {
		output, err := t.model.Forward(batch.Inputs)
		if err != nil {
			return 0, 0, fmt.Errorf("forward pass failed: %v", err)
		}

		loss, err := t.criterion.Forward(output, batch.Labels)
		if err != nil {
			return 0, 0, fmt.Errorf("loss computation failed: %v", err)
		}
		lossValue, err := loss.Item()
		if err != nil {
			return 0, 0, fmt.Errorf("loss is not scalar: %v", err)
		}

		c, n, err := countCorrect(output, batch.Labels)
		if err != nil {
			return 0, 0, err
		}
		correct += c
		total += n
		lossSum += lossValue
		batchCount++
	}
	if err := validLoader.Err(); err != nil {
		return 0, 0, fmt.Errorf("data loading failed: %v", err)
	}
	if batchCount == 0 {
		return 0, 0, fmt.Errorf("validation loader produced no batches")
	}

	return lossSum / float64(batchCount), float64(correct) / float64(total), nil
}

// countCorrect thresholds raw model outputs at 0.5 and counts agreements
// with the binary labels.
func countCorrect(output, target *tensor.Tensor) (int, int, error) {
	if output.NumElems != target.NumElems {
		return 0, 0, fmt.Errorf("output has %d elements, target has %d", output.NumElems, target.NumElems)
	}
	out := output.Data.([]float32)
	lab := target.Data.([]float32)

	correct := 0
	for i := range out {
		var pred float32
		if out[i] > 0.5 {
			pred = 1
		}
		if pred == lab[i] {
			correct++
		}
	}
	return correct, len(out), nil
}

// saveCheckpoint serializes the model parameters and current progress
func (t *Trainer) saveCheckpoint(path string, epoch int, bestLoss float64) error {
	ckpt, err := checkpoints.FromParameters(t.model.Parameters(), checkpoints.TrainingState{
		Epoch:      epoch,
		GlobalStep: t.globalStep,
		BestLoss:   bestLoss,
	})
	if err != nil {
		return err
	}
	return t.saver.Save(ckpt, path)
}

// GetMetrics returns the per-epoch metrics accumulated so far
func (t *Trainer) GetMetrics() []EpochMetrics {
	return t.metrics
}
