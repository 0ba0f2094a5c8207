package training

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/mhclab/epibind/checkpoints"
	"github.com/mhclab/epibind/tensor"
)

// linearModel adapts a single Linear layer to the multi-input Model
// interface for trainer tests.
type linearModel struct {
	layer *Linear
}

func newLinearModel(t *testing.T, in int) *linearModel {
	t.Helper()
	layer, err := NewLinear(in, 1, true, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("NewLinear failed: %v", err)
	}
	return &linearModel{layer: layer}
}

func (m *linearModel) Forward(inputs []*tensor.Tensor) (*tensor.Tensor, error) {
	return m.layer.Forward(inputs[0])
}

func (m *linearModel) Parameters() []*tensor.Tensor { return m.layer.Parameters() }
func (m *linearModel) Train()                       { m.layer.Train() }
func (m *linearModel) Eval()                        { m.layer.Eval() }
func (m *linearModel) IsTraining() bool             { return m.layer.IsTraining() }

func trainValLoaders(t *testing.T, nTrain, nVal int) (*DataLoader, *DataLoader) {
	t.Helper()
	train := makeDataset(t, nTrain, 2)
	val := makeDataset(t, nVal, 2)

	trainLoader, err := NewDataLoader(train, 2, true, 1, 3)
	if err != nil {
		t.Fatalf("NewDataLoader failed: %v", err)
	}
	valLoader, err := NewDataLoader(val, 2, false, 1, 3)
	if err != nil {
		t.Fatalf("NewDataLoader failed: %v", err)
	}
	return trainLoader, valLoader
}

func TestTrainerSingleEpoch(t *testing.T) {
	model := newLinearModel(t, 2)
	opt := NewAdamW(model.Parameters(), 0.01, 0.9, 0.999, 1e-8, 0.01)
	stem := filepath.Join(t.TempDir(), "run", "model")

	trainer := NewTrainer(model, opt, NewBCEWithLogitsLoss(), Config{
		Epochs:         1,
		Patience:       5,
		CheckpointStem: stem,
	}, zap.NewNop().Sugar())

	trainLoader, valLoader := trainValLoaders(t, 4, 2)
	if err := trainer.Train(trainLoader, valLoader); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	metrics := trainer.GetMetrics()
	if len(metrics) != 1 {
		t.Fatalf("expected 1 epoch of metrics, got %d", len(metrics))
	}
	if metrics[0].Epoch != 1 {
		t.Errorf("expected epoch 1, got %d", metrics[0].Epoch)
	}
	if math.IsNaN(metrics[0].TrainLoss) || math.IsNaN(metrics[0].ValidLoss) {
		t.Error("loss is NaN")
	}

	// First epoch always improves over +Inf, so the best checkpoint exists.
	if _, err := os.Stat(checkpoints.BestPath(stem)); err != nil {
		t.Errorf("best checkpoint missing: %v", err)
	}
}

func TestTrainerBestTracksMinValLoss(t *testing.T) {
	model := newLinearModel(t, 2)
	opt := NewSGD(model.Parameters(), 0.05, 0, 0, 0, false)
	stem := filepath.Join(t.TempDir(), "model")

	trainer := NewTrainer(model, opt, NewBCEWithLogitsLoss(), Config{
		Epochs:         5,
		Patience:       10,
		CheckpointStem: stem,
	}, zap.NewNop().Sugar())

	trainLoader, valLoader := trainValLoaders(t, 8, 4)
	if err := trainer.Train(trainLoader, valLoader); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	minVal := math.Inf(1)
	for _, m := range trainer.GetMetrics() {
		if m.ValidLoss < minVal {
			minVal = m.ValidLoss
		}
	}

	ckpt, err := checkpoints.NewSaver().Load(checkpoints.BestPath(stem))
	if err != nil {
		t.Fatalf("failed to load best checkpoint: %v", err)
	}
	if math.Abs(ckpt.TrainingState.BestLoss-minVal) > 1e-9 {
		t.Errorf("best checkpoint loss %f does not match minimum val loss %f",
			ckpt.TrainingState.BestLoss, minVal)
	}
}

func TestTrainerEarlyStopping(t *testing.T) {
	model := newLinearModel(t, 2)
	// A huge learning rate makes validation loss diverge quickly.
	opt := NewSGD(model.Parameters(), 50, 0, 0, 0, false)
	stem := filepath.Join(t.TempDir(), "model")

	trainer := NewTrainer(model, opt, NewBCEWithLogitsLoss(), Config{
		Epochs:         50,
		Patience:       2,
		CheckpointStem: stem,
	}, zap.NewNop().Sugar())

	trainLoader, valLoader := trainValLoaders(t, 8, 4)
	if err := trainer.Train(trainLoader, valLoader); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	if len(trainer.GetMetrics()) >= 50 {
		t.Error("expected early stopping before epoch 50")
	}
}

func TestTrainerNumberedSnapshots(t *testing.T) {
	model := newLinearModel(t, 2)
	opt := NewSGD(model.Parameters(), 0.01, 0, 0, 0, false)
	stem := filepath.Join(t.TempDir(), "model")

	trainer := NewTrainer(model, opt, NewBCEWithLogitsLoss(), Config{
		Epochs:         4,
		CheckpointStem: stem,
		SnapshotAfter:  2,
		SnapshotEvery:  2,
	}, zap.NewNop().Sugar())

	trainLoader, valLoader := trainValLoaders(t, 4, 2)
	if err := trainer.Train(trainLoader, valLoader); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	for _, epoch := range []int{2, 4} {
		if _, err := os.Stat(checkpoints.EpochPath(stem, epoch)); err != nil {
			t.Errorf("snapshot for epoch %d missing: %v", epoch, err)
		}
	}
	for _, epoch := range []int{1, 3} {
		if _, err := os.Stat(checkpoints.EpochPath(stem, epoch)); err == nil {
			t.Errorf("unexpected snapshot for epoch %d", epoch)
		}
	}
}

// mlpModel adapts a Sequential MLP with dropout to the multi-input Model
// interface, so trainer tests exercise a stochastic layer.
type mlpModel struct {
	net *Sequential
}

func newMLPModel(t *testing.T, in int, rng *rand.Rand) *mlpModel {
	t.Helper()
	hidden, err := NewLinear(in, 4, true, rng)
	if err != nil {
		t.Fatalf("NewLinear failed: %v", err)
	}
	drop, err := NewDropout(0.5, rng)
	if err != nil {
		t.Fatalf("NewDropout failed: %v", err)
	}
	head, err := NewLinear(4, 1, true, rng)
	if err != nil {
		t.Fatalf("NewLinear failed: %v", err)
	}
	return &mlpModel{net: NewSequential(hidden, NewReLU(), drop, head)}
}

func (m *mlpModel) Forward(inputs []*tensor.Tensor) (*tensor.Tensor, error) {
	return m.net.Forward(inputs[0])
}

func (m *mlpModel) Parameters() []*tensor.Tensor { return m.net.Parameters() }
func (m *mlpModel) Train()                       { m.net.Train() }
func (m *mlpModel) Eval()                        { m.net.Eval() }
func (m *mlpModel) IsTraining() bool             { return m.net.IsTraining() }

func TestTrainerDeterministicAcrossRuns(t *testing.T) {
	const seed = 17

	runOnce := func() []EpochMetrics {
		rng := rand.New(rand.NewSource(seed))
		model := newMLPModel(t, 2, rng)
		opt := NewAdamW(model.Parameters(), 0.01, 0.9, 0.999, 1e-8, 0.01)
		stem := filepath.Join(t.TempDir(), "model")

		trainer := NewTrainer(model, opt, NewBCEWithLogitsLoss(), Config{
			Epochs:         3,
			CheckpointStem: stem,
		}, zap.NewNop().Sugar())

		train := makeDataset(t, 16, 2)
		val := makeDataset(t, 8, 2)
		trainLoader, err := NewDataLoader(train, 4, true, 1, seed)
		if err != nil {
			t.Fatalf("NewDataLoader failed: %v", err)
		}
		valLoader, err := NewDataLoader(val, 4, false, 1, seed)
		if err != nil {
			t.Fatalf("NewDataLoader failed: %v", err)
		}

		if err := trainer.Train(trainLoader, valLoader); err != nil {
			t.Fatalf("Train failed: %v", err)
		}
		return trainer.GetMetrics()
	}

	a := runOnce()
	b := runOnce()

	if len(a) != len(b) {
		t.Fatalf("epoch count differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].TrainLoss != b[i].TrainLoss || a[i].ValidLoss != b[i].ValidLoss {
			t.Errorf("epoch %d: losses differ between runs (%f/%f vs %f/%f)",
				i+1, a[i].TrainLoss, a[i].ValidLoss, b[i].TrainLoss, b[i].ValidLoss)
		}
		if a[i].TrainAccuracy != b[i].TrainAccuracy || a[i].ValidAccuracy != b[i].ValidAccuracy {
			t.Errorf("epoch %d: accuracies differ between runs (%f/%f vs %f/%f)",
				i+1, a[i].TrainAccuracy, a[i].ValidAccuracy, b[i].TrainAccuracy, b[i].ValidAccuracy)
		}
	}
}

func TestTrainerSnapshotRecordsFreshBestLoss(t *testing.T) {
	model := newLinearModel(t, 2)
	opt := NewSGD(model.Parameters(), 0.01, 0, 0, 0, false)
	stem := filepath.Join(t.TempDir(), "model")

	trainer := NewTrainer(model, opt, NewBCEWithLogitsLoss(), Config{
		Epochs:         1,
		CheckpointStem: stem,
		SnapshotAfter:  1,
		SnapshotEvery:  1,
	}, zap.NewNop().Sugar())

	trainLoader, valLoader := trainValLoaders(t, 4, 2)
	if err := trainer.Train(trainLoader, valLoader); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	// Epoch 1 both improves the best loss and hits the snapshot interval;
	// the snapshot must carry the value from this epoch, not a stale one.
	ckpt, err := checkpoints.NewSaver().Load(checkpoints.EpochPath(stem, 1))
	if err != nil {
		t.Fatalf("failed to load epoch snapshot: %v", err)
	}
	validLoss := trainer.GetMetrics()[0].ValidLoss
	if math.Abs(ckpt.TrainingState.BestLoss-validLoss) > 1e-9 {
		t.Errorf("snapshot best loss %f does not match epoch validation loss %f",
			ckpt.TrainingState.BestLoss, validLoss)
	}
}

func TestTrainerSchedulerDrivesLR(t *testing.T) {
	model := newLinearModel(t, 2)
	opt := NewSGD(model.Parameters(), 1.0, 0, 0, 0, false)
	stem := filepath.Join(t.TempDir(), "model")

	trainer := NewTrainer(model, opt, NewBCEWithLogitsLoss(), Config{
		Epochs:         1,
		CheckpointStem: stem,
		Scheduler:      NewStepLRScheduler(1, 0.5),
		BaseLR:         0.2,
	}, zap.NewNop().Sugar())

	trainLoader, valLoader := trainValLoaders(t, 4, 2)
	if err := trainer.Train(trainLoader, valLoader); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	// Epoch 0, StepLR factor 1: LR should have been set to the base rate.
	if got := opt.GetLR(); got != 0.2 {
		t.Errorf("expected scheduler-set LR 0.2, got %f", got)
	}
}
