package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mhclab/epibind/tensor"
)

// Checkpoint represents a complete model state: weights plus training
// progress and file metadata.
type Checkpoint struct {
	Weights []WeightTensor `json:"weights"`

	TrainingState TrainingState `json:"training_state"`

	Metadata Metadata `json:"metadata"`
}

// WeightTensor represents a model parameter tensor with its data
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// TrainingState captures the training progress at save time
type TrainingState struct {
	Epoch      int     `json:"epoch"`
	GlobalStep int     `json:"global_step"`
	BestLoss   float64 `json:"best_loss"`
}

// Metadata contains checkpoint metadata
type Metadata struct {
	Version   string    `json:"version"`
	Framework string    `json:"framework"`
	CreatedAt time.Time `json:"created_at"`
}

// FromParameters builds a checkpoint from a model's parameter tensors.
// Parameters are named positionally, so loading expects the same
// architecture that produced the checkpoint.
func FromParameters(params []*tensor.Tensor, state TrainingState) (*Checkpoint, error) {
	weights := make([]WeightTensor, 0, len(params))
	for i, p := range params {
		if p.DType != tensor.Float32 {
			return nil, fmt.Errorf("parameter %d has unsupported dtype %s", i, p.DType)
		}
		src := p.Data.([]float32)
		data := make([]float32, len(src))
		copy(data, src)

		shape := make([]int, len(p.Shape))
		copy(shape, p.Shape)

		weights = append(weights, WeightTensor{
			Name:  fmt.Sprintf("param_%d", i),
			Shape: shape,
			Data:  data,
		})
	}

	return &Checkpoint{
		Weights:       weights,
		TrainingState: state,
		Metadata: Metadata{
			Version:   "1.0",
			Framework: "epibind",
			CreatedAt: time.Now().UTC(),
		},
	}, nil
}

// Apply copies checkpoint weights into the given parameter tensors,
// validating count and shapes before touching anything.
func (c *Checkpoint) Apply(params []*tensor.Tensor) error {
	if len(c.Weights) != len(params) {
		return fmt.Errorf("checkpoint has %d weight tensors, model has %d parameters", len(c.Weights), len(params))
	}

	for i, w := range c.Weights {
		p := params[i]
		if len(w.Shape) != len(p.Shape) {
			return fmt.Errorf("weight %s: shape rank mismatch (%v vs %v)", w.Name, w.Shape, p.Shape)
		}
		for d := range w.Shape {
			if w.Shape[d] != p.Shape[d] {
				return fmt.Errorf("weight %s: shape mismatch (%v vs %v)", w.Name, w.Shape, p.Shape)
			}
		}
		if len(w.Data) != p.NumElems {
			return fmt.Errorf("weight %s: data length %d does not match %d elements", w.Name, len(w.Data), p.NumElems)
		}
	}

	for i, w := range c.Weights {
		copy(params[i].Data.([]float32), w.Data)
	}
	return nil
}

// Saver handles reading and writing checkpoints as JSON files
type Saver struct{}

// NewSaver creates a new checkpoint saver
func NewSaver() *Saver {
	return &Saver{}
}

// Save writes the checkpoint to path, creating parent directories as needed
func (s *Saver) Save(checkpoint *Checkpoint, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %v", err)
		}
	}

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %v", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %v", err)
	}
	return nil
}

// Load reads a checkpoint from path
func (s *Saver) Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %v", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint file: %v", err)
	}
	return &checkpoint, nil
}

// BestPath returns the path of the best-model checkpoint for a stem
func BestPath(stem string) string {
	return stem + "-best.json"
}

// EpochPath returns the path of the numbered snapshot for a stem and epoch
func EpochPath(stem string, epoch int) string {
	return fmt.Sprintf("%s-epoch_%d.json", stem, epoch)
}

// PrefixPath returns the checkpoint path for an arbitrary prefix, such as
// "best" or "epoch_35"
func PrefixPath(stem, prefix string) string {
	return fmt.Sprintf("%s-%s.json", stem, prefix)
}
