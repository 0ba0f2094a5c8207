package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config is the full description of a training or evaluation run, loaded
// from a YAML file. Component sections name registered implementations and
// carry free-form args interpreted by the implementation's factory.
type Config struct {
	ChkpName string `yaml:"chkp_name"`
	ChkpPath string `yaml:"chkp_path"`
	LogFile  string `yaml:"log_file"`
	PlotPath string `yaml:"plot_path"`
	Seed     int64  `yaml:"seed"`

	Model   Component `yaml:"model"`
	Encoder Component `yaml:"encoder"`

	Data  Data  `yaml:"data"`
	Train Train `yaml:"train"`
	Test  Test  `yaml:"test"`
}

// Component names a registered implementation and its arguments
type Component struct {
	Name string                 `yaml:"name"`
	Args map[string]interface{} `yaml:"args"`
}

// SampleColumns maps the columns of an epitope sample file
type SampleColumns struct {
	EpiHeader string `yaml:"epi_header"`
	HLAHeader string `yaml:"hla_header"`
	TgtHeader string `yaml:"tgt_header"`
	Separator string `yaml:"separator"`
}

// AlleleColumns maps the columns of an HLA sequence file
type AlleleColumns struct {
	HLAHeader string `yaml:"hla_header"`
	SeqHeader string `yaml:"seq_header"`
	Separator string `yaml:"separator"`
}

// Data describes the input files and split parameters
type Data struct {
	EpiPath  string        `yaml:"epi_path"`
	EpiArgs  SampleColumns `yaml:"epi_args"`
	HLAPath  string        `yaml:"hla_path"`
	HLAArgs  AlleleColumns `yaml:"hla_args"`
	TestPath string        `yaml:"test_path"`
	TestArgs SampleColumns `yaml:"test_args"`

	NumWorkers int     `yaml:"num_workers"`
	ValSize    float64 `yaml:"val_size"`
}

// OptimizerArgs carries the common optimizer hyperparameters
type OptimizerArgs struct {
	LR          float64 `yaml:"lr"`
	WeightDecay float64 `yaml:"weight_decay"`
	Momentum    float64 `yaml:"momentum"`
}

// Train holds the training hyperparameters
type Train struct {
	BatchSize     int           `yaml:"batch_size"`
	NumEpochs     int           `yaml:"num_epochs"`
	Patience      int           `yaml:"patience"`
	Regularize    bool          `yaml:"regularize"`
	Criterion     string        `yaml:"criterion"`
	Optimizer     string        `yaml:"optimizer"`
	OptimizerArgs OptimizerArgs `yaml:"optimizer_args"`
	UseScheduler  bool          `yaml:"use_scheduler"`
	Transfer      bool          `yaml:"transfer"`
	ChkpPrefix    string        `yaml:"chkp_prefix"`
}

// Test holds the evaluation parameters
type Test struct {
	BatchSize  int    `yaml:"batch_size"`
	ChkpPrefix string `yaml:"chkp_prefix"`
}

// Load reads and validates a config file
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}

	var cfg Config
	if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Data.NumWorkers <= 0 {
		c.Data.NumWorkers = 1
	}
	if c.Data.ValSize == 0 {
		c.Data.ValSize = 0.2
	}
	if c.Train.Criterion == "" {
		c.Train.Criterion = "bce_with_logits"
	}
	if c.Train.Optimizer == "" {
		c.Train.Optimizer = "adamw"
	}
	if c.Train.ChkpPrefix == "" {
		c.Train.ChkpPrefix = "best"
	}
	if c.Test.BatchSize <= 0 {
		c.Test.BatchSize = c.Train.BatchSize
	}
	if c.Test.ChkpPrefix == "" {
		c.Test.ChkpPrefix = "best"
	}
}

// Validate checks for required fields and in-range values
func (c *Config) Validate() error {
	if c.ChkpName == "" {
		return errors.New("chkp_name is required")
	}
	if c.ChkpPath == "" {
		return errors.New("chkp_path is required")
	}
	if c.Model.Name == "" {
		return errors.New("model.name is required")
	}
	if c.Encoder.Name == "" {
		return errors.New("encoder.name is required")
	}
	if c.Data.EpiPath == "" {
		return errors.New("data.epi_path is required")
	}
	if c.Data.HLAPath == "" {
		return errors.New("data.hla_path is required")
	}
	if c.Data.ValSize <= 0 || c.Data.ValSize >= 1 {
		return errors.Errorf("data.val_size must be in (0, 1), got %f", c.Data.ValSize)
	}
	if c.Train.BatchSize <= 0 {
		return errors.Errorf("train.batch_size must be positive, got %d", c.Train.BatchSize)
	}
	if c.Train.NumEpochs <= 0 {
		return errors.Errorf("train.num_epochs must be positive, got %d", c.Train.NumEpochs)
	}
	if c.Train.Patience < 0 {
		return errors.Errorf("train.patience cannot be negative, got %d", c.Train.Patience)
	}
	return nil
}

// CheckpointStem returns the path stem checkpoints are written under
func (c *Config) CheckpointStem() string {
	return filepath.Join(c.ChkpPath, c.ChkpName)
}
