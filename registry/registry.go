// Package registry maps config names to model, encoder, criterion, and
// optimizer constructors. Builtin implementations register themselves here
// so commands can build a run purely from a config file.
package registry

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/mhclab/epibind/config"
	"github.com/mhclab/epibind/data"
	"github.com/mhclab/epibind/tensor"
	"github.com/mhclab/epibind/training"
)

// ModelFactory builds a model from its config args and the run's random
// source (used for weight initialization).
type ModelFactory func(args map[string]interface{}, rng *rand.Rand) (training.Model, error)

// EncoderFactory builds a dataset from a provider, the allele table, and
// the encoder's config args.
type EncoderFactory func(provider *data.Provider, alleles *data.AlleleTable, args map[string]interface{}) (training.Dataset, error)

var (
	mu       sync.RWMutex
	models   = make(map[string]ModelFactory)
	encoders = make(map[string]EncoderFactory)
)

// RegisterModel makes a model constructor available under name
func RegisterModel(name string, factory ModelFactory) {
	mu.Lock()
	defer mu.Unlock()
	models[name] = factory
}

// RegisterEncoder makes an encoder constructor available under name
func RegisterEncoder(name string, factory EncoderFactory) {
	mu.Lock()
	defer mu.Unlock()
	encoders[name] = factory
}

// BuildModel constructs the named model
func BuildModel(name string, args map[string]interface{}, rng *rand.Rand) (training.Model, error) {
	mu.RLock()
	factory, ok := models[name]
	mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown model %q (registered: %v)", name, registeredNames(models))
	}
	return factory(args, rng)
}

// BuildEncoder constructs the named encoder
func BuildEncoder(name string, provider *data.Provider, alleles *data.AlleleTable, args map[string]interface{}) (training.Dataset, error) {
	mu.RLock()
	factory, ok := encoders[name]
	mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown encoder %q (registered: %v)", name, registeredNames(encoders))
	}
	return factory(provider, alleles, args)
}

func registeredNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Criterion returns the named loss function
func Criterion(name string) (training.Loss, error) {
	switch name {
	case "bce_with_logits":
		return training.NewBCEWithLogitsLoss(), nil
	case "mse":
		return training.NewMSELoss(), nil
	default:
		return nil, errors.Errorf("unknown criterion %q", name)
	}
}

// Optimizer returns the named optimizer over the given parameters
func Optimizer(name string, params []*tensor.Tensor, args config.OptimizerArgs) (training.Optimizer, error) {
	lr := args.LR
	if lr == 0 {
		lr = 1e-3
	}

	switch name {
	case "sgd":
		return training.NewSGD(params, lr, args.Momentum, args.WeightDecay, 0, false), nil
	case "adam":
		return training.NewAdam(params, lr, 0.9, 0.999, 1e-8, args.WeightDecay), nil
	case "adamw":
		wd := args.WeightDecay
		if wd == 0 {
			wd = 0.01
		}
		return training.NewAdamW(params, lr, 0.9, 0.999, 1e-8, wd), nil
	default:
		return nil, errors.Errorf("unknown optimizer %q", name)
	}
}
