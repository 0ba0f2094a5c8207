package training

import (
	"fmt"
	"math"
	"sync"

	"github.com/mhclab/epibind/tensor"
)

// Optimizer interface defines the methods that all optimizers must implement
type Optimizer interface {
	Step() error      // Updates model parameters based on gradients
	ZeroGrad()        // Resets gradients for all parameters
	GetLR() float64   // Gets current learning rate
	SetLR(lr float64) // Sets learning rate
}

func paramData(param *tensor.Tensor) ([]float32, []float32, error) {
	if param.DType != tensor.Float32 {
		return nil, nil, fmt.Errorf("optimizer supports Float32 parameters, got %v", param.DType)
	}
	grad := param.Grad()
	if grad == nil {
		return nil, nil, nil
	}
	return param.Data.([]float32), grad.Data.([]float32), nil
}

// SGD implements Stochastic Gradient Descent optimizer
type SGD struct {
	parameters   []*tensor.Tensor
	learningRate float64
	momentum     float64
	weightDecay  float64
	dampening    float64
	nesterov     bool
	velocities   map[*tensor.Tensor][]float32
	mutex        sync.RWMutex
}

// NewSGD creates a new SGD optimizer
func NewSGD(parameters []*tensor.Tensor, lr, momentum, weightDecay, dampening float64, nesterov bool) *SGD {
	return &SGD{
		parameters:   parameters,
		learningRate: lr,
		momentum:     momentum,
		weightDecay:  weightDecay,
		dampening:    dampening,
		nesterov:     nesterov,
		velocities:   make(map[*tensor.Tensor][]float32),
	}
}

// Step performs a single optimization step
func (sgd *SGD) Step() error {
	sgd.mutex.Lock()
	defer sgd.mutex.Unlock()

	for _, param := range sgd.parameters {
		if !param.RequiresGrad() || param.Grad() == nil {
			continue
		}

		data, grad, err := paramData(param)
		if err != nil {
			return err
		}

		for i := range data {
			g := float64(grad[i])

			if sgd.weightDecay > 0 {
				g += sgd.weightDecay * float64(data[i])
			}

			if sgd.momentum > 0 {
				velocity := sgd.velocities[param]
				if velocity == nil {
					velocity = make([]float32, len(data))
					sgd.velocities[param] = velocity
				}
				v := sgd.momentum*float64(velocity[i]) + (1.0-sgd.dampening)*g
				velocity[i] = float32(v)
				if sgd.nesterov {
					g = g + sgd.momentum*v
				} else {
					g = v
				}
			}

			data[i] -= float32(sgd.learningRate * g)
		}
	}

	return nil
}

// ZeroGrad resets gradients for all parameters
func (sgd *SGD) ZeroGrad() {
	tensor.ZeroGrad(sgd.parameters)
}

// GetLR returns the current learning rate
func (sgd *SGD) GetLR() float64 {
	sgd.mutex.RLock()
	defer sgd.mutex.RUnlock()
	return sgd.learningRate
}

// SetLR sets the learning rate
func (sgd *SGD) SetLR(lr float64) {
	sgd.mutex.Lock()
	defer sgd.mutex.Unlock()
	sgd.learningRate = lr
}

// Adam implements the Adam optimizer with bias-corrected first and second
// moment estimates. Weight decay, when set, is L2-coupled (added to the
// gradient before the moment updates).
type Adam struct {
	parameters   []*tensor.Tensor
	learningRate float64
	beta1        float64
	beta2        float64
	eps          float64
	weightDecay  float64
	stepCount    int
	m            map[*tensor.Tensor][]float32
	v            map[*tensor.Tensor][]float32
	mutex        sync.RWMutex
}

// NewAdam creates a new Adam optimizer
func NewAdam(parameters []*tensor.Tensor, lr, beta1, beta2, eps, weightDecay float64) *Adam {
	return &Adam{
		parameters:   parameters,
		learningRate: lr,
		beta1:        beta1,
		beta2:        beta2,
		eps:          eps,
		weightDecay:  weightDecay,
		m:            make(map[*tensor.Tensor][]float32),
		v:            make(map[*tensor.Tensor][]float32),
	}
}

// Step performs a single optimization step
func (adam *Adam) Step() error {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()

	adam.stepCount++
	bc1 := 1.0 - math.Pow(adam.beta1, float64(adam.stepCount))
	bc2 := 1.0 - math.Pow(adam.beta2, float64(adam.stepCount))

	for _, param := range adam.parameters {
		if !param.RequiresGrad() || param.Grad() == nil {
			continue
		}

		data, grad, err := paramData(param)
		if err != nil {
			return err
		}

		m := adam.m[param]
		if m == nil {
			m = make([]float32, len(data))
			adam.m[param] = m
		}
		v := adam.v[param]
		if v == nil {
			v = make([]float32, len(data))
			adam.v[param] = v
		}

		for i := range data {
			g := float64(grad[i])
			if adam.weightDecay > 0 {
				g += adam.weightDecay * float64(data[i])
			}

			mi := adam.beta1*float64(m[i]) + (1.0-adam.beta1)*g
			vi := adam.beta2*float64(v[i]) + (1.0-adam.beta2)*g*g
			m[i] = float32(mi)
			v[i] = float32(vi)

			mHat := mi / bc1
			vHat := vi / bc2
			data[i] -= float32(adam.learningRate * mHat / (math.Sqrt(vHat) + adam.eps))
		}
	}

	return nil
}

// ZeroGrad resets gradients for all parameters
func (adam *Adam) ZeroGrad() {
	tensor.ZeroGrad(adam.parameters)
}

// GetLR returns the current learning rate
func (adam *Adam) GetLR() float64 {
	adam.mutex.RLock()
	defer adam.mutex.RUnlock()
	return adam.learningRate
}

// SetLR sets the learning rate
func (adam *Adam) SetLR(lr float64) {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()
	adam.learningRate = lr
}

// AdamW implements Adam with decoupled weight decay: the decay term is
// applied directly to the parameter instead of being folded into the
// gradient, so it does not interact with the adaptive moments.
type AdamW struct {
	parameters   []*tensor.Tensor
	learningRate float64
	beta1        float64
	beta2        float64
	eps          float64
	weightDecay  float64
	stepCount    int
	m            map[*tensor.Tensor][]float32
	v            map[*tensor.Tensor][]float32
	mutex        sync.RWMutex
}

// NewAdamW creates a new AdamW optimizer
func NewAdamW(parameters []*tensor.Tensor, lr, beta1, beta2, eps, weightDecay float64) *AdamW {
	return &AdamW{
		parameters:   parameters,
		learningRate: lr,
		beta1:        beta1,
		beta2:        beta2,
		eps:          eps,
		weightDecay:  weightDecay,
		m:            make(map[*tensor.Tensor][]float32),
		v:            make(map[*tensor.Tensor][]float32),
	}
}

// Step performs a single optimization step
func (aw *AdamW) Step() error {
	aw.mutex.Lock()
	defer aw.mutex.Unlock()

	aw.stepCount++
	bc1 := 1.0 - math.Pow(aw.beta1, float64(aw.stepCount))
	bc2 := 1.0 - math.Pow(aw.beta2, float64(aw.stepCount))

	for _, param := range aw.parameters {
		if !param.RequiresGrad() || param.Grad() == nil {
			continue
		}

		data, grad, err := paramData(param)
		if err != nil {
			return err
		}

		m := aw.m[param]
		if m == nil {
			m = make([]float32, len(data))
			aw.m[param] = m
		}
		v := aw.v[param]
		if v == nil {
			v = make([]float32, len(data))
			aw.v[param] = v
		}

		for i := range data {
			g := float64(grad[i])

			mi := aw.beta1*float64(m[i]) + (1.0-aw.beta1)*g
			vi := aw.beta2*float64(v[i]) + (1.0-aw.beta2)*g*g
			m[i] = float32(mi)
			v[i] = float32(vi)

			mHat := mi / bc1
			vHat := vi / bc2

			// Decoupled decay, then the Adam update.
			p := float64(data[i])
			p -= aw.learningRate * aw.weightDecay * p
			p -= aw.learningRate * mHat / (math.Sqrt(vHat) + aw.eps)
			data[i] = float32(p)
		}
	}

	return nil
}

// ZeroGrad resets gradients for all parameters
func (aw *AdamW) ZeroGrad() {
	tensor.ZeroGrad(aw.parameters)
}

// GetLR returns the current learning rate
func (aw *AdamW) GetLR() float64 {
	aw.mutex.RLock()
	defer aw.mutex.RUnlock()
	return aw.learningRate
}

// SetLR sets the learning rate
func (aw *AdamW) SetLR(lr float64) {
	aw.mutex.Lock()
	defer aw.mutex.Unlock()
	aw.learningRate = lr
}
