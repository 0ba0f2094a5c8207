package training

import (
	"math"
)

// LRScheduler defines the interface for learning rate scheduling strategies.
// Schedulers are pure functions of the training position so the trainer can
// query them without holding any shared state.
type LRScheduler interface {
	// GetLR returns the learning rate for the current epoch/step
	GetLR(epoch int, step int, baseLR float64) float64

	// GetName returns the scheduler name for logging
	GetName() string
}

// NoOpScheduler keeps the base learning rate unchanged
type NoOpScheduler struct{}

func (s *NoOpScheduler) GetLR(epoch int, step int, baseLR float64) float64 {
	return baseLR
}

func (s *NoOpScheduler) GetName() string {
	return "NoOp"
}

// StepLRScheduler reduces learning rate by a factor every stepSize epochs
type StepLRScheduler struct {
	StepSize int     // Epochs between LR reductions
	Gamma    float64 // Multiplicative factor of LR decay
}

// NewStepLRScheduler creates a step learning rate scheduler
func NewStepLRScheduler(stepSize int, gamma float64) *StepLRScheduler {
	if stepSize <= 0 {
		stepSize = 30
	}
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.1
	}
	return &StepLRScheduler{
		StepSize: stepSize,
		Gamma:    gamma,
	}
}

func (s *StepLRScheduler) GetLR(epoch int, step int, baseLR float64) float64 {
	times := epoch / s.StepSize
	return baseLR * math.Pow(s.Gamma, float64(times))
}

func (s *StepLRScheduler) GetName() string {
	return "StepLR"
}

// CosineAnnealingWarmRestarts implements cosine annealing with warm restarts
// and a linear warmup at the start of each cycle. The schedule is driven by
// the global optimizer step, not the epoch. Each restart scales the peak
// learning rate by Gamma, so successive cycles anneal from lower maxima.
type CosineAnnealingWarmRestarts struct {
	T0     int     // Steps in the first cycle
	TMult  int     // Cycle length multiplier after each restart
	TUp    int     // Linear warmup steps at the start of each cycle
	EtaMax float64 // Peak learning rate of the first cycle
	Gamma  float64 // Peak decay factor per restart
}

// NewCosineAnnealingWarmRestarts creates a warm-restart cosine scheduler
func NewCosineAnnealingWarmRestarts(t0, tMult, tUp int, etaMax, gamma float64) *CosineAnnealingWarmRestarts {
	if t0 <= 0 {
		t0 = 1
	}
	if tMult < 1 {
		tMult = 1
	}
	if tUp < 0 || tUp >= t0 {
		tUp = 0
	}
	return &CosineAnnealingWarmRestarts{
		T0:     t0,
		TMult:  tMult,
		TUp:    tUp,
		EtaMax: etaMax,
		Gamma:  gamma,
	}
}

// locate resolves the global step into (cycle index, step within cycle,
// cycle length).
func (s *CosineAnnealingWarmRestarts) locate(step int) (cycle, tCur, tI int) {
	if s.TMult == 1 {
		return step / s.T0, step % s.T0, s.T0
	}

	tI = s.T0
	for step >= tI {
		step -= tI
		tI *= s.TMult
		cycle++
	}
	return cycle, step, tI
}

func (s *CosineAnnealingWarmRestarts) GetLR(epoch int, step int, baseLR float64) float64 {
	if step < 0 {
		step = 0
	}
	cycle, tCur, tI := s.locate(step)

	etaMax := s.EtaMax * math.Pow(s.Gamma, float64(cycle))

	if tCur < s.TUp {
		// Linear ramp from baseLR up to the cycle peak.
		return baseLR + (etaMax-baseLR)*float64(tCur)/float64(s.TUp)
	}

	progress := float64(tCur-s.TUp) / float64(tI-s.TUp)
	return baseLR + (etaMax-baseLR)*(1+math.Cos(math.Pi*progress))/2
}

func (s *CosineAnnealingWarmRestarts) GetName() string {
	return "CosineAnnealingWarmRestarts"
}
