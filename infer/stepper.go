package infer

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/CraigKelly/varsub/rand"
)

// Stepper turns a gradient into a parameter update. Implementations are the
// optimizer backend and own any internal state (velocity, iteration counts).
// Step writes the additive update into dst given the loss gradient; callers
// apply it with a vector add after validating it is finite.
type Stepper interface {
	Init(dim int)
	Step(dst []float64, grad []float64)
}

// SGD is plain stochastic gradient descent with an optional 1/t style decay:
// step = -lr/(1 + decay*t) * grad. SGD is stateless across parameter rows,
// which makes it safe for the LOCAL mode where one stepper serves every
// batch element.
type SGD struct {
	LearningRate float64
	Decay        float64

	iter int
}

// NewSGD creates a plain SGD stepper.
func NewSGD(learningRate float64, decay float64) *SGD {
	return &SGD{LearningRate: learningRate, Decay: decay}
}

// Init implements Stepper. SGD keeps no per-dimension state.
func (s *SGD) Init(dim int) {
	s.iter = 0
}

// Step implements Stepper.
func (s *SGD) Step(dst []float64, grad []float64) {
	lr := s.LearningRate / (1.0 + s.Decay*float64(s.iter))
	s.iter++

	copy(dst, grad)
	floats.Scale(-lr, dst)
}

// Momentum is SGD with a velocity term: v = beta*v - lr*grad, step = v.
// Only suitable for the GLOBAL mode (velocity is per-dimension state tied to
// one parameter vector).
type Momentum struct {
	LearningRate float64
	Beta         float64

	vel []float64
}

// NewMomentum creates a momentum stepper.
func NewMomentum(learningRate float64, beta float64) *Momentum {
	return &Momentum{LearningRate: learningRate, Beta: beta}
}

// Init implements Stepper.
func (m *Momentum) Init(dim int) {
	m.vel = make([]float64, dim)
}

// Step implements Stepper.
func (m *Momentum) Step(dst []float64, grad []float64) {
	for i, g := range grad {
		m.vel[i] = m.Beta*m.vel[i] - m.LearningRate*g
	}
	copy(dst, m.vel)
}

// SGLD performs one stochastic-gradient Langevin transition: a half-step of
// gradient descent plus Gaussian noise with variance equal to the step size,
// step = -(eps/2)*grad + N(0, eps). Repeated steps draw from an empirical
// approximation of the posterior instead of optimizing an explicit q.
type SGLD struct {
	StepSize float64

	noise distuv.Normal
}

// NewSGLD creates a Langevin stepper whose noise stream draws from the
// run's seeded generator.
func NewSGLD(gen *rand.Generator, stepSize float64) *SGLD {
	return &SGLD{
		StepSize: stepSize,
		noise: distuv.Normal{
			Mu:    0,
			Sigma: math.Sqrt(stepSize),
			Src:   rand.NewSource(gen),
		},
	}
}

// Init implements Stepper. SGLD keeps no per-dimension state.
func (s *SGLD) Init(dim int) {}

// Step implements Stepper.
func (s *SGLD) Step(dst []float64, grad []float64) {
	half := s.StepSize / 2.0
	for i, g := range grad {
		dst[i] = -half*g + s.noise.Rand()
	}
}
