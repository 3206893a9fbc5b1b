package infer

import (
	"github.com/pkg/errors"
)

// Problem specifies the variational objective for a bound subgraph through
// per-sample callbacks, in the style of a stochastic-gradient problem
// definition. Gradient computation itself is the model backend's job
// (analytic or autodiff); this package only scales, reduces, and applies
// what the callbacks produce. All terms follow a minimization convention:
// loss is the negative evidence lower bound, and steppers descend.
type Problem struct {
	// ObservedSite names the subsampled plate whose scale factor (N/M)
	// multiplies the per-sample terms.
	ObservedSite string

	// GlobalDim and LocalDim are the expected parameter lengths; Step
	// validates them against the bound subgraph.
	GlobalDim int
	LocalDim  int

	// SampleLoss returns the loss contribution of batch element i: the
	// negative of its expected log-likelihood plus local-factor entropy.
	SampleLoss func(sg *Subgraph, i int) float64

	// PriorLoss returns the non-subsampled term: negative log prior (and any
	// global variational entropy). Scale factor 1.
	PriorLoss func(sg *Subgraph) float64

	// SampleGlobalGrad accumulates the gradient of SampleLoss(i) with
	// respect to the global parameters into dst (len GlobalDim).
	SampleGlobalGrad func(dst []float64, sg *Subgraph, i int)

	// PriorGlobalGrad accumulates the gradient of PriorLoss with respect to
	// the global parameters into dst (len GlobalDim).
	PriorGlobalGrad func(dst []float64, sg *Subgraph)

	// LocalGrad writes the gradient of element i's scaled loss with respect
	// to its own local parameters into dst (len LocalDim). The plate scale
	// is passed in so the backend can weight the data term.
	LocalGrad func(dst []float64, sg *Subgraph, i int, scale float64)
}

// Check returns an error if the problem is not fully specified
func (p *Problem) Check() error {
	if len(p.ObservedSite) < 1 {
		return errors.New("Problem requires an observed site name")
	}
	if p.GlobalDim < 1 || p.LocalDim < 1 {
		return errors.Errorf("Problem dims must be >= 1 (global %d, local %d)", p.GlobalDim, p.LocalDim)
	}
	if p.SampleLoss == nil || p.PriorLoss == nil {
		return errors.New("Problem requires loss callbacks")
	}
	if p.SampleGlobalGrad == nil || p.PriorGlobalGrad == nil || p.LocalGrad == nil {
		return errors.New("Problem requires gradient callbacks")
	}
	return nil
}

// Loss evaluates the scaled objective on the subgraph: the plate factor
// times the sum of per-sample losses, plus the prior term.
func (p *Problem) Loss(sg *Subgraph, scale float64) float64 {
	sum := 0.0
	for i := 0; i < sg.Size(); i++ {
		sum += p.SampleLoss(sg, i)
	}
	return scale*sum + p.PriorLoss(sg)
}
