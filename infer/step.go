package infer

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/CraigKelly/varsub/model"
)

// Update mode constant strings
const (
	GLOBAL = "GLOBAL" // update global params, locals read-only
	LOCAL  = "LOCAL"  // update local params, globals read-only
)

// StepConfig controls how a single update executes.
type StepConfig struct {
	// Workers is the number of goroutines computing per-sample gradient
	// contributions. Values < 2 mean serial. Contributions are reduced in
	// shard order, so a fixed Workers count and seed reproduce a run.
	Workers int
}

func (c StepConfig) workers(batchSize int) int {
	w := c.Workers
	if w < 1 {
		w = 1
	}
	if w > batchSize {
		w = batchSize
	}
	return w
}

// Step performs one block-coordinate update on the bound subgraph: GLOBAL
// mode holds local params fixed and applies one optimizer step to the global
// params, LOCAL mode is the symmetric case. Per-sample contributions are
// weighted by the observed plate's scale factor so the update is an unbiased
// full-data estimate. Returns the scaled loss evaluated before the update.
//
// A non-finite loss, gradient, or step fails with ErrOptimizationDiverged
// before any global parameter is written, so the previous global state
// survives a divergence intact.
func Step(mode string, sg *Subgraph, scales *model.ScaleTable, prob *Problem, stepper Stepper, cfg StepConfig) (float64, error) {
	if len(sg.Global) != prob.GlobalDim {
		return 0, errors.Wrapf(ErrShape,
			"Global params have len %d, problem declares %d", len(sg.Global), prob.GlobalDim)
	}
	if sg.Local.Dim() != prob.LocalDim {
		return 0, errors.Wrapf(ErrShape,
			"Local rows have len %d, problem declares %d", sg.Local.Dim(), prob.LocalDim)
	}

	scale, err := scales.Get(prob.ObservedSite)
	if err != nil {
		return 0, err
	}

	loss := prob.Loss(sg, scale)
	if !isFinite(loss) {
		return loss, errors.Wrapf(ErrOptimizationDiverged, "Loss is non-finite (%f)", loss)
	}

	switch mode {
	case GLOBAL:
		err = globalStep(sg, prob, stepper, scale, cfg)
	case LOCAL:
		err = localStep(sg, prob, stepper, scale, cfg)
	default:
		err = errors.Errorf("Unknown update mode %s", mode)
	}

	return loss, err
}

// globalStep computes the scaled full-data gradient estimate for the global
// params and applies exactly one optimizer step. Local params are read-only.
func globalStep(sg *Subgraph, prob *Problem, stepper Stepper, scale float64, cfg StepConfig) error {
	m := sg.Size()
	workers := cfg.workers(m)

	// Per-shard partial sums, reduced in shard order for reproducibility.
	partials := make([][]float64, workers)
	var grp errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		lo, hi := shardRange(m, workers, w)
		grp.Go(func() error {
			part := make([]float64, prob.GlobalDim)
			for i := lo; i < hi; i++ {
				prob.SampleGlobalGrad(part, sg, i)
			}
			partials[w] = part
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	grad := partials[0]
	for _, part := range partials[1:] {
		floats.Add(grad, part)
	}
	floats.Scale(scale, grad)
	prob.PriorGlobalGrad(grad, sg)

	if !finiteVec(grad) {
		return errors.Wrapf(ErrOptimizationDiverged, "Global gradient is non-finite")
	}

	step := make([]float64, prob.GlobalDim)
	stepper.Step(step, grad)
	if !isFinite(floats.Norm(step, 2)) {
		return errors.Wrapf(ErrOptimizationDiverged, "Global step is non-finite")
	}

	// Validated above: this is the only place the global cell is written.
	floats.Add(sg.Global, step)
	return nil
}

// localStep refines each batch element's local params given fixed globals.
// Gradients are computed in parallel, then steps are applied serially in
// batch order since the stepper may be stateful.
func localStep(sg *Subgraph, prob *Problem, stepper Stepper, scale float64, cfg StepConfig) error {
	m := sg.Size()
	workers := cfg.workers(m)

	grads := make([][]float64, m)
	var grp errgroup.Group
	for w := 0; w < workers; w++ {
		lo, hi := shardRange(m, workers, w)
		grp.Go(func() error {
			for i := lo; i < hi; i++ {
				g := make([]float64, prob.LocalDim)
				prob.LocalGrad(g, sg, i, scale)
				grads[i] = g
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	for i, g := range grads {
		if !finiteVec(g) {
			return errors.Wrapf(ErrOptimizationDiverged, "Local gradient %d is non-finite", i)
		}
	}

	step := make([]float64, prob.LocalDim)
	for i, g := range grads {
		stepper.Step(step, g)
		if !isFinite(floats.Norm(step, 2)) {
			return errors.Wrapf(ErrOptimizationDiverged, "Local step %d is non-finite", i)
		}
		floats.Add(sg.Local.Rows[i], step)
	}

	return nil
}

// shardRange splits [0, m) into count contiguous shards and returns shard w.
func shardRange(m int, count int, w int) (lo int, hi int) {
	per := (m + count - 1) / count
	lo = w * per
	hi = lo + per
	if hi > m {
		hi = m
	}
	if lo > m {
		lo = m
	}
	return
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteVec(v []float64) bool {
	for _, x := range v {
		if !isFinite(x) {
			return false
		}
	}
	return true
}
