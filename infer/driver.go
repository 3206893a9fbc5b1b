package infer

import (
	"encoding/gob"
	"io"

	"github.com/pkg/errors"

	"github.com/CraigKelly/varsub/buffer"
	"github.com/CraigKelly/varsub/model"
)

// IterReport is the per-outer-iteration progress snapshot handed to an
// optional Progress callback.
type IterReport struct {
	Outer      int     // 1-based outer iteration
	Loss       float64 // scaled loss at the global step
	TotalSteps int64   // cumulative local+global step count
}

// Driver orchestrates subsampled inference: per outer iteration it fetches a
// batch from the data source, allocates fresh local parameters, binds the
// subgraph, runs K local refinement steps, runs exactly one global step, and
// resets the local store. The Global slice is the one piece of state shared
// across the whole run; it is mutated only inside the global step, and
// callers running several drivers against the same cell must serialize their
// global updates.
type Driver struct {
	Model      *model.Model
	Problem    *Problem
	Scales     *model.ScaleTable
	Store      LocalFactorStore
	Source     Batcher
	Global     []float64
	GlobalStep Stepper
	LocalStep  Stepper

	// Config is applied to every InferenceStep call.
	Config StepConfig

	// Stop, when non-nil, ends the run cleanly after the current outer
	// iteration when closed.
	Stop <-chan struct{}

	// Progress, when non-nil, is called after each outer iteration.
	Progress func(IterReport)

	// LossHistory is a trailing window over per-iteration loss values.
	LossHistory *buffer.CircularFloat

	TotalOuterIters int64
	TotalSteps      int64
}

// lossWindow is the size of the driver's trailing loss window.
const lossWindow = 64

// NewDriver validates and assembles a driver. The global parameter slice is
// the caller's mutable cell: the driver updates it in place so the caller
// retains ownership (and can checkpoint or share it between runs).
func NewDriver(mod *model.Model, prob *Problem, store LocalFactorStore, source Batcher, global []float64, globalStep Stepper, localStep Stepper) (*Driver, error) {
	if mod == nil {
		return nil, errors.New("No model supplied")
	}
	if err := mod.Check(); err != nil {
		return nil, errors.Wrapf(err, "Driver given an invalid model")
	}
	if prob == nil {
		return nil, errors.New("No problem supplied")
	}
	if err := prob.Check(); err != nil {
		return nil, errors.Wrapf(err, "Driver given an invalid problem")
	}
	if store == nil || source == nil {
		return nil, errors.New("Driver requires a local store and a data source")
	}
	if globalStep == nil || localStep == nil {
		return nil, errors.New("Driver requires global and local steppers")
	}
	if len(global) != mod.GlobalDim() {
		return nil, errors.Wrapf(ErrShape,
			"Global params have len %d, model declares %d", len(global), mod.GlobalDim())
	}
	if mod.ByName(prob.ObservedSite) == nil {
		return nil, errors.Wrapf(model.ErrUnknownSite,
			"Problem observes site %s not in model %s", prob.ObservedSite, mod.Name)
	}

	d := &Driver{
		Model:       mod,
		Problem:     prob,
		Scales:      model.NewScaleTable(mod),
		Store:       store,
		Source:      source,
		Global:      global,
		GlobalStep:  globalStep,
		LocalStep:   localStep,
		LossHistory: buffer.NewCircularFloat(lossWindow),
	}

	return d, nil
}

// Run executes outerIters outer iterations with localIters local refinement
// steps each, on batches of batchSize. The scale factor N/M for the observed
// plate is derived here from the model's data size. Any divergence or shape
// failure aborts the whole run: continuing with a broken global estimate
// would poison every later batch.
func (d *Driver) Run(outerIters int, localIters int, batchSize int) error {
	if outerIters < 1 {
		return errors.Errorf("Invalid outer iteration count %d", outerIters)
	}
	if localIters < 0 {
		return errors.Errorf("Invalid local iteration count %d", localIters)
	}

	err := d.Scales.SetPlate(d.Problem.ObservedSite, d.Model.DataSize, batchSize)
	if err != nil {
		return errors.Wrapf(err, "Could not derive plate scale")
	}

	d.GlobalStep.Init(d.Problem.GlobalDim)
	d.LocalStep.Init(d.Problem.LocalDim)

	for t := 1; t <= outerIters; t++ {
		if d.stopped() {
			return nil
		}

		batch, err := d.Source.NextBatch(batchSize)
		if err != nil {
			return errors.Wrapf(err, "Outer iteration %d: batch fetch failed", t)
		}

		loss, err := d.runOne(t, batch, localIters)
		if err != nil {
			return err
		}

		d.TotalOuterIters++
		d.LossHistory.Add(loss)

		if d.Progress != nil {
			d.Progress(IterReport{
				Outer:      t,
				Loss:       loss,
				TotalSteps: d.TotalSteps,
			})
		}
	}

	return nil
}

// runOne performs a single outer iteration. The local store is reset on
// every exit path, including failure: local params are a per-batch point
// estimate and must never leak into a later batch.
func (d *Driver) runOne(t int, batch *Batch, localIters int) (loss float64, err error) {
	defer d.Store.Reset()

	local, err := d.Store.Allocate(batch.Indices)
	if err != nil {
		return 0, errors.Wrapf(err, "Outer iteration %d: local allocate failed", t)
	}

	for k := 1; k <= localIters; k++ {
		// Re-bind so each refinement sees the just-updated locals
		sg, err := Bind(d.Model, batch, d.Global, local)
		if err != nil {
			return 0, errors.Wrapf(err, "Outer iteration %d: LOCAL bind %d failed", t, k)
		}

		_, err = Step(LOCAL, sg, d.Scales, d.Problem, d.LocalStep, d.Config)
		if err != nil {
			return 0, errors.Wrapf(err, "Outer iteration %d: LOCAL step %d failed", t, k)
		}
		d.TotalSteps++
	}

	sg, err := Bind(d.Model, batch, d.Global, local)
	if err != nil {
		return 0, errors.Wrapf(err, "Outer iteration %d: GLOBAL bind failed", t)
	}

	loss, err = Step(GLOBAL, sg, d.Scales, d.Problem, d.GlobalStep, d.Config)
	if err != nil {
		return 0, errors.Wrapf(err, "Outer iteration %d: GLOBAL step failed", t)
	}
	d.TotalSteps++

	return loss, nil
}

func (d *Driver) stopped() bool {
	if d.Stop == nil {
		return false
	}
	select {
	case <-d.Stop:
		return true
	default:
		return false
	}
}

// SaveGlobals writes an opaque checkpoint of the global parameters.
func (d *Driver) SaveGlobals(w io.Writer) error {
	err := gob.NewEncoder(w).Encode(d.Global)
	if err != nil {
		return errors.Wrapf(err, "Could not encode global checkpoint")
	}
	return nil
}

// LoadGlobals restores global parameters from a checkpoint written by
// SaveGlobals, in place so shared references stay valid.
func (d *Driver) LoadGlobals(r io.Reader) error {
	var vals []float64
	err := gob.NewDecoder(r).Decode(&vals)
	if err != nil {
		return errors.Wrapf(err, "Could not decode global checkpoint")
	}
	if len(vals) != len(d.Global) {
		return errors.Wrapf(ErrShape,
			"Checkpoint has len %d, model declares %d", len(vals), len(d.Global))
	}
	copy(d.Global, vals)
	return nil
}
