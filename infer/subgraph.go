package infer

import (
	"github.com/pkg/errors"

	"github.com/CraigKelly/varsub/model"
)

// Subgraph is the restriction of a full model to the global sites plus the
// local sites and observations of one batch. Binding is a pure function over
// its inputs: the subgraph holds references (the global cell and local rows
// are live), but Bind itself retains no state between calls.
type Subgraph struct {
	Model  *model.Model
	Batch  *Batch
	Global []float64 // the run's single shared mutable cell
	Local  *LocalParams
}

// Bind constructs the restricted joint/variational pair for one batch.
// Fails with ErrDimensionMismatch if the batch size M disagrees between
// observations and local parameters, and with ErrShape if any parameter
// length disagrees with the model's declared dims.
func Bind(mod *model.Model, batch *Batch, global []float64, local *LocalParams) (*Subgraph, error) {
	if mod == nil {
		return nil, errors.New("No model supplied")
	}

	if err := batch.Check(mod.ObservedDim()); err != nil {
		return nil, err
	}

	if batch.Size() != local.Size() {
		return nil, errors.Wrapf(ErrDimensionMismatch,
			"Batch has %d observations but %d local parameter rows", batch.Size(), local.Size())
	}

	if len(global) != mod.GlobalDim() {
		return nil, errors.Wrapf(ErrShape,
			"Global params have len %d, model declares %d", len(global), mod.GlobalDim())
	}

	for i, row := range local.Rows {
		if len(row) != mod.LocalDim() {
			return nil, errors.Wrapf(ErrShape,
				"Local row %d has len %d, model declares %d", i, len(row), mod.LocalDim())
		}
	}

	for _, idx := range batch.Indices {
		if idx < 0 || idx >= mod.DataSize {
			return nil, errors.Errorf("Batch index %d out of range [0, %d)", idx, mod.DataSize)
		}
	}

	return &Subgraph{
		Model:  mod,
		Batch:  batch,
		Global: global,
		Local:  local,
	}, nil
}

// Size returns the batch size M of the bound subgraph.
func (sg *Subgraph) Size() int {
	return sg.Batch.Size()
}
