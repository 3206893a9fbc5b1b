package infer

import (
	"github.com/pkg/errors"

	"github.com/CraigKelly/varsub/rand"
)

// Batch is an ordered minibatch: M data indices drawn from [0, N) plus the M
// observed values at those indices.
type Batch struct {
	Indices []int
	Obs     [][]float64 // len(Indices) rows, each of the model's observed dim
}

// Size returns M for the batch.
func (b *Batch) Size() int {
	return len(b.Indices)
}

// Check validates the batch against the expected observation dim.
func (b *Batch) Check(obsDim int) error {
	if len(b.Indices) != len(b.Obs) {
		return errors.Wrapf(ErrDimensionMismatch,
			"Batch has %d indices but %d observations", len(b.Indices), len(b.Obs))
	}
	if len(b.Indices) < 1 {
		return errors.Wrapf(ErrDimensionMismatch, "Batch is empty")
	}
	for i, row := range b.Obs {
		if len(row) != obsDim {
			return errors.Wrapf(ErrShape,
				"Observation %d has dim %d, model declares %d", i, len(row), obsDim)
		}
	}
	return nil
}

// Batcher is the external data source feeding the driver. Implementations
// choose the sampling scheme; the driver makes no assumption beyond fresh
// batches of the requested size.
type Batcher interface {
	NextBatch(size int) (*Batch, error)
}

// UniformBatcher draws batches i.i.d. uniformly WITH replacement from an
// in-memory dataset, across calls and within a batch. This is the default
// sampling policy assumed by the driver; callers wanting shuffled epochs or
// without-replacement draws supply their own Batcher.
type UniformBatcher struct {
	Gen  *rand.Generator
	Data [][]float64
}

// NewUniformBatcher creates a batcher over the given dataset.
func NewUniformBatcher(gen *rand.Generator, data [][]float64) (*UniformBatcher, error) {
	if gen == nil {
		return nil, errors.New("A random generator is required")
	}
	if len(data) < 1 {
		return nil, errors.New("Can not batch an empty dataset")
	}
	return &UniformBatcher{Gen: gen, Data: data}, nil
}

// NextBatch returns a fresh uniform batch of the given size.
func (u *UniformBatcher) NextBatch(size int) (*Batch, error) {
	if size < 1 {
		return nil, errors.Errorf("Invalid batch size %d", size)
	}
	if size > len(u.Data) {
		return nil, errors.Errorf("Batch size %d exceeds data size %d", size, len(u.Data))
	}

	b := &Batch{
		Indices: make([]int, size),
		Obs:     make([][]float64, size),
	}

	for i := 0; i < size; i++ {
		idx := u.Gen.Intn(len(u.Data))
		b.Indices[i] = idx
		b.Obs[i] = u.Data[idx]
	}

	return b, nil
}
