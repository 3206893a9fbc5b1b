package infer

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// LocalParams holds the live variational parameters for the local sites of
// the active batch: one row per batch element, in batch order. Rows may be
// views into a larger backing matrix, so writes through Rows are visible to
// the owning store.
type LocalParams struct {
	Indices []int
	Rows    [][]float64
}

// Size returns the number of batch elements (M).
func (lp *LocalParams) Size() int {
	return len(lp.Indices)
}

// Dim returns the per-element parameter dimension.
func (lp *LocalParams) Dim() int {
	if len(lp.Rows) < 1 {
		return 0
	}
	return len(lp.Rows[0])
}

// LocalFactorStore owns the lifecycle of local variational parameters.
// Allocate acquires parameters for a batch, Current returns the live set,
// and Reset releases them: Current between a Reset and the next Allocate is
// a caller-ordering bug (ErrNoActiveBatch).
type LocalFactorStore interface {
	Allocate(indices []int) (*LocalParams, error)
	Current() (*LocalParams, error)
	Reset()
}

// EphemeralStore backs local parameters with a fresh M-row matrix per batch.
// Allocate always produces clean-slate (all-zero) parameters regardless of
// any prior batch, and the footprint stays O(M) no matter how many batches
// are processed or how large the dataset is.
type EphemeralStore struct {
	dim int
	cur *LocalParams
}

// NewEphemeralStore creates a store for local parameters of the given
// per-element dim.
func NewEphemeralStore(dim int) (*EphemeralStore, error) {
	if dim < 1 {
		return nil, errors.Errorf("Invalid local dim %d", dim)
	}
	return &EphemeralStore{dim: dim}, nil
}

// Allocate creates fresh zeroed parameters for the batch. Any previously
// active parameters are dropped.
func (e *EphemeralStore) Allocate(indices []int) (*LocalParams, error) {
	if len(indices) < 1 {
		return nil, errors.Wrapf(ErrDimensionMismatch, "Can not allocate for an empty batch")
	}

	backing := mat.NewDense(len(indices), e.dim, nil)

	lp := &LocalParams{
		Indices: append([]int(nil), indices...),
		Rows:    make([][]float64, len(indices)),
	}
	for i := range indices {
		lp.Rows[i] = backing.RawRowView(i)
	}

	e.cur = lp
	return lp, nil
}

// Current returns the live parameters for the active batch.
func (e *EphemeralStore) Current() (*LocalParams, error) {
	if e.cur == nil {
		return nil, errors.Wrapf(ErrNoActiveBatch, "Allocate must be called before Current")
	}
	return e.cur, nil
}

// Reset discards the active parameters. They carry no information into the
// next batch by design.
func (e *EphemeralStore) Reset() {
	e.cur = nil
}

// DenseStore backs local parameters with a persistent N-row matrix: Allocate
// is a row-view projection for the batch indices and Reset is a no-op, so
// per-index parameter values survive across batches. This trades O(N) memory
// for warm starts when indices repeat.
type DenseStore struct {
	backing *mat.Dense
	n       int
	dim     int
	cur     *LocalParams
}

// NewDenseStore creates a persistent store over n data indices.
func NewDenseStore(n int, dim int) (*DenseStore, error) {
	if n < 1 {
		return nil, errors.Errorf("Invalid data size %d", n)
	}
	if dim < 1 {
		return nil, errors.Errorf("Invalid local dim %d", dim)
	}
	return &DenseStore{
		backing: mat.NewDense(n, dim, nil),
		n:       n,
		dim:     dim,
	}, nil
}

// Allocate projects the batch indices onto the backing matrix. The returned
// rows are live views: updates write straight through.
func (d *DenseStore) Allocate(indices []int) (*LocalParams, error) {
	if len(indices) < 1 {
		return nil, errors.Wrapf(ErrDimensionMismatch, "Can not allocate for an empty batch")
	}

	lp := &LocalParams{
		Indices: append([]int(nil), indices...),
		Rows:    make([][]float64, len(indices)),
	}
	for i, idx := range indices {
		if idx < 0 || idx >= d.n {
			return nil, errors.Errorf("Batch index %d out of range [0, %d)", idx, d.n)
		}
		lp.Rows[i] = d.backing.RawRowView(idx)
	}

	d.cur = lp
	return lp, nil
}

// Current returns the live parameters for the most recent projection.
func (d *DenseStore) Current() (*LocalParams, error) {
	if d.cur == nil {
		return nil, errors.Wrapf(ErrNoActiveBatch, "Allocate must be called before Current")
	}
	return d.cur, nil
}

// Reset is a no-op: the backing matrix persists across batches.
func (d *DenseStore) Reset() {}
