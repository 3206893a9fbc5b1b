package infer

import (
	"github.com/pkg/errors"
)

// Error kinds surfaced by the inference core. All are terminal for the
// current run: retrying after a shape mismatch or divergence would corrupt
// the global parameters shared by every later iteration. Callers test with
// errors.Cause.
var (
	// ErrNoActiveBatch means Current() was called on a local store before
	// Allocate (or after Reset). A caller-ordering bug.
	ErrNoActiveBatch = errors.New("no active batch")

	// ErrDimensionMismatch means the batch size M disagrees between the
	// observations and the local parameters.
	ErrDimensionMismatch = errors.New("batch dimension mismatch")

	// ErrShape means a parameter or gradient length disagrees with the
	// model's declared site dims.
	ErrShape = errors.New("shape mismatch")

	// ErrOptimizationDiverged means a loss or gradient became non-finite.
	// The update that produced it is never applied.
	ErrOptimizationDiverged = errors.New("optimization diverged")
)
