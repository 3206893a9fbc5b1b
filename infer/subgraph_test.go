package infer

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestBind(t *testing.T) {
	assert := assert.New(t)

	mod := testModel(100)

	store, err := NewEphemeralStore(1)
	assert.NoError(err)

	batch := constBatch(4, 1.0)
	local, err := store.Allocate(batch.Indices)
	assert.NoError(err)

	global := []float64{0}

	sg, err := Bind(mod, batch, global, local)
	assert.NoError(err)
	assert.Equal(4, sg.Size())

	// Missing model
	_, err = Bind(nil, batch, global, local)
	assert.Error(err)

	// Batch size M disagreeing between observations and local params
	smallLocal, err := store.Allocate(batch.Indices[:3])
	assert.NoError(err)
	_, err = Bind(mod, batch, global, smallLocal)
	assert.Error(err)
	assert.Equal(ErrDimensionMismatch, errors.Cause(err))

	// Global length vs declared dim
	local, err = store.Allocate(batch.Indices)
	assert.NoError(err)
	_, err = Bind(mod, batch, []float64{0, 0}, local)
	assert.Error(err)
	assert.Equal(ErrShape, errors.Cause(err))

	// Local row length vs declared dim
	wideStore, err := NewEphemeralStore(2)
	assert.NoError(err)
	wideLocal, err := wideStore.Allocate(batch.Indices)
	assert.NoError(err)
	_, err = Bind(mod, batch, global, wideLocal)
	assert.Error(err)
	assert.Equal(ErrShape, errors.Cause(err))

	// Batch indices out of the model's data range
	badBatch := constBatch(4, 1.0)
	badBatch.Indices[2] = 100
	badLocal, err := store.Allocate(badBatch.Indices)
	assert.NoError(err)
	_, err = Bind(mod, badBatch, global, badLocal)
	assert.Error(err)
}

// Bind is pure: two binds over disjoint stores are independent
func TestBindIndependent(t *testing.T) {
	assert := assert.New(t)

	mod := testModel(100)

	s1, _ := NewEphemeralStore(1)
	s2, _ := NewEphemeralStore(1)

	b1 := constBatch(2, 1.0)
	b2 := constBatch(3, 2.0)

	l1, err := s1.Allocate(b1.Indices)
	assert.NoError(err)
	l2, err := s2.Allocate(b2.Indices)
	assert.NoError(err)

	global := []float64{0}

	sg1, err := Bind(mod, b1, global, l1)
	assert.NoError(err)
	sg2, err := Bind(mod, b2, global, l2)
	assert.NoError(err)

	sg1.Local.Rows[0][0] = 42.0
	assert.Equal(0.0, sg2.Local.Rows[0][0])

	// Both see the same shared global cell
	global[0] = 7.0
	assert.Equal(7.0, sg1.Global[0])
	assert.Equal(7.0, sg2.Global[0])
}
