package infer

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/CraigKelly/varsub/rand"
)

func TestBatchCheck(t *testing.T) {
	assert := assert.New(t)

	good := &Batch{
		Indices: []int{3, 1},
		Obs:     [][]float64{{1, 2}, {3, 4}},
	}
	assert.NoError(good.Check(2))
	assert.Equal(2, good.Size())

	empty := &Batch{}
	err := empty.Check(2)
	assert.Error(err)
	assert.Equal(ErrDimensionMismatch, errors.Cause(err))

	mismatch := &Batch{
		Indices: []int{3, 1, 0},
		Obs:     [][]float64{{1, 2}, {3, 4}},
	}
	err = mismatch.Check(2)
	assert.Error(err)
	assert.Equal(ErrDimensionMismatch, errors.Cause(err))

	badRow := &Batch{
		Indices: []int{3, 1},
		Obs:     [][]float64{{1, 2}, {3}},
	}
	err = badRow.Check(2)
	assert.Error(err)
	assert.Equal(ErrShape, errors.Cause(err))
}

func TestUniformBatcher(t *testing.T) {
	assert := assert.New(t)

	gen, err := rand.NewGenerator(42)
	assert.NoError(err)

	data := [][]float64{{0}, {1}, {2}, {3}, {4}}

	_, err = NewUniformBatcher(nil, data)
	assert.Error(err)
	_, err = NewUniformBatcher(gen, nil)
	assert.Error(err)

	u, err := NewUniformBatcher(gen, data)
	assert.NoError(err)

	_, err = u.NextBatch(0)
	assert.Error(err)
	_, err = u.NextBatch(6)
	assert.Error(err)

	for round := 0; round < 10; round++ {
		b, err := u.NextBatch(3)
		assert.NoError(err)
		assert.Equal(3, b.Size())
		assert.NoError(b.Check(1))

		for i, idx := range b.Indices {
			assert.True(idx >= 0 && idx < len(data))
			assert.Equal(data[idx][0], b.Obs[i][0])
		}
	}
}
