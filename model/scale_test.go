package model

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestScaleTable(t *testing.T) {
	assert := assert.New(t)

	mod, err := NewModel("scales", testSites(), 10000)
	assert.NoError(err)

	scales := NewScaleTable(mod)

	// Everything starts at 1
	for _, s := range mod.Sites {
		f, err := scales.Get(s.Name)
		assert.NoError(err)
		assert.InDelta(1.0, f, 1e-12)
	}

	// Unknown sites are a programming error
	_, err = scales.Get("nope")
	assert.Error(err)
	assert.Equal(ErrUnknownSite, errors.Cause(err))

	err = scales.Set("nope", 2.0)
	assert.Error(err)
	assert.Equal(ErrUnknownSite, errors.Cause(err))

	// Non-positive factors rejected
	assert.Error(scales.Set("x", 0.0))
	assert.Error(scales.Set("x", -1.0))

	assert.NoError(scales.SetPlate("x", mod.DataSize, 128))
	f, err := scales.Get("x")
	assert.NoError(err)
	assert.InDelta(10000.0/128.0, f, 1e-12)
}

func TestPlateScale(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		n, m int
		exp  float64
		ok   bool
	}{
		{100, 10, 10.0, true},
		{100, 100, 1.0, true},
		{7, 3, 7.0 / 3.0, true},
		{10000000, 128, 10000000.0 / 128.0, true},
		{100, 0, 0, false},
		{100, -5, 0, false},
		{10, 11, 0, false},
	}

	for _, c := range cases {
		f, err := PlateScale(c.n, c.m)
		if c.ok {
			assert.NoError(err)
			assert.InDelta(c.exp, f, 1e-12)
		} else {
			assert.Error(err)
		}
	}
}

// Applying N/M to a per-sample loss summed over a uniform batch should
// recover the full-data sum exactly when every sample contributes equally.
func TestPlateScaleUnbiased(t *testing.T) {
	assert := assert.New(t)

	const n = 1000
	const m = 40
	const perSample = 0.37

	f, err := PlateScale(n, m)
	assert.NoError(err)

	batchSum := 0.0
	for i := 0; i < m; i++ {
		batchSum += perSample
	}

	fullSum := float64(n) * perSample
	assert.InDelta(fullSum, f*batchSum, 1e-6)
}
