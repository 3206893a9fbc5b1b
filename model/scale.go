package model

import (
	"github.com/pkg/errors"
)

// ErrUnknownSite is returned when a scale lookup names a site that was never
// registered. This is a caller-ordering bug, not a transient condition.
var ErrUnknownSite = errors.New("unknown site")

// ScaleTable maps each site to a scalar correction factor on its
// log-probability contribution. Subsampled plates carry N/M so that a sum
// over an M-sized batch is an unbiased estimate of the full-data sum;
// non-subsampled sites carry 1.
type ScaleTable struct {
	factors map[string]float64
}

// NewScaleTable registers every site in the model at factor 1.
func NewScaleTable(m *Model) *ScaleTable {
	t := &ScaleTable{
		factors: make(map[string]float64, len(m.Sites)),
	}
	for _, s := range m.Sites {
		t.factors[s.Name] = 1.0
	}
	return t
}

// Get returns the factor for the given site.
func (t *ScaleTable) Get(site string) (float64, error) {
	f, ok := t.factors[site]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownSite, "No scale factor for site %s", site)
	}
	return f, nil
}

// Set overrides the factor for the given site.
func (t *ScaleTable) Set(site string, factor float64) error {
	if _, ok := t.factors[site]; !ok {
		return errors.Wrapf(ErrUnknownSite, "Can not set scale factor for site %s", site)
	}
	if factor <= 0 {
		return errors.Errorf("Scale factor for site %s must be positive, got %f", site, factor)
	}
	t.factors[site] = factor
	return nil
}

// SetPlate sets the site's factor to the subsampling correction N/M.
func (t *ScaleTable) SetPlate(site string, n int, m int) error {
	f, err := PlateScale(n, m)
	if err != nil {
		return err
	}
	return t.Set(site, f)
}

// PlateScale computes the subsampling correction N/M.
func PlateScale(n int, m int) (float64, error) {
	if m < 1 {
		return 0, errors.Errorf("Batch size %d must be >= 1", m)
	}
	if m > n {
		return 0, errors.Errorf("Batch size %d exceeds data size %d", m, n)
	}
	return float64(n) / float64(m), nil
}
