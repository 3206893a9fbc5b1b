package model

import (
	"github.com/pkg/errors"
)

// Site role constant strings
const (
	GLOBAL   = "GLOBAL"   // one instance shared across the whole dataset
	LOCAL    = "LOCAL"    // one instance per data index, M active per batch
	OBSERVED = "OBSERVED" // observed data plate, subsampled per batch
)

// Site represents a single named random-variable site in a hierarchical
// model. A GLOBAL site has one parameter vector for the whole run; a LOCAL
// site has one parameter vector per data index; an OBSERVED site carries the
// data values themselves and has no variational parameters.
type Site struct {
	ID   int    // A numeric ID for tracking a site
	Name string // Site name, unique within a model
	Role string // Should match a role constant
	Dim  int    // Per-instance dimensionality (params for latent, values for observed)
}

// NewSite is our standard way to create a site from an index, name, role,
// and per-instance dimension.
func NewSite(index int, name string, role string, dim int) (*Site, error) {
	if index < 0 {
		return nil, errors.Errorf("Invalid index %d for site %s", index, name)
	}
	if len(name) < 1 {
		return nil, errors.Errorf("Site %d requires a name", index)
	}
	if dim < 1 {
		return nil, errors.Errorf("Invalid dim %d for site %s", dim, name)
	}

	s := &Site{
		ID:   index,
		Name: name,
		Role: role,
		Dim:  dim,
	}

	err := s.Check()
	if err != nil {
		return nil, errors.Wrapf(err, "Could not create site %s", name)
	}

	return s, nil
}

// Clone returns a copy of the site.
func (s *Site) Clone() *Site {
	cp := &Site{
		ID:   s.ID,
		Name: s.Name,
		Role: s.Role,
		Dim:  s.Dim,
	}
	return cp
}

// Check returns an error if any problem is found
func (s *Site) Check() error {
	if s.Role != GLOBAL && s.Role != LOCAL && s.Role != OBSERVED {
		return errors.Errorf("Site %s has unknown role %s", s.Name, s.Role)
	}
	if s.Dim < 1 {
		return errors.Errorf("Site %s has dim %d - must be >= 1", s.Name, s.Dim)
	}
	return nil
}
