package model

import (
	"github.com/pkg/errors"
)

// Model represents a global+local hierarchical model as a set of named
// random-variable sites. Edges are implied by role: global sites condition
// local sites, local sites condition their observation plate. DataSize is N,
// the total number of data indices behind the observed plate.
type Model struct {
	Name     string  // Model name
	Sites    []*Site // Sites (nodes) in the model
	DataSize int     // Total dataset size N for the observed plate
}

// NewModel creates and validates a model over the given sites.
func NewModel(name string, sites []*Site, dataSize int) (*Model, error) {
	m := &Model{
		Name:     name,
		Sites:    sites,
		DataSize: dataSize,
	}

	err := m.Check()
	if err != nil {
		return nil, errors.Wrapf(err, "Model %s is not valid", name)
	}

	return m, nil
}

// Clone returns a copy of the current model.
func (m *Model) Clone() *Model {
	cp := &Model{
		Name:     m.Name,
		Sites:    make([]*Site, len(m.Sites)),
		DataSize: m.DataSize,
	}

	for i, s := range m.Sites {
		cp.Sites[i] = s.Clone()
	}

	return cp
}

// Check returns an error if there is a problem with the model
func (m *Model) Check() error {
	if m.DataSize < 1 {
		return errors.Errorf("Model %s has data size %d - must be >= 1", m.Name, m.DataSize)
	}

	siteID := make(map[int]bool)
	siteName := make(map[string]bool)
	roleCount := make(map[string]int)

	for _, s := range m.Sites {
		e := s.Check()
		if e != nil {
			return errors.Wrapf(e, "Model %s has an invalid Site %s", m.Name, s.Name)
		}

		if _, ok := siteID[s.ID]; ok {
			return errors.Errorf("Duplicate Id %d for Site %s", s.ID, s.Name)
		}
		siteID[s.ID] = true

		if _, ok := siteName[s.Name]; ok {
			return errors.Errorf("Duplicate Name %s for Site %d", s.Name, s.ID)
		}
		siteName[s.Name] = true

		roleCount[s.Role]++
	}

	if roleCount[GLOBAL] < 1 {
		return errors.Errorf("Model %s has no global sites", m.Name)
	}
	if roleCount[OBSERVED] < 1 {
		return errors.Errorf("Model %s has no observed sites", m.Name)
	}
	if roleCount[LOCAL] < 1 {
		return errors.Errorf("Model %s has no local sites", m.Name)
	}

	return nil
}

// ByName returns the site with the given name or nil.
func (m *Model) ByName(name string) *Site {
	for _, s := range m.Sites {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// roleDim sums per-instance dims over sites with the given role.
func (m *Model) roleDim(role string) int {
	d := 0
	for _, s := range m.Sites {
		if s.Role == role {
			d += s.Dim
		}
	}
	return d
}

// GlobalDim is the total dimensionality of the global parameter vector.
func (m *Model) GlobalDim() int {
	return m.roleDim(GLOBAL)
}

// LocalDim is the per-instance dimensionality of the local parameter vector.
func (m *Model) LocalDim() int {
	return m.roleDim(LOCAL)
}

// ObservedDim is the per-instance dimensionality of an observation.
func (m *Model) ObservedDim() int {
	return m.roleDim(OBSERVED)
}
