package rand

import (
	exprand "golang.org/x/exp/rand"
)

// Source adapts a Generator to the golang.org/x/exp/rand Source interface so
// gonum's distuv distributions can draw from the same seeded stream.
type Source struct {
	gen *Generator
}

var _ exprand.Source = (*Source)(nil)

// NewSource wraps the given Generator.
func NewSource(gen *Generator) *Source {
	return &Source{gen: gen}
}

// Uint64 builds a full 64-bit value from two Int63 draws.
func (s *Source) Uint64() uint64 {
	hi := uint64(s.gen.Int63()) & 0xFFFFFFFF
	lo := uint64(s.gen.Int63()) & 0xFFFFFFFF
	return hi<<32 | lo
}

// Seed is a no-op: the underlying Generator is seeded once at construction
// and shared across every consumer in the run.
func (s *Source) Seed(seed uint64) {}
