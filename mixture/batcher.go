package mixture

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/CraigKelly/varsub/infer"
	"github.com/CraigKelly/varsub/rand"
)

// GenerativeBatcher is a Batcher that samples observations from the true
// mixture on demand instead of holding an N-sized dataset in memory. An
// index is drawn uniformly from [0, n) and the value is generated fresh;
// decoupling the two is valid because the driver's default sampling policy
// is i.i.d. with replacement, where index identity never matters.
type GenerativeBatcher struct {
	mx    *Mixture
	gen   *rand.Generator
	n     int
	means [][]float64
	noise distuv.Normal
}

// NewGenerativeBatcher creates a synthetic data source over n notional data
// points drawn from the mixture with the given true means.
func (mx *Mixture) NewGenerativeBatcher(gen *rand.Generator, n int, trueMeans [][]float64) (*GenerativeBatcher, error) {
	if gen == nil {
		return nil, errors.New("A random generator is required")
	}
	if n < 1 {
		return nil, errors.Errorf("Invalid data size %d", n)
	}
	if len(trueMeans) != mx.K {
		return nil, errors.Errorf("Need %d true means, got %d", mx.K, len(trueMeans))
	}
	for c, mu := range trueMeans {
		if len(mu) != mx.D {
			return nil, errors.Errorf("True mean %d has dim %d, want %d", c, len(mu), mx.D)
		}
	}

	return &GenerativeBatcher{
		mx:    mx,
		gen:   gen,
		n:     n,
		means: trueMeans,
		noise: distuv.Normal{Mu: 0, Sigma: mx.Sigma, Src: rand.NewSource(gen)},
	}, nil
}

// component draws a cluster index from the mixing weights.
func (g *GenerativeBatcher) component() int {
	u := g.gen.Float64()
	acc := 0.0
	for c, w := range g.mx.Weights {
		acc += w
		if u < acc {
			return c
		}
	}
	return g.mx.K - 1
}

// NextBatch implements infer.Batcher.
func (g *GenerativeBatcher) NextBatch(size int) (*infer.Batch, error) {
	if size < 1 {
		return nil, errors.Errorf("Invalid batch size %d", size)
	}
	if size > g.n {
		return nil, errors.Errorf("Batch size %d exceeds data size %d", size, g.n)
	}

	b := &infer.Batch{
		Indices: make([]int, size),
		Obs:     make([][]float64, size),
	}

	for i := 0; i < size; i++ {
		b.Indices[i] = g.gen.Intn(g.n)

		c := g.component()
		x := make([]float64, g.mx.D)
		for j := range x {
			x[j] = g.means[c][j] + g.noise.Rand()
		}
		b.Obs[i] = x
	}

	return b, nil
}
