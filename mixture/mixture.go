// Package mixture provides a synthetic K-cluster Gaussian mixture backend
// for the subsampling driver: the global latent is the flattened K x D
// matrix of cluster means, each data point carries a local categorical
// factor (K logits) over cluster assignments, and observations are D-dim
// points. Gradients are analytic, so the package doubles as the reference
// backend for end-to-end testing.
package mixture

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/CraigKelly/varsub/infer"
	"github.com/CraigKelly/varsub/model"
	"github.com/CraigKelly/varsub/rand"
)

// Site names used in the generated model
const (
	MeansSite  = "mu"
	AssignSite = "z"
	ObsSite    = "x"
)

// Mixture describes a spherical Gaussian mixture.
type Mixture struct {
	K          int       // cluster count
	D          int       // observation dimension
	Sigma      float64   // shared observation noise stddev
	PriorSigma float64   // Gaussian prior stddev on the means
	Weights    []float64 // mixing weights, sum to 1
}

// New creates a mixture with uniform weights and a weak prior on the means.
func New(k int, d int, sigma float64) (*Mixture, error) {
	if k < 2 {
		return nil, errors.Errorf("Cluster count %d must be >= 2", k)
	}
	if d < 1 {
		return nil, errors.Errorf("Dimension %d must be >= 1", d)
	}
	if sigma <= 0 {
		return nil, errors.Errorf("Noise stddev %f must be positive", sigma)
	}

	w := make([]float64, k)
	for i := range w {
		w[i] = 1.0 / float64(k)
	}

	return &Mixture{
		K:          k,
		D:          d,
		Sigma:      sigma,
		PriorSigma: 10.0,
		Weights:    w,
	}, nil
}

// Model builds the three-site hierarchical model over n data points.
func (mx *Mixture) Model(name string, n int) (*model.Model, error) {
	sites := []*model.Site{
		{ID: 0, Name: MeansSite, Role: model.GLOBAL, Dim: mx.K * mx.D},
		{ID: 1, Name: AssignSite, Role: model.LOCAL, Dim: mx.K},
		{ID: 2, Name: ObsSite, Role: model.OBSERVED, Dim: mx.D},
	}
	return model.NewModel(name, sites, n)
}

// mean returns the view of cluster k's mean inside the flattened globals.
func (mx *Mixture) mean(globals []float64, k int) []float64 {
	return globals[k*mx.D : (k+1)*mx.D]
}

// logLik returns log N(x | mu_k, sigma^2 I) + log w_k for every k.
func (mx *Mixture) logLik(dst []float64, x []float64, globals []float64) {
	v := mx.Sigma * mx.Sigma
	lnc := -0.5 * float64(mx.D) * math.Log(2.0*math.Pi*v)
	for k := 0; k < mx.K; k++ {
		mu := mx.mean(globals, k)
		sq := 0.0
		for j, xj := range x {
			d := xj - mu[j]
			sq += d * d
		}
		dst[k] = lnc - sq/(2.0*v) + math.Log(mx.Weights[k])
	}
}

// softmax writes a numerically stable softmax of logits into dst.
func softmax(dst []float64, logits []float64) {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	sum := 0.0
	for i, v := range logits {
		dst[i] = math.Exp(v - max)
		sum += dst[i]
	}
	floats.Scale(1.0/sum, dst)
}

// Problem returns the per-sample objective and analytic gradients for the
// driver. The loss convention is negative ELBO per element: expected data
// log-likelihood under the local categorical plus its entropy, negated, with
// a Gaussian prior term on the means as the unscaled global contribution.
func (mx *Mixture) Problem() *infer.Problem {
	return &infer.Problem{
		ObservedSite: ObsSite,
		GlobalDim:    mx.K * mx.D,
		LocalDim:     mx.K,

		SampleLoss: func(sg *infer.Subgraph, i int) float64 {
			r := make([]float64, mx.K)
			a := make([]float64, mx.K)
			softmax(r, sg.Local.Rows[i])
			mx.logLik(a, sg.Batch.Obs[i], sg.Global)

			elbo := 0.0
			for k, rk := range r {
				if rk > 0 {
					elbo += rk * (a[k] - math.Log(rk))
				}
			}
			return -elbo
		},

		PriorLoss: func(sg *infer.Subgraph) float64 {
			v := mx.PriorSigma * mx.PriorSigma
			sum := 0.0
			for _, g := range sg.Global {
				sum += g * g
			}
			return sum / (2.0 * v)
		},

		SampleGlobalGrad: func(dst []float64, sg *infer.Subgraph, i int) {
			r := make([]float64, mx.K)
			softmax(r, sg.Local.Rows[i])

			x := sg.Batch.Obs[i]
			v := mx.Sigma * mx.Sigma
			for k, rk := range r {
				mu := mx.mean(sg.Global, k)
				for j, xj := range x {
					// d(-elbo)/d mu_kj
					dst[k*mx.D+j] += -rk * (xj - mu[j]) / v
				}
			}
		},

		PriorGlobalGrad: func(dst []float64, sg *infer.Subgraph) {
			v := mx.PriorSigma * mx.PriorSigma
			for j, g := range sg.Global {
				dst[j] += g / v
			}
		},

		LocalGrad: func(dst []float64, sg *infer.Subgraph, i int, scale float64) {
			r := make([]float64, mx.K)
			a := make([]float64, mx.K)
			softmax(r, sg.Local.Rows[i])
			mx.logLik(a, sg.Batch.Obs[i], sg.Global)

			// b_k = a_k - log r_k; d(elbo)/d theta_k = r_k * (b_k - sum_j r_j b_j)
			b := make([]float64, mx.K)
			rb := 0.0
			for k, rk := range r {
				lr := -745.0 // ~log of smallest positive double
				if rk > 0 {
					lr = math.Log(rk)
				}
				b[k] = a[k] - lr
				rb += rk * b[k]
			}
			for k, rk := range r {
				dst[k] = -scale * rk * (b[k] - rb)
			}
		},
	}
}

// InitGlobals draws a small random initialization for the means so symmetry
// between clusters is broken.
func (mx *Mixture) InitGlobals(gen *rand.Generator) []float64 {
	init := distuv.Normal{Mu: 0, Sigma: 0.5, Src: rand.NewSource(gen)}
	g := make([]float64, mx.K*mx.D)
	for i := range g {
		g[i] = init.Rand()
	}
	return g
}

// Responsibilities returns the optimal local factor for a single point given
// fitted means: the softmax of the per-cluster log-likelihoods.
func (mx *Mixture) Responsibilities(x []float64, globals []float64) []float64 {
	a := make([]float64, mx.K)
	mx.logLik(a, x, globals)
	r := make([]float64, mx.K)
	softmax(r, a)
	return r
}

// SpreadMeans lays k well-separated true centers on a circle of the given
// radius in the first two dims (a line when d == 1). Deterministic, which
// keeps synthetic fits reproducible.
func SpreadMeans(k int, d int, radius float64) [][]float64 {
	means := make([][]float64, k)
	for c := 0; c < k; c++ {
		mu := make([]float64, d)
		angle := 2.0 * math.Pi * float64(c) / float64(k)
		if d == 1 {
			mu[0] = radius * (2.0*float64(c)/float64(k-1) - 1.0)
		} else {
			mu[0] = radius * math.Cos(angle)
			mu[1] = radius * math.Sin(angle)
		}
		means[c] = mu
	}
	return means
}

// CenterDistance reports the mean L2 distance between fitted and true
// centers under a greedy one-to-one matching (each true center claims the
// nearest unclaimed fitted center). Used as the recovery metric: after a
// successful fit this should be small relative to the center separation.
func CenterDistance(globals []float64, trueMeans [][]float64, k int, d int) float64 {
	used := make([]bool, k)
	total := 0.0

	for _, tm := range trueMeans {
		best := -1
		bestDist := math.Inf(1)
		for c := 0; c < k; c++ {
			if used[c] {
				continue
			}
			dist := floats.Distance(tm, globals[c*d:(c+1)*d], 2)
			if dist < bestDist {
				bestDist = dist
				best = c
			}
		}
		used[best] = true
		total += bestDist
	}

	return total / float64(k)
}
