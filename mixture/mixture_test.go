package mixture

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CraigKelly/varsub/infer"
	"github.com/CraigKelly/varsub/model"
	"github.com/CraigKelly/varsub/rand"
)

func TestNewMixture(t *testing.T) {
	assert := assert.New(t)

	mx, err := New(5, 2, 0.5)
	assert.NoError(err)
	assert.Equal(5, mx.K)
	assert.InDelta(0.2, mx.Weights[0], 1e-12)

	_, err = New(1, 2, 0.5)
	assert.Error(err)
	_, err = New(5, 0, 0.5)
	assert.Error(err)
	_, err = New(5, 2, 0.0)
	assert.Error(err)
}

func TestMixtureModel(t *testing.T) {
	assert := assert.New(t)

	mx, err := New(3, 4, 0.5)
	assert.NoError(err)

	mod, err := mx.Model("gmm", 1000)
	assert.NoError(err)
	assert.NoError(mod.Check())
	assert.Equal(12, mod.GlobalDim())
	assert.Equal(3, mod.LocalDim())
	assert.Equal(4, mod.ObservedDim())
	assert.Equal(model.GLOBAL, mod.ByName(MeansSite).Role)
	assert.Equal(model.LOCAL, mod.ByName(AssignSite).Role)
	assert.Equal(model.OBSERVED, mod.ByName(ObsSite).Role)
}

func TestResponsibilities(t *testing.T) {
	assert := assert.New(t)

	mx, err := New(2, 1, 0.5)
	assert.NoError(err)

	// Means at -2 and +2; a point at 1.9 overwhelmingly belongs to cluster 1
	globals := []float64{-2.0, 2.0}
	r := mx.Responsibilities([]float64{1.9}, globals)

	sum := 0.0
	for _, v := range r {
		sum += v
	}
	assert.InDelta(1.0, sum, 1e-9)
	assert.True(r[1] > 0.99)

	// Equidistant point splits evenly under uniform weights
	r = mx.Responsibilities([]float64{0.0}, globals)
	assert.InDelta(0.5, r[0], 1e-9)
	assert.InDelta(0.5, r[1], 1e-9)
}

// At the optimal local factor (logits equal to the per-cluster
// log-likelihoods) the local gradient vanishes.
func TestLocalGradAtOptimum(t *testing.T) {
	assert := assert.New(t)

	mx, err := New(3, 2, 0.5)
	assert.NoError(err)

	mod, err := mx.Model("gmm", 100)
	assert.NoError(err)

	store, err := infer.NewEphemeralStore(mod.LocalDim())
	assert.NoError(err)

	batch := &infer.Batch{
		Indices: []int{0},
		Obs:     [][]float64{{0.3, -0.1}},
	}
	local, err := store.Allocate(batch.Indices)
	assert.NoError(err)

	globals := []float64{1, 0, -1, 0, 0, 1}

	// Set the logits to the analytic optimum
	a := make([]float64, 3)
	mx.logLik(a, batch.Obs[0], globals)
	copy(local.Rows[0], a)

	sg, err := infer.Bind(mod, batch, globals, local)
	assert.NoError(err)

	prob := mx.Problem()
	grad := make([]float64, 3)
	prob.LocalGrad(grad, sg, 0, 50.0)
	for _, g := range grad {
		assert.InDelta(0.0, g, 1e-9)
	}
}

// The global gradient pulls a fully-responsible cluster mean toward the
// observation and leaves other clusters mostly alone.
func TestGlobalGradDirection(t *testing.T) {
	assert := assert.New(t)

	mx, err := New(2, 1, 0.5)
	assert.NoError(err)

	mod, err := mx.Model("gmm", 100)
	assert.NoError(err)

	store, err := infer.NewEphemeralStore(mod.LocalDim())
	assert.NoError(err)

	batch := &infer.Batch{
		Indices: []int{0},
		Obs:     [][]float64{{3.0}},
	}
	local, err := store.Allocate(batch.Indices)
	assert.NoError(err)
	// Hard-assign to cluster 0
	local.Rows[0][0] = 50.0
	local.Rows[0][1] = -50.0

	globals := []float64{0.0, -3.0}
	sg, err := infer.Bind(mod, batch, globals, local)
	assert.NoError(err)

	prob := mx.Problem()
	grad := make([]float64, 2)
	prob.SampleGlobalGrad(grad, sg, 0)

	// Loss gradient for cluster 0 is negative: descent moves mu_0 toward 3
	assert.True(grad[0] < 0)
	assert.InDelta(0.0, grad[1], 1e-9)
}

func TestSpreadMeans(t *testing.T) {
	assert := assert.New(t)

	means := SpreadMeans(5, 2, 3.0)
	assert.Equal(5, len(means))

	// All on the radius-3 circle, pairwise distinct
	for i, mu := range means {
		assert.InDelta(9.0, mu[0]*mu[0]+mu[1]*mu[1], 1e-9)
		for j := i + 1; j < len(means); j++ {
			d := 0.0
			for k := range mu {
				dd := mu[k] - means[j][k]
				d += dd * dd
			}
			assert.True(d > 1.0)
		}
	}

	line := SpreadMeans(3, 1, 3.0)
	assert.InDelta(-3.0, line[0][0], 1e-9)
	assert.InDelta(3.0, line[2][0], 1e-9)
}

func TestCenterDistance(t *testing.T) {
	assert := assert.New(t)

	trueMeans := [][]float64{{0, 0}, {4, 0}}

	// Exact match in permuted order scores zero
	globals := []float64{4, 0, 0, 0}
	assert.InDelta(0.0, CenterDistance(globals, trueMeans, 2, 2), 1e-9)

	// One center off by 1 in one coordinate: mean distance 0.5
	globals = []float64{4, 1, 0, 0}
	assert.InDelta(0.5, CenterDistance(globals, trueMeans, 2, 2), 1e-9)
}

func TestGenerativeBatcher(t *testing.T) {
	assert := assert.New(t)

	gen, err := rand.NewGenerator(7)
	assert.NoError(err)

	mx, err := New(2, 2, 0.1)
	assert.NoError(err)

	trueMeans := [][]float64{{-5, 0}, {5, 0}}

	_, err = mx.NewGenerativeBatcher(nil, 100, trueMeans)
	assert.Error(err)
	_, err = mx.NewGenerativeBatcher(gen, 0, trueMeans)
	assert.Error(err)
	_, err = mx.NewGenerativeBatcher(gen, 100, trueMeans[:1])
	assert.Error(err)

	src, err := mx.NewGenerativeBatcher(gen, 100, trueMeans)
	assert.NoError(err)

	_, err = src.NextBatch(0)
	assert.Error(err)
	_, err = src.NextBatch(101)
	assert.Error(err)

	b, err := src.NextBatch(64)
	assert.NoError(err)
	assert.Equal(64, b.Size())
	assert.NoError(b.Check(2))

	// Every point lies near one of the two well-separated centers
	nearLeft := 0
	for i, x := range b.Obs {
		assert.True(b.Indices[i] >= 0 && b.Indices[i] < 100)
		if x[0] < 0 {
			assert.InDelta(-5.0, x[0], 1.5)
			nearLeft++
		} else {
			assert.InDelta(5.0, x[0], 1.5)
		}
	}
	// Both components actually produce points
	assert.True(nearLeft > 5 && nearLeft < 59)
}

// End-to-end subsampled fit: N=10M points (generated on demand), M=128,
// K=5 clusters in 2 dims, 1000 outer iterations with 10 local refinement
// steps each. The fitted cluster means must move from their init toward the
// true generating centers.
func TestMixtureRecovery(t *testing.T) {
	assert := assert.New(t)

	const (
		k          = 5
		d          = 2
		n          = 10000000
		m          = 128
		outerIters = 1000
		localIters = 10
	)

	gen, err := rand.NewGenerator(42)
	assert.NoError(err)

	mx, err := New(k, d, 0.5)
	assert.NoError(err)

	mod, err := mx.Model("gmm-e2e", n)
	assert.NoError(err)

	trueMeans := SpreadMeans(k, d, 3.0)
	source, err := mx.NewGenerativeBatcher(gen, n, trueMeans)
	assert.NoError(err)

	store, err := infer.NewEphemeralStore(mod.LocalDim())
	assert.NoError(err)

	// Learning rates sized against the N/M plate scale: the global rate
	// sigma^2/N makes one step move each mean a responsibility-weighted
	// fraction toward the batch centroid; the local rate 1/scale cancels
	// the plate factor on the logit updates.
	scale := float64(n) / float64(m)
	globalStep := infer.NewSGD(mx.Sigma*mx.Sigma/float64(n), 0.0)
	localStep := infer.NewSGD(1.0/scale, 0.0)

	globals := mx.InitGlobals(gen)
	initDist := CenterDistance(globals, trueMeans, k, d)

	driver, err := infer.NewDriver(mod, mx.Problem(), store, source, globals, globalStep, localStep)
	assert.NoError(err)

	err = driver.Run(outerIters, localIters, m)
	assert.NoError(err)

	finalDist := CenterDistance(globals, trueMeans, k, d)

	// Not exact recovery: just verifiably closer than the init
	assert.True(finalDist < initDist/2,
		"center distance did not improve enough: %f -> %f", initDist, finalDist)
	assert.Equal(int64(outerIters), driver.TotalOuterIters)
}
