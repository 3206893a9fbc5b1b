package infer

import (
	"github.com/CraigKelly/varsub/model"
)

// Shared fixtures: a tiny 1-dim mean-fit model. The global site is a single
// location mu, each batch element has a single local value pulled toward its
// observation, and the data term is quadratic so gradients are trivial to
// verify by hand.

func testModel(n int) *model.Model {
	mod, err := model.NewModel("mean-fit", []*model.Site{
		{ID: 0, Name: "mu", Role: model.GLOBAL, Dim: 1},
		{ID: 1, Name: "z", Role: model.LOCAL, Dim: 1},
		{ID: 2, Name: "x", Role: model.OBSERVED, Dim: 1},
	}, n)
	if err != nil {
		panic(err)
	}
	return mod
}

func testProblem() *Problem {
	return &Problem{
		ObservedSite: "x",
		GlobalDim:    1,
		LocalDim:     1,

		SampleLoss: func(sg *Subgraph, i int) float64 {
			d := sg.Global[0] - sg.Batch.Obs[i][0]
			return 0.5 * d * d
		},
		PriorLoss: func(sg *Subgraph) float64 {
			return 0
		},
		SampleGlobalGrad: func(dst []float64, sg *Subgraph, i int) {
			dst[0] += sg.Global[0] - sg.Batch.Obs[i][0]
		},
		PriorGlobalGrad: func(dst []float64, sg *Subgraph) {},
		LocalGrad: func(dst []float64, sg *Subgraph, i int, scale float64) {
			dst[0] = scale * (sg.Local.Rows[i][0] - sg.Batch.Obs[i][0])
		},
	}
}

func constBatch(m int, val float64) *Batch {
	b := &Batch{
		Indices: make([]int, m),
		Obs:     make([][]float64, m),
	}
	for i := 0; i < m; i++ {
		b.Indices[i] = i
		b.Obs[i] = []float64{val}
	}
	return b
}
