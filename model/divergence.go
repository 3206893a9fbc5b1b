package model

import (
	"math"
)

// Divergence helpers for comparing two discrete probability vectors. Inputs
// are assumed positive but need not be normalized; each function normalizes
// before comparing. Used for fit diagnostics (e.g. estimated vs true mixture
// weights) rather than inside the optimization itself.

// Measure is a function comparing two discrete distributions.
type Measure func(p1 []float64, p2 []float64) float64

const divEps = 1e-12

func normPair(p1 []float64, p2 []float64) (tot1 float64, tot2 float64) {
	for i := range p1 {
		tot1 += p1[i]
		tot2 += p2[i]
	}
	if tot1 < divEps {
		tot1 = divEps
	}
	if tot2 < divEps {
		tot2 = divEps
	}
	return
}

// MaxAbsDiff returns the maximum difference found between the two prob dists
func MaxAbsDiff(p1 []float64, p2 []float64) float64 {
	tot1, tot2 := normPair(p1, p2)

	maxErr := 0.0
	for i := range p1 {
		err := math.Abs(p1[i]/tot1 - p2[i]/tot2)
		if i == 0 || err > maxErr {
			maxErr = err
		}
	}

	return maxErr
}

// MeanAbsDiff returns the mean of the differences found between the two prob dists
func MeanAbsDiff(p1 []float64, p2 []float64) float64 {
	if len(p1) < 1 {
		return 0
	}

	tot1, tot2 := normPair(p1, p2)

	errSum := 0.0
	for i := range p1 {
		errSum += math.Abs(p1[i]/tot1 - p2[i]/tot2)
	}

	return errSum / float64(len(p1))
}

// HellingerDiff returns the Hellinger distance between the two prob dists.
// Hellinger distance is similar to the Euclidean L2:
// sum((sqrt(p) - sqrt(q))**2) / sqrt(2)
func HellingerDiff(p1 []float64, p2 []float64) float64 {
	tot1, tot2 := normPair(p1, p2)

	errSum := 0.0
	for i := range p1 {
		d := math.Sqrt(p1[i]/tot1) - math.Sqrt(p2[i]/tot2)
		errSum += d * d // squared, so always positive
	}
	return errSum / math.Sqrt2
}

// klDivergence returns the Kullback-Leibler divergence, which is
// non-symmetric! This is strictly a subroutine for JS Divergence, so there
// is no error checking, the values are operated on directly, and the arrays
// are assumed normalized (so sum(p1) == sum(p2) == 1.0)
// klDivergence(P, Q) <==> D_{KL}(P || Q)
func klDivergence(p1 []float64, p2 []float64) float64 {
	diverge := 0.0
	for i, v1 := range p1 {
		diverge += v1 * math.Log2(v1/p2[i])
	}

	return diverge
}

// JSDivergence returns the Jensen-Shannon divergence, which is a symmetric
// generalization of the KL divergence
func JSDivergence(p1 []float64, p2 []float64) float64 {
	tot1, tot2 := normPair(p1, p2)

	card := len(p1)
	p1Norm := make([]float64, card)
	p2Norm := make([]float64, card)
	mid := make([]float64, card)
	for i := range p1 {
		p1Norm[i] = p1[i] / tot1
		p2Norm[i] = p2[i] / tot2
		mid[i] = (p1Norm[i] + p2Norm[i]) * 0.5
	}

	return 0.5 * (klDivergence(p1Norm, mid) + klDivergence(p2Norm, mid))
}
