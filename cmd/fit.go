package cmd

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/CraigKelly/varsub/infer"
	"github.com/CraigKelly/varsub/mixture"
	"github.com/CraigKelly/varsub/model"
	"github.com/CraigKelly/varsub/rand"
)

// trueCenterRadius spaces the synthetic cluster centers far enough apart
// that recovery failure is visible in the distance metric.
const trueCenterRadius = 3.0

// FitRun builds a synthetic K-cluster Gaussian mixture, fits it with the
// subsampling driver, and reports how well the global cluster means
// recovered the true generating centers.
func FitRun(sp *startupParams) error {
	runID := uuid.NewString()

	sp.out.Printf("varsub fit %s\n", runID)
	sp.out.Printf("Clusters:  %d, Dims: %d\n", sp.clusters, sp.dims)
	sp.out.Printf("Data N:    %d, Batch M: %d\n", sp.dataSize, sp.batchSize)
	sp.out.Printf("Outer:     %d x %d local steps\n", sp.outerIters, sp.localIters)
	sp.out.Printf("Rnd Seed:  %d\n", sp.randomSeed)

	gen, err := rand.NewGenerator(sp.randomSeed)
	if err != nil {
		return err
	}

	mx, err := mixture.New(sp.clusters, sp.dims, sp.noiseSigma)
	if err != nil {
		return err
	}

	mod, err := mx.Model("synthetic-gmm", sp.dataSize)
	if err != nil {
		return err
	}

	trueMeans := mixture.SpreadMeans(sp.clusters, sp.dims, trueCenterRadius)
	source, err := mx.NewGenerativeBatcher(gen, sp.dataSize, trueMeans)
	if err != nil {
		return err
	}

	store, err := infer.NewEphemeralStore(mod.LocalDim())
	if err != nil {
		return err
	}

	// Learning rates must be sized against the N/M plate scale or the
	// corrected gradients (magnitude O(N)) blow past any fixed step size.
	grate := sp.globalRate
	if grate <= 0 {
		grate = sp.noiseSigma * sp.noiseSigma / float64(sp.dataSize)
	}
	lrate := sp.localRate
	if lrate <= 0 {
		lrate = float64(sp.batchSize) / float64(sp.dataSize)
	}

	var globalStep infer.Stepper
	switch {
	case sp.sgld:
		globalStep = infer.NewSGLD(gen, grate)
		sp.out.Printf("Global:    SGLD step %g\n", grate)
	case sp.momentum > 0:
		globalStep = infer.NewMomentum(grate*(1.0-sp.momentum), sp.momentum)
		sp.out.Printf("Global:    momentum %.2f SGD rate %g\n", sp.momentum, grate)
	default:
		globalStep = infer.NewSGD(grate, 0.0)
		sp.out.Printf("Global:    SGD rate %g\n", grate)
	}
	localStep := infer.NewSGD(lrate, 0.0)

	globals := mx.InitGlobals(gen)
	initDist := mixture.CenterDistance(globals, trueMeans, sp.clusters, sp.dims)

	driver, err := infer.NewDriver(mod, mx.Problem(), store, source, globals, globalStep, localStep)
	if err != nil {
		return err
	}
	driver.Config = infer.StepConfig{Workers: sp.workers}

	var mon *monitor
	if len(sp.monitorAddr) > 0 {
		mon = &monitor{}
		if err := mon.Start(sp.monitorAddr); err != nil {
			return err
		}
		defer mon.Stop()

		mon.RunID.Set(runID)
		mon.DataSize.Set(int64(sp.dataSize))
		mon.BatchSize.Set(int64(sp.batchSize))
		mon.OuterIters.Set(int64(sp.outerIters))
		mon.LocalIters.Set(int64(sp.localIters))
		scale, _ := model.PlateScale(sp.dataSize, sp.batchSize)
		mon.PlateScale.Set(scale)
	}

	start := time.Now()
	driver.Progress = func(rep infer.IterReport) {
		sp.trace.Printf("%s iter %d loss %f steps %d\n", runID, rep.Outer, rep.Loss, rep.TotalSteps)
		if sp.verbose && rep.Outer%100 == 0 {
			sp.out.Printf("iter %5d: loss %f\n", rep.Outer, rep.Loss)
		}
		if mon != nil {
			mon.Iterations.Set(int64(rep.Outer))
			mon.TotalSteps.Set(rep.TotalSteps)
			mon.RunTime.Set(time.Since(start).Seconds())
			mon.LastLoss.Set(rep.Loss)
			if older, newer, ok := driver.LossHistory.HalfMeans(); ok {
				mon.TrailingOld.Set(older)
				mon.TrailingNew.Set(newer)
			}
		}
	}

	err = driver.Run(sp.outerIters, sp.localIters, sp.batchSize)
	if err != nil {
		return errors.Wrapf(err, "Fit %s aborted", runID)
	}

	elapsed := time.Since(start)
	finalDist := mixture.CenterDistance(globals, trueMeans, sp.clusters, sp.dims)

	sp.out.Printf("--------------------------------------------------\n")
	sp.out.Printf("Run time:       %v (%d total steps)\n", elapsed, driver.TotalSteps)
	sp.out.Printf("Center dist:    %f -> %f (radius %f)\n", initDist, finalDist, trueCenterRadius)
	if older, newer, ok := driver.LossHistory.HalfMeans(); ok {
		sp.out.Printf("Trailing loss:  %f -> %f\n", older, newer)
	}

	// Estimated mixing weights from a fresh sample of points scored against
	// the fitted means
	probe, err := source.NextBatch(minInt(sp.batchSize*8, sp.dataSize))
	if err != nil {
		return err
	}
	estWeights := make([]float64, sp.clusters)
	for _, x := range probe.Obs {
		r := mx.Responsibilities(x, globals)
		for k, rk := range r {
			estWeights[k] += rk
		}
	}
	divs := []struct {
		name string
		fn   model.Measure
	}{
		{"Weight JSD", model.JSDivergence},
		{"Weight Hel", model.HellingerDiff},
		{"Weight MaxAE", model.MaxAbsDiff},
	}
	for _, d := range divs {
		sp.out.Printf("%-15s %f\n", d.name+":", d.fn(estWeights, mx.Weights))
	}

	if len(sp.checkpoint) > 0 {
		f, err := os.Create(sp.checkpoint)
		if err != nil {
			return errors.Wrapf(err, "Could not create checkpoint file %s", sp.checkpoint)
		}
		defer f.Close()
		if err := driver.SaveGlobals(f); err != nil {
			return err
		}
		sp.out.Printf("Checkpoint:     %s\n", sp.checkpoint)
	}

	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
