package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// startupParams holds the flag values and loggers shared by subcommands.
type startupParams struct {
	verbose     bool
	randomSeed  int64
	clusters    int
	dims        int
	dataSize    int
	batchSize   int
	outerIters  int
	localIters  int
	noiseSigma  float64
	globalRate  float64
	localRate   float64
	momentum    float64
	sgld        bool
	workers     int
	monitorAddr string
	traceFile   string
	checkpoint  string

	out   *log.Logger
	trace *log.Logger
}

// setupLoggers creates the output and (optional) trace loggers.
func (sp *startupParams) setupLoggers() (func(), error) {
	sp.out = log.New(os.Stdout, "", 0)

	if len(sp.traceFile) < 1 {
		sp.trace = log.New(io.Discard, "", 0)
		return func() {}, nil
	}

	f, err := os.Create(sp.traceFile)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not create trace file %s", sp.traceFile)
	}
	sp.trace = log.New(f, "", 0)
	return func() { f.Close() }, nil
}

var sp = &startupParams{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "varsub",
	Short: "Minibatch-scaled variational inference for global+local models",
	Long: `varsub fits hierarchical models with global and local latent
variables from minibatches. Among other features:

  - N/M scale correction for unbiased stochastic gradients
  - Block-coordinate local/global updates per batch
  - Ephemeral or dense-backed local parameter stores
  - SGD, momentum, and SGLD update rules
`,
}

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit a synthetic Gaussian mixture and report center recovery",
	RunE: func(cmd *cobra.Command, args []string) error {
		closer, err := sp.setupLoggers()
		if err != nil {
			return err
		}
		defer closer()
		return FitRun(sp)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&sp.verbose, "verbose", "v", false, "Verbose logging (default is much more parsimonious)")
	pf.Int64VarP(&sp.randomSeed, "seed", "r", 1, "Random seed to use")
	pf.StringVarP(&sp.traceFile, "trace", "t", "", "Trace file for per-iteration output")
	pf.StringVar(&sp.monitorAddr, "monitor", "", "Address for the HTTP progress monitor (empty disables)")

	ff := fitCmd.Flags()
	ff.IntVarP(&sp.clusters, "clusters", "k", 5, "Number of mixture clusters")
	ff.IntVarP(&sp.dims, "dims", "d", 2, "Observation dimension")
	ff.IntVarP(&sp.dataSize, "datasize", "n", 10000000, "Total dataset size N")
	ff.IntVarP(&sp.batchSize, "batchsize", "m", 128, "Minibatch size M")
	ff.IntVarP(&sp.outerIters, "iters", "i", 1000, "Outer iterations T")
	ff.IntVarP(&sp.localIters, "localiters", "l", 10, "Local refinement steps per outer iteration")
	ff.Float64Var(&sp.noiseSigma, "sigma", 0.5, "Observation noise stddev")
	ff.Float64Var(&sp.globalRate, "grate", 0, "Global learning rate (0 = auto: sigma^2/N)")
	ff.Float64Var(&sp.localRate, "lrate", 0, "Local learning rate (0 = auto: M/N)")
	ff.Float64Var(&sp.momentum, "momentum", 0, "Momentum beta for the global update (0 = plain SGD)")
	ff.BoolVar(&sp.sgld, "sgld", false, "Use a Langevin (SGLD) global update instead of SGD")
	ff.IntVarP(&sp.workers, "workers", "w", 1, "Gradient worker goroutines per step")
	ff.StringVar(&sp.checkpoint, "checkpoint", "", "File to write a global-parameter checkpoint after the run")

	rootCmd.AddCommand(fitCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
