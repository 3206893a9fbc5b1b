package cmd

import (
	"expvar"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
)

type monitor struct {
	info    *expvar.Map
	stopped chan struct{}
	server  *http.Server

	RunID      *expvar.String
	DataSize   *expvar.Int
	BatchSize  *expvar.Int
	OuterIters *expvar.Int
	LocalIters *expvar.Int
	PlateScale *expvar.Float

	Iterations  *expvar.Int
	TotalSteps  *expvar.Int
	RunTime     *expvar.Float
	LastLoss    *expvar.Float
	TrailingOld *expvar.Float
	TrailingNew *expvar.Float
}

// Start begins the monitor on the given address
func (m *monitor) Start(addr string) error {
	if m.info != nil {
		return errors.Errorf("BUG: You may only start the process monitor once")
	}

	m.info = expvar.NewMap("varsub-progress")
	m.stopped = make(chan struct{})
	m.server = &http.Server{
		Addr: addr,
	}

	// Help the user and redirect to the only thing currently available:
	// the handler from the expvar package
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/debug/vars", http.StatusTemporaryRedirect)
	})

	m.RunID = expvar.NewString("Run-ID")
	m.DataSize = expvar.NewInt("Data-Size")
	m.BatchSize = expvar.NewInt("Batch-Size")
	m.OuterIters = expvar.NewInt("Max-Outer-Iterations")
	m.LocalIters = expvar.NewInt("Local-Iterations")
	m.PlateScale = expvar.NewFloat("Plate-Scale")

	m.Iterations = expvar.NewInt("Iterations")
	m.TotalSteps = expvar.NewInt("Total-Steps")
	m.RunTime = expvar.NewFloat("Run-Time")
	m.LastLoss = expvar.NewFloat("Last-Loss")
	m.TrailingOld = expvar.NewFloat("Trailing-Loss-Older-Half")
	m.TrailingNew = expvar.NewFloat("Trailing-Loss-Newer-Half")

	// Actual server that will close the stopped channel on exit
	started := make(chan struct{})
	go func() {
		defer close(m.stopped)
		fmt.Fprintf(os.Stderr, "HTTP now available at %v (see debug/vars/)\n", m.server.Addr)
		close(started)
		m.server.ListenAndServe()
	}()

	<-started
	return nil
}

func (m *monitor) Stop() {
	if m.info == nil {
		return
	}

	m.server.Close()

	select {
	case <-m.stopped:
		fmt.Fprintf(os.Stderr, "HTTP Info Stopped\n")
	case <-time.After(2 * time.Second):
		fmt.Fprintf(os.Stderr, "HTTP would NOT stop: just continuing on\n")
	}
}
