package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calehh/safesnap/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

type RunArgs struct {
	Home string
	Mock bool
}

var runArgs RunArgs

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the execution engine and the query api",
	Long:  `Drive every pending proposal through the oracle and execute approved batches until interrupted.`,
	Args:  cobra.ExactArgs(0),
	RunE:  runRun,
}

func init() {
	homeFlag(runCmd, &runArgs.Home)
	mockFlag(runCmd, &runArgs.Mock)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	n, err := openNode(ctx, runArgs.Home, runArgs.Mock)
	if err != nil {
		return err
	}
	n.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var service *api.Service
	if n.cfg.API.Enable {
		var gatherer prometheus.Gatherer
		if n.cfg.API.Metrics {
			gatherer = n.reg
		}
		service = api.NewService(n.cfg.API.ListenAddress, n.app, gatherer, n.logger)
		go func() {
			if err := service.Start(); err != nil {
				n.logger.Error("api stopped", "err", err)
				cancel()
			}
		}()
	}

	runErr := n.app.Run(ctx)

	n.logger.Info("shut down...")
	done := make(chan struct{})
	go func() {
		defer close(done)
		if service != nil {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			if err := service.Shutdown(sctx); err != nil {
				n.logger.Error("api shutdown", "err", err)
			}
		}
		n.close()
	}()
	timer := time.NewTimer(10 * time.Second)
	select {
	case <-timer.C:
		os.Exit(1)
	case <-done:
	}
	return runErr
}
