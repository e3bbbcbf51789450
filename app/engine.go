package app

import (
	"context"
	"errors"
	"time"

	"github.com/calehh/safesnap/types"
	"golang.org/x/sync/errgroup"
)

// Run sweeps the store for pending records and hands each proposal to its
// own worker until ctx is done. Records are swept again on every tick so a
// restart resumes wherever the store left off.
func (app *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(app.cfg.Workers)
	app.wg.Add(1)
	defer app.wg.Done()

	ticker := time.NewTicker(app.cfg.SweepInterval)
	defer ticker.Stop()
	app.logger.Info("engine started", "workers", app.cfg.Workers, "sweep", app.cfg.SweepInterval)
	for {
		app.sweep(gctx, g)
		select {
		case <-gctx.Done():
			err := g.Wait()
			app.logger.Info("engine stopped")
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case <-ticker.C:
		}
	}
}

func (app *App) sweep(ctx context.Context, g *errgroup.Group) {
	recs, err := app.db.ListPending()
	if err != nil {
		app.logger.Error("list pending fail", "err", err)
		return
	}
	app.metrics.pending.Set(float64(len(recs)))
	for _, rec := range recs {
		id := rec.ProposalId
		if !app.claim(id) {
			continue
		}
		if !g.TryGo(func() error {
			defer app.release(id)
			app.work(ctx, id)
			return nil
		}) {
			app.release(id)
			app.logger.Debug("worker limit reached", "proposal", id)
			return
		}
	}
}

func (app *App) claim(id string) bool {
	app.mtx.Lock()
	defer app.mtx.Unlock()
	if _, ok := app.active[id]; ok {
		return false
	}
	app.active[id] = struct{}{}
	app.metrics.activeWorkers.Inc()
	return true
}

func (app *App) release(id string) {
	app.mtx.Lock()
	defer app.mtx.Unlock()
	delete(app.active, id)
	app.metrics.activeWorkers.Dec()
}

// work steps one proposal until it is terminal or ctx ends. Execution steps
// follow each other without waiting; oracle polls and failed steps wait one
// poll interval.
func (app *App) work(ctx context.Context, id string) {
	logger := app.logger.With("proposal", id)
	logger.Info("worker started")
	defer logger.Info("worker stopped")
	for {
		rec, err := app.Step(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("step fail", "err", err)
		}
		if rec == nil {
			return
		}
		if rec.Status.Terminal() {
			logger.Info("proposal done", "status", rec.Status, "reason", rec.FailureReason)
			return
		}
		if err == nil && rec.Status == types.StatusApproved && rec.ExecutionApproved {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(app.cfg.PollInterval):
		}
	}
}
