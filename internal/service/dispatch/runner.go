package dispatch

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/LouYuanbo1/komprice/internal/logger"
	"github.com/LouYuanbo1/komprice/internal/service/scraper"
)

// Result pairs a run report with the error that ended it, if any.
type Result struct {
	Report scraper.RunReport
	Err    error
}

// Runner executes planned jobs in-process, at most Parallelism at a time.
type Runner struct {
	Service     scraper.Service
	Parallelism int
	Log         logger.Logger
}

func NewRunner(svc scraper.Service, parallelism int, log logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{Service: svc, Parallelism: max(parallelism, 1), Log: log}
}

// RunAll runs every plan. A failed run does not stop the others; the
// returned error joins all run errors. Results keep the order of plans.
func (r *Runner) RunAll(ctx context.Context, plans []Plan) ([]Result, error) {
	results := make([]Result, len(plans))
	var g errgroup.Group
	g.SetLimit(max(r.Parallelism, 1))
	for i, plan := range plans {
		if ctx.Err() != nil {
			results[i] = Result{Report: scraper.RunReport{Job: plan.Job}, Err: ctx.Err()}
			continue
		}
		g.Go(func() error {
			report, err := r.Service.Run(ctx, plan.Job, plan.Config)
			results[i] = Result{Report: report, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	r.Log.Info("all runs finished", logger.Int("runs", len(plans)), logger.Int("failed", len(errs)))
	return results, errors.Join(errs...)
}
