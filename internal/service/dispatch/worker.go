package dispatch

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LouYuanbo1/komprice/internal/infra/queue"
	"github.com/LouYuanbo1/komprice/internal/logger"
	"github.com/LouYuanbo1/komprice/internal/service/pagination"
	"github.com/LouYuanbo1/komprice/internal/service/scraper"
)

const dequeueErrorPause = 2 * time.Second

// Dequeuer is the consuming side of the job queue.
type Dequeuer interface {
	Dequeue(ctx context.Context) (queue.Message, bool, error)
}

// Worker pulls jobs off the queue and runs them until its context ends.
type Worker struct {
	Consumer    Dequeuer
	Planner     *Planner
	Service     scraper.Service
	Parallelism int
	Sleep       pagination.Sleeper
	Log         logger.Logger
}

func NewWorker(consumer Dequeuer, planner *Planner, svc scraper.Service, parallelism int, log logger.Logger) *Worker {
	if log == nil {
		log = logger.NewNop()
	}
	return &Worker{
		Consumer:    consumer,
		Planner:     planner,
		Service:     svc,
		Parallelism: max(parallelism, 1),
		Sleep:       pagination.SleepContext,
		Log:         log,
	}
}

// Work returns nil once ctx is cancelled and the runs in flight have ended.
func (w *Worker) Work(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(max(w.Parallelism, 1))
	defer func() { _ = g.Wait() }()

	w.Log.Info("worker started", logger.Int("parallelism", w.Parallelism))
	for ctx.Err() == nil {
		msg, ok, err := w.Consumer.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			w.Log.Warn("dequeue failed", logger.Error(err))
			if err := w.Sleep(ctx, dequeueErrorPause); err != nil {
				break
			}
			continue
		}
		if !ok {
			continue
		}
		plan, err := w.Planner.PlanOne(msg.Job())
		if err != nil {
			w.Log.Error("job rejected", logger.String("job", msg.Job().String()), logger.Error(err))
			continue
		}
		w.Log.Info("job received",
			logger.String("job", plan.Job.String()),
			logger.Duration("queued_for", time.Since(msg.EnqueuedAt)),
		)
		g.Go(func() error {
			if _, err := w.Service.Run(ctx, plan.Job, plan.Config); err != nil && !errors.Is(err, context.Canceled) {
				w.Log.Error("job failed", logger.String("job", plan.Job.String()), logger.Error(err))
			}
			return nil
		})
	}
	w.Log.Info("worker stopping")
	return nil
}
