package dispatch

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/LouYuanbo1/komprice/internal/logger"
	"github.com/LouYuanbo1/komprice/param"
)

// Enqueuer is the producing side of the job queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobs ...param.Job) (int64, error)
}

// Scheduler enqueues a fixed job list on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	producer Enqueuer
	log      logger.Logger
}

func NewScheduler(producer Enqueuer, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	cl := cronLogger{log: log}
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		producer: producer,
		log:      log,
	}
}

// Schedule registers jobs under a standard five-field spec or a descriptor
// such as "@daily".
func (s *Scheduler) Schedule(ctx context.Context, spec string, jobs []param.Job) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() { s.enqueue(ctx, jobs) })
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.log.Info("jobs scheduled", logger.String("schedule", spec), logger.Int("jobs", len(jobs)))
	return id, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule; the returned context ends once a running enqueue finishes.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

func (s *Scheduler) enqueue(ctx context.Context, jobs []param.Job) {
	n, err := s.producer.Enqueue(ctx, jobs...)
	if err != nil {
		s.log.Error("scheduled enqueue failed", logger.Error(err))
		return
	}
	s.log.Info("scheduled enqueue", logger.Int("jobs", len(jobs)), logger.Int64("queue_length", n))
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug(msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error(msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []any) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
