package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LouYuanbo1/komprice/internal/config"
	"github.com/LouYuanbo1/komprice/internal/infra/queue"
	"github.com/LouYuanbo1/komprice/internal/logger"
	"github.com/LouYuanbo1/komprice/internal/service/scraper"
	"github.com/LouYuanbo1/komprice/param"
)

const jumiaSelectors = `smartphones:
  url: https://www.jumia.com.gh/smartphones/
  item: article.prd
  title: h3.name
  price: div.prc
  link: a.core
  img: img
  pagination:
    type: query
    param: page
laptops:
  url: https://www.jumia.com.gh/laptops/
  item: article.prd
  title: h3.name
  price: div.prc
  link: a.core
  img: img
  pagination:
    type: next
    next_selector: a.next
`

func selectorDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jumia.yaml"), []byte(jumiaSelectors), 0o644))
	return dir
}

func newPlanner(t *testing.T) *Planner {
	return NewPlanner(scraper.DefaultRegistry(), selectorDir(t), logger.NewNop())
}

func TestPlanner_Plan(t *testing.T) {
	p := newPlanner(t)
	plans, err := p.Plan([]param.Job{
		{SiteID: "jumia", CategorySlug: "smartphones"},
		{SiteID: "JUMIA", CategorySlug: "laptops"},
		{SiteID: "JUMIA", CategorySlug: "smartphones"},
	})
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "JUMIA", plans[0].Job.SiteID)
	assert.Equal(t, "Jumia Ghana", plans[0].Site.Name)
	assert.Equal(t, param.PaginationNext, plans[1].Config.Pagination.Type)
	assert.Equal(t, []param.Job{
		{SiteID: "JUMIA", CategorySlug: "smartphones"},
		{SiteID: "JUMIA", CategorySlug: "laptops"},
	}, Jobs(plans))
}

func TestPlanner_PlanReportsEveryProblem(t *testing.T) {
	p := newPlanner(t)
	plans, err := p.Plan([]param.Job{
		{SiteID: "JUMIA", CategorySlug: "smartphones"},
		{SiteID: "AMAZON", CategorySlug: "books"},
		{SiteID: "JUMIA", CategorySlug: "fridges"},
		{SiteID: "ISTARI", CategorySlug: "laptops"},
	})
	assert.Nil(t, plans)
	assert.ErrorIs(t, err, config.ErrUnknownSite)
	assert.ErrorIs(t, err, config.ErrCategoryNotConfigured)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPlanner_SiteJobs(t *testing.T) {
	p := newPlanner(t)

	jobs, err := p.SiteJobs("jumia", "")
	require.NoError(t, err)
	assert.Equal(t, []param.Job{
		{SiteID: "JUMIA", CategorySlug: "laptops"},
		{SiteID: "JUMIA", CategorySlug: "smartphones"},
	}, jobs)

	jobs, err = p.SiteJobs("JUMIA", "smartphones")
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	_, err = p.SiteJobs("NOPE", "")
	assert.ErrorIs(t, err, config.ErrUnknownSite)
}

// fakeService records runs and fails the categories listed in fail.
type fakeService struct {
	mu      sync.Mutex
	ran     []param.Job
	fail    map[string]bool
	hold    time.Duration
	active  atomic.Int32
	maxSeen atomic.Int32
	done    chan param.Job
}

func (f *fakeService) Run(ctx context.Context, job param.Job, _ param.SelectorConfig) (scraper.RunReport, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if f.hold > 0 {
		time.Sleep(f.hold)
	}
	f.mu.Lock()
	f.ran = append(f.ran, job)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- job
	}
	if f.fail[job.CategorySlug] {
		return scraper.RunReport{Job: job}, errors.New(job.String() + ": boom")
	}
	return scraper.RunReport{Job: job, Items: 3}, nil
}

func plansFor(slugs ...string) []Plan {
	plans := make([]Plan, len(slugs))
	for i, s := range slugs {
		plans[i] = Plan{Job: param.Job{SiteID: "JUMIA", CategorySlug: s}}
	}
	return plans
}

func TestRunner_RunAll(t *testing.T) {
	svc := &fakeService{fail: map[string]bool{"b": true}, hold: 20 * time.Millisecond}
	r := NewRunner(svc, 2, logger.NewNop())

	results, err := r.RunAll(context.Background(), plansFor("a", "b", "c", "d"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JUMIA/b: boom")

	require.Len(t, results, 4)
	assert.Equal(t, "a", results[0].Report.Job.CategorySlug)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, 3, results[3].Report.Items)
	assert.Len(t, svc.ran, 4)
	assert.LessOrEqual(t, svc.maxSeen.Load(), int32(2))
}

func TestRunner_CancelledContextSkipsRuns(t *testing.T) {
	svc := &fakeService{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewRunner(svc, 1, nil).RunAll(ctx, plansFor("a", "b"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 2)
	assert.Empty(t, svc.ran)
}

func TestWorker_Work(t *testing.T) {
	mr := miniredis.RunT(t)
	client := queue.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := queue.NewProducer(client, "").Enqueue(ctx,
		param.Job{SiteID: "JUMIA", CategorySlug: "smartphones"},
		param.Job{SiteID: "AMAZON", CategorySlug: "books"},
		param.Job{SiteID: "JUMIA", CategorySlug: "laptops"},
	)
	require.NoError(t, err)

	svc := &fakeService{done: make(chan param.Job, 4)}
	w := NewWorker(queue.NewConsumer(client, "", 100*time.Millisecond), newPlanner(t), svc, 2, logger.NewNop())

	errCh := make(chan error, 1)
	go func() { errCh <- w.Work(ctx) }()

	got := map[string]bool{}
	for range 2 {
		select {
		case job := <-svc.done:
			got[job.CategorySlug] = true
		case <-time.After(5 * time.Second):
			t.Fatal("worker did not run the queued jobs")
		}
	}
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, map[string]bool{"smartphones": true, "laptops": true}, got)
	assert.Len(t, svc.ran, 2)
	assert.False(t, mr.Exists(queue.DefaultKey))
}

type flakyConsumer struct {
	calls int
}

func (f *flakyConsumer) Dequeue(ctx context.Context) (queue.Message, bool, error) {
	f.calls++
	return queue.Message{}, false, errors.New("connection refused")
}

func TestWorker_DequeueErrorPausesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumer := &flakyConsumer{}
	w := NewWorker(consumer, newPlanner(t), &fakeService{}, 1, logger.NewNop())
	var pauses []time.Duration
	w.Sleep = func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		if len(pauses) == 2 {
			cancel()
			return context.Canceled
		}
		return nil
	}

	require.NoError(t, w.Work(ctx))
	assert.Equal(t, 2, consumer.calls)
	assert.Equal(t, []time.Duration{dequeueErrorPause, dequeueErrorPause}, pauses)
}

func TestScheduler(t *testing.T) {
	mr := miniredis.RunT(t)
	client := queue.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	s := NewScheduler(queue.NewProducer(client, ""), logger.NewNop())

	_, err := s.Schedule(ctx, "not a schedule", nil)
	assert.Error(t, err)

	jobs := []param.Job{{SiteID: "JUMIA", CategorySlug: "smartphones"}}
	id, err := s.Schedule(ctx, "@every 1h", jobs)
	require.NoError(t, err)

	entry := s.cron.Entry(id)
	require.True(t, entry.Valid())
	entry.Job.Run()
	entry.Job.Run()

	items, err := mr.List(queue.DefaultKey)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
