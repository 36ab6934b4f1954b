// Package scraper runs one (site, category) job end to end: open a session,
// walk the listing pages, extract items and commit them batch by batch.
package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/LouYuanbo1/komprice/internal/domain/entity"
	"github.com/LouYuanbo1/komprice/internal/domain/model"
	"github.com/LouYuanbo1/komprice/internal/infra/retry"
	"github.com/LouYuanbo1/komprice/internal/logger"
	"github.com/LouYuanbo1/komprice/internal/metrics"
	"github.com/LouYuanbo1/komprice/internal/service/extract"
	"github.com/LouYuanbo1/komprice/internal/service/pagination"
	"github.com/LouYuanbo1/komprice/internal/taxonomy"
	"github.com/LouYuanbo1/komprice/param"
)

const recordTimeout = 5 * time.Second

// Writer commits one batch atomically.
type Writer interface {
	SaveBatch(ctx context.Context, items []entity.ExtractedItem, siteID, vendorSlug string) error
}

// ErrorRecorder stores a failed run for later inspection.
type ErrorRecorder interface {
	Record(ctx context.Context, siteID, categorySlug, details string) error
}

// Indexer mirrors committed listings into the search index.
type Indexer interface {
	BulkIndexDocsWithID(ctx context.Context, docs []*model.ListingDoc) error
}

// RunReport summarises one run.
type RunReport struct {
	Job       param.Job     `json:"job"`
	Pages     int           `json:"pages"`
	Batches   int           `json:"batches"`
	Items     int           `json:"items"`
	Dropped   int           `json:"dropped"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Universal string        `json:"universal_category"`
}

type Service interface {
	Run(ctx context.Context, job param.Job, cfg param.SelectorConfig) (RunReport, error)
}

// Deps wires a Service. Errors, Indexer, Metrics and Sleep are optional.
type Deps struct {
	Sessions SessionSource
	Writer   Writer
	Errors   ErrorRecorder
	Indexer  Indexer
	Aliases  *taxonomy.AliasMap
	Metrics  *metrics.Metrics
	Retry    retry.Policy
	Delay    param.DelayRange
	Sleep    pagination.Sleeper
	Log      logger.Logger
}

type scraperService struct {
	Deps
}

func InitScraperService(deps Deps) Service {
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	return &scraperService{Deps: deps}
}

func (s *scraperService) Run(ctx context.Context, job param.Job, cfg param.SelectorConfig) (report RunReport, err error) {
	start := time.Now()
	report.Job = job
	report.Universal = s.Aliases.Resolve(job.CategorySlug)
	log := s.Log.With(logger.String("site", job.SiteID), logger.String("category", job.CategorySlug))

	defer func() {
		report.Duration = time.Since(start)
		if s.Metrics != nil {
			s.Metrics.ObserveRun(job.SiteID, err, report.Duration)
		}
		if err != nil {
			s.recordFailure(ctx, job, report.Universal, err, log)
		}
	}()

	if err = cfg.Validate(); err != nil {
		return report, fmt.Errorf("%s: %w", job, err)
	}
	origin, err := cfg.Origin()
	if err != nil {
		return report, fmt.Errorf("%s: %w", job, err)
	}
	factory, err := s.Sessions.For(job.SiteID)
	if err != nil {
		return report, fmt.Errorf("%s: %w", job, err)
	}
	session, err := factory.Open(ctx)
	if err != nil {
		return report, fmt.Errorf("%s: open session: %w", job, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Warn("close session failed", logger.Error(cerr))
		}
	}()

	policy := s.Retry
	policy.Log = log
	if s.Metrics != nil {
		policy.OnRetry = s.Metrics.RetryHook
	}
	engine := pagination.NewEngine(s.Delay, policy, log)
	if s.Sleep != nil {
		engine.Sleep = s.Sleep
	}
	extractor := extract.New(log)

	log.Info("run started", logger.String("url", cfg.URL), logger.String("pagination", string(cfg.Pagination.Type)))
	stats, err := engine.Walk(ctx, session, cfg, func(ctx context.Context, b pagination.Batch) error {
		out := extractor.ExtractAll(b.Nodes, cfg.Fields, origin)
		report.Items += len(out.Items)
		report.Dropped += out.Dropped
		report.Failed += out.Failed
		if s.Metrics != nil {
			s.Metrics.ItemsExtracted.WithLabelValues(job.SiteID).Add(float64(len(out.Items)))
			s.Metrics.ItemsDropped.WithLabelValues(job.SiteID).Add(float64(out.Dropped + out.Failed))
		}
		if len(out.Items) == 0 {
			log.Warn("page yielded no complete items", logger.Int("page", b.Page), logger.Int("nodes", len(b.Nodes)))
			return nil
		}
		err := retry.Do(ctx, policy, "save_batch", func() error {
			return s.Writer.SaveBatch(ctx, out.Items, job.SiteID, job.CategorySlug)
		})
		if err != nil {
			return fmt.Errorf("batch %d (page %d): %w", b.Index, b.Page, err)
		}
		report.Batches++
		if s.Metrics != nil {
			s.Metrics.BatchesCommitted.WithLabelValues(job.SiteID).Inc()
		}
		s.index(ctx, out.Items, job, report.Universal, log)
		log.Info("batch committed", logger.Int("batch", b.Index), logger.Int("page", b.Page), logger.Int("items", len(out.Items)))
		return nil
	})
	report.Pages = stats.Pages
	if err != nil {
		return report, fmt.Errorf("%s: %w", job, err)
	}
	log.Info("run finished",
		logger.Int("pages", report.Pages),
		logger.Int("batches", report.Batches),
		logger.Int("items", report.Items),
		logger.Int("dropped", report.Dropped+report.Failed),
	)
	return report, nil
}

// index is best effort; the database stays the source of truth.
func (s *scraperService) index(ctx context.Context, items []entity.ExtractedItem, job param.Job, universal string, log logger.Logger) {
	if s.Indexer == nil {
		return
	}
	docs := make([]*model.ListingDoc, 0, len(items))
	for _, item := range items {
		docs = append(docs, item.ToDocument(job.SiteID, job.CategorySlug, universal))
	}
	if err := s.Indexer.BulkIndexDocsWithID(ctx, docs); err != nil {
		log.Warn("index listings failed", logger.Int("docs", len(docs)), logger.Error(err))
	}
}

func (s *scraperService) recordFailure(ctx context.Context, job param.Job, universal string, runErr error, log logger.Logger) {
	log.Error("run failed", logger.Error(runErr))
	if s.Errors == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.Errors.Record(ctx, job.SiteID, universal, runErr.Error()); err != nil {
		log.Warn("record scraper error failed", logger.Error(err))
	}
}
