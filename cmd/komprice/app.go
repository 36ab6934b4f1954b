package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/LouYuanbo1/komprice/internal/config"
	"github.com/LouYuanbo1/komprice/internal/domain/model"
	"github.com/LouYuanbo1/komprice/internal/infra/crawler/chrome"
	"github.com/LouYuanbo1/komprice/internal/infra/crawler/collector"
	"github.com/LouYuanbo1/komprice/internal/infra/persistence/es"
	"github.com/LouYuanbo1/komprice/internal/infra/persistence/postgres"
	"github.com/LouYuanbo1/komprice/internal/infra/queue"
	"github.com/LouYuanbo1/komprice/internal/infra/retry"
	"github.com/LouYuanbo1/komprice/internal/logger"
	"github.com/LouYuanbo1/komprice/internal/metrics"
	"github.com/LouYuanbo1/komprice/internal/service/dispatch"
	"github.com/LouYuanbo1/komprice/internal/service/scraper"
	"github.com/LouYuanbo1/komprice/internal/taxonomy"
)

// app holds the lazily built dependencies shared by the subcommands.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	metrics  *metrics.Metrics
	registry scraper.Registry

	db      *sqlx.DB
	redis   *redis.Client
	closers []func() error
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:      cfg,
		log:      log,
		metrics:  metrics.New(),
		registry: scraper.DefaultRegistry(),
	}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", logger.Error(err))
		}
	}
	_ = a.log.Sync()
}

func (a *app) database(ctx context.Context) (*sqlx.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	if a.cfg.Postgres.DSN == "" {
		return nil, errors.New("postgres.dsn is not configured")
	}
	db, err := postgres.Connect(ctx, a.cfg.Postgres.DSN, a.cfg.Postgres.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	return db, nil
}

func (a *app) redisClient() *redis.Client {
	if a.redis == nil {
		r := a.cfg.Redis
		a.redis = queue.NewClient(r.Addr, r.Password, r.DB)
		a.closers = append(a.closers, a.redis.Close)
	}
	return a.redis
}

func (a *app) queueKey() string {
	return a.cfg.Redis.QueueKey
}

func (a *app) taxonomy() (taxonomy.Document, error) {
	return taxonomy.LoadDocument(a.cfg.Paths.Taxonomy)
}

// listingIndex returns nil when no Elasticsearch address is configured.
func (a *app) listingIndex() (es.TypedEsClient[*model.ListingDoc], error) {
	if a.cfg.Elasticsearch.Address == "" {
		return nil, nil
	}
	return es.InitTypedEsClient[*model.ListingDoc](a.cfg, a.log)
}

// backends builds one factory per session backend. Browsers start on first use.
func (a *app) backends() (scraper.Backends, error) {
	rod, err := chrome.NewRodFactory(a.cfg, a.log)
	if err != nil {
		return scraper.Backends{}, fmt.Errorf("init rod: %w", err)
	}
	b := scraper.Backends{
		Registry: a.registry,
		Default:  a.cfg.Scrape.Backend,
		Factories: map[config.Backend]chrome.SessionFactory{
			config.BackendRod:      rod,
			config.BackendChromedp: chrome.NewChromedpFactory(a.cfg),
			config.BackendColly:    collector.NewCollyFactory(a.cfg, a.log),
		},
	}
	if b.Default == "" {
		b.Default = config.BackendRod
	}
	a.closers = append(a.closers, b.Close)
	return b, nil
}

func (a *app) planner() *dispatch.Planner {
	return dispatch.NewPlanner(a.registry, a.cfg.Paths.Selectors, a.log)
}

// scraperService wires a Service against Postgres and, when configured, the listing index.
func (a *app) scraperService(ctx context.Context) (scraper.Service, error) {
	db, err := a.database(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := a.taxonomy()
	if err != nil {
		return nil, err
	}
	aliases := taxonomy.BuildAliasMap(doc, a.log)
	backends, err := a.backends()
	if err != nil {
		return nil, err
	}
	deps := scraper.Deps{
		Sessions: backends,
		Writer:   postgres.NewListingWriter(db, aliases, a.log),
		Errors:   postgres.NewScraperErrorRepository(db),
		Aliases:  aliases,
		Metrics:  a.metrics,
		Retry: retry.Policy{
			Retries: a.cfg.Scrape.RetryCount(),
			Base:    a.cfg.Scrape.Backoff(),
		},
		Delay: a.cfg.Scrape.DelayRange(),
		Log:   a.log,
	}
	idx, err := a.listingIndex()
	if err != nil {
		return nil, err
	}
	if idx != nil {
		deps.Indexer = idx
	}
	return scraper.InitScraperService(deps), nil
}
