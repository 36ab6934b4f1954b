// Package pagination walks the pages of a listing according to its
// pagination mode and hands every non-empty page of item nodes to a callback.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/LouYuanbo1/komprice/internal/infra/crawler/types"
	"github.com/LouYuanbo1/komprice/internal/infra/retry"
	"github.com/LouYuanbo1/komprice/internal/logger"
	"github.com/LouYuanbo1/komprice/param"
)

// Sleeper pauses for d or until ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the wall-clock Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Batch is one page worth of item nodes.
type Batch struct {
	Index int // 0-based batch number within the run
	Page  int // 1-based page number
	URL   string
	Nodes []types.Node
}

type OnBatch func(ctx context.Context, b Batch) error

type Stats struct {
	Pages   int // navigations, clicks included
	Batches int
	Nodes   int
}

type Engine struct {
	Delay param.DelayRange
	Sleep Sleeper
	// Rand returns a value in [0,1) used to pick the politeness delay.
	Rand  func() float64
	Retry retry.Policy
	Log   logger.Logger
}

func NewEngine(delay param.DelayRange, policy retry.Policy, log logger.Logger) *Engine {
	return &Engine{
		Delay: delay,
		Sleep: SleepContext,
		Rand:  rand.Float64,
		Retry: policy,
		Log:   log,
	}
}

// Walk drives session through the pages described by cfg. A page without
// items ends the walk without error.
func (e *Engine) Walk(ctx context.Context, session types.Session, cfg param.SelectorConfig, onBatch OnBatch) (Stats, error) {
	w := &walk{Engine: e, session: session, cfg: cfg, onBatch: onBatch}
	var err error
	switch cfg.Pagination.Type {
	case param.PaginationQuery, param.PaginationPath:
		err = w.numbered(ctx)
	case param.PaginationNext:
		err = w.next(ctx)
	case param.PaginationInfinite:
		err = w.infinite(ctx)
	default:
		err = fmt.Errorf("%w: unknown pagination type %q", param.ErrInvalidSelectorConfig, cfg.Pagination.Type)
	}
	return w.stats, err
}

// PageURL builds the URL of page n for query and path pagination.
func PageURL(cfg param.SelectorConfig, n int) string {
	p := cfg.Pagination
	switch p.Type {
	case param.PaginationQuery:
		sep := "?"
		if strings.Contains(cfg.URL, "?") {
			sep = "&"
		}
		return cfg.URL + sep + url.QueryEscape(p.Param) + "=" + strconv.Itoa(n)
	case param.PaginationPath:
		return strings.TrimRight(cfg.URL, "/") + strings.ReplaceAll(p.Template, param.PagePlaceholder, strconv.Itoa(n))
	default:
		return cfg.URL
	}
}

type walk struct {
	*Engine
	session types.Session
	cfg     param.SelectorConfig
	onBatch OnBatch
	stats   Stats
}

func (w *walk) maxReached(page int) bool {
	return w.cfg.Pagination.MaxPages > 0 && page >= w.cfg.Pagination.MaxPages
}

func (w *walk) numbered(ctx context.Context) error {
	for page := 1; ; page++ {
		if page > 1 {
			if err := w.politeness(ctx); err != nil {
				return err
			}
		}
		pageURL := PageURL(w.cfg, page)
		if err := w.navigate(ctx, pageURL); err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		more, err := w.emit(ctx, page, pageURL)
		if err != nil || !more || w.maxReached(page) {
			return err
		}
	}
}

func (w *walk) next(ctx context.Context) error {
	if err := w.navigate(ctx, w.cfg.URL); err != nil {
		return fmt.Errorf("page 1: %w", err)
	}
	for page := 1; ; page++ {
		more, err := w.emit(ctx, page, w.cfg.URL)
		if err != nil || !more || w.maxReached(page) {
			return err
		}
		if err := w.politeness(ctx); err != nil {
			return err
		}
		clicked, err := retry.DoValue(ctx, w.Retry, "click_next", func() (bool, error) {
			return w.session.ClickNext(ctx, w.cfg.Pagination.NextSelector)
		})
		if err != nil {
			return fmt.Errorf("page %d: %w", page+1, err)
		}
		if !clicked {
			w.Log.Debug("next control absent, stopping", logger.Int("page", page))
			return nil
		}
		w.stats.Pages++
	}
}

func (w *walk) infinite(ctx context.Context) error {
	if err := w.navigate(ctx, w.cfg.URL); err != nil {
		return err
	}
	found, err := w.waitItems(ctx)
	if err != nil || !found {
		return err
	}
	count, err := w.session.Count(ctx, w.cfg.Item)
	if err != nil {
		return err
	}
	delay := w.cfg.Pagination.ScrollWait()
	for {
		if err := w.session.ScrollToBottom(ctx); err != nil {
			return err
		}
		if err := w.Sleep(ctx, delay); err != nil {
			return err
		}
		grown, err := w.session.Count(ctx, w.cfg.Item)
		if err != nil {
			return err
		}
		w.Log.Debug("scrolled", logger.Int("items", grown))
		if grown <= count {
			break
		}
		count = grown
	}
	_, err = w.deliver(ctx, 1, w.cfg.URL)
	return err
}

func (w *walk) navigate(ctx context.Context, pageURL string) error {
	err := retry.Do(ctx, w.Retry, "navigate", func() error {
		return w.session.Navigate(ctx, pageURL)
	})
	if err != nil {
		return fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	w.stats.Pages++
	return nil
}

// waitItems reports false when the item selector never showed up.
func (w *walk) waitItems(ctx context.Context) (bool, error) {
	err := retry.Do(ctx, w.Retry, "wait_items", func() error {
		return w.session.WaitFor(ctx, w.cfg.Item)
	})
	if errors.Is(err, types.ErrElementNotFound) {
		w.Log.Info("no items on page", logger.String("selector", w.cfg.Item))
		return false, nil
	}
	return err == nil, err
}

// emit waits for the current page and delivers its items; false means the page was empty.
func (w *walk) emit(ctx context.Context, page int, pageURL string) (bool, error) {
	found, err := w.waitItems(ctx)
	if err != nil || !found {
		return false, err
	}
	return w.deliver(ctx, page, pageURL)
}

func (w *walk) deliver(ctx context.Context, page int, pageURL string) (bool, error) {
	nodes, err := w.session.Items(ctx, w.cfg.Item)
	if err != nil {
		return false, fmt.Errorf("page %d items: %w", page, err)
	}
	if len(nodes) == 0 {
		return false, nil
	}
	b := Batch{Index: w.stats.Batches, Page: page, URL: pageURL, Nodes: nodes}
	if err := w.onBatch(ctx, b); err != nil {
		return false, err
	}
	w.stats.Batches++
	w.stats.Nodes += len(nodes)
	return true, nil
}

func (w *walk) politeness(ctx context.Context) error {
	d := w.Delay.Min
	if span := w.Delay.Max - w.Delay.Min; span > 0 {
		d += time.Duration(w.Rand() * float64(span))
	}
	return w.Sleep(ctx, d)
}
