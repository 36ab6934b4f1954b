package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/gocolly/colly/v2"

	"github.com/LouYuanbo1/komprice/internal/config"
	"github.com/LouYuanbo1/komprice/internal/infra/crawler/dom"
	"github.com/LouYuanbo1/komprice/internal/infra/crawler/types"
	"github.com/LouYuanbo1/komprice/internal/logger"
)

var errNoPage = errors.New("no page loaded")

// CollyFactory opens static-HTML sessions for server-rendered sites.
type CollyFactory struct {
	cfg *config.Config
	log logger.Logger
}

func NewCollyFactory(cfg *config.Config, log logger.Logger) *CollyFactory {
	return &CollyFactory{cfg: cfg, log: log}
}

func (f *CollyFactory) Open(ctx context.Context) (types.Session, error) {
	c, err := newCollector(f.cfg, f.cfg.Scrape.Timeouts().Navigation)
	if err != nil {
		return nil, fmt.Errorf("初始化colly失败: %w", err)
	}
	s := &collySession{colly: c, log: f.log}
	c.OnResponse(func(r *colly.Response) {
		snap, err := dom.Parse(bytes.NewReader(r.Body))
		if err != nil {
			s.parseErr = err
			return
		}
		s.fetched = snap
		s.fetchedURL = r.Request.URL
	})
	return s, nil
}

func (f *CollyFactory) Close() error {
	return nil
}

// collySession keeps the last good page until a new fetch succeeds, so a
// failed next-page fetch can be retried from the page that links to it.
type collySession struct {
	colly      *colly.Collector
	log        logger.Logger
	page       *dom.Snapshot
	pageURL    *url.URL
	fetched    *dom.Snapshot
	fetchedURL *url.URL
	parseErr   error
}

func (cs *collySession) Navigate(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cs.fetched, cs.fetchedURL, cs.parseErr = nil, nil, nil
	// colly has no per-request context; cancellation is checked around the visit.
	if err := cs.colly.Visit(rawURL); err != nil {
		return fmt.Errorf("访问URL失败: %w", err)
	}
	if cs.parseErr != nil {
		return cs.parseErr
	}
	if cs.fetched == nil {
		return fmt.Errorf("%w: %s", errNoPage, rawURL)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cs.page, cs.pageURL = cs.fetched, cs.fetchedURL
	cs.log.Debug("page fetched", logger.String("url", rawURL))
	return nil
}

// WaitFor succeeds once a page is loaded: a static document does not change,
// so an absent selector shows up as an empty item list instead.
func (cs *collySession) WaitFor(ctx context.Context, selector string) error {
	if cs.page == nil {
		return errNoPage
	}
	return nil
}

func (cs *collySession) Items(ctx context.Context, selector string) ([]types.Node, error) {
	if cs.page == nil {
		return nil, errNoPage
	}
	return cs.page.Nodes(selector), nil
}

func (cs *collySession) Count(ctx context.Context, selector string) (int, error) {
	if cs.page == nil {
		return 0, errNoPage
	}
	return cs.page.Count(selector), nil
}

func (cs *collySession) ScrollToBottom(ctx context.Context) error {
	return fmt.Errorf("%w: scroll on static page", types.ErrUnsupported)
}

// ClickNext follows the href of the next control.
func (cs *collySession) ClickNext(ctx context.Context, selector string) (bool, error) {
	if cs.page == nil {
		return false, errNoPage
	}
	if cs.page.Count(selector) == 0 {
		return false, nil
	}
	href, ok := cs.page.Attr(selector, "href")
	if !ok || href == "" {
		return false, fmt.Errorf("%w: next control %s has no href", types.ErrUnsupported, selector)
	}
	next, err := cs.pageURL.Parse(href)
	if err != nil {
		return false, fmt.Errorf("解析翻页链接失败: %w", err)
	}
	if err := cs.Navigate(ctx, next.String()); err != nil {
		return false, err
	}
	return true, nil
}

func (cs *collySession) Close() error {
	return nil
}
