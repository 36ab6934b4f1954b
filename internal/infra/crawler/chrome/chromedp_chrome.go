package chrome

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/LouYuanbo1/komprice/internal/config"
	"github.com/LouYuanbo1/komprice/internal/infra/crawler/dom"
	"github.com/LouYuanbo1/komprice/internal/infra/crawler/types"
	"github.com/LouYuanbo1/komprice/param"
)

type chromedpFactory struct {
	allocCtx    context.Context
	allocCtxFuc context.CancelFunc
	timeouts    param.Timeouts
	width       int64
	height      int64
}

func NewChromedpFactory(cfg *config.Config) SessionFactory {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Chromedp.Headless),
		chromedp.Flag("incognito", cfg.Chromedp.Incognito),
		chromedp.Flag("disable-dev-shm-usage", cfg.Chromedp.DisableDevShmUsage),
		chromedp.Flag("no-sandbox", cfg.Chromedp.NoSandbox),
	)
	if cfg.Chromedp.DisableBlinkFeatures != "" {
		opts = append(opts, chromedp.Flag("disable-blink-features", cfg.Chromedp.DisableBlinkFeatures))
	}
	if cfg.Chromedp.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.Chromedp.ExecPath))
	}
	if cfg.Chromedp.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.Chromedp.UserDataDir))
	}
	if cfg.Chromedp.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.Chromedp.UserAgent))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	width, height := cfg.Chromedp.ViewportWidth, cfg.Chromedp.ViewportHeight
	if width <= 0 || height <= 0 {
		width, height = 1280, 720
	}
	return &chromedpFactory{
		allocCtx:    allocCtx,
		allocCtxFuc: cancelAlloc,
		timeouts:    cfg.Scrape.Timeouts(),
		width:       width,
		height:      height,
	}
}

// Open 创建一个新标签页。首次Run会启动浏览器进程,因此直接在标签页上下文上执行:
// 派生的超时上下文一旦取消会连带关闭浏览器。启动超时或ctx取消时才关闭标签页。
func (f *chromedpFactory) Open(ctx context.Context) (types.Session, error) {
	tabCtx, cancelTab := chromedp.NewContext(f.allocCtx)
	timer := time.AfterFunc(f.timeouts.Navigation, cancelTab)
	stop := context.AfterFunc(ctx, cancelTab)

	err := chromedp.Run(tabCtx, emulation.SetDeviceMetricsOverride(f.width, f.height, 1, false))

	timedOut := !timer.Stop()
	cancelled := !stop()
	switch {
	case cancelled:
		err = ctx.Err()
	case timedOut:
		err = fmt.Errorf("启动浏览器超时: %w", context.DeadlineExceeded)
	}
	if err != nil {
		cancelTab()
		return nil, fmt.Errorf("打开标签页失败: %w", err)
	}
	return &chromedpSession{tabCtx: tabCtx, tabCtxFuc: cancelTab, timeouts: f.timeouts}, nil
}

func (f *chromedpFactory) Close() error {
	f.allocCtxFuc()
	return nil
}

type chromedpSession struct {
	tabCtx    context.Context
	tabCtxFuc context.CancelFunc
	timeouts  param.Timeouts
}

// run executes actions on the tab, bounded by timeout and cancelled with ctx.
// The browser is already running, so cancelling runCtx only stops these actions.
func (cs *chromedpSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(cs.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (cs *chromedpSession) Navigate(ctx context.Context, url string) error {
	if err := cs.run(ctx, cs.timeouts.Navigation, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("导航失败: %w", err)
	}
	return nil
}

func (cs *chromedpSession) WaitFor(ctx context.Context, selector string) error {
	err := cs.run(ctx, cs.timeouts.ElementWait, chromedp.WaitReady(selector, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", types.ErrElementNotFound, selector)
	}
	return err
}

func (cs *chromedpSession) snapshot(ctx context.Context) (*dom.Snapshot, error) {
	var html string
	if err := cs.run(ctx, cs.timeouts.Navigation, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("读取页面内容失败: %w", err)
	}
	return dom.Parse(strings.NewReader(html))
}

func (cs *chromedpSession) Items(ctx context.Context, selector string) ([]types.Node, error) {
	snap, err := cs.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Nodes(selector), nil
}

func (cs *chromedpSession) Count(ctx context.Context, selector string) (int, error) {
	var n int
	js := "document.querySelectorAll(" + strconv.Quote(selector) + ").length"
	if err := cs.run(ctx, cs.timeouts.ElementWait, chromedp.Evaluate(js, &n)); err != nil {
		return 0, err
	}
	return n, nil
}

func (cs *chromedpSession) ScrollToBottom(ctx context.Context) error {
	js := `window.scrollTo({top: document.body.scrollHeight, behavior: 'smooth'});`
	if err := cs.run(ctx, cs.timeouts.ElementWait, chromedp.Evaluate(js, nil)); err != nil {
		return fmt.Errorf("滑动到底部失败: %w", err)
	}
	return nil
}

func (cs *chromedpSession) ClickNext(ctx context.Context, selector string) (bool, error) {
	n, err := cs.Count(ctx, selector)
	if err != nil {
		return false, fmt.Errorf("查找翻页按钮失败: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	err = cs.run(ctx, cs.timeouts.Navigation,
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return false, fmt.Errorf("点击失败: %w", err)
	}
	return true, nil
}

func (cs *chromedpSession) Close() error {
	cs.tabCtxFuc()
	return nil
}
