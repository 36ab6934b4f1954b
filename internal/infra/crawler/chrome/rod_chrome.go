package chrome

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/LouYuanbo1/komprice/internal/config"
	"github.com/LouYuanbo1/komprice/internal/infra/crawler/types"
	"github.com/LouYuanbo1/komprice/internal/logger"
	"github.com/LouYuanbo1/komprice/param"
)

const (
	scrollToBottomJS = `() => window.scrollTo(0, document.body.scrollHeight)`
	healthTimeout    = 2 * time.Second
)

// rodFactory 维护一个浏览器池,每次抓取独占一个浏览器
type rodFactory struct {
	browserPool   rod.Pool[rod.Browser]
	createBrowser func() (*rod.Browser, error)
	// checkBrowser 在浏览器归还池子之前确认它仍然可用
	checkBrowser func(*rod.Browser) error
	closeBrowser func(*rod.Browser) error
	timeouts     param.Timeouts
	userAgent    string
	log          logger.Logger
}

func NewRodFactory(cfg *config.Config, log logger.Logger) (SessionFactory, error) {
	poolSize := max(cfg.Rod.PoolSize, 1)
	var instanceID atomic.Int32

	createBrowser := func() (*rod.Browser, error) {
		id := instanceID.Add(1)
		l := launcher.New().
			Headless(cfg.Rod.Headless).
			Leakless(cfg.Rod.Leakless).
			NoSandbox(cfg.Rod.NoSandbox)
		if cfg.Rod.Bin != "" {
			l = l.Bin(cfg.Rod.Bin)
		}
		if cfg.Rod.UserDataDir != "" {
			dir := filepath.Join(cfg.Rod.UserDataDir, fmt.Sprintf("instance_%d", id))
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("创建实例数据目录失败: %w", err)
			}
			l = l.UserDataDir(dir)
		}
		if cfg.Rod.DisableBlinkFeatures != "" {
			l = l.Set(flags.Flag("disable-blink-features"), cfg.Rod.DisableBlinkFeatures)
		}
		if cfg.Rod.DisableDevShmUsage {
			l = l.Set(flags.Flag("disable-dev-shm-usage"))
		}
		if cfg.Rod.Incognito {
			l = l.Set(flags.Flag("incognito"))
		}
		controlURL, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("启动浏览器失败: %w", err)
		}
		log.Debug("browser launched", logger.Int("instance", int(id)), logger.String("control_url", controlURL))

		browser := rod.New().ControlURL(controlURL).Trace(cfg.Rod.Trace)
		if err := browser.Connect(); err != nil {
			l.Kill()
			return nil, fmt.Errorf("连接浏览器失败: %w", err)
		}
		return browser, nil
	}

	return &rodFactory{
		browserPool:   rod.NewBrowserPool(poolSize),
		createBrowser: createBrowser,
		checkBrowser:  pingBrowser,
		closeBrowser:  (*rod.Browser).Close,
		timeouts:      cfg.Scrape.Timeouts(),
		userAgent:     cfg.Rod.UserAgent,
		log:           log,
	}, nil
}

func pingBrowser(b *rod.Browser) error {
	_, err := b.Timeout(healthTimeout).Version()
	return err
}

// acquire 从池中取出一个浏览器,空槽位时启动新浏览器;启动失败会归还槽位
func (f *rodFactory) acquire(ctx context.Context) (*rod.Browser, error) {
	var browser *rod.Browser
	select {
	case browser = <-f.browserPool:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if browser != nil {
		return browser, nil
	}
	browser, err := f.createBrowser()
	if err != nil {
		f.browserPool.Put(nil)
		return nil, err
	}
	return browser, nil
}

// release 把健康的浏览器放回池中,失效的浏览器关闭后只归还空槽位
func (f *rodFactory) release(browser *rod.Browser) {
	if err := f.checkBrowser(browser); err != nil {
		f.log.Warn("discarding unhealthy browser", logger.Error(err))
		if err := f.closeBrowser(browser); err != nil {
			f.log.Debug("close unhealthy browser", logger.Error(err))
		}
		f.browserPool.Put(nil)
		return
	}
	f.browserPool.Put(browser)
}

func (f *rodFactory) Open(ctx context.Context) (types.Session, error) {
	browser, err := f.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取浏览器失败: %w", err)
	}
	page, err := stealth.Page(browser)
	if err != nil {
		f.release(browser)
		return nil, fmt.Errorf("获取页面失败: %w", err)
	}
	if f.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: f.userAgent}); err != nil {
			_ = page.Close()
			f.release(browser)
			return nil, fmt.Errorf("设置UserAgent失败: %w", err)
		}
	}
	return &rodSession{
		factory:  f,
		browser:  browser,
		page:     page,
		timeouts: f.timeouts,
	}, nil
}

func (f *rodFactory) Close() error {
	f.log.Info("closing browser pool", logger.Int("browsers", len(f.browserPool)))
	f.browserPool.Cleanup(func(b *rod.Browser) {
		if err := f.closeBrowser(b); err != nil {
			f.log.Warn("close browser", logger.Error(err))
		}
	})
	return nil
}

type rodSession struct {
	factory  *rodFactory
	browser  *rod.Browser
	page     *rod.Page
	timeouts param.Timeouts
}

func (rs *rodSession) Navigate(ctx context.Context, url string) error {
	page := rs.page.Context(ctx).Timeout(rs.timeouts.Navigation)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("导航失败: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("等待页面加载失败: %w", err)
	}
	return nil
}

func (rs *rodSession) WaitFor(ctx context.Context, selector string) error {
	_, err := rs.page.Context(ctx).Timeout(rs.timeouts.ElementWait).Element(selector)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %s", types.ErrElementNotFound, selector)
	}
	return err
}

func (rs *rodSession) Items(ctx context.Context, selector string) ([]types.Node, error) {
	els, err := rs.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("查找元素失败: %w", err)
	}
	nodes := make([]types.Node, 0, len(els))
	for _, el := range els {
		nodes = append(nodes, &rodNode{el: el})
	}
	return nodes, nil
}

func (rs *rodSession) Count(ctx context.Context, selector string) (int, error) {
	els, err := rs.page.Context(ctx).Elements(selector)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

func (rs *rodSession) ScrollToBottom(ctx context.Context) error {
	if _, err := rs.page.Context(ctx).Eval(scrollToBottomJS); err != nil {
		return fmt.Errorf("滑动到底部失败: %w", err)
	}
	return nil
}

func (rs *rodSession) ClickNext(ctx context.Context, selector string) (bool, error) {
	page := rs.page.Context(ctx).Timeout(rs.timeouts.Navigation)
	has, el, err := page.Has(selector)
	if err != nil {
		return false, fmt.Errorf("查找翻页按钮失败: %w", err)
	}
	if !has {
		return false, nil
	}
	wait := page.WaitRequestIdle(time.Second, nil, nil, []proto.NetworkResourceType{proto.NetworkResourceTypeDocument})
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, fmt.Errorf("点击失败: %w", err)
	}
	wait()
	return true, nil
}

// Close 关闭页面并把浏览器放回池中
func (rs *rodSession) Close() error {
	err := rs.page.Close()
	rs.factory.release(rs.browser)
	return err
}

type rodNode struct {
	el *rod.Element
}

func (n *rodNode) Find(selector string) (types.Node, error) {
	has, el, err := n.el.Has(selector)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, fmt.Errorf("%w: %s", types.ErrElementNotFound, selector)
	}
	return &rodNode{el: el}, nil
}

func (n *rodNode) Text() (string, error) {
	return n.el.Text()
}

func (n *rodNode) Attr(name string) (string, bool, error) {
	v, err := n.el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}
