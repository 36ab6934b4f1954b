package chrome

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LouYuanbo1/komprice/internal/config"
	"github.com/LouYuanbo1/komprice/internal/logger"
	"github.com/LouYuanbo1/komprice/param"
)

func testRodFactory(poolSize int, create func() (*rod.Browser, error)) *rodFactory {
	return &rodFactory{
		browserPool:   rod.NewBrowserPool(poolSize),
		createBrowser: create,
		checkBrowser:  func(*rod.Browser) error { return nil },
		closeBrowser:  func(*rod.Browser) error { return nil },
		timeouts:      param.DefaultTimeouts(),
		log:           logger.NewNop(),
	}
}

func TestRodFactory_FailedLaunchFreesSlot(t *testing.T) {
	errLaunch := errors.New("launch failed")
	calls := 0
	f := testRodFactory(1, func() (*rod.Browser, error) {
		calls++
		return nil, errLaunch
	})

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err := f.Open(ctx)
		cancel()
		require.ErrorIs(t, err, errLaunch, "attempt %d", i+1)
	}
	assert.Equal(t, 3, calls)
	assert.Len(t, f.browserPool, 1)
}

func TestRodFactory_OpenHonorsContext(t *testing.T) {
	f := testRodFactory(1, func() (*rod.Browser, error) {
		t.Fatal("no slot is free, nothing should launch")
		return nil, nil
	})
	<-f.browserPool

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Open(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRodFactory_ReleaseDiscardsDeadBrowser(t *testing.T) {
	f := testRodFactory(1, nil)
	<-f.browserPool

	var closed []*rod.Browser
	f.closeBrowser = func(b *rod.Browser) error {
		closed = append(closed, b)
		return nil
	}
	f.checkBrowser = func(*rod.Browser) error { return errors.New("websocket closed") }

	dead := &rod.Browser{}
	f.release(dead)
	assert.Nil(t, <-f.browserPool, "dead browser leaves an empty slot")
	assert.Equal(t, []*rod.Browser{dead}, closed)

	f.checkBrowser = func(*rod.Browser) error { return nil }
	alive := &rod.Browser{}
	f.release(alive)
	assert.Same(t, alive, <-f.browserPool)
	assert.Len(t, closed, 1)
}

// browserBin returns a local Chrome, skipping the test when none is installed.
func browserBin(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("browser test skipped in short mode")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no Chrome or Chromium found")
	}
	return bin
}

func listingSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<div class="item"><span class="t">A</span></div>
			<div class="item"><span class="t">B</span></div>
		</body></html>`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRodSession_BrowseAndReuse(t *testing.T) {
	bin := browserBin(t)
	srv := listingSite(t)

	cfg := &config.Config{}
	cfg.Rod.Bin = bin
	cfg.Rod.Headless = true
	cfg.Rod.NoSandbox = true
	cfg.Rod.PoolSize = 1
	f, err := NewRodFactory(cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		s, err := f.Open(ctx)
		require.NoError(t, err)
		require.NoError(t, s.Navigate(ctx, srv.URL))
		require.NoError(t, s.WaitFor(ctx, ".item"))
		items, err := s.Items(ctx, ".item")
		require.NoError(t, err)
		assert.Len(t, items, 2)
		require.NoError(t, s.Close())
	}
	pool := f.(*rodFactory).browserPool
	b := <-pool
	assert.NotNil(t, b, "browser returned to the pool")
	pool.Put(b)
}
