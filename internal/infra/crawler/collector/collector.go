package collector

import (
	"net/http/cookiejar"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/LouYuanbo1/komprice/internal/config"
)

func newCollector(cfg *config.Config, timeout time.Duration) (*colly.Collector, error) {
	opts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
	}
	if cfg.Colly.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.Colly.UserAgent))
	}
	if cfg.Colly.IgnoreRobotsTxt {
		opts = append(opts, colly.IgnoreRobotsTxt())
	}
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(timeout)
	if cfg.Colly.EnableCookieJar {
		jar, err := cookiejar.New(cfg.Colly.CookieJarOptions)
		if err != nil {
			return nil, err
		}
		c.SetCookieJar(jar)
	}
	return c, nil
}
