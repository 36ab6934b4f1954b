package config

import (
	"net/http/cookiejar"
	"time"

	"github.com/LouYuanbo1/komprice/internal/logger"
	"github.com/LouYuanbo1/komprice/param"
)

// Backend 选择抓取会话的实现
type Backend string

const (
	BackendRod      Backend = "rod"
	BackendChromedp Backend = "chromedp"
	BackendColly    Backend = "colly"
)

type Config struct {
	Elasticsearch struct {
		Username string `json:"username" mapstructure:"username"`
		Password string `json:"password" mapstructure:"password"`
		Address  string `json:"address" mapstructure:"address"`
	} `json:"elasticsearch" mapstructure:"elasticsearch"`

	Rod struct {
		UserDataDir          string `json:"user_data_dir" mapstructure:"user_data_dir"`
		Headless             bool   `json:"headless" mapstructure:"headless"`
		DisableBlinkFeatures string `json:"disable_blink_features" mapstructure:"disable_blink_features"`
		Incognito            bool   `json:"incognito" mapstructure:"incognito"`
		DisableDevShmUsage   bool   `json:"disable_dev_shm_usage" mapstructure:"disable_dev_shm_usage"`
		NoSandbox            bool   `json:"no_sandbox" mapstructure:"no_sandbox"`
		UserAgent            string `json:"user_agent" mapstructure:"user_agent"`
		Leakless             bool   `json:"leakless" mapstructure:"leakless"`
		Bin                  string `json:"bin" mapstructure:"bin"`
		PoolSize             int    `json:"pool_size" mapstructure:"pool_size"`
		Trace                bool   `json:"trace" mapstructure:"trace"`
	} `json:"rod" mapstructure:"rod"`

	Chromedp struct {
		UserDataDir          string `json:"user_data_dir" mapstructure:"user_data_dir"`
		Headless             bool   `json:"headless" mapstructure:"headless"`
		DisableBlinkFeatures string `json:"disable_blink_features" mapstructure:"disable_blink_features"`
		Incognito            bool   `json:"incognito" mapstructure:"incognito"`
		DisableDevShmUsage   bool   `json:"disable_dev_shm_usage" mapstructure:"disable_dev_shm_usage"`
		NoSandbox            bool   `json:"no_sandbox" mapstructure:"no_sandbox"`
		UserAgent            string `json:"user_agent" mapstructure:"user_agent"`
		ExecPath             string `json:"exec_path" mapstructure:"exec_path"`
		ViewportWidth        int64  `json:"viewport_width" mapstructure:"viewport_width"`
		ViewportHeight       int64  `json:"viewport_height" mapstructure:"viewport_height"`
	} `json:"chromedp" mapstructure:"chromedp"`

	Colly struct {
		UserAgent        string             `json:"user_agent" mapstructure:"user_agent"`
		IgnoreRobotsTxt  bool               `json:"ignore_robots_txt" mapstructure:"ignore_robots_txt"`
		EnableCookieJar  bool               `json:"enable_cookie_jar" mapstructure:"enable_cookie_jar"`
		CookieJarOptions *cookiejar.Options `json:"cookie_jar_options" mapstructure:"-"`
	} `json:"colly" mapstructure:"colly"`

	Postgres struct {
		DSN          string `json:"dsn" mapstructure:"dsn"`
		MaxOpenConns int    `json:"max_open_conns" mapstructure:"max_open_conns"`
	} `json:"postgres" mapstructure:"postgres"`

	Redis struct {
		Addr     string `json:"addr" mapstructure:"addr"`
		Password string `json:"password" mapstructure:"password"`
		DB       int    `json:"db" mapstructure:"db"`
		QueueKey string `json:"queue_key" mapstructure:"queue_key"`
	} `json:"redis" mapstructure:"redis"`

	Logging logger.Config `json:"logging" mapstructure:"logging"`

	Scrape ScrapeConfig `json:"scrape" mapstructure:"scrape"`

	Server struct {
		Addr           string   `json:"addr" mapstructure:"addr"`
		Mode           string   `json:"mode" mapstructure:"mode"`
		AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins"`
	} `json:"server" mapstructure:"server"`

	Paths struct {
		Taxonomy  string `json:"taxonomy" mapstructure:"taxonomy"`
		Selectors string `json:"selectors" mapstructure:"selectors"`
		Jobs      string `json:"jobs" mapstructure:"jobs"`
	} `json:"paths" mapstructure:"paths"`
}

// ScrapeConfig 抓取过程的时间与并发参数,时间单位为秒
type ScrapeConfig struct {
	Backend            Backend `json:"backend" mapstructure:"backend"`
	NavigationTimeout  float64 `json:"navigation_timeout" mapstructure:"navigation_timeout"`
	ElementWaitTimeout float64 `json:"element_wait_timeout" mapstructure:"element_wait_timeout"`
	Retries            int     `json:"retries" mapstructure:"retries"`
	BackoffBase        float64 `json:"backoff_base" mapstructure:"backoff_base"`
	DelayMin           float64 `json:"delay_min" mapstructure:"delay_min"`
	DelayMax           float64 `json:"delay_max" mapstructure:"delay_max"`
	Parallelism        int     `json:"parallelism" mapstructure:"parallelism"`
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (s ScrapeConfig) Timeouts() param.Timeouts {
	t := param.DefaultTimeouts()
	if s.NavigationTimeout > 0 {
		t.Navigation = seconds(s.NavigationTimeout)
	}
	if s.ElementWaitTimeout > 0 {
		t.ElementWait = seconds(s.ElementWaitTimeout)
	}
	return t
}

func (s ScrapeConfig) DelayRange() param.DelayRange {
	d := param.DefaultDelayRange()
	if s.DelayMin > 0 || s.DelayMax > 0 {
		d.Min = seconds(s.DelayMin)
		d.Max = seconds(s.DelayMax)
	}
	if d.Max < d.Min {
		d.Max = d.Min
	}
	return d
}

func (s ScrapeConfig) Backoff() time.Duration {
	if s.BackoffBase <= 0 {
		return time.Second
	}
	return seconds(s.BackoffBase)
}

func (s ScrapeConfig) RetryCount() int {
	if s.Retries <= 0 {
		return 3
	}
	return s.Retries
}

func (s ScrapeConfig) Workers() int {
	if s.Parallelism <= 0 {
		return 1
	}
	return s.Parallelism
}
