package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "KOMPRICE"

// ParseConfig 解析JSON格式的配置
func ParseConfig(byteConfig []byte) (*Config, error) {
	var cfg Config
	err := json.Unmarshal(byteConfig, &cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.absPaths(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads the config file at path (any format viper understands) and
// applies KOMPRICE_* environment overrides, e.g. KOMPRICE_POSTGRES_DSN.
// An empty path uses defaults and the environment only.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.absPaths(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rod.headless", true)
	v.SetDefault("rod.leakless", true)
	v.SetDefault("rod.pool_size", 2)
	v.SetDefault("rod.user_data_dir", "")
	v.SetDefault("chromedp.headless", true)
	v.SetDefault("chromedp.viewport_width", 1280)
	v.SetDefault("chromedp.viewport_height", 720)
	v.SetDefault("chromedp.user_data_dir", "")
	v.SetDefault("colly.user_agent", "")
	v.SetDefault("colly.ignore_robots_txt", false)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("elasticsearch.address", "")
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.queue_key", "komprice:jobs")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("scrape.backend", string(BackendRod))
	v.SetDefault("scrape.navigation_timeout", 60)
	v.SetDefault("scrape.element_wait_timeout", 30)
	v.SetDefault("scrape.retries", 3)
	v.SetDefault("scrape.backoff_base", 1)
	v.SetDefault("scrape.delay_min", 1)
	v.SetDefault("scrape.delay_max", 3)
	v.SetDefault("scrape.parallelism", 2)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("paths.taxonomy", "configs/taxonomy.yaml")
	v.SetDefault("paths.selectors", "configs/selectors")
	v.SetDefault("paths.jobs", "configs/category_settings.yaml")
}

func (cfg *Config) absPaths() error {
	for _, p := range []*string{&cfg.Chromedp.UserDataDir, &cfg.Rod.UserDataDir} {
		if *p == "" {
			continue
		}
		absPath, err := filepath.Abs(*p)
		if err != nil {
			return err
		}
		*p = absPath
	}
	return nil
}
