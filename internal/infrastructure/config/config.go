package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

type Config struct {
	App struct {
		LogLevel string `toml:"log_level"`
	} `toml:"app"`

	Feed struct {
		WsURL             string `toml:"ws_url"`
		Channel           string `toml:"channel"`
		RestURL           string `toml:"rest_url"`
		ProductCode       string `toml:"product_code"`
		ReconnectDelaySec int    `toml:"reconnect_delay_sec"`
		PollIntervalSec   int    `toml:"poll_interval_sec"`
		PollEnabled       *bool  `toml:"poll_enabled"`
	} `toml:"feed"`

	Fee struct {
		DefaultRatePercent string `toml:"default_rate_percent"`
	} `toml:"fee"`

	Server struct {
		Addr string `toml:"addr"`
	} `toml:"server"`

	Storage struct {
		Enabled bool `toml:"enabled"`

		SQLite struct {
			Enabled bool   `toml:"enabled"`
			Path    string `toml:"path"`
		} `toml:"sqlite"`

		Redis struct {
			Enabled    bool   `toml:"enabled"`
			Addr       string `toml:"addr"`
			Password   string `toml:"password"`
			DB         int    `toml:"db"`
			Prefix     string `toml:"prefix"`
			TTLSeconds int    `toml:"ttl_sec"`
			Channel    string `toml:"channel"`
		} `toml:"redis"`

		Postgres struct {
			Enabled bool   `toml:"enabled"`
			DSN     string `toml:"dsn"`
		} `toml:"postgres"`
	} `toml:"storage"`
}

// Load 读取 toml 文件，补默认值后校验
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 未指定配置文件时使用
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}

	cfg.Feed.ProductCode = strings.ToUpper(strings.TrimSpace(cfg.Feed.ProductCode))
	if cfg.Feed.ProductCode == "" {
		cfg.Feed.ProductCode = "BTC_JPY"
	}
	if cfg.Feed.WsURL == "" {
		cfg.Feed.WsURL = "wss://ws.lightstream.bitflyer.com/json-rpc"
	}
	if cfg.Feed.Channel == "" {
		cfg.Feed.Channel = "lightning_ticker_" + cfg.Feed.ProductCode
	}
	if cfg.Feed.RestURL == "" {
		cfg.Feed.RestURL = "https://api.bitflyer.com"
	}
	if cfg.Feed.ReconnectDelaySec <= 0 {
		cfg.Feed.ReconnectDelaySec = 5
	}
	if cfg.Feed.PollIntervalSec <= 0 {
		cfg.Feed.PollIntervalSec = 30
	}
	if cfg.Feed.PollEnabled == nil {
		on := true
		cfg.Feed.PollEnabled = &on
	}

	if strings.TrimSpace(cfg.Fee.DefaultRatePercent) == "" {
		cfg.Fee.DefaultRatePercent = "0.15"
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/btcfee.db"
	}
	if cfg.Storage.Redis.Addr == "" {
		cfg.Storage.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Storage.Redis.Prefix == "" {
		cfg.Storage.Redis.Prefix = "btcfee"
	}
}

func validate(cfg *Config) error {
	for name, raw := range map[string]string{"feed.ws_url": cfg.Feed.WsURL, "feed.rest_url": cfg.Feed.RestURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s is not a valid url: %q", name, raw)
		}
	}

	rate, err := decimal.NewFromString(strings.TrimSpace(cfg.Fee.DefaultRatePercent))
	if err != nil {
		return fmt.Errorf("fee.default_rate_percent: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return errors.New("fee.default_rate_percent must be in [0, 100)")
	}

	if cfg.Storage.Redis.DB < 0 {
		return errors.New("storage.redis.db must be >= 0")
	}
	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return errors.New("storage.postgres.dsn empty but enabled")
	}
	if cfg.Storage.SQLite.Enabled && strings.TrimSpace(cfg.Storage.SQLite.Path) == "" {
		return errors.New("storage.sqlite.path empty but enabled")
	}
	return nil
}

func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Feed.ReconnectDelaySec) * time.Second
}

// PollInterval 轮询关闭时返回 0
func (c *Config) PollInterval() time.Duration {
	if c.Feed.PollEnabled != nil && !*c.Feed.PollEnabled {
		return 0
	}
	return time.Duration(c.Feed.PollIntervalSec) * time.Second
}

func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Storage.Redis.TTLSeconds) * time.Second
}

// DefaultFeeRate 规范化后的默认费率文本，e.g. "0.15"
func (c *Config) DefaultFeeRate() string {
	s := strings.TrimSpace(c.Fee.DefaultRatePercent)
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return "0.15"
	}
	return s
}
