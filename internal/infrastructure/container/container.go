package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"btcfee/internal/application/port"
	"btcfee/internal/application/usecase/ticker"
	"btcfee/internal/domain"
	"btcfee/internal/infrastructure/config"
	"btcfee/internal/infrastructure/exchange/bitflyer"
	"btcfee/internal/infrastructure/storage/composite"
	pgrepo "btcfee/internal/infrastructure/storage/postgres"
	redisrepo "btcfee/internal/infrastructure/storage/redis"
	sqliterepo "btcfee/internal/infrastructure/storage/sqlite"
)

// Container 包含所有应用依赖
type Container struct {
	cfg         *config.Config
	repos       []port.Repository
	repo        port.Repository
	closeOnce   sync.Once
	closerChain []func() error
}

// New 创建新的容器实例
func New(cfg *config.Config) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		closerChain: make([]func() error, 0),
	}

	// 初始化存储层
	if cfg.Storage.Enabled {
		if err := c.initStorage(); err != nil {
			// 清理已初始化的资源
			_ = c.Close()
			return nil, err
		}
	}

	if len(c.repos) == 0 {
		c.repo = ticker.NewNoopRepo()
	} else {
		c.repo = composite.New(c.repos...)
	}

	return c, nil
}

// initStorage 初始化最新价镜像（Redis、SQLite、Postgres）
func (c *Container) initStorage() error {
	if c.cfg.Storage.Redis.Enabled {
		if err := c.initRedis(); err != nil {
			return fmt.Errorf("redis init failed: %w", err)
		}
	}

	if c.cfg.Storage.SQLite.Enabled {
		if err := c.initSQLite(); err != nil {
			return fmt.Errorf("sqlite init failed: %w", err)
		}
	}

	if c.cfg.Storage.Postgres.Enabled {
		if err := c.initPostgres(); err != nil {
			return fmt.Errorf("postgres init failed: %w", err)
		}
	}

	return nil
}

// initRedis 初始化 Redis 连接
func (c *Container) initRedis() error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.cfg.Storage.Redis.Addr,
		Password: c.cfg.Storage.Redis.Password,
		DB:       c.cfg.Storage.Redis.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	c.repos = append(c.repos, redisrepo.New(
		rdb,
		c.cfg.Storage.Redis.Prefix,
		c.cfg.RedisTTL(),
		c.cfg.Storage.Redis.Channel,
	))

	// 注册关闭回调
	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", c.cfg.Storage.Redis.Addr).
		Int("db", c.cfg.Storage.Redis.DB).
		Msg("redis initialized")

	return nil
}

// initSQLite 初始化 SQLite 数据库
func (c *Container) initSQLite() error {
	repo, err := sqliterepo.New(c.cfg.Storage.SQLite.Path)
	if err != nil {
		return err
	}

	c.repos = append(c.repos, repo)
	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().
		Str("path", c.cfg.Storage.SQLite.Path).
		Msg("sqlite initialized")

	return nil
}

// initPostgres 初始化 Postgres
func (c *Container) initPostgres() error {
	repo, err := pgrepo.New(c.cfg.Storage.Postgres.DSN)
	if err != nil {
		return err
	}

	c.repos = append(c.repos, repo)
	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing postgres connection")
		return repo.Close()
	})

	log.Info().Msg("postgres initialized")
	return nil
}

// Repository 最新价镜像；存储关闭时为 noop
func (c *Container) Repository() port.Repository {
	return c.repo
}

// NewFeed 按配置组装 bitFlyer 价格源
func (c *Container) NewFeed(onUpdate func(ticker.Snapshot)) *ticker.Feed {
	feedCfg := c.cfg.Feed

	var fetcher port.TickerFetcher
	if c.cfg.PollInterval() > 0 {
		fetcher = bitflyer.NewTickerClient(feedCfg.RestURL, feedCfg.ProductCode)
	}

	return ticker.NewFeed(ticker.FeedDeps{
		Dialer:         bitflyer.NewStreamDialer(feedCfg.WsURL),
		Fetcher:        fetcher,
		Decode:         bitflyer.DecodeTicker,
		Channel:        feedCfg.Channel,
		Exchange:       domain.ExchangeBitflyer,
		Product:        feedCfg.ProductCode,
		ReconnectDelay: c.cfg.ReconnectDelay(),
		PollInterval:   c.cfg.PollInterval(),
		Repo:           c.repo,
		OnUpdate:       onUpdate,
	})
}

// NewTickerClient 单次取价用（calc --live-price）
func (c *Container) NewTickerClient() *bitflyer.TickerClient {
	return bitflyer.NewTickerClient(c.cfg.Feed.RestURL, c.cfg.Feed.ProductCode)
}

// Close 关闭所有资源（按后进先出顺序）
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Info().Msg("container closed")
	})
	return err
}
