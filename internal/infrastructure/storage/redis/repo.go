package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"btcfee/internal/application/port"

	"github.com/redis/go-redis/v9"
)

// Repo 最新价写入 hash，同时 PUBLISH 给订阅者
type Repo struct {
	rdb       *redis.Client
	prefix    string
	ttl       time.Duration
	keyLatest string // prefix + ":latest"
	channel   string
}

type LatestPrice struct {
	Exchange string  `json:"exchange"`
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	Source   string  `json:"source"`
	Ts       int64   `json:"ts"`
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, channel string) *Repo {
	if strings.TrimSpace(prefix) == "" {
		prefix = "btcfee"
	}
	if strings.TrimSpace(channel) == "" {
		channel = prefix + ":latest:pub"
	}
	return &Repo{
		rdb:       rdb,
		prefix:    prefix,
		ttl:       ttl,
		keyLatest: prefix + ":latest",
		channel:   channel,
	}
}

// Field hash 字段名，e.g. "BITFLYER:BTC_JPY"
func Field(ex, symbol string) string {
	return fmt.Sprintf("%s:%s", ex, symbol)
}

func (r *Repo) Key() string     { return r.keyLatest }
func (r *Repo) Channel() string { return r.channel }

func (r *Repo) UpsertLatestPrice(ctx context.Context, ex, symbol string, price float64, source string, ts int64) error {
	if price <= 0 {
		return nil
	}
	lp := LatestPrice{Exchange: ex, Symbol: symbol, Price: price, Source: source, Ts: ts}
	b, _ := json.Marshal(lp)

	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyLatest, Field(ex, symbol), string(b))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLatest, r.ttl)
	}
	pipe.Publish(ctx, r.channel, string(b))
	_, err := pipe.Exec(ctx)
	return err
}

// LatestPrice 读回 hash 中的最新价
func (r *Repo) LatestPrice(ctx context.Context, ex, symbol string) (LatestPrice, error) {
	var lp LatestPrice
	s, err := r.rdb.HGet(ctx, r.keyLatest, Field(ex, symbol)).Result()
	if err != nil {
		return lp, err
	}
	err = json.Unmarshal([]byte(s), &lp)
	return lp, err
}

// Close 客户端由 container 关闭
func (r *Repo) Close() error { return nil }

var _ port.Repository = (*Repo)(nil)
