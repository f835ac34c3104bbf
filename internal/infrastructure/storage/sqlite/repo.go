package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"btcfee/internal/application/port"
)

// ErrNotFound 尚未写入过该交易所/产品的价格
var ErrNotFound = errors.New("sqlite: latest price not found")

type Repo struct {
	db *sql.DB
}

// LatestPrice 镜像中保存的一行
type LatestPrice struct {
	Exchange string
	Symbol   string
	Price    float64
	Source   string
	Ts       int64
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS latest_prices (
  exchange TEXT NOT NULL,
  symbol TEXT NOT NULL,
  price REAL NOT NULL,
  source TEXT NOT NULL,
  ts_ms INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY(exchange, symbol)
);
`)
	return err
}

// UpsertLatestPrice 每个 (exchange, symbol) 只保留一行
func (r *Repo) UpsertLatestPrice(ctx context.Context, ex, symbol string, price float64, source string, ts int64) error {
	if price <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO latest_prices(exchange, symbol, price, source, ts_ms, updated_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(exchange, symbol) DO UPDATE SET
		price=excluded.price, source=excluded.source, ts_ms=excluded.ts_ms, updated_at=excluded.updated_at
	`, ex, symbol, price, source, ts, time.Now().UnixMilli())
	return err
}

func (r *Repo) LatestPrice(ctx context.Context, ex, symbol string) (LatestPrice, error) {
	lp := LatestPrice{Exchange: ex, Symbol: symbol}
	err := r.db.QueryRowContext(ctx,
		`SELECT price, source, ts_ms FROM latest_prices WHERE exchange=? AND symbol=?`, ex, symbol).
		Scan(&lp.Price, &lp.Source, &lp.Ts)
	if errors.Is(err, sql.ErrNoRows) {
		return lp, ErrNotFound
	}
	return lp, err
}

// Count 表中的行数
func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM latest_prices`).Scan(&n)
	return n, err
}

var _ port.Repository = (*Repo)(nil)
