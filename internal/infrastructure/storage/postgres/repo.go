package postgres

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"

	"btcfee/internal/application/port"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

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
  price DOUBLE PRECISION NOT NULL,
  source TEXT NOT NULL,
  ts_ms BIGINT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (exchange, symbol)
);
`)
	return err
}

func (r *Repo) UpsertLatestPrice(ctx context.Context, ex, symbol string, price float64, source string, ts int64) error {
	if price <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO latest_prices(exchange, symbol, price, source, ts_ms, updated_at)
		VALUES($1, $2, $3, $4, $5, now())
		ON CONFLICT (exchange, symbol) DO UPDATE SET
		price = EXCLUDED.price, source = EXCLUDED.source, ts_ms = EXCLUDED.ts_ms, updated_at = now()
	`, ex, symbol, price, source, ts)
	return err
}

var _ port.Repository = (*Repo)(nil)
