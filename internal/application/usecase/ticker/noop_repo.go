package ticker

import (
	"context"

	"btcfee/internal/application/port"
)

type noopRepo struct{}

func NewNoopRepo() port.Repository { return &noopRepo{} }

func (n *noopRepo) UpsertLatestPrice(ctx context.Context, ex, symbol string, price float64, source string, ts int64) error {
	return nil
}

func (n *noopRepo) Close() error { return nil }
