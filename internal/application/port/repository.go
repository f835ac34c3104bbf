package port

import "context"

// Repository 当前价格的镜像存储（只保留最新值，不存历史）
type Repository interface {
	UpsertLatestPrice(ctx context.Context, ex, symbol string, price float64, source string, ts int64) error

	// Connection management
	Close() error
}
