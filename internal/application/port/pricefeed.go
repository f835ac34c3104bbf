package port

import "context"

// StreamConn 一条已建立的推送连接
type StreamConn interface {
	// Subscribe 发送一次频道订阅请求
	Subscribe(channel string) error
	// ReadMessage 阻塞读取下一条原始消息，连接断开时返回错误
	ReadMessage() ([]byte, error)
	Close() error
}

// StreamDialer 建立推送连接
type StreamDialer interface {
	Dial(ctx context.Context) (StreamConn, error)
}

// TickerFetcher 通过 REST 拉取最新成交价
type TickerFetcher interface {
	FetchLTP(ctx context.Context) (float64, error)
}

// TickerDecoder 解析推送消息。
// ok=false 表示消息合法但不含行情（如订阅确认），err 表示消息无法解析。
type TickerDecoder func(b []byte) (ltp float64, ok bool, err error)
