package domain

import "time"

const (
	ExchangeBitflyer = "BITFLYER"
	ProductBTCJPY    = "BTC_JPY"
)

// Direction represents the price movement direction
type Direction int

const (
	DirectionSame Direction = 0
	DirectionUp   Direction = +1
	DirectionDown Direction = -1
)

// Source 价格样本的来源
type Source int

const (
	SourceStream Source = iota
	SourcePoll
)

func (s Source) String() string {
	switch s {
	case SourceStream:
		return "stream"
	case SourcePoll:
		return "poll"
	default:
		return "unknown"
	}
}

// ConnectionState 推送连接的健康状态，只由 PriceFeed 写入
type ConnectionState int

const (
	StateConnecting ConnectionState = iota
	StateLive
	StateDisconnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// PriceSample 当前最新成交价（单值，不保留历史）
type PriceSample struct {
	LTP        float64   // last traded price, JPY per BTC
	ObservedAt time.Time // local receipt time
	Source     Source
}

// Valid reports whether the sample carries a usable price.
func (ps PriceSample) Valid() bool {
	return ps.LTP > 0
}

// DirectionFrom compares the sample with the previous one.
func (ps PriceSample) DirectionFrom(prev PriceSample) Direction {
	if !prev.Valid() {
		return DirectionSame
	}
	switch {
	case ps.LTP > prev.LTP:
		return DirectionUp
	case ps.LTP < prev.LTP:
		return DirectionDown
	default:
		return DirectionSame
	}
}
