package bitflyer

import (
	"encoding/json"
	"fmt"
)

const (
	DefaultWsURL   = "wss://ws.lightstream.bitflyer.com/json-rpc"
	DefaultRestURL = "https://api.bitflyer.com"
	DefaultProduct = "BTC_JPY"
)

// TickerChannel 返回产品对应的 ticker 频道名，e.g. lightning_ticker_BTC_JPY
func TickerChannel(product string) string {
	return "lightning_ticker_" + product
}

type subscribeReq struct {
	Method string          `json:"method"`
	Params subscribeParams `json:"params"`
}

type subscribeParams struct {
	Channel string `json:"channel"`
}

// channelMessage JSON-RPC 推送信封
type channelMessage struct {
	Method string         `json:"method"`
	Params *channelParams `json:"params"`
}

type channelParams struct {
	Channel string         `json:"channel"`
	Message *tickerPayload `json:"message"`
}

type tickerPayload struct {
	ProductCode string   `json:"product_code"`
	Timestamp   string   `json:"timestamp"`
	LTP         *float64 `json:"ltp"`
}

// tickerResp GET /v1/ticker 响应
type tickerResp struct {
	ProductCode string   `json:"product_code"`
	Timestamp   string   `json:"timestamp"`
	LTP         *float64 `json:"ltp"`
}

// DecodeTicker 解析推送消息。只有 params.message.ltp 存在时 ok=true；
// 合法但无关的消息（订阅确认等）返回 ok=false, err=nil。
func DecodeTicker(b []byte) (float64, bool, error) {
	var msg channelMessage
	if err := json.Unmarshal(b, &msg); err != nil {
		return 0, false, fmt.Errorf("decode ticker message: %w", err)
	}
	if msg.Params == nil || msg.Params.Message == nil || msg.Params.Message.LTP == nil {
		return 0, false, nil
	}
	return *msg.Params.Message.LTP, true, nil
}
