package fee

import (
	"strings"

	"github.com/samber/lo"
)

// Mode 计算模式：决定哪个数量是输入、哪个是推导值
type Mode int

const (
	BuyWithYenTarget    Mode = iota + 1 // 想用多少日元买入（手续费另加）
	BuyToReachBtcTarget                 // 想收到多少 BTC
	BuyWithFixedBalance                 // 用固定的日元余额全部买入
	SellBtc                             // 卖出多少 BTC
	ReceiveYenTarget                    // 想在扣费后收到多少日元
)

var modeNames = map[Mode]string{
	BuyWithYenTarget:    "buy-jpy",
	BuyToReachBtcTarget: "buy-btc",
	BuyWithFixedBalance: "buy-balance",
	SellBtc:             "sell-btc",
	ReceiveYenTarget:    "receive-jpy",
}

// Modes returns every mode in display order.
func Modes() []Mode {
	return []Mode{BuyWithYenTarget, BuyToReachBtcTarget, BuyWithFixedBalance, SellBtc, ReceiveYenTarget}
}

// ModeNames CLI/HTTP 使用的模式名，顺序同 Modes
func ModeNames() []string {
	return lo.Map(Modes(), func(m Mode, _ int) string { return m.String() })
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unknown"
}

// ParseMode 解析命令行/HTTP 使用的模式名
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, ErrUnknownMode
}

// NeedsPrice reports whether the mode requires a reference price.
func (m Mode) NeedsPrice() bool {
	return m != BuyWithYenTarget
}

// AmountUnit 输入金额的单位（用于粘贴时选择整数或小数清洗）
func (m Mode) AmountUnit() Unit {
	switch m {
	case BuyToReachBtcTarget, SellBtc:
		return UnitBTC
	default:
		return UnitYen
	}
}
