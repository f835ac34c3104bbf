package fee

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// BTCDecimals satoshi precision
const BTCDecimals = 8

const (
	yenSuffix = " 円"
	btcSuffix = " BTC"
)

var jaPrinter = message.NewPrinter(language.Japanese)

type Unit int

const (
	UnitYen Unit = iota
	UnitBTC
)

func (u Unit) String() string {
	if u == UnitBTC {
		return "BTC"
	}
	return "JPY"
}

// Amount 带单位的数值
type Amount struct {
	Value float64
	Unit  Unit
}

func Yen(v float64) Amount { return Amount{Value: v, Unit: UnitYen} }
func BTC(v float64) Amount { return Amount{Value: v, Unit: UnitBTC} }

// Display 展示用字符串：日元带千分位，BTC 固定 8 位小数
func (a Amount) Display() string {
	if a.Unit == UnitBTC {
		return FormatBTC(a.Value) + btcSuffix
	}
	return FormatYen(a.Value) + yenSuffix
}

// Copyable 机器可解析的字符串（无千分位、无单位）
func (a Amount) Copyable() string {
	if a.Unit == UnitBTC {
		return FormatBTC(a.Value)
	}
	return PlainYen(a.Value)
}

// FormatBTC rounds half away from zero to 8 fractional digits and always prints all of them.
func FormatBTC(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(BTCDecimals)
}

// FormatYen 四舍五入到整数日元并按 ja-JP 习惯加千分位
func FormatYen(v float64) string {
	return jaPrinter.Sprintf("%d", roundYen(v))
}

// PlainYen 四舍五入到整数日元，不带分隔符
func PlainYen(v float64) string {
	return decimal.NewFromInt(roundYen(v)).String()
}

func roundYen(v float64) int64 {
	return decimal.NewFromFloat(v).Round(0).IntPart()
}

// parseNumber 接受用户输入/粘贴的数字，忽略千分位和首尾空白。
// decimal 不接受 NaN/Inf 字面量，超出 float64 范围的值在转换后拒绝。
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
