package fee

import (
	"math"
	"strings"
)

// DefaultFeeRatePercent bitFlyer Lightning 现货默认手续费率
const DefaultFeeRatePercent = "0.15"

// Input 原始输入（用户键入或粘贴的字符串）
type Input struct {
	Amount         string
	ReferencePrice string // JPY per BTC; ignored by BuyWithYenTarget
	FeeRatePercent string // empty means DefaultFeeRatePercent
}

// Copyable 可复制的纯数字字符串
type Copyable struct {
	OrderAmount  string
	FeeAmount    string
	NetAmount    string
	NetBTCAmount string
}

// Result 一次计算的不可变快照，下次计算整体替换
type Result struct {
	Mode Mode

	Order           Amount
	OrderEquivalent *Amount // yen value of a BTC-denominated order
	Fee             Amount
	Net             Amount
	NetBTC          *Amount

	OrderAmount        string
	OrderAmountSubtext string
	FeeAmount          string
	FeeRate            string
	NetAmount          string
	NetBTCAmount       string

	Copyable Copyable
}

// breakdown is what a formula produces before rendering.
type breakdown struct {
	order      Amount
	orderEquiv *Amount
	fee        Amount
	net        Amount
	netBTC     *Amount
}

type formula func(a, p, r float64) breakdown

var formulas = map[Mode]formula{
	BuyWithYenTarget:    buyWithYenTarget,
	BuyToReachBtcTarget: buyToReachBtcTarget,
	BuyWithFixedBalance: buyWithFixedBalance,
	SellBtc:             sellBtc,
	ReceiveYenTarget:    receiveYenTarget,
}

// 日元手续费另加：下单金额 = a × (1 + r)
func buyWithYenTarget(a, _, r float64) breakdown {
	return breakdown{
		order: Yen(a * (1 + r)),
		fee:   Yen(a * r),
		net:   Yen(a),
	}
}

// 手续费从收到的 BTC 中扣除：下单数量 = a ÷ (1 − r)
func buyToReachBtcTarget(a, p, r float64) breakdown {
	orderBTC := a / (1 - r)
	eq := Yen(orderBTC * p)
	return breakdown{
		order:      BTC(orderBTC),
		orderEquiv: &eq,
		fee:        BTC(orderBTC - a),
		net:        BTC(a),
	}
}

func buyWithFixedBalance(a, p, r float64) breakdown {
	netYen := a / (1 + r)
	netBTC := BTC(netYen / p)
	return breakdown{
		order:  Yen(a),
		fee:    Yen(a - netYen),
		net:    Yen(netYen),
		netBTC: &netBTC,
	}
}

func sellBtc(a, p, r float64) breakdown {
	gross := a * p
	eq := Yen(gross)
	return breakdown{
		order:      BTC(a),
		orderEquiv: &eq,
		fee:        Yen(gross * r),
		net:        Yen(gross * (1 - r)),
	}
}

// 卖出后想拿到 a 日元：下单数量 = a ÷ (p × (1 − r))
func receiveYenTarget(a, p, r float64) breakdown {
	orderBTC := a / (p * (1 - r))
	gross := orderBTC * p
	eq := Yen(gross)
	return breakdown{
		order:      BTC(orderBTC),
		orderEquiv: &eq,
		fee:        Yen(gross - a),
		net:        Yen(a),
	}
}

// Calculate 校验输入并按模式计算。校验按 金额 → 手续费率 → 价格 的顺序，
// 第一个失败即返回，不会产生部分结果。
func Calculate(mode Mode, in Input) (*Result, error) {
	f, ok := formulas[mode]
	if !ok {
		return nil, ErrUnknownMode
	}

	a, ok := parseNumber(in.Amount)
	if !ok || a <= 0 {
		return nil, ErrInvalidAmount
	}

	rateText := strings.TrimSpace(in.FeeRatePercent)
	if rateText == "" {
		rateText = DefaultFeeRatePercent
	}
	ratePct, ok := parseNumber(rateText)
	if !ok || ratePct < 0 || ratePct >= 100 {
		return nil, ErrInvalidFeeRate
	}

	var p float64
	if mode.NeedsPrice() {
		p, ok = parseNumber(in.ReferencePrice)
		if !ok || p <= 0 {
			return nil, ErrInvalidPrice
		}
	}

	b := f(a, p, ratePct/100)
	if !b.representable() {
		return nil, ErrInvalidAmount
	}
	return b.render(mode, rateText), nil
}

// maxYen 日元按 int64 取整显示，超出范围的结果无法表示
const maxYen = math.MaxInt64

// representable 所有数值有限，且日元数值在 int64 范围内
func (b breakdown) representable() bool {
	vals := []Amount{b.order, b.fee, b.net}
	if b.orderEquiv != nil {
		vals = append(vals, *b.orderEquiv)
	}
	if b.netBTC != nil {
		vals = append(vals, *b.netBTC)
	}
	for _, a := range vals {
		if math.IsInf(a.Value, 0) || math.IsNaN(a.Value) {
			return false
		}
		if a.Unit == UnitYen && math.Abs(a.Value) >= maxYen {
			return false
		}
	}
	return true
}

func (b breakdown) render(mode Mode, rateText string) *Result {
	res := &Result{
		Mode:            mode,
		Order:           b.order,
		OrderEquivalent: b.orderEquiv,
		Fee:             b.fee,
		Net:             b.net,
		NetBTC:          b.netBTC,

		OrderAmount: b.order.Display(),
		FeeAmount:   b.fee.Display(),
		FeeRate:     rateText + "%",
		NetAmount:   b.net.Display(),

		Copyable: Copyable{
			OrderAmount: b.order.Copyable(),
			FeeAmount:   b.fee.Copyable(),
			NetAmount:   b.net.Copyable(),
		},
	}
	if b.orderEquiv != nil {
		res.OrderAmountSubtext = "≈ " + b.orderEquiv.Display()
	}
	if b.netBTC != nil {
		res.NetBTCAmount = b.netBTC.Display()
		res.Copyable.NetBTCAmount = b.netBTC.Copyable()
	}
	return res
}
