package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"btcfee/internal/application/port"
	"btcfee/internal/domain/fee"
	"btcfee/internal/infrastructure/metrics"

	"github.com/rs/zerolog/log"
)

const livePriceTimeout = 10 * time.Second

// ErrLivePriceUnavailable 请求使用实时价格但价格源没有可用值
var ErrLivePriceUnavailable = errors.New("live price unavailable")

// FeeService 在纯计算之外补上默认费率、实时价格回填和指标
type FeeService struct {
	defaultRate string
	live        port.TickerFetcher
}

// NewFeeService live 可以为 nil，此时不回填价格
func NewFeeService(defaultRate string, live port.TickerFetcher) *FeeService {
	if strings.TrimSpace(defaultRate) == "" {
		defaultRate = fee.DefaultFeeRatePercent
	}
	return &FeeService{defaultRate: defaultRate, live: live}
}

func (s *FeeService) DefaultRate() string { return s.defaultRate }

// Calculate 先按 金额 → 手续费率 → 价格 校验；只有价格留空且前两项通过时，才从实时价格源回填
func (s *FeeService) Calculate(ctx context.Context, mode fee.Mode, in fee.Input) (*fee.Result, error) {
	if strings.TrimSpace(in.FeeRatePercent) == "" {
		in.FeeRatePercent = s.defaultRate
	}

	res, err := fee.Calculate(mode, in)
	if errors.Is(err, fee.ErrInvalidPrice) && strings.TrimSpace(in.ReferencePrice) == "" && s.live != nil {
		ltp, lerr := s.livePrice(ctx)
		if lerr != nil {
			metrics.CalculationsTotal.WithLabelValues(mode.String(), "no_price").Inc()
			return nil, lerr
		}
		in.ReferencePrice = strconv.FormatFloat(ltp, 'f', -1, 64)
		res, err = fee.Calculate(mode, in)
	}
	if err != nil {
		metrics.CalculationsTotal.WithLabelValues(mode.String(), "invalid").Inc()
		log.Debug().Str("mode", mode.String()).Err(err).Msg("calculation rejected")
		return nil, err
	}

	metrics.CalculationsTotal.WithLabelValues(mode.String(), "ok").Inc()
	return res, nil
}

func (s *FeeService) livePrice(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, livePriceTimeout)
	defer cancel()

	ltp, err := s.live.FetchLTP(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLivePriceUnavailable, err)
	}
	if !(ltp > 0) {
		return 0, ErrLivePriceUnavailable
	}
	return ltp, nil
}
