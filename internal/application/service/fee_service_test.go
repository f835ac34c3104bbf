package service

import (
	"context"
	"errors"
	"testing"

	"btcfee/internal/domain/fee"
)

type stubFetcher struct {
	ltp   float64
	err   error
	calls int
}

func (s *stubFetcher) FetchLTP(ctx context.Context) (float64, error) {
	s.calls++
	return s.ltp, s.err
}

func TestFeeServiceDefaultRate(t *testing.T) {
	s := NewFeeService("0.1", nil)

	res, err := s.Calculate(context.Background(), fee.BuyWithYenTarget, fee.Input{Amount: "10000"})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if res.FeeRate != "0.1%" {
		t.Errorf("expected configured default rate, got %q", res.FeeRate)
	}
	if res.Copyable.FeeAmount != "10" {
		t.Errorf("unexpected fee %q", res.Copyable.FeeAmount)
	}

	if NewFeeService("", nil).DefaultRate() != fee.DefaultFeeRatePercent {
		t.Errorf("empty default rate should fall back")
	}
}

func TestFeeServiceLivePrice(t *testing.T) {
	live := &stubFetcher{ltp: 7000000}
	s := NewFeeService("0.15", live)

	res, err := s.Calculate(context.Background(), fee.SellBtc, fee.Input{Amount: "0.01"})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if res.Copyable.NetAmount != "69895" {
		t.Errorf("expected 69895, got %q", res.Copyable.NetAmount)
	}

	// explicit price wins over the live source
	res, err = s.Calculate(context.Background(), fee.SellBtc, fee.Input{Amount: "0.01", ReferencePrice: "1000000"})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if res.Copyable.NetAmount != "9985" {
		t.Errorf("expected 9985, got %q", res.Copyable.NetAmount)
	}
	if live.calls != 1 {
		t.Errorf("expected a single live lookup, got %d", live.calls)
	}

	// price-free mode never asks
	if _, err := s.Calculate(context.Background(), fee.BuyWithYenTarget, fee.Input{Amount: "1"}); err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if live.calls != 1 {
		t.Errorf("BuyWithYenTarget should not fetch a price")
	}
}

func TestFeeServiceLivePriceUnavailable(t *testing.T) {
	s := NewFeeService("0.15", &stubFetcher{err: errors.New("timeout")})
	if _, err := s.Calculate(context.Background(), fee.SellBtc, fee.Input{Amount: "0.01"}); !errors.Is(err, ErrLivePriceUnavailable) {
		t.Errorf("expected ErrLivePriceUnavailable, got %v", err)
	}

	s = NewFeeService("0.15", &stubFetcher{ltp: 0})
	if _, err := s.Calculate(context.Background(), fee.ReceiveYenTarget, fee.Input{Amount: "1000"}); !errors.Is(err, ErrLivePriceUnavailable) {
		t.Errorf("expected ErrLivePriceUnavailable, got %v", err)
	}
}

func TestFeeServiceValidation(t *testing.T) {
	s := NewFeeService("0.15", nil)
	if _, err := s.Calculate(context.Background(), fee.SellBtc, fee.Input{Amount: "abc", ReferencePrice: "1"}); !errors.Is(err, fee.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := s.Calculate(context.Background(), fee.SellBtc, fee.Input{Amount: "1"}); !errors.Is(err, fee.ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice without live source, got %v", err)
	}
}

func TestFeeServiceValidatesBeforeLivePrice(t *testing.T) {
	live := &stubFetcher{err: errors.New("down")}
	s := NewFeeService("0.15", live)

	tests := []struct {
		name string
		in   fee.Input
		want error
	}{
		{"text amount", fee.Input{Amount: "abc"}, fee.ErrInvalidAmount},
		{"zero amount", fee.Input{Amount: "0"}, fee.ErrInvalidAmount},
		{"negative fee", fee.Input{Amount: "0.01", FeeRatePercent: "-1"}, fee.ErrInvalidFeeRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Calculate(context.Background(), fee.SellBtc, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if live.calls != 0 {
		t.Errorf("live price fetched %d times for invalid input", live.calls)
	}

	// a bad explicit price is reported as such, not replaced
	if _, err := s.Calculate(context.Background(), fee.SellBtc, fee.Input{Amount: "0.01", ReferencePrice: "0"}); !errors.Is(err, fee.ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
	if live.calls != 0 {
		t.Errorf("explicit price should not trigger a live lookup")
	}
}
