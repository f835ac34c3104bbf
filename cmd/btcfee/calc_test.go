package main

import (
	"strings"
	"testing"

	"btcfee/internal/domain/fee"
)

func TestResultLines(t *testing.T) {
	res, err := fee.Calculate(fee.BuyWithFixedBalance, fee.Input{Amount: "100150", ReferencePrice: "10000000", FeeRatePercent: "0.15"})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	lines := resultLines(res)
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "mode:") || !strings.Contains(lines[0], "buy-balance") {
		t.Errorf("unexpected mode line %q", lines[0])
	}
	if !strings.Contains(lines[3], "100,000 円") {
		t.Errorf("unexpected net line %q", lines[3])
	}
	if !strings.Contains(lines[4], "0.01000000 BTC") {
		t.Errorf("unexpected net btc line %q", lines[4])
	}
}

func TestCopyValue(t *testing.T) {
	res, err := fee.Calculate(fee.SellBtc, fee.Input{Amount: "0.01", ReferencePrice: "7000000"})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	tests := map[string]string{
		"order": "0.01000000",
		"fee":   "105",
		"NET":   "69895",
	}
	for target, want := range tests {
		got, err := copyValue(res, target)
		if err != nil || got != want {
			t.Errorf("copyValue(%q) = %q, %v; want %q", target, got, err, want)
		}
	}

	if _, err := copyValue(res, "net-btc"); err == nil {
		t.Errorf("sell-btc has no net BTC amount")
	}
	if _, err := copyValue(res, "everything"); err == nil {
		t.Errorf("expected error for unknown target")
	}
}
