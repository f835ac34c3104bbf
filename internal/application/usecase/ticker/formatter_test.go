package ticker

import (
	"strings"
	"testing"
	"time"

	"btcfee/internal/domain"
)

func TestFormatterRender(t *testing.T) {
	f := NewFormatter(domain.ProductBTCJPY)
	f.NoColor = true

	snap := Snapshot{
		Sample: domain.PriceSample{
			LTP:        10234567,
			ObservedAt: time.Date(2025, 1, 2, 15, 4, 5, 0, time.Local),
			Source:     domain.SourcePoll,
		},
		HasPrice:  true,
		Direction: domain.DirectionUp,
		State:     domain.StateLive,
	}

	line := f.Render(snap, RenderSnapshot)
	for _, want := range []string{"BTC_JPY", "¥10,234,567", "poll 15:04:05", "LIVE"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in %q", want, line)
		}
	}
	if strings.HasPrefix(line, "\r") {
		t.Errorf("snapshot line must not start with carriage return")
	}

	live := f.Render(Snapshot{State: domain.StateConnecting}, RenderLive)
	if !strings.HasPrefix(live, "\r") || !strings.Contains(live, "connecting...") {
		t.Errorf("unexpected live line %q", live)
	}

	errLine := f.Render(Snapshot{State: domain.StateError, LastError: parseErrorText}, RenderSnapshot)
	if !strings.Contains(errLine, "ERR") || !strings.Contains(errLine, parseErrorText) {
		t.Errorf("unexpected error line %q", errLine)
	}
}
