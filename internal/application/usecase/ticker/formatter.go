package ticker

import (
	"strings"
	"time"

	"btcfee/internal/domain"
	"btcfee/internal/domain/fee"
)

const (
	ansiReset    = "\033[0m"
	ansiRed      = "\033[31m"
	ansiGreen    = "\033[32m"
	ansiYellow   = "\033[33m"
	ansiDim      = "\033[2m"
	ansiClearEOL = "\033[K"
)

func colorize(s, c string) string { return c + s + ansiReset }

type Formatter struct {
	Product string
	NoColor bool
}

func NewFormatter(product string) *Formatter {
	return &Formatter{Product: product}
}

type RenderMode int

const (
	RenderLive RenderMode = iota
	RenderSnapshot
)

func (f *Formatter) c(s, col string) string {
	if f.NoColor {
		return s
	}
	return colorize(s, col)
}

// Render 输出一行价格板：价格（按涨跌着色）、来源、更新时间、连接状态
func (f *Formatter) Render(snap Snapshot, mode RenderMode) string {
	var sb strings.Builder
	if mode == RenderLive {
		sb.WriteString("\r")
	}

	sb.WriteString(f.c("[BTCFEE] ", ansiDim))
	sb.WriteString(f.Product)
	sb.WriteString(" ")

	switch {
	case snap.HasPrice:
		col := ansiYellow
		switch snap.Direction {
		case domain.DirectionUp:
			col = ansiGreen
		case domain.DirectionDown:
			col = ansiRed
		}
		sb.WriteString(f.c("¥"+fee.FormatYen(snap.Sample.LTP), col))
		sb.WriteString(f.c(" ("+snap.Sample.Source.String()+" "+snap.Sample.ObservedAt.Format(time.TimeOnly)+")", ansiDim))
	case snap.State == domain.StateError:
		sb.WriteString(f.c("connection error", ansiRed))
	case snap.State == domain.StateLive:
		sb.WriteString(f.c("waiting for data...", ansiDim))
	default:
		sb.WriteString(f.c("connecting...", ansiDim))
	}

	sb.WriteString(" ")
	sb.WriteString(f.stateBadge(snap.State))
	if snap.LastError != "" {
		sb.WriteString(" ")
		sb.WriteString(f.c("! "+snap.LastError, ansiRed))
	}

	if mode == RenderLive {
		sb.WriteString(ansiClearEOL)
	}
	return sb.String()
}

func (f *Formatter) stateBadge(st domain.ConnectionState) string {
	switch st {
	case domain.StateLive:
		return f.c("LIVE", ansiGreen)
	case domain.StateError:
		return f.c("ERR", ansiRed)
	case domain.StateConnecting:
		return f.c("...", ansiYellow)
	default:
		return f.c("OFF", ansiRed)
	}
}
