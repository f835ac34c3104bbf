package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"btcfee/internal/application/port"
	"btcfee/internal/application/usecase/ticker"
	"btcfee/internal/infrastructure/container"
	"btcfee/internal/interfaces/clipboard"
	"btcfee/internal/interfaces/console"
)

func tickerCommand() *cli.Command {
	return &cli.Command{
		Name:  "ticker",
		Usage: "stream the live BTC/JPY last traded price",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-color", Usage: "disable ANSI colours"},
			&cli.DurationFlag{Name: "print-every", Usage: "also print a snapshot line at this interval (0 disables)"},
			&cli.BoolFlag{Name: "copy-on-first", Usage: "copy the first received price to the clipboard"},
		},
		Action: runTicker,
	}
}

func runTicker(c *cli.Context) error {
	cfg := configFrom(c)

	ctr, err := container.New(cfg)
	if err != nil {
		return err
	}
	defer ctr.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := console.NewSink(os.Stdout)
	formatter := ticker.NewFormatter(cfg.Feed.ProductCode)
	formatter.NoColor = c.Bool("no-color") || !stdoutIsTerminal()

	var copier *firstPriceCopier
	if c.Bool("copy-on-first") {
		copier = &firstPriceCopier{cb: clipboard.New()}
	}

	feed := ctr.NewFeed(func(snap ticker.Snapshot) {
		_ = sink.WriteLive(formatter.Render(snap, ticker.RenderLive))
		if copier != nil {
			copier.observe(snap)
		}
	})

	if every := c.Duration("print-every"); every > 0 {
		go printSnapshots(ctx, every, feed, formatter, sink)
	}

	log.Info().
		Str("product", cfg.Feed.ProductCode).
		Str("ws_url", cfg.Feed.WsURL).
		Msg("btcfee ticker started")

	err = feed.Run(ctx)
	_ = sink.NewLine()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printSnapshots(ctx context.Context, every time.Duration, feed *ticker.Feed, f *ticker.Formatter, sink port.Sink) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = sink.WriteLine("\n" + f.Render(feed.Snapshot(), ticker.RenderSnapshot))
		}
	}
}

// firstPriceCopier 把第一次收到的成交价写入剪贴板，之后不再写
type firstPriceCopier struct {
	cb   *clipboard.Clipboard
	once sync.Once
}

func (p *firstPriceCopier) observe(snap ticker.Snapshot) {
	if !snap.HasPrice {
		return
	}
	p.once.Do(func() {
		value, err := p.cb.CopyPrice(snap.Sample.LTP)
		if err != nil {
			log.Warn().Err(err).Msg("copy price to clipboard failed")
			return
		}
		log.Info().Str("copied", value).Msg("price copied to clipboard")
	})
}
