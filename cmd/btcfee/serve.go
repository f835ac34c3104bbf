package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"btcfee/internal/application/service"
	"btcfee/internal/infrastructure/container"
	"btcfee/internal/interfaces/httpapi"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the price feed behind an HTTP JSON API with Prometheus metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address (overrides server.addr)"},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg := configFrom(c)
	addr := cfg.Server.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}

	ctr, err := container.New(cfg)
	if err != nil {
		return err
	}
	defer ctr.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	feed := ctr.NewFeed(nil)
	if err := feed.Start(ctx); err != nil {
		return err
	}
	defer feed.Close()

	fees := service.NewFeeService(cfg.DefaultFeeRate(), feed)
	srv := httpapi.New(cfg.Feed.ProductCode, feed, fees)

	log.Info().
		Str("addr", addr).
		Str("product", cfg.Feed.ProductCode).
		Msg("btcfee server started")

	if err := srv.Run(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
