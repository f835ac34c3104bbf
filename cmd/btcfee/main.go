package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "btcfee",
		Usage: "bitFlyer BTC/JPY fee calculator and live price ticker",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/config.toml",
				Usage:   "path to config.toml",
				EnvVars: []string{"BTCFEE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn, error (overrides app.log_level)",
				EnvVars: []string{"BTCFEE_LOG_LEVEL"},
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			tickerCommand(),
			calcCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("btcfee exited")
	}
}
