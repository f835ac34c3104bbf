package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"btcfee/internal/application/port"
	"btcfee/internal/application/service"
	"btcfee/internal/domain/fee"
	"btcfee/internal/infrastructure/container"
	"btcfee/internal/interfaces/clipboard"
	"btcfee/internal/interfaces/console"
)

func calcCommand() *cli.Command {
	return &cli.Command{
		Name:      "calc",
		Usage:     "calculate order size, fee and net amount",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Required: true, Usage: strings.Join(fee.ModeNames(), ", ")},
			&cli.StringFlag{Name: "amount", Aliases: []string{"a"}, Usage: "yen or BTC amount, depending on mode"},
			&cli.StringFlag{Name: "price", Aliases: []string{"p"}, Usage: "reference price in JPY per BTC"},
			&cli.StringFlag{Name: "fee", Aliases: []string{"f"}, Usage: "fee rate in percent (default from config)"},
			&cli.BoolFlag{Name: "paste-amount", Usage: "read the amount from the clipboard"},
			&cli.BoolFlag{Name: "paste-price", Usage: "read the price from the clipboard"},
			&cli.BoolFlag{Name: "live-price", Usage: "fetch the current price when --price is empty"},
			&cli.StringFlag{Name: "copy", Usage: "copy a result to the clipboard: order, fee, net, net-btc"},
		},
		Action: runCalc,
	}
}

func runCalc(c *cli.Context) error {
	cfg := configFrom(c)

	mode, err := fee.ParseMode(c.String("mode"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("%v: %q", err, c.String("mode")), 2)
	}

	in := fee.Input{
		Amount:         c.String("amount"),
		ReferencePrice: c.String("price"),
		FeeRatePercent: c.String("fee"),
	}

	cb := clipboard.New()
	if c.Bool("paste-amount") {
		if mode.AmountUnit() == fee.UnitBTC {
			in.Amount, err = cb.PasteDecimal()
		} else {
			in.Amount, err = cb.PasteInteger()
		}
		if err != nil {
			return cli.Exit(fmt.Sprintf("paste amount: %v", err), 1)
		}
	}
	if c.Bool("paste-price") {
		if in.ReferencePrice, err = cb.PasteInteger(); err != nil {
			return cli.Exit(fmt.Sprintf("paste price: %v", err), 1)
		}
	}

	var live port.TickerFetcher
	if c.Bool("live-price") {
		ctr, err := container.New(cfg)
		if err != nil {
			return err
		}
		defer ctr.Close()
		live = ctr.NewTickerClient()
	}

	svc := service.NewFeeService(cfg.DefaultFeeRate(), live)
	res, err := svc.Calculate(c.Context, mode, in)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	sink := console.NewSink(os.Stdout)
	for _, line := range resultLines(res) {
		_ = sink.WriteLine(line)
	}

	if target := c.String("copy"); target != "" {
		value, err := copyValue(res, target)
		if err != nil {
			return cli.Exit(err.Error(), 2)
		}
		if err := cb.Copy(value); err != nil {
			// 剪贴板失败不影响计算结果
			log.Warn().Err(err).Msg("copy to clipboard failed")
			return nil
		}
		log.Info().Str("copied", value).Msg("copied to clipboard")
	}
	return nil
}

func resultLines(res *fee.Result) []string {
	order := res.OrderAmount
	if res.OrderAmountSubtext != "" {
		order += "  (" + res.OrderAmountSubtext + ")"
	}
	lines := []string{
		"mode:      " + res.Mode.String(),
		"order:     " + order,
		"fee:       " + res.FeeAmount + "  (" + res.FeeRate + ")",
		"net:       " + res.NetAmount,
	}
	if res.NetBTCAmount != "" {
		lines = append(lines, "net (BTC): "+res.NetBTCAmount)
	}
	return lines
}

func copyValue(res *fee.Result, target string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(target)) {
	case "order":
		return res.Copyable.OrderAmount, nil
	case "fee":
		return res.Copyable.FeeAmount, nil
	case "net":
		return res.Copyable.NetAmount, nil
	case "net-btc":
		if res.Copyable.NetBTCAmount == "" {
			return "", fmt.Errorf("mode %s has no net BTC amount", res.Mode)
		}
		return res.Copyable.NetBTCAmount, nil
	default:
		return "", fmt.Errorf("unknown copy target %q (order, fee, net, net-btc)", target)
	}
}
