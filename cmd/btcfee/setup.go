package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"btcfee/internal/infrastructure/config"
	"btcfee/internal/infrastructure/logger"
)

const configKey = "config"

// setup 初始化日志并加载配置。未显式指定且默认路径不存在时使用内置默认值。
func setup(c *cli.Context) error {
	logger.Setup(c.String("log-level"))

	path := c.String("config")
	cfg, err := config.Load(path)
	switch {
	case err == nil:
		log.Debug().Str("config", path).Msg("config loaded")
	case !c.IsSet("config") && errors.Is(err, fs.ErrNotExist):
		cfg = config.Default()
		log.Debug().Str("config", path).Msg("config file not found, using defaults")
	default:
		return err
	}

	if !c.IsSet("log-level") {
		logger.Setup(cfg.App.LogLevel)
	}

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func configFrom(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

func stdoutIsTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
