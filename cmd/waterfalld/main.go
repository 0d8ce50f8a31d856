package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/swan-goose-duck/rtl-sdr-visualization/cmd/waterfalld/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}))

	var (
		configPath   string
		listenAddr   string
		logLevelName string
	)
	flag.StringVar(&configPath, "config", "", "Path to the YAML configuration file (optional)")
	flag.StringVar(&listenAddr, "listen", "", "Listen address, overrides the configuration")
	flag.StringVar(&logLevelName, "log-level", "", "Log level: debug, info, warn or error")
	flag.Parse()

	config, err := app.LoadConfig(configPath)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}

	if listenAddr != "" {
		config.Server.Addr = listenAddr
	}
	if logLevelName != "" {
		config.Settings.LogLevel = logLevelName
	}

	level, err := config.Settings.Level()
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	logLevel.Set(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
