// Command conductor runs the rollup conductor process: it loads
// configuration from the environment, wires up the executor and
// readers appropriate to the configured commit level, and runs until
// a stop signal is received.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MuhtasimTanmoy/conductor/config"
	"github.com/MuhtasimTanmoy/conductor/conductor"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "err", err)
		return config.ExitConfigError
	}

	handler := log.NewTerminalHandlerWithLevel(os.Stderr, parseLogLevel(cfg.LogLevel), false)
	logger := log.NewLogger(handler)
	log.SetDefault(logger)

	signals := conductor.WatchSignals(logger)

	c, err := conductor.New(logger, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error("failed to construct conductor", "err", err)
		return config.ExitInitError
	}

	if err := c.Run(context.Background(), signals.Stop, signals.Reload); err != nil {
		logger.Error("conductor exited with error", "err", err)
		return config.ExitInitError
	}

	return config.ExitOK
}

// parseLogLevel maps the `log` env var (spec.md §6) to a handler
// verbosity, defaulting to info for anything unrecognized rather than
// failing startup over a cosmetic setting. slog.Level (rather than a
// go-ethereum-specific level type) is what NewTerminalHandlerWithLevel
// actually takes; trace/crit are expressed the same way go-ethereum's
// own log package extends slog's four standard levels, one step below
// Debug and one step above Error.
func parseLogLevel(s string) slog.Level {
	switch s {
	case "trace":
		return slog.LevelDebug - 4
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "crit":
		return slog.LevelError + 4
	default:
		return slog.LevelInfo
	}
}
