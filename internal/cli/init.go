// Package cli holds the subtrack command line and the startup helpers
// shared by cmd/subtrack, cmd/subtrack-worker and cmd/subtrack-cli.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"subtrack/internal/backend"
	"subtrack/internal/config"
	"subtrack/internal/log"
	"subtrack/internal/ports"
)

// SetupLogger builds a component logger at the given level and installs
// it as the slog default.
func SetupLogger(level, component string, out io.Writer) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = os.Stdout
	}
	logger := log.New(log.Config{Level: lvl, Component: component, Output: out})
	log.SetDefault(logger)
	return logger, nil
}

// OpenStore creates the configured subscription store. The returned
// cleanup is never nil.
func OpenStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (ports.Store, func(), error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := bcfg.Validate(); err != nil {
		return nil, nil, err
	}

	res, err := backend.NewFactory(logger.WithComponent(log.ComponentStorage).Slog()).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create backend: %w", err)
	}

	cleanup := func() {
		if res.Cleanup == nil {
			return
		}
		if err := res.Cleanup(); err != nil {
			logger.Warn("Failed to close store", log.FieldError, err)
		}
	}
	return res.Store, cleanup, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
