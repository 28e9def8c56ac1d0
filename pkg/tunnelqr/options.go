package tunnelqr

import (
	"fmt"
	"io"

	"github.com/PentesterFlow/tunnelqr/internal/logger"
	"github.com/PentesterFlow/tunnelqr/internal/metrics"
)

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets the complete configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		if config == nil {
			return fmt.Errorf("config is nil")
		}
		a.config = config
		return nil
	}
}

// WithStdout sets where the URL and QR code are printed.
func WithStdout(w io.Writer) Option {
	return func(a *App) error {
		if w == nil {
			return fmt.Errorf("stdout writer is nil")
		}
		a.stdout = w
		return nil
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *App) error {
		a.logger = l
		return nil
	}
}

// WithMetrics sets the metrics collector shared by the agent client and resolver.
func WithMetrics(m *metrics.Collector) Option {
	return func(a *App) error {
		a.metrics = m
		return nil
	}
}

// WithResolver replaces the agent-backed resolver.
func WithResolver(r URLResolver) Option {
	return func(a *App) error {
		a.resolver = r
		return nil
	}
}

// WithRenderer replaces the QR renderer.
func WithRenderer(r Renderer) Option {
	return func(a *App) error {
		a.renderer = r
		return nil
	}
}

// WithVerbose enables info-level diagnostics.
func WithVerbose(verbose bool) Option {
	return func(a *App) error {
		a.config.Verbose = verbose
		return nil
	}
}

// WithDebug enables debug-level diagnostics.
func WithDebug(debug bool) Option {
	return func(a *App) error {
		a.config.Debug = debug
		return nil
	}
}
