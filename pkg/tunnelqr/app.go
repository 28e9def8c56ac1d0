package tunnelqr

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/PentesterFlow/tunnelqr/internal/agent"
	"github.com/PentesterFlow/tunnelqr/internal/logger"
	"github.com/PentesterFlow/tunnelqr/internal/metrics"
	"github.com/PentesterFlow/tunnelqr/internal/render"
	"github.com/PentesterFlow/tunnelqr/internal/resolver"
)

// URLResolver discovers the public URL.
type URLResolver interface {
	Resolve(ctx context.Context) *resolver.Resolution
}

// Renderer writes the QR code for a URL.
type Renderer interface {
	Render(w io.Writer, content string) error
}

// App runs RESOLVING → DISPLAYING → WAITING once.
type App struct {
	config   *Config
	stdout   io.Writer
	logger   *logger.Logger
	metrics  *metrics.Collector
	resolver URLResolver
	renderer Renderer

	// throttled reports limiter wait time when the app owns the agent client.
	throttled func() time.Duration

	mu    sync.Mutex
	state State
}

// New creates an App with the given options.
func New(opts ...Option) (*App, error) {
	a := &App{
		config: DefaultConfig(),
		stdout: os.Stdout,
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := a.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if a.logger == nil {
		a.logger = logger.New(logger.Config{
			Level:  logger.FlagLevel(a.config.Verbose, a.config.Debug),
			Pretty: true,
			Output: os.Stderr,
		})
	}

	if a.metrics == nil {
		a.metrics = metrics.New()
	}

	if a.resolver == nil {
		client := agent.NewClient(a.config.ClientConfig(), a.logger, a.metrics)
		a.throttled = client.Throttled
		a.resolver = resolver.New(client, a.config.RetryPolicy(), a.logger, a.metrics)
	}

	if a.renderer == nil {
		r, err := render.New(a.config.RenderConfig(), a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create renderer: %w", err)
		}
		a.renderer = r
	}

	a.logger = a.logger.WithComponent("app")

	return a, nil
}

// Config returns the effective configuration.
func (a *App) Config() *Config {
	return a.config
}

// State returns the current phase.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *App) setState(s State) {
	a.mu.Lock()
	prev := a.state
	a.state = s
	a.mu.Unlock()

	a.logger.Debugf("State %s -> %s", prev, s)
}

// stats summarizes the resolution for the debug log.
func (a *App) stats() map[string]interface{} {
	summary := a.metrics.Snapshot().Summary()
	if a.throttled != nil {
		summary["throttled"] = a.throttled().String()
	}
	return summary
}

// Run resolves the public URL, prints it with its QR code and blocks until ctx
// is cancelled. A missing URL is reported on stdout and is not an error; only a
// failure to render is.
func (a *App) Run(ctx context.Context) (*Result, error) {
	result := &Result{State: StateStart}

	a.setState(StateResolving)
	res := a.resolver.Resolve(ctx)
	result.Attempts = res.Attempts
	result.Duration = res.Duration

	a.logger.StatsEvent(a.stats())

	if !res.Found() {
		if res.Cancelled() || ctx.Err() != nil {
			a.setState(StateTerminated)
			result.State = StateTerminated
			return result, nil
		}

		fmt.Fprintln(a.stdout, a.config.Display.FailureMessage)
		a.setState(StateFailed)
		result.State = StateFailed
		return result, nil
	}

	result.URL = res.URL

	a.setState(StateDisplaying)
	result.State = StateDisplaying

	fmt.Fprintf(a.stdout, "\nForwarding URL: %s\n", res.URL)
	fmt.Fprintln(a.stdout, a.config.Display.LocalURL)

	if err := a.renderer.Render(a.stdout, res.URL); err != nil {
		return result, fmt.Errorf("failed to render QR code: %w", err)
	}

	fmt.Fprintf(a.stdout, "\n%s\n", a.config.Display.Instruction)

	a.setState(StateWaiting)
	result.State = StateWaiting

	<-ctx.Done()

	a.setState(StateTerminated)
	result.State = StateTerminated
	return result, nil
}
