// Package resolver discovers the public URL of the running tunnel.
package resolver

import (
	"context"
	"time"

	"github.com/PentesterFlow/tunnelqr/internal/errors"
	"github.com/PentesterFlow/tunnelqr/internal/logger"
	"github.com/PentesterFlow/tunnelqr/internal/metrics"
)

// Source yields the public URL from one poll of the agent.
type Source interface {
	PublicURL(ctx context.Context) (string, error)
	APIURL() string
}

// Resolution is the outcome of a Resolve call.
type Resolution struct {
	URL       string
	Attempts  int
	Waits     int
	Duration  time.Duration
	LastError error
}

// Found reports whether a public URL was discovered.
func (r *Resolution) Found() bool {
	return r != nil && r.URL != ""
}

// Cancelled reports whether resolution stopped because the context ended.
func (r *Resolution) Cancelled() bool {
	return r != nil && errors.GetErrorType(r.LastError) == errors.Cancelled
}

// Resolver polls a Source until it yields a URL or the attempt budget runs out.
type Resolver struct {
	source  Source
	retrier *errors.Retrier
	metrics *metrics.Collector
	logger  *logger.Logger
}

// New creates a resolver. Attempts are strictly sequential.
func New(source Source, config errors.RetryConfig, log *logger.Logger, m *metrics.Collector) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}

	r := &Resolver{
		source:  source,
		metrics: m,
		logger:  log.WithComponent("resolver"),
	}

	hook := config.OnRetry
	config.OnRetry = func(attempt int, err error, delay time.Duration) {
		r.metrics.RecordRetry()
		r.logger.AttemptEvent(attempt, r.retrier.Config().MaxAttempts,
			errors.GetErrorType(err).String(), errors.GetStatusCode(err), err)
		if hook != nil {
			hook(attempt, err, delay)
		}
	}
	r.retrier = errors.NewRetrier(config)

	return r
}

// Resolve returns the first tunnel's public URL. Failures of single attempts are
// never surfaced; an exhausted budget yields a Resolution without URL.
func (r *Resolver) Resolve(ctx context.Context) *Resolution {
	apiURL := r.source.APIURL()

	url, result := errors.DoWithResult(ctx, r.retrier, "resolve", apiURL, func(ctx context.Context) (string, error) {
		u, err := r.source.PublicURL(ctx)
		if err != nil {
			r.metrics.RecordError(errors.GetErrorType(errors.Categorize(err, apiURL)).String())
		}
		return u, err
	})

	res := &Resolution{
		URL:       url,
		Attempts:  result.Attempts,
		Waits:     result.Waits,
		Duration:  result.Duration,
		LastError: result.LastError,
	}

	switch {
	case res.Found():
		r.logger.WithURL(url).WithDuration(res.Duration).Infof("Resolved public URL after %d attempt(s)", res.Attempts)
	case res.Cancelled():
		r.logger.Info("Resolution cancelled")
	default:
		r.logger.WithError(res.LastError).Infof("No public URL after %d attempt(s)", res.Attempts)
	}

	return res
}
