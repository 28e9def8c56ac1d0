// Package agent talks to the tunnel agent's local status API.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/PentesterFlow/tunnelqr/internal/errors"
	"github.com/PentesterFlow/tunnelqr/internal/logger"
	"github.com/PentesterFlow/tunnelqr/internal/metrics"
	"github.com/PentesterFlow/tunnelqr/internal/ratelimit"
)

// DefaultAPIURL is where ngrok serves its tunnel list.
const DefaultAPIURL = "http://localhost:4040/api/tunnels"

// maxBodySize bounds how much of the status document is read.
const maxBodySize = 1 << 20

// maxDialTimeout caps connection setup to the local agent.
const maxDialTimeout = 2 * time.Second

// Tunnel is one entry of the agent's tunnel list.
type Tunnel struct {
	Name      string `json:"name"`
	PublicURL string `json:"public_url"`
	Proto     string `json:"proto"`
}

// TunnelList is the status document returned by the agent.
type TunnelList struct {
	Tunnels []Tunnel `json:"tunnels"`
}

// ClientConfig holds configuration for the agent client.
type ClientConfig struct {
	APIURL            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
}

// DefaultClientConfig returns the settings for a local ngrok agent.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		APIURL:            DefaultAPIURL,
		Timeout:           5 * time.Second,
		RequestsPerSecond: 2,
		Burst:             1,
		UserAgent:         "tunnelqr",
	}
}

// Client polls the agent status endpoint.
type Client struct {
	client    *http.Client
	apiURL    string
	userAgent string
	limiter   *ratelimit.Limiter
	metrics   *metrics.Collector
	logger    *logger.Logger
}

// NewClient creates a new agent client. A nil logger or collector disables that concern.
func NewClient(config ClientConfig, log *logger.Logger, m *metrics.Collector) *Client {
	if config.APIURL == "" {
		config.APIURL = DefaultAPIURL
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: dialTimeout(config.Timeout),
		}).DialContext,
		MaxIdleConns:        1,
		MaxIdleConnsPerHost: 1,
		IdleConnTimeout:     10 * time.Second,
		// Each attempt owns its connection.
		DisableKeepAlives: true,
	}

	c := &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		apiURL:    config.APIURL,
		userAgent: config.UserAgent,
		limiter:   ratelimit.NewLimiter(config.RequestsPerSecond, config.Burst),
		metrics:   m,
		logger:    log.WithComponent("agent"),
	}

	stats := c.limiter.Stats()
	c.logger.Debugf("Polling %s at up to %.1f req/s (burst %d)", c.apiURL, stats.Rate, stats.Burst)

	return c
}

// dialTimeout bounds connection setup by the request timeout. Zero means no
// timeout for either.
func dialTimeout(requestTimeout time.Duration) time.Duration {
	if requestTimeout <= 0 {
		return 0
	}
	if requestTimeout < maxDialTimeout {
		return requestTimeout
	}
	return maxDialTimeout
}

// APIURL returns the status endpoint the client polls.
func (c *Client) APIURL() string {
	return c.apiURL
}

// Throttled returns the total time requests spent waiting for the rate limiter.
func (c *Client) Throttled() time.Duration {
	return c.limiter.Stats().Waited
}

// Tunnels fetches and decodes the agent's tunnel list.
func (c *Client) Tunnels(ctx context.Context) ([]Tunnel, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Categorize(err, c.apiURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return nil, errors.NewAgentError(errors.Unknown, c.apiURL, "request_creation", "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	c.metrics.RecordRequest()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Categorize(err, c.apiURL)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)
	c.metrics.RecordStatusCode(resp.StatusCode)
	c.metrics.RecordResponseTime(elapsed)
	c.logger.RequestEvent(req.Method, c.apiURL, resp.StatusCode, elapsed)

	if statusErr := errors.CategorizeHTTPStatus(resp.StatusCode, c.apiURL); statusErr != nil {
		return nil, statusErr
	}

	list, err := decodeTunnelList(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.NewParseError(c.apiURL, "decode", err)
	}

	return list.Tunnels, nil
}

// decodeTunnelList decodes exactly one JSON document; trailing data other
// than whitespace is an error.
func decodeTunnelList(r io.Reader) (*TunnelList, error) {
	dec := json.NewDecoder(r)

	var list TunnelList
	if err := dec.Decode(&list); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("unexpected data after status document")
		}
		return nil, fmt.Errorf("unexpected data after status document: %w", err)
	}

	return &list, nil
}

// PublicURL returns the public URL of the first tunnel, unmodified.
func (c *Client) PublicURL(ctx context.Context) (string, error) {
	tunnels, err := c.Tunnels(ctx)
	if err != nil {
		return "", err
	}
	return FirstPublicURL(tunnels, c.apiURL)
}

// FirstPublicURL picks tunnels[0].public_url.
func FirstPublicURL(tunnels []Tunnel, source string) (string, error) {
	if len(tunnels) == 0 {
		return "", errors.NewNoTunnelsError(source, "tunnel list is empty")
	}
	if tunnels[0].PublicURL == "" {
		return "", errors.NewNoTunnelsError(source, fmt.Sprintf("tunnel %q has no public_url", tunnels[0].Name))
	}
	return tunnels[0].PublicURL, nil
}
