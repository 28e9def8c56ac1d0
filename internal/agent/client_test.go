package agent

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PentesterFlow/tunnelqr/internal/errors"
	"github.com/PentesterFlow/tunnelqr/internal/metrics"
)

func newTestClient(apiURL string, m *metrics.Collector) *Client {
	cfg := DefaultClientConfig()
	cfg.APIURL = apiURL
	cfg.RequestsPerSecond = 0
	return NewClient(cfg, nil, m)
}

func serveBody(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tunnels" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if _, err := w.Write([]byte(body)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// =============================================================================
// Config Tests
// =============================================================================

func TestDefaultClientConfig(t *testing.T) {
	cfg := DefaultClientConfig()

	if cfg.APIURL != "http://localhost:4040/api/tunnels" {
		t.Errorf("APIURL = %s", cfg.APIURL)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
}

func TestNewClient_DefaultsAPIURL(t *testing.T) {
	c := NewClient(ClientConfig{}, nil, nil)

	if c.APIURL() != DefaultAPIURL {
		t.Errorf("APIURL() = %s, want %s", c.APIURL(), DefaultAPIURL)
	}
}

// =============================================================================
// PublicURL Tests
// =============================================================================

func TestClient_PublicURL_FirstTunnel(t *testing.T) {
	server := serveBody(t, http.StatusOK, `{"tunnels":[
		{"name":"command_line","public_url":"https://abcd1234.ngrok.io","proto":"https"},
		{"name":"second","public_url":"https://other.ngrok.io","proto":"https"}
	],"uri":"/api/tunnels"}`)

	m := metrics.New()
	c := newTestClient(server.URL+"/api/tunnels", m)

	got, err := c.PublicURL(context.Background())
	if err != nil {
		t.Fatalf("PublicURL() error = %v", err)
	}
	if got != "https://abcd1234.ngrok.io" {
		t.Errorf("PublicURL() = %q, want first tunnel", got)
	}

	snap := m.Snapshot()
	if snap.RequestsTotal != 1 {
		t.Errorf("RequestsTotal = %d, want 1", snap.RequestsTotal)
	}
	if snap.StatusCodes[200] != 1 {
		t.Errorf("StatusCodes[200] = %d, want 1", snap.StatusCodes[200])
	}
}

func TestClient_PublicURL_TrailingWhitespace(t *testing.T) {
	server := serveBody(t, http.StatusOK, "{\"tunnels\":[{\"public_url\":\"https://abcd1234.ngrok.io\"}]}\n\t ")
	c := newTestClient(server.URL+"/api/tunnels", nil)

	got, err := c.PublicURL(context.Background())
	if err != nil {
		t.Fatalf("PublicURL() error = %v", err)
	}
	if got != "https://abcd1234.ngrok.io" {
		t.Errorf("PublicURL() = %q", got)
	}
}

func TestClient_PublicURL_Unmodified(t *testing.T) {
	server := serveBody(t, http.StatusOK, `{"tunnels":[{"public_url":"tcp://0.tcp.jp.ngrok.io:12345/x?y=1"}]}`)
	c := newTestClient(server.URL+"/api/tunnels", nil)

	got, err := c.PublicURL(context.Background())
	if err != nil {
		t.Fatalf("PublicURL() error = %v", err)
	}
	if got != "tcp://0.tcp.jp.ngrok.io:12345/x?y=1" {
		t.Errorf("PublicURL() = %q", got)
	}
}

func TestClient_PublicURL_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   errors.ErrorType
	}{
		{"malformed json", http.StatusOK, `{"tunnels":[`, errors.Parse},
		{"not json", http.StatusOK, `ngrok starting`, errors.Parse},
		{"trailing garbage", http.StatusOK, `{"tunnels":[{"public_url":"https://abcd1234.ngrok.io"}]} not json`, errors.Parse},
		{"two documents", http.StatusOK, `{"tunnels":[{"public_url":"https://abcd1234.ngrok.io"}]}{}`, errors.Parse},
		{"wrong type", http.StatusOK, `{"tunnels":[{"public_url":42}]}`, errors.Parse},
		{"missing tunnels", http.StatusOK, `{"uri":"/api/tunnels"}`, errors.NoTunnels},
		{"null tunnels", http.StatusOK, `{"tunnels":null}`, errors.NoTunnels},
		{"empty tunnels", http.StatusOK, `{"tunnels":[]}`, errors.NoTunnels},
		{"missing public_url", http.StatusOK, `{"tunnels":[{"name":"command_line"}]}`, errors.NoTunnels},
		{"server error", http.StatusBadGateway, `{}`, errors.Status},
		{"not found", http.StatusNotFound, `{}`, errors.Status},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serveBody(t, tt.status, tt.body)
			c := newTestClient(server.URL+"/api/tunnels", nil)

			got, err := c.PublicURL(context.Background())
			if err == nil {
				t.Fatalf("PublicURL() = %q, want error", got)
			}
			if got != "" {
				t.Errorf("PublicURL() = %q, want empty on failure", got)
			}
			if errType := errors.GetErrorType(err); errType != tt.want {
				t.Errorf("error type = %v, want %v (%v)", errType, tt.want, err)
			}
			if !errors.IsRetryable(err) {
				t.Errorf("error should be retryable: %v", err)
			}
		})
	}
}

func TestClient_PublicURL_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := newTestClient("http://"+addr+"/api/tunnels", nil)

	_, err = c.PublicURL(context.Background())
	if err == nil {
		t.Fatal("expected error for refused connection")
	}
	if errType := errors.GetErrorType(err); errType != errors.Network {
		t.Errorf("error type = %v, want network (%v)", errType, err)
	}
}

func TestClient_PublicURL_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	cfg := DefaultClientConfig()
	cfg.APIURL = server.URL + "/api/tunnels"
	cfg.Timeout = 50 * time.Millisecond
	c := NewClient(cfg, nil, nil)

	_, err := c.PublicURL(context.Background())
	if errType := errors.GetErrorType(err); errType != errors.Timeout {
		t.Errorf("error type = %v, want timeout (%v)", errType, err)
	}
}

func TestClient_PublicURL_Cancelled(t *testing.T) {
	server := serveBody(t, http.StatusOK, `{"tunnels":[{"public_url":"https://abcd1234.ngrok.io"}]}`)
	c := newTestClient(server.URL+"/api/tunnels", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.PublicURL(ctx)
	if errType := errors.GetErrorType(err); errType != errors.Cancelled {
		t.Errorf("error type = %v, want cancelled (%v)", errType, err)
	}
}

func TestClient_SendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Method = %s, want GET", r.Method)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "tunnelqr" {
			t.Errorf("User-Agent = %q", got)
		}
		w.Write([]byte(`{"tunnels":[{"public_url":"https://abcd1234.ngrok.io"}]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, nil)
	if _, err := c.Tunnels(context.Background()); err != nil {
		t.Fatalf("Tunnels() error = %v", err)
	}
}

// =============================================================================
// FirstPublicURL Tests
// =============================================================================

func TestDialTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    time.Duration
	}{
		{"no timeout", 0, 0},
		{"negative", -time.Second, 0},
		{"below cap", 500 * time.Millisecond, 500 * time.Millisecond},
		{"default", 5 * time.Second, maxDialTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dialTimeout(tt.timeout); got != tt.want {
				t.Errorf("dialTimeout(%v) = %v, want %v", tt.timeout, got, tt.want)
			}
		})
	}
}

func TestClient_Throttled(t *testing.T) {
	server := serveBody(t, http.StatusOK, `{"tunnels":[{"public_url":"https://abcd1234.ngrok.io"}]}`)

	cfg := DefaultClientConfig()
	cfg.APIURL = server.URL + "/api/tunnels"
	cfg.RequestsPerSecond = 20
	c := NewClient(cfg, nil, nil)

	for i := 0; i < 3; i++ {
		if _, err := c.PublicURL(context.Background()); err != nil {
			t.Fatalf("PublicURL() error = %v", err)
		}
	}

	if got := c.Throttled(); got < 70*time.Millisecond {
		t.Errorf("Throttled() = %v, want at least 70ms for 3 polls at 20 req/s", got)
	}
}

func TestFirstPublicURL(t *testing.T) {
	got, err := FirstPublicURL([]Tunnel{
		{Name: "a", PublicURL: "https://a.ngrok.io"},
		{Name: "b", PublicURL: "https://b.ngrok.io"},
	}, "src")
	if err != nil {
		t.Fatalf("FirstPublicURL() error = %v", err)
	}
	if got != "https://a.ngrok.io" {
		t.Errorf("FirstPublicURL() = %q", got)
	}
}

func TestFirstPublicURL_Empty(t *testing.T) {
	if _, err := FirstPublicURL(nil, "src"); errors.GetErrorType(err) != errors.NoTunnels {
		t.Errorf("error = %v, want no_tunnels", err)
	}
}
