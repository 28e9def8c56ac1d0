package tunnelqr

import (
	"bytes"
	"testing"

	"github.com/PentesterFlow/tunnelqr/internal/logger"
	"github.com/PentesterFlow/tunnelqr/internal/metrics"
)

func TestOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Display.LocalURL = "http://localhost:3000"
	var out bytes.Buffer
	m := metrics.New()
	res := &stubResolver{}
	ren := &stubRenderer{}

	a, err := New(
		WithConfig(cfg),
		WithStdout(&out),
		WithLogger(logger.Nop()),
		WithMetrics(m),
		WithResolver(res),
		WithRenderer(ren),
		WithVerbose(true),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if a.Config() != cfg {
		t.Error("WithConfig should install the given config")
	}
	if a.Config().Display.LocalURL != "http://localhost:3000" {
		t.Errorf("LocalURL = %q", a.Config().Display.LocalURL)
	}
	if !a.Config().Verbose {
		t.Error("WithVerbose should apply to the installed config")
	}
	if a.stdout != &out {
		t.Error("WithStdout not applied")
	}
	if a.metrics != m {
		t.Error("WithMetrics not applied")
	}
	if a.resolver != res {
		t.Error("WithResolver not applied")
	}
	if a.renderer != ren {
		t.Error("WithRenderer not applied")
	}
}

func TestOptions_OrderMatters(t *testing.T) {
	cfg := DefaultConfig()

	// WithDebug before WithConfig is overwritten by the new config.
	a, err := New(WithLogger(logger.Nop()), WithDebug(true), WithConfig(cfg))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.Config().Debug {
		t.Error("Debug should come from the later config")
	}
}

func TestOptions_InvalidErrorCorrection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Display.ErrorCorrection = "Z"

	if _, err := New(WithLogger(logger.Nop()), WithConfig(cfg)); err == nil {
		t.Error("New() should reject an unknown error correction level")
	}
}
