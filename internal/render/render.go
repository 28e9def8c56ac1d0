// Package render draws QR codes as terminal text.
package render

import (
	"fmt"
	"io"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/PentesterFlow/tunnelqr/internal/logger"
)

// Config holds renderer configuration.
type Config struct {
	// Level is the error-correction level: L, M, Q or H.
	Level string
	// Invert draws light modules as glyphs so the code reads on dark terminals.
	Invert bool
	// Border keeps the 4-module quiet zone around the code.
	Border bool
}

// DefaultConfig returns level M with an inverted, bordered code.
func DefaultConfig() Config {
	return Config{
		Level:  "M",
		Invert: true,
		Border: true,
	}
}

// ParseLevel maps a level letter to a go-qrcode recovery level.
func ParseLevel(level string) (qrcode.RecoveryLevel, error) {
	switch strings.ToUpper(level) {
	case "L":
		return qrcode.Low, nil
	case "M", "":
		return qrcode.Medium, nil
	case "Q":
		return qrcode.High, nil
	case "H":
		return qrcode.Highest, nil
	default:
		return qrcode.Medium, fmt.Errorf("unknown error correction level %q", level)
	}
}

// Renderer encodes text as a QR code and writes it with half-block glyphs.
type Renderer struct {
	level  qrcode.RecoveryLevel
	invert bool
	border bool
	logger *logger.Logger
}

// New creates a renderer.
func New(cfg Config, log *logger.Logger) (*Renderer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	ec := strings.ToUpper(cfg.Level)
	if ec == "" {
		ec = "M"
	}
	return &Renderer{
		level:  level,
		invert: cfg.Invert,
		border: cfg.Border,
		logger: log.WithComponent("render").WithField("error_correction", ec),
	}, nil
}

// Encode returns the QR code for content as text, one line per two module rows.
func (r *Renderer) Encode(content string) (string, error) {
	q, err := qrcode.New(content, r.level)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	q.DisableBorder = !r.border

	r.logger.Debugf("Encoded %d bytes as version %d", len(content), q.VersionNumber)

	// go-qrcode prints dark modules as blanks unless inverseColor is set,
	// which is the inverted look.
	return q.ToSmallString(!r.invert), nil
}

// Render encodes content and writes the code to w.
func (r *Renderer) Render(w io.Writer, content string) error {
	art, err := r.Encode(content)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, art); err != nil {
		return fmt.Errorf("write qr code: %w", err)
	}
	return nil
}
