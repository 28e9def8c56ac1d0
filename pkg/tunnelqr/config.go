package tunnelqr

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/tunnelqr/internal/agent"
	"github.com/PentesterFlow/tunnelqr/internal/errors"
	"github.com/PentesterFlow/tunnelqr/internal/render"
)

// Messages printed to stdout.
const (
	DefaultLocalURL       = "http://localhost:8000"
	DefaultFailureMessage = "ngrokのURLが取得できませんでした。"
	DefaultInstruction    = "[Ctrl+C] でQR表示を終了します（サーバーは make stop で止めてください）"
)

// Config holds all tunnelqr configuration.
type Config struct {
	// Agent status API
	Agent AgentConfig `json:"agent" yaml:"agent"`

	// Polling policy
	Retry RetryConfig `json:"retry" yaml:"retry"`

	// Terminal output
	Display DisplayConfig `json:"display" yaml:"display"`

	// Verbose logging
	Verbose bool `json:"verbose" yaml:"verbose"`

	// Debug mode
	Debug bool `json:"debug" yaml:"debug"`
}

// AgentConfig configures the tunnel agent client.
type AgentConfig struct {
	APIURL            string        `json:"api_url" yaml:"api_url"`
	Timeout           time.Duration `json:"timeout" yaml:"timeout"`
	RequestsPerSecond float64       `json:"requests_per_second" yaml:"requests_per_second"`
}

// RetryConfig configures how often the agent is polled.
type RetryConfig struct {
	MaxAttempts int           `json:"max_attempts" yaml:"max_attempts"`
	Delay       time.Duration `json:"delay" yaml:"delay"`
}

// DisplayConfig configures what is printed.
type DisplayConfig struct {
	LocalURL        string `json:"local_url" yaml:"local_url"`
	ErrorCorrection string `json:"error_correction" yaml:"error_correction"`
	Invert          bool   `json:"invert" yaml:"invert"`
	Border          bool   `json:"border" yaml:"border"`
	FailureMessage  string `json:"failure_message" yaml:"failure_message"`
	Instruction     string `json:"instruction" yaml:"instruction"`
}

// DefaultConfig returns the built-in behaviour: ngrok on port 4040, ten polls one
// second apart, an inverted level-M code.
func DefaultConfig() *Config {
	clientCfg := agent.DefaultClientConfig()
	retryCfg := errors.DefaultRetryConfig()
	renderCfg := render.DefaultConfig()

	return &Config{
		Agent: AgentConfig{
			APIURL:            clientCfg.APIURL,
			Timeout:           clientCfg.Timeout,
			RequestsPerSecond: clientCfg.RequestsPerSecond,
		},
		Retry: RetryConfig{
			MaxAttempts: retryCfg.MaxAttempts,
			Delay:       retryCfg.Delay,
		},
		Display: DisplayConfig{
			LocalURL:        DefaultLocalURL,
			ErrorCorrection: renderCfg.Level,
			Invert:          renderCfg.Invert,
			Border:          renderCfg.Border,
			FailureMessage:  DefaultFailureMessage,
			Instruction:     DefaultInstruction,
		},
	}
}

// LoadFromFile loads configuration from a file (JSON or YAML) on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		config = DefaultConfig()
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Agent.APIURL == "" {
		return fmt.Errorf("agent API URL is required")
	}

	if c.Agent.Timeout < 0 {
		return fmt.Errorf("agent timeout must not be negative")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}

	if c.Retry.Delay < 0 {
		return fmt.Errorf("retry delay must not be negative")
	}

	if _, err := render.ParseLevel(c.Display.ErrorCorrection); err != nil {
		return err
	}

	return nil
}

// ClientConfig converts the agent section for the agent client.
func (c *Config) ClientConfig() agent.ClientConfig {
	cfg := agent.DefaultClientConfig()
	cfg.APIURL = c.Agent.APIURL
	cfg.Timeout = c.Agent.Timeout
	cfg.RequestsPerSecond = c.Agent.RequestsPerSecond
	return cfg
}

// RetryPolicy converts the retry section for the retrier.
func (c *Config) RetryPolicy() errors.RetryConfig {
	cfg := errors.DefaultRetryConfig()
	cfg.MaxAttempts = c.Retry.MaxAttempts
	cfg.Delay = c.Retry.Delay
	cfg.MaxDelay = c.Retry.Delay
	return cfg
}

// RenderConfig converts the display section for the renderer.
func (c *Config) RenderConfig() render.Config {
	return render.Config{
		Level:  c.Display.ErrorCorrection,
		Invert: c.Display.Invert,
		Border: c.Display.Border,
	}
}
