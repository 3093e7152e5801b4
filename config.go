package inkwell

import (
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config/defaults.yaml
var defaultConfigYAML []byte

// Config holds client configuration. Embedded defaults ship with the
// library; deployments override them with a YAML file or programmatically.
type Config struct {
	// Version is the config schema version
	Version string `yaml:"version"`

	// BaseURL is the backend root (no trailing slash required)
	BaseURL string `yaml:"base_url"`

	// RequestTimeoutSeconds bounds the one-shot request/response calls.
	// Streams are never subject to it.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`

	// WireVariant selects the chat streaming protocol variant
	WireVariant WireVariant `yaml:"wire_variant"`

	// Quiz holds quiz-session defaults
	Quiz QuizConfig `yaml:"quiz"`
}

// QuizConfig holds quiz-session defaults.
type QuizConfig struct {
	// DefaultTimeLimitMinutes applies when the backend omits a time limit
	DefaultTimeLimitMinutes int `yaml:"default_time_limit_minutes"`
}

var (
	defaultConfigOnce sync.Once
	defaultConfig     *Config
)

// DefaultConfig returns the embedded default configuration. The returned
// value is a copy; callers may mutate it freely.
func DefaultConfig() *Config {
	defaultConfigOnce.Do(func() {
		var cfg Config
		if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
			// Embedded defaults are compiled in; a parse failure is a
			// packaging bug, not a runtime condition.
			panic(fmt.Sprintf("inkwell: invalid embedded config: %v", err))
		}
		defaultConfig = &cfg
	})
	cfg := *defaultConfig
	return &cfg
}

// LoadConfigFromFile reads a YAML config file over the embedded defaults.
// Fields absent from the file keep their default values.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.WireVariant != "" && !cfg.WireVariant.IsValid() {
		return nil, fmt.Errorf("config %s: unknown wire_variant %q", path, cfg.WireVariant)
	}
	return cfg, nil
}

// NewClientFromConfig builds a Client from a Config.
func NewClientFromConfig(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := []Option{
		WithHTTPClient(&http.Client{Timeout: timeout}),
		WithLogger(slog.Default()),
	}
	return NewClient(cfg.BaseURL, append(base, opts...)...)
}
