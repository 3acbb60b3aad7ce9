// Package config loads and validates gateway configuration.
//
// DESIGN: Configuration is a plain YAML file with ${ENV_VAR} expansion.
// It is loaded once at startup, validated, and passed into component
// constructors as an immutable value. Nothing reads ambient mutable globals.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "45s", "1m".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ServerConfig controls the inbound dual-stack HTTP listener.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// BackendConfig points at the inference backend consumed for classification.
type BackendConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// SearchConfig controls the web-search collaborator and the fetch policy.
type SearchConfig struct {
	BaseURL     string   `yaml:"base_url"`
	Engine      string   `yaml:"engine"`
	Timeout     Duration `yaml:"timeout"`
	MaxRetries  int      `yaml:"max_retries"`
	BackoffBase Duration `yaml:"backoff_base"`
	BackoffMax  Duration `yaml:"backoff_max"`
	Concurrency int      `yaml:"concurrency"`
	MaxResults  int      `yaml:"max_results"`
	MaxDomains  int      `yaml:"max_domains"`
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MonitoringConfig controls telemetry sinks. Empty paths disable a sink.
type MonitoringConfig struct {
	TelemetryPath string `yaml:"telemetry_path"`
	DBPath        string `yaml:"db_path"`
}

// Config is the full gateway configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Backend    BackendConfig    `yaml:"backend"`
	Search     SearchConfig     `yaml:"search"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// Default returns a config populated with all defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			ReadTimeout:     Duration(DefaultReadTimeout),
			WriteTimeout:    Duration(DefaultServerWriteTimeout),
			ShutdownTimeout: Duration(DefaultShutdownTimeout),
		},
		Backend: BackendConfig{
			URL:     DefaultBackendURL,
			Timeout: Duration(DefaultBackendTimeout),
		},
		Search: SearchConfig{
			BaseURL:     DefaultSearchBaseURL,
			Engine:      DefaultSearchEngine,
			Timeout:     Duration(DefaultSearchTimeout),
			MaxRetries:  DefaultMaxRetries,
			BackoffBase: Duration(DefaultBackoffBase),
			BackoffMax:  Duration(DefaultBackoffMax),
			Concurrency: DefaultFetchConcurrency,
			MaxResults:  DefaultMaxResults,
			MaxDomains:  DefaultMaxDomains,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadFromBytes parses YAML config data over the defaults.
// ${VAR} references are expanded from the environment before parsing.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return LoadFromBytes(data)
}

// Validate rejects configurations the gateway cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url must not be empty")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}
	if c.Search.BaseURL == "" {
		return fmt.Errorf("search.base_url must not be empty")
	}
	if c.Search.Concurrency <= 0 {
		return fmt.Errorf("search.concurrency must be positive")
	}
	if c.Search.MaxRetries < 0 {
		return fmt.Errorf("search.max_retries must not be negative")
	}
	if c.Search.BackoffBase <= 0 || c.Search.BackoffMax < c.Search.BackoffBase {
		return fmt.Errorf("search backoff must satisfy 0 < backoff_base <= backoff_max")
	}
	return nil
}
