// ABOUTME: Configuration loading and parsing for chatcore.
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete chatcore configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Runtime  RuntimeConfig  `yaml:"runtime"`
	Provider ProviderConfig `yaml:"provider"`
	Notifier NotifierConfig `yaml:"notifier"`
	Files    FilesConfig    `yaml:"files"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the ingest server address.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds the session database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SessionConfig holds the freshness limits for the session lifecycle.
type SessionConfig struct {
	MaxAge      time.Duration `yaml:"-"`
	IdleTimeout time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	MaxAgeRaw      string `yaml:"max_age"`
	IdleTimeoutRaw string `yaml:"idle_timeout"`
}

// RuntimeConfig holds the agent runtime endpoint and ref qualification
// template fields.
type RuntimeConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Partition string `yaml:"partition"`
	Region    string `yaml:"region"`
	Account   string `yaml:"account"`

	InvokeTimeout    time.Duration `yaml:"-"`
	InvokeTimeoutRaw string        `yaml:"invoke_timeout"`
}

// ProviderConfig holds settings shared by the provider adapters.
type ProviderConfig struct {
	SystemPrompt string `yaml:"system_prompt"`
}

// NotifierConfig holds the outbound channel endpoints. DirectURL is optional;
// when set, streamed tokens bypass the topic for latency.
type NotifierConfig struct {
	TopicURL  string `yaml:"topic_url"`
	DirectURL string `yaml:"direct_url"`

	PublishTimeout    time.Duration `yaml:"-"`
	PublishTimeoutRaw string        `yaml:"publish_timeout"`
}

// FilesConfig holds the attachment object store location.
type FilesConfig struct {
	Root string `yaml:"root"`
}

// DispatchConfig holds worker-pool sizing and redelivery dedupe settings.
type DispatchConfig struct {
	Workers       int `yaml:"workers"`
	DedupeMaxSize int `yaml:"dedupe_max_size"`

	DedupeTTL    time.Duration `yaml:"-"`
	DedupeTTLRaw string        `yaml:"dedupe_ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the config file leaves a field unset.
const (
	DefaultMaxAge         = 8 * time.Hour
	DefaultIdleTimeout    = 15 * time.Minute
	DefaultPublishTimeout = 5 * time.Second
	DefaultWorkers        = 4
	DefaultDedupeTTL      = 5 * time.Minute
	DefaultDedupeMaxSize  = 4096
	DefaultSystemPrompt   = "You are a helpful AI assistant. Use only the data provided to " +
		"answer the user's query accurately. If you don't know the answer, clearly state " +
		"that you do not know. Do not invent or fabricate information."
)

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Session.MaxAge == 0 {
		c.Session.MaxAge = DefaultMaxAge
	}
	if c.Session.IdleTimeout == 0 {
		c.Session.IdleTimeout = DefaultIdleTimeout
	}
	if c.Notifier.PublishTimeout == 0 {
		c.Notifier.PublishTimeout = DefaultPublishTimeout
	}
	if c.Dispatch.Workers == 0 {
		c.Dispatch.Workers = DefaultWorkers
	}
	if c.Dispatch.DedupeTTL == 0 {
		c.Dispatch.DedupeTTL = DefaultDedupeTTL
	}
	if c.Dispatch.DedupeMaxSize == 0 {
		c.Dispatch.DedupeMaxSize = DefaultDedupeMaxSize
	}
	if c.Provider.SystemPrompt == "" {
		c.Provider.SystemPrompt = DefaultSystemPrompt
	}
	if c.Files.Root == "" {
		c.Files.Root = "data/files"
	}
}

// Validate checks that all required configuration fields are present.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Runtime.Endpoint == "" {
		return fmt.Errorf("runtime.endpoint is required")
	}
	if c.Notifier.TopicURL == "" {
		return fmt.Errorf("notifier.topic_url is required")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Session.MaxAgeRaw != "" {
		cfg.Session.MaxAge, err = time.ParseDuration(cfg.Session.MaxAgeRaw)
		if err != nil {
			return fmt.Errorf("parsing max_age %q: %w", cfg.Session.MaxAgeRaw, err)
		}
	}

	if cfg.Session.IdleTimeoutRaw != "" {
		cfg.Session.IdleTimeout, err = time.ParseDuration(cfg.Session.IdleTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing idle_timeout %q: %w", cfg.Session.IdleTimeoutRaw, err)
		}
	}

	if cfg.Runtime.InvokeTimeoutRaw != "" {
		cfg.Runtime.InvokeTimeout, err = time.ParseDuration(cfg.Runtime.InvokeTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing invoke_timeout %q: %w", cfg.Runtime.InvokeTimeoutRaw, err)
		}
	}

	if cfg.Notifier.PublishTimeoutRaw != "" {
		cfg.Notifier.PublishTimeout, err = time.ParseDuration(cfg.Notifier.PublishTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing publish_timeout %q: %w", cfg.Notifier.PublishTimeoutRaw, err)
		}
	}

	if cfg.Dispatch.DedupeTTLRaw != "" {
		cfg.Dispatch.DedupeTTL, err = time.ParseDuration(cfg.Dispatch.DedupeTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing dedupe_ttl %q: %w", cfg.Dispatch.DedupeTTLRaw, err)
		}
	}

	return nil
}
