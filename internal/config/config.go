// Package config loads and validates collie.yml.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Validate when fields are omitted.
const (
	defaultRequestsPerSecond   = 5
	defaultPageSize            = 100
	defaultPollIntervalSeconds = 60
	defaultLookbackMinutes     = 30
	defaultNotifyTimeout       = 10
)

// Config represents the top-level collie.yml configuration.
type Config struct {
	Version string        `yaml:"version"`
	Store   StoreConfig   `yaml:"store"`
	Engine  EngineConfig  `yaml:"engine"`
	Notify  *NotifyConfig `yaml:"notify,omitempty"` // optional; absent disables chat notifications
}

// StoreConfig describes the ticket-store API connection. The API key itself
// never lives in the file - only the name of the environment variable that
// holds it.
type StoreConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"` // default 5
	PageSize          int     `yaml:"page_size,omitempty"`           // default 100
}

// EngineConfig controls correlation loop timing.
type EngineConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds,omitempty"` // default 60
	LookbackMinutes     int `yaml:"lookback_minutes,omitempty"`      // default 30
}

// NotifyConfig describes the outbound chat webhook.
type NotifyConfig struct {
	WebhookURL     string `yaml:"webhook_url"`
	TokenEnv       string `yaml:"token_env,omitempty"` // env var holding the bearer token, optional
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

// Load reads and validates collie.yml from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate performs strict validation and applies defaults.
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if c.Notify != nil {
		if err := c.Notify.validate(); err != nil {
			return err
		}
	}

	return nil
}

func (s *StoreConfig) validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("store.base_url is required")
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return fmt.Errorf("store.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("store.base_url must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("store.base_url must include a host")
	}

	if s.APIKeyEnv == "" {
		return fmt.Errorf("store.api_key_env is required")
	}

	if s.RequestsPerSecond == 0 {
		s.RequestsPerSecond = defaultRequestsPerSecond
	}
	if s.RequestsPerSecond < 0 {
		return fmt.Errorf("store.requests_per_second must be > 0, got %v", s.RequestsPerSecond)
	}

	if s.PageSize == 0 {
		s.PageSize = defaultPageSize
	}
	if s.PageSize < 0 {
		return fmt.Errorf("store.page_size must be > 0, got %d", s.PageSize)
	}

	return nil
}

func (e *EngineConfig) validate() error {
	if e.PollIntervalSeconds == 0 {
		e.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if e.PollIntervalSeconds < 0 {
		return fmt.Errorf("engine.poll_interval_seconds must be > 0, got %d", e.PollIntervalSeconds)
	}

	if e.LookbackMinutes == 0 {
		e.LookbackMinutes = defaultLookbackMinutes
	}
	if e.LookbackMinutes < 0 {
		return fmt.Errorf("engine.lookback_minutes must be > 0, got %d", e.LookbackMinutes)
	}

	return nil
}

func (n *NotifyConfig) validate() error {
	if n.WebhookURL == "" {
		return fmt.Errorf("notify.webhook_url is required when notify is configured")
	}
	u, err := url.Parse(n.WebhookURL)
	if err != nil {
		return fmt.Errorf("notify.webhook_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("notify.webhook_url must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("notify.webhook_url must include a host")
	}

	if n.TimeoutSeconds == 0 {
		n.TimeoutSeconds = defaultNotifyTimeout
	}
	if n.TimeoutSeconds < 0 {
		return fmt.Errorf("notify.timeout_seconds must be > 0, got %d", n.TimeoutSeconds)
	}

	return nil
}

// ResolveAPIKey reads the store API key from the configured environment
// variable. Fails loudly rather than sending unauthenticated requests.
func (s *StoreConfig) ResolveAPIKey() (string, error) {
	key := os.Getenv(s.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("environment variable %s is not set (it must hold the store API key)", s.APIKeyEnv)
	}
	return key, nil
}

// ResolveToken reads the optional webhook bearer token. An unset variable
// yields an empty token, not an error - the webhook may be unauthenticated.
func (n *NotifyConfig) ResolveToken() string {
	if n.TokenEnv == "" {
		return ""
	}
	return os.Getenv(n.TokenEnv)
}

// Timeout returns the webhook timeout as a duration.
func (n *NotifyConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// PollInterval returns the poll interval as a duration.
func (e *EngineConfig) PollInterval() time.Duration {
	return time.Duration(e.PollIntervalSeconds) * time.Second
}

// Lookback returns the candidate window as a duration.
func (e *EngineConfig) Lookback() time.Duration {
	return time.Duration(e.LookbackMinutes) * time.Minute
}
