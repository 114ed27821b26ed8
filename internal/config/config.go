package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerURL        string        `envconfig:"GOCHAT_SERVER_URL" default:"http://localhost:5000"`
	RequestTimeout   time.Duration `envconfig:"GOCHAT_REQUEST_TIMEOUT" default:"10s"`
	ReconnectInitial time.Duration `envconfig:"GOCHAT_RECONNECT_INITIAL" default:"500ms"`
	ReconnectMax     time.Duration `envconfig:"GOCHAT_RECONNECT_MAX" default:"30s"`
	CachePath        string        `envconfig:"GOCHAT_CACHE_PATH"`
}

func validateServerURL(serverURL string) error {
	u, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("parse server URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("server URL must include a host")
	}

	return nil
}

func NewConfig(serverURL string, requestTimeout, reconnectInitial, reconnectMax time.Duration, cachePath string) (*Config, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("server URL cannot be empty")
	}
	if err := validateServerURL(serverURL); err != nil {
		return nil, err
	}
	if requestTimeout <= 0 {
		return nil, fmt.Errorf("request timeout must be positive")
	}
	if reconnectInitial <= 0 || reconnectMax <= 0 {
		return nil, fmt.Errorf("reconnect intervals must be positive")
	}
	if reconnectInitial > reconnectMax {
		return nil, fmt.Errorf("initial reconnect interval cannot exceed the maximum")
	}

	return &Config{
		ServerURL:        serverURL,
		RequestTimeout:   requestTimeout,
		ReconnectInitial: reconnectInitial,
		ReconnectMax:     reconnectMax,
		CachePath:        cachePath,
	}, nil
}

// FromEnv reads the configuration from the environment and validates it.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	return NewConfig(cfg.ServerURL, cfg.RequestTimeout, cfg.ReconnectInitial, cfg.ReconnectMax, cfg.CachePath)
}
