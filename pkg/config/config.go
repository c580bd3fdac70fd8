package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"sound-scraper/pkg/utils"
)

// AppConfig holds the application configuration. Values come from an optional
// YAML file with CLI flags layered on top (flags win).
type AppConfig struct {
	BaseURL           string           `yaml:"base_url,omitempty"`            // Site root, used to resolve relative hrefs
	ListingURL        string           `yaml:"listing_url,omitempty"`         // The fixed sound-library listing page
	UserAgent         string           `yaml:"user_agent,omitempty"`          // Identifying client header sent on every request
	OutputDir         string           `yaml:"output_dir,omitempty"`          // Root under which category directories are created
	RequestDelay      time.Duration    `yaml:"request_delay,omitempty"`       // Politeness throttle between page fetches
	MaxRetries        int              `yaml:"max_retries,omitempty"`         // Retry budget for transient fetch failures
	InitialRetryDelay time.Duration    `yaml:"initial_retry_delay,omitempty"` // Base for exponential backoff
	MaxRetryDelay     time.Duration    `yaml:"max_retry_delay,omitempty"`     // Backoff cap
	SkipDedup         bool             `yaml:"skip_dedup,omitempty"`          // Skip the post-crawl duplicate pass
	RespectRobots     *bool            `yaml:"respect_robots,omitempty"`      // Consult robots.txt before fetching (default true)
	HTTPClient        HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout             time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns        int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	DialerTimeout       time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive     time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// RobotsEnabled reports the effective robots.txt setting (default true).
func (c *AppConfig) RobotsEnabled() bool {
	if c.RespectRobots != nil {
		return *c.RespectRobots
	}
	return true
}

// Load reads an AppConfig from a YAML file. A missing or empty path yields a
// zero config; Validate supplies the defaults afterwards.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: reading config file '%s': %w", utils.ErrFilesystem, path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parsing config file '%s': %w", utils.ErrConfigValidation, path, err)
	}
	return cfg, nil
}
