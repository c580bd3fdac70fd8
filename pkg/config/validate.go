package config

import (
	"fmt"
	"net/url"
	"time"

	"sound-scraper/pkg/utils"
)

// Default endpoints for the Yellowstone sound library.
const (
	DefaultBaseURL    = "https://www.nps.gov"
	DefaultListingURL = "https://www.nps.gov/yell/learn/photosmultimedia/soundlibrary.htm"
	DefaultUserAgent  = "Mozilla/5.0 sound-scraper/1.0 (audio archival crawler)"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// BaseURL / ListingURL
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.ListingURL == "" {
		c.ListingURL = DefaultListingURL
	}
	for name, raw := range map[string]string{"base_url": c.BaseURL, "listing_url": c.ListingURL} {
		u, parseErr := url.Parse(raw)
		if parseErr != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			return warnings, fmt.Errorf("%w: %s '%s' must be an absolute http(s) URL", utils.ErrConfigValidation, name, raw)
		}
	}

	// UserAgent
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	// OutputDir
	if c.OutputDir == "" {
		warnings = append(warnings, "output_dir is empty, defaulting to current directory")
		c.OutputDir = "."
	}

	// RequestDelay. Zero is a valid value (throttle disabled); the CLI layer
	// supplies the 2s default when the flag is absent
	if c.RequestDelay < 0 {
		warnings = append(warnings, "request_delay cannot be negative, setting to 0")
		c.RequestDelay = 0
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			// Backoff base follows the politeness delay when one is set
			c.InitialRetryDelay = c.RequestDelay
		}
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 2 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}

	// InitialRetryDelay > MaxRetryDelay check
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// HTTP client defaults
	if c.HTTPClient.Timeout <= 0 {
		c.HTTPClient.Timeout = 5 * time.Minute // Audio assets can be large
	}
	if c.HTTPClient.MaxIdleConns <= 0 {
		c.HTTPClient.MaxIdleConns = 10
	}
	if c.HTTPClient.MaxIdleConnsPerHost <= 0 {
		c.HTTPClient.MaxIdleConnsPerHost = 2
	}
	if c.HTTPClient.IdleConnTimeout <= 0 {
		c.HTTPClient.IdleConnTimeout = 90 * time.Second
	}
	if c.HTTPClient.TLSHandshakeTimeout <= 0 {
		c.HTTPClient.TLSHandshakeTimeout = 10 * time.Second
	}
	if c.HTTPClient.DialerTimeout <= 0 {
		c.HTTPClient.DialerTimeout = 30 * time.Second
	}
	if c.HTTPClient.DialerKeepAlive <= 0 {
		c.HTTPClient.DialerKeepAlive = 30 * time.Second
	}

	return warnings, nil
}
