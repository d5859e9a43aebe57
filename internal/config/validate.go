// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that required fields are present and well-formed,
// aggregating every failure rather than stopping at the first (matching
// the teacher's Config.Validate composition of per-section checks).
func (c *Config) Validate() error {
	var errs []error

	if err := c.validateLogging(); err != nil {
		errs = append(errs, err)
	}
	if err := c.validateHTTP(); err != nil {
		errs = append(errs, err)
	}
	if err := c.validatePolicy(); err != nil {
		errs = append(errs, err)
	}
	if err := c.validateNATS(); err != nil {
		errs = append(errs, err)
	}
	if err := c.validateAudit(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("log_level %q is not one of trace|debug|info|warn|error|disabled", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("log_format %q is not one of json|console", c.LogFormat)
	}
	return nil
}

func (c *Config) validateHTTP() error {
	if c.HTTP.ListenAddr == "" {
		return errors.New("http.listen_addr is required")
	}
	if c.HTTP.RateLimitPerMinute < 0 {
		return fmt.Errorf("http.rate_limit_per_minute must be >= 0, got %d", c.HTTP.RateLimitPerMinute)
	}
	return nil
}

func (c *Config) validatePolicy() error {
	if len(c.Policy.SearchPaths) == 0 {
		return errors.New("policy.search_paths must list at least one candidate path")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if c.NATS.URL == "" {
		return nil // the NATS bridge is optional
	}
	u, err := url.Parse(c.NATS.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("nats.url %q is not a valid URL", c.NATS.URL)
	}
	if c.NATS.BreakerFailures == 0 {
		return errors.New("nats.breaker_failures must be > 0 when nats.url is set")
	}
	return nil
}

func (c *Config) validateAudit() error {
	if c.Audit.Enabled && c.Audit.Dir == "" {
		return errors.New("audit.dir is required when audit.enabled is true")
	}
	return nil
}
