// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads audiopolicyd's own operational settings — not the
// audio policy document itself, which is internal/policy's concern — via
// the teacher's three-layer koanf precedence: struct defaults, an
// optional YAML file, then environment variables.
package config

import (
	"time"

	"github.com/tomtom215/audiopolicyd/internal/usage"
)

// HTTPConfig configures the admin/introspection HTTP API.
type HTTPConfig struct {
	ListenAddr string `koanf:"listen_addr"`

	// CORSOrigins is the allow-list for internal/httpapi's cors
	// middleware; "*" allows any origin.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitPerMinute bounds httprate's per-client request budget;
	// zero disables rate limiting.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`
}

// AuthConfig configures the admin API's JWT + Casbin RBAC layer.
type AuthConfig struct {
	JWTSecret        string `koanf:"jwt_secret"`
	CasbinModelPath  string `koanf:"casbin_model_path"`
	CasbinPolicyPath string `koanf:"casbin_policy_path"`
}

// PolicyConfig configures where the audio policy document is searched
// for and how its hot-reload watcher behaves.
type PolicyConfig struct {
	SearchPaths []string `koanf:"search_paths"`
}

// GainConfig overrides the BehaviorGain table the admin engine is
// constructed with. Zero values fall back to usage.DefaultBehaviorGain
// at Config.ResolvedGain.
type GainConfig struct {
	NoneGainDb *float64 `koanf:"none_gain_db"`
	DuckGainDb *float64 `koanf:"duck_gain_db"`
	MuteGainDb *float64 `koanf:"mute_gain_db"`
}

// NATSConfig configures the optional NATS mirror of the admin engine's
// event bus. Disabled when URL is empty.
type NATSConfig struct {
	URL                 string        `koanf:"url"`
	BreakerFailures     uint32        `koanf:"breaker_failures"`
	BreakerOpenDuration time.Duration `koanf:"breaker_open_duration"`
}

// AuditConfig configures the Badger-backed append-only policy-action log.
type AuditConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
}

// IdleConfig holds idle-output-policy knob values loaded from the config
// layers. Nothing reads them: idle.Policy always uses its own compile-time
// constants (spec.md §4.4: "no runtime reconfiguration needed"), whatever
// these fields are set to.
type IdleConfig struct {
	DisableOnIdle *bool `koanf:"disable_on_idle"`
}

// Config is audiopolicyd's daemon-level configuration.
type Config struct {
	LogLevel  string       `koanf:"log_level"`
	LogFormat string       `koanf:"log_format"`
	HTTP      HTTPConfig   `koanf:"http"`
	Auth      AuthConfig   `koanf:"auth"`
	Policy    PolicyConfig `koanf:"policy"`
	Gain      GainConfig   `koanf:"gain"`
	NATS      NATSConfig   `koanf:"nats"`
	Audit     AuditConfig  `koanf:"audit"`
	Idle      IdleConfig   `koanf:"idle"`
}

// defaultConfig mirrors the teacher's defaultConfig: every field gets an
// explicit, production-sane value before the file/env layers are applied
// on top.
func defaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		HTTP: HTTPConfig{
			ListenAddr:         ":8080",
			CORSOrigins:        []string{"*"},
			RateLimitPerMinute: 600,
		},
		Auth: AuthConfig{
			CasbinModelPath:  "/etc/audiopolicyd/model.conf",
			CasbinPolicyPath: "/etc/audiopolicyd/policy.csv",
		},
		Policy: PolicyConfig{
			SearchPaths: []string{
				"/config/data/audio_policy.json",
				"/config/board/audio_policy.json",
			},
		},
		NATS: NATSConfig{
			BreakerFailures:     5,
			BreakerOpenDuration: 30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled: true,
			Dir:     "/data/audiopolicyd/audit",
		},
	}
}

// ResolvedGain returns the BehaviorGain admin.Engine should be
// constructed with, applying any configured override on top of
// usage.DefaultBehaviorGain field-by-field.
func (c *Config) ResolvedGain() usage.BehaviorGain {
	g := usage.DefaultBehaviorGain()
	if c.Gain.NoneGainDb != nil {
		g.NoneGainDb = *c.Gain.NoneGainDb
	}
	if c.Gain.DuckGainDb != nil {
		g.DuckGainDb = *c.Gain.DuckGainDb
	}
	if c.Gain.MuteGainDb != nil {
		g.MuteGainDb = *c.Gain.MuteGainDb
	}
	return g
}

// NATSEnabled reports whether the NATS mirror should be wired up.
func (c *Config) NATSEnabled() bool { return c.NATS.URL != "" }
