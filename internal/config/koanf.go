// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in
// priority order; the first one found is used.
var DefaultConfigPaths = []string{
	"audiopolicyd.yaml",
	"audiopolicyd.yml",
	"/etc/audiopolicyd/config.yaml",
	"/etc/audiopolicyd/config.yml",
}

// ConfigPathEnvVar overrides DefaultConfigPaths with a single explicit
// path.
const ConfigPathEnvVar = "AUDIOPOLICYD_CONFIG_PATH"

// sliceConfigPaths lists the dotted paths environment variables deliver
// as comma-separated strings but the struct expects as []string.
var sliceConfigPaths = []string{
	"http.cors_origins",
	"policy.search_paths",
}

// LoadWithKoanf builds a Config from three layers, lowest to highest
// precedence: struct defaults, an optional YAML file, then environment
// variables (matching the teacher's config.LoadWithKoanf).
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("AUDIOPOLICYD_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment config: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// processSliceFields converts comma-separated string values (as supplied
// by environment variables) into slices for the known slice fields,
// leaving values that arrived as real slices (from the YAML layer)
// untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps AUDIOPOLICYD_-prefixed environment variable
// names onto the config's dotted koanf paths, e.g.
// AUDIOPOLICYD_HTTP_LISTEN_ADDR -> http.listen_addr.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "AUDIOPOLICYD_"))

	mappings := map[string]string{
		"log_level":               "log_level",
		"log_format":              "log_format",
		"http_listen_addr":        "http.listen_addr",
		"http_cors_origins":       "http.cors_origins",
		"http_rate_limit_per_min": "http.rate_limit_per_minute",
		"auth_jwt_secret":         "auth.jwt_secret",
		"auth_casbin_model_path":  "auth.casbin_model_path",
		"auth_casbin_policy_path": "auth.casbin_policy_path",
		"policy_search_paths":     "policy.search_paths",
		"gain_none_db":            "gain.none_gain_db",
		"gain_duck_db":            "gain.duck_gain_db",
		"gain_mute_db":            "gain.mute_gain_db",
		"nats_url":                "nats.url",
		"audit_enabled":           "audit.enabled",
		"audit_dir":               "audit.dir",
	}
	if mapped, ok := mappings[key]; ok {
		return mapped
	}
	return strings.ReplaceAll(key, "_", ".")
}
