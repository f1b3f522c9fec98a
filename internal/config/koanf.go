// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

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

// DefaultConfigPaths lists where config files are searched, in order. The
// first file found wins.
var DefaultConfigPaths = []string{
	"accord.yaml",
	"accord.yml",
	"/etc/accord/accord.yaml",
	"/etc/accord/accord.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "ACCORD_CONFIG"

// envPrefix namespaces the environment variables this service reads.
const envPrefix = "ACCORD_"

// Load builds the configuration from three layers, later layers overriding
// earlier ones:
//
//  1. built-in defaults
//  2. YAML config file (optional)
//  3. ACCORD_* environment variables (ACCORD_SERVER_PORT -> server.port)
func Load() (*Config, error) {
	return loadFrom(FindConfigFile())
}

// FindConfigFile returns the active config file path, or "" if none exists.
func FindConfigFile() string {
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

func loadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := normalizeSlices(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransform maps ACCORD_SECTION_SUB_KEY to section.sub_key. Two-level
// nesting (sources.keyword.url etc.) is resolved against the known section
// prefixes so underscores inside key names survive.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	// Nested sections first: the longest prefix wins.
	nested := []string{
		"sources_keyword", "sources_semantic", "sources_popularity",
		"feedback_nats",
	}
	for _, section := range nested {
		if strings.HasPrefix(key, section+"_") {
			path := strings.ReplaceAll(section, "_", ".")
			return path + "." + strings.TrimPrefix(key, section+"_")
		}
	}

	sections := []string{
		"server", "logging", "sources", "breaker", "ranking", "cache",
		"learner", "drift", "profile", "feedback", "store",
	}
	for _, section := range sections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}

	// Unknown variables are skipped so unrelated ACCORD_* vars cannot
	// pollute the config.
	return ""
}

// sliceConfigPaths lists paths that accept comma-separated env values.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// normalizeSlices converts comma-separated env strings into slices for the
// known slice-valued paths.
func normalizeSlices(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
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

// Watch reloads the config whenever the file at path changes and hands the
// result to apply. Reloads that fail to parse or validate are logged by the
// caller via the error argument and the previous config stays active.
func Watch(path string, apply func(*Config, error)) error {
	if path == "" {
		return nil
	}
	provider := file.Provider(path)
	return provider.Watch(func(_ interface{}, err error) {
		if err != nil {
			apply(nil, fmt.Errorf("config watch: %w", err))
			return
		}
		apply(loadFrom(path))
	})
}
