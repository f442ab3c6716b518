// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads executor/host configuration from YAML.
// Configuration is host-owned and never part of a commitment: a Key()
// identity plus plain-struct settings.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigKey identifies this config block inside a shared config file.
const ConfigKey = "txkernelConfig"

// Config is the executor/host's full configuration.
type Config struct {
	DataStore DataStoreConfig `yaml:"data_store"`
	Prover    ProverConfig    `yaml:"prover"`
	Accounts  AccountsConfig  `yaml:"accounts"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DataStoreConfig selects and configures the executor's DataStore.
type DataStoreConfig struct {
	Backend string `yaml:"backend"` // "pebble" or "memory"
	Path    string `yaml:"path"`
}

// ProverConfig points at the underlying zk-VM / proving service.
type ProverConfig struct {
	Endpoint string `yaml:"endpoint"`
	UseSim   bool   `yaml:"use_sim"` // force executor.simVM even if a real backend is reachable
}

// AccountsConfig configures account-template resolution.
type AccountsConfig struct {
	TemplateDir            string `yaml:"template_dir"`
	DefaultExpirationDelta uint32 `yaml:"default_expiration_delta"`
}

// LoggingConfig configures the luxfi/log logger the executor constructs.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Key lets a host embedding multiple subsystem configs in one file
// dispatch on the block's identity.
func (c *Config) Key() string { return ConfigKey }

// Equal reports whether two configs would produce the same executor
// behavior.
func (c *Config) Equal(other *Config) bool {
	if other == nil {
		return false
	}
	return *c == *other
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*)?\}`)

// substituteEnvVars expands ${VAR} and ${VAR:-default} references before
// YAML parsing.
func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		name, def := sub[1], strings.TrimPrefix(sub[2], ":-")
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return def
	})
}

// Default returns a fully-defaulted configuration, the same result Load
// produces for an empty file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads, env-substitutes, parses, defaults, and validates a
// configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataStore.Backend == "" {
		c.DataStore.Backend = "memory"
	}
	if c.Accounts.TemplateDir == "" {
		c.Accounts.TemplateDir = "./templates"
	}
	if c.Accounts.DefaultExpirationDelta == 0 {
		c.Accounts.DefaultExpirationDelta = 128
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func (c *Config) validate() error {
	switch c.DataStore.Backend {
	case "pebble", "memory":
	default:
		return fmt.Errorf("config: unknown data_store.backend %q", c.DataStore.Backend)
	}
	if c.DataStore.Backend == "pebble" && c.DataStore.Path == "" {
		return fmt.Errorf("config: data_store.path is required for the pebble backend")
	}
	if c.Accounts.DefaultExpirationDelta == 0 || c.Accounts.DefaultExpirationDelta >= uint32(1)<<16 {
		return fmt.Errorf("config: accounts.default_expiration_delta out of [1, 2^16) range")
	}
	return nil
}
