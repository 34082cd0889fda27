// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-cryptobox.
//
// go-cryptobox is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jeremyhahn/go-cryptobox/pkg/cryptobox"
	"github.com/jeremyhahn/go-cryptobox/pkg/engine"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the configuration file
const (
	EnvCurve          = "CRYPTOBOX_CURVE"
	EnvMode           = "CRYPTOBOX_MODE"
	EnvKeyLength      = "CRYPTOBOX_KEY_LENGTH"
	EnvKeyringBackend = "CRYPTOBOX_KEYRING_BACKEND"
	EnvKeyDir         = "CRYPTOBOX_KEY_DIR"
	EnvLogLevel       = "CRYPTOBOX_LOG_LEVEL"
	EnvMetricsEnabled = "CRYPTOBOX_METRICS_ENABLED"
	EnvMetricsFile    = "CRYPTOBOX_METRICS_FILE"
	EnvOutput         = "CRYPTOBOX_OUTPUT"
)

// Config represents the complete cryptobox configuration
type Config struct {
	Crypto  CryptoConfig  `yaml:"crypto"`
	Keyring KeyringConfig `yaml:"keyring"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Output  string        `yaml:"output"` // text, json, yaml
}

// CryptoConfig selects the cipher suite
type CryptoConfig struct {
	Curve     string `yaml:"curve"`      // P-256, P-384, P-521
	Mode      string `yaml:"mode"`       // CBC, GCM
	KeyLength int    `yaml:"key_length"` // 128, 192, 256
}

// KeyringConfig selects where keys are kept
type KeyringConfig struct {
	Backend string `yaml:"backend"` // file, memory
	Path    string `yaml:"path"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info
}

// MetricsConfig controls Prometheus instrumentation
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile"` // written on exit when set
}

// Default returns the built-in configuration: ECDH-P-521-AES-256-CBC with
// a file key ring under ~/.cryptobox/keys.
func Default() *Config {
	box := cryptobox.DefaultConfig()
	return &Config{
		Crypto: CryptoConfig{
			Curve:     box.Curve,
			Mode:      string(box.Mode),
			KeyLength: box.KeyLength,
		},
		Keyring: KeyringConfig{
			Backend: "file",
			Path:    DefaultKeyDir(),
		},
		Logging: LoggingConfig{Level: "info"},
		Metrics: MetricsConfig{Enabled: true},
		Output:  "text",
	}
}

// DefaultKeyDir returns ~/.cryptobox/keys, or .cryptobox/keys when the home
// directory is unknown.
func DefaultKeyDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".cryptobox", "keys")
	}
	return filepath.Join(home, ".cryptobox", "keys")
}

// Load reads configuration from a YAML file over the defaults and applies
// environment variable overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 - Config file path is provided by the user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	if curve := os.Getenv(EnvCurve); curve != "" {
		cfg.Crypto.Curve = curve
	}
	if mode := os.Getenv(EnvMode); mode != "" {
		cfg.Crypto.Mode = mode
	}
	if keyLength := os.Getenv(EnvKeyLength); keyLength != "" {
		n, err := strconv.Atoi(keyLength)
		if err != nil {
			log.Printf("Warning: invalid %s value %q, using %d: %v",
				EnvKeyLength, keyLength, cfg.Crypto.KeyLength, err)
		} else {
			cfg.Crypto.KeyLength = n
		}
	}
	if backend := os.Getenv(EnvKeyringBackend); backend != "" {
		cfg.Keyring.Backend = backend
	}
	if dir := os.Getenv(EnvKeyDir); dir != "" {
		cfg.Keyring.Path = dir
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if enabled := os.Getenv(EnvMetricsEnabled); enabled != "" {
		b, err := strconv.ParseBool(enabled)
		if err != nil {
			log.Printf("Warning: invalid %s value %q, using %t: %v",
				EnvMetricsEnabled, enabled, cfg.Metrics.Enabled, err)
		} else {
			cfg.Metrics.Enabled = b
		}
	}
	if file := os.Getenv(EnvMetricsFile); file != "" {
		cfg.Metrics.Textfile = file
	}
	if output := os.Getenv(EnvOutput); output != "" {
		cfg.Output = output
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.BoxConfig().Validate(); err != nil {
		return err
	}

	switch strings.ToLower(c.Keyring.Backend) {
	case "file":
		if c.Keyring.Path == "" {
			return fmt.Errorf("keyring path is required for the file backend")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid keyring backend: %s (must be file or memory)", c.Keyring.Backend)
	}

	validLevels := map[string]bool{"debug": true, "info": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug or info)", c.Logging.Level)
	}

	validOutputs := map[string]bool{"text": true, "json": true, "yaml": true}
	if !validOutputs[strings.ToLower(c.Output)] {
		return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", c.Output)
	}

	return nil
}

// BoxConfig converts the crypto section to a cryptobox.Config.
func (c *Config) BoxConfig() *cryptobox.Config {
	mode, err := engine.ParseMode(c.Crypto.Mode)
	if err != nil {
		// Keep the raw value so Validate reports it
		mode = engine.Mode(c.Crypto.Mode)
	}
	return &cryptobox.Config{
		Curve:     strings.ToUpper(c.Crypto.Curve),
		Mode:      mode,
		KeyLength: c.Crypto.KeyLength,
	}
}

// Debug reports whether debug logging is enabled.
func (c *Config) Debug() bool {
	return strings.EqualFold(c.Logging.Level, "debug")
}
