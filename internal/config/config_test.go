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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeremyhahn/go-cryptobox/pkg/engine"
)

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvCurve, EnvMode, EnvKeyLength, EnvKeyringBackend, EnvKeyDir,
		EnvLogLevel, EnvMetricsEnabled, EnvMetricsFile, EnvOutput,
	} {
		t.Setenv(name, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Crypto.Curve != "P-521" {
		t.Errorf("Expected curve P-521, got %s", cfg.Crypto.Curve)
	}
	if cfg.Crypto.Mode != "CBC" {
		t.Errorf("Expected mode CBC, got %s", cfg.Crypto.Mode)
	}
	if cfg.Crypto.KeyLength != 256 {
		t.Errorf("Expected key length 256, got %d", cfg.Crypto.KeyLength)
	}
	if cfg.Keyring.Backend != "file" {
		t.Errorf("Expected file keyring, got %s", cfg.Keyring.Backend)
	}
	if !strings.HasSuffix(cfg.Keyring.Path, filepath.Join(".cryptobox", "keys")) {
		t.Errorf("Unexpected keyring path %s", cfg.Keyring.Path)
	}
	if cfg.Output != "text" {
		t.Errorf("Expected text output, got %s", cfg.Output)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
	if got := cfg.BoxConfig().Cipher(); got != "ECDH-P-521-AES-256-CBC" {
		t.Errorf("Expected ECDH-P-521-AES-256-CBC, got %s", got)
	}
}

// TestLoad_Success tests successful loading of a valid config file
func TestLoad_Success(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
crypto:
  curve: "P-384"
  mode: "gcm"
  key_length: 128

keyring:
  backend: "memory"

logging:
  level: "debug"

metrics:
  enabled: false
  textfile: "/tmp/cryptobox.prom"

output: "json"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Crypto.Curve != "P-384" {
		t.Errorf("Expected curve P-384, got %s", cfg.Crypto.Curve)
	}
	if cfg.Crypto.KeyLength != 128 {
		t.Errorf("Expected key length 128, got %d", cfg.Crypto.KeyLength)
	}
	if cfg.Keyring.Backend != "memory" {
		t.Errorf("Expected memory keyring, got %s", cfg.Keyring.Backend)
	}
	if !cfg.Debug() {
		t.Error("Expected debug logging")
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected metrics to be disabled")
	}
	if cfg.Metrics.Textfile != "/tmp/cryptobox.prom" {
		t.Errorf("Unexpected metrics textfile %s", cfg.Metrics.Textfile)
	}
	if cfg.Output != "json" {
		t.Errorf("Expected json output, got %s", cfg.Output)
	}

	box := cfg.BoxConfig()
	if box.Mode != engine.ModeGCM {
		t.Errorf("Expected mode GCM, got %s", box.Mode)
	}
	if box.Cipher() != "ECDH-P-384-AES-128-GCM" {
		t.Errorf("Unexpected cipher %s", box.Cipher())
	}
}

// TestLoad_PartialFile keeps defaults for sections the file omits
func TestLoad_PartialFile(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("output: yaml\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Output != "yaml" {
		t.Errorf("Expected yaml output, got %s", cfg.Output)
	}
	if cfg.Crypto.Curve != "P-521" || cfg.Crypto.KeyLength != 256 {
		t.Errorf("Expected default crypto section, got %+v", cfg.Crypto)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Crypto.Curve != "P-521" {
		t.Errorf("Expected default curve, got %s", cfg.Crypto.Curve)
	}
}

// TestLoad_FileNotFound tests error handling for missing config file
func TestLoad_FileNotFound(t *testing.T) {
	clearEnv(t)
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Expected error for nonexistent file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Unexpected error: %v", err)
	}
}

// TestLoad_InvalidYAML tests error handling for malformed YAML
func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("crypto: [unclosed"), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid YAML, got nil")
	}
	if !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("Unexpected error: %v", err)
	}
}

// TestLoad_ValidationFailure tests that validation errors are surfaced
func TestLoad_ValidationFailure(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("crypto:\n  curve: secp256k1\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestLoad_WithEnvOverrides(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("crypto:\n  curve: P-384\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}
	t.Setenv(EnvCurve, "P-256")
	t.Setenv(EnvKeyDir, "/srv/keys")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Crypto.Curve != "P-256" {
		t.Errorf("Environment should win over the file, got %s", cfg.Crypto.Curve)
	}
	if cfg.Keyring.Path != "/srv/keys" {
		t.Errorf("Expected /srv/keys, got %s", cfg.Keyring.Path)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		validate func(*testing.T, *Config)
	}{
		{
			name: "crypto settings",
			env: map[string]string{
				EnvCurve:     "P-256",
				EnvMode:      "GCM",
				EnvKeyLength: "192",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Crypto.Curve != "P-256" {
					t.Errorf("Expected curve P-256, got %s", cfg.Crypto.Curve)
				}
				if cfg.Crypto.Mode != "GCM" {
					t.Errorf("Expected mode GCM, got %s", cfg.Crypto.Mode)
				}
				if cfg.Crypto.KeyLength != 192 {
					t.Errorf("Expected key length 192, got %d", cfg.Crypto.KeyLength)
				}
			},
		},
		{
			name: "invalid key length keeps current value",
			env:  map[string]string{EnvKeyLength: "large"},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Crypto.KeyLength != 256 {
					t.Errorf("Expected key length 256, got %d", cfg.Crypto.KeyLength)
				}
			},
		},
		{
			name: "keyring settings",
			env: map[string]string{
				EnvKeyringBackend: "memory",
				EnvKeyDir:         "/var/lib/cryptobox",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Keyring.Backend != "memory" {
					t.Errorf("Expected memory backend, got %s", cfg.Keyring.Backend)
				}
				if cfg.Keyring.Path != "/var/lib/cryptobox" {
					t.Errorf("Expected /var/lib/cryptobox, got %s", cfg.Keyring.Path)
				}
			},
		},
		{
			name: "logging and output",
			env: map[string]string{
				EnvLogLevel: "debug",
				EnvOutput:   "yaml",
			},
			validate: func(t *testing.T, cfg *Config) {
				if !cfg.Debug() {
					t.Error("Expected debug logging")
				}
				if cfg.Output != "yaml" {
					t.Errorf("Expected yaml output, got %s", cfg.Output)
				}
			},
		},
		{
			name: "metrics settings",
			env: map[string]string{
				EnvMetricsEnabled: "false",
				EnvMetricsFile:    "/tmp/m.prom",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Metrics.Enabled {
					t.Error("Expected metrics to be disabled")
				}
				if cfg.Metrics.Textfile != "/tmp/m.prom" {
					t.Errorf("Expected /tmp/m.prom, got %s", cfg.Metrics.Textfile)
				}
			},
		},
		{
			name: "invalid metrics flag keeps current value",
			env:  map[string]string{EnvMetricsEnabled: "sometimes"},
			validate: func(t *testing.T, cfg *Config) {
				if !cfg.Metrics.Enabled {
					t.Error("Expected metrics to stay enabled")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := Default()
			applyEnvOverrides(cfg)
			tt.validate(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "lowercase mode", modify: func(c *Config) { c.Crypto.Mode = "gcm" }},
		{name: "lowercase curve", modify: func(c *Config) { c.Crypto.Curve = "p-256" }},
		{name: "memory keyring without path", modify: func(c *Config) {
			c.Keyring.Backend = "memory"
			c.Keyring.Path = ""
		}},
		{name: "unknown curve", modify: func(c *Config) { c.Crypto.Curve = "P-224" }, wantErr: "unsupported"},
		{name: "unknown mode", modify: func(c *Config) { c.Crypto.Mode = "CTR" }, wantErr: "mode"},
		{name: "bad key length", modify: func(c *Config) { c.Crypto.KeyLength = 512 }, wantErr: "key length"},
		{name: "unknown backend", modify: func(c *Config) { c.Keyring.Backend = "s3" }, wantErr: "invalid keyring backend"},
		{name: "file keyring without path", modify: func(c *Config) { c.Keyring.Path = "" }, wantErr: "keyring path is required"},
		{name: "bad log level", modify: func(c *Config) { c.Logging.Level = "trace" }, wantErr: "invalid log level"},
		{name: "bad output", modify: func(c *Config) { c.Output = "xml" }, wantErr: "invalid output format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}
