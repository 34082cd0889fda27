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

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jeremyhahn/go-cryptobox/internal/config"
	"github.com/jeremyhahn/go-cryptobox/pkg/cryptobox"
	"github.com/jeremyhahn/go-cryptobox/pkg/keyring"
	"github.com/jeremyhahn/go-cryptobox/pkg/logging"
	"github.com/jeremyhahn/go-cryptobox/pkg/metrics"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the configuration file
	ConfigFile string

	// Keyring is the key ring backend (file, memory)
	Keyring string

	// KeyDir is the directory of the file key ring
	KeyDir string

	// Curve, Mode and KeyLength select the cipher suite
	Curve     string
	Mode      string
	KeyLength int

	// OutputFormat controls output formatting (text, json, yaml)
	OutputFormat string

	// Verbose enables debug logging to stderr
	Verbose bool

	// MetricsFile receives a Prometheus textfile snapshot on exit
	MetricsFile string

	settings *viper.Viper
}

// flagKeys maps configuration keys to the persistent flags that override
// them.
var flagKeys = map[string]string{
	"crypto.curve":      "curve",
	"crypto.mode":       "mode",
	"crypto.key_length": "key-length",
	"keyring.backend":   "keyring",
	"keyring.path":      "key-dir",
	"output":            "output",
	"verbose":           "verbose",
	"metrics.textfile":  "metrics-file",
}

// secretKeys maps the secret flags of individual commands to the
// environment variables read when the flag is not given. Secrets never
// come from the config file.
var secretKeys = map[string]string{
	"passphrase":     EnvPassphrase,
	"key-passphrase": EnvKeyPassphrase,
	"secret":         EnvSecret,
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	def := config.Default()
	return &Config{
		Keyring:      def.Keyring.Backend,
		KeyDir:       def.Keyring.Path,
		Curve:        def.Crypto.Curve,
		Mode:         def.Crypto.Mode,
		KeyLength:    def.Crypto.KeyLength,
		OutputFormat: def.Output,
	}
}

// Resolve loads the configuration file and environment, then layers any
// flag set on the command line over them.
func (c *Config) Resolve(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(c.ConfigFile)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetDefault("crypto.curve", cfg.Crypto.Curve)
	v.SetDefault("crypto.mode", cfg.Crypto.Mode)
	v.SetDefault("crypto.key_length", cfg.Crypto.KeyLength)
	v.SetDefault("keyring.backend", cfg.Keyring.Backend)
	v.SetDefault("keyring.path", cfg.Keyring.Path)
	v.SetDefault("output", cfg.Output)
	v.SetDefault("verbose", cfg.Debug())
	v.SetDefault("metrics.textfile", cfg.Metrics.Textfile)

	for key, name := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	for key, env := range secretKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	cfg.Crypto.Curve = strings.ToUpper(v.GetString("crypto.curve"))
	cfg.Crypto.Mode = v.GetString("crypto.mode")
	cfg.Crypto.KeyLength = v.GetInt("crypto.key_length")
	cfg.Keyring.Backend = v.GetString("keyring.backend")
	cfg.Keyring.Path = v.GetString("keyring.path")
	cfg.Output = v.GetString("output")
	cfg.Metrics.Textfile = v.GetString("metrics.textfile")
	if v.GetBool("verbose") {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	c.settings = v
	return cfg, nil
}

// BindCommandFlags layers the secret flags of the running command over
// their environment variables. Resolve must have succeeded first.
func (c *Config) BindCommandFlags(flags *pflag.FlagSet) error {
	for key := range secretKeys {
		f := flags.Lookup(key)
		if f == nil {
			continue
		}
		if err := c.settings.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", key, err)
		}
	}
	return nil
}

// secret returns a secret set by flag or environment, or "" when neither
// is set.
func (c *Config) secret(key string) string {
	if c.settings == nil {
		return ""
	}
	return c.settings.GetString(key)
}

// session is everything a command needs once configuration is resolved.
type session struct {
	config  *config.Config
	logger  *logging.Logger
	box     *cryptobox.Box
	keyring *keyring.Keyring
	printer *Printer
}

// openSession builds the box and key ring described by cfg.
func openSession(cfg *config.Config, stdout, stderr io.Writer) (*session, error) {
	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	logger := logging.NewWriterLogger(stderr, cfg.Debug())

	box, err := cryptobox.New(cfg.BoxConfig(), cryptobox.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var backend keyring.Backend
	switch strings.ToLower(cfg.Keyring.Backend) {
	case "memory":
		backend = keyring.NewMemoryBackend()
	default:
		fb, err := keyring.NewFileBackend(cfg.Keyring.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open key ring: %w", err)
		}
		backend = fb
	}
	logger.Debug("session opened",
		"cipher", box.Cipher(),
		"keyring", backend.Name())

	return &session{
		config:  cfg,
		logger:  logger,
		box:     box,
		keyring: keyring.New(backend, logger),
		printer: NewPrinter(strings.ToLower(cfg.Output), stdout),
	}, nil
}

// close releases the key ring and writes the metrics textfile.
func (s *session) close() error {
	err := s.keyring.Close()
	if path := s.config.Metrics.Textfile; path != "" && metrics.IsEnabled() {
		if werr := metrics.WriteTextfile(path); werr != nil && err == nil {
			err = fmt.Errorf("failed to write metrics: %w", werr)
		}
	}
	return err
}
