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

package cryptobox

import (
	"fmt"

	"github.com/jeremyhahn/go-cryptobox/pkg/crypto/ecdh"
	"github.com/jeremyhahn/go-cryptobox/pkg/engine"
)

// Defaults used by DefaultConfig.
const (
	DefaultCurve     = ecdh.P521
	DefaultMode      = engine.ModeCBC
	DefaultKeyLength = 256
)

// Config selects the cipher suite of a Box: the curve for key pairs and
// the AES mode and key length for message encryption. Encrypted private
// key envelopes always use PBKDF2-HMAC-SHA256 and AES-256-CBC regardless
// of Config.
type Config struct {
	Curve     string      `yaml:"curve" json:"curve"`
	Mode      engine.Mode `yaml:"mode" json:"mode"`
	KeyLength int         `yaml:"key_length" json:"key_length"`
}

// DefaultConfig returns ECDH-P-521-AES-256-CBC.
func DefaultConfig() *Config {
	return &Config{
		Curve:     DefaultCurve,
		Mode:      DefaultMode,
		KeyLength: DefaultKeyLength,
	}
}

// Validate checks the curve, mode and key length.
func (c *Config) Validate() error {
	if _, err := ecdh.CurveByName(c.Curve); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := engine.ParseMode(string(c.Mode)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch c.KeyLength {
	case 128, 192, 256:
	default:
		return fmt.Errorf("%w: key length %d, want 128, 192 or 256", ErrInvalidConfig, c.KeyLength)
	}
	return nil
}

// Cipher returns the cipher suite name, such as "ECDH-P-521-AES-256-CBC".
func (c *Config) Cipher() string {
	return fmt.Sprintf("ECDH-%s-AES-%d-%s", c.Curve, c.KeyLength, c.Mode)
}
