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

// Package cryptobox provides elliptic curve key management and envelope
// encryption for asymmetric secure messaging.
//
// Two parties each hold an EC key pair. They derive a shared AES key with
// ECDH and use it to encrypt messages, or to wrap private keys for storage
// and transfer as PKCS#8 EncryptedPrivateKeyInfo envelopes (PBES2,
// PBKDF2-HMAC-SHA256, AES-256-CBC) that OpenSSL can read.
//
//	box, _ := cryptobox.New(nil)
//	alice, _ := box.GenerateKeyPair()
//	bob, _ := box.GenerateKeyPair()
//
//	sealed, _ := box.EncryptTo([]byte("hi"), alice, &bob.PublicKey)
//	opened, _ := box.DecryptFrom(sealed, bob, &alice.PublicKey)
//
//	pemText, _ := box.ExportEncryptedPrivateKeyPEM(alice, []byte("secret"))
//	restored, _ := box.ImportEncryptedPrivateKeyPEM(pemText, []byte("secret"))
//
// A Box holds only immutable configuration and is safe for concurrent use.
package cryptobox

import (
	"errors"
	"time"

	"github.com/jeremyhahn/go-cryptobox/pkg/engine"
	"github.com/jeremyhahn/go-cryptobox/pkg/envelope"
	"github.com/jeremyhahn/go-cryptobox/pkg/logging"
	"github.com/jeremyhahn/go-cryptobox/pkg/metrics"
)

// Box performs every key management and encryption operation over a
// cryptographic engine.
type Box struct {
	config Config
	cipher string
	engine engine.Engine
	logger *logging.Logger
}

// Option configures a Box.
type Option func(*Box)

// WithEngine replaces the default software engine.
func WithEngine(e engine.Engine) Option {
	return func(b *Box) {
		b.engine = e
	}
}

// WithLogger sets the logger. Operations are logged at debug level and
// never include key material.
func WithLogger(l *logging.Logger) Option {
	return func(b *Box) {
		b.logger = l
	}
}

// New creates a Box for config. A nil config uses DefaultConfig.
func New(config *Config, opts ...Option) (*Box, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	cfg := *config
	cfg.Mode, _ = engine.ParseMode(string(cfg.Mode))

	b := &Box{
		config: cfg,
		cipher: cfg.Cipher(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.engine == nil {
		b.engine = engine.NewSoftware(nil)
	}
	if b.logger == nil {
		b.logger = logging.DiscardLogger()
	}
	return b, nil
}

// Config returns a copy of the Box configuration.
func (b *Box) Config() Config {
	return b.config
}

// Cipher returns the cipher suite name, such as "ECDH-P-521-AES-256-CBC".
func (b *Box) Cipher() string {
	return b.cipher
}

// Engine returns the cryptographic engine.
func (b *Box) Engine() engine.Engine {
	return b.engine
}

// observe records metrics and a debug record for a finished operation.
// Deferred with a pointer to the caller's named error result.
func (b *Box) observe(op string, start time.Time, errp *error) {
	elapsed := time.Since(start)
	if err := *errp; err != nil {
		metrics.RecordOperation(op, b.cipher, metrics.StatusError, elapsed.Seconds())
		metrics.RecordError(op, b.cipher, errorType(err))
		b.logger.Debug("operation failed", "op", op, "cipher", b.cipher, "error", err)
		return
	}
	metrics.RecordOperation(op, b.cipher, metrics.StatusSuccess, elapsed.Seconds())
	b.logger.Debug("operation complete", "op", op, "cipher", b.cipher, "elapsed", elapsed)
}

// errorType maps an error to the error_type metric label.
func errorType(err error) string {
	switch {
	case errors.Is(err, envelope.ErrMalformedEnvelope):
		return "malformed_envelope"
	case errors.Is(err, envelope.ErrUnsupportedAlgorithm):
		return "unsupported_algorithm"
	case errors.Is(err, envelope.ErrInvalidEnvelope):
		return "invalid_envelope"
	case errors.Is(err, ErrAuthenticationFailed):
		return "authentication_failed"
	case errors.Is(err, ErrDerivation):
		return "derivation"
	case errors.Is(err, ErrInvalidMessage):
		return "invalid_message"
	case errors.Is(err, engine.ErrNonceReuse):
		return "nonce_reuse"
	case errors.Is(err, engine.ErrKeyExhausted):
		return "key_exhausted"
	}
	var engErr *engine.Error
	if errors.As(err, &engErr) {
		return "engine"
	}
	return "unknown"
}
