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
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-cryptobox/pkg/envelope"
	"github.com/jeremyhahn/go-cryptobox/pkg/metrics"
)

// ExportEncryptedPrivateKey wraps key into a DER envelope. A fresh salt is
// drawn first and handed to provider with the policy iteration count, then
// a fresh IV is drawn and the PKCS#8 encoding of key is encrypted under the
// derived key.
func (b *Box) ExportEncryptedPrivateKey(key *ecdsa.PrivateKey, provider WrappingKeyProvider) (_ []byte, err error) {
	defer b.observe(metrics.OpExportEncryptedKey, time.Now(), &err)

	if key == nil {
		return nil, fmt.Errorf("cryptobox: nil private key")
	}
	if provider == nil {
		return nil, errNilProvider
	}
	salt, err := b.engine.RandomBytes(envelope.SaltSize)
	if err != nil {
		return nil, err
	}
	wrappingKey, err := provider.WrappingKey(salt, envelope.Iterations)
	if err != nil {
		return nil, err
	}
	iv, err := b.engine.RandomBytes(envelope.IVSize)
	if err != nil {
		return nil, err
	}
	wrapped, err := b.engine.WrapKey(key, wrappingKey, iv)
	if err != nil {
		return nil, err
	}
	return envelope.Encode(wrapped, iv, salt)
}

// ImportEncryptedPrivateKey decodes a DER envelope and unwraps its key.
// The wrapping key is derived with the envelope's own salt and iteration
// count. Decode failures are envelope.ErrMalformedEnvelope or
// envelope.ErrUnsupportedAlgorithm; a key that does not unwrap is
// ErrAuthenticationFailed.
func (b *Box) ImportEncryptedPrivateKey(der []byte, provider WrappingKeyProvider) (_ *ecdsa.PrivateKey, err error) {
	defer b.observe(metrics.OpImportEncryptedKey, time.Now(), &err)

	if provider == nil {
		return nil, errNilProvider
	}
	env, err := envelope.Unmarshal(der)
	if err != nil {
		return nil, err
	}
	wrappingKey, err := provider.WrappingKey(env.Salt, env.Iterations)
	if err != nil {
		return nil, err
	}
	key, err := b.engine.UnwrapKey(env.WrappedKey, wrappingKey, env.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	return key, nil
}

// ExportEncryptedPrivateKeyPEM protects key with passphrase and returns an
// "ENCRYPTED PRIVATE KEY" PEM block.
func (b *Box) ExportEncryptedPrivateKeyPEM(key *ecdsa.PrivateKey, passphrase []byte) (string, error) {
	der, err := b.ExportEncryptedPrivateKey(key, b.PassphraseProvider(passphrase))
	if err != nil {
		return "", err
	}
	return envelope.EncodePEM(der), nil
}

// ImportEncryptedPrivateKeyPEM reverses ExportEncryptedPrivateKeyPEM.
func (b *Box) ImportEncryptedPrivateKeyPEM(pemText string, passphrase []byte) (*ecdsa.PrivateKey, error) {
	der, err := envelope.DecodePEM(pemText)
	if err != nil {
		return nil, err
	}
	return b.ImportEncryptedPrivateKey(der, b.PassphraseProvider(passphrase))
}

// ExportEncryptedPrivateKeyPEMTo protects key with a passphrase derived
// from privateKey and the peer's publicKey. The peer imports it with
// ImportEncryptedPrivateKeyPEMFrom and its own private key. Both keys must
// be on P-521.
func (b *Box) ExportEncryptedPrivateKeyPEMTo(key, privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey) (string, error) {
	der, err := b.ExportEncryptedPrivateKey(key, b.PeerProvider(privateKey, publicKey))
	if err != nil {
		return "", err
	}
	return envelope.EncodePEM(der), nil
}

// ImportEncryptedPrivateKeyPEMFrom reverses ExportEncryptedPrivateKeyPEMTo.
func (b *Box) ImportEncryptedPrivateKeyPEMFrom(pemText string, privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey) (*ecdsa.PrivateKey, error) {
	der, err := envelope.DecodePEM(pemText)
	if err != nil {
		return nil, err
	}
	return b.ImportEncryptedPrivateKey(der, b.PeerProvider(privateKey, publicKey))
}
