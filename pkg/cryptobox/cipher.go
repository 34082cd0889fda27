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

	"github.com/jeremyhahn/go-cryptobox/pkg/engine"
	"github.com/jeremyhahn/go-cryptobox/pkg/metrics"
)

// GenerateKey creates a random AES key for the configured mode and length.
func (b *Box) GenerateKey() (_ *engine.SymmetricKey, err error) {
	defer b.observe(metrics.OpGenerateKey, time.Now(), &err)
	return b.engine.GenerateKey(b.config.Mode, b.config.KeyLength)
}

// DeriveKey returns the shared AES key of privateKey and the peer's
// publicKey: the leading KeyLength bits of the ECDH secret.
func (b *Box) DeriveKey(privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey) (_ *engine.SymmetricKey, err error) {
	defer b.observe(metrics.OpDeriveKey, time.Now(), &err)
	return b.engine.DeriveKey(privateKey, publicKey, b.config.Mode, b.config.KeyLength)
}

// DeriveBits returns the leading length bytes of the ECDH secret.
func (b *Box) DeriveBits(privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey, length int) (_ []byte, err error) {
	defer b.observe(metrics.OpDeriveBits, time.Now(), &err)
	return b.engine.DeriveBits(privateKey, publicKey, length*8)
}

// ImportKey wraps raw bytes as an encrypt/decrypt key for the configured
// mode. The length must be 16, 24 or 32 bytes.
func (b *Box) ImportKey(raw []byte) (_ *engine.SymmetricKey, err error) {
	defer b.observe(metrics.OpImportKey, time.Now(), &err)
	return b.engine.ImportRawKey(raw, b.config.Mode, engine.UsageEncrypt)
}

// ExportKey returns the bytes of an extractable key.
func (b *Box) ExportKey(key *engine.SymmetricKey) (_ []byte, err error) {
	defer b.observe(metrics.OpExportKey, time.Now(), &err)
	return b.engine.ExportRawKey(key)
}

// Encrypt encrypts message under key and returns the box iv || ciphertext.
// CBC boxes carry a 16 byte IV, GCM boxes a 12 byte nonce.
func (b *Box) Encrypt(message []byte, key *engine.SymmetricKey) (_ []byte, err error) {
	defer b.observe(metrics.OpEncrypt, time.Now(), &err)
	return b.encrypt(message, key)
}

// Decrypt opens a box produced by Encrypt.
func (b *Box) Decrypt(box []byte, key *engine.SymmetricKey) (_ []byte, err error) {
	defer b.observe(metrics.OpDecrypt, time.Now(), &err)
	return b.decrypt(box, key)
}

// EncryptTo encrypts message for the owner of publicKey.
func (b *Box) EncryptTo(message []byte, privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey) (_ []byte, err error) {
	defer b.observe(metrics.OpEncryptTo, time.Now(), &err)
	key, err := b.engine.DeriveKey(privateKey, publicKey, b.config.Mode, b.config.KeyLength)
	if err != nil {
		return nil, err
	}
	return b.encrypt(message, key)
}

// DecryptFrom opens a box the owner of publicKey encrypted with EncryptTo.
func (b *Box) DecryptFrom(box []byte, privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey) (_ []byte, err error) {
	defer b.observe(metrics.OpDecryptFrom, time.Now(), &err)
	key, err := b.engine.DeriveKey(privateKey, publicKey, b.config.Mode, b.config.KeyLength)
	if err != nil {
		return nil, err
	}
	return b.decrypt(box, key)
}

func (b *Box) encrypt(message []byte, key *engine.SymmetricKey) ([]byte, error) {
	if key == nil {
		return nil, &engine.Error{Op: "encrypt", Err: engine.ErrInvalidKey}
	}
	iv, err := b.engine.RandomBytes(key.Mode().IVSize())
	if err != nil {
		return nil, err
	}
	ciphertext, err := b.engine.Encrypt(key, iv, message)
	if err != nil {
		return nil, err
	}
	return append(iv, ciphertext...), nil
}

func (b *Box) decrypt(box []byte, key *engine.SymmetricKey) ([]byte, error) {
	if key == nil {
		return nil, &engine.Error{Op: "decrypt", Err: engine.ErrInvalidKey}
	}
	n := key.Mode().IVSize()
	if len(box) < n {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrInvalidMessage, len(box), n)
	}
	return b.engine.Decrypt(key, box[:n], box[n:])
}
