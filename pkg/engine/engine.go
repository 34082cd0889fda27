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

// Package engine defines the cryptographic engine contract and its software
// implementation.
//
// The engine performs every primitive the rest of the module needs: key pair
// generation, ECDH, AES key import/export, PKCS#8 and SPKI serialization,
// AES-CBC key wrapping, PBKDF2, message encryption, digests and random bytes.
// Higher layers never touch key bytes directly.
package engine

import (
	"crypto"
	"crypto/ecdsa"
)

// Engine is the cryptographic engine contract. Failures are returned as
// *Error.
type Engine interface {
	// GenerateKeyPair creates an EC key pair on the named curve
	// ("P-256", "P-384" or "P-521").
	GenerateKeyPair(curve string) (*ecdsa.PrivateKey, error)

	// GenerateKey creates a random extractable encrypt/decrypt AES key.
	GenerateKey(mode Mode, bits int) (*SymmetricKey, error)

	// DeriveKey takes the leading bits of the ECDH secret as an extractable
	// encrypt/decrypt AES key.
	DeriveKey(privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey, mode Mode, bits int) (*SymmetricKey, error)

	// DeriveBits returns the leading bits of the ECDH secret.
	DeriveBits(privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey, bits int) ([]byte, error)

	// ImportRawKey creates an extractable AES key from raw bytes.
	ImportRawKey(raw []byte, mode Mode, usage Usage) (*SymmetricKey, error)

	// ExportRawKey returns the bytes of an extractable key.
	ExportRawKey(key *SymmetricKey) ([]byte, error)

	// ImportPrivateKey parses unencrypted PKCS#8.
	ImportPrivateKey(der []byte) (*ecdsa.PrivateKey, error)

	// ExportPrivateKey serializes a private key as unencrypted PKCS#8.
	ExportPrivateKey(key *ecdsa.PrivateKey) ([]byte, error)

	// ImportPublicKey parses a SubjectPublicKeyInfo.
	ImportPublicKey(der []byte) (*ecdsa.PublicKey, error)

	// ExportPublicKey serializes a public key as SubjectPublicKeyInfo.
	ExportPublicKey(key *ecdsa.PublicKey) ([]byte, error)

	// WrapKey serializes a private key as PKCS#8 and encrypts it with
	// AES-CBC under a wrap-capable key.
	WrapKey(key *ecdsa.PrivateKey, wrappingKey *SymmetricKey, iv []byte) ([]byte, error)

	// UnwrapKey reverses WrapKey.
	UnwrapKey(wrapped []byte, wrappingKey *SymmetricKey, iv []byte) (*ecdsa.PrivateKey, error)

	// PBKDF2Derive derives a non-extractable AES-256-CBC wrap-only key with
	// PBKDF2-HMAC-SHA256.
	PBKDF2Derive(passphrase, salt []byte, iterations int) (*SymmetricKey, error)

	// Encrypt encrypts with the key's mode. iv must be Mode.IVSize bytes.
	Encrypt(key *SymmetricKey, iv, plaintext []byte) ([]byte, error)

	// Decrypt reverses Encrypt.
	Decrypt(key *SymmetricKey, iv, ciphertext []byte) ([]byte, error)

	// Digest hashes data with SHA-1, SHA-256, SHA-384 or SHA-512.
	Digest(hash crypto.Hash, data []byte) ([]byte, error)

	// RandomBytes returns n bytes from the engine's random source.
	RandomBytes(n int) ([]byte, error)
}
