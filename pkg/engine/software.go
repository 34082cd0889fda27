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

package engine

import (
	"crypto"
	"crypto/ecdsa"
	_ "crypto/sha1" // registers crypto.SHA1
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"

	"github.com/jeremyhahn/go-cryptobox/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-cryptobox/pkg/crypto/ecdh"
	"github.com/jeremyhahn/go-cryptobox/pkg/crypto/rand"
	"github.com/jeremyhahn/go-cryptobox/pkg/crypto/wrapping"
	"github.com/jeremyhahn/go-cryptobox/pkg/encoding"
)

// Software implements Engine with the Go standard library and
// golang.org/x/crypto. It holds no mutable state and is safe for concurrent
// use.
type Software struct {
	random rand.Resolver
	kdf    kdf.KDFAdapter
}

var _ Engine = (*Software)(nil)

// NewSoftware returns a software engine drawing randomness from random.
// A nil resolver uses crypto/rand.
func NewSoftware(random rand.Resolver) *Software {
	if random == nil {
		random = &rand.SoftwareResolver{}
	}
	return &Software{
		random: random,
		kdf:    kdf.NewPBKDF2Adapter(),
	}
}

// GenerateKeyPair generates an ECDSA key pair on the named NIST curve
// (P-256, P-384 or P-521).
func (s *Software) GenerateKeyPair(curve string) (*ecdsa.PrivateKey, error) {
	c, err := ecdh.CurveByName(curve)
	if err != nil {
		return nil, newError("generateKeyPair", err)
	}
	key, err := ecdsa.GenerateKey(c, s.random)
	if err != nil {
		return nil, newError("generateKeyPair", err)
	}
	return key, nil
}

// GenerateKey returns a random AES key of bits length for mode. The key is
// extractable and usable for encrypt and decrypt.
func (s *Software) GenerateKey(mode Mode, bits int) (*SymmetricKey, error) {
	if err := checkModeBits(mode, bits); err != nil {
		return nil, newError("generateKey", err)
	}
	raw, err := s.random.Rand(bits / 8)
	if err != nil {
		return nil, newError("generateKey", err)
	}
	return newSymmetricKey(raw, mode, UsageEncrypt, true), nil
}

// DeriveKey performs ECDH and uses the first bits/8 bytes of the shared
// secret as an extractable AES key for mode.
func (s *Software) DeriveKey(privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey, mode Mode, bits int) (*SymmetricKey, error) {
	if err := checkModeBits(mode, bits); err != nil {
		return nil, newError("deriveKey", err)
	}
	raw, err := ecdh.DeriveBits(privateKey, publicKey, bits/8)
	if err != nil {
		return nil, newError("deriveKey", err)
	}
	return newSymmetricKey(raw, mode, UsageEncrypt, true), nil
}

// DeriveBits performs ECDH and returns the first bits/8 bytes of the shared
// secret. bits must be a positive multiple of 8.
func (s *Software) DeriveBits(privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey, bits int) ([]byte, error) {
	if bits <= 0 || bits%8 != 0 {
		return nil, newError("deriveBits", fmt.Errorf("bit length %d is not a positive multiple of 8", bits))
	}
	out, err := ecdh.DeriveBits(privateKey, publicKey, bits/8)
	if err != nil {
		return nil, newError("deriveBits", err)
	}
	return out, nil
}

// ImportRawKey wraps raw AES key bytes in a SymmetricKey with the given mode
// and usage. The key length must be 128, 192 or 256 bits.
func (s *Software) ImportRawKey(raw []byte, mode Mode, usage Usage) (*SymmetricKey, error) {
	if err := checkModeBits(mode, len(raw)*8); err != nil {
		return nil, newError("importKey", err)
	}
	if usage == 0 {
		return nil, newError("importKey", ErrInvalidKeyUsage)
	}
	return newSymmetricKey(raw, mode, usage, true), nil
}

// ExportRawKey returns a copy of the raw key bytes.
// Keys derived with PBKDF2Derive are not extractable.
func (s *Software) ExportRawKey(key *SymmetricKey) ([]byte, error) {
	if key == nil {
		return nil, newError("exportKey", ErrInvalidKey)
	}
	if !key.extractable {
		return nil, newError("exportKey", ErrNotExtractable)
	}
	out := make([]byte, len(key.raw))
	copy(out, key.raw)
	return out, nil
}

// ImportPrivateKey parses an unencrypted PKCS#8 EC private key.
// Only P-256, P-384 and P-521 are accepted.
func (s *Software) ImportPrivateKey(der []byte) (*ecdsa.PrivateKey, error) {
	key, err := encoding.DecodeECPrivateKey(der)
	if err != nil {
		return nil, newError("importPrivateKey", err)
	}
	if _, err := ecdh.CurveByName(key.Curve.Params().Name); err != nil {
		return nil, newError("importPrivateKey", err)
	}
	return key, nil
}

// ExportPrivateKey encodes key as unencrypted PKCS#8 DER.
func (s *Software) ExportPrivateKey(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := encoding.EncodeECPrivateKey(key)
	if err != nil {
		return nil, newError("exportPrivateKey", err)
	}
	return der, nil
}

// ImportPublicKey parses a PKIX SubjectPublicKeyInfo EC public key.
// Only P-256, P-384 and P-521 are accepted.
func (s *Software) ImportPublicKey(der []byte) (*ecdsa.PublicKey, error) {
	key, err := encoding.DecodeECPublicKey(der)
	if err != nil {
		return nil, newError("importPublicKey", err)
	}
	if _, err := ecdh.CurveByName(key.Curve.Params().Name); err != nil {
		return nil, newError("importPublicKey", err)
	}
	return key, nil
}

// ExportPublicKey encodes key as PKIX SubjectPublicKeyInfo DER.
func (s *Software) ExportPublicKey(key *ecdsa.PublicKey) ([]byte, error) {
	if key == nil {
		return nil, newError("exportPublicKey", ErrInvalidKey)
	}
	der, err := encoding.EncodePublicKeyPKIX(key)
	if err != nil {
		return nil, newError("exportPublicKey", err)
	}
	return der, nil
}

// WrapKey encrypts the PKCS#8 encoding of key with AES-CBC under
// wrappingKey, which must carry wrap usage.
func (s *Software) WrapKey(key *ecdsa.PrivateKey, wrappingKey *SymmetricKey, iv []byte) ([]byte, error) {
	if err := checkUsage(wrappingKey, UsageWrap, ModeCBC); err != nil {
		return nil, newError("wrapKey", err)
	}
	der, err := encoding.EncodeECPrivateKey(key)
	if err != nil {
		return nil, newError("wrapKey", err)
	}
	wrapped, err := wrapping.EncryptCBC(wrappingKey.raw, iv, der)
	if err != nil {
		return nil, newError("wrapKey", err)
	}
	return wrapped, nil
}

// UnwrapKey reverses WrapKey. A wrong wrapping key usually fails on the
// padding check and otherwise on PKCS#8 parsing.
func (s *Software) UnwrapKey(wrapped []byte, wrappingKey *SymmetricKey, iv []byte) (*ecdsa.PrivateKey, error) {
	if err := checkUsage(wrappingKey, UsageWrap, ModeCBC); err != nil {
		return nil, newError("unwrapKey", err)
	}
	der, err := wrapping.DecryptCBC(wrappingKey.raw, iv, wrapped)
	if err != nil {
		return nil, newError("unwrapKey", err)
	}
	key, err := encoding.DecodeECPrivateKey(der)
	if err != nil {
		return nil, newError("unwrapKey", err)
	}
	return key, nil
}

// PBKDF2Derive derives a 256-bit AES-CBC wrapping key with
// PBKDF2-HMAC-SHA256. The result can only wrap and unwrap, and is not
// extractable.
func (s *Software) PBKDF2Derive(passphrase, salt []byte, iterations int) (*SymmetricKey, error) {
	params := kdf.DefaultParams(kdf.AlgorithmPBKDF2)
	params.Salt = salt
	params.Iterations = iterations
	raw, err := s.kdf.DeriveKey(passphrase, params)
	if err != nil {
		return nil, newError("pbkdf2", err)
	}
	return newSymmetricKey(raw, ModeCBC, UsageWrap, false), nil
}

// Encrypt encrypts plaintext under key with the key's mode. GCM keys
// reject a reused nonce and stop after GCMByteLimit bytes.
func (s *Software) Encrypt(key *SymmetricKey, iv, plaintext []byte) ([]byte, error) {
	if key == nil {
		return nil, newError("encrypt", ErrInvalidKey)
	}
	if err := checkUsage(key, UsageEncrypt, key.mode); err != nil {
		return nil, newError("encrypt", err)
	}
	var (
		out []byte
		err error
	)
	switch key.mode {
	case ModeCBC:
		out, err = wrapping.EncryptCBC(key.raw, iv, plaintext)
	case ModeGCM:
		if err = key.tracker.record(iv, len(plaintext)); err == nil {
			out, err = wrapping.SealGCM(key.raw, iv, plaintext)
		}
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedMode, key.mode)
	}
	if err != nil {
		return nil, newError("encrypt", err)
	}
	return out, nil
}

// Decrypt reverses Encrypt. GCM verifies the tag; CBC only checks the
// padding.
func (s *Software) Decrypt(key *SymmetricKey, iv, ciphertext []byte) ([]byte, error) {
	if key == nil {
		return nil, newError("decrypt", ErrInvalidKey)
	}
	if err := checkUsage(key, UsageEncrypt, key.mode); err != nil {
		return nil, newError("decrypt", err)
	}
	var (
		out []byte
		err error
	)
	switch key.mode {
	case ModeCBC:
		out, err = wrapping.DecryptCBC(key.raw, iv, ciphertext)
	case ModeGCM:
		out, err = wrapping.OpenGCM(key.raw, iv, ciphertext)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedMode, key.mode)
	}
	if err != nil {
		return nil, newError("decrypt", err)
	}
	return out, nil
}

// Digest hashes data with SHA-1, SHA-256, SHA-384 or SHA-512.
func (s *Software) Digest(hash crypto.Hash, data []byte) ([]byte, error) {
	switch hash {
	case crypto.SHA1, crypto.SHA256, crypto.SHA384, crypto.SHA512:
	default:
		return nil, newError("digest", fmt.Errorf("%w: %v", ErrUnsupportedHash, hash))
	}
	h := hash.New()
	h.Write(data)
	return h.Sum(nil), nil
}

// RandomBytes returns n bytes from the engine's random source.
func (s *Software) RandomBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, newError("randomBytes", fmt.Errorf("negative length %d", n))
	}
	b, err := s.random.Rand(n)
	if err != nil {
		return nil, newError("randomBytes", err)
	}
	return b, nil
}

func checkModeBits(mode Mode, bits int) error {
	if mode != ModeCBC && mode != ModeGCM {
		return fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
	if !validKeyBits(bits) {
		return fmt.Errorf("%w: %d bits", ErrUnsupportedKeyLength, bits)
	}
	return nil
}

func checkUsage(key *SymmetricKey, usage Usage, mode Mode) error {
	if key == nil {
		return ErrInvalidKey
	}
	if !key.usage.Has(usage) {
		return fmt.Errorf("%w: key allows %s", ErrInvalidKeyUsage, key.usage)
	}
	if key.mode != mode {
		return fmt.Errorf("%w: key is bound to %s", ErrUnsupportedMode, key.mode)
	}
	return nil
}
