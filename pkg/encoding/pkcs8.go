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

package encoding

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/youmark/pkcs8"
)

// EnvelopeOpts are the PKCS#8 encryption options matching the envelope
// policy: PBES2 with PBKDF2-HMAC-SHA256 (64000 iterations, 16 byte salt)
// and AES-256-CBC.
var EnvelopeOpts = &pkcs8.Opts{
	Cipher: pkcs8.AES256CBC,
	KDFOpts: pkcs8.PBKDF2Opts{
		SaltSize:       16,
		IterationCount: 64000,
		HMACHash:       crypto.SHA256,
	},
}

// EncodePKCS8 encodes a private key to ASN.1 DER PKCS#8 format.
// If a password is provided, the key is encrypted with EnvelopeOpts.
// If password is nil or empty, the key is encoded without encryption.
//
// Example:
//
//	der, err := encoding.EncodePKCS8(privateKey, []byte("mypassword"))
func EncodePKCS8(privateKey crypto.PrivateKey, password []byte) ([]byte, error) {
	if privateKey == nil {
		return nil, ErrInvalidPrivateKey
	}

	var opts *pkcs8.Opts
	if len(password) > 0 {
		opts = EnvelopeOpts
	}
	der, err := pkcs8.MarshalPrivateKey(privateKey, password, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PKCS#8: %w", err)
	}

	return der, nil
}

// DecodePKCS8 decodes ASN.1 DER PKCS#8 encoded data to a private key.
// If the data is encrypted, a password must be provided.
func DecodePKCS8(data []byte, password []byte) (crypto.PrivateKey, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	key, err := pkcs8.ParsePKCS8PrivateKey(data, password)
	if err != nil {
		if isPasswordError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPassword, err)
		}
		return nil, fmt.Errorf("failed to parse PKCS#8: %w", err)
	}

	return key, nil
}

// EncodeECPrivateKey encodes an elliptic curve private key as unencrypted
// PKCS#8. The output is the same byte string WebCrypto and OpenSSL produce.
func EncodeECPrivateKey(privateKey *ecdsa.PrivateKey) ([]byte, error) {
	if privateKey == nil {
		return nil, ErrInvalidPrivateKey
	}
	return EncodePKCS8(privateKey, nil)
}

// DecodeECPrivateKey decodes unencrypted PKCS#8 holding an elliptic curve key.
func DecodeECPrivateKey(data []byte) (*ecdsa.PrivateKey, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}
	key, err := pkcs8.ParsePKCS8PrivateKeyECDSA(data)
	if err != nil {
		if strings.Contains(err.Error(), "not of type ECDSA") {
			return nil, fmt.Errorf("%w: %v", ErrNotECKey, err)
		}
		return nil, fmt.Errorf("failed to parse PKCS#8: %w", err)
	}
	return key, nil
}

// EncodePublicKeyPKIX encodes a public key to ASN.1 DER PKIX format
// (SubjectPublicKeyInfo).
func EncodePublicKeyPKIX(publicKey crypto.PublicKey) ([]byte, error) {
	if publicKey == nil {
		return nil, ErrInvalidPublicKey
	}
	if k, ok := publicKey.(*ecdsa.PublicKey); ok && k == nil {
		return nil, ErrInvalidPublicKey
	}

	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PKIX public key: %w", err)
	}

	return der, nil
}

// DecodePublicKeyPKIX decodes ASN.1 DER PKIX encoded data to a public key.
func DecodePublicKeyPKIX(data []byte) (crypto.PublicKey, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	pubKey, err := x509.ParsePKIXPublicKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKIX public key: %w", err)
	}

	return pubKey, nil
}

// DecodeECPublicKey decodes a SubjectPublicKeyInfo holding an elliptic curve key.
func DecodeECPublicKey(data []byte) (*ecdsa.PublicKey, error) {
	key, err := DecodePublicKeyPKIX(data)
	if err != nil {
		return nil, err
	}
	ecKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotECKey, key)
	}
	return ecKey, nil
}

// isPasswordError checks if an error is related to an incorrect password.
func isPasswordError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	for _, s := range []string{
		"incorrect password",
		"asn1: structure error",
		"tags don't match",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
