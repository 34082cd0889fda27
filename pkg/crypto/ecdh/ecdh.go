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

// Package ecdh provides Elliptic Curve Diffie-Hellman (ECDH) key agreement
// over the NIST P-256, P-384 and P-521 curves.
//
// Keys are handled as *ecdsa.PrivateKey and *ecdsa.PublicKey so the same key
// pair can be stored, fingerprinted and exchanged as PKCS#8/SPKI.
//
// Example usage:
//
//	alicePriv, _ := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
//	bobPriv, _ := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
//
//	// Both sides compute the same 66 byte secret
//	aliceSecret, _ := ecdh.DeriveSharedSecret(alicePriv, &bobPriv.PublicKey)
//	bobSecret, _ := ecdh.DeriveSharedSecret(bobPriv, &alicePriv.PublicKey)
//
//	// A 256 bit AES key is the leading 32 bytes of the secret
//	key, _ := ecdh.DeriveBits(alicePriv, &bobPriv.PublicKey, 32)
package ecdh

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"
	"fmt"
)

var (
	// ErrCurveMismatch is returned when the two keys use different curves.
	ErrCurveMismatch = errors.New("ecdh: curve mismatch")

	// ErrUnsupportedCurve is returned for curves other than P-256, P-384 and P-521.
	ErrUnsupportedCurve = errors.New("ecdh: unsupported curve")

	// ErrSecretTooShort is returned when more bytes are requested than the
	// curve's shared secret holds.
	ErrSecretTooShort = errors.New("ecdh: shared secret too short")
)

// Curve names accepted by CurveByName.
const (
	P256 = "P-256"
	P384 = "P-384"
	P521 = "P-521"
)

// DeriveSharedSecret performs ECDH key agreement between a private key and
// a public key, returning the shared secret.
//
// The secret is the big-endian X coordinate of the shared point, padded to
// the curve's field size: 32, 48 or 66 bytes.
func DeriveSharedSecret(privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey) ([]byte, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}
	if publicKey == nil {
		return nil, fmt.Errorf("public key cannot be nil")
	}

	if privateKey.Curve.Params().Name != publicKey.Curve.Params().Name {
		return nil, fmt.Errorf("%w: private key uses %s, public key uses %s",
			ErrCurveMismatch, privateKey.Curve.Params().Name, publicKey.Curve.Params().Name)
	}
	if _, err := CurveByName(privateKey.Curve.Params().Name); err != nil {
		return nil, err
	}

	ecdhPriv, err := privateKey.ECDH()
	if err != nil {
		return nil, fmt.Errorf("failed to convert private key: %w", err)
	}

	ecdhPub, err := publicKey.ECDH()
	if err != nil {
		return nil, fmt.Errorf("failed to convert public key: %w", err)
	}

	sharedSecret, err := ecdhPriv.ECDH(ecdhPub)
	if err != nil {
		return nil, fmt.Errorf("ECDH operation failed: %w", err)
	}

	return sharedSecret, nil
}

// DeriveBits returns the leading length bytes of the shared secret.
func DeriveBits(privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey, length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("length must be positive, got %d", length)
	}
	secret, err := DeriveSharedSecret(privateKey, publicKey)
	if err != nil {
		return nil, err
	}
	if length > len(secret) {
		return nil, fmt.Errorf("%w: requested %d bytes, %s yields %d",
			ErrSecretTooShort, length, privateKey.Curve.Params().Name, len(secret))
	}
	return secret[:length], nil
}

// SecretSize returns the shared secret length in bytes for a curve.
func SecretSize(curve elliptic.Curve) int {
	return (curve.Params().BitSize + 7) / 8
}

// CurveByName maps a curve name to its elliptic.Curve.
func CurveByName(name string) (elliptic.Curve, error) {
	switch name {
	case P256:
		return elliptic.P256(), nil
	case P384:
		return elliptic.P384(), nil
	case P521:
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurve, name)
	}
}

// ECDHCurve maps an elliptic.Curve to its crypto/ecdh counterpart.
func ECDHCurve(curve elliptic.Curve) (ecdh.Curve, error) {
	switch curve.Params().Name {
	case P256:
		return ecdh.P256(), nil
	case P384:
		return ecdh.P384(), nil
	case P521:
		return ecdh.P521(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurve, curve.Params().Name)
	}
}
