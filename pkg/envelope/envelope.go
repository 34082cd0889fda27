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

// Package envelope encodes and decodes encrypted private key envelopes.
//
// An envelope is a PKCS#8 EncryptedPrivateKeyInfo structure that uses the
// PBES2 encryption scheme (RFC 8018) with PBKDF2-HMAC-SHA256 as the key
// derivation function and AES-256-CBC as the cipher:
//
//	EncryptedPrivateKeyInfo ::= SEQUENCE {
//	    encryptionAlgorithm  SEQUENCE {
//	        id-PBES2         OBJECT IDENTIFIER,
//	        PBES2-params     SEQUENCE {
//	            keyDerivationFunc SEQUENCE {
//	                id-PBKDF2    OBJECT IDENTIFIER,
//	                PBKDF2-params SEQUENCE {
//	                    salt           OCTET STRING,
//	                    iterationCount INTEGER,
//	                    prf            AlgorithmIdentifier }},
//	            encryptionScheme SEQUENCE {
//	                aes256-CBC   OBJECT IDENTIFIER,
//	                iv           OCTET STRING }}},
//	    encryptedData        OCTET STRING }
//
// The package only deals with bytes. Deriving the wrapping key and running
// the cipher are the job of the caller (see pkg/cryptobox).
package envelope

import (
	"encoding/asn1"
	"fmt"
)

const (
	// IVSize is the AES-CBC initialization vector length in bytes.
	IVSize = 16

	// SaltSize is the PBKDF2 salt length used when creating envelopes.
	SaltSize = 16

	// Iterations is the PBKDF2 iteration count used when creating envelopes.
	Iterations = 64000

	// MaxIterations bounds the iteration count accepted from untrusted input.
	MaxIterations = 10000000

	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	// PEMType is the PEM block type of an envelope.
	PEMType = "ENCRYPTED PRIVATE KEY"
)

var (
	// OIDPBES2 identifies the PBES2 encryption scheme (RFC 8018).
	OIDPBES2 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 13}

	// OIDPBKDF2 identifies the PBKDF2 key derivation function (RFC 8018).
	OIDPBKDF2 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 12}

	// OIDHMACWithSHA256 identifies the HMAC-SHA256 pseudorandom function.
	OIDHMACWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 9}

	// OIDHMACWithSHA1 is the PBKDF2 default PRF when none is encoded.
	OIDHMACWithSHA1 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 7}

	// OIDAES256CBC identifies AES-256 in CBC mode (NIST CSOR).
	OIDAES256CBC = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 42}
)

// Envelope is the decoded form of an encrypted private key.
//
// WrappedKey is the AES-CBC ciphertext of a PKCS#8 private key. The key that
// produced it is never part of the envelope.
type Envelope struct {
	WrappedKey      []byte
	IV              []byte
	Salt            []byte
	Iterations      int
	HashAlgorithm   asn1.ObjectIdentifier
	CipherAlgorithm asn1.ObjectIdentifier
}

// New returns an envelope carrying the policy iteration count and algorithms.
func New(wrappedKey, iv, salt []byte) *Envelope {
	return &Envelope{
		WrappedKey:      wrappedKey,
		IV:              iv,
		Salt:            salt,
		Iterations:      Iterations,
		HashAlgorithm:   OIDHMACWithSHA256,
		CipherAlgorithm: OIDAES256CBC,
	}
}

// Validate checks the envelope against the encoding policy.
func (e *Envelope) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil envelope", ErrInvalidEnvelope)
	}
	if len(e.WrappedKey) == 0 {
		return fmt.Errorf("%w: wrapped key cannot be empty", ErrInvalidEnvelope)
	}
	if len(e.IV) != IVSize {
		return fmt.Errorf("%w: iv must be %d bytes, got %d", ErrInvalidEnvelope, IVSize, len(e.IV))
	}
	if len(e.Salt) != SaltSize {
		return fmt.Errorf("%w: salt must be %d bytes, got %d", ErrInvalidEnvelope, SaltSize, len(e.Salt))
	}
	if e.Iterations <= 0 || e.Iterations > MaxIterations {
		return fmt.Errorf("%w: iteration count %d out of range", ErrInvalidEnvelope, e.Iterations)
	}
	if e.HashAlgorithm != nil && !e.HashAlgorithm.Equal(OIDHMACWithSHA256) {
		return fmt.Errorf("%w: hash %s", ErrUnsupportedAlgorithm, e.HashAlgorithm)
	}
	if e.CipherAlgorithm != nil && !e.CipherAlgorithm.Equal(OIDAES256CBC) {
		return fmt.Errorf("%w: cipher %s", ErrUnsupportedAlgorithm, e.CipherAlgorithm)
	}
	return nil
}
