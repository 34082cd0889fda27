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

package envelope

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Encode builds the DER envelope for a wrapped key using the policy
// iteration count and algorithms.
func Encode(wrappedKey, iv, salt []byte) ([]byte, error) {
	return Marshal(New(wrappedKey, iv, salt))
}

// Marshal returns the DER encoding of e. Lengths are always written in their
// minimal form and the iteration count as a minimal two's complement INTEGER.
func Marshal(e *Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	hash := e.HashAlgorithm
	if hash == nil {
		hash = OIDHMACWithSHA256
	}
	cipher := e.CipherAlgorithm
	if cipher == nil {
		cipher = OIDAES256CBC
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		// encryptionAlgorithm
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(OIDPBES2)
			// PBES2-params
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				// keyDerivationFunc
				b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddASN1ObjectIdentifier(OIDPBKDF2)
					b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
						b.AddASN1OctetString(e.Salt)
						b.AddASN1Int64(int64(e.Iterations))
						b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
							b.AddASN1ObjectIdentifier(hash)
							b.AddASN1NULL()
						})
					})
				})
				// encryptionScheme
				b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddASN1ObjectIdentifier(cipher)
					b.AddASN1OctetString(e.IV)
				})
			})
		})
		b.AddASN1OctetString(e.WrappedKey)
	})

	der, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("envelope: failed to build DER: %w", err)
	}
	return der, nil
}

// Unmarshal parses a DER envelope.
//
// The structure is walked element by element. Inputs that are truncated,
// carry trailing bytes, use non-minimal lengths or lack the PBES2 and PBKDF2
// identifiers fail with ErrMalformedEnvelope. Well-formed envelopes naming a
// PRF other than HMAC-SHA256 or a cipher other than AES-256-CBC fail with
// ErrUnsupportedAlgorithm.
func Unmarshal(der []byte) (*Envelope, error) {
	if len(der) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedEnvelope)
	}

	root := newCursor(der)
	info, err := root.readSequence("EncryptedPrivateKeyInfo")
	if err != nil {
		return nil, err
	}
	if err := root.finish("EncryptedPrivateKeyInfo"); err != nil {
		return nil, err
	}

	alg, err := info.readSequence("encryptionAlgorithm")
	if err != nil {
		return nil, err
	}
	scheme, err := alg.readOID("encryption scheme")
	if err != nil {
		return nil, err
	}
	if !scheme.Equal(OIDPBES2) {
		return nil, fmt.Errorf("%w: encryption scheme %s is not PBES2", ErrMalformedEnvelope, scheme)
	}
	params, err := alg.readSequence("PBES2-params")
	if err != nil {
		return nil, err
	}
	if err := alg.finish("encryptionAlgorithm"); err != nil {
		return nil, err
	}

	env := &Envelope{}
	if err := parseKDF(params, env); err != nil {
		return nil, err
	}
	if err := parseCipher(params, env); err != nil {
		return nil, err
	}
	if err := params.finish("PBES2-params"); err != nil {
		return nil, err
	}

	env.WrappedKey, err = info.readOctetString("encryptedData")
	if err != nil {
		return nil, err
	}
	if len(env.WrappedKey) == 0 {
		return nil, info.malformed("encryptedData", "empty")
	}
	if err := info.finish("EncryptedPrivateKeyInfo"); err != nil {
		return nil, err
	}
	return env, nil
}

func parseKDF(params *cursor, env *Envelope) error {
	kdf, err := params.readSequence("keyDerivationFunc")
	if err != nil {
		return err
	}
	id, err := kdf.readOID("key derivation function")
	if err != nil {
		return err
	}
	if !id.Equal(OIDPBKDF2) {
		return fmt.Errorf("%w: key derivation function %s is not PBKDF2", ErrMalformedEnvelope, id)
	}
	p, err := kdf.readSequence("PBKDF2-params")
	if err != nil {
		return err
	}
	if err := kdf.finish("keyDerivationFunc"); err != nil {
		return err
	}

	if env.Salt, err = p.readOctetString("salt"); err != nil {
		return err
	}
	if len(env.Salt) == 0 {
		return p.malformed("salt", "empty")
	}
	if env.Iterations, err = p.readInt("iterationCount"); err != nil {
		return err
	}
	if env.Iterations <= 0 || env.Iterations > MaxIterations {
		return fmt.Errorf("%w: iteration count %d out of range", ErrMalformedEnvelope, env.Iterations)
	}
	if p.peek(cbasn1.INTEGER) {
		keyLength, err := p.readInt("keyLength")
		if err != nil {
			return err
		}
		if keyLength != KeySize {
			return fmt.Errorf("%w: key length %d", ErrUnsupportedAlgorithm, keyLength)
		}
	}

	// RFC 8018 defaults the PRF to HMAC-SHA1 when it is omitted.
	env.HashAlgorithm = OIDHMACWithSHA1
	if !p.empty() {
		prf, err := p.readSequence("prf")
		if err != nil {
			return err
		}
		if env.HashAlgorithm, err = prf.readOID("prf algorithm"); err != nil {
			return err
		}
		if prf.peek(cbasn1.NULL) {
			if err := prf.readNull("prf parameters"); err != nil {
				return err
			}
		}
		if err := prf.finish("prf"); err != nil {
			return err
		}
	}
	if err := p.finish("PBKDF2-params"); err != nil {
		return err
	}
	if !env.HashAlgorithm.Equal(OIDHMACWithSHA256) {
		return fmt.Errorf("%w: hash %s", ErrUnsupportedAlgorithm, env.HashAlgorithm)
	}
	return nil
}

func parseCipher(params *cursor, env *Envelope) error {
	scheme, err := params.readSequence("encryptionScheme")
	if err != nil {
		return err
	}
	if env.CipherAlgorithm, err = scheme.readOID("cipher"); err != nil {
		return err
	}
	if !env.CipherAlgorithm.Equal(OIDAES256CBC) {
		return fmt.Errorf("%w: cipher %s", ErrUnsupportedAlgorithm, env.CipherAlgorithm)
	}
	if env.IV, err = scheme.readOctetString("iv"); err != nil {
		return err
	}
	if len(env.IV) != IVSize {
		return fmt.Errorf("%w: iv must be %d bytes, got %d", ErrMalformedEnvelope, IVSize, len(env.IV))
	}
	return scheme.finish("encryptionScheme")
}
