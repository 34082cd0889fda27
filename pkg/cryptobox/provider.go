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

	"github.com/jeremyhahn/go-cryptobox/pkg/encoding"
	"github.com/jeremyhahn/go-cryptobox/pkg/engine"
	"github.com/jeremyhahn/go-cryptobox/pkg/metrics"
)

// peerKeyOffset is the number of leading shared-secret bytes skipped by the
// peer passphrase protocol. It equals the AES-256 key length, so the
// passphrase never overlaps the bytes DeriveKey would return. Fixed for
// interoperability.
const peerKeyOffset = 32

// peerPassphraseLength is the number of shared-secret bytes hex encoded
// into a peer passphrase.
const peerPassphraseLength = 32

// WrappingKeyProvider derives the AES-256-CBC key that wraps a private key
// inside an envelope, given the envelope's salt and iteration count.
type WrappingKeyProvider interface {
	WrappingKey(salt []byte, iterations int) (*engine.SymmetricKey, error)
}

var errNilProvider = fmt.Errorf("%w: nil wrapping key provider", ErrDerivation)

// PassphraseProvider derives wrapping keys with PBKDF2-HMAC-SHA256 from a
// passphrase.
type PassphraseProvider struct {
	engine     engine.Engine
	passphrase []byte
}

var _ WrappingKeyProvider = (*PassphraseProvider)(nil)

// NewPassphraseProvider returns a provider for passphrase. The passphrase is
// copied.
func NewPassphraseProvider(e engine.Engine, passphrase []byte) *PassphraseProvider {
	p := make([]byte, len(passphrase))
	copy(p, passphrase)
	return &PassphraseProvider{engine: e, passphrase: p}
}

// WrappingKey runs PBKDF2 over the passphrase. An empty passphrase is
// allowed; salt and iteration counts the KDF rejects are ErrDerivation.
func (p *PassphraseProvider) WrappingKey(salt []byte, iterations int) (*engine.SymmetricKey, error) {
	if p == nil || p.engine == nil {
		return nil, errNilProvider
	}
	key, err := p.engine.PBKDF2Derive(p.passphrase, salt, iterations)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivation, err)
	}
	return key, nil
}

// PeerProvider derives wrapping keys from an ECDH key agreement. The
// passphrase is the hex encoding of shared-secret bytes 32 to 64, then the
// passphrase protocol applies. Both parties arrive at the same key, so a key
// exported by Alice to Bob is imported by Bob from Alice.
type PeerProvider struct {
	engine     engine.Engine
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
}

var _ WrappingKeyProvider = (*PeerProvider)(nil)

// NewPeerProvider returns a provider for the own private key and the peer's
// public key.
func NewPeerProvider(e engine.Engine, privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey) *PeerProvider {
	return &PeerProvider{engine: e, privateKey: privateKey, publicKey: publicKey}
}

// Passphrase returns the derived passphrase: 64 lowercase hex characters.
// P-256 and P-384 secrets are too short and fail with ErrDerivation.
func (p *PeerProvider) Passphrase() ([]byte, error) {
	if p == nil || p.engine == nil {
		return nil, errNilProvider
	}
	bits, err := derivePassword(p.engine, p.privateKey, p.publicKey, peerPassphraseLength)
	if err != nil {
		return nil, err
	}
	return []byte(encoding.EncodeHex(bits)), nil
}

// WrappingKey derives the peer passphrase and runs PBKDF2 over it.
func (p *PeerProvider) WrappingKey(salt []byte, iterations int) (*engine.SymmetricKey, error) {
	passphrase, err := p.Passphrase()
	if err != nil {
		return nil, err
	}
	return NewPassphraseProvider(p.engine, passphrase).WrappingKey(salt, iterations)
}

// derivePassword returns length bytes of the shared secret, starting after
// the first peerKeyOffset bytes.
func derivePassword(e engine.Engine, privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey, length int) ([]byte, error) {
	if privateKey == nil || publicKey == nil {
		return nil, fmt.Errorf("%w: nil key", ErrDerivation)
	}
	if length <= 0 {
		return nil, fmt.Errorf("%w: length %d", ErrDerivation, length)
	}
	bits, err := e.DeriveBits(privateKey, publicKey, (peerKeyOffset+length)*8)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivation, err)
	}
	return bits[peerKeyOffset:], nil
}

// PassphraseProvider returns a passphrase provider bound to the Box engine.
func (b *Box) PassphraseProvider(passphrase []byte) *PassphraseProvider {
	return NewPassphraseProvider(b.engine, passphrase)
}

// PeerProvider returns a peer provider bound to the Box engine.
func (b *Box) PeerProvider(privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey) *PeerProvider {
	return NewPeerProvider(b.engine, privateKey, publicKey)
}

// DerivePassword returns length bytes of the ECDH shared secret following
// the first 32. The peer envelope protocol hex encodes 32 of these bytes as
// its passphrase.
func (b *Box) DerivePassword(privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey, length int) (_ []byte, err error) {
	defer b.observe(metrics.OpDerivePassword, time.Now(), &err)
	return derivePassword(b.engine, privateKey, publicKey, length)
}
