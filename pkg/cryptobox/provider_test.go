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
	"testing"

	"github.com/jeremyhahn/go-cryptobox/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Shared secret of the alice and bob test keys, split at the 32 byte offset
// the peer protocol skips.
const (
	secretHead = "016ff85258ff9007c1bb7ac0b3e1f4f1a9d79bdd47a87ba1524a75cf30484ebb"
	secretTail = "d8d3bee875c07288af676cbf489f6c15be5167b427a5b1f6d3fd095cb7cb3b26fefb"
)

func TestPeerProvider_Passphrase(t *testing.T) {
	box := newBox(t)
	keys := loadKeys(t, box)

	passphrase, err := box.PeerProvider(keys.alice, keys.bobPub).Passphrase()
	require.NoError(t, err)
	assert.Equal(t, "d8d3bee875c07288af676cbf489f6c15be5167b427a5b1f6d3fd095cb7cb3b26", string(passphrase))

	mirrored, err := box.PeerProvider(keys.bob, keys.alicePub).Passphrase()
	require.NoError(t, err)
	assert.Equal(t, passphrase, mirrored)
}

func TestDerivePassword(t *testing.T) {
	box := newBox(t)
	keys := loadKeys(t, box)

	tests := []struct {
		name   string
		length int
		want   string
	}{
		{"16 bytes", 16, secretTail[:32]},
		{"32 bytes", 32, secretTail[:64]},
		{"rest of secret", 34, secretTail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bits, err := box.DerivePassword(keys.alice, keys.bobPub, tt.length)
			require.NoError(t, err)
			assert.Equal(t, mustHex(t, tt.want), bits)
		})
	}

	// The passphrase never overlaps the derived AES key
	key, err := box.DeriveBits(keys.alice, keys.bobPub, 32)
	require.NoError(t, err)
	assert.Equal(t, mustHex(t, secretHead), key)

	_, err = box.DerivePassword(keys.alice, keys.bobPub, 35)
	assert.ErrorIs(t, err, ErrDerivation)

	_, err = box.DerivePassword(keys.alice, keys.bobPub, 0)
	assert.ErrorIs(t, err, ErrDerivation)

	_, err = box.DerivePassword(nil, keys.bobPub, 16)
	assert.ErrorIs(t, err, ErrDerivation)
}

func TestPassphraseProvider_WrappingKey(t *testing.T) {
	box := newBox(t)

	key, err := box.PassphraseProvider([]byte("secure")).WrappingKey(goldenSalt, 64000)
	require.NoError(t, err)
	assert.Equal(t, engine.UsageWrap, key.Usage())
	assert.Equal(t, engine.ModeCBC, key.Mode())
	assert.Equal(t, "AES-256-CBC", key.Algorithm())
	assert.False(t, key.Extractable())

	_, err = box.ExportKey(key)
	assert.ErrorIs(t, err, engine.ErrNotExtractable)

	// Wrapping keys cannot encrypt messages
	_, err = box.Encrypt([]byte("a secret message"), key)
	assert.ErrorIs(t, err, engine.ErrInvalidKeyUsage)
}

func TestPassphraseProvider_Errors(t *testing.T) {
	box := newBox(t)

	tests := []struct {
		name       string
		passphrase []byte
		salt       []byte
		iterations int
	}{
		{"short salt", []byte("secure"), goldenSalt[:4], 64000},
		{"too few iterations", []byte("secure"), goldenSalt, 1},
		{"too many iterations", []byte("secure"), goldenSalt, 10000001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := box.PassphraseProvider(tt.passphrase).WrappingKey(tt.salt, tt.iterations)
			assert.ErrorIs(t, err, ErrDerivation)
		})
	}
}

func TestPassphraseProvider_CopiesPassphrase(t *testing.T) {
	box := newBox(t)
	passphrase := []byte("secure")
	provider := box.PassphraseProvider(passphrase)
	first, err := provider.WrappingKey(goldenSalt, 1000)
	require.NoError(t, err)

	passphrase[0] = 'X'
	second, err := provider.WrappingKey(goldenSalt, 1000)
	require.NoError(t, err)

	// Same key material: both wrap to the same ciphertext
	keys := loadKeys(t, box)
	a, err := box.Engine().WrapKey(keys.alice, first, goldenIV)
	require.NoError(t, err)
	b, err := box.Engine().WrapKey(keys.alice, second, goldenIV)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
