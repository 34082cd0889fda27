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
	"testing"

	"github.com/jeremyhahn/go-cryptobox/pkg/encoding"
	"github.com/jeremyhahn/go-cryptobox/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprints(t *testing.T) {
	box := newBox(t)
	keys := loadKeys(t, box)

	tests := []struct {
		name   string
		key    *ecdsa.PublicKey
		sha256 string
		sha1   string
	}{
		{"alice", keys.alicePub, "0c8584b5a48138cde0cb3788734870108a90ed0a7eb62498f00c0838b6868653", "d91829d8fc9a28608e007149e1cf3c8f35d26c5f"},
		{"bob", &keys.bob.PublicKey, "fd5397c78d0c249d864408f9cf90994f3e7a6505077b6262845ad6d6e7609e9c", "12a5fc4b7fd94d291d94f8f9e1357675b4bd25c8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sha256, err := box.Sha256Fingerprint(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.sha256, sha256)

			sha1, err := box.Sha1Fingerprint(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.sha1, sha1)
		})
	}

	_, err := box.Sha256Fingerprint(nil)
	assert.ErrorIs(t, err, engine.ErrInvalidKey)
}

func TestPublicKeyPEM_ByteExact(t *testing.T) {
	box := newBox(t)
	keys := loadKeys(t, box)

	got, err := box.ExportPublicKeyPEM(keys.alicePub)
	require.NoError(t, err)
	assert.Equal(t, readTestdata(t, "alice.pub.pem"), got)

	pub, err := box.PublicKey(keys.bob)
	require.NoError(t, err)
	assert.True(t, pub.Equal(keys.bobPub))
	got, err = box.ExportPublicKeyPEM(pub)
	require.NoError(t, err)
	assert.Equal(t, readTestdata(t, "bob.pub.pem"), got)

	_, err = box.PublicKey(nil)
	assert.ErrorIs(t, err, encoding.ErrInvalidPrivateKey)
}

func TestPrivateKeyPEM_ByteExact(t *testing.T) {
	box := newBox(t)
	keys := loadKeys(t, box)

	got, err := box.ExportPrivateKeyPEM(keys.alice)
	require.NoError(t, err)
	assert.Equal(t, readTestdata(t, "alice.pem"), got)

	got, err = box.ExportPrivateKeyPEM(keys.bob)
	require.NoError(t, err)
	assert.Equal(t, readTestdata(t, "bob.pem"), got)
}

func TestKeyPEM_Errors(t *testing.T) {
	box := newBox(t)

	_, err := box.ImportPublicKeyPEM(readTestdata(t, "alice.pem"))
	assert.ErrorIs(t, err, encoding.ErrInvalidPEMEncoding)

	_, err = box.ImportPrivateKeyPEM(readTestdata(t, "alice.pub.pem"))
	assert.ErrorIs(t, err, encoding.ErrInvalidPEMEncoding)

	// Encrypted envelopes go through ImportEncryptedPrivateKeyPEM
	_, err = box.ImportPrivateKeyPEM(readTestdata(t, "password.pem"))
	assert.ErrorIs(t, err, encoding.ErrInvalidPEMEncoding)

	_, err = box.ImportPublicKeyPEM("")
	assert.ErrorIs(t, err, encoding.ErrInvalidData)

	_, err = box.ExportPrivateKeyPEM(nil)
	assert.Error(t, err)
}

func TestGenerateKeyPair_Curves(t *testing.T) {
	for _, curve := range []string{"P-256", "P-384", "P-521"} {
		t.Run(curve, func(t *testing.T) {
			box, err := New(&Config{Curve: curve, Mode: engine.ModeCBC, KeyLength: 256})
			require.NoError(t, err)
			key, err := box.GenerateKeyPair()
			require.NoError(t, err)
			assert.Equal(t, curve, key.Curve.Params().Name)

			pemText, err := box.ExportPublicKeyPEM(&key.PublicKey)
			require.NoError(t, err)
			pub, err := box.ImportPublicKeyPEM(pemText)
			require.NoError(t, err)
			assert.True(t, pub.Equal(&key.PublicKey))

			pemText, err = box.ExportPrivateKeyPEM(key)
			require.NoError(t, err)
			restored, err := box.ImportPrivateKeyPEM(pemText)
			require.NoError(t, err)
			assert.True(t, restored.Equal(key))
		})
	}
}
