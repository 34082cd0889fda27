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

package wrapping

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

const (
	key256 = "016ff85258ff9007c1bb7ac0b3e1f4f1a9d79bdd47a87ba1524a75cf30484ebb"
	key128 = "016ff85258ff9007c1bb7ac0b3e1f4f1"
	cbcIV  = "20e12d7a75d483d236c68ba736e78dee"
	gcmIV  = "33fe1c7e85cd8e10c5673c98"
)

// TestCBC_KnownAnswer tests AES-CBC against vectors produced by WebCrypto and OpenSSL.
func TestCBC_KnownAnswer(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		ciphertext string
	}{
		{"AES-128", key128, "69bd99ea2cd606c4d30cad072450783b3f3543f4309251c4aa55534f75139275"},
		{"AES-256", key256, "33268264cca0a2ddaeb748db7780cd5e27a503ac4ed2393a0684529b3beb3b67"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := mustHex(t, tt.key)
			iv := mustHex(t, cbcIV)

			ct, err := EncryptCBC(key, iv, []byte("a secret message"))
			require.NoError(t, err)
			assert.Equal(t, tt.ciphertext, hex.EncodeToString(ct))

			pt, err := DecryptCBC(key, iv, ct)
			require.NoError(t, err)
			assert.Equal(t, "a secret message", string(pt))
		})
	}
}

// TestGCM_KnownAnswer tests AES-GCM against vectors produced by WebCrypto.
func TestGCM_KnownAnswer(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		ciphertext string
	}{
		{"AES-128", key128, "1b586fe7276134b7f98540baa8f7caea8fa7f538dddd8654434d8b14618a8753"},
		{"AES-256", key256, "f05618b23f1684aa59f92edc19ba45e50c8b9cc24cbdc0b4ec39c6d0cfb33e0e"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := mustHex(t, tt.key)
			nonce := mustHex(t, gcmIV)

			ct, err := SealGCM(key, nonce, []byte("a secret message"))
			require.NoError(t, err)
			assert.Equal(t, tt.ciphertext, hex.EncodeToString(ct))

			pt, err := OpenGCM(key, nonce, ct)
			require.NoError(t, err)
			assert.Equal(t, "a secret message", string(pt))
		})
	}
}

func TestEmptyPlaintext(t *testing.T) {
	key := mustHex(t, key256)

	t.Run("CBC", func(t *testing.T) {
		iv := make([]byte, BlockSize)
		ct, err := EncryptCBC(key, iv, nil)
		require.NoError(t, err)
		assert.Len(t, ct, BlockSize)

		pt, err := DecryptCBC(key, iv, ct)
		require.NoError(t, err)
		assert.Equal(t, []byte{}, pt)
	})

	t.Run("GCM", func(t *testing.T) {
		nonce := mustHex(t, gcmIV)
		ct, err := SealGCM(key, nonce, nil)
		require.NoError(t, err)
		assert.Len(t, ct, GCMTagSize)

		pt, err := OpenGCM(key, nonce, ct)
		require.NoError(t, err)
		assert.Equal(t, []byte{}, pt)
	})
}

func TestOpenGCM_Tampered(t *testing.T) {
	key := mustHex(t, key256)
	nonce := mustHex(t, gcmIV)
	ct, err := SealGCM(key, nonce, []byte("payload"))
	require.NoError(t, err)

	ct[0] ^= 0x01
	_, err = OpenGCM(key, nonce, ct)
	assert.ErrorIs(t, err, ErrAuthentication)

	_, err = OpenGCM(key, nonce, ct[:GCMTagSize-1])
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestPad(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 16},
		{1, 16},
		{15, 16},
		{16, 32},
		{241, 256},
	}
	for _, tt := range tests {
		data := bytes.Repeat([]byte{0xaa}, tt.in)
		padded := Pad(data, BlockSize)
		assert.Len(t, padded, tt.want)

		unpadded, err := Unpad(padded, BlockSize)
		require.NoError(t, err)
		assert.Equal(t, data, unpadded)
	}
}

func TestUnpad_Invalid(t *testing.T) {
	valid := Pad([]byte("abc"), BlockSize)

	zero := append([]byte{}, valid...)
	zero[len(zero)-1] = 0

	tooLong := append([]byte{}, valid...)
	tooLong[len(tooLong)-1] = 17

	inconsistent := append([]byte{}, valid...)
	inconsistent[len(inconsistent)-2] = 0x01

	for name, data := range map[string][]byte{
		"empty":        nil,
		"unaligned":    valid[:15],
		"zero":         zero,
		"too long":     tooLong,
		"inconsistent": inconsistent,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Unpad(data, BlockSize)
			assert.ErrorIs(t, err, ErrInvalidPadding)
		})
	}
}

func TestCBC_InvalidInput(t *testing.T) {
	key := mustHex(t, key256)
	iv := mustHex(t, cbcIV)

	_, err := EncryptCBC(key[:10], iv, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = EncryptCBC(key, iv[:8], []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidIV)

	_, err = DecryptCBC(key, iv, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = DecryptCBC(key, iv, nil)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = SealGCM(key, iv, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidIV)
}

// TestDecryptCBC_WrongKey tests that a wrong key almost always fails padding.
func TestDecryptCBC_WrongKey(t *testing.T) {
	key := mustHex(t, key256)
	iv := mustHex(t, cbcIV)
	ct, err := EncryptCBC(key, iv, bytes.Repeat([]byte{0x42}, 64))
	require.NoError(t, err)

	wrong := append([]byte{}, key...)
	wrong[0] ^= 0xff
	pt, err := DecryptCBC(wrong, iv, ct)
	if err == nil {
		assert.NotEqual(t, bytes.Repeat([]byte{0x42}, 64), pt)
	} else {
		assert.ErrorIs(t, err, ErrInvalidPadding)
	}
}
