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

// Package wrapping implements the AES block modes used to wrap private keys
// and seal messages: AES-CBC with PKCS#7 padding and AES-GCM.
//
// CBC output carries no integrity protection. Callers that need to detect a
// wrong key must validate the recovered plaintext themselves.
package wrapping

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

const (
	// BlockSize is the AES block size and the CBC IV length.
	BlockSize = aes.BlockSize

	// GCMNonceSize is the AES-GCM nonce length.
	GCMNonceSize = 12

	// GCMTagSize is the AES-GCM authentication tag length.
	GCMTagSize = 16
)

var (
	// ErrInvalidKeySize is returned for keys that are not 16, 24 or 32 bytes.
	ErrInvalidKeySize = errors.New("wrapping: AES key must be 16, 24, or 32 bytes")

	// ErrInvalidIV is returned when the IV or nonce has the wrong length.
	ErrInvalidIV = errors.New("wrapping: invalid iv length")

	// ErrInvalidCiphertext is returned when CBC ciphertext is empty or not a
	// whole number of blocks.
	ErrInvalidCiphertext = errors.New("wrapping: invalid ciphertext length")

	// ErrInvalidPadding is returned when PKCS#7 padding does not verify.
	ErrInvalidPadding = errors.New("wrapping: invalid padding")

	// ErrAuthentication is returned when an AES-GCM tag does not verify.
	ErrAuthentication = errors.New("wrapping: message authentication failed")
)

func newBlock(key []byte) (cipher.Block, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	return block, nil
}

// Pad appends PKCS#7 padding. A full block is added when data is already
// block aligned.
func Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+n)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// Unpad removes and verifies PKCS#7 padding.
func Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrInvalidPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, ErrInvalidPadding
	}
	// Check every padding byte without returning early on the first mismatch.
	var bad byte
	for _, b := range data[len(data)-n:] {
		bad |= b ^ byte(n)
	}
	if bad != 0 {
		return nil, ErrInvalidPadding
	}
	return data[:len(data)-n], nil
}

// EncryptCBC pads plaintext and encrypts it with AES-CBC.
func EncryptCBC(key, iv, plaintext []byte) ([]byte, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != BlockSize {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrInvalidIV, BlockSize, len(iv))
	}
	padded := Pad(plaintext, BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

// DecryptCBC decrypts AES-CBC ciphertext and strips the padding.
func DecryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != BlockSize {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrInvalidIV, BlockSize, len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidCiphertext, len(ciphertext))
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return Unpad(plaintext, BlockSize)
}

// SealGCM encrypts plaintext with AES-GCM. The result is ciphertext||tag.
func SealGCM(key, nonce, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key, nonce)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

// OpenGCM authenticates and decrypts ciphertext||tag. An empty plaintext
// comes back as an empty, non-nil slice, the same as DecryptCBC.
func OpenGCM(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := newGCM(key, nonce)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < GCMTagSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidCiphertext, len(ciphertext))
	}
	plaintext, err := aead.Open(make([]byte, 0, len(ciphertext)-GCMTagSize), nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

func newGCM(key, nonce []byte) (cipher.AEAD, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != GCMNonceSize {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrInvalidIV, GCMNonceSize, len(nonce))
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}
