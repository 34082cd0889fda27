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
	"encoding/pem"
	"fmt"
)

// PEM block types
const (
	PEMTypePrivateKey          = "PRIVATE KEY"
	PEMTypeEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	PEMTypePublicKey           = "PUBLIC KEY"
)

// EncodePrivateKeyPEM encodes a private key as a PKCS#8 PEM block. With a
// password the block is "ENCRYPTED PRIVATE KEY", otherwise "PRIVATE KEY".
func EncodePrivateKeyPEM(privateKey crypto.PrivateKey, password []byte) ([]byte, error) {
	if privateKey == nil {
		return nil, ErrInvalidPrivateKey
	}

	der, err := EncodePKCS8(privateKey, password)
	if err != nil {
		return nil, err
	}

	blockType := PEMTypePrivateKey
	if len(password) > 0 {
		blockType = PEMTypeEncryptedPrivateKey
	}
	return pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}), nil
}

// DecodePrivateKeyPEM decodes the first private key block in data.
// Encrypted blocks require the password.
func DecodePrivateKeyPEM(data []byte, password []byte) (crypto.PrivateKey, error) {
	block, err := findBlock(data, PEMTypePrivateKey, PEMTypeEncryptedPrivateKey)
	if err != nil {
		return nil, err
	}
	return DecodePKCS8(block.Bytes, password)
}

// DecodeECPrivateKeyPEM decodes an unencrypted "PRIVATE KEY" block holding
// an elliptic curve key.
func DecodeECPrivateKeyPEM(data []byte) (*ecdsa.PrivateKey, error) {
	block, err := findBlock(data, PEMTypePrivateKey)
	if err != nil {
		return nil, err
	}
	return DecodeECPrivateKey(block.Bytes)
}

// EncodePublicKeyPEM encodes a public key to a "PUBLIC KEY" PEM block.
func EncodePublicKeyPEM(publicKey crypto.PublicKey) ([]byte, error) {
	der, err := EncodePublicKeyPKIX(publicKey)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: PEMTypePublicKey, Bytes: der}), nil
}

// DecodePublicKeyPEM decodes the first "PUBLIC KEY" block in data.
func DecodePublicKeyPEM(data []byte) (crypto.PublicKey, error) {
	block, err := findBlock(data, PEMTypePublicKey)
	if err != nil {
		return nil, err
	}
	return DecodePublicKeyPKIX(block.Bytes)
}

// DecodeECPublicKeyPEM decodes a "PUBLIC KEY" block holding an elliptic
// curve key.
func DecodeECPublicKeyPEM(data []byte) (*ecdsa.PublicKey, error) {
	block, err := findBlock(data, PEMTypePublicKey)
	if err != nil {
		return nil, err
	}
	return DecodeECPublicKey(block.Bytes)
}

// DecodePEMBlock returns the DER bytes of the first block of the given
// type in data.
func DecodePEMBlock(data []byte, blockType string) ([]byte, error) {
	block, err := findBlock(data, blockType)
	if err != nil {
		return nil, err
	}
	return block.Bytes, nil
}

// findBlock returns the first PEM block whose type is one of types.
func findBlock(data []byte, types ...string) (*pem.Block, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, fmt.Errorf("%w: no %v block", ErrInvalidPEMEncoding, types)
		}
		for _, t := range types {
			if block.Type == t {
				return block, nil
			}
		}
	}
}
