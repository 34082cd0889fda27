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
	"crypto"
	"crypto/ecdsa"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-cryptobox/pkg/encoding"
	"github.com/jeremyhahn/go-cryptobox/pkg/metrics"
)

// GenerateKeyPair creates a key pair on the configured curve.
func (b *Box) GenerateKeyPair() (_ *ecdsa.PrivateKey, err error) {
	defer b.observe(metrics.OpGenerateKeyPair, time.Now(), &err)
	return b.engine.GenerateKeyPair(b.config.Curve)
}

// PublicKey returns the public half of privateKey.
func (b *Box) PublicKey(privateKey *ecdsa.PrivateKey) (*ecdsa.PublicKey, error) {
	if privateKey == nil {
		return nil, encoding.ErrInvalidPrivateKey
	}
	return &privateKey.PublicKey, nil
}

// ExportPublicKeyPEM encodes publicKey as a SubjectPublicKeyInfo
// "PUBLIC KEY" block.
func (b *Box) ExportPublicKeyPEM(publicKey *ecdsa.PublicKey) (_ string, err error) {
	defer b.observe(metrics.OpExportPublicKey, time.Now(), &err)
	der, err := b.engine.ExportPublicKey(publicKey)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: encoding.PEMTypePublicKey, Bytes: der})), nil
}

// ImportPublicKeyPEM decodes the first "PUBLIC KEY" block in pemText.
func (b *Box) ImportPublicKeyPEM(pemText string) (_ *ecdsa.PublicKey, err error) {
	defer b.observe(metrics.OpImportPublicKey, time.Now(), &err)
	der, err := encoding.DecodePEMBlock([]byte(pemText), encoding.PEMTypePublicKey)
	if err != nil {
		return nil, err
	}
	return b.engine.ImportPublicKey(der)
}

// ExportPrivateKeyPEM encodes privateKey as an unencrypted PKCS#8
// "PRIVATE KEY" block. Use ExportEncryptedPrivateKeyPEM for anything that
// leaves the process.
func (b *Box) ExportPrivateKeyPEM(privateKey *ecdsa.PrivateKey) (_ string, err error) {
	defer b.observe(metrics.OpExportPrivateKey, time.Now(), &err)
	der, err := b.engine.ExportPrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: encoding.PEMTypePrivateKey, Bytes: der})), nil
}

// ImportPrivateKeyPEM decodes the first unencrypted "PRIVATE KEY" block
// in pemText.
func (b *Box) ImportPrivateKeyPEM(pemText string) (_ *ecdsa.PrivateKey, err error) {
	defer b.observe(metrics.OpImportPrivateKey, time.Now(), &err)
	der, err := encoding.DecodePEMBlock([]byte(pemText), encoding.PEMTypePrivateKey)
	if err != nil {
		return nil, err
	}
	return b.engine.ImportPrivateKey(der)
}

// Sha256Fingerprint returns the hex SHA-256 digest of the public key's
// SubjectPublicKeyInfo DER.
func (b *Box) Sha256Fingerprint(publicKey *ecdsa.PublicKey) (string, error) {
	return b.fingerprint(crypto.SHA256, publicKey)
}

// Sha1Fingerprint returns the hex SHA-1 digest of the public key's
// SubjectPublicKeyInfo DER.
func (b *Box) Sha1Fingerprint(publicKey *ecdsa.PublicKey) (string, error) {
	return b.fingerprint(crypto.SHA1, publicKey)
}

func (b *Box) fingerprint(hash crypto.Hash, publicKey *ecdsa.PublicKey) (_ string, err error) {
	defer b.observe(metrics.OpFingerprint, time.Now(), &err)
	der, err := b.engine.ExportPublicKey(publicKey)
	if err != nil {
		return "", err
	}
	sum, err := b.engine.Digest(hash, der)
	if err != nil {
		return "", fmt.Errorf("cryptobox: fingerprint: %w", err)
	}
	return encoding.EncodeHex(sum), nil
}
