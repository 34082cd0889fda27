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
	"bytes"
	"crypto/ecdsa"
	"errors"
	"sync"
	"testing"

	"github.com/jeremyhahn/go-cryptobox/pkg/encoding"
	"github.com/jeremyhahn/go-cryptobox/pkg/engine"
	"github.com/jeremyhahn/go-cryptobox/pkg/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youmark/pkcs8"
)

var (
	goldenSalt = sequence(0xa0, envelope.SaltSize)
	goldenIV   = sequence(0xb0, envelope.IVSize)
)

// TestExportEncryptedPrivateKeyPEM_Golden pins the salt and IV and checks
// the output against an envelope verified with
// `openssl pkcs8 -in password.pem -passin pass:secure`.
func TestExportEncryptedPrivateKeyPEM_Golden(t *testing.T) {
	box := newFixedBox(t, nil, goldenSalt, goldenIV)
	keys := loadKeys(t, box)

	got, err := box.ExportEncryptedPrivateKeyPEM(keys.alice, []byte("secure"))
	require.NoError(t, err)
	assert.Equal(t, readTestdata(t, "password.pem"), got)
}

func TestExportEncryptedPrivateKeyPEMTo_Golden(t *testing.T) {
	box := newFixedBox(t, nil, goldenSalt, goldenIV)
	keys := loadKeys(t, box)

	got, err := box.ExportEncryptedPrivateKeyPEMTo(keys.alice, keys.alice, keys.bobPub)
	require.NoError(t, err)
	assert.Equal(t, readTestdata(t, "peer.pem"), got)
}

func TestImportEncryptedPrivateKeyPEM_Golden(t *testing.T) {
	box := newBox(t)
	keys := loadKeys(t, box)

	key, err := box.ImportEncryptedPrivateKeyPEM(readTestdata(t, "password.pem"), []byte("secure"))
	require.NoError(t, err)
	assert.True(t, key.Equal(keys.alice))

	// Either side of the key agreement opens a peer envelope
	key, err = box.ImportEncryptedPrivateKeyPEMFrom(readTestdata(t, "peer.pem"), keys.bob, keys.alicePub)
	require.NoError(t, err)
	assert.True(t, key.Equal(keys.alice))

	key, err = box.ImportEncryptedPrivateKeyPEMFrom(readTestdata(t, "peer.pem"), keys.alice, keys.bobPub)
	require.NoError(t, err)
	assert.True(t, key.Equal(keys.alice))
}

func TestEncryptedPrivateKey_RoundTrip(t *testing.T) {
	box := newBox(t)
	key, err := box.GenerateKeyPair()
	require.NoError(t, err)

	pemText, err := box.ExportEncryptedPrivateKeyPEM(key, []byte("secure"))
	require.NoError(t, err)
	restored, err := box.ImportEncryptedPrivateKeyPEM(pemText, []byte("secure"))
	require.NoError(t, err)
	assert.True(t, key.Equal(restored))

	bob, err := box.GenerateKeyPair()
	require.NoError(t, err)
	pemText, err = box.ExportEncryptedPrivateKeyPEMTo(key, key, &bob.PublicKey)
	require.NoError(t, err)
	restored, err = box.ImportEncryptedPrivateKeyPEMFrom(pemText, bob, &key.PublicKey)
	require.NoError(t, err)
	assert.True(t, key.Equal(restored))
}

func TestEncryptedPrivateKey_EmptyPassphrase(t *testing.T) {
	box := newBox(t)
	keys := loadKeys(t, box)

	pemText, err := box.ExportEncryptedPrivateKeyPEM(keys.alice, []byte{})
	require.NoError(t, err)

	restored, err := box.ImportEncryptedPrivateKeyPEM(pemText, nil)
	require.NoError(t, err)
	assert.True(t, keys.alice.Equal(restored))

	_, err = box.ImportEncryptedPrivateKeyPEM(pemText, []byte("secure"))
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestExportEncryptedPrivateKey_FreshSaltAndIV(t *testing.T) {
	box := newBox(t)
	keys := loadKeys(t, box)
	provider := box.PassphraseProvider([]byte("secure"))

	first, err := box.ExportEncryptedPrivateKey(keys.alice, provider)
	require.NoError(t, err)
	second, err := box.ExportEncryptedPrivateKey(keys.alice, provider)
	require.NoError(t, err)

	a, err := envelope.Unmarshal(first)
	require.NoError(t, err)
	b, err := envelope.Unmarshal(second)
	require.NoError(t, err)

	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.IV, b.IV)
	assert.Equal(t, envelope.Iterations, a.Iterations)
	assert.Len(t, a.WrappedKey, 256)
}

func TestImportEncryptedPrivateKey_WrongPassphrase(t *testing.T) {
	box := newBox(t)

	_, err := box.ImportEncryptedPrivateKeyPEM(readTestdata(t, "password.pem"), []byte("insecure"))
	require.ErrorIs(t, err, ErrAuthenticationFailed)

	var engErr *engine.Error
	require.True(t, errors.As(err, &engErr))
	assert.Equal(t, "unwrapKey", engErr.Op)
}

func TestImportEncryptedPrivateKey_WrongPeer(t *testing.T) {
	box := newBox(t)
	keys := loadKeys(t, box)
	carol, err := box.GenerateKeyPair()
	require.NoError(t, err)

	_, err = box.ImportEncryptedPrivateKeyPEMFrom(readTestdata(t, "peer.pem"), carol, keys.alicePub)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestExportEncryptedPrivateKey_DerivationErrors(t *testing.T) {
	box := newBox(t)
	keys := loadKeys(t, box)

	_, err := box.ExportEncryptedPrivateKeyPEMTo(keys.alice, nil, keys.bobPub)
	assert.ErrorIs(t, err, ErrDerivation)

	_, err = box.ExportEncryptedPrivateKeyPEMTo(keys.alice, keys.alice, nil)
	assert.ErrorIs(t, err, ErrDerivation)

	_, err = box.ExportEncryptedPrivateKeyPEM(nil, []byte("secure"))
	assert.Error(t, err)
}

func TestEncryptedPrivateKey_NilProvider(t *testing.T) {
	box := newBox(t)
	keys := loadKeys(t, box)
	der, err := envelope.DecodePEM(readTestdata(t, "password.pem"))
	require.NoError(t, err)

	var nilPassphrase *PassphraseProvider
	providers := map[string]WrappingKeyProvider{
		"nil interface":     nil,
		"nil passphrase":    nilPassphrase,
		"zero value peer":   &PeerProvider{},
		"zero value phrase": &PassphraseProvider{},
	}
	for name, provider := range providers {
		t.Run(name, func(t *testing.T) {
			_, err := box.ExportEncryptedPrivateKey(keys.alice, provider)
			assert.ErrorIs(t, err, ErrDerivation)

			_, err = box.ImportEncryptedPrivateKey(der, provider)
			assert.ErrorIs(t, err, ErrDerivation)
		})
	}
}

// TestPeerEnvelope_ShortSecret checks that P-256 and P-384 agreements
// cannot feed the peer protocol, which needs 64 bytes of shared secret.
func TestPeerEnvelope_ShortSecret(t *testing.T) {
	for _, curve := range []string{"P-256", "P-384"} {
		t.Run(curve, func(t *testing.T) {
			box, err := New(&Config{Curve: curve, Mode: engine.ModeCBC, KeyLength: 256})
			require.NoError(t, err)
			alice, err := box.GenerateKeyPair()
			require.NoError(t, err)
			bob, err := box.GenerateKeyPair()
			require.NoError(t, err)

			_, err = box.ExportEncryptedPrivateKeyPEMTo(alice, alice, &bob.PublicKey)
			assert.ErrorIs(t, err, ErrDerivation)

			// Password envelopes work on any curve
			pemText, err := box.ExportEncryptedPrivateKeyPEM(alice, []byte("secure"))
			require.NoError(t, err)
			restored, err := box.ImportEncryptedPrivateKeyPEM(pemText, []byte("secure"))
			require.NoError(t, err)
			assert.True(t, alice.Equal(restored))
		})
	}
}

func TestPeerEnvelope_CurveMismatch(t *testing.T) {
	box := newBox(t)
	keys := loadKeys(t, box)
	p256, err := New(&Config{Curve: "P-256", Mode: engine.ModeCBC, KeyLength: 256})
	require.NoError(t, err)
	other, err := p256.GenerateKeyPair()
	require.NoError(t, err)

	_, err = box.ExportEncryptedPrivateKeyPEMTo(keys.alice, keys.alice, &other.PublicKey)
	assert.ErrorIs(t, err, ErrDerivation)
}

func TestImportEncryptedPrivateKey_DecodeErrors(t *testing.T) {
	box := newBox(t)

	_, err := box.ImportEncryptedPrivateKeyPEM("", []byte("secure"))
	assert.ErrorIs(t, err, envelope.ErrMalformedEnvelope)

	_, err = box.ImportEncryptedPrivateKeyPEM(readTestdata(t, "alice.pem"), []byte("secure"))
	assert.ErrorIs(t, err, envelope.ErrMalformedEnvelope)

	der, err := envelope.DecodePEM(readTestdata(t, "password.pem"))
	require.NoError(t, err)

	// hmacWithSHA256 (1.2.840.113549.2.9) becomes hmacWithSHA512 (2.11)
	sha256PRF := []byte{0x06, 0x08, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x02, 0x09}
	sha512PRF := []byte{0x06, 0x08, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x02, 0x0b}
	require.Equal(t, 1, bytes.Count(der, sha256PRF))
	_, err = box.ImportEncryptedPrivateKey(bytes.Replace(der, sha256PRF, sha512PRF, 1), box.PassphraseProvider([]byte("secure")))
	assert.ErrorIs(t, err, envelope.ErrUnsupportedAlgorithm)

	_, err = box.ImportEncryptedPrivateKey(der[:len(der)-1], box.PassphraseProvider([]byte("secure")))
	assert.ErrorIs(t, err, envelope.ErrMalformedEnvelope)

	_, err = box.ImportEncryptedPrivateKey(append(der, 0x00), box.PassphraseProvider([]byte("secure")))
	assert.ErrorIs(t, err, envelope.ErrMalformedEnvelope)
}

// TestImportEncryptedPrivateKey_EnvelopeIterations checks that import
// derives the wrapping key with the count stored in the envelope rather
// than the export policy.
func TestImportEncryptedPrivateKey_EnvelopeIterations(t *testing.T) {
	box := newBox(t)
	keys := loadKeys(t, box)
	eng := box.Engine()

	salt, err := eng.RandomBytes(envelope.SaltSize)
	require.NoError(t, err)
	iv, err := eng.RandomBytes(envelope.IVSize)
	require.NoError(t, err)
	wrappingKey, err := eng.PBKDF2Derive([]byte("secure"), salt, 2048)
	require.NoError(t, err)
	wrapped, err := eng.WrapKey(keys.alice, wrappingKey, iv)
	require.NoError(t, err)

	env := envelope.New(wrapped, iv, salt)
	env.Iterations = 2048
	der, err := envelope.Marshal(env)
	require.NoError(t, err)

	key, err := box.ImportEncryptedPrivateKey(der, box.PassphraseProvider([]byte("secure")))
	require.NoError(t, err)
	assert.True(t, key.Equal(keys.alice))
}

// TestEnvelope_PKCS8Interop checks both directions against
// github.com/youmark/pkcs8.
func TestEnvelope_PKCS8Interop(t *testing.T) {
	box := newBox(t)
	keys := loadKeys(t, box)
	passphrase := []byte("secure")

	t.Run("export then youmark parse", func(t *testing.T) {
		der, err := box.ExportEncryptedPrivateKey(keys.alice, box.PassphraseProvider(passphrase))
		require.NoError(t, err)
		key, err := pkcs8.ParsePKCS8PrivateKeyECDSA(der, passphrase)
		require.NoError(t, err)
		assert.True(t, key.Equal(keys.alice))
	})

	t.Run("golden youmark parse", func(t *testing.T) {
		der, err := envelope.DecodePEM(readTestdata(t, "password.pem"))
		require.NoError(t, err)
		key, err := pkcs8.ParsePKCS8PrivateKeyECDSA(der, passphrase)
		require.NoError(t, err)
		assert.True(t, key.Equal(keys.alice))
	})

	t.Run("youmark marshal then import", func(t *testing.T) {
		der, err := encoding.EncodePKCS8(keys.bob, passphrase)
		require.NoError(t, err)
		key, err := box.ImportEncryptedPrivateKey(der, box.PassphraseProvider(passphrase))
		require.NoError(t, err)
		assert.True(t, key.Equal(keys.bob))
	})
}

func TestEncryptedPrivateKey_Concurrent(t *testing.T) {
	box := newBox(t)
	keys := loadKeys(t, box)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*ecdsa.PrivateKey, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pemText, err := box.ExportEncryptedPrivateKeyPEMTo(keys.alice, keys.alice, keys.bobPub)
			if err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = box.ImportEncryptedPrivateKeyPEMFrom(pemText, keys.bob, keys.alicePub)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[i].Equal(keys.alice))
	}
}
