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

package rand

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestNewResolver_SoftwareMode(t *testing.T) {
	resolver, err := NewResolver(ModeSoftware)
	require.NoError(t, err)
	defer func() { _ = resolver.Close() }()

	assert.True(t, resolver.Available())
	assert.NotNil(t, resolver.Source())
}

func TestNewResolver_NilConfig(t *testing.T) {
	// nil config should default to auto mode
	resolver, err := NewResolver(nil)
	require.NoError(t, err)
	defer func() { _ = resolver.Close() }()

	assert.True(t, resolver.Available())
}

func TestNewResolver_InvalidMode(t *testing.T) {
	_, err := NewResolver(&Config{Mode: "tpm2"})
	assert.Error(t, err)
}

func TestNewResolver_ReaderModeRequiresReader(t *testing.T) {
	_, err := NewResolver(ModeReader)
	assert.ErrorIs(t, err, ErrNoReader)
}

func TestNewResolver_DoesNotMutateConfig(t *testing.T) {
	cfg := &Config{}
	_, err := NewResolver(cfg)
	require.NoError(t, err)
	assert.Equal(t, Mode(""), cfg.Mode)
}

func TestSoftwareResolver_Rand(t *testing.T) {
	resolver, err := NewResolver(ModeSoftware)
	require.NoError(t, err)

	a, err := resolver.Rand(32)
	require.NoError(t, err)
	b, err := resolver.Rand(32)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)

	buf := make([]byte, 16)
	n, err := resolver.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
}

// TestReaderResolver tests that bytes are consumed in order from the reader.
func TestReaderResolver(t *testing.T) {
	src := bytes.NewReader([]byte{1, 2, 3, 4, 5, 6})
	resolver, err := NewResolver(&Config{Mode: ModeReader, Reader: src})
	require.NoError(t, err)

	first, err := resolver.Rand(4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, first)

	_, err = resolver.Rand(4)
	assert.Error(t, err, "short read must fail")
}

// TestAutoResolver_Fallback tests that a failing reader falls back to software.
func TestAutoResolver_Fallback(t *testing.T) {
	resolver, err := NewResolver(&Config{
		Mode:         ModeAuto,
		Reader:       failingReader{},
		FallbackMode: ModeSoftware,
	})
	require.NoError(t, err)

	buf, err := resolver.Rand(24)
	require.NoError(t, err)
	assert.Len(t, buf, 24)

	p := make([]byte, 8)
	n, err := resolver.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	noFallback, err := NewResolver(&Config{Reader: failingReader{}})
	require.NoError(t, err)
	_, err = noFallback.Rand(8)
	assert.Error(t, err)
	assert.NoError(t, noFallback.Close())
}

// TestReaderResolver_Concurrent tests that concurrent reads never interleave.
func TestReaderResolver_Concurrent(t *testing.T) {
	const workers, chunk = 8, 32
	data := make([]byte, workers*chunk)
	for i := range data {
		data[i] = byte(i / chunk)
	}
	resolver, err := NewResolver(&Config{Mode: ModeReader, Reader: bytes.NewReader(data)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]byte, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = resolver.Rand(chunk)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.Len(t, r, chunk)
		assert.Equal(t, bytes.Repeat(r[:1], chunk), r)
	}
}
