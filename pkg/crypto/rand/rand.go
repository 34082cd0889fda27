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

// Package rand provides the random number source used for key generation,
// initialization vectors and salts.
//
// Applications configure the source at startup and share the Resolver:
//
//	rng, _ := rand.NewResolver(rand.ModeSoftware)
//	iv, _ := rng.Rand(16)
//
// A Resolver can also be backed by any io.Reader. This is how known-answer
// tests pin the salt and IV of an encrypted key:
//
//	rng, _ := rand.NewResolver(&rand.Config{Mode: rand.ModeReader, Reader: fixed})
//
// Never use a deterministic reader outside tests.
//
// All Resolver implementations are safe for concurrent use.
package rand

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Mode specifies which RNG source to use.
type Mode string

const (
	// ModeAuto uses the configured Reader when present, otherwise crypto/rand.
	ModeAuto Mode = "auto"

	// ModeSoftware uses crypto/rand (stdlib secure random)
	ModeSoftware Mode = "software"

	// ModeReader reads from Config.Reader.
	ModeReader Mode = "reader"
)

// ErrNoReader is returned when ModeReader is selected without a Reader.
var ErrNoReader = errors.New("rand: reader mode requires a reader")

// Config contains RNG configuration.
type Config struct {
	// Mode specifies the primary RNG source to use.
	// Defaults to ModeAuto if not specified.
	Mode Mode

	// FallbackMode specifies the RNG source to use if the primary source
	// fails. If not specified, failures are returned as errors.
	FallbackMode Mode

	// Reader backs ModeReader.
	Reader io.Reader
}

// Source represents a random number generator.
type Source interface {
	// Rand returns n random bytes.
	// Returns an error if the RNG is unavailable or fails.
	Rand(n int) ([]byte, error)

	// Available returns true if this RNG source is available and ready.
	Available() bool

	// Close closes the RNG and releases any resources.
	Close() error
}

// Resolver provides the main interface for generating random numbers.
// Applications should create a Resolver at startup and reuse it.
//
// Resolver implements io.Reader, making it usable anywhere crypto/rand.Reader
// is, such as ecdsa.GenerateKey.
type Resolver interface {
	// Rand returns n random bytes from the configured RNG source.
	// If the primary source fails and FallbackMode is configured,
	// tries the fallback source.
	Rand(n int) ([]byte, error)

	// Read implements io.Reader.
	Read(p []byte) (n int, err error)

	// Source returns the underlying RNG Source being used.
	Source() Source

	// Available returns true if at least one RNG source is available.
	Available() bool

	// Close closes the resolver and releases any resources.
	Close() error
}

// NewResolver creates a new RNG resolver. config may be nil, a Mode or a
// *Config. If config is nil or empty, auto mode is used.
func NewResolver(config interface{}) (Resolver, error) {
	cfg := normalizeConfig(config)
	return newResolver(cfg)
}

// normalizeConfig converts various config types to *Config.
func normalizeConfig(config interface{}) *Config {
	if config == nil {
		return &Config{Mode: ModeAuto}
	}

	switch v := config.(type) {
	case Mode:
		return &Config{Mode: v}
	case *Config:
		if v == nil {
			return &Config{Mode: ModeAuto}
		}
		cfg := *v
		if cfg.Mode == "" {
			cfg.Mode = ModeAuto
		}
		return &cfg
	default:
		return &Config{Mode: ModeAuto}
	}
}

func newResolver(cfg *Config) (Resolver, error) {
	switch cfg.Mode {
	case ModeAuto:
		return newAutoResolver(cfg)
	case ModeSoftware:
		return newSoftwareResolver()
	case ModeReader:
		return newReaderResolver(cfg.Reader)
	default:
		return nil, fmt.Errorf("unknown RNG mode: %s", cfg.Mode)
	}
}

// SoftwareResolver uses crypto/rand from the Go standard library.
type SoftwareResolver struct{}

var _ Resolver = (*SoftwareResolver)(nil)

func newSoftwareResolver() (Resolver, error) {
	return &SoftwareResolver{}, nil
}

func (s *SoftwareResolver) Rand(n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	return buf, err
}

// Read implements io.Reader for compatibility with crypto/rand.Reader.
func (s *SoftwareResolver) Read(p []byte) (n int, err error) {
	return rand.Read(p)
}

func (s *SoftwareResolver) Source() Source {
	return &softwareSource{}
}

func (s *SoftwareResolver) Available() bool {
	return true
}

func (s *SoftwareResolver) Close() error {
	return nil
}

type softwareSource struct{}

func (s *softwareSource) Rand(n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	return buf, err
}

func (s *softwareSource) Available() bool {
	return true
}

func (s *softwareSource) Close() error {
	return nil
}

// ReaderResolver draws bytes from a caller supplied io.Reader. Reads are
// serialized so concurrent callers each receive a contiguous chunk.
type ReaderResolver struct {
	mu     sync.Mutex
	reader io.Reader
}

var _ Resolver = (*ReaderResolver)(nil)

func newReaderResolver(r io.Reader) (Resolver, error) {
	if r == nil {
		return nil, ErrNoReader
	}
	return &ReaderResolver{reader: r}, nil
}

func (r *ReaderResolver) Rand(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Read fills p completely or returns an error.
func (r *ReaderResolver) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := io.ReadFull(r.reader, p)
	if err != nil {
		return n, fmt.Errorf("rand: reader source: %w", err)
	}
	return n, nil
}

func (r *ReaderResolver) Source() Source {
	return r
}

func (r *ReaderResolver) Available() bool {
	return r.reader != nil
}

func (r *ReaderResolver) Close() error {
	if c, ok := r.reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
