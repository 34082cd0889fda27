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

package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is returned for nil or malformed keys.
	ErrInvalidKey = errors.New("engine: invalid key")

	// ErrInvalidKeyUsage is returned when a key is used for an operation its
	// usage set does not allow.
	ErrInvalidKeyUsage = errors.New("engine: key usage not permitted")

	// ErrNotExtractable is returned when exporting a non-extractable key.
	ErrNotExtractable = errors.New("engine: key is not extractable")

	// ErrUnsupportedMode is returned for cipher modes other than CBC and GCM.
	ErrUnsupportedMode = errors.New("engine: unsupported cipher mode")

	// ErrUnsupportedKeyLength is returned for AES key lengths other than
	// 128, 192 and 256 bits.
	ErrUnsupportedKeyLength = errors.New("engine: unsupported key length")

	// ErrUnsupportedHash is returned by Digest for unknown hash functions.
	ErrUnsupportedHash = errors.New("engine: unsupported hash function")

	// ErrNonceReuse is returned when a GCM key is asked to seal twice under
	// the same nonce.
	ErrNonceReuse = errors.New("engine: nonce reused with this key")

	// ErrKeyExhausted is returned once a GCM key has sealed GCMByteLimit
	// bytes. The key must be replaced.
	ErrKeyExhausted = errors.New("engine: key usage limit reached")
)

// Error is returned by every Engine operation that fails. Op names the
// operation, such as "unwrapKey".
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("engine: %s failed", e.Op)
	}
	return fmt.Sprintf("engine: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, err error) error {
	return &Error{Op: op, Err: err}
}
