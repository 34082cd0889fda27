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
	"fmt"
	"strings"
)

// Mode is the AES block mode a symmetric key is bound to.
type Mode string

const (
	// ModeCBC is AES-CBC with PKCS#7 padding and a 16 byte IV.
	ModeCBC Mode = "CBC"

	// ModeGCM is AES-GCM with a 12 byte nonce and a 16 byte tag.
	ModeGCM Mode = "GCM"
)

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(s)) {
	case ModeCBC:
		return ModeCBC, nil
	case ModeGCM:
		return ModeGCM, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
	}
}

// IVSize returns the IV or nonce length for the mode.
func (m Mode) IVSize() int {
	if m == ModeGCM {
		return 12
	}
	return 16
}

// Usage is the set of operations a symmetric key may perform.
type Usage uint8

const (
	// UsageEncrypt permits Encrypt and Decrypt.
	UsageEncrypt Usage = 1 << iota

	// UsageWrap permits WrapKey and UnwrapKey.
	UsageWrap
)

// Has reports whether every bit of want is set.
func (u Usage) Has(want Usage) bool {
	return u&want == want
}

func (u Usage) String() string {
	var parts []string
	if u.Has(UsageEncrypt) {
		parts = append(parts, "encrypt", "decrypt")
	}
	if u.Has(UsageWrap) {
		parts = append(parts, "wrapKey", "unwrapKey")
	}
	return strings.Join(parts, ",")
}

// SymmetricKey is an AES key handle. The key bytes are only reachable
// through Engine.ExportRawKey, which refuses non-extractable keys.
type SymmetricKey struct {
	raw         []byte
	mode        Mode
	usage       Usage
	extractable bool

	tracker *usageTracker // GCM only
}

func newSymmetricKey(raw []byte, mode Mode, usage Usage, extractable bool) *SymmetricKey {
	k := &SymmetricKey{
		raw:         make([]byte, len(raw)),
		mode:        mode,
		usage:       usage,
		extractable: extractable,
	}
	copy(k.raw, raw)
	if mode == ModeGCM {
		k.tracker = newUsageTracker(GCMByteLimit)
	}
	return k
}

// Mode returns the block mode the key is bound to.
func (k *SymmetricKey) Mode() Mode { return k.mode }

// Usage returns the permitted operations.
func (k *SymmetricKey) Usage() Usage { return k.usage }

// Extractable reports whether ExportRawKey may return the key bytes.
func (k *SymmetricKey) Extractable() bool { return k.extractable }

// BytesSealed returns the plaintext bytes a GCM key has encrypted so far.
// It is always zero for CBC keys.
func (k *SymmetricKey) BytesSealed() int64 {
	if k.tracker == nil {
		return 0
	}
	return k.tracker.sealed()
}

// Bits returns the key length in bits.
func (k *SymmetricKey) Bits() int { return len(k.raw) * 8 }

// Algorithm returns the key's algorithm name, such as "AES-256-CBC".
func (k *SymmetricKey) Algorithm() string {
	return fmt.Sprintf("AES-%d-%s", k.Bits(), k.mode)
}

func validKeyBits(bits int) bool {
	switch bits {
	case 128, 192, 256:
		return true
	}
	return false
}
