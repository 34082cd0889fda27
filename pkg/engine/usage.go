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
	"runtime"
	"sync"

	"golang.org/x/sys/cpu"
)

// GCMByteLimit bounds the plaintext one GCM key may seal. With random
// 96-bit nonces NIST SP 800-38D allows 2^32 invocations; 68 GiB keeps a
// conservative margin below that.
const GCMByteLimit = 68 << 30

// usageTracker records the nonces and volume sealed under one GCM key.
type usageTracker struct {
	mu     sync.Mutex
	nonces map[string]struct{}
	bytes  int64
	limit  int64
}

func newUsageTracker(limit int64) *usageTracker {
	return &usageTracker{
		nonces: make(map[string]struct{}),
		limit:  limit,
	}
}

// record admits one seal of n bytes under nonce. Nothing is recorded when
// it fails.
func (t *usageTracker) record(nonce []byte, n int) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, seen := t.nonces[string(nonce)]; seen {
		return ErrNonceReuse
	}
	if t.bytes+int64(n) > t.limit {
		return ErrKeyExhausted
	}
	t.nonces[string(nonce)] = struct{}{}
	t.bytes += int64(n)
	return nil
}

func (t *usageTracker) sealed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bytes
}

// HardwareAES reports whether the CPU has AES instructions.
func HardwareAES() bool {
	switch runtime.GOARCH {
	case "amd64":
		return cpu.X86.HasAES
	case "arm64":
		return cpu.ARM64.HasAES
	default:
		return false
	}
}
