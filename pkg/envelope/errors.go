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

package envelope

import "errors"

var (
	// ErrMalformedEnvelope is returned when the input is not a structurally
	// valid envelope: truncated, wrong tags, bad lengths or missing the
	// PBES2/PBKDF2 identifiers.
	ErrMalformedEnvelope = errors.New("envelope: malformed envelope")

	// ErrUnsupportedAlgorithm is returned when a well-formed envelope names a
	// hash or cipher other than HMAC-SHA256 and AES-256-CBC.
	ErrUnsupportedAlgorithm = errors.New("envelope: unsupported algorithm")

	// ErrInvalidEnvelope is returned when an envelope to be encoded violates
	// the encoding policy.
	ErrInvalidEnvelope = errors.New("envelope: invalid envelope")
)
