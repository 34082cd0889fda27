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

import "errors"

var (
	// ErrDerivation is returned when a wrapping key cannot be derived: KDF
	// parameters out of range, a missing provider, nil or mismatched keys,
	// or a shared secret shorter than the peer passphrase protocol needs
	// (P-256 and P-384).
	ErrDerivation = errors.New("cryptobox: key derivation failed")

	// ErrAuthenticationFailed is returned when an envelope decodes but its
	// wrapped key does not decrypt to a PKCS#8 private key, almost always
	// because of a wrong passphrase or key pair.
	ErrAuthenticationFailed = errors.New("cryptobox: unwrapping failed, wrong passphrase or key")

	// ErrInvalidMessage is returned by Decrypt when a box is shorter than
	// its IV.
	ErrInvalidMessage = errors.New("cryptobox: invalid message box")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("cryptobox: invalid configuration")
)
