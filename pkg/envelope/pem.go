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

import (
	"bytes"
	"encoding/pem"
	"fmt"
)

// EncodePEM wraps DER envelope bytes in an "ENCRYPTED PRIVATE KEY" PEM block.
// Lines are 64 characters and the text stops at the footer, with no
// trailing newline.
func EncodePEM(der []byte) string {
	text := pem.EncodeToMemory(&pem.Block{Type: PEMType, Bytes: der})
	return string(bytes.TrimSuffix(text, []byte("\n")))
}

// DecodePEM extracts the DER bytes from the first "ENCRYPTED PRIVATE KEY"
// block in text. Surrounding text is ignored. A block carrying RFC 1421
// headers (Proc-Type, DEK-Info) is not a PKCS#8 envelope and is
// ErrMalformedEnvelope.
func DecodePEM(text string) ([]byte, error) {
	rest := []byte(text)
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, fmt.Errorf("%w: no %q PEM block found", ErrMalformedEnvelope, PEMType)
		}
		if block.Type != PEMType {
			continue
		}
		if len(block.Headers) > 0 {
			return nil, fmt.Errorf("%w: unexpected PEM headers", ErrMalformedEnvelope)
		}
		return block.Bytes, nil
	}
}

// MarshalPEM encodes e as PEM text.
func MarshalPEM(e *Envelope) (string, error) {
	der, err := Marshal(e)
	if err != nil {
		return "", err
	}
	return EncodePEM(der), nil
}

// UnmarshalPEM decodes PEM text into an envelope.
func UnmarshalPEM(text string) (*Envelope, error) {
	der, err := DecodePEM(text)
	if err != nil {
		return nil, err
	}
	return Unmarshal(der)
}
