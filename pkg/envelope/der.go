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
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// cursor reads DER elements from a buffer one at a time. Bounds and
// minimal-length checks are done by cryptobyte; the cursor adds the field
// name and input offset to every failure so a truncated or tampered
// envelope reports where it broke.
type cursor struct {
	s     cryptobyte.String
	start int // offset of s[0] in the original input
	size  int // len(s) when the cursor was created
}

func newCursor(der []byte) *cursor {
	return &cursor{s: cryptobyte.String(der), size: len(der)}
}

// offset returns the position of the next unread byte in the original input.
func (c *cursor) offset() int {
	return c.start + c.size - len(c.s)
}

func (c *cursor) malformed(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d: %s", ErrMalformedEnvelope, field, c.offset(), fmt.Sprintf(format, args...))
}

// read consumes one element with the given tag and returns its contents.
func (c *cursor) read(tag cbasn1.Tag, field string) (cryptobyte.String, int, error) {
	if c.s.Empty() {
		return nil, 0, c.malformed(field, "unexpected end of input")
	}
	if !c.s.PeekASN1Tag(tag) {
		return nil, 0, c.malformed(field, "expected tag 0x%02x, got 0x%02x", uint8(tag), c.s[0])
	}
	var element, contents cryptobyte.String
	at := c.offset()
	if !c.s.ReadASN1Element(&element, tag) {
		return nil, 0, c.malformed(field, "truncated or non-minimal length")
	}
	header := element
	if !header.ReadASN1(&contents, tag) {
		return nil, 0, c.malformed(field, "invalid element")
	}
	return contents, at + len(element) - len(contents), nil
}

// readSequence returns a cursor over the contents of a SEQUENCE.
func (c *cursor) readSequence(field string) (*cursor, error) {
	contents, start, err := c.read(cbasn1.SEQUENCE, field)
	if err != nil {
		return nil, err
	}
	return &cursor{s: contents, start: start, size: len(contents)}, nil
}

func (c *cursor) readOctetString(field string) ([]byte, error) {
	contents, _, err := c.read(cbasn1.OCTET_STRING, field)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(contents))
	copy(out, contents)
	return out, nil
}

func (c *cursor) readOID(field string) (asn1.ObjectIdentifier, error) {
	at := c.offset()
	var oid asn1.ObjectIdentifier
	if !c.s.PeekASN1Tag(cbasn1.OBJECT_IDENTIFIER) {
		return nil, c.malformed(field, "expected object identifier")
	}
	if !c.s.ReadASN1ObjectIdentifier(&oid) {
		return nil, fmt.Errorf("%w: %s at offset %d: invalid object identifier", ErrMalformedEnvelope, field, at)
	}
	return oid, nil
}

func (c *cursor) readInt(field string) (int, error) {
	at := c.offset()
	if !c.s.PeekASN1Tag(cbasn1.INTEGER) {
		return 0, c.malformed(field, "expected integer")
	}
	var n int
	if !c.s.ReadASN1Integer(&n) {
		return 0, fmt.Errorf("%w: %s at offset %d: invalid integer encoding", ErrMalformedEnvelope, field, at)
	}
	return n, nil
}

func (c *cursor) readNull(field string) error {
	contents, _, err := c.read(cbasn1.NULL, field)
	if err != nil {
		return err
	}
	if !contents.Empty() {
		return c.malformed(field, "NULL with content")
	}
	return nil
}

func (c *cursor) peek(tag cbasn1.Tag) bool {
	return c.s.PeekASN1Tag(tag)
}

func (c *cursor) empty() bool {
	return c.s.Empty()
}

// finish fails if the element still holds unread bytes.
func (c *cursor) finish(field string) error {
	if !c.s.Empty() {
		return c.malformed(field, "%d trailing bytes", len(c.s))
	}
	return nil
}
