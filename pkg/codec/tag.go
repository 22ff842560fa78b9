package codec

import (
	"fmt"
	"unicode/utf8"
)

// TagSize is the length of a chunk type code in bytes
const TagSize = 4

// propertyBit is bit 5 of each tag byte; it carries the per-position property
// flag and is also the ASCII case bit.
const propertyBit = 0x20

// TypeTag is a 4-byte chunk type code such as "IHDR" or "RuSt".
//
// A TypeTag is a value type and is never modified after construction. Each
// byte's bit 5 encodes a property of the chunk:
//
//	byte 0: clear = critical,        set = ancillary
//	byte 1: clear = public,          set = private
//	byte 2: clear = reserved valid,  set = invalid
//	byte 3: clear = unsafe to copy,  set = safe to copy
type TypeTag struct {
	b [TagSize]byte
}

// TagFromBytes wraps raw tag bytes verbatim. It never fails: bytes read off
// the wire must survive a round trip even when they do not form a conforming
// tag. Use IsValid to check conformance.
func TagFromBytes(b [TagSize]byte) TypeTag {
	return TypeTag{b: b}
}

// ParseTag parses a textual tag. It fails with ErrInvalidTag unless s is
// exactly four ASCII letters.
func ParseTag(s string) (TypeTag, error) {
	if len(s) != TagSize {
		return TypeTag{}, formatErrorf(KindInvalidTag, "invalid chunk type %q: want %d bytes, got %d", s, TagSize, len(s))
	}

	var b [TagSize]byte
	copy(b[:], s)

	t := TypeTag{b: b}
	if !t.IsLetterValid() {
		return TypeTag{}, formatErrorf(KindInvalidTag, "invalid chunk type %q: bytes must be ASCII letters", s)
	}
	return t, nil
}

// MustParseTag is like ParseTag but panics on error. Intended for constants.
func MustParseTag(s string) TypeTag {
	t, err := ParseTag(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Bytes returns the raw tag bytes
func (t TypeTag) Bytes() [TagSize]byte {
	return t.b
}

// IsLetterValid reports whether all four bytes are ASCII letters
func (t TypeTag) IsLetterValid() bool {
	for _, c := range t.b {
		if !isASCIILetter(c) {
			return false
		}
	}
	return true
}

// IsReservedBitValid reports whether bit 5 of the third byte is clear
func (t TypeTag) IsReservedBitValid() bool {
	return t.b[2]&propertyBit == 0
}

// IsValid reports whether the tag is made of ASCII letters and has a clear
// reserved bit. Constructibility does not imply validity.
func (t TypeTag) IsValid() bool {
	return t.IsLetterValid() && t.IsReservedBitValid()
}

// IsCritical reports whether the chunk is critical (uppercase first byte)
func (t TypeTag) IsCritical() bool {
	return t.b[0]&propertyBit == 0
}

// IsPublic reports whether the chunk is public (uppercase second byte)
func (t TypeTag) IsPublic() bool {
	return t.b[1]&propertyBit == 0
}

// IsSafeToCopy reports whether editors may copy the chunk without
// understanding it (lowercase fourth byte)
func (t TypeTag) IsSafeToCopy() bool {
	return t.b[3]&propertyBit != 0
}

// Equal reports whether both tags hold identical bytes
func (t TypeTag) Equal(other TypeTag) bool {
	return t.b == other.b
}

// Text renders the tag as a string, failing with ErrNotUTF8 when the bytes
// are not valid UTF-8.
func (t TypeTag) Text() (string, error) {
	if !utf8.Valid(t.b[:]) {
		return "", formatErrorf(KindNotUTF8, "chunk type %x is not valid utf-8", t.b[:])
	}
	return string(t.b[:]), nil
}

// String implements fmt.Stringer. Tags that are not valid UTF-8 render as a
// quoted escape sequence instead.
func (t TypeTag) String() string {
	s, err := t.Text()
	if err != nil {
		return fmt.Sprintf("%q", t.b[:])
	}
	return s
}

func isASCIILetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
