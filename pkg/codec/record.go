package codec

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"math"
	"unicode/utf8"
)

const (
	// LengthSize is the size of the big-endian length prefix
	LengthSize = 4
	// ChecksumSize is the size of the big-endian CRC trailer
	ChecksumSize = 4
	// HeaderSize covers the length prefix and the type tag
	HeaderSize = LengthSize + TagSize
	// MinRecordSize is the encoded size of a record with an empty payload
	MinRecordSize = HeaderSize + ChecksumSize
)

// invalidRecordText is what String renders for payloads that are not UTF-8
const invalidRecordText = "Invalid chunk"

// Record is a single chunk: a length, a type tag, an opaque payload and a
// CRC-32 over tag and payload. The checksum always matches the tag and
// payload held by the record.
type Record struct {
	length   uint32
	tag      TypeTag
	payload  []byte
	checksum uint32
}

// NewRecord builds a record and computes its checksum. The payload is copied.
// It panics if the payload does not fit in a 32-bit length.
func NewRecord(tag TypeTag, payload []byte) *Record {
	if uint64(len(payload)) > math.MaxUint32 {
		panic("chunk payload too large")
	}

	data := make([]byte, len(payload))
	copy(data, payload)

	return &Record{
		length:   uint32(len(data)),
		tag:      tag,
		payload:  data,
		checksum: Checksum(tag, data),
	}
}

// Checksum computes the CRC-32 (IEEE) over the tag bytes followed by payload
func Checksum(tag TypeTag, payload []byte) uint32 {
	crc := crc32.NewIEEE()
	b := tag.Bytes()
	// hash.Hash writes never fail
	_, _ = crc.Write(b[:])
	_, _ = crc.Write(payload)
	return crc.Sum32()
}

// ParseRecord decodes a single serialized record occupying all of data.
//
// The declared length and checksum are never trusted: the payload span is
// measured and the checksum recomputed. Tags that are not ASCII letters are
// rejected before length or checksum are examined; the reserved bit is left
// for the caller to check through Tag().IsValid().
func ParseRecord(data []byte) (*Record, error) {
	if len(data) < MinRecordSize {
		return nil, formatErrorf(KindTruncated, "chunk data too short: %d < %d bytes", len(data), MinRecordSize)
	}

	declared := binary.BigEndian.Uint32(data[0:LengthSize])

	var b [TagSize]byte
	copy(b[:], data[LengthSize:HeaderSize])
	tag := TagFromBytes(b)
	if !tag.IsLetterValid() {
		return nil, formatErrorf(KindInvalidTag, "invalid chunk type %q: bytes must be ASCII letters", b[:])
	}

	required := uint64(MinRecordSize) + uint64(declared)
	if uint64(len(data)) < required {
		return nil, formatErrorf(KindTruncated, "chunk data too short for declared length %d: %d < %d bytes", declared, len(data), required)
	}

	payloadEnd := len(data) - ChecksumSize
	payload := data[HeaderSize:payloadEnd]
	if uint64(len(payload)) != uint64(declared) {
		return nil, formatErrorf(KindLengthMismatch, "chunk length mismatch: declared %d, actual %d", declared, len(payload))
	}

	r := NewRecord(tag, payload)

	wire := binary.BigEndian.Uint32(data[payloadEnd:])
	if wire != r.checksum {
		return nil, formatErrorf(KindCrcMismatch, "chunk crc mismatch: declared 0x%08x, computed 0x%08x", wire, r.checksum)
	}

	return r, nil
}

// Length returns the payload length in bytes
func (r *Record) Length() uint32 {
	return r.length
}

// Tag returns the chunk type
func (r *Record) Tag() TypeTag {
	return r.tag
}

// Payload returns the payload. Callers must not modify it.
func (r *Record) Payload() []byte {
	return r.payload
}

// Checksum returns the CRC-32 over tag and payload
func (r *Record) Checksum() uint32 {
	return r.checksum
}

// PayloadText returns the payload as a string, or ErrNotUTF8
func (r *Record) PayloadText() (string, error) {
	if !utf8.Valid(r.payload) {
		return "", formatErrorf(KindNotUTF8, "chunk %s: data is not valid utf-8", r.tag)
	}
	return string(r.payload), nil
}

// Size returns the encoded size of the record
func (r *Record) Size() int {
	return MinRecordSize + len(r.payload)
}

// Serialize encodes the record as
// [length BE(4)][tag(4)][payload][crc BE(4)]. It is the inverse of ParseRecord.
func (r *Record) Serialize() []byte {
	buf := make([]byte, r.Size())
	r.put(buf)
	return buf
}

// AppendTo appends the encoded record to dst and returns the extended slice
func (r *Record) AppendTo(dst []byte) []byte {
	n := len(dst)
	dst = append(dst, make([]byte, r.Size())...)
	r.put(dst[n:])
	return dst
}

func (r *Record) put(buf []byte) {
	tag := r.tag.Bytes()

	binary.BigEndian.PutUint32(buf[0:], r.length)
	copy(buf[LengthSize:], tag[:])
	copy(buf[HeaderSize:], r.payload)
	binary.BigEndian.PutUint32(buf[HeaderSize+len(r.payload):], r.checksum)
}

// Equal reports whether both records hold the same tag, payload and checksum
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.tag.Equal(other.tag) &&
		r.length == other.length &&
		r.checksum == other.checksum &&
		bytes.Equal(r.payload, other.payload)
}

// String renders the payload as text, or a fixed marker when the payload is
// not valid UTF-8.
func (r *Record) String() string {
	s, err := r.PayloadText()
	if err != nil {
		return invalidRecordText
	}
	return s
}
