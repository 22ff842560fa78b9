package codec

import (
	"encoding/binary"
	"math"
)

// DefaultMaxPayloadSize bounds payloads accepted by a RecordCodec. PNG caps
// chunk lengths at 2^31-1.
const DefaultMaxPayloadSize = math.MaxInt32

// RecordCodec encodes and decodes records under a size limit and tag policy.
// Unlike NewRecord, it reports oversized payloads as errors.
type RecordCodec struct {
	maxPayloadSize  uint32
	requireValidTag bool
}

// Option configures a RecordCodec
type Option func(*RecordCodec)

// WithMaxPayloadSize sets the largest payload the codec accepts
func WithMaxPayloadSize(n uint32) Option {
	return func(c *RecordCodec) {
		c.maxPayloadSize = n
	}
}

// WithRequireValidTag makes the codec reject tags whose reserved bit is set,
// in addition to tags that are not ASCII letters.
func WithRequireValidTag(require bool) Option {
	return func(c *RecordCodec) {
		c.requireValidTag = require
	}
}

// NewRecordCodec creates a new record codec instance
func NewRecordCodec(opts ...Option) *RecordCodec {
	c := &RecordCodec{
		maxPayloadSize: DefaultMaxPayloadSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxPayloadSize returns the configured payload limit
func (c *RecordCodec) MaxPayloadSize() uint32 {
	return c.maxPayloadSize
}

// NewRecord validates tag and payload against the codec policy and builds
// a record.
func (c *RecordCodec) NewRecord(tag TypeTag, payload []byte) (*Record, error) {
	if err := c.checkTag(tag); err != nil {
		return nil, err
	}
	if uint64(len(payload)) > uint64(c.maxPayloadSize) {
		return nil, formatErrorf(KindPayloadTooLarge, "chunk payload too large: %d > %d bytes", len(payload), c.maxPayloadSize)
	}
	return NewRecord(tag, payload), nil
}

// Encode serializes a tag and payload into the wire format
func (c *RecordCodec) Encode(tag TypeTag, payload []byte) ([]byte, error) {
	r, err := c.NewRecord(tag, payload)
	if err != nil {
		return nil, err
	}
	return r.Serialize(), nil
}

// Decode parses a serialized record and applies the codec policy. The
// declared length is checked against the limit before anything else is read.
func (c *RecordCodec) Decode(data []byte) (*Record, error) {
	if len(data) >= LengthSize {
		if declared := binary.BigEndian.Uint32(data); declared > c.maxPayloadSize {
			return nil, formatErrorf(KindPayloadTooLarge, "declared chunk length too large: %d > %d bytes", declared, c.maxPayloadSize)
		}
	}

	r, err := ParseRecord(data)
	if err != nil {
		return nil, err
	}
	if err := c.checkTag(r.Tag()); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *RecordCodec) checkTag(tag TypeTag) error {
	if !tag.IsLetterValid() {
		return formatErrorf(KindInvalidTag, "invalid chunk type %s: bytes must be ASCII letters", tag)
	}
	if c.requireValidTag && !tag.IsReservedBitValid() {
		return formatErrorf(KindInvalidTag, "invalid chunk type %s: reserved bit is set", tag)
	}
	return nil
}
