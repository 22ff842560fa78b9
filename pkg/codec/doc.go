// Package codec provides chunk serialization and deserialization for pngchunk.
//
// The codec package implements the length-prefixed, type-tagged, CRC-protected
// chunk format used by PNG files. Payload bytes are opaque to this package.
//
// # Chunk Format
//
// Chunks are serialized in a binary format with the following structure:
//
//	[Length(4)][Type(4)][Data(Length)][CRC32(4)]
//
// Fields:
//   - Length: 32-bit unsigned payload length in bytes (big-endian)
//   - Type: 4 ASCII letters naming the chunk
//   - Data: Length bytes of payload
//   - CRC32: CRC-32 (IEEE) over Type and Data (big-endian)
//
// The total chunk size is: 12 bytes + Length
//
// # Chunk Types
//
// Bit 5 of each type byte (the ASCII case bit) carries a property:
//
//	byte 0  uppercase = critical    lowercase = ancillary
//	byte 1  uppercase = public      lowercase = private
//	byte 2  uppercase = required    lowercase = invalid (reserved)
//	byte 3  uppercase = unsafe      lowercase = safe to copy
//
// TagFromBytes accepts any 4 bytes so that tags read off the wire round-trip
// unchanged; ParseTag only accepts ASCII letters. IsValid is the conformance
// check.
//
// # Usage
//
//	tag, err := codec.ParseTag("RuSt")
//	if err != nil {
//	    return err
//	}
//
//	encoded := codec.NewRecord(tag, []byte("hello")).Serialize()
//
//	record, err := codec.ParseRecord(encoded)
//	if err != nil {
//	    return err // truncated, bad tag, length or CRC mismatch
//	}
//
// # Error Handling
//
// Every failure is a *FormatError whose Kind identifies it. Use errors.Is
// against ErrInvalidTag, ErrTruncated, ErrLengthMismatch, ErrCrcMismatch,
// ErrNotUTF8 or ErrPayloadTooLarge. Nothing in this package panics on
// malformed input.
//
// # Thread Safety
//
// TypeTag and Record values are immutable after creation and safe to share
// between goroutines. RecordCodec instances are safe for concurrent use.
package codec
