package codec

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a FormatError.
type ErrorKind int

const (
	KindInvalidTag ErrorKind = iota + 1
	KindTruncated
	KindLengthMismatch
	KindCrcMismatch
	KindNotUTF8
	KindPayloadTooLarge
)

// String returns a short label for the kind, suitable for metric labels.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidTag:
		return "invalid_tag"
	case KindTruncated:
		return "truncated"
	case KindLengthMismatch:
		return "length_mismatch"
	case KindCrcMismatch:
		return "crc_mismatch"
	case KindNotUTF8:
		return "not_utf8"
	case KindPayloadTooLarge:
		return "payload_too_large"
	default:
		return "unknown"
	}
}

// FormatError reports a malformed tag or record
type FormatError struct {
	Kind    ErrorKind
	Message string
}

func (e *FormatError) Error() string {
	return e.Message
}

// Is matches any FormatError of the same kind, so detailed errors
// compare equal to the package sentinels under errors.Is.
func (e *FormatError) Is(target error) bool {
	t, ok := target.(*FormatError)
	return ok && t.Kind == e.Kind
}

// Errors
var (
	ErrInvalidTag      = &FormatError{KindInvalidTag, "invalid chunk type"}
	ErrTruncated       = &FormatError{KindTruncated, "chunk data truncated"}
	ErrLengthMismatch  = &FormatError{KindLengthMismatch, "chunk length mismatch"}
	ErrCrcMismatch     = &FormatError{KindCrcMismatch, "chunk crc mismatch"}
	ErrNotUTF8         = &FormatError{KindNotUTF8, "chunk data is not valid utf-8"}
	ErrPayloadTooLarge = &FormatError{KindPayloadTooLarge, "chunk payload too large"}
)

func formatErrorf(kind ErrorKind, format string, args ...interface{}) *FormatError {
	return &FormatError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first FormatError in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
