package packet

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a decode failure
type ErrorKind uint8

const (
	// KindTooShort means the buffer cannot hold a packet header
	KindTooShort ErrorKind = iota + 1
	// KindLengthMismatch means the header length cannot be satisfied by the buffer
	KindLengthMismatch
	// KindTruncatedHeader means fewer than two bytes remain for an attribute header
	KindTruncatedHeader
	// KindTruncatedAttribute is KindTruncatedHeader reported at packet level with its offset
	KindTruncatedAttribute
	// KindInvalidAttributeLength means an attribute length is below 2 or overruns the packet
	KindInvalidAttributeLength
)

// Sentinels for errors.Is matching against a *ProtocolError
var (
	ErrTooShort               = errors.New("packet too short")
	ErrLengthMismatch         = errors.New("packet length mismatch")
	ErrTruncatedHeader        = errors.New("truncated attribute header")
	ErrTruncatedAttribute     = errors.New("truncated attribute")
	ErrInvalidAttributeLength = errors.New("invalid attribute length")
)

// ProtocolError describes malformed wire data.
// Offset and Length are meaningful for attribute errors only.
type ProtocolError struct {
	Kind   ErrorKind
	Offset int
	Length int
	Got    int
}

func (e *ProtocolError) Error() string {
	switch e.Kind {
	case KindTooShort:
		return fmt.Sprintf("packet too short: %d bytes", e.Got)
	case KindLengthMismatch:
		return fmt.Sprintf("packet length mismatch: header says %d, got %d bytes", e.Length, e.Got)
	case KindTruncatedHeader:
		return fmt.Sprintf("truncated attribute header at offset %d", e.Offset)
	case KindTruncatedAttribute:
		return fmt.Sprintf("truncated attribute at offset %d", e.Offset)
	case KindInvalidAttributeLength:
		return fmt.Sprintf("invalid attribute length at offset %d: len = %d", e.Offset, e.Length)
	default:
		return "malformed packet"
	}
}

// Is reports whether target is the sentinel for this error's kind
func (e *ProtocolError) Is(target error) bool {
	switch e.Kind {
	case KindTooShort:
		return target == ErrTooShort
	case KindLengthMismatch:
		return target == ErrLengthMismatch
	case KindTruncatedHeader:
		return target == ErrTruncatedHeader
	case KindTruncatedAttribute:
		return target == ErrTruncatedAttribute
	case KindInvalidAttributeLength:
		return target == ErrInvalidAttributeLength
	}
	return false
}
