package exception

import (
	"fmt"
	"io"

	"github.com/yanun0323/errors"
)

// Codec errors
var (
	// ErrMalformedFrame is returned when a frame cannot hold the record it claims to carry.
	ErrMalformedFrame = errors.New("codec: malformed frame")

	// ErrTruncatedFrame is returned when the source ends inside a frame.
	ErrTruncatedFrame = errors.New("codec: truncated frame")

	// ErrUnsupportedRecordType is returned when an rtype byte has no record variant.
	ErrUnsupportedRecordType = errors.New("codec: unsupported record type")

	// ErrFrameTooLarge is returned when a frame exceeds the configured maximum size.
	ErrFrameTooLarge = errors.New("codec: frame too large")
)

// Metadata errors
var (
	ErrMetadataTooLarge  = errors.New("metadata: serialized size exceeds block length")
	ErrMetadataMalformed = errors.New("metadata: malformed block")
	ErrUnknownSchema     = errors.New("metadata: unknown schema")
	ErrSymbolMapCorrupt  = errors.New("metadata: corrupt symbol map")
)

// UnsupportedRecordTypeError names the rtype byte that could not be converted.
type UnsupportedRecordTypeError struct {
	RType uint8
}

func (e *UnsupportedRecordTypeError) Error() string {
	return fmt.Sprintf("%s: rtype 0x%02x", ErrUnsupportedRecordType.Error(), e.RType)
}

func (e *UnsupportedRecordTypeError) Unwrap() error {
	return ErrUnsupportedRecordType
}

// MalformedFrameError describes a frame whose length does not fit its content.
type MalformedFrameError struct {
	Length int
	Want   int
}

func (e *MalformedFrameError) Error() string {
	if e.Want > 0 {
		return fmt.Sprintf("%s: record length %d, expected %d", ErrMalformedFrame.Error(), e.Length, e.Want)
	}
	return fmt.Sprintf("%s: record length %d shorter than header", ErrMalformedFrame.Error(), e.Length)
}

func (e *MalformedFrameError) Unwrap() error {
	return ErrMalformedFrame
}

// TruncatedFrameError reports a source that ended inside a frame.
type TruncatedFrameError struct {
	Want int
	Got  int
}

func (e *TruncatedFrameError) Error() string {
	return fmt.Sprintf("%s: got %d of %d bytes", ErrTruncatedFrame.Error(), e.Got, e.Want)
}

func (e *TruncatedFrameError) Unwrap() []error {
	return []error{ErrTruncatedFrame, io.ErrUnexpectedEOF}
}
