package record

import (
	"encoding/binary"
)

const (
	// LengthMultiplier is the unit of the header length byte.
	LengthMultiplier = 4

	// HeaderSize is the encoded size of RecordHeader.
	HeaderSize = 16

	// PriceScale is the fixed-point scale of every price field (1e-9 units).
	PriceScale int64 = 1_000_000_000
)

// RecordHeader is the common prefix of every record.
//
// Layout: length u8 @0, rtype u8 @1, reserved u16 @2, instrument_id u32 @4, ts_event u64 @8.
type RecordHeader struct {
	Length       uint8
	RType        RType
	InstrumentID uint32
	TsEvent      uint64
}

// NewHeader builds a header sized and tagged for the record type T.
func NewHeader[T RecordEnum](instrumentID uint32, tsEvent uint64) RecordHeader {
	var zero T
	return RecordHeader{
		Length:       uint8(zero.Size() / LengthMultiplier),
		RType:        zero.RType(),
		InstrumentID: instrumentID,
		TsEvent:      tsEvent,
	}
}

// RecordSize returns the frame size in bytes declared by the header.
func (h RecordHeader) RecordSize() int {
	return int(h.Length) * LengthMultiplier
}

func putHeader(dst []byte, h RecordHeader) {
	_ = dst[HeaderSize-1]
	dst[0] = h.Length
	dst[1] = uint8(h.RType)
	dst[2] = 0
	dst[3] = 0
	binary.LittleEndian.PutUint32(dst[4:8], h.InstrumentID)
	binary.LittleEndian.PutUint64(dst[8:16], h.TsEvent)
}

func decodeHeader(src []byte) RecordHeader {
	_ = src[HeaderSize-1]
	return RecordHeader{
		Length:       src[0],
		RType:        RType(src[1]),
		InstrumentID: binary.LittleEndian.Uint32(src[4:8]),
		TsEvent:      binary.LittleEndian.Uint64(src[8:16]),
	}
}

// grow extends dst by n zeroed bytes and returns the extended slice and the new tail.
func grow(dst []byte, n int) ([]byte, []byte) {
	start := len(dst)
	if cap(dst)-start < n {
		next := make([]byte, start, start+n)
		copy(next, dst)
		dst = next
	}
	dst = dst[:start+n]
	tail := dst[start:]
	clear(tail)
	return dst, tail
}
