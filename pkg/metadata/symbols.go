package metadata

import (
	"encoding/binary"
	"maps"
	"slices"
	"unicode/utf8"

	"mbn/pkg/exception"

	"github.com/yanun0323/errors"
)

// Instrument describes a tradable instrument known to a data source.
type Instrument struct {
	Ticker       string
	Name         string
	InstrumentID *uint32
}

// NewInstrument creates an instrument descriptor. id may be nil when unassigned.
func NewInstrument(ticker, name string, id *uint32) Instrument {
	return Instrument{Ticker: ticker, Name: name, InstrumentID: id}
}

// SymbolMap maps instrument ids to tickers.
type SymbolMap struct {
	m map[uint32]string
}

// NewSymbolMap creates an empty symbol map.
func NewSymbolMap() SymbolMap {
	return SymbolMap{m: make(map[uint32]string)}
}

// Add maps id to ticker, replacing any previous ticker.
func (s *SymbolMap) Add(ticker string, id uint32) {
	if s.m == nil {
		s.m = make(map[uint32]string)
	}
	s.m[id] = ticker
}

// Ticker returns the ticker for id.
func (s SymbolMap) Ticker(id uint32) (string, bool) {
	ticker, ok := s.m[id]
	return ticker, ok
}

// Len returns the number of mappings.
func (s SymbolMap) Len() int {
	return len(s.m)
}

// IDs returns the instrument ids in ascending order.
func (s SymbolMap) IDs() []uint32 {
	return slices.Sorted(maps.Keys(s.m))
}

// Map returns a copy of the mappings.
func (s SymbolMap) Map() map[uint32]string {
	return maps.Clone(s.m)
}

// Equal reports whether both maps hold the same pairs.
func (s SymbolMap) Equal(other SymbolMap) bool {
	return maps.Equal(s.m, other.m)
}

// EncodedLen returns the serialized size of the map.
func (s SymbolMap) EncodedLen() int {
	n := 4
	for _, ticker := range s.m {
		n += 8 + len(ticker)
	}
	return n
}

// AppendBinary appends count:u32 followed by (id:u32, len:u32, ticker) entries.
// Entries are written in ascending id order so output is deterministic.
func (s SymbolMap) AppendBinary(dst []byte) ([]byte, error) {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(s.m)))
	for _, id := range s.IDs() {
		ticker := s.m[id]
		dst = binary.LittleEndian.AppendUint32(dst, id)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(ticker)))
		dst = append(dst, ticker...)
	}
	return dst, nil
}

// DecodeSymbolMap parses a serialized map from the start of src and returns the bytes consumed.
func DecodeSymbolMap(src []byte) (SymbolMap, int, error) {
	if len(src) < 4 {
		return SymbolMap{}, 0, errors.Wrap(exception.ErrSymbolMapCorrupt, "missing count")
	}
	count := binary.LittleEndian.Uint32(src[0:4])
	offset := 4
	// every entry needs at least 8 bytes, which bounds the allocation below.
	if uint64(count)*8 > uint64(len(src)-offset) {
		return SymbolMap{}, 0, errors.Wrapf(exception.ErrSymbolMapCorrupt, "count %d exceeds buffer", count)
	}

	m := make(map[uint32]string, count)
	for i := uint32(0); i < count; i++ {
		if len(src)-offset < 8 {
			return SymbolMap{}, 0, errors.Wrapf(exception.ErrSymbolMapCorrupt, "entry %d truncated", i)
		}
		id := binary.LittleEndian.Uint32(src[offset : offset+4])
		n := binary.LittleEndian.Uint32(src[offset+4 : offset+8])
		offset += 8
		if uint64(n) > uint64(len(src)-offset) {
			return SymbolMap{}, 0, errors.Wrapf(exception.ErrSymbolMapCorrupt, "ticker %d length %d exceeds buffer", i, n)
		}
		ticker := src[offset : offset+int(n)]
		if !utf8.Valid(ticker) {
			return SymbolMap{}, 0, errors.Wrapf(exception.ErrSymbolMapCorrupt, "ticker %d is not utf-8", i)
		}
		m[id] = string(ticker)
		offset += int(n)
	}
	return SymbolMap{m: m}, offset, nil
}
