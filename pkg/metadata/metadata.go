package metadata

import (
	"encoding/binary"

	"mbn/pkg/exception"
	"mbn/pkg/record"

	"github.com/yanun0323/errors"
)

// MetadataLength is the fixed size of the leading metadata block.
const MetadataLength = 100

// fixedLen is schema u8 + start i64 + end i64.
const fixedLen = 1 + 8 + 8

// Metadata describes the record stream of a container.
type Metadata struct {
	Schema   record.Schema
	Start    int64
	End      int64
	Mappings SymbolMap
}

// New builds metadata for a container.
func New(schema record.Schema, start, end int64, mappings SymbolMap) Metadata {
	return Metadata{Schema: schema, Start: start, End: end, Mappings: mappings}
}

// Equal reports whether both values describe the same container.
func (m Metadata) Equal(other Metadata) bool {
	return m.Schema == other.Schema &&
		m.Start == other.Start &&
		m.End == other.End &&
		m.Mappings.Equal(other.Mappings)
}

// EncodedLen returns the unpadded serialized size.
func (m Metadata) EncodedLen() int {
	return fixedLen + m.Mappings.EncodedLen()
}

// AppendBinary appends the unpadded serialized metadata.
func (m Metadata) AppendBinary(dst []byte) ([]byte, error) {
	dst = append(dst, uint8(m.Schema))
	dst = binary.LittleEndian.AppendUint64(dst, uint64(m.Start))
	dst = binary.LittleEndian.AppendUint64(dst, uint64(m.End))
	return m.Mappings.AppendBinary(dst)
}

// MarshalBinary returns the metadata block, zero-padded to MetadataLength.
// Metadata that does not fit the block is rejected rather than truncated.
func (m Metadata) MarshalBinary() ([]byte, error) {
	if n := m.EncodedLen(); n > MetadataLength {
		return nil, errors.Wrapf(exception.ErrMetadataTooLarge, "size %d, limit %d", n, MetadataLength)
	}
	block := make([]byte, 0, MetadataLength)
	block, err := m.AppendBinary(block)
	if err != nil {
		return nil, err
	}
	return block[:MetadataLength], nil
}

// UnmarshalBinary parses a metadata block. Anything that is not a well formed
// block (unknown schema, corrupt symbol map, non-zero padding) is rejected.
func (m *Metadata) UnmarshalBinary(src []byte) error {
	if len(src) < fixedLen {
		return errors.Wrapf(exception.ErrMetadataMalformed, "block length %d", len(src))
	}
	schema := record.Schema(src[0])
	if !schema.Valid() {
		return errors.Wrapf(exception.ErrUnknownSchema, "schema %d", src[0])
	}
	mappings, n, err := DecodeSymbolMap(src[fixedLen:])
	if err != nil {
		return err
	}
	for _, b := range src[fixedLen+n:] {
		if b != 0 {
			return errors.Wrap(exception.ErrMetadataMalformed, "non-zero padding")
		}
	}
	*m = Metadata{
		Schema:   schema,
		Start:    int64(binary.LittleEndian.Uint64(src[1:9])),
		End:      int64(binary.LittleEndian.Uint64(src[9:17])),
		Mappings: mappings,
	}
	return nil
}
