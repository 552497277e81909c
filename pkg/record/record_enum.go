package record

import (
	"encoding/binary"

	"mbn/pkg/exception"
)

// FromRef validates the tag and length of ref and copies it into an owned record.
func FromRef(ref RecordRef) (RecordEnum, error) {
	l, err := checkRef(ref)
	if err != nil {
		return nil, err
	}
	return l.decode(ref.b), nil
}

func checkRef(ref RecordRef) (*layout, error) {
	l, ok := layoutOf(ref.RType())
	if !ok {
		return nil, &exception.UnsupportedRecordTypeError{RType: uint8(ref.RType())}
	}
	if ref.Len() != l.size {
		return nil, &exception.MalformedFrameError{Length: ref.Len(), Want: l.size}
	}
	return l, nil
}

// RecordEnumRef is the borrowed twin of RecordEnum. It serves the Record
// capabilities by reading fields straight from the frame bytes. The zero
// value holds no frame: Size, Price and Timestamp return zero and ToOwned nil.
type RecordEnumRef struct {
	ref RecordRef
	l   *layout
}

// NewRecordEnumRef validates ref the same way FromRef does, without copying.
func NewRecordEnumRef(ref RecordRef) (RecordEnumRef, error) {
	l, err := checkRef(ref)
	if err != nil {
		return RecordEnumRef{}, err
	}
	return RecordEnumRef{ref: ref, l: l}, nil
}

func (r RecordEnumRef) Header() RecordHeader { return r.ref.Header() }
func (r RecordEnumRef) RType() RType         { return r.ref.RType() }
func (r RecordEnumRef) Size() int {
	if r.l == nil {
		return 0
	}
	return r.l.size
}

func (r RecordEnumRef) Price() int64 {
	if r.l == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(r.ref.b[r.l.priceOffset:]))
}

func (r RecordEnumRef) Timestamp() uint64 {
	if r.l == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(r.ref.b[r.l.tsOffset:])
}

func (r RecordEnumRef) AppendBytes(dst []byte) []byte {
	return append(dst, r.ref.b...)
}

// Ref returns the underlying frame view.
func (r RecordEnumRef) Ref() RecordRef {
	return r.ref
}

// ToOwned copies the borrowed record into an owned one.
func (r RecordEnumRef) ToOwned() RecordEnum {
	if r.l == nil {
		return nil
	}
	return r.l.decode(r.ref.b)
}
