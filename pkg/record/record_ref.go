package record

// RecordRef is a borrowed view over exactly one frame's bytes.
//
// A RecordRef never copies or owns its bytes; it is valid only as long as the
// buffer it was built from is left untouched. For refs produced by a decoder that
// is until the next decode call.
type RecordRef struct {
	b []byte
}

// NewRecordRef wraps b without validation. The caller guarantees b holds one complete frame.
func NewRecordRef(b []byte) RecordRef {
	return RecordRef{b: b}
}

// RefOf returns a ref over a freshly encoded copy of rec.
func RefOf(rec Record) RecordRef {
	return RecordRef{b: rec.AppendBytes(make([]byte, 0, rec.Size()))}
}

// Header decodes the common header. It returns the zero header if the span is too short.
func (r RecordRef) Header() RecordHeader {
	if len(r.b) < HeaderSize {
		return RecordHeader{}
	}
	return decodeHeader(r.b)
}

// RType returns the type tag of the span.
func (r RecordRef) RType() RType {
	if len(r.b) < 2 {
		return 0
	}
	return RType(r.b[1])
}

// Bytes returns the borrowed frame bytes.
func (r RecordRef) Bytes() []byte {
	return r.b
}

// Len returns the frame length in bytes.
func (r RecordRef) Len() int {
	return len(r.b)
}

// IsZero reports whether the ref wraps no bytes.
func (r RecordRef) IsZero() bool {
	return len(r.b) == 0
}

// As returns the record typed as T when the span is tagged with T's rtype and
// holds enough bytes for T. It never reads out of bounds.
func As[T RecordEnum](r RecordRef) (T, bool) {
	var zero T
	if r.RType() != zero.RType() || len(r.b) < zero.Size() {
		return zero, false
	}
	l, ok := layoutOf(zero.RType())
	if !ok {
		return zero, false
	}
	rec, ok := l.decode(r.b).(T)
	return rec, ok
}
