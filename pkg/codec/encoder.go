package codec

import (
	"bytes"
	"io"
	"os"

	"mbn/pkg/metadata"
	"mbn/pkg/record"

	"github.com/yanun0323/errors"
)

// RecordEncoder writes record frames. Records are written in their
// fixed byte layout; the only failures are I/O errors.
type RecordEncoder struct {
	w   io.Writer
	buf []byte
}

func NewRecordEncoder(w io.Writer) *RecordEncoder {
	return &RecordEncoder{
		w:   w,
		buf: make([]byte, 0, record.Mbp1Size),
	}
}

func (e *RecordEncoder) EncodeRecord(rec record.Record) error {
	e.buf = rec.AppendBytes(e.buf[:0])
	if _, err := e.w.Write(e.buf); err != nil {
		return errors.Wrap(err, "encode record")
	}
	return nil
}

// EncodeRef writes the borrowed frame bytes unchanged.
func (e *RecordEncoder) EncodeRef(ref record.RecordRef) error {
	if _, err := e.w.Write(ref.Bytes()); err != nil {
		return errors.Wrap(err, "encode record")
	}
	return nil
}

// EncodeRecords writes recs in order and flushes once at the end.
func (e *RecordEncoder) EncodeRecords(recs []record.RecordEnum) error {
	for _, rec := range recs {
		if err := e.EncodeRecord(rec); err != nil {
			return err
		}
	}
	return e.Flush()
}

// Flush flushes the writer when it buffers.
func (e *RecordEncoder) Flush() error {
	return flush(e.w)
}

// Encoder writes a container: metadata block first, then frames.
type Encoder struct {
	meta    *MetadataEncoder
	records *RecordEncoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		meta:    NewMetadataEncoder(w),
		records: NewRecordEncoder(w),
	}
}

func (e *Encoder) EncodeMetadata(meta *metadata.Metadata) error {
	return e.meta.EncodeMetadata(meta)
}

func (e *Encoder) EncodeRecord(rec record.Record) error {
	return e.records.EncodeRecord(rec)
}

func (e *Encoder) EncodeRecords(recs []record.RecordEnum) error {
	return e.records.EncodeRecords(recs)
}

// Encode writes meta, when non-nil, then recs.
func (e *Encoder) Encode(meta *metadata.Metadata, recs []record.RecordEnum) error {
	if meta != nil {
		if err := e.EncodeMetadata(meta); err != nil {
			return err
		}
	}
	return e.EncodeRecords(recs)
}

func (e *Encoder) Flush() error {
	return e.records.Flush()
}

// EncodeToBytes returns the container bytes for meta and recs.
func EncodeToBytes(meta *metadata.Metadata, recs []record.RecordEnum) ([]byte, error) {
	size := 0
	if meta != nil {
		size = metadata.MetadataLength
	}
	for _, rec := range recs {
		size += rec.Size()
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))
	if err := NewEncoder(buf).Encode(meta, recs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes data to path, appending to an existing file when appendMode is set
// and truncating it otherwise.
func WriteFile(path string, data []byte, appendMode bool) error {
	flag := os.O_WRONLY | os.O_CREATE
	if appendMode {
		flag |= os.O_APPEND
	} else {
		flag |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return errors.Wrap(err, "open container")
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return errors.Wrap(err, "write container")
	}
	return file.Close()
}
