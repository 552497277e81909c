package codec

import (
	"bytes"
	"context"
	"io"
	"iter"
	"os"

	"mbn/pkg/metadata"
	"mbn/pkg/record"

	"github.com/yanun0323/errors"
)

// Decoder reads a container: an optional metadata block followed by frames.
// The metadata block is read once, at construction.
type Decoder struct {
	frames *frameReader
	meta   *metadata.Metadata
	closer io.Closer
	done   bool
}

func NewDecoder(r io.Reader, opts ...DecoderOption) (*Decoder, error) {
	o := buildOptions(opts)
	src := newBlockingSource(r, o.bufferSize)
	meta, err := decodeMetadata(context.Background(), src)
	if err != nil {
		return nil, err
	}
	return &Decoder{
		frames: newFrameReader(src, o),
		meta:   meta,
	}, nil
}

// NewDecoderFromFile opens path and decodes it. Close releases the file.
func NewDecoderFromFile(path string, opts ...DecoderOption) (*Decoder, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open container")
	}
	dec, err := NewDecoder(file, opts...)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	dec.closer = file
	return dec, nil
}

func NewDecoderFromBytes(b []byte, opts ...DecoderOption) (*Decoder, error) {
	return NewDecoder(bytes.NewReader(b), opts...)
}

// Metadata returns the leading metadata block, or nil when the container has none.
func (d *Decoder) Metadata() *metadata.Metadata {
	return d.meta
}

// DecodeRef returns the next frame as a borrowed view, valid until the next call.
func (d *Decoder) DecodeRef() (record.RecordRef, error) {
	return d.frames.next(context.Background())
}

func (d *Decoder) Decode() (record.RecordEnum, error) {
	return decodeOwned(context.Background(), d.frames)
}

// DecodeAll drains the remaining records.
func (d *Decoder) DecodeAll() ([]record.RecordEnum, error) {
	return drain(context.Background(), d.frames)
}

// DecodeIterator is single-pass; see RecordDecoder.DecodeIterator.
func (d *Decoder) DecodeIterator() iter.Seq2[record.RecordEnum, error] {
	return sequence(context.Background(), d.frames, &d.done)
}

func (d *Decoder) Close() error {
	if d.closer == nil {
		return nil
	}
	err := d.closer.Close()
	d.closer = nil
	return err
}
