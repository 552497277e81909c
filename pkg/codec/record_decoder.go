package codec

import (
	"context"
	"io"
	"iter"

	"mbn/pkg/record"
)

// RecordDecoder reads bare record frames, with no metadata block in front.
type RecordDecoder struct {
	frames *frameReader
	done   bool
}

func NewRecordDecoder(r io.Reader, opts ...DecoderOption) *RecordDecoder {
	o := buildOptions(opts)
	return &RecordDecoder{frames: newFrameReader(newBlockingSource(r, o.bufferSize), o)}
}

// DecodeRef returns the next frame as a borrowed view, valid until the next call.
// It returns io.EOF at a clean end of stream.
func (d *RecordDecoder) DecodeRef() (record.RecordRef, error) {
	return d.frames.next(context.Background())
}

// Decode returns the next frame as an owned record.
func (d *RecordDecoder) Decode() (record.RecordEnum, error) {
	return decodeOwned(context.Background(), d.frames)
}

// DecodeToOwned drains the stream. It stops at the first failure.
func (d *RecordDecoder) DecodeToOwned() ([]record.RecordEnum, error) {
	return drain(context.Background(), d.frames)
}

// DecodeIterator yields one owned record per step. A failure is yielded once
// and ends the sequence. The sequence is single-pass: once it has ended,
// ranging over it again yields nothing.
func (d *RecordDecoder) DecodeIterator() iter.Seq2[record.RecordEnum, error] {
	return sequence(context.Background(), d.frames, &d.done)
}

func decodeOwned(ctx context.Context, frames *frameReader) (record.RecordEnum, error) {
	ref, err := frames.next(ctx)
	if err != nil {
		return nil, err
	}
	return record.FromRef(ref)
}

func drain(ctx context.Context, frames *frameReader) ([]record.RecordEnum, error) {
	var out []record.RecordEnum
	for {
		rec, err := decodeOwned(ctx, frames)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

func sequence(ctx context.Context, frames *frameReader, done *bool) iter.Seq2[record.RecordEnum, error] {
	return func(yield func(record.RecordEnum, error) bool) {
		for !*done {
			rec, err := decodeOwned(ctx, frames)
			if err == io.EOF {
				*done = true
				return
			}
			if err != nil {
				*done = true
				yield(nil, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
