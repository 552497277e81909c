package codec

import (
	"context"
	"io"
	"iter"

	"mbn/pkg/metadata"
	"mbn/pkg/record"
)

// AsyncDecoder has the Decoder contract with every read bounded by a context.
// Reads are its only suspension points; cancellation is observed before each
// one and surfaces as the context error.
type AsyncDecoder struct {
	frames *frameReader
	meta   *metadata.Metadata
	done   bool
}

// NewAsyncDecoder reads the optional metadata block under ctx.
func NewAsyncDecoder(ctx context.Context, r io.Reader, opts ...DecoderOption) (*AsyncDecoder, error) {
	o := buildOptions(opts)
	src := newSuspendingSource(r, o.bufferSize)
	meta, err := decodeMetadata(ctx, src)
	if err != nil {
		return nil, err
	}
	return &AsyncDecoder{
		frames: newFrameReader(src, o),
		meta:   meta,
	}, nil
}

func (d *AsyncDecoder) Metadata() *metadata.Metadata {
	return d.meta
}

func (d *AsyncDecoder) DecodeRef(ctx context.Context) (record.RecordRef, error) {
	return d.frames.next(ctx)
}

func (d *AsyncDecoder) Decode(ctx context.Context) (record.RecordEnum, error) {
	return decodeOwned(ctx, d.frames)
}

func (d *AsyncDecoder) DecodeAll(ctx context.Context) ([]record.RecordEnum, error) {
	return drain(ctx, d.frames)
}

// Stream yields records until the end of stream, the first failure, or ctx
// cancellation. Like DecodeIterator it is single-pass.
func (d *AsyncDecoder) Stream(ctx context.Context) iter.Seq2[record.RecordEnum, error] {
	return sequence(ctx, d.frames, &d.done)
}
