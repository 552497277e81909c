package codec

import (
	"bufio"
	"context"
	"io"

	"mbn/pkg/exception"
	"mbn/pkg/metadata"

	"github.com/yanun0323/errors"
)

// MetadataDecoder reads the optional metadata block at the head of a stream.
type MetadataDecoder struct {
	src source
}

// NewMetadataDecoder wraps r. Bytes left unread by Decode stay in the
// decoder's buffer, so continue reading through the same decoder value
// or use Decoder, which shares one buffer for both steps.
func NewMetadataDecoder(r io.Reader) *MetadataDecoder {
	return &MetadataDecoder{src: newBlockingSource(r, defaultBufferSize)}
}

// Decode returns the metadata block, or nil when the stream does not start
// with one. A missing block is not an error and consumes nothing.
func (d *MetadataDecoder) Decode() (*metadata.Metadata, error) {
	return decodeMetadata(context.Background(), d.src)
}

// Reader returns the buffered reader positioned after whatever Decode consumed.
func (d *MetadataDecoder) Reader() *bufio.Reader {
	return d.src.(*blockingSource).r
}

func decodeMetadata(ctx context.Context, src source) (*metadata.Metadata, error) {
	block, err := src.peek(ctx, metadata.MetadataLength)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, nil
		}
		return nil, errors.Wrap(err, "decode metadata")
	}

	var meta metadata.Metadata
	if err := meta.UnmarshalBinary(block); err != nil {
		return nil, nil
	}
	if err := src.discard(ctx, metadata.MetadataLength); err != nil {
		return nil, errors.Wrap(err, "decode metadata")
	}
	return &meta, nil
}

// MetadataEncoder writes a metadata block.
type MetadataEncoder struct {
	w io.Writer
}

func NewMetadataEncoder(w io.Writer) *MetadataEncoder {
	return &MetadataEncoder{w: w}
}

// EncodeMetadata writes exactly MetadataLength bytes in a single write and flushes.
// Metadata that does not fit the block fails with ErrMetadataTooLarge and writes nothing.
func (e *MetadataEncoder) EncodeMetadata(meta *metadata.Metadata) error {
	if meta == nil {
		return errors.Wrap(exception.ErrMetadataMalformed, "nil metadata")
	}
	block, err := meta.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := e.w.Write(block); err != nil {
		return errors.Wrap(err, "encode metadata")
	}
	return flush(e.w)
}

type flusher interface {
	Flush() error
}

func flush(w io.Writer) error {
	if f, ok := w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return errors.Wrap(err, "flush")
		}
	}
	return nil
}
