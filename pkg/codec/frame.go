package codec

import (
	"context"
	"io"
	"time"

	"mbn/pkg/exception"
	"mbn/pkg/record"

	"github.com/yanun0323/errors"
)

// frameReader splits a source into length-prefixed frames. The returned ref
// aliases an internal scratch buffer that grows but never shrinks.
type frameReader struct {
	src  source
	opts decoderOptions
	buf  []byte
}

func newFrameReader(src source, opts decoderOptions) *frameReader {
	return &frameReader{
		src:  src,
		opts: opts,
		buf:  make([]byte, 0, record.Mbp1Size),
	}
}

func (f *frameReader) next(ctx context.Context) (record.RecordRef, error) {
	var start time.Time
	if f.opts.observer != nil {
		start = time.Now()
	}

	ref, err := f.read(ctx)
	if f.opts.observer != nil {
		f.observe(ref, err, start)
	}
	return ref, err
}

// observe reports a frame only once it would convert to a record; a frame
// with an unknown tag or a wrong length for its tag counts as an error.
func (f *frameReader) observe(ref record.RecordRef, err error, start time.Time) {
	if err == io.EOF {
		return
	}
	if err == nil {
		_, err = record.NewRecordEnumRef(ref)
	}
	if err != nil {
		f.opts.observer.ObserveError(err)
		return
	}
	f.opts.observer.ObserveFrame(ref.RType(), ref.Len(), time.Since(start))
}

func (f *frameReader) read(ctx context.Context) (record.RecordRef, error) {
	length, err := f.src.readByte(ctx)
	if err != nil {
		if err == io.EOF {
			return record.RecordRef{}, io.EOF
		}
		return record.RecordRef{}, errors.Wrap(err, "decode record")
	}

	size := int(length) * record.LengthMultiplier
	if size < record.HeaderSize {
		return record.RecordRef{}, &exception.MalformedFrameError{Length: size}
	}
	if f.opts.maxFrameSize > 0 && size > f.opts.maxFrameSize {
		return record.RecordRef{}, errors.Wrapf(exception.ErrFrameTooLarge, "frame %d bytes, limit %d", size, f.opts.maxFrameSize)
	}

	if cap(f.buf) < size {
		f.buf = make([]byte, size)
	}
	f.buf = f.buf[:size]
	f.buf[0] = length

	n, err := f.src.readFull(ctx, f.buf[1:])
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			if f.opts.lenient {
				return record.RecordRef{}, io.EOF
			}
			return record.RecordRef{}, &exception.TruncatedFrameError{Want: size, Got: n + 1}
		}
		return record.RecordRef{}, errors.Wrap(err, "decode record")
	}
	return record.NewRecordRef(f.buf), nil
}
