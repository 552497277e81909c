package codec

import (
	"time"

	"mbn/pkg/record"
)

const defaultBufferSize = 64 * 1024

// Observer receives a callback for every frame a decoder reads.
// Implementations must be cheap; they run on the decode path.
type Observer interface {
	ObserveFrame(rtype record.RType, size int, elapsed time.Duration)
	ObserveError(err error)
}

type decoderOptions struct {
	maxFrameSize int
	bufferSize   int
	lenient      bool
	observer     Observer
}

// DecoderOption configures a decoder.
type DecoderOption func(*decoderOptions)

// WithMaxFrameSize rejects frames larger than n bytes with ErrFrameTooLarge.
func WithMaxFrameSize(n int) DecoderOption {
	return func(o *decoderOptions) {
		o.maxFrameSize = n
	}
}

// WithBufferSize sets the read buffer size. Sizes below the metadata block length are raised to it.
func WithBufferSize(n int) DecoderOption {
	return func(o *decoderOptions) {
		o.bufferSize = n
	}
}

// WithObserver installs a per-frame hook.
func WithObserver(obs Observer) DecoderOption {
	return func(o *decoderOptions) {
		o.observer = obs
	}
}

// WithLenientTruncation treats a source that ends inside a frame as a clean end of stream.
func WithLenientTruncation() DecoderOption {
	return func(o *decoderOptions) {
		o.lenient = true
	}
}

func buildOptions(opts []DecoderOption) decoderOptions {
	o := decoderOptions{bufferSize: defaultBufferSize}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
