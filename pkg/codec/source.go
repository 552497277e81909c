package codec

import (
	"bufio"
	"context"
	"io"
	"time"

	"mbn/pkg/metadata"
)

// source is the byte supply the framing algorithm runs over. The blocking
// adapter ignores ctx; the suspending adapter honors it before every read.
type source interface {
	readByte(ctx context.Context) (byte, error)
	readFull(ctx context.Context, p []byte) (int, error)
	peek(ctx context.Context, n int) ([]byte, error)
	discard(ctx context.Context, n int) error
}

func newBufferedReader(r io.Reader, size int) *bufio.Reader {
	if size < metadata.MetadataLength {
		size = metadata.MetadataLength
	}
	if br, ok := r.(*bufio.Reader); ok && br.Size() >= size {
		return br
	}
	return bufio.NewReaderSize(r, size)
}

type blockingSource struct {
	r *bufio.Reader
}

func newBlockingSource(r io.Reader, bufferSize int) *blockingSource {
	return &blockingSource{r: newBufferedReader(r, bufferSize)}
}

func (s *blockingSource) readByte(context.Context) (byte, error) {
	return s.r.ReadByte()
}

func (s *blockingSource) readFull(_ context.Context, p []byte) (int, error) {
	return io.ReadFull(s.r, p)
}

func (s *blockingSource) peek(_ context.Context, n int) ([]byte, error) {
	return s.r.Peek(n)
}

func (s *blockingSource) discard(_ context.Context, n int) error {
	_, err := s.r.Discard(n)
	return err
}

// deadlineReader is implemented by net.Conn and *os.File.
type deadlineReader interface {
	SetReadDeadline(t time.Time) error
}

// suspendingSource checks the context before each read and pushes its
// deadline down to the underlying reader when it supports one. A read that
// is already blocked without a deadline returns only when the reader does.
type suspendingSource struct {
	r        *bufio.Reader
	deadline deadlineReader
	armed    bool
}

func newSuspendingSource(r io.Reader, bufferSize int) *suspendingSource {
	s := &suspendingSource{r: newBufferedReader(r, bufferSize)}
	if dl, ok := r.(deadlineReader); ok {
		s.deadline = dl
	}
	return s
}

func (s *suspendingSource) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.deadline == nil {
		return nil
	}
	// A deadline set for an earlier call must not outlive its context.
	if d, ok := ctx.Deadline(); ok {
		s.armed = true
		_ = s.deadline.SetReadDeadline(d)
	} else if s.armed {
		s.armed = false
		_ = s.deadline.SetReadDeadline(time.Time{})
	}
	return nil
}

// settle prefers the context error over the reader error it caused.
func (s *suspendingSource) settle(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *suspendingSource) readByte(ctx context.Context) (byte, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	b, err := s.r.ReadByte()
	return b, s.settle(ctx, err)
}

func (s *suspendingSource) readFull(ctx context.Context, p []byte) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(s.r, p)
	return n, s.settle(ctx, err)
}

func (s *suspendingSource) peek(ctx context.Context, n int) ([]byte, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	b, err := s.r.Peek(n)
	return b, s.settle(ctx, err)
}

func (s *suspendingSource) discard(ctx context.Context, n int) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.r.Discard(n)
	return s.settle(ctx, err)
}
