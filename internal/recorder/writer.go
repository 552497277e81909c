package recorder

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"mbn/internal/obs"
	"mbn/pkg/codec"
	"mbn/pkg/metadata"
	"mbn/pkg/record"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

var (
	ErrQueueFull      = errors.New("recorder: queue full")
	ErrClosed         = errors.New("recorder: writer closed")
	ErrNotStarted     = errors.New("recorder: writer not started")
	ErrAlreadyStarted = errors.New("recorder: writer already started")
	ErrSchemaMismatch = errors.New("recorder: record does not match schema")
)

// Writer appends records to rotating container segments from a buffered queue.
// A single goroutine owns the open segment.
type Writer struct {
	cfg     Config
	rtype   record.RType
	metrics *obs.Metrics
	ch      chan record.RecordEnum
	wg      sync.WaitGroup
	err     atomic.Value

	started uint32
	closed  uint32
}

// NewWriter creates a capture writer and ensures the target directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create recorder dir")
	}
	w := &Writer{
		cfg:   cfg,
		rtype: cfg.Schema.RType(),
		ch:    make(chan record.RecordEnum, cfg.QueueSize),
	}
	return w, nil
}

// WithMetrics reports drops and rotations to m.
func (w *Writer) WithMetrics(m *obs.Metrics) *Writer {
	w.metrics = m
	return w
}

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&w.started, 0, 1) {
		return ErrAlreadyStarted
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	return nil
}

// Close stops the writer and finalizes the open segment.
func (w *Writer) Close() error {
	if atomic.CompareAndSwapUint32(&w.closed, 0, 1) {
		close(w.ch)
	}
	w.wg.Wait()
	return w.Err()
}

// Err returns the first error observed by the writer, if any.
func (w *Writer) Err() error {
	if v := w.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// TryAppend enqueues a record without blocking.
func (w *Writer) TryAppend(rec record.RecordEnum) error {
	if atomic.LoadUint32(&w.closed) != 0 {
		return ErrClosed
	}
	if atomic.LoadUint32(&w.started) == 0 {
		return ErrNotStarted
	}
	if err := w.Err(); err != nil {
		return err
	}
	if rec.RType() != w.rtype {
		return errors.Wrapf(ErrSchemaMismatch, "got %s, want %s", rec.RType(), w.rtype)
	}

	select {
	case w.ch <- rec:
		return nil
	default:
		w.metrics.IncQueueDrop()
		return ErrQueueFull
	}
}

// TryAppendRef copies a borrowed frame and enqueues it.
func (w *Writer) TryAppendRef(ref record.RecordRef) error {
	rec, err := record.FromRef(ref)
	if err != nil {
		return err
	}
	return w.TryAppend(rec)
}

func (w *Writer) run(ctx context.Context) {
	var (
		seg         *segmentWriter
		segID       uint64
		flushC      <-chan time.Time
		syncC       <-chan time.Time
		flushTicker *time.Ticker
		syncTicker  *time.Ticker
	)

	if w.cfg.FlushInterval > 0 {
		flushTicker = time.NewTicker(w.cfg.FlushInterval)
		flushC = flushTicker.C
	}
	if w.cfg.SyncInterval > 0 {
		syncTicker = time.NewTicker(w.cfg.SyncInterval)
		syncC = syncTicker.C
	}

	defer func() {
		if flushTicker != nil {
			flushTicker.Stop()
		}
		if syncTicker != nil {
			syncTicker.Stop()
		}
		if err := w.closeSegment(seg); err != nil {
			w.setErr(err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.drainNonBlocking(&seg, &segID)
			return
		case rec, ok := <-w.ch:
			if !ok {
				return
			}
			if err := w.writeRecord(&seg, &segID, rec); err != nil {
				w.setErr(err)
				return
			}
		case <-flushC:
			if err := w.flushSegment(seg); err != nil {
				w.setErr(err)
				return
			}
		case <-syncC:
			if err := w.syncSegment(seg); err != nil {
				w.setErr(err)
				return
			}
		}
	}
}

func (w *Writer) drainNonBlocking(seg **segmentWriter, segID *uint64) {
	for {
		select {
		case rec, ok := <-w.ch:
			if !ok {
				return
			}
			if err := w.writeRecord(seg, segID, rec); err != nil {
				w.setErr(err)
				return
			}
		default:
			return
		}
	}
}

func (w *Writer) writeRecord(seg **segmentWriter, segID *uint64, rec record.RecordEnum) error {
	now := time.Now().UTC()
	size := int64(rec.Size())
	if w.shouldRotate(*seg, now, size) {
		if err := w.closeSegment(*seg); err != nil {
			return err
		}
		*seg = nil
		opened, err := w.openSegment(segID, now, rec.Header().TsEvent)
		if err != nil {
			return err
		}
		*seg = opened
	}

	if err := (*seg).enc.EncodeRecord(rec); err != nil {
		return errors.Wrapf(err, "segment %s", (*seg).file.Name())
	}
	(*seg).size += size
	(*seg).lastTs = rec.Header().TsEvent
	return nil
}

func (w *Writer) shouldRotate(seg *segmentWriter, now time.Time, nextSize int64) bool {
	if seg == nil {
		return true
	}
	if w.cfg.SegmentMaxBytes > 0 && seg.size+nextSize > w.cfg.SegmentMaxBytes {
		return true
	}
	if w.cfg.SegmentMaxDuration > 0 && now.Sub(seg.openedAt) >= w.cfg.SegmentMaxDuration {
		return true
	}
	return false
}

func (w *Writer) flushSegment(seg *segmentWriter) error {
	if seg == nil {
		return nil
	}
	return seg.buf.Flush()
}

func (w *Writer) syncSegment(seg *segmentWriter) error {
	if seg == nil {
		return nil
	}
	if err := seg.buf.Flush(); err != nil {
		return err
	}
	return seg.file.Sync()
}

// closeSegment flushes the segment and rewrites its metadata block with the
// final time range. The block has a fixed length, so it is patched in place.
func (w *Writer) closeSegment(seg *segmentWriter) error {
	if seg == nil {
		return nil
	}
	if err := seg.buf.Flush(); err != nil {
		_ = seg.file.Close()
		return errors.Wrap(err, "flush segment")
	}

	meta := metadata.New(w.cfg.Schema, int64(seg.firstTs), int64(seg.lastTs), w.cfg.Symbols)
	block, err := meta.MarshalBinary()
	if err != nil {
		_ = seg.file.Close()
		return err
	}
	if _, err := seg.file.WriteAt(block, 0); err != nil {
		_ = seg.file.Close()
		return errors.Wrap(err, "finalize segment metadata")
	}
	if err := seg.file.Sync(); err != nil {
		_ = seg.file.Close()
		return errors.Wrap(err, "sync segment")
	}
	return seg.file.Close()
}

func (w *Writer) openSegment(segID *uint64, now time.Time, firstTs uint64) (*segmentWriter, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	ts := now.Format("20060102-150405")
	for {
		*segID = *segID + 1
		name := fmt.Sprintf("%s-%s-%06d%s", w.cfg.FilePrefix, ts, *segID, segmentExt)
		path := filepath.Join(w.cfg.Dir, name)
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return nil, errors.Wrap(err, "open segment")
		}

		buf := bufio.NewWriterSize(file, w.cfg.BufferSize)
		meta := metadata.New(w.cfg.Schema, int64(firstTs), 0, w.cfg.Symbols)
		if err := codec.NewMetadataEncoder(buf).EncodeMetadata(&meta); err != nil {
			_ = file.Close()
			return nil, err
		}

		w.metrics.IncSegment()
		logs.Infof("recorder: opened segment %s", name)
		return &segmentWriter{
			file:     file,
			buf:      buf,
			enc:      codec.NewRecordEncoder(buf),
			size:     metadata.MetadataLength,
			openedAt: now,
			firstTs:  firstTs,
			lastTs:   firstTs,
		}, nil
	}
}

func (w *Writer) setErr(err error) {
	if err == nil {
		return
	}
	if w.err.Load() != nil {
		return
	}
	logs.Errorf("recorder: writer stopped, err: %+v", err)
	w.err.Store(err)
}

type segmentWriter struct {
	file     *os.File
	buf      *bufio.Writer
	enc      *codec.RecordEncoder
	size     int64
	openedAt time.Time
	firstTs  uint64
	lastTs   uint64
}
