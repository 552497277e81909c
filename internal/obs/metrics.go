package obs

import (
	"sync/atomic"
	"time"

	"mbn/pkg/exception"
	"mbn/pkg/record"

	"github.com/yanun0323/errors"
)

// ErrorKind classifies decode failures.
type ErrorKind uint8

const (
	ErrorOther ErrorKind = iota
	ErrorMalformed
	ErrorTruncated
	ErrorUnsupported
	ErrorTooLarge

	errorKindCount
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorMalformed:
		return "malformed"
	case ErrorTruncated:
		return "truncated"
	case ErrorUnsupported:
		return "unsupported"
	case ErrorTooLarge:
		return "too_large"
	default:
		return "other"
	}
}

// ClassifyError maps a codec error onto an ErrorKind.
func ClassifyError(err error) ErrorKind {
	switch {
	case errors.Is(err, exception.ErrTruncatedFrame):
		return ErrorTruncated
	case errors.Is(err, exception.ErrMalformedFrame):
		return ErrorMalformed
	case errors.Is(err, exception.ErrUnsupportedRecordType):
		return ErrorUnsupported
	case errors.Is(err, exception.ErrFrameTooLarge):
		return ErrorTooLarge
	default:
		return ErrorOther
	}
}

// Metrics collects lightweight counters and latency stats for the codec and
// recorder paths. All methods are safe for concurrent use and on a nil receiver.
type Metrics struct {
	frameCounts [256]uint64
	frameBytes  uint64
	errorCounts [errorKindCount]uint64
	queueDrops  uint64
	segments    uint64

	decodeLatency LatencyStats
	recvLatency   LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Sum   time.Duration
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	FrameCounts   map[record.RType]uint64
	FrameBytes    uint64
	ErrorCounts   map[ErrorKind]uint64
	QueueDrops    uint64
	Segments      uint64
	DecodeLatency LatencySnapshot
	RecvLatency   LatencySnapshot
}

// Frames returns the total frame count.
func (s Snapshot) Frames() uint64 {
	var total uint64
	for _, v := range s.FrameCounts {
		total += v
	}
	return total
}

// Errors returns the total error count across kinds.
func (s Snapshot) Errors() uint64 {
	var total uint64
	for _, v := range s.ErrorCounts {
		total += v
	}
	return total
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveFrame counts one decoded frame.
func (m *Metrics) ObserveFrame(rtype record.RType, size int, elapsed time.Duration) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.frameCounts[rtype], 1)
	atomic.AddUint64(&m.frameBytes, uint64(size))
	m.decodeLatency.Observe(elapsed)
}

// ObserveError counts one decode failure.
func (m *Metrics) ObserveError(err error) {
	if m == nil || err == nil {
		return
	}
	atomic.AddUint64(&m.errorCounts[ClassifyError(err)], 1)
}

// ObserveRecord tracks the gap between exchange and capture time.
func (m *Metrics) ObserveRecord(rec record.Record) {
	if m == nil {
		return
	}
	tsEvent := rec.Header().TsEvent
	tsRecv := rec.Timestamp()
	if tsEvent > 0 && tsRecv > tsEvent {
		m.recvLatency.Observe(time.Duration(tsRecv - tsEvent))
	}
}

// IncQueueDrop records a record dropped by a full queue.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncSegment records a segment rotation.
func (m *Metrics) IncSegment() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.segments, 1)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	frames := make(map[record.RType]uint64)
	for i := range m.frameCounts {
		if v := atomic.LoadUint64(&m.frameCounts[i]); v > 0 {
			frames[record.RType(i)] = v
		}
	}
	errs := make(map[ErrorKind]uint64)
	for i := range m.errorCounts {
		if v := atomic.LoadUint64(&m.errorCounts[i]); v > 0 {
			errs[ErrorKind(i)] = v
		}
	}
	return Snapshot{
		FrameCounts:   frames,
		FrameBytes:    atomic.LoadUint64(&m.frameBytes),
		ErrorCounts:   errs,
		QueueDrops:    atomic.LoadUint64(&m.queueDrops),
		Segments:      atomic.LoadUint64(&m.segments),
		DecodeLatency: m.decodeLatency.Snapshot(),
		RecvLatency:   m.recvLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		cur := atomic.LoadUint64(&l.min)
		if cur != 0 && nanos >= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, cur, nanos) {
			break
		}
	}

	for {
		cur := atomic.LoadUint64(&l.max)
		if nanos <= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, cur, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	return LatencySnapshot{
		Count: count,
		Sum:   time.Duration(sum),
		Min:   time.Duration(atomic.LoadUint64(&l.min)),
		Max:   time.Duration(atomic.LoadUint64(&l.max)),
		Avg:   time.Duration(sum / count),
	}
}
