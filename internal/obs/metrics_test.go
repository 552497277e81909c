package obs

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"mbn/pkg/codec"
	"mbn/pkg/exception"
	"mbn/pkg/record"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

var _ codec.Observer = (*Metrics)(nil)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.ObserveFrame(record.RTypeOhlcv, record.OhlcvSize, 2*time.Microsecond)
	m.ObserveFrame(record.RTypeOhlcv, record.OhlcvSize, 4*time.Microsecond)
	m.ObserveFrame(record.RTypeTrades, record.TradeSize, time.Microsecond)
	m.ObserveError(&exception.MalformedFrameError{Length: 4})
	m.ObserveError(&exception.TruncatedFrameError{Want: 56, Got: 10})
	m.ObserveError(io.ErrClosedPipe)
	m.IncQueueDrop()
	m.IncSegment()

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.FrameCounts[record.RTypeOhlcv])
	assert.Equal(t, uint64(3), snap.Frames())
	assert.Equal(t, uint64(2*record.OhlcvSize+record.TradeSize), snap.FrameBytes)
	assert.Equal(t, uint64(1), snap.ErrorCounts[ErrorMalformed])
	assert.Equal(t, uint64(1), snap.ErrorCounts[ErrorTruncated])
	assert.Equal(t, uint64(1), snap.ErrorCounts[ErrorOther])
	assert.Equal(t, uint64(1), snap.QueueDrops)
	assert.Equal(t, uint64(1), snap.Segments)
	assert.Equal(t, time.Microsecond, snap.DecodeLatency.Min)
	assert.Equal(t, 4*time.Microsecond, snap.DecodeLatency.Max)
	assert.Equal(t, uint64(3), snap.DecodeLatency.Count)
}

func TestClassifyError(t *testing.T) {
	testCases := []struct {
		desc     string
		input    error
		expected ErrorKind
	}{
		{"unsupported", &exception.UnsupportedRecordTypeError{RType: 9}, ErrorUnsupported},
		{"too large", errors.Wrap(exception.ErrFrameTooLarge, "frame"), ErrorTooLarge},
		{"wrapped malformed", errors.Wrap(&exception.MalformedFrameError{Length: 8}, "decode"), ErrorMalformed},
		{"io", io.ErrUnexpectedEOF, ErrorOther},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.expected, ClassifyError(tc.input))
		})
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveFrame(record.RTypeMbp1, record.Mbp1Size, time.Second)
	m.ObserveError(io.EOF)
	m.IncQueueDrop()
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestMetricsConcurrent(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.ObserveFrame(record.RTypeBbo, record.BboSize, time.Duration(j))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(8000), m.Snapshot().FrameCounts[record.RTypeBbo])
}

func TestObserveRecord(t *testing.T) {
	m := NewMetrics()
	m.ObserveRecord(record.TradeMsg{Hd: record.NewHeader[record.TradeMsg](1, 100), TsRecv: 350})
	m.ObserveRecord(record.OhlcvMsg{Hd: record.NewHeader[record.OhlcvMsg](1, 100)})

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.RecvLatency.Count)
	assert.Equal(t, 250*time.Nanosecond, snap.RecvLatency.Max)
}

func TestCollector(t *testing.T) {
	m := NewMetrics()
	m.ObserveFrame(record.RTypeMbp1, record.Mbp1Size, time.Millisecond)
	m.IncSegment()

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, Register(reg, m))

	expected := `
# HELP mbn_recorder_segments_total Total number of container segments opened.
# TYPE mbn_recorder_segments_total counter
mbn_recorder_segments_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "mbn_recorder_segments_total"))

	count, err := testutil.GatherAndCount(reg, "mbn_codec_frames_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetricsThroughDecoder(t *testing.T) {
	bar := record.OhlcvMsg{
		Hd:    record.NewHeader[record.OhlcvMsg](1, 1_000),
		Close: 10,
	}
	trade := record.TradeMsg{
		Hd: record.NewHeader[record.TradeMsg](1, 2_000),
		Px: 11,
	}
	data, err := codec.EncodeToBytes(nil, []record.RecordEnum{bar, trade})
	require.NoError(t, err)
	data[1] = 0x7f

	m := NewMetrics()
	dec, err := codec.NewDecoderFromBytes(data, codec.WithObserver(m))
	require.NoError(t, err)

	_, err = dec.Decode()
	require.ErrorIs(t, err, exception.ErrUnsupportedRecordType)
	_, err = dec.Decode()
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.Equal(t, map[record.RType]uint64{record.RTypeTrades: 1}, snap.FrameCounts)
	assert.Equal(t, uint64(record.TradeSize), snap.FrameBytes)
	assert.Equal(t, map[ErrorKind]uint64{ErrorUnsupported: 1}, snap.ErrorCounts)
	assert.Equal(t, uint64(1), snap.Errors())
}
