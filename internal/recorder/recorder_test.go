package recorder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mbn/internal/obs"
	"mbn/pkg/codec"
	"mbn/pkg/metadata"
	"mbn/pkg/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSymbols() metadata.SymbolMap {
	symbols := metadata.NewSymbolMap()
	symbols.Add("AAPL", 1)
	symbols.Add("TSLA", 2)
	return symbols
}

func bars(n int) []record.RecordEnum {
	out := make([]record.RecordEnum, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, record.OhlcvMsg{
			Hd:     record.NewHeader[record.OhlcvMsg](uint32(i%2+1), uint64(1_000_000_000+i*1_000)),
			Open:   int64(i),
			High:   int64(i + 2),
			Low:    int64(i - 1),
			Close:  int64(i + 1),
			Volume: uint64(i * 10),
		})
	}
	return out
}

type fakeClock struct {
	slept []time.Duration
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	return nil
}

func writeBars(t *testing.T, dir string, recs []record.RecordEnum, metrics *obs.Metrics) {
	t.Helper()
	cfg := DefaultConfig(dir, record.SchemaOhlcv1S, testSymbols())
	cfg.SegmentMaxBytes = metadata.MetadataLength + 3*record.OhlcvSize

	w, err := NewWriter(cfg)
	require.NoError(t, err)
	w.WithMetrics(metrics)

	assert.ErrorIs(t, w.TryAppend(recs[0]), ErrNotStarted)
	require.NoError(t, w.Start(context.Background()))
	assert.ErrorIs(t, w.Start(context.Background()), ErrAlreadyStarted)

	for _, rec := range recs {
		require.NoError(t, w.TryAppend(rec))
	}
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.TryAppend(recs[0]), ErrClosed)
}

func TestRecorderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	recs := bars(10)
	metrics := obs.NewMetrics()
	writeBars(t, dir, recs, metrics)

	pb, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)
	files, err := pb.Files()
	require.NoError(t, err)
	assert.Len(t, files, 4)
	assert.Equal(t, uint64(4), metrics.Snapshot().Segments)

	var got []record.RecordEnum
	err = pb.WithMetrics(metrics).Run(context.Background(), func(meta *metadata.Metadata, rec record.RecordEnum) error {
		require.NotNil(t, meta)
		assert.Equal(t, record.SchemaOhlcv1S, meta.Schema)
		assert.True(t, testSymbols().Equal(meta.Mappings))
		assert.GreaterOrEqual(t, int64(rec.Header().TsEvent), meta.Start)
		assert.LessOrEqual(t, int64(rec.Header().TsEvent), meta.End)
		got = append(got, rec)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, recs, got)
	assert.Equal(t, uint64(10), metrics.Snapshot().Frames())
}

func TestSegmentMetadataRange(t *testing.T) {
	dir := t.TempDir()
	recs := bars(3)
	writeBars(t, dir, recs, nil)

	matches, err := filepath.Glob(filepath.Join(dir, "capture-*.mbn"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	dec, err := codec.NewDecoderFromFile(matches[0])
	require.NoError(t, err)
	defer dec.Close()

	meta := dec.Metadata()
	require.NotNil(t, meta)
	assert.Equal(t, int64(recs[0].Header().TsEvent), meta.Start)
	assert.Equal(t, int64(recs[2].Header().TsEvent), meta.End)

	info, err := os.Stat(matches[0])
	require.NoError(t, err)
	assert.Equal(t, int64(metadata.MetadataLength+3*record.OhlcvSize), info.Size())
}

func TestPlaybackPacing(t *testing.T) {
	dir := t.TempDir()
	writeBars(t, dir, bars(4), nil)

	clock := &fakeClock{}
	pb, err := NewPlayback(PlaybackConfig{Dir: dir, Speed: 2})
	require.NoError(t, err)
	require.NoError(t, pb.WithClock(clock).Run(context.Background(), func(*metadata.Metadata, record.RecordEnum) error {
		return nil
	}))

	assert.Equal(t, []time.Duration{500, 500, 500}, clock.slept)
}

func TestPlaybackCancel(t *testing.T) {
	dir := t.TempDir()
	writeBars(t, dir, bars(4), nil)

	ctx, cancel := context.WithCancel(context.Background())
	pb, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)

	seen := 0
	err = pb.Run(ctx, func(*metadata.Metadata, record.RecordEnum) error {
		seen++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, seen)
}

func TestPlaybackLenientTornTail(t *testing.T) {
	dir := t.TempDir()
	writeBars(t, dir, bars(2), nil)

	matches, err := filepath.Glob(filepath.Join(dir, "capture-*.mbn"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	info, err := os.Stat(matches[0])
	require.NoError(t, err)
	require.NoError(t, os.Truncate(matches[0], info.Size()-5))

	count := func(lenient bool) (int, error) {
		pb, err := NewPlayback(PlaybackConfig{Dir: dir, Lenient: lenient})
		require.NoError(t, err)
		n := 0
		err = pb.Run(context.Background(), func(*metadata.Metadata, record.RecordEnum) error {
			n++
			return nil
		})
		return n, err
	}

	n, err := count(false)
	assert.Error(t, err)
	assert.Equal(t, 1, n)

	n, err = count(true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWriterRejectsWrongSchema(t *testing.T) {
	w, err := NewWriter(DefaultConfig(t.TempDir(), record.SchemaTrades, testSymbols()))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Close()

	assert.ErrorIs(t, w.TryAppend(bars(1)[0]), ErrSchemaMismatch)
}

func TestConfigValidate(t *testing.T) {
	large := metadata.NewSymbolMap()
	for i := uint32(0); i < 20; i++ {
		large.Add("TICKER", i)
	}

	testCases := []struct {
		desc string
		cfg  Config
	}{
		{"empty dir", Config{Schema: record.SchemaMbp1}},
		{"bad schema", Config{Dir: "x"}},
		{"symbols too large", Config{Dir: "x", Schema: record.SchemaMbp1, Symbols: large}},
		{"tiny segment", Config{Dir: "x", Schema: record.SchemaMbp1, SegmentMaxBytes: 10}},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Error(t, tc.cfg.withDefaults().Validate())
		})
	}

	assert.NoError(t, DefaultConfig("x", record.SchemaMbp1, testSymbols()).Validate())
}
