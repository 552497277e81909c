package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"mbn/pkg/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonConfig = `{
  "registry": {
    "venues": [{"name": "XNAS"}],
    "instruments": [
      {"ticker": "AAPL", "name": "Apple Inc.", "venue": "XNAS", "tickSize": "0.01"},
      {"id": 7, "ticker": "TSLA", "venue": "XNAS"}
    ]
  },
  "recorder": {
    "dir": "/tmp/capture",
    "segmentSize": "64MiB",
    "segmentDuration": "1m",
    "flushInterval": "250ms"
  },
  "generator": {
    "schema": "tbbo",
    "basePrice": "150.25",
    "spread": "0.01",
    "baseSize": 5,
    "count": 100,
    "interval": "10ms"
  },
  "store": {
    "database": "mbn",
    "connMaxLifetime": "5m",
    "batchSize": 500
  }
}`

const tomlConfig = `
[registry]
venues = [{ name = "XNAS" }]
instruments = [
  { ticker = "AAPL", venue = "XNAS" },
  { ticker = "TSLA", venue = "XNAS" },
]

[recorder]
dir = "/tmp/capture"
schema = "ohlcv-1m"
segment_size = "1 MB"
queue_size = 128

[store]
conn_string = "postgres://localhost/mbn"
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadJSON(t *testing.T) {
	loaded, err := Load(writeConfig(t, "mbn.json", jsonConfig))
	require.NoError(t, err)

	id, ok := loaded.Registry.InstrumentIDByTicker("AAPL")
	require.True(t, ok)
	assert.Equal(t, uint32(1), id)
	inst, ok := loaded.Registry.Instrument(id)
	require.True(t, ok)
	assert.Equal(t, int64(10_000_000), inst.TickSize)

	_, ok = loaded.Registry.Instrument(7)
	assert.True(t, ok)

	assert.Equal(t, record.SchemaTbbo, loaded.Generator.Schema)
	assert.Equal(t, int64(150_250_000_000), loaded.Generator.BasePrice)
	assert.Equal(t, int64(10_000_000), loaded.Generator.Spread)
	assert.Equal(t, 10*time.Millisecond, loaded.Generator.Interval)
	assert.Equal(t, 100, loaded.Generator.Count)

	assert.Equal(t, record.SchemaTbbo, loaded.Recorder.Schema, "recorder falls back to the generator schema")
	assert.Equal(t, int64(64<<20), loaded.Recorder.SegmentMaxBytes)
	assert.Equal(t, time.Minute, loaded.Recorder.SegmentMaxDuration)
	assert.Equal(t, 250*time.Millisecond, loaded.Recorder.FlushInterval)
	assert.Equal(t, map[uint32]string{1: "AAPL", 7: "TSLA"}, loaded.Recorder.Symbols.Map())
	require.NoError(t, loaded.Recorder.Validate())

	assert.Equal(t, "mbn", loaded.Store.Database)
	assert.Equal(t, 5*time.Minute, loaded.Store.ConnMaxLifetime)
	assert.Equal(t, 500, loaded.BatchSize)
}

func TestLoadTOML(t *testing.T) {
	loaded, err := Load(writeConfig(t, "mbn.toml", tomlConfig))
	require.NoError(t, err)

	assert.Equal(t, 2, loaded.Registry.InstrumentCount())
	assert.Equal(t, record.SchemaOhlcv1M, loaded.Recorder.Schema)
	assert.Equal(t, int64(1_000_000), loaded.Recorder.SegmentMaxBytes)
	assert.Equal(t, 128, loaded.Recorder.QueueSize)
	assert.Equal(t, record.SchemaMbp1, loaded.Generator.Schema)
	assert.True(t, loaded.Store.Enabled())
}

func TestLoadRejects(t *testing.T) {
	testCases := []struct {
		desc string
		body string
	}{
		{"unknown venue", `{"registry": {"instruments": [{"ticker": "AAPL", "venue": "NOPE"}]}}`},
		{"bad schema", `{"generator": {"schema": "mbp-10"}}`},
		{"bad size", `{"recorder": {"segmentSize": "lots"}}`},
		{"bad interval", `{"generator": {"interval": "soon"}}`},
		{"too precise", `{"generator": {"basePrice": "1.0000000001"}}`},
		{"malformed", `{`},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := Load(writeConfig(t, "mbn.json", tc.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadRegistry(t *testing.T) {
	reg, err := LoadRegistry(writeConfig(t, "mbn.json", jsonConfig))
	require.NoError(t, err)
	assert.Equal(t, 2, reg.InstrumentCount())
}
