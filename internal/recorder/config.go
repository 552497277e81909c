package recorder

import (
	"time"

	"mbn/pkg/metadata"
	"mbn/pkg/record"

	"github.com/yanun0323/errors"
)

const (
	defaultSegmentMaxBytes int64 = 1 << 30
	defaultQueueSize             = 4096
	defaultBufferSize            = 256 * 1024
	defaultFilePrefix            = "capture"

	segmentExt = ".mbn"
)

var defaultSegmentMaxDuration = 5 * time.Minute

// Config controls capture writer behavior. Every segment is a standalone
// container whose metadata block carries Schema and Symbols.
type Config struct {
	Dir                string
	Schema             record.Schema
	Symbols            metadata.SymbolMap
	SegmentMaxBytes    int64
	SegmentMaxDuration time.Duration
	QueueSize          int
	BufferSize         int
	FilePrefix         string
	FlushInterval      time.Duration
	SyncInterval       time.Duration
}

// DefaultConfig returns a baseline configuration for the capture writer.
func DefaultConfig(dir string, schema record.Schema, symbols metadata.SymbolMap) Config {
	return Config{
		Dir:                dir,
		Schema:             schema,
		Symbols:            symbols,
		SegmentMaxBytes:    defaultSegmentMaxBytes,
		SegmentMaxDuration: defaultSegmentMaxDuration,
		QueueSize:          defaultQueueSize,
		BufferSize:         defaultBufferSize,
		FilePrefix:         defaultFilePrefix,
	}
}

func (c Config) withDefaults() Config {
	if c.SegmentMaxBytes == 0 {
		c.SegmentMaxBytes = defaultSegmentMaxBytes
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Dir == "" {
		return errors.New("invalid recorder config: Dir is empty")
	}
	if !c.Schema.Valid() {
		return errors.Errorf("invalid recorder config: unknown Schema %d", c.Schema)
	}
	if n := metadata.New(c.Schema, 0, 0, c.Symbols).EncodedLen(); n > metadata.MetadataLength {
		return errors.Errorf("invalid recorder config: Symbols need %d metadata bytes, limit %d", n, metadata.MetadataLength)
	}
	if c.SegmentMaxBytes <= metadata.MetadataLength {
		return errors.Errorf("invalid recorder config: SegmentMaxBytes must be > %d", metadata.MetadataLength)
	}
	if c.QueueSize <= 0 {
		return errors.New("invalid recorder config: QueueSize must be > 0")
	}
	if c.BufferSize <= 0 {
		return errors.New("invalid recorder config: BufferSize must be > 0")
	}
	if c.FilePrefix == "" {
		return errors.New("invalid recorder config: FilePrefix is empty")
	}
	if c.FlushInterval < 0 {
		return errors.New("invalid recorder config: FlushInterval must be >= 0")
	}
	if c.SyncInterval < 0 {
		return errors.New("invalid recorder config: SyncInterval must be >= 0")
	}
	return nil
}
