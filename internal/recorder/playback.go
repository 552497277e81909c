package recorder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mbn/internal/obs"
	"mbn/pkg/codec"
	"mbn/pkg/metadata"
	"mbn/pkg/record"

	"github.com/yanun0323/errors"
)

// PlaybackConfig controls segment playback behavior.
type PlaybackConfig struct {
	Dir         string
	FilePrefix  string
	Speed       float64
	UseRecvTime bool
	// Lenient treats a segment that ends inside a frame as complete,
	// which is what a crashed writer leaves behind.
	Lenient      bool
	MaxFrameSize int
}

// Handler receives each replayed record with the metadata of its segment.
// meta is nil for segments without a metadata block.
type Handler func(meta *metadata.Metadata, rec record.RecordEnum) error

// Clock allows deterministic playback control.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Playback replays container segments in file order.
type Playback struct {
	cfg     PlaybackConfig
	clock   Clock
	metrics *obs.Metrics
}

// NewPlayback validates the config and creates a playback engine.
func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Playback{cfg: cfg, clock: realClock{}}, nil
}

// WithClock swaps the clock implementation.
func (p *Playback) WithClock(clock Clock) *Playback {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// WithMetrics observes every decoded frame.
func (p *Playback) WithMetrics(m *obs.Metrics) *Playback {
	p.metrics = m
	return p
}

// Run replays every segment and calls the handler for each record.
func (p *Playback) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("playback handler is nil")
	}
	files, err := p.Files()
	if err != nil {
		return err
	}

	var prevTS uint64
	for _, path := range files {
		if err := p.playFile(ctx, path, handler, &prevTS); err != nil {
			return err
		}
	}
	return nil
}

func (c PlaybackConfig) withDefaults() PlaybackConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the config is usable.
func (c PlaybackConfig) Validate() error {
	if c.Dir == "" {
		return errors.New("invalid playback config: Dir is empty")
	}
	if c.Speed < 0 {
		return errors.New("invalid playback config: Speed must be >= 0")
	}
	if c.MaxFrameSize < 0 {
		return errors.New("invalid playback config: MaxFrameSize must be >= 0")
	}
	return nil
}

// Files lists the segments to replay, sorted by name.
func (p *Playback) Files() ([]string, error) {
	entries, err := os.ReadDir(p.cfg.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "list segments")
	}
	prefix := p.cfg.FilePrefix + "-"
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, segmentExt) {
			continue
		}
		files = append(files, filepath.Join(p.cfg.Dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func (p *Playback) playFile(ctx context.Context, path string, handler Handler, prevTS *uint64) error {
	opts := []codec.DecoderOption{codec.WithMaxFrameSize(p.cfg.MaxFrameSize)}
	if p.cfg.Lenient {
		opts = append(opts, codec.WithLenientTruncation())
	}
	if p.metrics != nil {
		opts = append(opts, codec.WithObserver(p.metrics))
	}

	dec, err := codec.NewDecoderFromFile(path, opts...)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	defer dec.Close()

	meta := dec.Metadata()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := dec.Decode()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrapf(err, "read %s", path)
		}

		if err := p.pace(ctx, rec, prevTS); err != nil {
			return err
		}
		if err := handler(meta, rec); err != nil {
			return err
		}
	}
}

func (p *Playback) pace(ctx context.Context, rec record.RecordEnum, prevTS *uint64) error {
	if p.cfg.Speed <= 0 {
		return nil
	}
	current := rec.Header().TsEvent
	if p.cfg.UseRecvTime {
		current = rec.Timestamp()
	}
	if current == 0 {
		return nil
	}
	if *prevTS > 0 && current > *prevTS {
		sleep := time.Duration(float64(current-*prevTS) / p.cfg.Speed)
		if err := p.clock.Sleep(ctx, sleep); err != nil {
			return err
		}
	}
	*prevTS = current
	return nil
}
