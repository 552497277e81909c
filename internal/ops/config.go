package ops

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mbn/internal/recorder"
	"mbn/internal/schema"
	"mbn/pkg/conn"
	"mbn/pkg/record"

	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml/v2"
	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
)

// FileConfig mirrors the config file layout. Files ending in .toml are read
// as TOML, everything else as JSON.
type FileConfig struct {
	Registry  RegistryConfig  `json:"registry" toml:"registry"`
	Recorder  RecorderConfig  `json:"recorder" toml:"recorder"`
	Generator GeneratorConfig `json:"generator" toml:"generator"`
	Store     StoreConfig     `json:"store" toml:"store"`
}

// RegistryConfig defines venue and instrument mappings.
type RegistryConfig struct {
	Venues      []VenueConfig      `json:"venues" toml:"venues"`
	Instruments []InstrumentConfig `json:"instruments" toml:"instruments"`
}

// VenueConfig describes a venue entry.
type VenueConfig struct {
	Name string `json:"name" toml:"name"`
}

// InstrumentConfig describes an instrument entry. ID zero is assigned by the registry.
type InstrumentConfig struct {
	ID       uint32          `json:"id" toml:"id"`
	Ticker   string          `json:"ticker" toml:"ticker"`
	Name     string          `json:"name" toml:"name"`
	Venue    string          `json:"venue" toml:"venue"`
	TickSize decimal.Decimal `json:"tickSize" toml:"tick_size"`
}

// RecorderConfig describes capture segments. Sizes accept humanized
// strings such as "64MiB"; durations use time.ParseDuration syntax.
type RecorderConfig struct {
	Dir             string `json:"dir" toml:"dir"`
	Schema          string `json:"schema" toml:"schema"`
	FilePrefix      string `json:"filePrefix" toml:"file_prefix"`
	SegmentSize     string `json:"segmentSize" toml:"segment_size"`
	SegmentDuration string `json:"segmentDuration" toml:"segment_duration"`
	QueueSize       int    `json:"queueSize" toml:"queue_size"`
	BufferSize      string `json:"bufferSize" toml:"buffer_size"`
	FlushInterval   string `json:"flushInterval" toml:"flush_interval"`
	SyncInterval    string `json:"syncInterval" toml:"sync_interval"`
}

// GeneratorConfig describes the synthetic record feed.
type GeneratorConfig struct {
	Schema    string          `json:"schema" toml:"schema"`
	BasePrice decimal.Decimal `json:"basePrice" toml:"base_price"`
	Spread    decimal.Decimal `json:"spread" toml:"spread"`
	BaseSize  uint32          `json:"baseSize" toml:"base_size"`
	Count     int             `json:"count" toml:"count"`
	Interval  string          `json:"interval" toml:"interval"`
}

// StoreConfig describes the postgres sink.
type StoreConfig struct {
	Host            string            `json:"host" toml:"host"`
	Port            int               `json:"port" toml:"port"`
	User            string            `json:"user" toml:"user"`
	Password        string            `json:"password" toml:"password"`
	Database        string            `json:"database" toml:"database"`
	SSLMode         string            `json:"sslMode" toml:"ssl_mode"`
	Params          map[string]string `json:"params" toml:"params"`
	ConnString      string            `json:"connString" toml:"conn_string"`
	MaxOpenConns    int               `json:"maxOpenConns" toml:"max_open_conns"`
	ConnMaxLifetime string            `json:"connMaxLifetime" toml:"conn_max_lifetime"`
	BatchSize       int               `json:"batchSize" toml:"batch_size"`
}

// GeneratorSpec is the resolved generator definition with fixed-point prices.
type GeneratorSpec struct {
	Schema    record.Schema
	BasePrice int64
	Spread    int64
	BaseSize  uint32
	Count     int
	Interval  time.Duration
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Registry  *schema.Registry
	Recorder  recorder.Config
	Generator GeneratorSpec
	Store     conn.Option
	BatchSize int
}

// Load reads a config file and resolves every section.
func Load(path string) (Loaded, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	return Resolve(cfg)
}

// ReadFile decodes a config file without resolving it.
func ReadFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, errors.Wrap(err, "read config")
	}
	var cfg FileConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return FileConfig{}, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Resolve builds the registry and converts every section into its runtime form.
func Resolve(cfg FileConfig) (Loaded, error) {
	registry, err := buildRegistry(cfg.Registry)
	if err != nil {
		return Loaded{}, err
	}
	generator, err := resolveGenerator(cfg.Generator)
	if err != nil {
		return Loaded{}, err
	}
	rec, err := resolveRecorder(cfg.Recorder, generator.Schema, registry)
	if err != nil {
		return Loaded{}, err
	}
	store, err := resolveStore(cfg.Store)
	if err != nil {
		return Loaded{}, err
	}
	return Loaded{
		Registry:  registry,
		Recorder:  rec,
		Generator: generator,
		Store:     store,
		BatchSize: cfg.Store.BatchSize,
	}, nil
}

// LoadRegistry reads a config file and only builds the registry.
func LoadRegistry(path string) (*schema.Registry, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return buildRegistry(cfg.Registry)
}

func buildRegistry(cfg RegistryConfig) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	for _, venue := range cfg.Venues {
		if _, err := reg.AddVenue(venue.Name); err != nil {
			return nil, err
		}
	}
	for _, inst := range cfg.Instruments {
		venueID, ok := reg.VenueIDByName(inst.Venue)
		if !ok {
			return nil, errors.Errorf("venue not found: %s", inst.Venue)
		}
		tick, err := fixedPoint(inst.TickSize)
		if err != nil {
			return nil, errors.Wrapf(err, "tick size of %s", inst.Ticker)
		}
		if tick < 0 {
			return nil, errors.Errorf("tick size of %s must be >= 0", inst.Ticker)
		}
		if _, err := reg.AddInstrument(schema.Instrument{
			ID:       inst.ID,
			VenueID:  venueID,
			Ticker:   inst.Ticker,
			Name:     inst.Name,
			TickSize: tick,
		}); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func resolveGenerator(cfg GeneratorConfig) (GeneratorSpec, error) {
	spec := GeneratorSpec{
		Schema:   record.SchemaMbp1,
		BaseSize: cfg.BaseSize,
		Count:    cfg.Count,
	}
	if cfg.Schema != "" {
		s, err := record.ParseSchema(cfg.Schema)
		if err != nil {
			return GeneratorSpec{}, err
		}
		spec.Schema = s
	}

	var err error
	if spec.BasePrice, err = fixedPoint(cfg.BasePrice); err != nil {
		return GeneratorSpec{}, errors.Wrap(err, "generator base price")
	}
	if spec.Spread, err = fixedPoint(cfg.Spread); err != nil {
		return GeneratorSpec{}, errors.Wrap(err, "generator spread")
	}
	if spec.Interval, err = parseDuration(cfg.Interval); err != nil {
		return GeneratorSpec{}, errors.Wrap(err, "generator interval")
	}
	if spec.Count < 0 {
		return GeneratorSpec{}, errors.New("generator count must be >= 0")
	}
	return spec, nil
}

func resolveRecorder(cfg RecorderConfig, fallback record.Schema, reg *schema.Registry) (recorder.Config, error) {
	s := fallback
	if cfg.Schema != "" {
		parsed, err := record.ParseSchema(cfg.Schema)
		if err != nil {
			return recorder.Config{}, err
		}
		s = parsed
	}

	out := recorder.DefaultConfig(cfg.Dir, s, reg.SymbolMap())
	if cfg.FilePrefix != "" {
		out.FilePrefix = cfg.FilePrefix
	}
	if cfg.QueueSize > 0 {
		out.QueueSize = cfg.QueueSize
	}
	if cfg.SegmentSize != "" {
		n, err := humanize.ParseBytes(cfg.SegmentSize)
		if err != nil {
			return recorder.Config{}, errors.Wrap(err, "recorder segment size")
		}
		out.SegmentMaxBytes = int64(n)
	}
	if cfg.BufferSize != "" {
		n, err := humanize.ParseBytes(cfg.BufferSize)
		if err != nil {
			return recorder.Config{}, errors.Wrap(err, "recorder buffer size")
		}
		out.BufferSize = int(n)
	}

	var err error
	if cfg.SegmentDuration != "" {
		if out.SegmentMaxDuration, err = parseDuration(cfg.SegmentDuration); err != nil {
			return recorder.Config{}, errors.Wrap(err, "recorder segment duration")
		}
	}
	if out.FlushInterval, err = parseDuration(cfg.FlushInterval); err != nil {
		return recorder.Config{}, errors.Wrap(err, "recorder flush interval")
	}
	if out.SyncInterval, err = parseDuration(cfg.SyncInterval); err != nil {
		return recorder.Config{}, errors.Wrap(err, "recorder sync interval")
	}
	return out, nil
}

func resolveStore(cfg StoreConfig) (conn.Option, error) {
	lifetime, err := parseDuration(cfg.ConnMaxLifetime)
	if err != nil {
		return conn.Option{}, errors.Wrap(err, "store conn max lifetime")
	}
	return conn.Option{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		Params:          cfg.Params,
		ConnString:      cfg.ConnString,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: lifetime,
	}, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// fixedPoint converts a configured decimal into a 1e-9 fixed-point price.
func fixedPoint(d decimal.Decimal) (int64, error) {
	return record.ParsePrice(d.String())
}
