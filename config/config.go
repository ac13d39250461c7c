// Package config loads shard settings from a YAML file.
//
//	dir: ./data
//	vectors:
//	  "":
//	    size: 384
//	    distance: cosine
//	wal:
//	  backend: file
//	  durability: sync
//	  compression: true
//	  codec: go-json
//	search:
//	  parallelism: 8
//	  full_scan_threshold: 10000
//	snapshot:
//	  rate_limit: 0
//	log:
//	  level: info
//	  format: text
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/vecshard"
	"github.com/hupe1980/vecshard/codec"
	"github.com/hupe1980/vecshard/distance"
	"github.com/hupe1980/vecshard/segment"
	"github.com/hupe1980/vecshard/wal"
)

// ErrInvalidConfig is returned by Validate and Load.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the file representation of a shard's settings.
type Config struct {
	Dir      string            `yaml:"dir"`
	Vectors  map[string]Vector `yaml:"vectors"`
	WAL      WAL               `yaml:"wal"`
	Search   Search            `yaml:"search"`
	Snapshot Snapshot          `yaml:"snapshot"`
	Log      Log               `yaml:"log"`
}

// Vector configures one named vector.
type Vector struct {
	Size     int    `yaml:"size"`
	Distance string `yaml:"distance"`
}

// WAL configures the write-ahead log.
type WAL struct {
	Backend     string `yaml:"backend"`
	Durability  string `yaml:"durability"`
	Compression bool   `yaml:"compression"`
	Codec       string `yaml:"codec"`
}

// Search configures query execution.
type Search struct {
	Parallelism       int `yaml:"parallelism"`
	FullScanThreshold int `yaml:"full_scan_threshold"`
}

// Snapshot configures snapshot uploads.
type Snapshot struct {
	// RateLimit is in bytes per second; 0 is unlimited.
	RateLimit int `yaml:"rate_limit"`
}

// Log configures the logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a config with every setting at its default.
func Default() Config {
	return Config{
		Dir: "data",
		WAL: WAL{
			Backend:    string(vecshard.WALBackendFile),
			Durability: wal.DurabilitySync.String(),
			Codec:      codec.Default.Name(),
		},
		Search: Search{
			FullScanThreshold: segment.DefaultFullScanThreshold,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path on top of Default and validates it.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every setting.
func (c Config) Validate() error {
	var errs []error
	if c.Dir == "" {
		errs = append(errs, errors.New("dir is required"))
	}
	if len(c.Vectors) == 0 {
		errs = append(errs, errors.New("at least one vector is required"))
	}
	if _, err := c.vectors(); err != nil {
		errs = append(errs, err)
	}
	switch vecshard.WALBackend(c.WAL.Backend) {
	case vecshard.WALBackendFile, vecshard.WALBackendPebble:
	default:
		errs = append(errs, fmt.Errorf("unknown wal backend %q", c.WAL.Backend))
	}
	if _, err := wal.ParseDurability(c.WAL.Durability); err != nil {
		errs = append(errs, err)
	}
	if _, err := codec.ByName(c.WAL.Codec); err != nil {
		errs = append(errs, err)
	}
	if c.Search.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("search.parallelism must not be negative, got %d", c.Search.Parallelism))
	}
	if c.Snapshot.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("snapshot.rate_limit must not be negative, got %d", c.Snapshot.RateLimit))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json", "":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) vectors() (map[string]segment.VectorConfig, error) {
	out := make(map[string]segment.VectorConfig, len(c.Vectors))
	for name, v := range c.Vectors {
		m, err := distance.ParseMetric(v.Distance)
		if err != nil {
			return nil, fmt.Errorf("vector %q: %w", name, err)
		}
		vc := segment.VectorConfig{Size: v.Size, Distance: m}
		if err := vc.Validate(); err != nil {
			return nil, fmt.Errorf("vector %q: %w", name, err)
		}
		out[name] = vc
	}
	return out, nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

// Logger builds the configured logger.
func (c Config) Logger() *vecshard.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if strings.EqualFold(c.Log.Format, "json") {
		return vecshard.NewJSONLogger(level)
	}
	return vecshard.NewTextLogger(level)
}

// Options converts the config into shard options. The config must be valid.
func (c Config) Options() ([]vecshard.Option, error) {
	vectors, err := c.vectors()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	durability, err := wal.ParseDurability(c.WAL.Durability)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cdc, err := codec.ByName(c.WAL.Codec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	opts := []vecshard.Option{
		vecshard.WithVectors(vectors),
		vecshard.WithWALBackend(vecshard.WALBackend(c.WAL.Backend)),
		vecshard.WithDurability(durability),
		vecshard.WithWALCompression(c.WAL.Compression),
		vecshard.WithCodec(cdc),
		vecshard.WithFullScanThreshold(c.Search.FullScanThreshold),
		vecshard.WithSnapshotRateLimit(c.Snapshot.RateLimit),
		vecshard.WithLogger(c.Logger()),
	}
	if c.Search.Parallelism > 0 {
		opts = append(opts, vecshard.WithSearchParallelism(c.Search.Parallelism))
	}
	return opts, nil
}
