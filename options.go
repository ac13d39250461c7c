package vecshard

import (
	"runtime"

	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/vecshard/codec"
	"github.com/hupe1980/vecshard/segment"
	"github.com/hupe1980/vecshard/telemetry"
	"github.com/hupe1980/vecshard/wal"
)

// WALBackend selects the log implementation Open uses.
type WALBackend string

const (
	// WALBackendFile stores the WAL in a single append-only file.
	WALBackendFile WALBackend = "file"
	// WALBackendPebble stores the WAL in a Pebble database.
	WALBackendPebble WALBackend = "pebble"
)

type options struct {
	logger            *Logger
	metrics           MetricsCollector
	tracer            trace.Tracer
	hardware          telemetry.Counter
	vectors           map[string]segment.VectorConfig
	backend           WALBackend
	durability        wal.Durability
	compression       bool
	codec             codec.Codec
	parallelism       int
	fullScanThreshold int
	snapshotRate      int
}

func defaultOptions() options {
	return options{
		logger:            NoopLogger(),
		metrics:           NoopMetricsCollector{},
		tracer:            defaultTracer(),
		hardware:          telemetry.Disposable(),
		backend:           WALBackendFile,
		durability:        wal.DurabilitySync,
		codec:             codec.Default,
		parallelism:       runtime.GOMAXPROCS(0),
		fullScanThreshold: segment.DefaultFullScanThreshold,
	}
}

// Option configures a Shard.
type Option func(*options)

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics collector. Nil disables collection.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithTracer sets the tracer for shard.update and shard.search spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithHardwareCounter sets the sink for hardware measurements of searches
// and segment writes.
func WithHardwareCounter(c telemetry.Counter) Option {
	return func(o *options) {
		if c != nil {
			o.hardware = c
		}
	}
}

// WithVectors configures the named vectors of the segment Open creates.
//
// Example:
//
//	shard, err := vecshard.Open(ctx, "./data", vecshard.WithVectors(map[string]segment.VectorConfig{
//	    "": {Size: 384, Distance: distance.MetricCosine},
//	}))
func WithVectors(vectors map[string]segment.VectorConfig) Option {
	return func(o *options) { o.vectors = vectors }
}

// WithWALBackend selects the WAL implementation used by Open.
func WithWALBackend(b WALBackend) Option {
	return func(o *options) { o.backend = b }
}

// WithDurability sets when WAL appends are acknowledged.
func WithDurability(d wal.Durability) Option {
	return func(o *options) { o.durability = d }
}

// WithWALCompression enables zstd compression of WAL entries.
func WithWALCompression(enabled bool) Option {
	return func(o *options) { o.compression = enabled }
}

// WithCodec sets the codec for new WAL entries. Nil selects codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithSearchParallelism limits how many segments a search queries at once.
// Values below 1 query segments one at a time.
func WithSearchParallelism(n int) Option {
	return func(o *options) { o.parallelism = max(n, 1) }
}

// WithFullScanThreshold sets the filtered-search candidate count above which
// segments scan all points.
func WithFullScanThreshold(n int) Option {
	return func(o *options) { o.fullScanThreshold = n }
}

// WithSnapshotRateLimit caps snapshot upload throughput in bytes per second.
// Zero means unlimited.
func WithSnapshotRateLimit(bytesPerSec int) Option {
	return func(o *options) { o.snapshotRate = bytesPerSec }
}
