package vecshard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecshard/blobstore"
	"github.com/hupe1980/vecshard/internal/search"
	"github.com/hupe1980/vecshard/internal/segment/plain"
	"github.com/hupe1980/vecshard/internal/update"
	"github.com/hupe1980/vecshard/model"
	"github.com/hupe1980/vecshard/operation"
	"github.com/hupe1980/vecshard/segment"
	"github.com/hupe1980/vecshard/snapshot"
	"github.com/hupe1980/vecshard/wal"
)

const tracerName = "github.com/hupe1980/vecshard"

func defaultTracer() trace.Tracer { return otel.Tracer(tracerName) }

// Shard is a WAL plus the segments it feeds.
//
// Update and Search are safe for concurrent use. Updates are serialized by
// the WAL mutex; searches never take it.
type Shard struct {
	walMu  sync.Mutex
	wal    *wal.SerdeWAL
	holder *segment.Holder
	opts   options
	closed atomic.Bool
}

// Open opens the shard stored in dir, creating it if needed.
//
// The shard starts with one empty appendable segment configured by
// WithVectors, and the WAL is replayed into it before Open returns.
func Open(ctx context.Context, dir string, optFns ...Option) (*Shard, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	if len(o.vectors) == 0 {
		return nil, fmt.Errorf("%w: no vectors configured", ErrInvalidArgument)
	}

	log, err := openLog(dir, o)
	if err != nil {
		return nil, err
	}

	seg, err := plain.New(0, o.vectors, plain.WithHardwareCounter(o.hardware))
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	holder, err := segment.NewHolder(seg)
	if err != nil {
		log.Close()
		return nil, err
	}

	s, err := newShard(log, holder, o)
	if err != nil {
		log.Close()
		return nil, err
	}
	if _, err := s.Recover(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// OpenLog opens the WAL Open would use for dir, without replaying it or
// creating segments. Only the WAL backend and durability options apply.
func OpenLog(dir string, optFns ...Option) (wal.Log, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	return openLog(dir, o)
}

func openLog(dir string, o options) (wal.Log, error) {
	walDir := filepath.Join(dir, "wal")
	if err := os.MkdirAll(walDir, 0o755); err != nil {
		return nil, err
	}

	var (
		log wal.Log
		err error
	)
	walOpts := wal.Options{Durability: o.durability}
	switch o.backend {
	case WALBackendFile, "":
		log, err = wal.OpenFile(filepath.Join(walDir, "wal.log"), walOpts)
	case WALBackendPebble:
		log, err = wal.OpenPebble(walDir, walOpts)
	default:
		return nil, fmt.Errorf("%w: unknown wal backend %q", ErrInvalidArgument, o.backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}
	return log, nil
}

// New creates a shard over an already opened log and holder. The log is
// not replayed; call Recover to do so.
func New(log wal.Log, holder *segment.Holder, optFns ...Option) (*Shard, error) {
	if log == nil || holder == nil {
		return nil, fmt.Errorf("%w: log and holder are required", ErrInvalidArgument)
	}
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	return newShard(log, holder, o)
}

func newShard(log wal.Log, holder *segment.Holder, o options) (*Shard, error) {
	w, err := wal.NewSerde(log, wal.WithCodec(o.codec), wal.WithCompression(o.compression))
	if err != nil {
		return nil, err
	}
	return &Shard{wal: w, holder: holder, opts: o}, nil
}

// Update writes op to the WAL and applies it to the segments.
//
// It returns the operation id on success and on application failure. A
// durability failure returns a *ServiceError and no id; an application
// failure returns an *ApplyError and leaves the operation in the WAL.
func (s *Shard) Update(ctx context.Context, op operation.Operation) (uint64, error) {
	if op == nil {
		return 0, fmt.Errorf("%w: nil operation", ErrInvalidArgument)
	}
	if s.closed.Load() {
		return 0, ErrClosed
	}

	ctx, span := s.opts.tracer.Start(ctx, "shard.update", trace.WithAttributes(
		attribute.String("operation.kind", op.Kind().String()),
		attribute.String("operation.name", op.Name()),
	))
	defer span.End()

	start := time.Now()
	opID, err := s.update(op)
	s.opts.metrics.RecordUpdate(op.Kind(), time.Since(start), err)
	s.opts.logger.LogUpdate(ctx, opID, op, err)

	if opID > 0 {
		span.SetAttributes(attribute.Int64("operation.id", int64(opID)))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return opID, err
}

func (s *Shard) update(op operation.Operation) (uint64, error) {
	s.walMu.Lock()
	defer s.walMu.Unlock()

	if s.closed.Load() {
		return 0, ErrClosed
	}
	opID, err := s.wal.Write(op)
	if err != nil {
		return 0, &ServiceError{Op: "wal write", Err: err}
	}
	if _, err := s.apply(opID, op); err != nil {
		return opID, err
	}
	return opID, nil
}

// apply dispatches op to the matching update routine. Must be called with
// walMu held.
func (s *Shard) apply(opID uint64, op operation.Operation) (int, error) {
	var (
		n   int
		err error
	)
	switch o := op.(type) {
	case operation.PointOperation:
		n, err = update.ProcessPointOperation(s.holder, opID, o)
	case operation.VectorOperation:
		n, err = update.ProcessVectorOperation(s.holder, opID, o)
	case operation.PayloadOperation:
		n, err = update.ProcessPayloadOperation(s.holder, opID, o)
	case operation.FieldIndexOperation:
		n, err = update.ProcessFieldIndexOperation(s.holder, opID, o)
	default:
		err = fmt.Errorf("unsupported operation %T", op)
	}
	if err != nil {
		return n, &ApplyError{OpID: opID, Kind: op.Kind(), Err: err}
	}
	return n, nil
}

// Search runs req against every segment and merges the results.
func (s *Shard) Search(ctx context.Context, req *model.SearchRequest) ([]model.ScoredPoint, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidArgument)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}

	ctx, span := s.opts.tracer.Start(ctx, "shard.search", trace.WithAttributes(
		attribute.Int("search.limit", req.Limit),
		attribute.Int("search.offset", req.Offset),
		attribute.String("search.vector", req.VectorName),
	))
	defer span.End()

	start := time.Now()
	res, err := s.search(ctx, req)
	s.opts.metrics.RecordSearch(req.Limit, len(res), time.Since(start), err)
	s.opts.logger.LogSearch(ctx, req.Limit, req.Offset, len(res), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("search.results", len(res)))
	return res, nil
}

func (s *Shard) search(ctx context.Context, req *model.SearchRequest) ([]model.ScoredPoint, error) {
	segs := s.holder.Read().NonAppendableThenAppendable()
	// Each segment must return enough candidates to fill the window.
	top := req.Offset + req.Limit
	if top < req.Offset {
		top = math.MaxInt
	}
	opts := segment.SearchBatchOptions{
		WithPayload: req.PayloadSelector(),
		WithVector:  req.VectorSelector(),
		Filter:      req.Filter,
		Top:         top,
		Params:      req.Params,
	}
	queries := [][]float32{req.Vector}

	batches := make([][]model.ScoredPoint, len(segs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.parallelism)
	for i, seg := range segs {
		g.Go(func() error {
			qc := segment.NewQueryContext(s.opts.fullScanThreshold, s.opts.hardware)
			res, err := seg.SearchBatch(gctx, req.VectorName, queries, opts, qc)
			if err != nil {
				return &SegmentError{SegmentID: seg.ID(), Err: err}
			}
			if len(res) != len(queries) {
				return &SegmentError{SegmentID: seg.ID(), Err: fmt.Errorf(
					"%w: %d result lists for %d queries", ErrContractViolation, len(res), len(queries))}
			}
			batches[i] = res[0]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return search.Merge(batches, req.Offset, req.Limit, req.ScoreThreshold), nil
}

// Retrieve returns the newest version of a point across all segments.
func (s *Shard) Retrieve(id model.PointID) (model.Record, error) {
	if s.closed.Load() {
		return model.Record{}, ErrClosed
	}
	var (
		best  model.Record
		found bool
	)
	for _, seg := range s.holder.Read().Holding(id) {
		rec, err := seg.Retrieve(id)
		if err != nil {
			if errors.Is(err, segment.ErrPointNotFound) {
				continue
			}
			return model.Record{}, &SegmentError{SegmentID: seg.ID(), Err: err}
		}
		if !found || rec.Version > best.Version {
			best, found = rec, true
		}
	}
	if !found {
		return model.Record{}, fmt.Errorf("%w: %d", ErrPointNotFound, id)
	}
	return best, nil
}

// Recover replays the whole WAL through the update routines without
// writing to it. Operations that fail to apply are logged and counted but do
// not stop the replay; an entry that cannot be decoded does.
//
// Segments skip operations older than what they hold, so replaying into
// segments that already saw a prefix of the WAL is safe.
func (s *Shard) Recover(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	s.walMu.Lock()
	defer s.walMu.Unlock()

	start := time.Now()
	var replayed, failed int
	err := s.wal.Replay(1, func(id uint64, op operation.Operation) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		replayed++
		if _, err := s.apply(id, op); err != nil {
			failed++
			s.opts.logger.WarnContext(ctx, "replayed operation not applied",
				"op_id", id,
				"operation", op.Name(),
				"error", err,
			)
		}
		return nil
	})
	s.opts.metrics.RecordRecovery(replayed, failed, time.Since(start), err)
	s.opts.logger.LogRecovery(ctx, replayed, failed, err)
	if err != nil {
		return replayed, fmt.Errorf("recover: %w", err)
	}
	return replayed, nil
}

// Snapshot writes the current WAL to store under name. Updates are blocked
// while the snapshot is taken.
func (s *Shard) Snapshot(ctx context.Context, store blobstore.Store, name string) (snapshot.Info, error) {
	if s.closed.Load() {
		return snapshot.Info{}, ErrClosed
	}
	s.walMu.Lock()
	defer s.walMu.Unlock()

	var opts []snapshot.Option
	if s.opts.snapshotRate > 0 {
		opts = append(opts, snapshot.WithRateLimit(s.opts.snapshotRate))
	}
	info, err := snapshot.Create(ctx, store, name, s.wal.Log(), opts...)
	s.opts.logger.LogSnapshot(ctx, name, info.Entries, err)
	return info, err
}

// LastOperationID returns the id of the newest operation in the WAL.
func (s *Shard) LastOperationID() uint64 {
	return s.wal.LastID()
}

// Segments returns the current segments, non-appendable first.
func (s *Shard) Segments() []segment.Segment {
	return s.holder.Read().NonAppendableThenAppendable()
}

// Holder returns the segment holder. Segments added to it are searched and
// updated like the ones the shard created.
func (s *Shard) Holder() *segment.Holder { return s.holder }

// Close closes the WAL. Closing twice returns ErrClosed.
func (s *Shard) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	s.walMu.Lock()
	defer s.walMu.Unlock()
	return s.wal.Close()
}
