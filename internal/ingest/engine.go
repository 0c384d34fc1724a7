package ingest

import (
	"context"
	"errors"
	"iter"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultBatchSize = 10000

// BatchOutcome describes one dispatched batch
type BatchOutcome struct {
	Size       int
	Inserted   int
	Duplicates int
	Failed     int
	Duration   time.Duration
	Err        error
}

// BatchObserver is notified after every dispatched batch
type BatchObserver interface {
	ObserveBatch(kind string, o BatchOutcome)
}

// EngineConfig controls batching. Zero values fall back to defaults.
type EngineConfig struct {
	Kind         string
	BatchSize    int
	BatchTimeout time.Duration
	Limiter      *rate.Limiter
}

// Engine drains a record sequence into storage in fixed-size batches, one
// batch in flight at a time. Cancellation is checked between batches; a
// batch already handed to storage always runs to completion.
type Engine[T any] struct {
	cfg      EngineConfig
	persist  BulkPersister[T]
	logger   *zap.Logger
	timeOf   func(T) time.Time
	observer BatchObserver
}

// NewEngine returns an Engine writing to persist
func NewEngine[T any](cfg EngineConfig, persist BulkPersister[T], logger *zap.Logger) *Engine[T] {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine[T]{cfg: cfg, persist: persist, logger: logger}
}

// WithTimeOf makes the engine track the oldest and newest record timestamps
func (e *Engine[T]) WithTimeOf(f func(T) time.Time) *Engine[T] {
	e.timeOf = f
	return e
}

// WithObserver registers o to be told about every batch
func (e *Engine[T]) WithObserver(o BatchObserver) *Engine[T] {
	e.observer = o
	return e
}

// Run consumes seq and returns what happened to every record it yielded.
// Stats.Cancelled is set when ctx ended the run before seq was exhausted.
func (e *Engine[T]) Run(ctx context.Context, seq iter.Seq[T]) Stats {
	var stats Stats
	batch := make([]T, 0, e.cfg.BatchSize)

	for rec := range seq {
		stats.Seen++
		if ctx.Err() != nil {
			stats.Abandoned++
			break
		}
		if e.timeOf != nil {
			stats.ObserveTime(e.timeOf(rec))
		}
		batch = append(batch, rec)
		if len(batch) < e.cfg.BatchSize {
			continue
		}
		if e.dispatch(ctx, batch, &stats) {
			batch = make([]T, 0, e.cfg.BatchSize)
		}
		if ctx.Err() != nil {
			break
		}
	}

	if ctx.Err() != nil {
		stats.Cancelled = true
		stats.Abandoned += len(batch)
		e.logger.Warn("import cancelled",
			zap.String("kind", e.cfg.Kind),
			zap.Int("batches", stats.Batches),
			zap.Int("abandoned", stats.Abandoned))
		return stats
	}
	if len(batch) > 0 && !e.dispatch(ctx, batch, &stats) {
		stats.Cancelled = true
		stats.Abandoned += len(batch)
	}
	return stats
}

// dispatch sends one batch. It returns false when ctx ended while waiting for the limiter.
func (e *Engine[T]) dispatch(ctx context.Context, batch []T, stats *Stats) bool {
	if e.cfg.Limiter != nil {
		if err := e.cfg.Limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return false
			}
			e.logger.Warn("rate limiter rejected wait", zap.String("kind", e.cfg.Kind), zap.Error(err))
		}
	}

	bctx := context.WithoutCancel(ctx)
	if e.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		bctx, cancel = context.WithTimeout(bctx, e.cfg.BatchTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := e.persist.BulkInsert(bctx, batch)
	outcome := e.account(batch, res, err, stats)
	outcome.Duration = time.Since(start)

	if e.observer != nil {
		e.observer.ObserveBatch(e.cfg.Kind, outcome)
	}
	e.logger.Debug("batch stored",
		zap.String("kind", e.cfg.Kind),
		zap.Int("batch", stats.Batches),
		zap.Int("size", outcome.Size),
		zap.Int("inserted", outcome.Inserted),
		zap.Int("duplicates", outcome.Duplicates),
		zap.Int("failed", outcome.Failed),
		zap.Duration("took", outcome.Duration))

	return true
}

// account folds one storage result into stats
func (e *Engine[T]) account(batch []T, res BulkResult, err error, stats *Stats) BatchOutcome {
	n := len(batch)
	stats.Batches++
	o := BatchOutcome{Size: n, Err: err}

	inserted := min(max(res.Inserted, 0), n)
	if err != nil {
		stats.FailedBatches++
		o.Inserted = inserted
		o.Failed = n - inserted
		stats.Inserted += o.Inserted
		stats.Failed += o.Failed
		stats.AddError("batch %d (%d records): %v", stats.Batches, n, err)
		if errors.Is(err, context.DeadlineExceeded) {
			e.logger.Warn("batch timed out", zap.String("kind", e.cfg.Kind), zap.Int("batch", stats.Batches), zap.Duration("timeout", e.cfg.BatchTimeout))
		} else {
			e.logger.Warn("batch failed", zap.String("kind", e.cfg.Kind), zap.Int("batch", stats.Batches), zap.Error(err))
		}
		return o
	}

	o.Inserted = inserted
	for _, f := range res.Failures {
		if f.Duplicate {
			continue
		}
		o.Failed++
		stats.AddError("batch %d record %d: %s", stats.Batches, f.Index, f.Reason)
	}
	o.Failed = min(o.Failed, n-inserted)
	o.Duplicates = n - inserted - o.Failed

	stats.Inserted += o.Inserted
	stats.Duplicates += o.Duplicates
	stats.Failed += o.Failed
	return o
}
