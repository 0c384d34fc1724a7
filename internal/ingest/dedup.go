package ingest

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"
)

// DedupReport is what a DedupGate removed from its stream
type DedupReport struct {
	Checked     int      `json:"checked" yaml:"checked"`
	Skipped     int      `json:"skipped" yaml:"skipped"`
	SkippedKeys []string `json:"skipped_keys,omitempty" yaml:"skipped_keys,omitempty"`
	Errors      []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// DedupGate drops records whose natural key is already stored or was already
// seen earlier in the same run. A failed lookup is recorded and the record is
// let through; the storage uniqueness constraint still guards it.
type DedupGate[T any] struct {
	keyOf   func(T) string
	checker ExistenceChecker
	logger  *zap.Logger

	seen   map[string]struct{}
	report DedupReport
}

// NewDedupGate returns a gate that looks keys up in checker
func NewDedupGate[T any](checker ExistenceChecker, keyOf func(T) string, logger *zap.Logger) *DedupGate[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DedupGate[T]{
		keyOf:   keyOf,
		checker: checker,
		logger:  logger,
		seen:    make(map[string]struct{}),
	}
}

// Filter returns seq without the records that are already stored.
// Once ctx is done the record in hand is passed on unchecked and the
// sequence stops, so the consumer can account for it.
func (g *DedupGate[T]) Filter(ctx context.Context, seq iter.Seq[T]) iter.Seq[T] {
	return func(yield func(T) bool) {
		for rec := range seq {
			if ctx.Err() != nil {
				yield(rec)
				return
			}
			key := g.keyOf(rec)
			g.report.Checked++

			if _, dup := g.seen[key]; dup {
				g.skip(key)
				continue
			}
			g.seen[key] = struct{}{}

			exists, err := g.checker.Exists(ctx, key)
			if err != nil {
				if ctx.Err() != nil {
					yield(rec)
					return
				}
				g.report.Errors = append(g.report.Errors, fmt.Sprintf("lookup %s: %v", key, err))
				g.logger.Warn("existence check failed", zap.String("key", key), zap.Error(err))
			} else if exists {
				g.skip(key)
				continue
			}

			if !yield(rec) {
				return
			}
		}
	}
}

func (g *DedupGate[T]) skip(key string) {
	g.report.Skipped++
	g.report.SkippedKeys = append(g.report.SkippedKeys, key)
}

// Report returns what the gate has removed so far
func (g *DedupGate[T]) Report() DedupReport {
	r := g.report
	r.SkippedKeys = append([]string(nil), g.report.SkippedKeys...)
	r.Errors = append([]string(nil), g.report.Errors...)
	return r
}

// ApplyTo adds the gate outcome to stats
func (r DedupReport) ApplyTo(stats *Stats) {
	stats.Skipped += r.Skipped
	stats.Errors = append(stats.Errors, r.Errors...)
}
