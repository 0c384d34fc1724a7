package importer

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Daniil-33/trading-journal-back/internal/forexfactory"
	"github.com/Daniil-33/trading-journal-back/internal/ingest"
	"github.com/Daniil-33/trading-journal-back/pkg/market"
)

const (
	KindIndicators   = "indicators"
	KindPublications = "publications"
)

// IndicatorStore persists indicators and resolves their stored ids.
type IndicatorStore interface {
	ingest.BulkPersister[market.Indicator]
	ingest.ExistenceChecker
	IDsByExternalID(ctx context.Context) (map[string]int64, error)
	Count(ctx context.Context) (int64, error)
}

// PublicationStore persists indicator publications.
type PublicationStore interface {
	ingest.BulkPersister[market.IndicatorPublication]
	ingest.ExistenceChecker
	ingest.PublicationStats
}

// KeyRecorder learns natural keys that are known to be stored. A checker that
// also implements it is told about every batch the engine stored.
type KeyRecorder interface {
	Remember(ctx context.Context, keys ...string) error
}

// IndicatorImporter imports a calendar export in two passes over the file:
// indicators first, then their publications once indicator ids are known.
type IndicatorImporter struct {
	indicators   IndicatorStore
	publications PublicationStore

	indicatorCheck   ingest.ExistenceChecker
	publicationCheck ingest.ExistenceChecker

	engine   ingest.EngineConfig
	logger   *zap.Logger
	observer ingest.BatchObserver
}

// NewIndicatorImporter looks existing keys up in the stores themselves unless
// WithCheckers replaces them.
func NewIndicatorImporter(indicators IndicatorStore, publications PublicationStore, engine ingest.EngineConfig, logger *zap.Logger) *IndicatorImporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndicatorImporter{
		indicators:       indicators,
		publications:     publications,
		indicatorCheck:   indicators,
		publicationCheck: publications,
		engine:           engine,
		logger:           logger.Named("indicators"),
	}
}

// WithCheckers replaces the existence checkers used by the dedup gates, e.g. with a cache in front of the stores
func (im *IndicatorImporter) WithCheckers(indicators, publications ingest.ExistenceChecker) *IndicatorImporter {
	if indicators != nil {
		im.indicatorCheck = indicators
	}
	if publications != nil {
		im.publicationCheck = publications
	}
	return im
}

func (im *IndicatorImporter) WithObserver(o ingest.BatchObserver) *IndicatorImporter {
	im.observer = o
	return im
}

// Run imports the export at path. The error is non-nil only when the file cannot be opened.
func (im *IndicatorImporter) Run(ctx context.Context, path string) (ingest.RunSummary, error) {
	agg := ingest.NewAggregator(uuid.NewString(), KindIndicators)

	if _, err := os.Stat(path); err != nil {
		return agg.Summary(), fmt.Errorf("indicator export: %w", err)
	}

	agg.Add(im.importIndicators(ctx, path))

	switch ids, err := im.resolveIDs(ctx); {
	case ctx.Err() != nil:
		agg.Add(ingest.UnitSummary{Key: KindPublications, Stats: ingest.Stats{Cancelled: true}, Skipped: "cancelled before start"})
	case err != nil:
		agg.Warn("publications not imported: %v", err)
		agg.Add(ingest.UnitSummary{Key: KindPublications, Skipped: err.Error()})
	default:
		agg.Add(im.importPublications(ctx, path, ids))
	}

	summary := agg.Summary()
	im.logger.Info("indicator import finished",
		zap.String("run_id", summary.RunID),
		zap.Int("inserted", summary.Totals.Inserted),
		zap.Int("skipped", summary.Totals.Skipped),
		zap.Int("duplicates", summary.Totals.Duplicates),
		zap.Int("failed", summary.Totals.Failed),
		zap.Bool("cancelled", summary.Cancelled()))
	return summary, nil
}

func (im *IndicatorImporter) importIndicators(ctx context.Context, path string) ingest.UnitSummary {
	logger := im.logger.With(zap.String("unit", KindIndicators))
	logFileInfo(logger, path)

	seq, report := forexfactory.IndicatorsFromFile(path)
	gate := ingest.NewDedupGate(im.indicatorCheck, indicatorKey, logger)
	persist := rememberStored[market.Indicator](im.indicators, im.indicatorCheck, indicatorKey, logger)

	stats := newEngine(im, KindIndicators, persist, logger).
		Run(ctx, gate.Filter(ctx, seq))
	gate.Report().ApplyTo(&stats)
	fs := foldReport(logger, path, report, &stats)

	summary := ingest.UnitSummary{Key: KindIndicators, Files: []ingest.FileSummary{fs}, Stats: stats}

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), describeTimeout)
	defer cancel()
	if n, err := im.indicators.Count(dctx); err != nil {
		logger.Warn("failed to count indicators", zap.Error(err))
		summary.Stats.AddError("count indicators: %v", err)
	} else {
		summary.Stored = &ingest.DatasetInfo{Key: KindIndicators, Count: n}
	}
	return summary
}

func (im *IndicatorImporter) resolveIDs(ctx context.Context) (map[string]int64, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	ids, err := im.indicators.IDsByExternalID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve indicator ids: %w", err)
	}
	im.logger.Info("indicator ids resolved", zap.Int("indicators", len(ids)))
	return ids, nil
}

func (im *IndicatorImporter) importPublications(ctx context.Context, path string, ids map[string]int64) ingest.UnitSummary {
	logger := im.logger.With(zap.String("unit", KindPublications))

	seq, report := forexfactory.PublicationsFromFile(path)
	var unresolved ingest.Stats
	touched := make(map[string]int64)
	resolved := resolvePublications(seq, ids, touched, logger, &unresolved)
	gate := ingest.NewDedupGate(im.publicationCheck, publicationKey, logger)
	persist := rememberStored[market.IndicatorPublication](im.publications, im.publicationCheck, publicationKey, logger)

	stats := newEngine(im, KindPublications, persist, logger).
		WithTimeOf(func(p market.IndicatorPublication) time.Time { return p.Timestamp }).
		Run(ctx, gate.Filter(ctx, resolved))
	gate.Report().ApplyTo(&stats)
	stats.Merge(unresolved)
	fs := foldReport(logger, path, report, &stats)

	summary := ingest.UnitSummary{Key: KindPublications, Files: []ingest.FileSummary{fs}, Stats: stats}
	im.describePublications(ctx, touched, &summary, logger)
	return summary
}

// describePublications fills the stored publication state of every indicator
// the file referenced, and their total, into summary.
func (im *IndicatorImporter) describePublications(ctx context.Context, touched map[string]int64, summary *ingest.UnitSummary, logger *zap.Logger) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), describeTimeout)
	defer cancel()

	total := ingest.DatasetInfo{Key: KindPublications}
	for _, ext := range slices.Sorted(maps.Keys(touched)) {
		info, err := ingest.DescribeIndicator(dctx, im.publications, ext, touched[ext])
		if err != nil {
			logger.Warn("failed to describe indicator", zap.String("indicator", ext), zap.Error(err))
			summary.Stats.AddError("%v", err)
			continue
		}
		summary.Breakdown = append(summary.Breakdown, info)
		total.Add(info)
	}
	summary.Stored = &total
}

// resolvePublications sets the stored indicator id on every publication and notes
// it in touched. Publications of an indicator that is not stored are counted as
// skipped, with one error per indicator.
func resolvePublications(seq iter.Seq[market.IndicatorPublication], ids, touched map[string]int64, logger *zap.Logger, stats *ingest.Stats) iter.Seq[market.IndicatorPublication] {
	warned := make(map[string]struct{})
	return func(yield func(market.IndicatorPublication) bool) {
		for p := range seq {
			id, ok := ids[p.IndicatorExternalID]
			if !ok {
				stats.Skipped++
				if _, seen := warned[p.IndicatorExternalID]; !seen {
					warned[p.IndicatorExternalID] = struct{}{}
					stats.AddError("indicator %s: not stored, publications skipped", p.IndicatorExternalID)
					logger.Warn("no stored indicator for publications", zap.String("indicator", p.IndicatorExternalID))
				}
				continue
			}
			p.IndicatorID = id
			touched[p.IndicatorExternalID] = id
			if !yield(p) {
				return
			}
		}
	}
}

func newEngine[T any](im *IndicatorImporter, kind string, persist ingest.BulkPersister[T], logger *zap.Logger) *ingest.Engine[T] {
	cfg := im.engine
	cfg.Kind = kind
	engine := ingest.NewEngine(cfg, persist, logger)
	if im.observer != nil {
		engine.WithObserver(im.observer)
	}
	return engine
}

func indicatorKey(ind market.Indicator) string { return ind.ExternalID }

func publicationKey(p market.IndicatorPublication) string { return p.ExternalEventID }

// rememberStored hands the keys of every record a successful batch left in
// storage, inserted or colliding, to checker when it is a KeyRecorder.
// A failure to remember is only logged.
func rememberStored[T any](persist ingest.BulkPersister[T], checker ingest.ExistenceChecker, keyOf func(T) string, logger *zap.Logger) ingest.BulkPersister[T] {
	rec, ok := checker.(KeyRecorder)
	if !ok {
		return persist
	}
	return ingest.BulkPersistFunc[T](func(ctx context.Context, batch []T) (ingest.BulkResult, error) {
		res, err := persist.BulkInsert(ctx, batch)
		if err != nil {
			return res, err
		}

		failed := make(map[int]struct{})
		for _, f := range res.Failures {
			if !f.Duplicate {
				failed[f.Index] = struct{}{}
			}
		}
		keys := make([]string, 0, len(batch))
		for i, r := range batch {
			if _, skip := failed[i]; !skip {
				keys = append(keys, keyOf(r))
			}
		}
		if err := rec.Remember(ctx, keys...); err != nil {
			logger.Warn("failed to remember stored keys", zap.Int("keys", len(keys)), zap.Error(err))
		}
		return res, nil
	})
}
