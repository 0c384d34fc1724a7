package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Daniil-33/trading-journal-back/internal/ingest"
	"github.com/Daniil-33/trading-journal-back/pkg/market"
)

const (
	KindCandles = "candles"

	describeTimeout = 30 * time.Second
)

// CandleOptions configures a candle run. Exactly one of Root or File is used; File wins.
type CandleOptions struct {
	Root                string
	File                string
	Layout              ingest.Layout
	Extension           string
	SkipHeader          bool
	Workers             int
	BatchSize           int
	BatchTimeout        time.Duration
	MaxBatchesPerSecond float64
}

// CandleImporter imports candle files into a CandleStore. Units run on a
// bounded worker pool; each unit is imported by a single goroutine.
type CandleImporter struct {
	store    ingest.CandleStore
	opts     CandleOptions
	logger   *zap.Logger
	observer ingest.BatchObserver
	limiter  *rate.Limiter
}

func NewCandleImporter(store ingest.CandleStore, opts CandleOptions, logger *zap.Logger) *CandleImporter {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &CandleImporter{store: store, opts: opts, logger: logger.Named("candles")}
	if opts.MaxBatchesPerSecond > 0 {
		// shared by every worker
		c.limiter = rate.NewLimiter(rate.Limit(opts.MaxBatchesPerSecond), 1)
	}
	return c
}

// WithObserver reports every dispatched batch to o
func (c *CandleImporter) WithObserver(o ingest.BatchObserver) *CandleImporter {
	c.observer = o
	return c
}

// Run discovers the import units and imports them. The error is non-nil only
// when nothing could be imported: the root is unreadable or the file name does
// not identify a dataset. Per-line, per-batch and per-file problems end up in
// the summary.
func (c *CandleImporter) Run(ctx context.Context) (ingest.RunSummary, error) {
	agg := ingest.NewAggregator(uuid.NewString(), KindCandles)

	units, err := c.units(agg)
	if err != nil {
		return agg.Summary(), err
	}
	c.logger.Info("import units discovered", zap.Int("units", len(units)), zap.Int("workers", c.opts.Workers))

	var g errgroup.Group
	g.SetLimit(c.opts.Workers)
	for _, unit := range units {
		if ctx.Err() != nil {
			agg.Add(ingest.UnitSummary{
				Key:     unit.Key.String(),
				Stats:   ingest.Stats{Cancelled: true},
				Skipped: "cancelled before start",
			})
			continue
		}
		g.Go(func() error {
			agg.Add(c.importUnit(ctx, unit))
			return nil
		})
	}
	_ = g.Wait()

	summary := agg.Summary()
	c.logger.Info("candle import finished",
		zap.String("run_id", summary.RunID),
		zap.Int("units", len(summary.Units)),
		zap.Int("inserted", summary.Totals.Inserted),
		zap.Int("duplicates", summary.Totals.Duplicates),
		zap.Int("failed", summary.Totals.Failed),
		zap.Int("rejected", summary.Totals.Rejected),
		zap.Bool("cancelled", summary.Cancelled()))
	return summary, nil
}

func (c *CandleImporter) units(agg *ingest.Aggregator) ([]ingest.ImportUnit, error) {
	if c.opts.File != "" {
		key, err := ingest.ParseDatasetFilename(filepath.Base(c.opts.File), c.opts.Extension)
		if err != nil {
			return nil, fmt.Errorf("file %s: %w", c.opts.File, err)
		}
		return []ingest.ImportUnit{{Key: key, Files: []string{c.opts.File}}}, nil
	}

	d, err := ingest.Locate(c.opts.Root, ingest.LocateOptions{Layout: c.opts.Layout, Extension: c.opts.Extension})
	if err != nil {
		return nil, err
	}
	for _, w := range d.Warnings {
		agg.Warn("%s", w)
		c.logger.Warn("dataset entry skipped", zap.String("reason", w))
	}
	return ingest.GroupUnits(d.Files), nil
}

func (c *CandleImporter) importUnit(ctx context.Context, unit ingest.ImportUnit) ingest.UnitSummary {
	logger := c.logger.With(zap.String("pair", string(unit.Key.Pair)), zap.String("timeframe", string(unit.Key.Timeframe)))
	parseOpts := ingest.ParseOptions{
		Pair:       unit.Key.Pair,
		Timeframe:  unit.Key.Timeframe,
		SkipHeader: c.opts.SkipHeader,
	}

	var (
		files []ingest.FileSummary
		parse ingest.Stats
	)
	seq := func(yield func(market.Candle) bool) {
		for _, path := range unit.Files {
			logFileInfo(logger, path)
			fileSeq, report := ingest.ParseCandleFile(path, parseOpts)
			stopped := false
			for candle := range fileSeq {
				if !yield(candle) {
					stopped = true
					break
				}
			}
			files = append(files, foldReport(logger, path, report, &parse))
			if stopped {
				return
			}
		}
	}

	engine := ingest.NewEngine(ingest.EngineConfig{
		Kind:         KindCandles,
		BatchSize:    c.opts.BatchSize,
		BatchTimeout: c.opts.BatchTimeout,
		Limiter:      c.limiter,
	}, ingest.BulkPersister[market.Candle](c.store), logger).
		WithTimeOf(func(candle market.Candle) time.Time { return candle.Timestamp })
	if c.observer != nil {
		engine.WithObserver(c.observer)
	}

	start := time.Now()
	stats := engine.Run(ctx, seq)
	stats.Merge(parse)

	summary := ingest.UnitSummary{Key: unit.Key.String(), Files: files, Stats: stats}

	// storage is queried even after cancellation so the summary shows what is stored
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), describeTimeout)
	defer cancel()
	info, err := ingest.DescribeDataset(dctx, c.store, unit.Key)
	if err != nil {
		logger.Warn("failed to describe dataset", zap.Error(err))
		summary.Stats.AddError("%v", err)
	} else {
		summary.Stored = &info
	}

	logger.Info("unit imported",
		zap.Int("files", len(unit.Files)),
		zap.Int("seen", stats.Seen),
		zap.Int("inserted", stats.Inserted),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("failed", stats.Failed),
		zap.Int("errors", summary.Stats.ErrorCount()),
		zap.Int64("stored", info.Count),
		zap.Duration("took", time.Since(start)))
	return summary
}
