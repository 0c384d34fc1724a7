package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Daniil-33/trading-journal-back/config"
	"github.com/Daniil-33/trading-journal-back/internal/importer"
	"github.com/Daniil-33/trading-journal-back/internal/ingest"
	"github.com/Daniil-33/trading-journal-back/pkg/cache"
	"github.com/Daniil-33/trading-journal-back/pkg/metrics"
	"github.com/Daniil-33/trading-journal-back/pkg/storage/clickhouse"
	"github.com/Daniil-33/trading-journal-back/pkg/storage/memory"
	"github.com/Daniil-33/trading-journal-back/pkg/storage/postgres"
)

// candleStore is what both candle backends provide
type candleStore interface {
	ingest.CandleStore
	importer.DatasetLister
}

func openCandleStore(ctx context.Context, cfg *config.Config) (candleStore, func(), error) {
	switch cfg.Ingest.CandleBackend {
	case "memory":
		// dry run: parse, validate and dedup against this run only
		return memory.NewCandleStore(), func() {}, nil
	case "clickhouse":
		store, err := clickhouse.NewCandleStore(ctx, cfg.ClickHouse.DSN())
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		client, err := postgres.InitializeAndMigrate(ctx, cfg.Postgres, cfg.Log.Environment, cfg.Ingest.CreateDatabase)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewCandleStore(client), func() { _ = client.Close() }, nil
	}
}

func runCandles(ctx context.Context, cfg *config.Config, log *zap.Logger, recorder *metrics.Recorder) (ingest.RunSummary, error) {
	if cfg.Ingest.Root == "" && cfg.Ingest.File == "" {
		return ingest.RunSummary{}, errMissingFlag("root or --file")
	}
	layout, err := ingest.ParseLayout(cfg.Ingest.Layout)
	if err != nil {
		return ingest.RunSummary{}, err
	}

	store, closeStore, err := openCandleStore(ctx, cfg)
	if err != nil {
		return ingest.RunSummary{}, fmt.Errorf("candle storage: %w", err)
	}
	defer closeStore()

	imp := importer.NewCandleImporter(store, importer.CandleOptions{
		Root:                cfg.Ingest.Root,
		File:                cfg.Ingest.File,
		Layout:              layout,
		Extension:           cfg.Ingest.Extension,
		SkipHeader:          cfg.Ingest.SkipHeader,
		Workers:             cfg.Ingest.Workers,
		BatchSize:           cfg.Ingest.BatchSize,
		BatchTimeout:        cfg.Ingest.BatchTimeout,
		MaxBatchesPerSecond: cfg.Ingest.MaxBatchesPerSecond,
	}, log)
	if recorder != nil {
		imp.WithObserver(recorder)
	}
	return imp.Run(ctx)
}

func runIndicators(ctx context.Context, cfg *config.Config, log *zap.Logger, recorder *metrics.Recorder) (ingest.RunSummary, error) {
	if cfg.Ingest.File == "" {
		return ingest.RunSummary{}, errMissingFlag("file")
	}

	client, err := postgres.InitializeAndMigrate(ctx, cfg.Postgres, cfg.Log.Environment, cfg.Ingest.CreateDatabase)
	if err != nil {
		return ingest.RunSummary{}, fmt.Errorf("indicator storage: %w", err)
	}
	defer client.Close()

	publications, err := postgres.NewPublicationStore(ctx, cfg.Postgres.URL(cfg.Log.Environment))
	if err != nil {
		return ingest.RunSummary{}, fmt.Errorf("publication storage: %w", err)
	}
	defer publications.Close()
	if err := publications.EnsureSchema(ctx); err != nil {
		return ingest.RunSummary{}, err
	}

	indicators := postgres.NewIndicatorStore(client)
	imp := importer.NewIndicatorImporter(indicators, publications, ingest.EngineConfig{
		BatchSize:    cfg.Ingest.BatchSize,
		BatchTimeout: cfg.Ingest.BatchTimeout,
	}, log)
	if recorder != nil {
		imp.WithObserver(recorder)
	}

	if cfg.Ingest.DedupCache {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("dedup cache unavailable, using storage lookups", zap.Error(err))
		} else {
			defer rdb.Close()
			imp.WithCheckers(
				cache.NewSeenKeyCache(rdb, cfg.Redis.Prefix, "indicator", cfg.Redis.TTL, indicators),
				cache.NewSeenKeyCache(rdb, cfg.Redis.Prefix, "publication", cfg.Redis.TTL, publications),
			)
		}
	}

	return imp.Run(ctx, cfg.Ingest.File)
}

func runDatasets(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	store, closeStore, err := openCandleStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("candle storage: %w", err)
	}
	defer closeStore()

	infos, err := importer.AvailableData(ctx, store)
	if err != nil {
		return err
	}
	for _, info := range infos {
		fields := []zap.Field{zap.String("dataset", info.Key), zap.Int64("candles", info.Count), zap.Int("days", info.Days)}
		if info.Oldest != nil {
			fields = append(fields, zap.Time("oldest", *info.Oldest), zap.Time("newest", *info.Newest))
		}
		log.Info("stored dataset", fields...)
	}
	log.Info("datasets listed", zap.Int("datasets", len(infos)))
	return nil
}
