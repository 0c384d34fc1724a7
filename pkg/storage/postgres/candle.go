package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Daniil-33/trading-journal-back/internal/ingest"
	"github.com/Daniil-33/trading-journal-back/pkg/market"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// candleChunk keeps one INSERT under the Postgres bind parameter limit
const candleChunk = 1000

// CandleStore persists candles through gorm. Key collisions are skipped by
// ON CONFLICT DO NOTHING and show up only as a RowsAffected shortfall.
type CandleStore struct {
	db *gorm.DB
}

func NewCandleStore(client *PostgresClient) *CandleStore {
	return &CandleStore{db: client.DB}
}

// BulkInsert writes the batch in one transaction
func (s *CandleStore) BulkInsert(ctx context.Context, candles []market.Candle) (ingest.BulkResult, error) {
	if len(candles) == 0 {
		return ingest.BulkResult{}, nil
	}

	records := make([]CandleRecord, len(candles))
	for i, c := range candles {
		records[i] = ToCandleRecord(c)
	}

	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "pair"},
			{Name: "timeframe"},
			{Name: "ts"},
		},
		DoNothing: true,
	}).CreateInBatches(records, candleChunk)

	if tx.Error != nil {
		return ingest.BulkResult{}, fmt.Errorf("insert %d candles: %w", len(candles), tx.Error)
	}

	return ingest.BulkResult{Inserted: int(tx.RowsAffected)}, nil
}

func (s *CandleStore) dataset(ctx context.Context, pair market.Pair, tf market.Timeframe) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&CandleRecord{}).
		Where("pair = ? AND timeframe = ?", string(pair), string(tf))
}

// Count returns how many candles are stored for a dataset
func (s *CandleStore) Count(ctx context.Context, pair market.Pair, tf market.Timeframe) (int64, error) {
	var n int64
	if err := s.dataset(ctx, pair, tf).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// DateRange returns the oldest and newest stored timestamps, both nil for an empty dataset
func (s *CandleStore) DateRange(ctx context.Context, pair market.Pair, tf market.Timeframe) (*time.Time, *time.Time, error) {
	oldest, err := s.edge(ctx, pair, tf, "ts ASC")
	if err != nil || oldest == nil {
		return nil, nil, err
	}
	newest, err := s.edge(ctx, pair, tf, "ts DESC")
	if err != nil {
		return nil, nil, err
	}
	return oldest, newest, nil
}

func (s *CandleStore) edge(ctx context.Context, pair market.Pair, tf market.Timeframe, order string) (*time.Time, error) {
	var rec CandleRecord
	err := s.dataset(ctx, pair, tf).Order(order).Limit(1).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := rec.Timestamp.UTC()
	return &t, nil
}

// Datasets lists every (pair, timeframe) with at least one stored candle
func (s *CandleStore) Datasets(ctx context.Context) ([]ingest.DatasetKey, error) {
	var rows []struct {
		Pair      string
		Timeframe string
	}
	err := s.db.WithContext(ctx).
		Model(&CandleRecord{}).
		Distinct("pair", "timeframe").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	keys := make([]ingest.DatasetKey, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, ingest.DatasetKey{Pair: market.Pair(r.Pair), Timeframe: market.Timeframe(r.Timeframe)})
	}
	slices.SortFunc(keys, ingest.CompareKeys)
	return keys, nil
}
