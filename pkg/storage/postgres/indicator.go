package postgres

import (
	"context"
	"fmt"

	"github.com/Daniil-33/trading-journal-back/internal/ingest"
	"github.com/Daniil-33/trading-journal-back/pkg/market"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const indicatorChunk = 500

// IndicatorStore persists indicators through gorm
type IndicatorStore struct {
	db *gorm.DB
}

func NewIndicatorStore(client *PostgresClient) *IndicatorStore {
	return &IndicatorStore{db: client.DB}
}

// BulkInsert writes the batch in one transaction; indicators whose
// external id is already stored are skipped.
func (s *IndicatorStore) BulkInsert(ctx context.Context, indicators []market.Indicator) (ingest.BulkResult, error) {
	if len(indicators) == 0 {
		return ingest.BulkResult{}, nil
	}

	records := make([]IndicatorRecord, len(indicators))
	for i, ind := range indicators {
		records[i] = ToIndicatorRecord(ind)
	}

	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoNothing: true,
	}).CreateInBatches(records, indicatorChunk)

	if tx.Error != nil {
		return ingest.BulkResult{}, fmt.Errorf("insert %d indicators: %w", len(indicators), tx.Error)
	}
	return ingest.BulkResult{Inserted: int(tx.RowsAffected)}, nil
}

// Exists reports whether an indicator with externalID is stored
func (s *IndicatorStore) Exists(ctx context.Context, externalID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&IndicatorRecord{}).
		Where("external_id = ?", externalID).
		Limit(1).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IDsByExternalID maps every stored external id to its row id
func (s *IndicatorStore) IDsByExternalID(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		ID         int64
		ExternalID string
	}
	if err := s.db.WithContext(ctx).Model(&IndicatorRecord{}).Select("id", "external_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load indicator ids: %w", err)
	}

	ids := make(map[string]int64, len(rows))
	for _, r := range rows {
		ids[r.ExternalID] = r.ID
	}
	return ids, nil
}

// Count returns how many indicators are stored
func (s *IndicatorStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&IndicatorRecord{}).Count(&n).Error
	return n, err
}
