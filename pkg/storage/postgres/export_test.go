package postgres

import (
	"context"
	"time"

	"github.com/Daniil-33/trading-journal-back/pkg/market"
)

// GetCandle loads one stored candle by its key
func (s *CandleStore) GetCandle(ctx context.Context, pair market.Pair, tf market.Timeframe, ts time.Time) (market.Candle, error) {
	var rec CandleRecord
	err := s.dataset(ctx, pair, tf).Where("ts = ?", ts.UTC()).Take(&rec).Error
	if err != nil {
		return market.Candle{}, err
	}
	return rec.Candle(), nil
}

// GetByExternalID loads one indicator
func (s *IndicatorStore) GetByExternalID(ctx context.Context, externalID string) (market.Indicator, error) {
	var rec IndicatorRecord
	if err := s.db.WithContext(ctx).Where("external_id = ?", externalID).Take(&rec).Error; err != nil {
		return market.Indicator{}, err
	}
	return rec.Indicator(), nil
}
