package postgres

import (
	"time"

	"github.com/Daniil-33/trading-journal-back/pkg/market"
)

// CandleRecord is one stored OHLCV bar. (pair, timeframe, ts) is unique.
type CandleRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	Pair      string    `gorm:"type:varchar(6);not null;index:idx_candle_pair_timeframe_ts,unique"`
	Timeframe string    `gorm:"type:varchar(4);not null;index:idx_candle_pair_timeframe_ts,unique"`
	Timestamp time.Time `gorm:"column:ts;not null;index:idx_candle_pair_timeframe_ts,unique"`

	Open  float64 `gorm:"type:numeric;not null"`
	High  float64 `gorm:"type:numeric;not null"`
	Low   float64 `gorm:"type:numeric;not null"`
	Close float64 `gorm:"type:numeric;not null"`

	Volume float64 `gorm:"type:numeric;not null"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (CandleRecord) TableName() string {
	return "candle_record"
}

// ToCandleRecord converts a validated candle into its row
func ToCandleRecord(c market.Candle) CandleRecord {
	return CandleRecord{
		Pair:      string(c.Pair),
		Timeframe: string(c.Timeframe),
		Timestamp: c.Timestamp.UTC(),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
}

// Candle converts the row back into the domain type
func (r CandleRecord) Candle() market.Candle {
	return market.Candle{
		Pair:      market.Pair(r.Pair),
		Timeframe: market.Timeframe(r.Timeframe),
		Timestamp: r.Timestamp.UTC(),
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
	}
}
