package postgres

import (
	"time"

	"github.com/Daniil-33/trading-journal-back/pkg/market"
)

// IndicatorRecord is a stored economic calendar indicator keyed by ExternalID
type IndicatorRecord struct {
	ID int64 `gorm:"primaryKey"`

	ExternalID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_indicator_external_id"`

	Name           string `gorm:"type:text;not null"`
	Country        string `gorm:"type:varchar(8);index:idx_indicator_country"`
	Impact         string `gorm:"type:varchar(8);not null;index:idx_indicator_impact"`
	Frequency      string `gorm:"type:varchar(16)"`
	PublishingTime string `gorm:"type:varchar(16)"`
	Title          string `gorm:"type:text"`

	AffectedCurrencies []string               `gorm:"type:text;serializer:json"`
	AffectedPairs      []string               `gorm:"type:text;serializer:json"`
	Info               []market.IndicatorSpec `gorm:"type:text;serializer:json"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (IndicatorRecord) TableName() string {
	return "indicator_record"
}

// ToIndicatorRecord converts an indicator into its row
func ToIndicatorRecord(ind market.Indicator) IndicatorRecord {
	currencies := make([]string, len(ind.AffectedCurrencies))
	for i, c := range ind.AffectedCurrencies {
		currencies[i] = string(c)
	}
	pairs := make([]string, len(ind.AffectedPairs))
	for i, p := range ind.AffectedPairs {
		pairs[i] = string(p)
	}

	return IndicatorRecord{
		ExternalID:         ind.ExternalID,
		Name:               ind.Name,
		Country:            ind.Country,
		Impact:             string(ind.Impact),
		Frequency:          string(ind.Frequency),
		PublishingTime:     string(ind.PublishingTime),
		Title:              ind.Title,
		AffectedCurrencies: currencies,
		AffectedPairs:      pairs,
		Info:               ind.Info,
	}
}

// Indicator converts the row back into the domain type
func (r IndicatorRecord) Indicator() market.Indicator {
	ind := market.Indicator{
		ID:             r.ID,
		ExternalID:     r.ExternalID,
		Name:           r.Name,
		Country:        r.Country,
		Impact:         market.Impact(r.Impact),
		Frequency:      market.Frequency(r.Frequency),
		PublishingTime: market.PublishingTime(r.PublishingTime),
		Title:          r.Title,
		Info:           r.Info,
	}
	for _, c := range r.AffectedCurrencies {
		ind.AffectedCurrencies = append(ind.AffectedCurrencies, market.Currency(c))
	}
	for _, p := range r.AffectedPairs {
		ind.AffectedPairs = append(ind.AffectedPairs, market.Pair(p))
	}
	return ind
}
