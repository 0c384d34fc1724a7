package ingest

import (
	"context"
	"time"

	"github.com/Daniil-33/trading-journal-back/pkg/market"
)

// BulkFailure is one record of a batch that storage did not persist
type BulkFailure struct {
	Index     int
	Reason    string
	Duplicate bool
}

// BulkResult is what storage reports for one submitted batch.
// Records neither inserted nor listed in Failures are taken as key collisions.
type BulkResult struct {
	Inserted int
	Failures []BulkFailure
}

// BulkPersister stores a batch in one call. A returned error fails the whole
// batch; Inserted on that path counts rows committed before the failure.
type BulkPersister[T any] interface {
	BulkInsert(ctx context.Context, batch []T) (BulkResult, error)
}

// BulkPersistFunc adapts a function to BulkPersister
type BulkPersistFunc[T any] func(ctx context.Context, batch []T) (BulkResult, error)

func (f BulkPersistFunc[T]) BulkInsert(ctx context.Context, batch []T) (BulkResult, error) {
	return f(ctx, batch)
}

// ExistenceChecker answers natural-key lookups for the dedup gate
type ExistenceChecker interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// CandleStats answers post-run point queries for one dataset
type CandleStats interface {
	Count(ctx context.Context, pair market.Pair, tf market.Timeframe) (int64, error)
	DateRange(ctx context.Context, pair market.Pair, tf market.Timeframe) (oldest, newest *time.Time, err error)
}

// PublicationStats answers post-run point queries for one indicator
type PublicationStats interface {
	CountByIndicator(ctx context.Context, indicatorID int64) (count int64, oldest, newest *time.Time, err error)
}

// CandleStore is the storage a candle import runs against
type CandleStore interface {
	BulkPersister[market.Candle]
	CandleStats
}
