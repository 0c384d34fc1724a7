package postgres_test

import (
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"

	"github.com/Daniil-33/trading-journal-back/pkg/market"
	"github.com/Daniil-33/trading-journal-back/pkg/storage/postgres"
)

// newSQLiteClient returns a migrated client backed by a throwaway sqlite file
func newSQLiteClient(t *testing.T) *postgres.PostgresClient {
	t.Helper()
	client, err := postgres.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := client.AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return client
}

func hourlyCandles(from time.Time, n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{
			Pair:      "EURUSD",
			Timeframe: market.Timeframe1Hour,
			Timestamp: from.Add(time.Duration(i) * time.Hour),
			Open:      1.3556,
			High:      1.3576,
			Low:       1.3555,
			Close:     1.3569,
			Volume:    float64(53 + i),
		}
	}
	return out
}
