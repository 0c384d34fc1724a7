package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Daniil-33/trading-journal-back/internal/ingest"
	"github.com/Daniil-33/trading-journal-back/pkg/market"
	"github.com/Daniil-33/trading-journal-back/pkg/storage/memory"
)

func candle(pair market.Pair, tf market.Timeframe, ts time.Time) market.Candle {
	return market.Candle{Pair: pair, Timeframe: tf, Timestamp: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}
}

// go test -v --run TestCandleStoreBulkInsert
func TestCandleStoreBulkInsert(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCandleStore()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	batch := []market.Candle{
		candle("EURUSD", market.Timeframe1Hour, t0),
		candle("EURUSD", market.Timeframe1Hour, t0.Add(time.Hour)),
		candle("EURUSD", market.Timeframe1Hour, t0),
		candle("GBPUSD", market.Timeframe1Day, t0),
	}
	res, err := store.BulkInsert(ctx, batch)
	if err != nil {
		t.Fatalf("BulkInsert failed: %v", err)
	}
	if res.Inserted != 3 || len(res.Failures) != 0 {
		t.Errorf("unexpected result: %+v", res)
	}

	if n, _ := store.Count(ctx, "EURUSD", market.Timeframe1Hour); n != 2 {
		t.Errorf("unexpected count: %d", n)
	}
	oldest, newest, _ := store.DateRange(ctx, "EURUSD", market.Timeframe1Hour)
	if oldest == nil || !oldest.Equal(t0) || !newest.Equal(t0.Add(time.Hour)) {
		t.Errorf("unexpected range: %v %v", oldest, newest)
	}
	if o, n, _ := store.DateRange(ctx, "USDJPY", market.Timeframe1Hour); o != nil || n != nil {
		t.Errorf("empty dataset should have no range")
	}

	keys, _ := store.Datasets(ctx)
	if len(keys) != 2 || keys[0] != (ingest.DatasetKey{Pair: "EURUSD", Timeframe: market.Timeframe1Hour}) {
		t.Errorf("unexpected datasets: %v", keys)
	}
	if got := store.Candles("EURUSD", market.Timeframe1Hour); len(got) != 2 || !got[0].Timestamp.Equal(t0) {
		t.Errorf("unexpected candles: %+v", got)
	}
}

// go test -v --run TestCandleStoreConcurrent
func TestCandleStoreConcurrent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCandleStore()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]market.Candle, 0, 100)
			for i := 0; i < 100; i++ {
				batch = append(batch, candle("EURUSD", market.Timeframe5Min, t0.Add(time.Duration(i)*5*time.Minute)))
			}
			res, _ := store.BulkInsert(ctx, batch)
			mu.Lock()
			inserted += res.Inserted
			mu.Unlock()
		}()
	}
	wg.Wait()

	if inserted != 100 || store.CountAll() != 100 {
		t.Errorf("each key must be stored once: inserted=%d stored=%d", inserted, store.CountAll())
	}
}
