package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Daniil-33/trading-journal-back/internal/ingest"
	"github.com/Daniil-33/trading-journal-back/pkg/market"
)

// CandleStore keeps candles in process memory with the same natural-key
// uniqueness as the database stores. It backs dry runs.
type CandleStore struct {
	globalMu sync.RWMutex
	data     map[ingest.DatasetKey]*datasetStore
}

type datasetStore struct {
	mu      sync.Mutex
	candles map[int64]market.Candle // by UnixMilli
}

func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[ingest.DatasetKey]*datasetStore),
	}
}

func (s *CandleStore) dataset(key ingest.DatasetKey, create bool) *datasetStore {
	// Fast path: lock per-dataset store only
	s.globalMu.RLock()
	store, ok := s.data[key]
	s.globalMu.RUnlock()
	if ok || !create {
		return store
	}

	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	if store, ok = s.data[key]; !ok {
		store = &datasetStore{candles: make(map[int64]market.Candle)}
		s.data[key] = store
	}
	return store
}

// BulkInsert stores the candles whose key is new. The others are collisions.
func (s *CandleStore) BulkInsert(ctx context.Context, candles []market.Candle) (ingest.BulkResult, error) {
	var res ingest.BulkResult
	if err := ctx.Err(); err != nil {
		return res, err
	}

	for _, c := range candles {
		store := s.dataset(ingest.DatasetKey{Pair: c.Pair, Timeframe: c.Timeframe}, true)
		ts := c.Timestamp.UnixMilli()

		store.mu.Lock()
		if _, ok := store.candles[ts]; !ok {
			store.candles[ts] = c
			res.Inserted++
		}
		store.mu.Unlock()
	}
	return res, nil
}

func (s *CandleStore) Count(_ context.Context, pair market.Pair, tf market.Timeframe) (int64, error) {
	store := s.dataset(ingest.DatasetKey{Pair: pair, Timeframe: tf}, false)
	if store == nil {
		return 0, nil
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	return int64(len(store.candles)), nil
}

func (s *CandleStore) DateRange(_ context.Context, pair market.Pair, tf market.Timeframe) (*time.Time, *time.Time, error) {
	store := s.dataset(ingest.DatasetKey{Pair: pair, Timeframe: tf}, false)
	if store == nil {
		return nil, nil, nil
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.candles) == 0 {
		return nil, nil, nil
	}
	first, last := int64(0), int64(0)
	initialized := false
	for ts := range store.candles {
		if !initialized {
			first, last, initialized = ts, ts, true
			continue
		}
		first, last = min(first, ts), max(last, ts)
	}
	oldest, newest := time.UnixMilli(first).UTC(), time.UnixMilli(last).UTC()
	return &oldest, &newest, nil
}

// Datasets lists every dataset with at least one candle
func (s *CandleStore) Datasets(_ context.Context) ([]ingest.DatasetKey, error) {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	keys := make([]ingest.DatasetKey, 0, len(s.data))
	for key, store := range s.data {
		store.mu.Lock()
		n := len(store.candles)
		store.mu.Unlock()
		if n > 0 {
			keys = append(keys, key)
		}
	}
	slices.SortFunc(keys, ingest.CompareKeys)
	return keys, nil
}

// CountAll returns the total number of candles across all datasets.
func (s *CandleStore) CountAll() int {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	total := 0
	for _, store := range s.data {
		store.mu.Lock()
		total += len(store.candles)
		store.mu.Unlock()
	}
	return total
}

// Candles returns the candles of one dataset in time order
func (s *CandleStore) Candles(pair market.Pair, tf market.Timeframe) []market.Candle {
	store := s.dataset(ingest.DatasetKey{Pair: pair, Timeframe: tf}, false)
	if store == nil {
		return nil
	}

	store.mu.Lock()
	out := make([]market.Candle, 0, len(store.candles))
	for _, c := range store.candles {
		out = append(out, c)
	}
	store.mu.Unlock()

	slices.SortFunc(out, func(a, b market.Candle) int { return a.Timestamp.Compare(b.Timestamp) })
	return out
}
