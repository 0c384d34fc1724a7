package ingest_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Daniil-33/trading-journal-back/internal/ingest"
	"github.com/Daniil-33/trading-journal-back/pkg/market"
)

type fakeCandleStats struct {
	count          int64
	oldest, newest *time.Time
}

func (f fakeCandleStats) Count(ctx context.Context, pair market.Pair, tf market.Timeframe) (int64, error) {
	return f.count, nil
}

func (f fakeCandleStats) DateRange(ctx context.Context, pair market.Pair, tf market.Timeframe) (*time.Time, *time.Time, error) {
	return f.oldest, f.newest, nil
}

// go test -v --run TestStatsMerge
func TestStatsMerge(t *testing.T) {
	jan := time.Date(2005, 1, 3, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2005, 2, 1, 0, 0, 0, 0, time.UTC)

	var a, b ingest.Stats
	a.Seen, a.Inserted, a.Duplicates = 10, 8, 2
	a.ObserveTime(feb)
	a.AddError("batch %d failed", 1)

	b.Seen, b.Inserted, b.Failed, b.FailedBatches = 5, 0, 5, 1
	b.ObserveTime(jan)
	b.Cancelled = true

	a.Merge(b)
	if a.Seen != 15 || a.Inserted != 8 || a.Duplicates != 2 || a.Failed != 5 || a.FailedBatches != 1 {
		t.Errorf("unexpected merged counts: %+v", a)
	}
	if !a.Oldest.Equal(jan) || !a.Newest.Equal(feb) {
		t.Errorf("unexpected range: %v .. %v", a.Oldest, a.Newest)
	}
	if a.ErrorCount() != 1 || !a.Cancelled {
		t.Errorf("unexpected errors or cancel flag: %+v", a)
	}

	snap := a.Snapshot()
	a.AddError("later")
	*a.Oldest = feb
	if snap.ErrorCount() != 1 || !snap.Oldest.Equal(jan) {
		t.Error("snapshot must not share memory with the source")
	}
}

// go test -v --run TestAggregatorConcurrentUnits
func TestAggregatorConcurrentUnits(t *testing.T) {
	agg := ingest.NewAggregator("run-1", "candles")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agg.Add(ingest.UnitSummary{
				Key:   fmt.Sprintf("unit-%02d", i),
				Stats: ingest.Stats{Seen: 3, Inserted: 2, Duplicates: 1},
			})
		}(i)
	}
	wg.Wait()
	agg.Warn("skipping %s", "XYZ")

	s := agg.Summary()
	if len(s.Units) != 20 || s.Units[0].Key != "unit-00" || s.Units[19].Key != "unit-19" {
		t.Errorf("units not sorted or missing: %d", len(s.Units))
	}
	if s.Totals.Seen != 60 || s.Totals.Inserted != 40 || s.Totals.Duplicates != 20 {
		t.Errorf("unexpected totals: %+v", s.Totals)
	}
	if s.RunID != "run-1" || s.Kind != "candles" || len(s.Warnings) != 1 || s.Cancelled() {
		t.Errorf("unexpected summary header: %+v", s)
	}
}

// go test -v --run TestDescribeDataset
func TestDescribeDataset(t *testing.T) {
	key := ingest.DatasetKey{Pair: "EURUSD", Timeframe: "1h"}

	empty, err := ingest.DescribeDataset(context.Background(), fakeCandleStats{}, key)
	if err != nil {
		t.Fatalf("DescribeDataset failed: %v", err)
	}
	if empty.Count != 0 || empty.Oldest != nil || empty.Newest != nil {
		t.Errorf("empty dataset should have no range: %+v", empty)
	}

	oldest := time.Date(2005, 1, 3, 0, 0, 0, 0, time.UTC)
	newest := oldest.Add(10*24*time.Hour + 5*time.Hour)
	info, err := ingest.DescribeDataset(context.Background(), fakeCandleStats{count: 42, oldest: &oldest, newest: &newest}, key)
	if err != nil {
		t.Fatalf("DescribeDataset failed: %v", err)
	}
	if info.Key != "EURUSD_1h" || info.Count != 42 || info.Days != 10 {
		t.Errorf("unexpected info: %+v", info)
	}
}

type fakePublicationStats map[int64][]time.Time

func (f fakePublicationStats) CountByIndicator(ctx context.Context, indicatorID int64) (int64, *time.Time, *time.Time, error) {
	ts := f[indicatorID]
	if len(ts) == 0 {
		return 0, nil, nil, nil
	}
	oldest, newest := ts[0], ts[len(ts)-1]
	return int64(len(ts)), &oldest, &newest, nil
}

// go test -v --run TestDescribeIndicator
func TestDescribeIndicator(t *testing.T) {
	jan := time.Date(2024, 1, 8, 14, 0, 0, 0, time.UTC)
	stats := fakePublicationStats{
		1: {jan, jan.AddDate(0, 1, 0)},
		2: {jan.AddDate(0, 0, 3)},
	}

	var total ingest.DatasetInfo
	for _, id := range []int64{1, 2, 3} {
		info, err := ingest.DescribeIndicator(context.Background(), stats, fmt.Sprint(id*10), id)
		if err != nil {
			t.Fatalf("DescribeIndicator failed: %v", err)
		}
		total.Add(info)
		if id == 1 && (info.Key != "10" || info.Count != 2 || info.Days != 31) {
			t.Errorf("unexpected info: %+v", info)
		}
		if id == 3 && (info.Count != 0 || info.Oldest != nil) {
			t.Errorf("indicator without publications should have no range: %+v", info)
		}
	}
	if total.Count != 3 || !total.Oldest.Equal(jan) || total.Days != 31 {
		t.Errorf("unexpected total: %+v", total)
	}
}
