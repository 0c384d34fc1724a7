package ingest_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/Daniil-33/trading-journal-back/internal/ingest"
)

// fakePersister stores ints and reports values in dup as key collisions
type fakePersister struct {
	mu      sync.Mutex
	sizes   []int
	stored  []int
	dup     map[int]bool
	failOn  map[int]error // batch number, 1-based
	reject  map[int]string
	onBatch func(n int)
}

func (f *fakePersister) BulkInsert(ctx context.Context, batch []int) (ingest.BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sizes = append(f.sizes, len(batch))
	n := len(f.sizes)
	if f.onBatch != nil {
		f.onBatch(n)
	}
	if err := f.failOn[n]; err != nil {
		return ingest.BulkResult{}, err
	}

	var res ingest.BulkResult
	for i, v := range batch {
		switch {
		case f.dup[v]:
		case f.reject[v] != "":
			res.Failures = append(res.Failures, ingest.BulkFailure{Index: i, Reason: f.reject[v]})
		default:
			f.stored = append(f.stored, v)
			res.Inserted++
		}
	}
	return res, nil
}

func ints(n int) func(func(int) bool) {
	return func(yield func(int) bool) {
		for i := 0; i < n; i++ {
			if !yield(i) {
				return
			}
		}
	}
}

type recordingObserver struct {
	outcomes []ingest.BatchOutcome
}

func (r *recordingObserver) ObserveBatch(kind string, o ingest.BatchOutcome) {
	r.outcomes = append(r.outcomes, o)
}

// go test -v --run TestEngineBatches
func TestEngineBatches(t *testing.T) {
	p := &fakePersister{}
	obs := &recordingObserver{}
	e := ingest.NewEngine[int](ingest.EngineConfig{Kind: "test", BatchSize: 10}, p, nil).WithObserver(obs)

	stats := e.Run(context.Background(), ints(25))

	if !slices.Equal(p.sizes, []int{10, 10, 5}) {
		t.Errorf("unexpected batch sizes: %v", p.sizes)
	}
	if stats.Seen != 25 || stats.Inserted != 25 || stats.Batches != 3 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if len(obs.outcomes) != 3 || obs.outcomes[2].Size != 5 {
		t.Errorf("unexpected observer outcomes: %+v", obs.outcomes)
	}
	if stats.Cancelled {
		t.Error("run should not be cancelled")
	}
}

// go test -v --run TestEngineDefaultBatchSize
func TestEngineDefaultBatchSize(t *testing.T) {
	p := &fakePersister{}
	stats := ingest.NewEngine[int](ingest.EngineConfig{}, p, nil).Run(context.Background(), ints(ingest.DefaultBatchSize+1))

	if !slices.Equal(p.sizes, []int{ingest.DefaultBatchSize, 1}) {
		t.Errorf("unexpected batch sizes: %v", p.sizes)
	}
	if stats.Inserted != ingest.DefaultBatchSize+1 {
		t.Errorf("unexpected inserted: %d", stats.Inserted)
	}
}

// go test -v --run TestEngineCountsDuplicatesAndFailures
func TestEngineCountsDuplicatesAndFailures(t *testing.T) {
	p := &fakePersister{
		dup:    map[int]bool{1: true, 2: true, 15: true},
		reject: map[int]string{7: "value too long"},
	}
	stats := ingest.NewEngine[int](ingest.EngineConfig{BatchSize: 10}, p, nil).Run(context.Background(), ints(20))

	if stats.Inserted != 16 || stats.Duplicates != 3 || stats.Failed != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.Inserted+stats.Duplicates+stats.Failed != stats.Seen {
		t.Errorf("outcomes must sum to seen: %+v", stats)
	}
	if len(stats.Errors) != 1 || stats.Errors[0] != "batch 1 record 7: value too long" {
		t.Errorf("unexpected errors: %v", stats.Errors)
	}
}

// go test -v --run TestEngineFullBatchWithCollisions
func TestEngineFullBatchWithCollisions(t *testing.T) {
	cases := []struct {
		name     string
		failures []ingest.BulkFailure
	}{
		{name: "unlisted"},
		{name: "flagged", failures: []ingest.BulkFailure{{Index: 17, Duplicate: true}, {Index: 9001, Duplicate: true}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			persist := ingest.BulkPersistFunc[int](func(ctx context.Context, batch []int) (ingest.BulkResult, error) {
				return ingest.BulkResult{Inserted: len(batch) - 2, Failures: tc.failures}, nil
			})

			stats := ingest.NewEngine[int](ingest.EngineConfig{BatchSize: 10000}, persist, nil).Run(context.Background(), ints(10000))
			if stats.Batches != 1 || stats.Inserted != 9998 || stats.Duplicates != 2 || stats.Failed != 0 {
				t.Errorf("unexpected stats: %+v", stats)
			}
			if len(stats.Errors) != 0 {
				t.Errorf("collisions are not errors: %v", stats.Errors)
			}
		})
	}
}

// go test -v --run TestEngineContinuesAfterFailedBatch
func TestEngineContinuesAfterFailedBatch(t *testing.T) {
	p := &fakePersister{failOn: map[int]error{2: errors.New("connection reset")}}
	stats := ingest.NewEngine[int](ingest.EngineConfig{BatchSize: 10}, p, nil).Run(context.Background(), ints(30))

	if stats.Batches != 3 || stats.FailedBatches != 1 {
		t.Errorf("unexpected batch counts: %+v", stats)
	}
	if stats.Inserted != 20 || stats.Failed != 10 {
		t.Errorf("unexpected record counts: inserted=%d failed=%d", stats.Inserted, stats.Failed)
	}
	if len(stats.Errors) != 1 {
		t.Errorf("a failed batch is one error entry, got %v", stats.Errors)
	}
}

// go test -v --run TestEngineStopsBetweenBatches
func TestEngineStopsBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var inflightErr error
	p := &fakePersister{}
	p.onBatch = func(n int) {
		if n == 1 {
			cancel()
		}
	}
	persist := ingest.BulkPersistFunc[int](func(bctx context.Context, batch []int) (ingest.BulkResult, error) {
		res, err := p.BulkInsert(bctx, batch)
		inflightErr = bctx.Err()
		return res, err
	})

	stats := ingest.NewEngine[int](ingest.EngineConfig{BatchSize: 10}, persist, nil).Run(ctx, ints(100))

	if len(p.sizes) != 1 {
		t.Fatalf("expected exactly one batch, got %v", p.sizes)
	}
	if inflightErr != nil {
		t.Errorf("in-flight batch context must outlive cancellation: %v", inflightErr)
	}
	if !stats.Cancelled || stats.Inserted != 10 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

// go test -v --run TestEngineCountsRecordPulledAfterCancel
func TestEngineCountsRecordPulledAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	produced := 0
	seq := func(yield func(int) bool) {
		for i := range 100 {
			if i == 5 {
				cancel()
			}
			produced++
			if !yield(i) {
				return
			}
		}
	}

	p := &fakePersister{}
	stats := ingest.NewEngine[int](ingest.EngineConfig{BatchSize: 10}, p, nil).Run(ctx, seq)

	if len(p.sizes) != 0 {
		t.Errorf("no batch should be dispatched, got %v", p.sizes)
	}
	if stats.Seen != produced || stats.Abandoned != produced {
		t.Errorf("every pulled record must be accounted for: produced=%d stats=%+v", produced, stats)
	}
	if !stats.Cancelled {
		t.Error("run should be cancelled")
	}
}

// go test -v --run TestEngineBatchTimeout
func TestEngineBatchTimeout(t *testing.T) {
	persist := ingest.BulkPersistFunc[int](func(ctx context.Context, batch []int) (ingest.BulkResult, error) {
		<-ctx.Done()
		return ingest.BulkResult{}, ctx.Err()
	})
	cfg := ingest.EngineConfig{BatchSize: 5, BatchTimeout: 20 * time.Millisecond}

	stats := ingest.NewEngine[int](cfg, persist, nil).Run(context.Background(), ints(5))
	if stats.FailedBatches != 1 || stats.Failed != 5 {
		t.Errorf("expected one timed out batch, got %+v", stats)
	}
}

// go test -v --run TestEngineRateLimit
func TestEngineRateLimit(t *testing.T) {
	p := &fakePersister{}
	cfg := ingest.EngineConfig{BatchSize: 1, Limiter: rate.NewLimiter(rate.Every(10*time.Millisecond), 1)}

	start := time.Now()
	stats := ingest.NewEngine[int](cfg, p, nil).Run(context.Background(), ints(4))
	if stats.Inserted != 4 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("limiter not applied, run took %v", elapsed)
	}
}

// go test -v --run TestEngineTracksTimeRange
func TestEngineTracksTimeRange(t *testing.T) {
	base := time.Date(2005, 1, 3, 0, 0, 0, 0, time.UTC)
	e := ingest.NewEngine[int](ingest.EngineConfig{}, &fakePersister{}, nil).
		WithTimeOf(func(v int) time.Time { return base.Add(time.Duration(v) * time.Hour) })

	stats := e.Run(context.Background(), ints(48))
	if stats.Oldest == nil || !stats.Oldest.Equal(base) {
		t.Errorf("unexpected oldest: %v", stats.Oldest)
	}
	if stats.Newest == nil || !stats.Newest.Equal(base.Add(47*time.Hour)) {
		t.Errorf("unexpected newest: %v", stats.Newest)
	}
}
