package importer_test

import (
	"context"
	"sync"
	"time"

	"github.com/Daniil-33/trading-journal-back/internal/ingest"
	"github.com/Daniil-33/trading-journal-back/pkg/market"
)

type memIndicatorStore struct {
	mu     sync.Mutex
	nextID int64
	byExt  map[string]market.Indicator
}

func newMemIndicatorStore() *memIndicatorStore {
	return &memIndicatorStore{byExt: make(map[string]market.Indicator)}
}

func (s *memIndicatorStore) BulkInsert(_ context.Context, batch []market.Indicator) (ingest.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res ingest.BulkResult
	for _, ind := range batch {
		if _, ok := s.byExt[ind.ExternalID]; ok {
			continue
		}
		s.nextID++
		ind.ID = s.nextID
		s.byExt[ind.ExternalID] = ind
		res.Inserted++
	}
	return res, nil
}

func (s *memIndicatorStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byExt[key]
	return ok, nil
}

func (s *memIndicatorStore) IDsByExternalID(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]int64, len(s.byExt))
	for ext, ind := range s.byExt {
		ids[ext] = ind.ID
	}
	return ids, nil
}

func (s *memIndicatorStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.byExt)), nil
}

type memPublicationStore struct {
	mu   sync.Mutex
	byID map[string]market.IndicatorPublication
}

func newMemPublicationStore() *memPublicationStore {
	return &memPublicationStore{byID: make(map[string]market.IndicatorPublication)}
}

func (s *memPublicationStore) BulkInsert(_ context.Context, batch []market.IndicatorPublication) (ingest.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res ingest.BulkResult
	for i, p := range batch {
		if _, ok := s.byID[p.ExternalEventID]; ok {
			res.Failures = append(res.Failures, ingest.BulkFailure{Index: i, Reason: "already stored", Duplicate: true})
			continue
		}
		s.byID[p.ExternalEventID] = p
		res.Inserted++
	}
	return res, nil
}

func (s *memPublicationStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byID[key]
	return ok, nil
}

func (s *memPublicationStore) CountByIndicator(_ context.Context, indicatorID int64) (int64, *time.Time, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		n              int64
		oldest, newest *time.Time
	)
	for _, p := range s.byID {
		if p.IndicatorID != indicatorID {
			continue
		}
		n++
		ts := p.Timestamp
		if oldest == nil || ts.Before(*oldest) {
			oldest = &ts
		}
		if newest == nil || ts.After(*newest) {
			newest = &ts
		}
	}
	return n, oldest, newest, nil
}
