package ingest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Stats counts the outcome of importing one unit. Every candidate that reaches
// the engine ends up in exactly one of Inserted, Duplicates, Failed or Abandoned.
type Stats struct {
	Seen          int        `json:"seen" yaml:"seen"`
	Inserted      int        `json:"inserted" yaml:"inserted"`
	Duplicates    int        `json:"duplicates" yaml:"duplicates"`
	Skipped       int        `json:"skipped" yaml:"skipped"`
	Failed        int        `json:"failed" yaml:"failed"`
	Abandoned     int        `json:"abandoned,omitempty" yaml:"abandoned,omitempty"`
	Rejected      int        `json:"rejected" yaml:"rejected"`
	Filtered      int        `json:"filtered" yaml:"filtered"`
	Batches       int        `json:"batches" yaml:"batches"`
	FailedBatches int        `json:"failed_batches" yaml:"failed_batches"`
	Oldest        *time.Time `json:"oldest,omitempty" yaml:"oldest,omitempty"`
	Newest        *time.Time `json:"newest,omitempty" yaml:"newest,omitempty"`
	Errors        []string   `json:"errors,omitempty" yaml:"errors,omitempty"`
	Cancelled     bool       `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
}

// ObserveTime widens the observed timestamp range to include t
func (s *Stats) ObserveTime(t time.Time) {
	if t.IsZero() {
		return
	}
	t = t.UTC()
	if s.Oldest == nil || t.Before(*s.Oldest) {
		s.Oldest = &t
	}
	if s.Newest == nil || t.After(*s.Newest) {
		s.Newest = &t
	}
}

// AddError records one error message
func (s *Stats) AddError(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// ErrorCount is the number of recorded error messages
func (s *Stats) ErrorCount() int {
	return len(s.Errors)
}

// Merge adds o into s
func (s *Stats) Merge(o Stats) {
	s.Seen += o.Seen
	s.Inserted += o.Inserted
	s.Duplicates += o.Duplicates
	s.Skipped += o.Skipped
	s.Failed += o.Failed
	s.Abandoned += o.Abandoned
	s.Rejected += o.Rejected
	s.Filtered += o.Filtered
	s.Batches += o.Batches
	s.FailedBatches += o.FailedBatches
	if o.Oldest != nil {
		s.ObserveTime(*o.Oldest)
	}
	if o.Newest != nil {
		s.ObserveTime(*o.Newest)
	}
	s.Errors = append(s.Errors, o.Errors...)
	s.Cancelled = s.Cancelled || o.Cancelled
}

// Snapshot returns a copy of s that shares no memory with it
func (s Stats) Snapshot() Stats {
	out := s
	out.Errors = slices.Clone(s.Errors)
	if s.Oldest != nil {
		t := *s.Oldest
		out.Oldest = &t
	}
	if s.Newest != nil {
		t := *s.Newest
		out.Newest = &t
	}
	return out
}

// FileSummary is the parse outcome of one source file
type FileSummary struct {
	Path        string `json:"path" yaml:"path"`
	ParseReport `yaml:",inline"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

// DatasetInfo is what storage holds for one key after a run
type DatasetInfo struct {
	Key    string     `json:"key" yaml:"key"`
	Count  int64      `json:"count" yaml:"count"`
	Oldest *time.Time `json:"oldest,omitempty" yaml:"oldest,omitempty"`
	Newest *time.Time `json:"newest,omitempty" yaml:"newest,omitempty"`
	Days   int        `json:"days" yaml:"days"`
}

// Add folds o into the count and date span of d
func (d *DatasetInfo) Add(o DatasetInfo) {
	d.Count += o.Count
	if o.Oldest != nil && (d.Oldest == nil || o.Oldest.Before(*d.Oldest)) {
		d.Oldest = o.Oldest
	}
	if o.Newest != nil && (d.Newest == nil || o.Newest.After(*d.Newest)) {
		d.Newest = o.Newest
	}
	d.Days = SpanDays(d.Oldest, d.Newest)
}

// UnitSummary is the outcome of one import unit. Breakdown lists per-key
// storage state when a unit spans several keys.
type UnitSummary struct {
	Key       string        `json:"key" yaml:"key"`
	Files     []FileSummary `json:"files,omitempty" yaml:"files,omitempty"`
	Stats     Stats         `json:"stats" yaml:"stats"`
	Stored    *DatasetInfo  `json:"stored,omitempty" yaml:"stored,omitempty"`
	Breakdown []DatasetInfo `json:"breakdown,omitempty" yaml:"breakdown,omitempty"`
	Skipped   string        `json:"skipped_reason,omitempty" yaml:"skipped_reason,omitempty"`
}

// RunSummary is the read-only result of a run
type RunSummary struct {
	RunID      string        `json:"run_id" yaml:"run_id"`
	Kind       string        `json:"kind" yaml:"kind"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
	Units      []UnitSummary `json:"units" yaml:"units"`
	Totals     Stats         `json:"totals" yaml:"totals"`
	Warnings   []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Cancelled reports whether any unit stopped early
func (r RunSummary) Cancelled() bool {
	return r.Totals.Cancelled
}

// Aggregator collects unit summaries from concurrent workers
type Aggregator struct {
	mu        sync.Mutex
	runID     string
	kind      string
	startedAt time.Time
	units     []UnitSummary
	warnings  []string
}

// NewAggregator starts a run summary for runID
func NewAggregator(runID, kind string) *Aggregator {
	return &Aggregator{runID: runID, kind: kind, startedAt: time.Now().UTC()}
}

// Add records the outcome of one unit
func (a *Aggregator) Add(u UnitSummary) {
	u.Stats = u.Stats.Snapshot()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.units = append(a.units, u)
}

// Warn records a run-level warning
func (a *Aggregator) Warn(format string, args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.warnings = append(a.warnings, fmt.Sprintf(format, args...))
}

// Summary returns the run summary with units in key order and totals summed over them
func (a *Aggregator) Summary() RunSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	units := make([]UnitSummary, len(a.units))
	copy(units, a.units)
	slices.SortStableFunc(units, func(x, y UnitSummary) int { return strings.Compare(x.Key, y.Key) })

	var totals Stats
	for _, u := range units {
		totals.Merge(u.Stats)
	}
	return RunSummary{
		RunID:      a.runID,
		Kind:       a.kind,
		StartedAt:  a.startedAt,
		FinishedAt: time.Now().UTC(),
		Units:      units,
		Totals:     totals,
		Warnings:   slices.Clone(a.warnings),
	}
}

// DescribeDataset asks storage for the stored count and date span of one dataset
func DescribeDataset(ctx context.Context, store CandleStats, key DatasetKey) (DatasetInfo, error) {
	info := DatasetInfo{Key: key.String()}

	count, err := store.Count(ctx, key.Pair, key.Timeframe)
	if err != nil {
		return info, fmt.Errorf("count %s: %w", key, err)
	}
	info.Count = count
	if count == 0 {
		return info, nil
	}

	oldest, newest, err := store.DateRange(ctx, key.Pair, key.Timeframe)
	if err != nil {
		return info, fmt.Errorf("date range %s: %w", key, err)
	}
	info.Oldest, info.Newest = oldest, newest
	info.Days = SpanDays(oldest, newest)
	return info, nil
}

// DescribeIndicator asks storage for the stored publication count and date span of one indicator
func DescribeIndicator(ctx context.Context, store PublicationStats, externalID string, indicatorID int64) (DatasetInfo, error) {
	info := DatasetInfo{Key: externalID}

	count, oldest, newest, err := store.CountByIndicator(ctx, indicatorID)
	if err != nil {
		return info, fmt.Errorf("count publications of %s: %w", externalID, err)
	}
	info.Count = count
	if count == 0 {
		return info, nil
	}
	info.Oldest, info.Newest = oldest, newest
	info.Days = SpanDays(oldest, newest)
	return info, nil
}

// SpanDays is the number of whole days between oldest and newest, zero when either is unknown
func SpanDays(oldest, newest *time.Time) int {
	if oldest == nil || newest == nil {
		return 0
	}
	return int(newest.Sub(*oldest) / (24 * time.Hour))
}
