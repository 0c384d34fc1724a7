// Package clickhouse stores candles in a ReplacingMergeTree table through the
// native ClickHouse protocol.
package clickhouse

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Daniil-33/trading-journal-back/internal/ingest"
	"github.com/Daniil-33/trading-journal-back/pkg/market"
)

const candleSchema = `
CREATE TABLE IF NOT EXISTS candle (
	pair        LowCardinality(String),
	timeframe   LowCardinality(String),
	ts          DateTime64(3, 'UTC'),
	open        Float64,
	high        Float64,
	low         Float64,
	close       Float64,
	volume      Float64,
	inserted_at DateTime64(3, 'UTC')
)
ENGINE = ReplacingMergeTree(inserted_at)
ORDER BY (pair, timeframe, ts)`

// CandleStore implements ingest.CandleStore on ClickHouse. The table has no
// unique constraint, so every batch first reads which of its keys exist and
// only appends the rest. Those keys are reported as duplicate failures.
type CandleStore struct {
	conn driver.Conn
}

// NewCandleStore parses dsn, opens a connection and verifies it with a ping.
func NewCandleStore(ctx context.Context, dsn string) (*CandleStore, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	return &CandleStore{conn: conn}, nil
}

// EnsureSchema creates the candle table
func (s *CandleStore) EnsureSchema(ctx context.Context) error {
	if err := s.conn.Exec(ctx, candleSchema); err != nil {
		return fmt.Errorf("create candle table: %w", err)
	}
	return nil
}

// BulkInsert appends the candles whose key is not stored yet
func (s *CandleStore) BulkInsert(ctx context.Context, candles []market.Candle) (ingest.BulkResult, error) {
	if len(candles) == 0 {
		return ingest.BulkResult{}, nil
	}

	existing, err := s.existingKeys(ctx, candles)
	if err != nil {
		return ingest.BulkResult{}, err
	}

	var res ingest.BulkResult
	fresh := make([]market.Candle, 0, len(candles))
	for i, c := range candles {
		key := c.Key()
		if _, dup := existing[key]; dup {
			res.Failures = append(res.Failures, ingest.BulkFailure{Index: i, Reason: "candle already stored", Duplicate: true})
			continue
		}
		existing[key] = struct{}{}
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		return res, nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candle (
			pair, timeframe, ts,
			open, high, low, close, volume,
			inserted_at
		)
	`)
	if err != nil {
		return ingest.BulkResult{}, err
	}

	now := time.Now().UTC()
	for _, c := range fresh {
		err := batch.Append(
			string(c.Pair),
			string(c.Timeframe),
			c.Timestamp.UTC(),
			c.Open,
			c.High,
			c.Low,
			c.Close,
			c.Volume,
			now,
		)
		if err != nil {
			_ = batch.Abort()
			return ingest.BulkResult{}, err
		}
	}

	if err := batch.Send(); err != nil {
		return ingest.BulkResult{}, err
	}
	res.Inserted = len(fresh)
	return res, nil
}

// existingKeys reads the stored keys that fall inside the batch's time window, per dataset
func (s *CandleStore) existingKeys(ctx context.Context, candles []market.Candle) (map[string]struct{}, error) {
	type window struct{ from, to time.Time }
	windows := make(map[ingest.DatasetKey]window)
	for _, c := range candles {
		k := ingest.DatasetKey{Pair: c.Pair, Timeframe: c.Timeframe}
		w, ok := windows[k]
		if !ok {
			windows[k] = window{c.Timestamp, c.Timestamp}
			continue
		}
		if c.Timestamp.Before(w.from) {
			w.from = c.Timestamp
		}
		if c.Timestamp.After(w.to) {
			w.to = c.Timestamp
		}
		windows[k] = w
	}

	existing := make(map[string]struct{})
	for k, w := range windows {
		rows, err := s.conn.Query(ctx,
			`SELECT ts FROM candle FINAL WHERE pair = ? AND timeframe = ? AND ts BETWEEN ? AND ?`,
			string(k.Pair), string(k.Timeframe), w.from.UTC(), w.to.UTC(),
		)
		if err != nil {
			return nil, fmt.Errorf("read existing %s: %w", k, err)
		}
		for rows.Next() {
			var ts time.Time
			if err := rows.Scan(&ts); err != nil {
				rows.Close()
				return nil, err
			}
			c := market.Candle{Pair: k.Pair, Timeframe: k.Timeframe, Timestamp: ts}
			existing[c.Key()] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return existing, nil
}

// Count returns how many distinct candles are stored for a dataset
func (s *CandleStore) Count(ctx context.Context, pair market.Pair, tf market.Timeframe) (int64, error) {
	var n uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM candle FINAL WHERE pair = ? AND timeframe = ?`,
		string(pair), string(tf),
	).Scan(&n)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// DateRange returns the oldest and newest stored timestamps, both nil for an empty dataset
func (s *CandleStore) DateRange(ctx context.Context, pair market.Pair, tf market.Timeframe) (*time.Time, *time.Time, error) {
	var (
		n              uint64
		oldest, newest time.Time
	)
	err := s.conn.QueryRow(ctx,
		`SELECT count(), min(ts), max(ts) FROM candle WHERE pair = ? AND timeframe = ?`,
		string(pair), string(tf),
	).Scan(&n, &oldest, &newest)
	if err != nil {
		return nil, nil, err
	}
	if n == 0 {
		return nil, nil, nil
	}
	oldest, newest = oldest.UTC(), newest.UTC()
	return &oldest, &newest, nil
}

// Datasets lists every (pair, timeframe) with at least one stored candle
func (s *CandleStore) Datasets(ctx context.Context) ([]ingest.DatasetKey, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT pair, timeframe FROM candle`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []ingest.DatasetKey
	for rows.Next() {
		var pair, tf string
		if err := rows.Scan(&pair, &tf); err != nil {
			return nil, err
		}
		keys = append(keys, ingest.DatasetKey{Pair: market.Pair(pair), Timeframe: market.Timeframe(tf)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.SortFunc(keys, ingest.CompareKeys)
	return keys, nil
}

func (s *CandleStore) Close() error {
	return s.conn.Close()
}
