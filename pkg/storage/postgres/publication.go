package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Daniil-33/trading-journal-back/internal/ingest"
	"github.com/Daniil-33/trading-journal-back/pkg/market"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// publicationChunk is the number of statements pipelined per round trip
const publicationChunk = 200

const publicationSchema = `
CREATE TABLE IF NOT EXISTS indicator_publication (
	id                BIGSERIAL PRIMARY KEY,
	indicator_id      BIGINT NOT NULL REFERENCES indicator_record(id),
	external_event_id TEXT NOT NULL,
	ts                TIMESTAMPTZ NOT NULL,
	actual            TEXT,
	forecast          TEXT,
	previous          TEXT,
	revision          TEXT,
	is_active         BOOLEAN NOT NULL DEFAULT FALSE,
	is_most_recent    BOOLEAN NOT NULL DEFAULT FALSE,
	recorded_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT uq_publication_external_event UNIQUE (external_event_id)
);
CREATE INDEX IF NOT EXISTS idx_publication_indicator_ts ON indicator_publication (indicator_id, ts);
`

const insertPublication = `
INSERT INTO indicator_publication
	(indicator_id, external_event_id, ts, actual, forecast, previous, revision, is_active, is_most_recent)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (external_event_id) DO NOTHING`

// PublicationStore persists indicator publications through a pgx pool.
// Each row is its own statement in a pipelined batch, so a key collision is
// reported with its exact index instead of as a shortfall.
type PublicationStore struct {
	pool *pgxpool.Pool
}

// NewPublicationStore connects a pool to url (postgres:// form)
func NewPublicationStore(ctx context.Context, url string) (*PublicationStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse publication store url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect publication store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping publication store: %w", err)
	}
	return &PublicationStore{pool: pool}, nil
}

// EnsureSchema creates the publication table. The indicator table must exist.
func (s *PublicationStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, publicationSchema); err != nil {
		return fmt.Errorf("create publication table: %w", err)
	}
	return nil
}

// BulkInsert pipelines the batch in chunks. Each chunk commits on its own;
// when one fails, Inserted counts only the chunks committed before it.
func (s *PublicationStore) BulkInsert(ctx context.Context, pubs []market.IndicatorPublication) (ingest.BulkResult, error) {
	var res ingest.BulkResult

	for i := 0; i < len(pubs); i += publicationChunk {
		j := min(i+publicationChunk, len(pubs))

		b := &pgx.Batch{}
		for _, p := range pubs[i:j] {
			b.Queue(insertPublication,
				p.IndicatorID, p.ExternalEventID, p.Timestamp.UTC(),
				valueColumn(p.Actual), valueColumn(p.Forecast), valueColumn(p.Previous), valueColumn(p.Revision),
				p.IsActive, p.IsMostRecent,
			)
		}

		inserted := 0
		var collisions []ingest.BulkFailure

		br := s.pool.SendBatch(ctx, b)
		for k := i; k < j; k++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return res, fmt.Errorf("insert publication %s: %w", pubs[k].ExternalEventID, err)
			}
			if tag.RowsAffected() == 0 {
				collisions = append(collisions, ingest.BulkFailure{
					Index:     k,
					Reason:    "external_event_id already stored",
					Duplicate: true,
				})
				continue
			}
			inserted++
		}
		if err := br.Close(); err != nil {
			return res, err
		}

		res.Inserted += inserted
		res.Failures = append(res.Failures, collisions...)
	}
	return res, nil
}

// Exists reports whether a publication with externalEventID is stored
func (s *PublicationStore) Exists(ctx context.Context, externalEventID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM indicator_publication WHERE external_event_id = $1)`,
		externalEventID,
	).Scan(&exists)
	return exists, err
}

// CountByIndicator returns how many publications an indicator has and their date span
func (s *PublicationStore) CountByIndicator(ctx context.Context, indicatorID int64) (int64, *time.Time, *time.Time, error) {
	var (
		n              int64
		oldest, newest *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT count(*), min(ts), max(ts) FROM indicator_publication WHERE indicator_id = $1`,
		indicatorID,
	).Scan(&n, &oldest, &newest)
	if err != nil {
		return 0, nil, nil, err
	}
	return n, oldest, newest, nil
}

func (s *PublicationStore) Close() {
	s.pool.Close()
}

// valueColumn stores a published figure as its JSON text, so 1.5 and "1.5" stay distinct
func valueColumn(v market.Value) *string {
	if v.IsAbsent() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}
