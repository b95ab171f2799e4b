package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sectorpulse/sectorpulse/internal/persistence"
)

// snapshotRepo implements SnapshotRepo for PostgreSQL.
type snapshotRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Connect opens a Postgres connection pool for the given DSN.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// NewSnapshotRepo creates a PostgreSQL snapshot repository.
func NewSnapshotRepo(db *sqlx.DB, timeout time.Duration) persistence.SnapshotRepo {
	return &snapshotRepo{db: db, timeout: timeout}
}

// EnsureSchema creates the snapshot table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS sector_snapshots (
			id               BIGSERIAL PRIMARY KEY,
			fetched_at       TIMESTAMPTZ NOT NULL,
			provider         TEXT NOT NULL,
			category_count   INTEGER NOT NULL,
			total_market_cap DOUBLE PRECISION NOT NULL,
			payload          JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sector_snapshots_fetched_at
			ON sector_snapshots (fetched_at DESC)`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure snapshot schema: %w", err)
	}
	return nil
}

// Insert archives one committed snapshot.
func (r *snapshotRepo) Insert(ctx context.Context, rec persistence.SnapshotRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO sector_snapshots
		(fetched_at, provider, category_count, total_market_cap, payload)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query,
		rec.FetchedAt, rec.Provider, rec.CategoryCount, rec.TotalMarketCap, rec.Payload)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// Recent returns the n most recent snapshot summaries, newest first.
func (r *snapshotRepo) Recent(ctx context.Context, n int) ([]persistence.SnapshotRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if n <= 0 {
		n = 20
	}

	query := `
		SELECT id, fetched_at, provider, category_count, total_market_cap
		FROM sector_snapshots
		ORDER BY fetched_at DESC
		LIMIT $1`

	var recs []persistence.SnapshotRecord
	if err := r.db.SelectContext(ctx, &recs, query, n); err != nil {
		return nil, fmt.Errorf("failed to query snapshot history: %w", err)
	}
	return recs, nil
}
