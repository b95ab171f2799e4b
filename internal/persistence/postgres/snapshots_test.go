package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sectorpulse/sectorpulse/internal/persistence"
)

func newMockRepo(t *testing.T) (persistence.SnapshotRepo, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	return NewSnapshotRepo(db, 2*time.Second), mock
}

func TestSnapshotRepo_Insert(t *testing.T) {
	repo, mock := newMockRepo(t)

	fetchedAt := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	rec := persistence.SnapshotRecord{
		FetchedAt:      fetchedAt,
		Provider:       "coingecko",
		CategoryCount:  3,
		TotalMarketCap: 1.5e11,
		Payload:        json.RawMessage(`{"categories":[]}`),
	}

	mock.ExpectExec("INSERT INTO sector_snapshots").
		WithArgs(fetchedAt, "coingecko", 3, 1.5e11, []byte(`{"categories":[]}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Insert(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepo_InsertError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO sector_snapshots").
		WillReturnError(assert.AnError)

	err := repo.Insert(context.Background(), persistence.SnapshotRecord{
		Payload: json.RawMessage(`{}`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert snapshot")
}

func TestSnapshotRepo_Recent(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "fetched_at", "provider", "category_count", "total_market_cap"}).
		AddRow(int64(2), now, "coingecko", 40, 2.1e11).
		AddRow(int64(1), now.Add(-5*time.Minute), "defillama", 38, 2.0e11)

	mock.ExpectQuery("SELECT id, fetched_at, provider, category_count, total_market_cap").
		WithArgs(2).
		WillReturnRows(rows)

	recs, err := repo.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(2), recs[0].ID)
	assert.Equal(t, "coingecko", recs[0].Provider)
	assert.Equal(t, 40, recs[0].CategoryCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepo_RecentDefaultsLimit(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT id, fetched_at, provider, category_count, total_market_cap").
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "fetched_at", "provider", "category_count", "total_market_cap"}))

	recs, err := repo.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
