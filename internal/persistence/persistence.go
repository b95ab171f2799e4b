package persistence

import (
	"context"
	"encoding/json"
	"time"
)

// SnapshotRecord is one archived poll result. Payload carries the full
// category list as JSON for offline layout tuning.
type SnapshotRecord struct {
	ID             int64           `db:"id" json:"id"`
	FetchedAt      time.Time       `db:"fetched_at" json:"fetched_at"`
	Provider       string          `db:"provider" json:"provider"`
	CategoryCount  int             `db:"category_count" json:"category_count"`
	TotalMarketCap float64         `db:"total_market_cap" json:"total_market_cap"`
	Payload        json.RawMessage `db:"payload" json:"payload,omitempty"`
}

// SnapshotRepo archives committed snapshots and serves recent history.
type SnapshotRepo interface {
	Insert(ctx context.Context, rec SnapshotRecord) error
	Recent(ctx context.Context, n int) ([]SnapshotRecord, error)
}
