package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/jmoiron/sqlx"
)

// UsageRepository is the append-only usage log in the relational store.
type UsageRepository interface {
	InsertBatch(ctx context.Context, events []model.UsageEvent) error
	CountByAPIKey(ctx context.Context, apiKey string) (int64, error)
}

type usageRepository struct {
	db *sqlx.DB
}

func NewUsageRepository(db *sqlx.DB) UsageRepository {
	return &usageRepository{db: db}
}

// InsertBatch writes all events with one multi-row INSERT. Events whose id
// is already stored are skipped, so a batch can be replayed after a write
// that committed but reported an error.
func (r *usageRepository) InsertBatch(ctx context.Context, events []model.UsageEvent) error {
	if len(events) == 0 {
		return nil
	}

	q := sq.Insert("usage_events").Columns("id", "api_key", "endpoint", "created_at")
	if r.db.DriverName() == "mysql" {
		q = q.Options("IGNORE")
	} else {
		q = q.Suffix("ON CONFLICT(id) DO NOTHING")
	}
	for _, ev := range events {
		q = q.Values(ev.ID, ev.APIKey, ev.Endpoint, ev.CreatedAt.UTC())
	}
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *usageRepository) CountByAPIKey(ctx context.Context, apiKey string) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM usage_events WHERE api_key = ?`, apiKey)
	return n, err
}
