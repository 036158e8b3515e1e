package repository

import (
	"context"

	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/jmoiron/sqlx"
)

type chUsageRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

// NewCHUsageRepository stores usage events in ClickHouse. The table is a
// ReplacingMergeTree keyed by event id, so at-least-once delivery from Kafka
// does not double count after merges; counts use FINAL to be exact.
func NewCHUsageRepository(ch *sqlx.DB) UsageRepository {
	return &chUsageRepository{ch: ch}
}

// InsertBatch sends the events as a single ClickHouse block.
func (r *chUsageRepository) InsertBatch(ctx context.Context, events []model.UsageEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO usage_events (id, api_key, endpoint, created_at)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx, ev.ID, ev.APIKey, ev.Endpoint, ev.CreatedAt.UTC()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *chUsageRepository) CountByAPIKey(ctx context.Context, apiKey string) (int64, error) {
	var n uint64
	err := r.ch.GetContext(ctx, &n, `SELECT count() FROM usage_events FINAL WHERE api_key = ?`, apiKey)
	return int64(n), err
}
