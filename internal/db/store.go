package db

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// DefaultQueryTimeout bounds storage calls when no timeout is configured.
const DefaultQueryTimeout = 5 * time.Second

// Store is the shared relational store: a connection pool, the dialect used
// to render dynamic SQL for it, and the timeout applied to every call.
type Store struct {
	*sqlx.DB
	Dialect      Dialect
	QueryTimeout time.Duration
}

func NewStore(dbx *sqlx.DB, dialect Dialect, queryTimeout time.Duration) *Store {
	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}
	return &Store{DB: dbx, Dialect: dialect, QueryTimeout: queryTimeout}
}

// Bounded derives a context that expires after the store's query timeout.
func (s *Store) Bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.QueryTimeout)
}

// Builder returns a squirrel statement builder using the dialect's placeholders.
func (s *Store) Builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(s.Dialect.Placeholder())
}

// WithTx runs fn in the provided tx, or starts a new transaction when tx is nil.
func (s *Store) WithTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}

	t, err := s.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}

	return t.Commit()
}
