package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/jmoiron/sqlx"
)

// ErrDuplicate is returned when a row with the same key already exists.
var ErrDuplicate = errors.New("duplicate key")

type CredentialsRepository interface {
	Insert(ctx context.Context, c model.Credential) error
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Credential, error)
	Delete(ctx context.Context, apiKey string) (bool, error)
}

type CredentialsRepositoryImpl struct {
	db          *sqlx.DB
	isDuplicate func(error) bool
}

// NewCredentialsRepository builds the repository; isDuplicate recognises the
// engine's primary-key violation so collisions surface as ErrDuplicate.
func NewCredentialsRepository(db *sqlx.DB, isDuplicate func(error) bool) *CredentialsRepositoryImpl {
	return &CredentialsRepositoryImpl{db: db, isDuplicate: isDuplicate}
}

var _ CredentialsRepository = (*CredentialsRepositoryImpl)(nil)

func (r *CredentialsRepositoryImpl) Insert(ctx context.Context, c model.Credential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (api_key, namespace, created_at)
		VALUES (?, ?, ?)
	`, c.APIKey, c.Namespace, c.CreatedAt)
	if err != nil && r.isDuplicate != nil && r.isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// GetByAPIKey returns nil, nil when no credential matches.
func (r *CredentialsRepositoryImpl) GetByAPIKey(ctx context.Context, apiKey string) (*model.Credential, error) {
	var c model.Credential
	err := r.db.GetContext(ctx, &c, `
		SELECT api_key, namespace, created_at
		  FROM credentials
		 WHERE api_key = ? LIMIT 1
	`, apiKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete removes a credential record and reports whether one existed.
func (r *CredentialsRepositoryImpl) Delete(ctx context.Context, apiKey string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE api_key = ?`, apiKey)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
