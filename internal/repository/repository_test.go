package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmehdipour/linkdb/internal/db"
	"github.com/jmehdipour/linkdb/internal/db/dbtest"
	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/jmehdipour/linkdb/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	keyA = "0f8fad5b-d9cb-469f-a165-70867728950e"
	nsA  = "ks_0f8fad5bd9cb469fa16570867728950e"
)

func TestCredentialsRepository(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)
	repo := repository.NewCredentialsRepository(store.DB, db.IsDuplicateKey)

	got, err := repo.GetByAPIKey(ctx, keyA)
	require.NoError(t, err)
	assert.Nil(t, got)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, repo.Insert(ctx, model.Credential{APIKey: keyA, Namespace: nsA, CreatedAt: created}))
	assert.ErrorIs(t, repo.Insert(ctx, model.Credential{APIKey: keyA, Namespace: nsA, CreatedAt: created}), repository.ErrDuplicate)

	got, err = repo.GetByAPIKey(ctx, keyA)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, nsA, got.Namespace)
	assert.True(t, created.Equal(got.CreatedAt))

	removed, err := repo.Delete(ctx, keyA)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(ctx, keyA)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestCatalogRepository(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)
	repo := repository.NewCatalogRepository(store.DB, db.IsDuplicateKey)

	def := model.TableDefinition{
		Name: "users",
		Columns: model.ColumnList{
			{Name: "name", Type: "TEXT"},
			{Name: "age", Type: "INTEGER NOT NULL"},
		},
	}

	got, err := repo.Get(ctx, nil, nsA, "users")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		return repo.Insert(ctx, tx, nsA, def)
	}))
	assert.ErrorIs(t, repo.Insert(ctx, nil, nsA, def), repository.ErrDuplicate)

	got, err = repo.Get(ctx, nil, nsA, "users")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, def, *got)

	other, err := repo.Get(ctx, nil, "ks_00000000000000000000000000000000", "users")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestUsageRepository(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)
	repo := repository.NewUsageRepository(store.DB)

	require.NoError(t, repo.InsertBatch(ctx, nil))

	now := time.Now().UTC()
	events := []model.UsageEvent{
		{ID: "01J00000000000000000000001", APIKey: keyA, Endpoint: "GET /list_tables", CreatedAt: now},
		{ID: "01J00000000000000000000002", APIKey: keyA, Endpoint: "POST /create_table", CreatedAt: now},
		{ID: "01J00000000000000000000003", APIKey: "other", Endpoint: "GET /list_tables", CreatedAt: now},
	}
	require.NoError(t, repo.InsertBatch(ctx, events))

	n, err := repo.CountByAPIKey(ctx, keyA)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.CountByAPIKey(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, n)

	// replaying stored events is a no-op for them
	replay := append(events[:1:1], model.UsageEvent{
		ID: "01J00000000000000000000004", APIKey: keyA, Endpoint: "GET /list_tables", CreatedAt: now,
	})
	require.NoError(t, repo.InsertBatch(ctx, replay))

	n, err = repo.CountByAPIKey(ctx, keyA)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
