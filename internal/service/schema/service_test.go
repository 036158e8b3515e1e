package schema_test

import (
	"context"
	"testing"

	"github.com/jmehdipour/linkdb/internal/apperr"
	"github.com/jmehdipour/linkdb/internal/db"
	"github.com/jmehdipour/linkdb/internal/db/dbtest"
	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/jmehdipour/linkdb/internal/repository"
	"github.com/jmehdipour/linkdb/internal/service/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	nsA = "ks_0f8fad5bd9cb469fa16570867728950e"
	nsB = "ks_7c9e6679742540de944be07fc1f90ae7"
)

func newService(t *testing.T) (*schema.Service, *db.Store) {
	t.Helper()
	store := dbtest.NewStore(t)
	return schema.New(store, repository.NewCatalogRepository(store.DB, db.IsDuplicateKey), nil), store
}

func users() model.TableDefinition {
	return model.TableDefinition{
		Name:    "users",
		Columns: model.ColumnList{{Name: "name", Type: "TEXT"}, {Name: "age", Type: "INTEGER"}},
	}
}

func TestCreateTableIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	require.NoError(t, svc.CreateTable(ctx, nsA, users()))
	require.NoError(t, svc.CreateTable(ctx, nsA, users()))

	// same column set in another order and case
	reordered := model.TableDefinition{
		Name:    "Users",
		Columns: model.ColumnList{{Name: "AGE", Type: "int"}, {Name: "name", Type: "text"}},
	}
	require.NoError(t, svc.CreateTable(ctx, nsA, reordered))

	tables, err := svc.ListTables(ctx, nsA)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, tables)
}

func TestCreateTableConflict(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	require.NoError(t, svc.CreateTable(ctx, nsA, users()))

	changed := users()
	changed.Columns = append(changed.Columns, model.Column{Name: "email", Type: "TEXT"})
	err := svc.CreateTable(ctx, nsA, changed)
	assert.Equal(t, apperr.ESchemaConflict, apperr.ErrorCode(err))

	retyped := model.TableDefinition{
		Name:    "users",
		Columns: model.ColumnList{{Name: "name", Type: "TEXT"}, {Name: "age", Type: "TEXT"}},
	}
	err = svc.CreateTable(ctx, nsA, retyped)
	assert.Equal(t, apperr.ESchemaConflict, apperr.ErrorCode(err))
}

func TestCreateTableRejectsUnsafeDefinitions(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	cases := map[string]model.TableDefinition{
		"table injection": {Name: "users; DROP TABLE credentials", Columns: model.ColumnList{{Name: "a", Type: "TEXT"}}},
		"column injection": {Name: "t", Columns: model.ColumnList{{Name: "a TEXT); DROP TABLE credentials; --", Type: "TEXT"}}},
		"type injection":   {Name: "t", Columns: model.ColumnList{{Name: "a", Type: "TEXT); DROP TABLE credentials; --"}}},
		"unknown type":     {Name: "t", Columns: model.ColumnList{{Name: "a", Type: "GEOMETRY"}}},
		"type with extras": {Name: "t", Columns: model.ColumnList{{Name: "a", Type: "TEXT DEFAULT 'x'"}}},
		"leading digit":    {Name: "1t", Columns: model.ColumnList{{Name: "a", Type: "TEXT"}}},
		"quote":            {Name: "t\"", Columns: model.ColumnList{{Name: "a", Type: "TEXT"}}},
		"too long":         {Name: "abcdefghijklmnopqrstuvwxyz01", Columns: model.ColumnList{{Name: "a", Type: "TEXT"}}},
		"empty name":       {Name: "", Columns: model.ColumnList{{Name: "a", Type: "TEXT"}}},
		"no columns":       {Name: "t"},
		"only id":          {Name: "t", Columns: model.ColumnList{{Name: "id", Type: "INTEGER"}}},
		"text id":          {Name: "t", Columns: model.ColumnList{{Name: "id", Type: "TEXT"}, {Name: "a", Type: "TEXT"}}},
		"duplicate folded": {Name: "t", Columns: model.ColumnList{{Name: "a", Type: "TEXT"}, {Name: "A", Type: "TEXT"}}},
	}
	for name, def := range cases {
		t.Run(name, func(t *testing.T) {
			err := svc.CreateTable(ctx, nsA, def)
			require.Error(t, err)
			assert.Equal(t, apperr.EInvalidSchema, apperr.ErrorCode(err))
		})
	}

	var n int
	require.NoError(t, store.GetContext(ctx, &n, `SELECT COUNT(*) FROM credentials`))
	assert.Zero(t, n)
	tables, err := svc.ListTables(ctx, nsA)
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestCreateTableRejectsInvalidNamespace(t *testing.T) {
	svc, _ := newService(t)

	err := svc.CreateTable(context.Background(), "ks_x; DROP TABLE credentials", users())
	assert.Equal(t, apperr.EInvalidCredential, apperr.ErrorCode(err))
}

func TestValidateDefinition(t *testing.T) {
	def, err := schema.ValidateDefinition(model.TableDefinition{
		Name: "Orders",
		Columns: model.ColumnList{
			{Name: "ID", Type: "bigint"},
			{Name: "Total", Type: "double not null"},
			{Name: "paid", Type: "bool"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.TableDefinition{
		Name: "orders",
		Columns: model.ColumnList{
			{Name: "total", Type: "DOUBLE NOT NULL"},
			{Name: "paid", Type: "BOOLEAN"},
		},
	}, def)
}

func TestListTablesIsolation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	require.NoError(t, svc.CreateTable(ctx, nsA, users()))
	require.NoError(t, svc.CreateTable(ctx, nsA, model.TableDefinition{
		Name: "orders", Columns: model.ColumnList{{Name: "total", Type: "REAL"}},
	}))
	require.NoError(t, svc.CreateTable(ctx, nsB, users()))
	require.NoError(t, svc.CreateTable(ctx, nsB, model.TableDefinition{
		Name: "secrets", Columns: model.ColumnList{{Name: "v", Type: "TEXT"}},
	}))

	a, err := svc.ListTables(ctx, nsA)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, a)

	b, err := svc.ListTables(ctx, nsB)
	require.NoError(t, err)
	assert.Equal(t, []string{"secrets", "users"}, b)
}

func TestListTablesEscapesPattern(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	require.NoError(t, svc.CreateTable(ctx, nsA, users()))

	// "_" is a LIKE wildcard; without escaping this table would match nsA's prefix.
	lookalike := "ks_0f8fad5bd9cb469fa16570867728950eX_stolen"
	_, err := store.ExecContext(ctx, `CREATE TABLE "`+lookalike+`" (v TEXT)`)
	require.NoError(t, err)

	tables, err := svc.ListTables(ctx, nsA)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, tables)
}

func TestDescribeTable(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	require.NoError(t, svc.CreateTable(ctx, nsA, users()))

	def, err := svc.DescribeTable(ctx, nsA, "USERS")
	require.NoError(t, err)
	assert.Equal(t, users(), *def)

	_, err = svc.DescribeTable(ctx, nsB, "users")
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))
	assert.ErrorIs(t, err, apperr.ErrTableNotFound)

	_, err = svc.DescribeTable(ctx, nsA, "users--")
	assert.Equal(t, apperr.EInvalidSchema, apperr.ErrorCode(err))
}
