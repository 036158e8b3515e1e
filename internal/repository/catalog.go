package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/jmoiron/sqlx"
)

// CatalogRepository persists the definition of every materialized tenant table.
type CatalogRepository interface {
	Get(ctx context.Context, tx *sqlx.Tx, namespace, table string) (*model.TableDefinition, error)
	Insert(ctx context.Context, tx *sqlx.Tx, namespace string, def model.TableDefinition) error
}

type CatalogRepositoryImpl struct {
	db          *sqlx.DB
	isDuplicate func(error) bool
}

func NewCatalogRepository(db *sqlx.DB, isDuplicate func(error) bool) *CatalogRepositoryImpl {
	return &CatalogRepositoryImpl{db: db, isDuplicate: isDuplicate}
}

var _ CatalogRepository = (*CatalogRepositoryImpl)(nil)

type catalogRow struct {
	TableName string    `db:"table_name"`
	Columns   string    `db:"columns"`
	CreatedAt time.Time `db:"created_at"`
}

// Get returns nil, nil when the namespace has no table with that name.
func (r *CatalogRepositoryImpl) Get(ctx context.Context, tx *sqlx.Tx, namespace, table string) (*model.TableDefinition, error) {
	const q = `
		SELECT table_name, columns, created_at
		  FROM table_definitions
		 WHERE namespace = ? AND table_name = ?
	`
	var row catalogRow
	var err error
	if tx != nil {
		err = tx.GetContext(ctx, &row, q, namespace, table)
	} else {
		err = r.db.GetContext(ctx, &row, q, namespace, table)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	def := model.TableDefinition{Name: row.TableName}
	if err := json.Unmarshal([]byte(row.Columns), &def.Columns); err != nil {
		return nil, fmt.Errorf("decode columns of %s: %w", row.TableName, err)
	}
	return &def, nil
}

// Insert records a definition. A concurrent insert of the same table
// surfaces as ErrDuplicate.
func (r *CatalogRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, namespace string, def model.TableDefinition) error {
	cols, err := json.Marshal(def.Columns)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO table_definitions (namespace, table_name, columns, created_at)
		VALUES (?, ?, ?, ?)
	`
	args := []any{namespace, def.Name, string(cols), time.Now().UTC()}
	if tx != nil {
		_, err = tx.ExecContext(ctx, q, args...)
	} else {
		_, err = r.db.ExecContext(ctx, q, args...)
	}
	if err != nil && r.isDuplicate != nil && r.isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}
