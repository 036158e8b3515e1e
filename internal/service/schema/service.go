// Package schema validates tenant table definitions and materializes them as
// namespace-qualified tables in the shared store.
package schema

import (
	"context"
	"errors"
	"strings"

	"github.com/jmehdipour/linkdb/internal/apperr"
	"github.com/jmehdipour/linkdb/internal/db"
	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/jmehdipour/linkdb/internal/repository"
	"github.com/jmehdipour/linkdb/internal/util"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type Service struct {
	store   *db.Store
	catalog repository.CatalogRepository
	log     *zap.Logger
}

func New(store *db.Store, catalog repository.CatalogRepository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, catalog: catalog, log: log}
}

// ValidateDefinition checks a tenant-supplied definition and returns its
// canonical form: lower-case names, canonical type strings and no "id"
// column. Every failure is EInvalidSchema.
func ValidateDefinition(def model.TableDefinition) (model.TableDefinition, error) {
	name := util.NormalizeIdentifier(def.Name)
	if !util.ValidIdentifier(name, util.MaxTableNameLen) {
		return model.TableDefinition{}, apperr.New(apperr.EInvalidSchema,
			"invalid table name %q: use letters, digits and underscores, starting with a letter or underscore, at most %d characters",
			def.Name, util.MaxTableNameLen)
	}
	if len(def.Columns) == 0 {
		return model.TableDefinition{}, apperr.New(apperr.EInvalidSchema, "table %q must declare at least one column", name)
	}

	out := model.TableDefinition{Name: name, Columns: make(model.ColumnList, 0, len(def.Columns))}
	seen := make(map[string]struct{}, len(def.Columns))
	for _, c := range def.Columns {
		col := util.NormalizeIdentifier(c.Name)
		if !util.ValidIdentifier(col, util.MaxColumnNameLen) {
			return model.TableDefinition{}, apperr.New(apperr.EInvalidSchema, "invalid column name %q", c.Name)
		}
		if _, dup := seen[col]; dup {
			return model.TableDefinition{}, apperr.New(apperr.EInvalidSchema, "duplicate column %q", col)
		}
		seen[col] = struct{}{}

		t, err := model.ParseColumnType(c.Type)
		if err != nil {
			return model.TableDefinition{}, apperr.New(apperr.EInvalidSchema, "column %s: %v", col, err)
		}
		if col == model.IDField {
			if !t.Kind.Integral() {
				return model.TableDefinition{}, apperr.New(apperr.EInvalidSchema, "column id is the primary key and must be INTEGER or BIGINT")
			}
			continue
		}
		out.Columns = append(out.Columns, model.Column{Name: col, Type: t.String()})
	}
	if len(out.Columns) == 0 {
		return model.TableDefinition{}, apperr.New(apperr.EInvalidSchema, "table %q must declare at least one column besides id", name)
	}
	return out, nil
}

// ValidTableName normalizes a table name taken from a request path.
func ValidTableName(table string) (string, error) {
	name := util.NormalizeIdentifier(table)
	if !util.ValidIdentifier(name, util.MaxTableNameLen) {
		return "", apperr.New(apperr.EInvalidSchema, "invalid table name %q", table)
	}
	return name, nil
}

func checkNamespace(ns string) error {
	if !util.ValidNamespace(ns) {
		return apperr.New(apperr.EInvalidCredential, "credential maps to an invalid namespace")
	}
	return nil
}

// CreateTable materializes def in namespace ns. Repeating a call with the
// same columns is a no-op; a different column set fails with ESchemaConflict.
func (s *Service) CreateTable(ctx context.Context, ns string, def model.TableDefinition) error {
	const op = "schema.CreateTable"

	if err := checkNamespace(ns); err != nil {
		return apperr.WithOp(err, op)
	}
	def, err := ValidateDefinition(def)
	if err != nil {
		return apperr.WithOp(err, op)
	}
	physical := util.QualifiedTable(ns, def.Name)
	ddl, err := db.CreateTableSQL(s.store.Dialect, physical, def)
	if err != nil {
		return apperr.Wrap(err, apperr.EInvalidSchema, op, err.Error())
	}

	qctx, cancel := s.store.Bounded(ctx)
	defer cancel()

	created := false
	err = s.store.WithTx(qctx, nil, func(tx *sqlx.Tx) error {
		existing, err := s.catalog.Get(qctx, tx, ns, def.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			return compare(*existing, def)
		}
		// MySQL commits DDL implicitly; the catalog insert below then
		// runs in a fresh transaction and still detects a racing create.
		if _, err := tx.ExecContext(qctx, ddl); err != nil {
			return err
		}
		if err := s.catalog.Insert(qctx, tx, ns, def); err != nil {
			return err
		}
		created = true
		return nil
	})
	if errors.Is(err, repository.ErrDuplicate) {
		existing, gerr := s.catalog.Get(qctx, nil, ns, def.Name)
		if gerr != nil {
			return db.Translate(gerr, op)
		}
		if existing == nil {
			return apperr.Wrap(err, apperr.EInternal, op, "")
		}
		err = compare(*existing, def)
	}
	if err != nil {
		return db.Translate(err, op)
	}

	if created {
		s.log.Info("table created", zap.String("namespace", ns), zap.String("table", def.Name),
			zap.Int("columns", len(def.Columns)))
	}
	return nil
}

func compare(existing, def model.TableDefinition) error {
	if existing.SameColumns(def) {
		return nil
	}
	return apperr.New(apperr.ESchemaConflict, "table %q already exists with different columns", def.Name)
}

// ListTables returns the tenant table names of namespace ns, read from the
// engine's own catalog and matched on the escaped namespace prefix.
func (s *Service) ListTables(ctx context.Context, ns string) ([]string, error) {
	const op = "schema.ListTables"

	if err := checkNamespace(ns); err != nil {
		return nil, apperr.WithOp(err, op)
	}
	prefix := ns + util.TableSeparator

	qctx, cancel := s.store.Bounded(ctx)
	defer cancel()

	var physical []string
	if err := s.store.SelectContext(qctx, &physical, s.store.Dialect.ListTablesQuery(), util.PrefixPattern(prefix)); err != nil {
		return nil, db.Translate(err, op)
	}

	tables := make([]string, 0, len(physical))
	for _, p := range physical {
		// information_schema may report names with a different case
		if !strings.HasPrefix(strings.ToLower(p), prefix) {
			continue
		}
		tables = append(tables, strings.ToLower(p[len(prefix):]))
	}
	return tables, nil
}

// DescribeTable returns the catalogued definition of a tenant table.
func (s *Service) DescribeTable(ctx context.Context, ns, table string) (*model.TableDefinition, error) {
	const op = "schema.DescribeTable"

	if err := checkNamespace(ns); err != nil {
		return nil, apperr.WithOp(err, op)
	}
	name, err := ValidTableName(table)
	if err != nil {
		return nil, apperr.WithOp(err, op)
	}

	qctx, cancel := s.store.Bounded(ctx)
	defer cancel()

	def, err := s.catalog.Get(qctx, nil, ns, name)
	if err != nil {
		return nil, db.Translate(err, op)
	}
	if def == nil {
		return nil, apperr.Wrap(apperr.ErrTableNotFound, apperr.ENotFound, op, "table "+name+" not found")
	}
	return def, nil
}
