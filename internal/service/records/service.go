// Package records executes schema-agnostic CRUD against tenant tables.
//
// Table and column names reach SQL only after passing the identifier check
// and being found in the table's catalogued definition; every value is a
// bound parameter.
package records

import (
	"context"
	"database/sql"
	"iter"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmehdipour/linkdb/internal/apperr"
	"github.com/jmehdipour/linkdb/internal/db"
	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/jmehdipour/linkdb/internal/util"
)

// Definitions resolves the catalogued definition of a tenant table.
type Definitions interface {
	DescribeTable(ctx context.Context, ns, table string) (*model.TableDefinition, error)
}

// Page restricts a scan. A zero Limit reads the whole table.
type Page struct {
	Limit  uint64
	Offset uint64
}

type Service struct {
	store *db.Store
	defs  Definitions
}

func New(store *db.Store, defs Definitions) *Service {
	return &Service{store: store, defs: defs}
}

// target is a resolved tenant table.
type target struct {
	def      *model.TableDefinition
	physical string
}

func (s *Service) target(ctx context.Context, ns, table string) (target, error) {
	def, err := s.defs.DescribeTable(ctx, ns, table)
	if err != nil {
		return target{}, err
	}
	return target{def: def, physical: s.store.Dialect.QuoteIdent(util.QualifiedTable(ns, def.Name))}, nil
}

func (s *Service) quote(name string) string { return s.store.Dialect.QuoteIdent(name) }

// fieldNames folds and checks the names of fields without touching
// storage. Sorting keeps the generated statement stable.
func fieldNames(fields model.Record) ([]string, map[string]any, error) {
	names := make([]string, 0, len(fields))
	byName := make(map[string]any, len(fields))
	for k, v := range fields {
		name := util.NormalizeIdentifier(k)
		if !util.ValidIdentifier(name, util.MaxColumnNameLen) {
			return nil, nil, apperr.New(apperr.EInvalidSchema, "invalid field name %q", k)
		}
		if _, dup := byName[name]; dup {
			return nil, nil, apperr.New(apperr.EInvalidSchema, "duplicate field %q", name)
		}
		byName[name] = v
		names = append(names, name)
	}
	sort.Strings(names)
	return names, byName, nil
}

// bind converts each named value to its declared column type.
func bind(def *model.TableDefinition, names []string, byName map[string]any) ([]any, error) {
	values := make([]any, len(names))
	for i, name := range names {
		kind := def.Kind(name)
		if kind == "" {
			return nil, apperr.New(apperr.EConstraintViolation, "table %s has no column %q", def.Name, name)
		}
		v, err := bindValue(kind, byName[name])
		if err != nil {
			return nil, apperr.New(apperr.EConstraintViolation, "column %s: %v", name, err)
		}
		values[i] = v
	}
	return values, nil
}

// Insert stores one row and returns its id.
func (s *Service) Insert(ctx context.Context, ns, table string, fields model.Record) (int64, error) {
	const op = "records.Insert"

	if len(fields) == 0 {
		return 0, apperr.Wrap(nil, apperr.EInvalidSchema, op, "no fields to insert")
	}
	names, byName, err := fieldNames(fields)
	if err != nil {
		return 0, apperr.WithOp(err, op)
	}

	qctx, cancel := s.store.Bounded(ctx)
	defer cancel()

	t, err := s.target(qctx, ns, table)
	if err != nil {
		return 0, apperr.WithOp(err, op)
	}
	values, err := bind(t.def, names, byName)
	if err != nil {
		return 0, apperr.WithOp(err, op)
	}

	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = s.quote(n)
	}
	query, args, err := s.store.Builder().Insert(t.physical).Columns(quoted...).Values(values...).ToSql()
	if err != nil {
		return 0, apperr.Wrap(err, apperr.EInternal, op, "")
	}

	res, err := s.store.ExecContext(qctx, query, args...)
	if err != nil {
		return 0, db.Translate(err, op)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, db.Translate(err, op)
	}
	return id, nil
}

// Query returns a lazy scan of the table ordered by id. Nothing is read
// until the sequence is ranged over, and each range re-executes the scan.
// A failure is yielded once as the final element.
func (s *Service) Query(ctx context.Context, ns, table string, page Page) iter.Seq2[model.Record, error] {
	const op = "records.Query"

	return func(yield func(model.Record, error) bool) {
		qctx, cancel := s.store.Bounded(ctx)
		defer cancel()

		t, err := s.target(qctx, ns, table)
		if err != nil {
			yield(nil, apperr.WithOp(err, op))
			return
		}

		b := s.store.Builder().Select("*").From(t.physical).OrderBy(s.quote(model.IDField))
		if page.Limit > 0 {
			b = b.Limit(page.Limit).Offset(page.Offset)
		} else if page.Offset > 0 {
			// both engines need a LIMIT before OFFSET
			b = b.Suffix("LIMIT 9223372036854775807 OFFSET ?", page.Offset)
		}
		query, args, err := b.ToSql()
		if err != nil {
			yield(nil, apperr.Wrap(err, apperr.EInternal, op, ""))
			return
		}

		rows, err := s.store.QueryxContext(qctx, query, args...)
		if err != nil {
			yield(nil, db.Translate(err, op))
			return
		}
		defer rows.Close()

		for rows.Next() {
			raw := make(map[string]any)
			if err := rows.MapScan(raw); err != nil {
				yield(nil, db.Translate(err, op))
				return
			}
			rec := make(model.Record, len(raw))
			for col, v := range raw {
				rec[col] = scanValue(t.def.Kind(col), v)
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, db.Translate(err, op))
		}
	}
}

// QueryAll drains Query into a slice. An empty table yields an empty, non-nil slice.
func (s *Service) QueryAll(ctx context.Context, ns, table string, page Page) ([]model.Record, error) {
	out := []model.Record{}
	for rec, err := range s.Query(ctx, ns, table, page) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Update sets the given fields on the row whose id is fields["id"]. The id
// is only used as the key, never assigned. A missing row is ENotFound
// wrapping apperr.ErrRowNotFound.
func (s *Service) Update(ctx context.Context, ns, table string, fields model.Record) error {
	const op = "records.Update"

	rawID, rest, ok := fields.SplitID()
	if !ok {
		return apperr.Wrap(nil, apperr.EInvalidSchema, op, "id is required")
	}
	id, err := rowID(rawID)
	if err != nil {
		return apperr.Wrap(err, apperr.EInvalidSchema, op, err.Error())
	}

	if len(rest) == 0 {
		return apperr.Wrap(nil, apperr.EInvalidSchema, op, "no fields to update")
	}
	names, byName, err := fieldNames(rest)
	if err != nil {
		return apperr.WithOp(err, op)
	}
	for _, n := range names {
		if n == model.IDField {
			// "ID" in another case folds onto the key
			return apperr.Wrap(nil, apperr.EInvalidSchema, op, "id cannot be updated")
		}
	}

	qctx, cancel := s.store.Bounded(ctx)
	defer cancel()

	t, err := s.target(qctx, ns, table)
	if err != nil {
		return apperr.WithOp(err, op)
	}
	values, err := bind(t.def, names, byName)
	if err != nil {
		return apperr.WithOp(err, op)
	}

	b := s.store.Builder().Update(t.physical).Where(sq.Eq{s.quote(model.IDField): id})
	for i, n := range names {
		b = b.Set(s.quote(n), values[i])
	}
	query, args, err := b.ToSql()
	if err != nil {
		return apperr.Wrap(err, apperr.EInternal, op, "")
	}

	res, err := s.store.ExecContext(qctx, query, args...)
	if err != nil {
		return db.Translate(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return db.Translate(err, op)
	}
	if n == 0 {
		return apperr.Wrap(apperr.ErrRowNotFound, apperr.ENotFound, op, "row not found")
	}
	return nil
}

// Delete removes the row with the given id. Deleting a missing row succeeds.
func (s *Service) Delete(ctx context.Context, ns, table string, rawID any) error {
	const op = "records.Delete"

	id, err := rowID(rawID)
	if err != nil {
		return apperr.Wrap(err, apperr.EInvalidSchema, op, err.Error())
	}

	qctx, cancel := s.store.Bounded(ctx)
	defer cancel()

	t, err := s.target(qctx, ns, table)
	if err != nil {
		return apperr.WithOp(err, op)
	}

	query, args, err := s.store.Builder().Delete(t.physical).Where(sq.Eq{s.quote(model.IDField): id}).ToSql()
	if err != nil {
		return apperr.Wrap(err, apperr.EInternal, op, "")
	}
	if _, err := s.store.ExecContext(qctx, query, args...); err != nil {
		return db.Translate(err, op)
	}
	return nil
}

// Count returns the number of rows in the table.
func (s *Service) Count(ctx context.Context, ns, table string) (int64, error) {
	const op = "records.Count"

	qctx, cancel := s.store.Bounded(ctx)
	defer cancel()

	t, err := s.target(qctx, ns, table)
	if err != nil {
		return 0, apperr.WithOp(err, op)
	}

	query, args, err := s.store.Builder().Select("COUNT(*)").From(t.physical).ToSql()
	if err != nil {
		return 0, apperr.Wrap(err, apperr.EInternal, op, "")
	}
	var n int64
	if err := s.store.GetContext(qctx, &n, query, args...); err != nil {
		return 0, db.Translate(err, op)
	}
	return n, nil
}

// Sum adds up a numeric column, skipping NULLs. The result is an int64 for
// integer columns and a float64 otherwise; an empty table sums to zero.
func (s *Service) Sum(ctx context.Context, ns, table, column string) (any, error) {
	const op = "records.Sum"

	col := util.NormalizeIdentifier(column)
	if !util.ValidIdentifier(col, util.MaxColumnNameLen) {
		return nil, apperr.WithOp(apperr.New(apperr.EInvalidSchema, "invalid column name %q", column), op)
	}

	qctx, cancel := s.store.Bounded(ctx)
	defer cancel()

	t, err := s.target(qctx, ns, table)
	if err != nil {
		return nil, apperr.WithOp(err, op)
	}
	kind := t.def.Kind(col)
	if kind == "" {
		return nil, apperr.Wrap(nil, apperr.EInvalidSchema, op, "table "+t.def.Name+" has no column "+col)
	}
	if !kind.Numeric() {
		return nil, apperr.Wrap(nil, apperr.EInvalidSchema, op, "column "+col+" is not numeric")
	}

	query, args, err := s.store.Builder().Select("SUM(" + s.quote(col) + ")").From(t.physical).ToSql()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.EInternal, op, "")
	}

	if kind.Integral() {
		var sum sql.NullInt64
		if err := s.store.GetContext(qctx, &sum, query, args...); err != nil {
			return nil, db.Translate(err, op)
		}
		return sum.Int64, nil
	}
	var sum sql.NullFloat64
	if err := s.store.GetContext(qctx, &sum, query, args...); err != nil {
		return nil, db.Translate(err, op)
	}
	return sum.Float64, nil
}
