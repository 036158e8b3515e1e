package db

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/jmehdipour/linkdb/internal/util"
)

// Dialect renders the engine-specific parts of dynamic SQL. Every identifier
// passed to a Dialect must already have passed util.ValidIdentifier.
type Dialect interface {
	Name() string
	// QuoteIdent quotes a validated identifier.
	QuoteIdent(name string) string
	// ColumnDDL renders an allow-listed column type.
	ColumnDDL(t model.ColumnType) string
	// IDColumnDDL renders the implicit auto-increment primary key.
	IDColumnDDL() string
	// TableOptions is appended after the closing parenthesis of CREATE TABLE.
	TableOptions() string
	// ListTablesQuery selects physical table names matching a LIKE pattern bound as its only argument.
	ListTablesQuery() string
	// Placeholder is the bind parameter format for squirrel builders.
	Placeholder() sq.PlaceholderFormat
}

// CreateTableSQL renders a create-if-absent statement for a validated table definition.
func CreateTableSQL(d Dialect, physical string, def model.TableDefinition) (string, error) {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(d.QuoteIdent(physical))
	b.WriteString(" (")
	b.WriteString(d.IDColumnDDL())
	for _, c := range def.Columns {
		if c.Name == model.IDField {
			continue
		}
		t, err := model.ParseColumnType(c.Type)
		if err != nil {
			return "", err
		}
		b.WriteString(", ")
		b.WriteString(d.QuoteIdent(c.Name))
		b.WriteByte(' ')
		b.WriteString(d.ColumnDDL(t))
	}
	b.WriteByte(')')
	b.WriteString(d.TableOptions())
	return b.String(), nil
}

// DialectFor returns the dialect of a configured storage driver.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "mysql":
		return MySQL{}, nil
	case "sqlite":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

// MySQL is the dialect of the production store.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) QuoteIdent(name string) string { return "`" + name + "`" }

var mysqlTypes = map[model.ColumnKind]string{
	model.KindText:      "TEXT",
	model.KindVarchar:   "VARCHAR(255)",
	model.KindInteger:   "INT",
	model.KindBigint:    "BIGINT",
	model.KindReal:      "FLOAT",
	model.KindDouble:    "DOUBLE",
	model.KindBoolean:   "TINYINT(1)",
	model.KindTimestamp: "DATETIME(6)",
	model.KindDate:      "DATE",
	model.KindBlob:      "LONGBLOB",
	model.KindJSON:      "JSON",
}

func (MySQL) ColumnDDL(t model.ColumnType) string {
	if t.NotNull {
		return mysqlTypes[t.Kind] + " NOT NULL"
	}
	return mysqlTypes[t.Kind] + " NULL"
}

func (MySQL) IDColumnDDL() string { return "`id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY" }

func (MySQL) TableOptions() string { return " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4" }

func (MySQL) ListTablesQuery() string {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name LIKE ? ESCAPE '` + string(util.LikeEscapeChar) + `'
		ORDER BY table_name`
}

func (MySQL) Placeholder() sq.PlaceholderFormat { return sq.Question }

// SQLite is the embedded dialect used for single-node deployments and tests.
// Tenant tables are STRICT so the engine rejects values of the wrong type.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) QuoteIdent(name string) string { return `"` + name + `"` }

var sqliteTypes = map[model.ColumnKind]string{
	model.KindText:      "TEXT",
	model.KindVarchar:   "TEXT",
	model.KindInteger:   "INTEGER",
	model.KindBigint:    "INTEGER",
	model.KindReal:      "REAL",
	model.KindDouble:    "REAL",
	model.KindBoolean:   "INTEGER",
	model.KindTimestamp: "TEXT",
	model.KindDate:      "TEXT",
	model.KindBlob:      "BLOB",
	model.KindJSON:      "TEXT",
}

func (SQLite) ColumnDDL(t model.ColumnType) string {
	if t.NotNull {
		return sqliteTypes[t.Kind] + " NOT NULL"
	}
	return sqliteTypes[t.Kind]
}

func (SQLite) IDColumnDDL() string { return `"id" INTEGER PRIMARY KEY AUTOINCREMENT` }

func (SQLite) TableOptions() string { return " STRICT" }

func (SQLite) ListTablesQuery() string {
	return `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name LIKE ? ESCAPE '` + string(util.LikeEscapeChar) + `'
		ORDER BY name`
}

func (SQLite) Placeholder() sq.PlaceholderFormat { return sq.Question }
