package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:embed migrations
var migrations embed.FS

// Migrate applies the embedded control-plane scripts for a dialect
// ("mysql", "sqlite" or "clickhouse") in file-name order. Every statement is
// create-if-absent, so running it again is a no-op.
func Migrate(ctx context.Context, dbx *sqlx.DB, dialect string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	dir := path.Join("migrations", dialect)
	list, err := fs.ReadDir(migrations, dir)
	if err != nil {
		return fmt.Errorf("no migrations for %q: %w", dialect, err)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})

	for _, f := range list {
		b, err := migrations.ReadFile(path.Join(dir, f.Name()))
		if err != nil {
			return err
		}
		log.Debug("Executing migration", zap.String("dialect", dialect), zap.String("migration_name", f.Name()))
		for _, stmt := range splitStatements(string(b)) {
			if _, err := dbx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %s: %w", f.Name(), err)
			}
		}
	}
	return nil
}

// splitStatements drops "--" comment lines and splits a script on semicolons.
// The scripts contain no string literals with semicolons.
func splitStatements(script string) []string {
	var b strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var out []string
	for _, s := range strings.Split(b.String(), ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
