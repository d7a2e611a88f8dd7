package storage

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Schema files are applied in lexicographic order. Every statement is
// idempotent (IF NOT EXISTS), so Migrate can run on each open.
//
//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate applies the embedded schema in a single transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	files, err := fs.Glob(schemaFS, "schema/*.sql")
	if err != nil {
		return errors.Wrap(err, "list schema files")
	}
	sort.Strings(files)

	return WithTx(ctx, db, func(q Querier) error {
		for _, name := range files {
			body, err := schemaFS.ReadFile(name)
			if err != nil {
				return errors.Wrapf(err, "read %s", name)
			}
			for _, stmt := range splitStatements(string(body)) {
				if _, err := q.ExecContext(ctx, stmt); err != nil {
					return Fail("migrate "+name, err)
				}
			}
		}
		return nil
	})
}

// splitStatements splits a schema file on ";" and drops blank statements.
// Schema files must not contain semicolons inside literals.
func splitStatements(body string) []string {
	var out []string
	for _, part := range strings.Split(body, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
