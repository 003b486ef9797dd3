package storage

import (
	"context"
	"fmt"

	"taxiprep/internal/ddl"
)

// EnsureTable (re)creates table with the given canonical columns. An
// existing table of that name is dropped first, so a staging table left
// behind by an aborted run never leaks rows into the next one.
func EnsureTable(ctx context.Context, repo Repository, table string, columns []string) error {
	d := repo.Dialect()
	stmt, err := ddl.BuildCreateTableSQL(ddl.TableFor(table, columns, d), d)
	if err != nil {
		return fmt.Errorf("build table definition: %w", err)
	}
	if err := repo.Exec(ctx, ddl.DropTableSQL(table, d)); err != nil {
		return fmt.Errorf("drop %s: %w", table, err)
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	return nil
}
