// Package postgres implements a Postgres repository using pgx v5. Rows are
// loaded with COPY into a staging table which is then renamed over the
// target inside one transaction.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taxiprep/internal/ddl"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN string // connection string for pgxpool
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	close := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg}, close, nil
}

// CopyFrom streams rows into table with the COPY protocol.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	return r.pool.CopyFrom(ctx, splitFQN(table), columns, pgx.CopyFromRows(rows))
}

// Swap drops target and renames staging to it in one transaction. Postgres
// DDL is transactional, so readers see either the old or the new table.
func (r *Repository) Swap(ctx context.Context, staging, target string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range swapStatements(staging, target) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("swap %s -> %s: %w", staging, target, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// swapStatements renders the statements of Swap. RENAME TO takes a bare
// name; the table stays in the staging table's schema.
func swapStatements(staging, target string) []string {
	id := splitFQN(target)
	return []string{
		ddl.DropTableSQL(target, ddl.Postgres),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", pgFQN(staging), pgIdent(id[len(id)-1])),
	}
}

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.pool.Exec(ctx, sql)
	return err
}

// Dialect implements storage.Repository.Dialect.
func (r *Repository) Dialect() ddl.Dialect { return ddl.Postgres }

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

func pgIdent(id string) string { return ddl.Postgres.Ident(id) }

func pgFQN(name string) string { return ddl.Postgres.FQN(name) }
