// Package mysql implements a MySQL-backed storage.Repository. Rows are
// written with multi-row INSERT statements; the staging table replaces the
// target through a single atomic RENAME TABLE.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"taxiprep/internal/ddl"
)

// maxPlaceholders is the server's prepared statement parameter limit.
const maxPlaceholders = 65535

// Config holds MySQL repository configuration.
type Config struct {
	// DSN in go-sql-driver form, e.g. "user:pass@tcp(127.0.0.1:3306)/taxi".
	DSN string
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens a pool and returns a Repository plus a Close function.
// Timestamps are exchanged in UTC.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	dc.ParseTime = true
	dc.Loc = time.UTC

	conn, err := mysql.NewConnector(dc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(conn)
	db.SetConnMaxLifetime(3 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, func() { _ = db.Close() }, nil
}

// CopyFrom inserts rows into table with as few multi-row INSERT statements
// as the placeholder limit allows, inside one transaction.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	per := rowsPerStatement(len(columns))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	var total int64
	for start := 0; start < len(rows); start += per {
		chunk := rows[start:min(start+per, len(rows))]
		args := make([]any, 0, len(chunk)*len(columns))
		for i, row := range chunk {
			if len(row) != len(columns) {
				rollback()
				return 0, fmt.Errorf("mysql: row %d length %d != columns length %d", start+i, len(row), len(columns))
			}
			args = append(args, row...)
		}
		res, err := tx.ExecContext(ctx, insertSQL(table, columns, len(chunk)), args...)
		if err != nil {
			rollback()
			return 0, fmt.Errorf("insert rows %d-%d: %w", start, start+len(chunk)-1, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			rollback()
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}

func rowsPerStatement(cols int) int {
	return max(1, maxPlaceholders/cols)
}

// insertSQL renders INSERT INTO t (c1, c2) VALUES (?, ?), (?, ?), ... for n
// rows.
func insertSQL(table string, columns []string, n int) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = ddl.MySQL.Ident(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(ddl.MySQL.FQN(table))
	sb.WriteString(" (")
	sb.WriteString(strings.Join(quoted, ", "))
	sb.WriteString(") VALUES ")
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
	}
	return sb.String()
}

// Swap replaces target with staging. MySQL DDL commits implicitly, so the
// exchange relies on RENAME TABLE, which renames both tables atomically; the
// target is created empty first when it does not exist yet.
func (r *Repository) Swap(ctx context.Context, staging, target string) error {
	for _, stmt := range swapStatements(staging, target) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("swap %s -> %s: %w", staging, target, err)
		}
	}
	return nil
}

func swapStatements(staging, target string) []string {
	old := target + "__old"
	q := ddl.MySQL.FQN
	return []string{
		ddl.DropTableSQL(old, ddl.MySQL),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s LIKE %s;", q(target), q(staging)),
		fmt.Sprintf("RENAME TABLE %s TO %s, %s TO %s;", q(target), q(old), q(staging), q(target)),
		ddl.DropTableSQL(old, ddl.MySQL),
	}
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// Dialect implements storage.Repository.Dialect.
func (r *Repository) Dialect() ddl.Dialect { return ddl.MySQL }
