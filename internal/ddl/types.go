package ddl

import (
	"strings"

	"taxiprep/internal/schema"
)

// ColumnDef describes a single column of a table definition.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - SQLType: dialect SQL type (e.g., BIGINT, TIMESTAMPTZ)
//   - Nullable: whether NULL is allowed
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
}

// TableDef holds the table name and an ordered list of columns. FQN may be
// schema-qualified in dotted form ("public.trips"); each part is quoted
// separately by the renderer.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Dialect captures what differs between the SQL backends when rendering DDL:
// identifier quoting and the column type of each schema.Kind.
type Dialect struct {
	Name  string
	open  string
	close string
	types [4]string // indexed by schema.Kind
}

// Supported dialects.
var (
	Postgres = Dialect{
		Name: "postgres", open: `"`, close: `"`,
		types: [4]string{"TEXT", "BIGINT", "DOUBLE PRECISION", "TIMESTAMPTZ"},
	}
	// SQLite declares timestamps as TIMESTAMP so modernc scans them back
	// into time.Time.
	SQLite = Dialect{
		Name: "sqlite", open: `"`, close: `"`,
		types: [4]string{"TEXT", "INTEGER", "REAL", "TIMESTAMP"},
	}
	MSSQL = Dialect{
		Name: "mssql", open: `[`, close: `]`,
		types: [4]string{"NVARCHAR(255)", "BIGINT", "FLOAT", "DATETIME2"},
	}
	MySQL = Dialect{
		Name: "mysql", open: "`", close: "`",
		types: [4]string{"VARCHAR(255)", "BIGINT", "DOUBLE", "DATETIME(6)"},
	}
)

// Ident quotes a single identifier, doubling any embedded closing quote.
func (d Dialect) Ident(id string) string {
	return d.open + strings.ReplaceAll(id, d.close, d.close+d.close) + d.close
}

// FQN quotes a possibly schema-qualified name such as "dbo.trips" part by
// part.
func (d Dialect) FQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.Ident(p)
	}
	return strings.Join(parts, ".")
}

// Type returns the column type for k.
func (d Dialect) Type(k schema.Kind) string {
	if int(k) < 0 || int(k) >= len(d.types) {
		return d.types[schema.KindText]
	}
	return d.types[k]
}
