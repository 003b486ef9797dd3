// Package ddl renders the CREATE/DROP statements the database sinks need for
// their partition tables.
//
// A TableDef is built from canonical column names (TableFor) and rendered
// for one of the supported dialects. Every column is nullable: derived zone
// attributes and raw passenger counts may legitimately be null.
package ddl

import (
	"fmt"
	"strings"

	"taxiprep/internal/schema"
)

// TableFor returns the definition of a table holding cols, typed by
// schema.KindOf for dialect d.
func TableFor(fqn string, cols []string, d Dialect) TableDef {
	t := TableDef{FQN: fqn, Columns: make([]ColumnDef, len(cols))}
	for i, c := range cols {
		t.Columns[i] = ColumnDef{Name: c, SQLType: d.Type(schema.KindOf(c)), Nullable: true}
	}
	return t
}

// BuildCreateTableSQL renders a CREATE TABLE statement for t in dialect d.
//
// Rules:
//
//   - t.FQN must be non-empty; each dotted part is quoted.
//   - Each column must have a non-empty Name and SQLType.
//   - A column is rendered as <Name> <SQLType> [NOT NULL].
//
// The resulting statement has the form:
//
//	CREATE TABLE <FQN> (
//	  <col1-def>,
//	  <col2-def>
//	);
func BuildCreateTableSQL(t TableDef, d Dialect) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(d.Ident(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())
	}

	return fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n);",
		d.FQN(fqn),
		strings.Join(cols, ",\n  "),
	), nil
}

// DropTableSQL renders DROP TABLE IF EXISTS for fqn. All four dialects
// accept the IF EXISTS form (SQL Server from 2016).
func DropTableSQL(fqn string, d Dialect) string {
	return "DROP TABLE IF EXISTS " + d.FQN(fqn) + ";"
}
