package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/somamerge/internal/table"
)

// quoteIdent quotes a SQL identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// validTableName accepts names made of letters, digits and underscores that
// do not start with a digit.
func validTableName(name string) bool {
	if name == "" || name == "table_sources" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// WriteTable replaces table name with the contents of t, every column typed
// VARCHAR and null cells stored as NULL, then records the source files.
func (s *Store) WriteTable(ctx context.Context, name string, t *table.Table, sources []FileFingerprint) error {
	if !validTableName(name) {
		return fmt.Errorf("invalid table name %q", name)
	}

	names := t.Columns()
	cols := make([]string, len(names))
	for i, c := range names {
		cols[i] = quoteIdent(c) + " VARCHAR"
	}
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	if _, err := s.db.ExecContext(ctx,
		fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(cols, ", ")),
	); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}

	if err := s.appendRows(ctx, name, t); err != nil {
		return err
	}
	return s.recordSources(ctx, name, sources)
}

// appendRows batch-inserts rows using the Appender API.
func (s *Store) appendRows(ctx context.Context, name string, t *table.Table) error {
	if t.Len() == 0 {
		return nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", name)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	vals := make([]driver.Value, len(t.Columns()))
	for _, row := range t.Rows() {
		for i := range vals {
			if i < len(row) && row[i] != "" {
				vals[i] = row[i]
			} else {
				vals[i] = nil
			}
		}
		if err := appender.AppendRow(vals...); err != nil {
			return fmt.Errorf("append row to %s: %w", name, err)
		}
	}

	return appender.Flush()
}

// CountRows returns the number of rows in table name.
func (s *Store) CountRows(name string) (int64, error) {
	if !validTableName(name) {
		return 0, fmt.Errorf("invalid table name %q", name)
	}
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + quoteIdent(name)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s rows: %w", name, err)
	}
	return n, nil
}

// ReadTable reads table name back in insertion order. NULL becomes an empty cell.
func (s *Store) ReadTable(ctx context.Context, name string) (*table.Table, error) {
	if !validTableName(name) {
		return nil, fmt.Errorf("invalid table name %q", name)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(name)+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", name, err)
	}

	var out [][]string
	cells := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range cells {
		dest[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", name, err)
		}
		row := make([]string, len(cols))
		for i, c := range cells {
			row[i] = c.String
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", name, err)
	}
	return table.New(cols, out...)
}
