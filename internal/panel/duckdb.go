package panel

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	goduckdb "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/inodb/somamerge/internal/vcf"
)

// DuckDBPanel serves panel queries from a DuckDB table built with Load.
// Only the fields needed for allele-frequency lookup are stored.
type DuckDBPanel struct {
	db *sql.DB

	queryOnce sync.Once
	queryPS   *sql.Stmt
	queryErr  error
}

// OpenDuckDB opens or creates a panel database at path.
// Use an empty string for an in-memory database.
func OpenDuckDB(path string) (*DuckDBPanel, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	p := &DuckDBPanel{db: db}
	if err := p.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return p, nil
}

func (p *DuckDBPanel) ensureSchema() error {
	if _, err := p.db.Exec(`CREATE TABLE IF NOT EXISTS panel (
		chrom VARCHAR,
		pos BIGINT,
		end_pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		af VARCHAR
	)`); err != nil {
		return err
	}
	_, err := p.db.Exec(`CREATE INDEX IF NOT EXISTS idx_panel_lookup ON panel (chrom, pos)`)
	return err
}

// Load replaces the panel contents with every well-formed record from
// parser. Malformed records are skipped, logged on logger and counted.
func (p *DuckDBPanel) Load(ctx context.Context, parser vcf.VariantParser, logger *zap.Logger) (LoadStats, error) {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM panel`); err != nil {
		return LoadStats{}, fmt.Errorf("clear panel: %w", err)
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return LoadStats{}, fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "panel")
		return err
	}); err != nil {
		return LoadStats{}, fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	stats, err := readRecords(ctx, parser, logger, func(v *vcf.Variant) error {
		var af any
		if s, ok := v.InfoValue("AF"); ok {
			af = s
		}
		if err := appender.AppendRow(v.Chrom, v.Pos, v.End(), v.Ref, v.Alt, af); err != nil {
			return fmt.Errorf("append panel record: %w", err)
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	if err := appender.Flush(); err != nil {
		return stats, fmt.Errorf("flush panel: %w", err)
	}
	return stats, nil
}

// Loaded returns true if the panel table has data.
func (p *DuckDBPanel) Loaded() bool {
	n, err := p.Count()
	return err == nil && n > 0
}

// Count returns the number of records in the panel.
func (p *DuckDBPanel) Count() (int64, error) {
	var count int64
	if err := p.db.QueryRow("SELECT COUNT(*) FROM panel").Scan(&count); err != nil {
		return 0, fmt.Errorf("count panel rows: %w", err)
	}
	return count, nil
}

// Query returns records on chrom overlapping [start, end), ordered by position.
func (p *DuckDBPanel) Query(ctx context.Context, chrom string, start, end int64) ([]*vcf.Variant, error) {
	p.queryOnce.Do(func() {
		p.queryPS, p.queryErr = p.db.Prepare(
			"SELECT pos, ref, alt, af FROM panel WHERE chrom=? AND pos<=? AND end_pos>? ORDER BY pos, rowid",
		)
	})
	if p.queryErr != nil {
		return nil, fmt.Errorf("prepare panel query: %w", p.queryErr)
	}

	// pos is 1-based: pos-1 < end and end_pos > start.
	rows, err := p.queryPS.QueryContext(ctx, chrom, end, start)
	if err != nil {
		return nil, fmt.Errorf("query panel %s:%d-%d: %w", chrom, start, end, err)
	}
	defer rows.Close()

	var result []*vcf.Variant
	for rows.Next() {
		var (
			pos      int64
			ref, alt string
			af       sql.NullString
		)
		if err := rows.Scan(&pos, &ref, &alt, &af); err != nil {
			return nil, fmt.Errorf("scan panel row: %w", err)
		}
		v := &vcf.Variant{Chrom: chrom, Pos: pos, ID: ".", Ref: ref, Alt: alt, Info: map[string]interface{}{}}
		if af.Valid {
			v.Info["AF"] = af.String
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate panel rows: %w", err)
	}
	return result, nil
}

// Close closes the database.
func (p *DuckDBPanel) Close() error {
	if p.queryPS != nil {
		p.queryPS.Close()
	}
	return p.db.Close()
}
