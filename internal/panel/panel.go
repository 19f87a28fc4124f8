// Package panel provides read-only access to population reference panels:
// VCF files of known variants carrying an AF INFO entry.
package panel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/somamerge/internal/vcf"
)

// Panel answers overlap queries against a reference panel.
// Implementations are safe for concurrent use.
type Panel interface {
	// Query returns the records on chrom overlapping the 0-based half-open
	// interval [start, end), in file order.
	Query(ctx context.Context, chrom string, start, end int64) ([]*vcf.Variant, error)

	// Close releases the panel's resources.
	Close() error
}

// Supported panel formats.
const (
	FormatTabix  = "tabix"  // bgzipped VCF with a .tbi index
	FormatDuckDB = "duckdb" // database built by DuckDBPanel.Load
	FormatVCF    = "vcf"    // plain or gzipped VCF loaded into memory
)

// DetectFormat guesses a panel format from its path.
func DetectFormat(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".duckdb"), strings.HasSuffix(lower, ".db"):
		return FormatDuckDB
	case strings.HasSuffix(lower, ".gz"):
		if _, err := os.Stat(path + ".tbi"); err == nil {
			return FormatTabix
		}
	}
	return FormatVCF
}

// Open opens a panel. An empty format is detected from the path. Malformed
// records of a plain VCF are skipped with a warning on logger.
func Open(path, format string, logger *zap.Logger) (Panel, error) {
	if format == "" {
		format = DetectFormat(path)
	}

	switch format {
	case FormatTabix:
		p, err := OpenTabix(path)
		if err != nil {
			return nil, err
		}
		return p, nil
	case FormatDuckDB:
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("open duckdb panel: %w", err)
		}
		p, err := OpenDuckDB(path)
		if err != nil {
			return nil, err
		}
		if !p.Loaded() {
			p.Close()
			return nil, fmt.Errorf("duckdb panel %s is empty; build it with 'panel load'", filepath.Base(path))
		}
		return p, nil
	case FormatVCF:
		parser, err := vcf.NewParser(path)
		if err != nil {
			return nil, err
		}
		defer parser.Close()
		p, _, err := LoadMemoryPanel(context.Background(), parser, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown panel format %q", format)
	}
}

// overlaps reports whether v's reference span intersects [start, end).
func overlaps(v *vcf.Variant, start, end int64) bool {
	return v.Pos-1 < end && v.End() > start
}

// LoadStats counts the records read by a panel loader.
type LoadStats struct {
	Records int64
	Skipped int64
}

// readRecords calls fn for every record of parser. Records that fail to
// parse are logged and skipped; any other error stops the load.
func readRecords(ctx context.Context, parser vcf.VariantParser, logger *zap.Logger, fn func(*vcf.Variant) error) (LoadStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var stats LoadStats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		v, err := parser.Next()
		var pe *vcf.ParseError
		if errors.As(err, &pe) {
			stats.Skipped++
			logger.Warn("skipping malformed panel record",
				zap.Int("line", pe.Line),
				zap.String("reason", pe.Message))
			continue
		}
		if err != nil {
			return stats, err
		}
		if v == nil {
			break
		}
		if err := fn(v); err != nil {
			return stats, err
		}
		stats.Records++
	}

	if stats.Skipped > 0 {
		logger.Warn("skipped malformed panel records",
			zap.Int64("skipped", stats.Skipped),
			zap.Int64("loaded", stats.Records))
	}
	return stats, nil
}
