// Package cohort concatenates per-sample reconciled tables into one cohort table.
package cohort

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/somamerge/internal/table"
)

// DefaultOutputName is the cohort table file name.
const DefaultOutputName = "merged_all_samples_variants_cleaned.tsv"

// SchemaMismatchError reports a per-sample table lacking columns of the
// canonical schema set by the first table.
type SchemaMismatchError struct {
	Path    string
	Missing []string
	Err     error
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch in %s: missing columns %s", e.Path, strings.Join(e.Missing, ", "))
}

func (e *SchemaMismatchError) Unwrap() error { return e.Err }

// Merger concatenates reconciled tables.
type Merger struct {
	logger *zap.Logger
}

// NewMerger creates a new merger.
func NewMerger() *Merger {
	return &Merger{logger: zap.NewNop()}
}

// SetLogger sets the logger for progress messages.
func (m *Merger) SetLogger(l *zap.Logger) {
	m.logger = l
}

// MergeFiles reads the tables at paths, in order, and concatenates them.
// The first table's columns define the schema; later tables are projected
// onto it and a missing column aborts the merge with a *SchemaMismatchError.
func (m *Merger) MergeFiles(ctx context.Context, paths []string) (*table.Table, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no tables to merge")
	}

	var merged *table.Table
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m.logger.Info("adding table", zap.String("path", path))
		t, err := table.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		if merged, err = appendProjected(merged, t, path); err != nil {
			return nil, err
		}
	}

	m.logger.Info("merged tables",
		zap.Int("tables", len(paths)),
		zap.Int("rows", merged.Len()),
		zap.Int("columns", len(merged.Columns())))
	return merged, nil
}

// Merge concatenates in-memory tables. Names label the tables in errors.
func (m *Merger) Merge(tables []*table.Table, names []string) (*table.Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables to merge")
	}
	var (
		merged *table.Table
		err    error
	)
	for i, t := range tables {
		name := fmt.Sprintf("table %d", i+1)
		if i < len(names) {
			name = names[i]
		}
		if merged, err = appendProjected(merged, t, name); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// appendProjected selects the columns of dst from src and appends the rows.
// A nil dst takes src as the first table.
func appendProjected(dst, src *table.Table, name string) (*table.Table, error) {
	if dst == nil {
		return src, nil
	}
	projected, err := src.Select(dst.Columns())
	if err != nil {
		return nil, &SchemaMismatchError{Path: name, Missing: src.Missing(dst.Columns()), Err: err}
	}
	return dst.Concat(projected)
}
