package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/somamerge/internal/maf"
	"github.com/inodb/somamerge/internal/output"
	"github.com/inodb/somamerge/internal/table"
)

// ErrNoInput is returned when none of a sample's caller files exist.
var ErrNoInput = errors.New("no caller files found for sample")

// Boolean spellings used for presence flags.
const (
	True  = "True"
	False = "False"
)

// SamplePlaceholder is replaced by the sample identifier in caller paths.
const SamplePlaceholder = "{sample}"

// Caller names a variant caller and the location of its per-sample table.
type Caller struct {
	Name string `mapstructure:"name" yaml:"name"`
	Path string `mapstructure:"path" yaml:"path"` // may contain {sample}
}

// PathFor returns the caller's table path for a sample.
func (c Caller) PathFor(sample string) string {
	return strings.ReplaceAll(c.Path, SamplePlaceholder, sample)
}

// Reconciler builds per-sample reconciled variant tables.
type Reconciler struct {
	callers []Caller
	schema  *Schema
	logger  *zap.Logger
}

// NewReconciler creates a reconciler for an ordered list of callers.
// Caller order decides which caller's value wins for shared fields.
func NewReconciler(callers []Caller) (*Reconciler, error) {
	if len(callers) == 0 {
		return nil, fmt.Errorf("no callers configured")
	}

	reserved := make(map[string]bool)
	for _, f := range SharedFields {
		reserved[f] = true
	}
	reserved[ColExistingRsIDs] = true
	reserved[ColExistingCOSMIC] = true
	reserved[ColExistingOther] = true

	names := make([]string, len(callers))
	seen := make(map[string]bool)
	for i, c := range callers {
		switch {
		case c.Name == "":
			return nil, fmt.Errorf("caller %d: empty name", i+1)
		case strings.ContainsAny(c.Name, "\t\n"):
			return nil, fmt.Errorf("caller %q: name contains a tab or newline", c.Name)
		case reserved[c.Name]:
			return nil, fmt.Errorf("caller %q: name collides with a MAF column", c.Name)
		case seen[c.Name]:
			return nil, fmt.Errorf("caller %q: listed more than once", c.Name)
		case c.Path == "":
			return nil, fmt.Errorf("caller %q: empty path", c.Name)
		}
		seen[c.Name] = true
		names[i] = c.Name
	}

	return &Reconciler{
		callers: callers,
		schema:  NewSchema(names),
		logger:  zap.NewNop(),
	}, nil
}

// SetLogger sets the logger for progress and skip messages.
func (r *Reconciler) SetLogger(l *zap.Logger) {
	r.logger = l
}

// Schema returns the output layout.
func (r *Reconciler) Schema() *Schema {
	return r.schema
}

// Reconcile loads every available caller table for sample and returns the
// reconciled table. Missing caller files are skipped; if all are missing
// the returned error wraps ErrNoInput.
func (r *Reconciler) Reconcile(ctx context.Context, sample string) (*table.Table, error) {
	var (
		records []Record
		missing []string
		found   int
	)

	for i, c := range r.callers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := c.PathFor(sample)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				r.logger.Info("caller file not found",
					zap.String("sample", sample),
					zap.String("caller", c.Name),
					zap.String("path", path))
				missing = append(missing, path)
				continue
			}
			return nil, fmt.Errorf("stat %s table: %w", c.Name, err)
		}

		r.logger.Info("loading caller table",
			zap.String("sample", sample),
			zap.String("caller", c.Name),
			zap.String("path", path))

		tbl, err := readCallerTable(path)
		if err != nil {
			return nil, fmt.Errorf("load %s table %s: %w", c.Name, path, err)
		}
		recs := r.CallerRecords(i, tbl)
		r.logger.Debug("caller records",
			zap.String("caller", c.Name),
			zap.Int("rows", tbl.Len()),
			zap.Int("unique", len(recs)))

		records = append(records, recs...)
		found++
	}

	if found == 0 {
		r.logger.Warn("no caller files found, skipping sample",
			zap.String("sample", sample),
			zap.Strings("missing", missing))
		return nil, fmt.Errorf("%w: %s", ErrNoInput, sample)
	}

	return r.Aggregate(records)
}

func readCallerTable(path string) (*table.Table, error) {
	p, err := maf.NewParser(path)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.ReadAll()
}

// CallerRecords converts the table of the caller at position idx into
// records. Absent columns are null, and rows repeating an earlier identity
// key are dropped.
func (r *Reconciler) CallerRecords(idx int, tbl *table.Table) []Record {
	sharedIdx := make([]int, len(SharedFields))
	for i, f := range SharedFields {
		sharedIdx[i] = tbl.Index(f)
	}
	numericIdx := make([]int, len(NumericFields))
	for i, f := range NumericFields {
		numericIdx[i] = tbl.Index(f)
	}

	cell := func(row []string, j int) string {
		if j < 0 || j >= len(row) {
			return ""
		}
		return row[j]
	}

	seen := make(map[Key]bool, tbl.Len())
	records := make([]Record, 0, tbl.Len())
	for _, row := range tbl.Rows() {
		rec := NewRecord(len(r.callers))
		for i, j := range sharedIdx {
			rec.Shared[i] = cell(row, j)
		}
		k := rec.Key()
		if seen[k] {
			continue
		}
		seen[k] = true

		rec.Present[idx] = true
		for i, j := range numericIdx {
			rec.Counts[idx][i] = cell(row, j)
		}
		records = append(records, rec)
	}
	return records
}

// Aggregate groups records by identity key and resolves each group into one
// output row. Rows are sorted by key (see Key.Less).
func (r *Reconciler) Aggregate(records []Record) (*table.Table, error) {
	groups := make(map[Key][]Record)
	var keys []Key
	for _, rec := range records {
		k := rec.Key()
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], rec)
	}
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, r.render(Resolve(groups[k])))
	}
	return table.New(r.schema.Columns(), rows...)
}

// render lays a resolved record out in schema column order.
func (r *Reconciler) render(rec Record) []string {
	row := make([]string, 0, len(r.schema.columns))
	row = append(row, rec.Shared...)

	rs, cosmic, other := SplitExistingVariation(rec.Shared[existingVariation])
	row = append(row, rs, cosmic, other)

	for _, present := range rec.Present {
		if present {
			row = append(row, True)
		} else {
			row = append(row, False)
		}
	}
	for _, counts := range rec.Counts {
		row = append(row, counts...)
	}
	return row
}

// OutputPath returns the reconciled table path for a sample.
func OutputPath(dir, sample string) string {
	return filepath.Join(dir, "merged_"+sample+"_variants_cleaned.tsv")
}

// ReconcileAll reconciles each sample and writes its table under dir.
// Samples without any caller file are skipped. It returns the paths written,
// in sample order.
func (r *Reconciler) ReconcileAll(ctx context.Context, samples []string, dir string) ([]string, error) {
	var written []string
	for _, sample := range samples {
		r.logger.Info("processing sample", zap.String("sample", sample))

		tbl, err := r.Reconcile(ctx, sample)
		if errors.Is(err, ErrNoInput) {
			continue
		}
		if err != nil {
			return written, fmt.Errorf("sample %s: %w", sample, err)
		}

		path := OutputPath(dir, sample)
		if err := output.WriteFile(path, tbl); err != nil {
			return written, fmt.Errorf("sample %s: %w", sample, err)
		}
		r.logger.Info("saved reconciled table",
			zap.String("sample", sample),
			zap.String("path", path),
			zap.Int("variants", tbl.Len()))
		written = append(written, path)
	}
	return written, nil
}
