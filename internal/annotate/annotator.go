// Package annotate adds a population allele-frequency column to a variant
// table by exact-allele lookup against a reference panel.
package annotate

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/inodb/somamerge/internal/maf"
	"github.com/inodb/somamerge/internal/panel"
	"github.com/inodb/somamerge/internal/table"
	"github.com/inodb/somamerge/internal/vcf"
)

// DefaultColumn is the name of the added allele-frequency column.
const DefaultColumn = "gnomAD_AF"

// DefaultOutputName is the annotated cohort table file name.
const DefaultOutputName = "merged_all_samples_with_gnomAD_AF.tsv"

// Chromosome naming conventions for panel queries.
const (
	ChromStyleChr  = "chr"  // "chr1"
	ChromStyleBare = "bare" // "1"
)

// afKey is the INFO entry holding the population allele frequency.
const afKey = "AF"

// ErrColumnExists is returned when the input already carries the output column.
var ErrColumnExists = errors.New("annotation column already exists")

// Stats counts per-row lookup outcomes.
type Stats struct {
	Rows      int
	Matched   int
	Unmatched int
	Failed    int
}

// Annotator looks up population allele frequencies in a panel.
type Annotator struct {
	panel      panel.Panel
	column     string
	chromStyle string
	workers    int
	logger     *zap.Logger
}

// NewAnnotator creates an annotator over p with the default column name,
// chr-prefixed queries and a single worker.
func NewAnnotator(p panel.Panel) *Annotator {
	return &Annotator{
		panel:      p,
		column:     DefaultColumn,
		chromStyle: ChromStyleChr,
		workers:    1,
		logger:     zap.NewNop(),
	}
}

// SetLogger sets the logger for warning and info messages.
func (a *Annotator) SetLogger(l *zap.Logger) {
	a.logger = l
}

// SetColumn sets the output column name.
func (a *Annotator) SetColumn(name string) {
	a.column = name
}

// Column returns the output column name.
func (a *Annotator) Column() string {
	return a.column
}

// SetChromStyle sets the chromosome convention used for panel queries.
func (a *Annotator) SetChromStyle(style string) error {
	switch style {
	case ChromStyleChr, ChromStyleBare:
		a.chromStyle = style
		return nil
	}
	return fmt.Errorf("unknown chromosome style %q (want %s or %s)", style, ChromStyleChr, ChromStyleBare)
}

// SetWorkers sets the number of concurrent lookups. Zero uses all CPUs.
func (a *Annotator) SetWorkers(n int) {
	a.workers = n
}

// NormalizeChrom converts chrom to the given naming convention.
func NormalizeChrom(chrom, style string) string {
	if style == ChromStyleBare {
		return vcf.StripChrPrefix(chrom)
	}
	return vcf.AddChrPrefix(chrom)
}

// Lookup returns the allele frequency of the panel record at 1-based pos
// whose REF and ALT equal ref and alt exactly. The first matching record in
// panel order with a usable AF wins. Matches whose AF entry is absent or not
// a number are skipped; if no match has a usable AF the first such problem
// is returned as an error.
func (a *Annotator) Lookup(ctx context.Context, chrom string, pos int64, ref, alt string) (float64, bool, error) {
	candidates, err := a.panel.Query(ctx, NormalizeChrom(chrom, a.chromStyle), pos-1, pos)
	if err != nil {
		return 0, false, err
	}
	var firstErr error
	for _, v := range candidates {
		if v.Pos != pos || v.Ref != ref || v.Alt != alt {
			continue
		}
		af, err := alleleFrequency(v)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		return af, true, nil
	}
	return 0, false, firstErr
}

func alleleFrequency(v *vcf.Variant) (float64, error) {
	s, ok := v.InfoValue(afKey)
	if !ok {
		return 0, fmt.Errorf("%s:%d %s>%s: no %s value", v.Chrom, v.Pos, v.Ref, v.Alt, afKey)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s:%d %s>%s: invalid %s %q", v.Chrom, v.Pos, v.Ref, v.Alt, afKey, s)
	}
	return f, nil
}

// FormatAF renders an allele frequency with the shortest exact representation.
func FormatAF(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Annotate returns a copy of t with the allele-frequency column appended.
// Rows without a match, and rows whose lookup fails, get a null cell; a
// failing row never aborts the batch. Row order is preserved.
func (a *Annotator) Annotate(ctx context.Context, t *table.Table) (*table.Table, Stats, error) {
	var stats Stats
	if t.Index(a.column) >= 0 {
		return nil, stats, fmt.Errorf("%w: %s", ErrColumnExists, a.column)
	}

	var keys [4][]string
	for i, c := range []string{maf.ColChromosome, maf.ColStartPosition, maf.ColReferenceAllele, maf.ColTumorSeqAllele2} {
		if t.Index(c) < 0 {
			return nil, stats, fmt.Errorf("annotate: missing column %s", c)
		}
		keys[i] = t.Column(c)
	}

	items := make(chan WorkItem, 2*a.poolSize())
	go func() {
		defer close(items)
		for i := range keys[0] {
			item := WorkItem{
				Seq:   i,
				Chrom: keys[0][i],
				Start: keys[1][i],
				Ref:   keys[2][i],
				Alt:   keys[3][i],
			}
			select {
			case items <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	values := make([]string, t.Len())
	results := a.ParallelAnnotate(ctx, items, a.workers)
	err := OrderedCollect(results, func(r WorkResult) error {
		stats.Rows++
		switch {
		case r.Err != nil:
			stats.Failed++
			a.logger.Warn("allele frequency lookup failed",
				zap.Int("row", r.Seq+1),
				zap.String("chrom", r.Item.Chrom),
				zap.String("pos", r.Item.Start),
				zap.String("ref", r.Item.Ref),
				zap.String("alt", r.Item.Alt),
				zap.Error(r.Err))
		case r.Matched:
			stats.Matched++
			values[r.Seq] = FormatAF(r.AF)
		default:
			stats.Unmatched++
		}
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	out, err := t.WithColumn(a.column, values)
	if err != nil {
		return nil, stats, err
	}

	a.logger.Info("annotation complete",
		zap.String("column", a.column),
		zap.Int("rows", stats.Rows),
		zap.Int("matched", stats.Matched),
		zap.Int("unmatched", stats.Unmatched),
		zap.Int("failed", stats.Failed))

	return out, stats, nil
}

// lookupRow resolves one work item.
func (a *Annotator) lookupRow(ctx context.Context, item WorkItem) (float64, bool, error) {
	if item.Chrom == "" || item.Start == "" || item.Ref == "" || item.Alt == "" {
		return 0, false, nil
	}
	pos, err := strconv.ParseInt(item.Start, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s %q", maf.ColStartPosition, item.Start)
	}
	return a.Lookup(ctx, item.Chrom, pos, item.Ref, item.Alt)
}
