package annotate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/inodb/somamerge/internal/panel"
	"github.com/inodb/somamerge/internal/table"
	"github.com/inodb/somamerge/internal/vcf"
)

func testPanel() *panel.MemoryPanel {
	return panel.NewMemoryPanel([]*vcf.Variant{
		{Chrom: "chr1", Pos: 998, Ref: "GTA", Alt: "G", Info: map[string]interface{}{"AF": "0.01"}},
		{Chrom: "chr1", Pos: 1000, Ref: "A", Alt: "T", Info: map[string]interface{}{"AF": "0.25"}},
		{Chrom: "chr1", Pos: 1000, Ref: "A", Alt: "C", Info: map[string]interface{}{"AF": "1.5e-05"}},
		{Chrom: "chr2", Pos: 500, Ref: "C", Alt: "T", Info: map[string]interface{}{"AF": "abc"}},
		{Chrom: "chr2", Pos: 600, Ref: "C", Alt: "T", Info: map[string]interface{}{"DB": true}},
	})
}

func cohortTable(t *testing.T, rows ...string) *table.Table {
	t.Helper()
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = strings.Split(r, "\t")
	}
	tbl, err := table.New([]string{"Hugo_Symbol", "Chromosome", "Start_Position", "End_Position", "Reference_Allele", "Tumor_Seq_Allele2", "Tumor_Sample_Barcode"}, cells...)
	require.NoError(t, err)
	return tbl
}

// failingPanel errors for one chromosome and delegates the rest.
type failingPanel struct {
	panel.Panel
	chrom string
}

func (p *failingPanel) Query(ctx context.Context, chrom string, start, end int64) ([]*vcf.Variant, error) {
	if chrom == p.chrom {
		return nil, errors.New("corrupt block")
	}
	return p.Panel.Query(ctx, chrom, start, end)
}

func TestLookup(t *testing.T) {
	a := NewAnnotator(testPanel())
	ctx := context.Background()

	af, ok, err := a.Lookup(ctx, "1", 1000, "A", "T")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.25, af)

	_, ok, err = a.Lookup(ctx, "chr1", 1000, "A", "G")
	require.NoError(t, err)
	assert.False(t, ok, "no record with ALT G")

	_, ok, err = a.Lookup(ctx, "1", 999, "T", "A")
	require.NoError(t, err)
	assert.False(t, ok, "the overlapping deletion starts elsewhere")

	af, ok, err = a.Lookup(ctx, "1", 998, "GTA", "G")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.01, af)

	_, _, err = a.Lookup(ctx, "2", 500, "C", "T")
	assert.Error(t, err, "non-numeric AF")

	_, _, err = a.Lookup(ctx, "2", 600, "C", "T")
	assert.Error(t, err, "AF absent")
}

func TestLookup_SkipsMatchesWithoutAF(t *testing.T) {
	p := panel.NewMemoryPanel([]*vcf.Variant{
		{Chrom: "chr5", Pos: 100, Ref: "G", Alt: "A", Info: map[string]interface{}{"DB": true}},
		{Chrom: "chr5", Pos: 100, Ref: "G", Alt: "A", Info: map[string]interface{}{"AF": "n/a"}},
		{Chrom: "chr5", Pos: 100, Ref: "G", Alt: "A", Info: map[string]interface{}{"AF": "0.125"}},
		{Chrom: "chr5", Pos: 100, Ref: "G", Alt: "A", Info: map[string]interface{}{"AF": "0.5"}},
	})

	af, ok, err := NewAnnotator(p).Lookup(context.Background(), "5", 100, "G", "A")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.125, af)
}

func TestLookup_BareChromosomes(t *testing.T) {
	p := panel.NewMemoryPanel([]*vcf.Variant{
		{Chrom: "1", Pos: 1000, Ref: "A", Alt: "T", Info: map[string]interface{}{"AF": "0.5"}},
	})
	a := NewAnnotator(p)

	_, ok, err := a.Lookup(context.Background(), "chr1", 1000, "A", "T")
	require.NoError(t, err)
	assert.False(t, ok, "chr-prefixed query against a bare panel")

	require.NoError(t, a.SetChromStyle(ChromStyleBare))
	af, ok, err := a.Lookup(context.Background(), "chr1", 1000, "A", "T")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.5, af)

	assert.Error(t, a.SetChromStyle("ucsc"))
}

func TestNormalizeChrom(t *testing.T) {
	assert.Equal(t, "chr1", NormalizeChrom("1", ChromStyleChr))
	assert.Equal(t, "chr1", NormalizeChrom("chr1", ChromStyleChr))
	assert.Equal(t, "1", NormalizeChrom("chr1", ChromStyleBare))
	assert.Equal(t, "X", NormalizeChrom("X", ChromStyleBare))
}

func TestFormatAF(t *testing.T) {
	assert.Equal(t, "0.25", FormatAF(0.25))
	assert.Equal(t, "1.5e-05", FormatAF(1.5e-05))
	assert.Equal(t, "0", FormatAF(0))
	assert.Equal(t, "1", FormatAF(1))
}

func TestAnnotate(t *testing.T) {
	in := cohortTable(t,
		"KRAS\t1\t1000\t1000\tA\tT\tS1",
		"KRAS\t1\t1000\t1000\tA\tG\tS1",
		"TP53\tchr1\t1000\t1000\tA\tC\tS2",
	)
	a := NewAnnotator(testPanel())

	out, stats, err := a.Annotate(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, append(in.Columns(), DefaultColumn), out.Columns())
	require.Equal(t, 3, out.Len())
	assert.Equal(t, []string{"0.25", "", "1.5e-05"}, out.Column(DefaultColumn))

	// Chromosome cells are not rewritten.
	assert.Equal(t, []string{"1", "1", "chr1"}, out.Column("Chromosome"))

	assert.Equal(t, Stats{Rows: 3, Matched: 2, Unmatched: 1}, stats)

	// Input is untouched.
	assert.Len(t, in.Columns(), 7)
	assert.Len(t, in.Rows()[0], 7)
}

func TestAnnotate_FailureIsNonFatal(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	in := cohortTable(t,
		"A\t1\t1000\t1000\tA\tT\tS1",
		"B\t3\t10\t10\tC\tT\tS1",
		"C\t1\tabc\t1000\tA\tT\tS1",
		"D\t1\t1000\t1000\tA\tC\tS1",
	)
	a := NewAnnotator(&failingPanel{Panel: testPanel(), chrom: "chr3"})
	a.SetLogger(zap.New(core))

	out, stats, err := a.Annotate(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{"0.25", "", "", "1.5e-05"}, out.Column(DefaultColumn))
	assert.Equal(t, Stats{Rows: 4, Matched: 2, Failed: 2}, stats)

	failures := logs.FilterMessage("allele frequency lookup failed").All()
	require.Len(t, failures, 2)
	assert.Equal(t, int64(2), failures[0].ContextMap()["row"])
}

func TestAnnotate_NullKeyIsMiss(t *testing.T) {
	in := cohortTable(t, "A\t1\t1000\t1000\tA\t\tS1")
	out, stats, err := NewAnnotator(testPanel()).Annotate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, out.Column(DefaultColumn))
	assert.Equal(t, 1, stats.Unmatched)
}

func TestAnnotate_ColumnExists(t *testing.T) {
	in := cohortTable(t, "A\t1\t1000\t1000\tA\tT\tS1")
	a := NewAnnotator(testPanel())
	a.SetColumn("Hugo_Symbol")

	_, _, err := a.Annotate(context.Background(), in)
	assert.ErrorIs(t, err, ErrColumnExists)
}

func TestAnnotate_MissingKeyColumn(t *testing.T) {
	in, err := table.New([]string{"Chromosome", "Start_Position", "Reference_Allele"})
	require.NoError(t, err)
	_, _, err = NewAnnotator(testPanel()).Annotate(context.Background(), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Tumor_Seq_Allele2")
}

func TestAnnotate_CustomColumn(t *testing.T) {
	in := cohortTable(t, "A\t1\t1000\t1000\tA\tT\tS1")
	a := NewAnnotator(testPanel())
	a.SetColumn("AF_popmax")

	out, _, err := a.Annotate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 7, out.Index("AF_popmax"))
}

func TestAnnotate_Cancelled(t *testing.T) {
	in := cohortTable(t, "A\t1\t1000\t1000\tA\tT\tS1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewAnnotator(testPanel()).Annotate(ctx, in)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnnotate_Empty(t *testing.T) {
	out, stats, err := NewAnnotator(testPanel()).Annotate(context.Background(), cohortTable(t))
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, 7, out.Index(DefaultColumn))
	assert.Equal(t, Stats{}, stats)
}
