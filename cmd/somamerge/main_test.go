package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/somamerge/internal/annotate"
	"github.com/inodb/somamerge/internal/cohort"
	"github.com/inodb/somamerge/internal/duckdb"
	"github.com/inodb/somamerge/internal/reconcile"
	"github.com/inodb/somamerge/internal/table"
)

const header = "Hugo_Symbol\tChromosome\tStart_Position\tEnd_Position\tReference_Allele\tTumor_Seq_Allele2\tTumor_Sample_Barcode\tt_depth\tt_ref_count\tt_alt_count\n"

const testPanel = `##fileformat=VCFv4.2
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
chr7	140753336	.	A	T	.	PASS	AF=3.2e-06
chr12	25245350	.	C	A	.	PASS	AF=0.0001
chr12	25245350	.	C	T	.	PASS	AF=0.002
`

type fixture struct {
	dir    string
	config string
	panel  string
	out    string
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// setup writes two callers' tables for S1, one for S2, none for S3.
func setup(t *testing.T) fixture {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	f := fixture{
		dir:    dir,
		config: filepath.Join(dir, "somamerge.yaml"),
		panel:  filepath.Join(dir, "panel.vcf"),
		out:    filepath.Join(dir, "results"),
	}

	writeFile(t, f.config, `callers:
  - name: MuTect2
    path: calls/{sample}_MuTect2.maf
  - name: VarDict
    path: calls/{sample}_VarDict.maf
`)
	writeFile(t, f.panel, testPanel)
	writeFile(t, filepath.Join(dir, "calls/S1_MuTect2.maf"), "#version 2.4\n"+header+
		"KRAS\t12\t25245350\t25245350\tC\tA\tS1\t100\t60\t40\n"+
		"TP53\t17\t7674220\t7674220\tC\tT\tS1\t80\t40\t40\n")
	writeFile(t, filepath.Join(dir, "calls/S1_VarDict.maf"), header+
		"KRAS\t12\t25245350\t25245350\tC\tA\tS1\t90\t50\t40\n")
	writeFile(t, filepath.Join(dir, "calls/S2_VarDict.maf"), header+
		"BRAF\t7\t140753336\t140753336\tA\tT\tS2\t70\tNA\t35\n")
	return f
}

func TestRun_Pipeline(t *testing.T) {
	f := setup(t)
	db := filepath.Join(f.dir, "cohort.duckdb")

	code := run([]string{"run", "--config", f.config,
		"--input-dir", f.dir, "-o", f.out, "--panel", f.panel, "--duckdb", db,
		"S1", "S2", "S3"})
	require.Equal(t, ExitSuccess, code)

	assert.FileExists(t, reconcile.OutputPath(f.out, "S1"))
	assert.FileExists(t, reconcile.OutputPath(f.out, "S2"))
	assert.NoFileExists(t, reconcile.OutputPath(f.out, "S3"))

	merged, err := table.ReadFile(filepath.Join(f.out, cohort.DefaultOutputName))
	require.NoError(t, err)
	assert.Equal(t, 3, merged.Len())

	annotated, err := table.ReadFile(filepath.Join(f.out, annotate.DefaultOutputName))
	require.NoError(t, err)
	require.Equal(t, 3, annotated.Len())

	af := annotated.Index(annotate.DefaultColumn)
	gene := annotated.Index("Hugo_Symbol")
	got := map[string]string{}
	for _, row := range annotated.Rows() {
		got[row[gene]] = row[af]
	}
	assert.Equal(t, map[string]string{"KRAS": "0.0001", "TP53": "", "BRAF": "3.2e-06"}, got)

	mutect := annotated.Index("MuTect2")
	vardict := annotated.Index("VarDict")
	for _, row := range annotated.Rows() {
		if row[gene] == "KRAS" {
			assert.Equal(t, "True", row[mutect])
			assert.Equal(t, "True", row[vardict])
		}
		if row[gene] == "BRAF" {
			assert.Equal(t, "False", row[mutect])
			assert.Equal(t, "", row[annotated.Index("t_ref_count_VarDict")])
		}
	}

	store, err := duckdb.Open(db)
	require.NoError(t, err)
	defer store.Close()
	n, err := store.CountRows(cohortTableName)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	n, err = store.CountRows(annotatedTableName)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.True(t, store.Current(cohortTableName))
}

func TestStages_Idempotent(t *testing.T) {
	f := setup(t)
	samples := filepath.Join(f.dir, "samples.txt")
	writeFile(t, samples, "# cohort\nS1\n\nS2\n")

	args := [][]string{
		{"reconcile", "--config", f.config, "--input-dir", f.dir, "-o", f.out, "--samples", samples},
		{"merge", "--config", f.config, "--output-dir", f.out, "--samples", samples},
		{"annotate", "--config", f.config, "--output-dir", f.out, "--panel", f.panel, "--workers", "4"},
	}

	snapshot := func() map[string][]byte {
		files := map[string][]byte{}
		entries, err := os.ReadDir(f.out)
		require.NoError(t, err)
		for _, e := range entries {
			b, err := os.ReadFile(filepath.Join(f.out, e.Name()))
			require.NoError(t, err)
			files[e.Name()] = b
		}
		return files
	}

	for _, a := range args {
		require.Equal(t, ExitSuccess, run(a), "%v", a)
	}
	first := snapshot()
	assert.Len(t, first, 4)

	for _, a := range args {
		require.Equal(t, ExitSuccess, run(a), "%v", a)
	}
	assert.Equal(t, first, snapshot())
}

func TestMerge_SchemaMismatch(t *testing.T) {
	f := setup(t)
	a := filepath.Join(f.dir, "a.tsv")
	b := filepath.Join(f.dir, "b.tsv")
	writeFile(t, a, "x\ty\n1\t2\n")
	writeFile(t, b, "x\n3\n")

	code := run([]string{"merge", "--config", f.config, "-o", filepath.Join(f.dir, "m.tsv"), a, b})
	assert.Equal(t, ExitError, code)
	assert.NoFileExists(t, filepath.Join(f.dir, "m.tsv"))
}

func TestUsageErrors(t *testing.T) {
	f := setup(t)

	assert.Equal(t, ExitUsage, run([]string{"reconcile", "--config", f.config}), "no samples")
	assert.Equal(t, ExitUsage, run([]string{"merge", "--config", f.config}), "no tables")
	assert.Equal(t, ExitUsage, run([]string{"annotate", "--config", f.config, "a.tsv", "b.tsv"}), "too many args")
	assert.Equal(t, ExitUsage, run([]string{"reconcile", "--no-such-flag"}))
	assert.Equal(t, ExitUsage, run([]string{"panel", "load", "only-one-arg"}))
}

func TestAnnotate_MissingPanel(t *testing.T) {
	f := setup(t)
	in := filepath.Join(f.dir, "cohort.tsv")
	writeFile(t, in, header)

	assert.Equal(t, ExitUsage, run([]string{"annotate", "--config", f.config, in}))
	assert.Equal(t, ExitError, run([]string{"annotate", "--config", f.config, "--panel", filepath.Join(f.dir, "none.vcf"), in}))
}

func TestPanelLoad(t *testing.T) {
	f := setup(t)
	db := filepath.Join(f.dir, "panel.duckdb")
	in := filepath.Join(f.dir, "cohort.tsv")
	writeFile(t, in, header+"KRAS\t12\t25245350\t25245350\tC\tT\tS1\t1\t1\t1\n")
	out := filepath.Join(f.dir, "annotated.tsv")

	require.Equal(t, ExitSuccess, run([]string{"panel", "load", f.panel, db}))
	require.Equal(t, ExitSuccess, run([]string{"annotate", "--config", f.config, "--panel", db, "-o", out, in}))

	annotated, err := table.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, 1, annotated.Len())
	assert.Equal(t, "0.002", annotated.Column(annotate.DefaultColumn)[0])
}

func TestReadList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	writeFile(t, path, "S1\n  S2  \n\n# skipped\nS3\n")

	got, err := readList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2", "S3"}, got)

	_, err = readList(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfiguredCallers_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaults()
	viper.Set(keyInputDir, "/data")

	callers, err := configuredCallers()
	require.NoError(t, err)
	require.Len(t, callers, 5)

	names := make([]string, len(callers))
	for i, c := range callers {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"MuTect2", "MuTect", "VarDict", "VarScan", "Strelka"}, names)
	assert.Equal(t, "/data/Strelka/S1/S1/Strelka/S1_Strelka_annotated.maf", callers[4].PathFor("S1"))
}
