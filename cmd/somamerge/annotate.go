package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/somamerge/internal/annotate"
	"github.com/inodb/somamerge/internal/cohort"
	"github.com/inodb/somamerge/internal/output"
	"github.com/inodb/somamerge/internal/panel"
	"github.com/inodb/somamerge/internal/table"
)

// annotatedTableName is the DuckDB table holding the annotated cohort.
const annotatedTableName = "annotated"

func newAnnotateCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "annotate [cohort-table]",
		Short: "Add population allele frequencies from a reference panel",
		Long: `Annotate looks up every variant of the cohort table in a reference panel
by exact chromosome, position, reference and alternate allele, and appends the
panel's AF as a new column. Variants without a match get an empty cell.

The panel is a bgzipped VCF with a .tbi index, a DuckDB panel built with
'somamerge panel load', or a plain VCF loaded into memory.`,
		Example: `  somamerge annotate --panel af-only-gnomad.hg38.vcf.gz merged_all_samples_variants_cleaned.tsv
  somamerge annotate --panel gnomad.duckdb --workers 8 -o annotated.tsv cohort.tsv`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd, annotateBindings); err != nil {
				return err
			}

			outDir := viper.GetString(keyOutputDir)
			input := filepath.Join(outDir, cohort.DefaultOutputName)
			if len(args) == 1 {
				input = args[0]
			}
			if outPath == "" {
				outPath = filepath.Join(outDir, annotate.DefaultOutputName)
			}

			t, err := table.ReadFile(input)
			if err != nil {
				return err
			}
			return runAnnotate(cmd.Context(), t, input, outPath)
		},
	}

	addAnnotateFlags(cmd)
	cmd.Flags().String("output-dir", ".", "directory holding the cohort table and the annotated output")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "annotated table path (default <output-dir>/"+annotate.DefaultOutputName+")")
	cmd.Flags().String("duckdb", "", "also export the annotated table to this DuckDB database")
	return cmd
}

var annotateBindings = map[string]string{
	keyPanelPath:       "panel",
	keyPanelFormat:     "panel-format",
	keyAnnotateColumn:  "column",
	keyAnnotateChrom:   "chrom-style",
	keyAnnotateWorkers: "workers",
	keyOutputDir:       "output-dir",
	keyDuckDBPath:      "duckdb",
}

func addAnnotateFlags(cmd *cobra.Command) {
	cmd.Flags().String("panel", "", "reference panel (VCF, bgzipped+tabix VCF, or DuckDB panel)")
	cmd.Flags().String("panel-format", "", "panel format: tabix, duckdb or vcf (detected from the path if empty)")
	cmd.Flags().String("column", annotate.DefaultColumn, "name of the added allele-frequency column")
	cmd.Flags().String("chrom-style", annotate.ChromStyleChr, "chromosome naming of the panel: chr or bare")
	cmd.Flags().IntP("workers", "j", 1, "concurrent panel lookups (0 = all CPUs)")
}

// newAnnotator opens the configured panel and builds an annotator over it.
// The caller closes the returned panel.
func newAnnotator() (*annotate.Annotator, panel.Panel, error) {
	panelPath := viper.GetString(keyPanelPath)
	if panelPath == "" {
		return nil, nil, usageErrorf("no reference panel; pass --panel or set %s", keyPanelPath)
	}

	p, err := panel.Open(panelPath, viper.GetString(keyPanelFormat), logger)
	if err != nil {
		return nil, nil, err
	}

	a := annotate.NewAnnotator(p)
	a.SetLogger(logger)
	a.SetColumn(viper.GetString(keyAnnotateColumn))
	a.SetWorkers(viper.GetInt(keyAnnotateWorkers))
	if err := a.SetChromStyle(viper.GetString(keyAnnotateChrom)); err != nil {
		p.Close()
		return nil, nil, usageErrorf("%v", err)
	}
	logger.Debug("opened reference panel", zap.String("path", panelPath))
	return a, p, nil
}

// runAnnotate annotates t, read from input, and writes it to outPath.
func runAnnotate(ctx context.Context, t *table.Table, input, outPath string) error {
	annotated, err := annotateTable(ctx, t)
	if err != nil {
		return err
	}
	if err := output.WriteFile(outPath, annotated); err != nil {
		return err
	}
	logger.Info("saved annotated table", zap.String("path", outPath), zap.Int("variants", annotated.Len()))

	// The panel is closed by now, so it may live in the export database.
	return exportTable(ctx, annotatedTableName, annotated, []string{input, viper.GetString(keyPanelPath)})
}

func annotateTable(ctx context.Context, t *table.Table) (*table.Table, error) {
	a, p, err := newAnnotator()
	if err != nil {
		return nil, err
	}
	defer p.Close()

	annotated, _, err := a.Annotate(ctx, t)
	return annotated, err
}
