package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/somamerge/internal/cohort"
	"github.com/inodb/somamerge/internal/output"
	"github.com/inodb/somamerge/internal/reconcile"
	"github.com/inodb/somamerge/internal/table"
)

// cohortTableName is the DuckDB table holding the merged cohort.
const cohortTableName = "cohort"

func newMergeCmd() *cobra.Command {
	var (
		listFile string
		outPath  string
	)

	cmd := &cobra.Command{
		Use:   "merge [table...]",
		Short: "Concatenate per-sample tables into one cohort table",
		Long: `Merge appends per-sample reconciled tables in order. The first table's
columns define the cohort schema; a table missing any of them aborts the merge.
Inputs come from the arguments, from --list, or from the reconciled tables of
--samples found in the output directory.`,
		Example: `  somamerge merge results/merged_S1_variants_cleaned.tsv results/merged_S2_variants_cleaned.tsv
  somamerge merge --list tables.txt -o cohort.tsv
  somamerge merge --samples samples.txt --output-dir results --duckdb cohort.duckdb`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd, mergeBindings); err != nil {
				return err
			}

			paths := args
			switch {
			case len(paths) > 0:
			case listFile != "":
				var err error
				if paths, err = readList(listFile); err != nil {
					return err
				}
			case viper.GetString(keySamples) == "":
				return usageErrorf("no tables given; pass paths, --list or --samples")
			default:
				samples, err := sampleIDs(nil)
				if err != nil {
					return err
				}
				paths = reconciledPaths(viper.GetString(keyOutputDir), samples)
			}
			if len(paths) == 0 {
				return usageErrorf("no tables to merge")
			}

			if outPath == "" {
				outPath = filepath.Join(viper.GetString(keyOutputDir), cohort.DefaultOutputName)
			}
			_, err := runMerge(cmd.Context(), paths, outPath)
			return err
		},
	}

	cmd.Flags().StringVar(&listFile, "list", "", "file listing table paths, one per line")
	cmd.Flags().String("samples", "", "file listing sample ids whose reconciled tables to merge")
	cmd.Flags().String("output-dir", ".", "directory holding reconciled tables and the cohort output")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "cohort table path (default <output-dir>/"+cohort.DefaultOutputName+")")
	cmd.Flags().String("duckdb", "", "also export the cohort table to this DuckDB database")
	return cmd
}

var mergeBindings = map[string]string{
	keySamples:    "samples",
	keyOutputDir:  "output-dir",
	keyDuckDBPath: "duckdb",
}

// reconciledPaths returns the reconciled tables of samples that exist under
// dir. Samples skipped by reconcile have none.
func reconciledPaths(dir string, samples []string) []string {
	var paths []string
	for _, s := range samples {
		p := reconcile.OutputPath(dir, s)
		if _, err := os.Stat(p); err != nil {
			logger.Info("no reconciled table for sample", zap.String("sample", s), zap.String("path", p))
			continue
		}
		paths = append(paths, p)
	}
	return paths
}

// runMerge merges paths into outPath and exports to DuckDB when configured.
func runMerge(ctx context.Context, paths []string, outPath string) (*table.Table, error) {
	m := cohort.NewMerger()
	m.SetLogger(logger)

	merged, err := m.MergeFiles(ctx, paths)
	if err != nil {
		return nil, err
	}
	if err := output.WriteFile(outPath, merged); err != nil {
		return nil, err
	}
	logger.Info("saved cohort table",
		zap.String("path", outPath),
		zap.Int("tables", len(paths)),
		zap.Int("variants", merged.Len()))

	if err := exportTable(ctx, cohortTableName, merged, paths); err != nil {
		return nil, err
	}
	return merged, nil
}
