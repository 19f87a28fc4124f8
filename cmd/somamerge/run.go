package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/somamerge/internal/annotate"
	"github.com/inodb/somamerge/internal/cohort"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [sample...]",
		Short: "Reconcile, merge and annotate in one pass",
		Long: `Run executes the whole pipeline: every sample is reconciled, the
reconciled tables are merged into the cohort table and the cohort is annotated
with population allele frequencies. All outputs go to the output directory.`,
		Example: `  somamerge run --samples samples.txt --input-dir calls -o results --panel af-only-gnomad.hg38.vcf.gz`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bindings := map[string]string{keyDuckDBPath: "duckdb"}
			for k, v := range reconcileBindings {
				bindings[k] = v
			}
			for k, v := range annotateBindings {
				if k != keyOutputDir && k != keyDuckDBPath {
					bindings[k] = v
				}
			}
			if err := bindFlags(cmd, bindings); err != nil {
				return err
			}

			samples, err := sampleIDs(args)
			if err != nil {
				return err
			}
			if viper.GetString(keyPanelPath) == "" {
				return usageErrorf("no reference panel; pass --panel or set %s", keyPanelPath)
			}

			ctx := cmd.Context()
			written, err := runReconcile(ctx, samples)
			if err != nil {
				return err
			}
			if len(written) == 0 {
				return fmt.Errorf("no sample had any caller table")
			}

			outDir := viper.GetString(keyOutputDir)
			cohortPath := filepath.Join(outDir, cohort.DefaultOutputName)
			merged, err := runMerge(ctx, written, cohortPath)
			if err != nil {
				return err
			}

			return runAnnotate(ctx, merged, cohortPath, filepath.Join(outDir, annotate.DefaultOutputName))
		},
	}

	addReconcileFlags(cmd)
	addAnnotateFlags(cmd)
	cmd.Flags().String("duckdb", "", "also export the cohort and annotated tables to this DuckDB database")
	return cmd
}
