package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/somamerge/internal/reconcile"
)

func newReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile [sample...]",
		Short: "Reconcile per-caller MAF tables into one table per sample",
		Long: `Reconcile loads every configured caller's MAF table for each sample,
collapses records describing the same variant into one row with per-caller
presence flags and read counts, and writes merged_<sample>_variants_cleaned.tsv.
Samples without any caller table are skipped with a warning.`,
		Example: `  somamerge reconcile SAMPLE01 SAMPLE02
  somamerge reconcile --samples samples.txt --input-dir calls -o results`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd, reconcileBindings); err != nil {
				return err
			}
			samples, err := sampleIDs(args)
			if err != nil {
				return err
			}
			_, err = runReconcile(cmd.Context(), samples)
			return err
		},
	}

	addReconcileFlags(cmd)
	return cmd
}

var reconcileBindings = map[string]string{
	keySamples:   "samples",
	keyInputDir:  "input-dir",
	keyOutputDir: "output-dir",
}

func addReconcileFlags(cmd *cobra.Command) {
	cmd.Flags().String("samples", "", "file listing sample ids, one per line")
	cmd.Flags().String("input-dir", ".", "directory relative caller paths are resolved against")
	cmd.Flags().StringP("output-dir", "o", ".", "directory for output tables")
}

// runReconcile writes one reconciled table per sample and returns their paths.
func runReconcile(ctx context.Context, samples []string) ([]string, error) {
	callers, err := configuredCallers()
	if err != nil {
		return nil, err
	}
	r, err := reconcile.NewReconciler(callers)
	if err != nil {
		return nil, err
	}
	r.SetLogger(logger)

	written, err := r.ReconcileAll(ctx, samples, viper.GetString(keyOutputDir))
	if err != nil {
		return nil, err
	}
	logger.Info("reconcile complete",
		zap.Int("samples", len(samples)),
		zap.Int("written", len(written)),
		zap.Int("skipped", len(samples)-len(written)))
	return written, nil
}
