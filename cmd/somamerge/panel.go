package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/somamerge/internal/panel"
	"github.com/inodb/somamerge/internal/vcf"
)

func newPanelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "panel",
		Short: "Manage reference panels",
	}
	cmd.AddCommand(newPanelLoadCmd())
	return cmd
}

func newPanelLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <vcf> <database>",
		Short: "Build a DuckDB panel from a VCF",
		Long: `Load reads a plain or gzipped VCF and stores the position, alleles and AF
of every record in a DuckDB database usable with 'annotate --panel'. An
existing panel in the database is replaced. Malformed records are skipped
with a warning.`,
		Example: `  somamerge panel load af-only-gnomad.hg38.vcf.gz gnomad.duckdb`,
		Args:    usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			parser, err := vcf.NewParser(args[0])
			if err != nil {
				return err
			}
			defer parser.Close()

			p, err := panel.OpenDuckDB(args[1])
			if err != nil {
				return err
			}
			defer p.Close()

			stats, err := p.Load(cmd.Context(), parser, logger)
			if err != nil {
				return err
			}
			logger.Info("loaded reference panel",
				zap.String("vcf", args[0]),
				zap.String("database", args[1]),
				zap.Int64("records", stats.Records),
				zap.Int64("skipped", stats.Skipped))
			return nil
		},
	}
}
