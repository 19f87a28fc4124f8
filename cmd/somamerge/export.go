package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/somamerge/internal/duckdb"
	"github.com/inodb/somamerge/internal/table"
)

// exportTable writes t to the configured DuckDB database, if any, recording
// the fingerprints of sources.
func exportTable(ctx context.Context, name string, t *table.Table, sources []string) error {
	dbPath := viper.GetString(keyDuckDBPath)
	if dbPath == "" {
		return nil
	}

	fps, err := duckdb.StatFiles(sources)
	if err != nil {
		return fmt.Errorf("fingerprint sources: %w", err)
	}

	store, err := duckdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.WriteTable(ctx, name, t, fps); err != nil {
		return fmt.Errorf("export %s: %w", name, err)
	}
	logger.Info("exported table to duckdb",
		zap.String("path", dbPath),
		zap.String("table", name),
		zap.Int("rows", t.Len()))
	return nil
}
