// Package output provides table output writers.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/inodb/somamerge/internal/table"
)

// TSVWriter writes rows in tab-delimited format.
type TSVWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTSVWriter creates a new tab-delimited writer for the given columns.
func NewTSVWriter(w io.Writer, columns []string) *TSVWriter {
	return &TSVWriter{
		w:       bufio.NewWriter(w),
		columns: columns,
	}
}

// WriteHeader writes the header line.
func (tw *TSVWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// WriteRow writes a single row. The row must have one value per column.
func (tw *TSVWriter) WriteRow(row []string) error {
	if len(row) != len(tw.columns) {
		return fmt.Errorf("row has %d values, header has %d columns", len(row), len(tw.columns))
	}
	_, err := tw.w.WriteString(strings.Join(row, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TSVWriter) Flush() error {
	return tw.w.Flush()
}

// WriteTable writes the header and every row of t.
func WriteTable(w io.Writer, t *table.Table) error {
	tw := NewTSVWriter(w, t.Columns())
	if err := tw.WriteHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range t.Rows() {
		if err := tw.WriteRow(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return tw.Flush()
}

// WriteFile writes t to path. The table is written to a temporary file in the
// same directory and renamed into place, so path only ever holds a complete table.
func WriteFile(path string, t *table.Table) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteTable(tmp, t); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}
