// Package table provides the in-memory tab-delimited table shared by the
// reconcile, cohort and annotate stages. Tables are gota data frames whose
// cells are all strings, so values survive a read and write unchanged.
package table

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ErrNoColumns is returned when a table would have no columns.
var ErrNoColumns = errors.New("table has no columns")

// Table is an immutable frame of string cells with named columns.
// An empty cell is a null value.
type Table struct {
	frame dataframe.DataFrame
}

// New creates a table with the given columns and rows. Short rows are
// padded with nulls and cells beyond the last column are dropped.
func New(columns []string, rows ...[]string) (*Table, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}
	cols := make([]series.Series, len(columns))
	for j, name := range columns {
		vals := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				vals[i] = row[j]
			}
		}
		cols[j] = series.New(vals, series.String, name)
	}
	return fromFrame(dataframe.New(cols...))
}

func fromFrame(df dataframe.DataFrame) (*Table, error) {
	if df.Err != nil {
		return nil, df.Err
	}
	return &Table{frame: df}, nil
}

// Frame returns the underlying data frame.
func (t *Table) Frame() dataframe.DataFrame {
	return t.frame
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return t.frame.Names()
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return t.frame.Nrow()
}

// Index returns the position of the first column named col, or -1.
func (t *Table) Index(col string) int {
	for i, name := range t.frame.Names() {
		if name == col {
			return i
		}
	}
	return -1
}

// Rows returns the data rows, each aligned to Columns.
func (t *Table) Rows() [][]string {
	return t.frame.Records()[1:]
}

// Column returns the cells of the named column, or nil if it is absent.
func (t *Table) Column(name string) []string {
	if t.Index(name) < 0 {
		return nil
	}
	return t.frame.Col(name).Records()
}

// Missing returns the columns of want that t lacks, in want order.
func (t *Table) Missing(want []string) []string {
	have := make(map[string]bool)
	for _, name := range t.frame.Names() {
		have[name] = true
	}
	var missing []string
	for _, c := range want {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// Select returns a table holding exactly the given columns in order.
func (t *Table) Select(columns []string) (*Table, error) {
	return fromFrame(t.frame.Select(columns))
}

// Concat returns t followed by the rows of other. Other must carry every
// column of t; its extra columns are ignored.
func (t *Table) Concat(other *Table) (*Table, error) {
	return fromFrame(t.frame.RBind(other.frame))
}

// WithColumn returns a copy of t with a column appended, or replaced when
// name already exists. It needs one value per row.
func (t *Table) WithColumn(name string, values []string) (*Table, error) {
	if len(values) != t.Len() {
		return nil, fmt.Errorf("column %s: %d values for %d rows", name, len(values), t.Len())
	}
	return fromFrame(t.frame.Mutate(series.New(values, series.String, name)))
}

// ReadFile reads a tab-delimited table with a header line.
// Gzipped files are detected by their magic bytes.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		defer gz.Close()
		return Read(gz)
	}
	return Read(br)
}

// Read parses a tab-delimited table. The first line that is neither blank
// nor a '#' comment is the header. Cells are kept as text; no null markers
// are recognized.
func Read(r io.Reader) (*Table, error) {
	// The header is read as a data row so a header-only table still loads.
	df := dataframe.ReadCSV(r,
		dataframe.WithDelimiter('\t'),
		dataframe.WithLazyQuotes(true),
		dataframe.WithComments('#'),
		dataframe.HasHeader(false),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("read table: %w", df.Err)
	}

	names := make([]string, df.Ncol())
	for j := range names {
		names[j] = df.Elem(0, j).String()
	}
	if df.Nrow() == 1 {
		return New(names)
	}

	body := make([]int, df.Nrow()-1)
	for i := range body {
		body[i] = i + 1
	}
	df = df.Subset(body)
	if df.Err != nil {
		return nil, fmt.Errorf("read table: %w", df.Err)
	}
	if err := df.SetNames(names...); err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	return fromFrame(df)
}
