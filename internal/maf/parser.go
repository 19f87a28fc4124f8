// Package maf provides MAF (Mutation Annotation Format) caller table parsing.
package maf

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/inodb/somamerge/internal/table"
)

// Standard MAF column names
const (
	ColHugoSymbol            = "Hugo_Symbol"
	ColEntrezGeneID          = "Entrez_Gene_Id"
	ColNCBIBuild             = "NCBI_Build"
	ColChromosome            = "Chromosome"
	ColStartPosition         = "Start_Position"
	ColEndPosition           = "End_Position"
	ColStrand                = "Strand"
	ColVariantClassification = "Variant_Classification"
	ColVariantType           = "Variant_Type"
	ColReferenceAllele       = "Reference_Allele"
	ColTumorSeqAllele1       = "Tumor_Seq_Allele1"
	ColTumorSeqAllele2       = "Tumor_Seq_Allele2"
	ColDbSNPRS               = "dbSNP_RS"
	ColTumorSampleBarcode    = "Tumor_Sample_Barcode"
	ColAllEffects            = "all_effects"
	ColAllele                = "Allele"
	ColGene                  = "Gene"
	ColFeature               = "Feature"
	ColFeatureType           = "Feature_type"
	ColConsequence           = "Consequence"
	ColExistingVariation     = "Existing_variation"

	ColTDepth    = "t_depth"
	ColTRefCount = "t_ref_count"
	ColTAltCount = "t_alt_count"
)

// nullValues are cell spellings treated as missing.
var nullValues = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"n/a":  true,
	"NaN":  true,
	"nan":  true,
	"NULL": true,
	"null": true,
	"None": true,
	"<NA>": true,
	"#N/A": true,
}

// IsNull reports whether a cell value represents a missing value.
func IsNull(s string) bool {
	return nullValues[s]
}

// Parser reads rows from a caller MAF file.
type Parser struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
	headerLine string

	columns    []string       // header labels, duplicates removed
	fieldIndex []int          // raw field position of each kept column
	index      map[string]int // label -> position in columns
	duplicates []string       // labels dropped because they repeat an earlier label
}

// NewParser creates a new MAF parser for the given file.
// Supports both plain MAF and gzipped MAF (.maf.gz) files.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open maf file: %w", err)
	}

	p := &Parser{file: file}

	br := bufio.NewReader(file)

	// Check for gzip magic number (0x1f, 0x8b)
	if buf, err := br.Peek(2); err == nil && buf[0] == 0x1f && buf[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(br)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	} else {
		p.reader = br
	}

	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{
		reader: bufio.NewReader(r),
	}

	if err := p.parseHeader(); err != nil {
		return nil, err
	}

	return p, nil
}

// readLine returns the next non-empty, non-comment line.
// It returns io.EOF when the input is exhausted.
func (p *Parser) readLine() (string, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")

		// Skip comment lines (start with #) and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			if err == io.EOF {
				return "", io.EOF
			}
			continue
		}
		return line, nil
	}
}

// parseHeader reads the header line and indexes its columns.
// Repeated labels keep their first occurrence.
func (p *Parser) parseHeader() error {
	line, err := p.readLine()
	if err != nil {
		if err == io.EOF {
			return &ParseError{
				Line:    p.lineNumber,
				Message: "no header line found",
			}
		}
		return fmt.Errorf("read header: %w", err)
	}

	p.headerLine = line
	p.index = make(map[string]int)
	for i, col := range strings.Split(line, "\t") {
		if _, seen := p.index[col]; seen {
			p.duplicates = append(p.duplicates, col)
			continue
		}
		p.index[col] = len(p.columns)
		p.columns = append(p.columns, col)
		p.fieldIndex = append(p.fieldIndex, i)
	}
	return nil
}

// Next reads the next row, aligned to Columns. Missing trailing fields and
// null spellings are returned as empty strings.
// Returns nil, nil when there are no more rows.
func (p *Parser) Next() ([]string, error) {
	line, err := p.readLine()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read maf line: %w", err)
	}

	fields := strings.Split(line, "\t")
	row := make([]string, len(p.columns))
	for i, fi := range p.fieldIndex {
		if fi < len(fields) && !IsNull(fields[fi]) {
			row[i] = fields[fi]
		}
	}
	return row, nil
}

// ReadAll reads every remaining row into a table.
func (p *Parser) ReadAll() (*table.Table, error) {
	var rows [][]string
	for {
		row, err := p.Next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return table.New(p.columns, rows...)
		}
		rows = append(rows, row)
	}
}

// Header returns the raw MAF header line.
func (p *Parser) Header() string {
	return p.headerLine
}

// Columns returns the header labels with duplicates removed.
func (p *Parser) Columns() []string {
	return p.columns
}

// Index returns the position of col in Columns, or -1.
func (p *Parser) Index(col string) int {
	if i, ok := p.index[col]; ok {
		return i
	}
	return -1
}

// DuplicateColumns returns header labels that were dropped as repeats.
func (p *Parser) DuplicateColumns() []string {
	return p.duplicates
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// ParseError represents an error during MAF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("maf parse error at line %d: %s", e.Line, e.Message)
}
