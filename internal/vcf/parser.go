// Package vcf reads VCF records, as used for population reference panels.
package vcf

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// VariantParser is a source of VCF records.
type VariantParser interface {
	// Next returns the next record, or nil, nil at end of input.
	Next() (*Variant, error)

	// Close releases the underlying file.
	Close() error

	// LineNumber returns the number of lines consumed so far.
	LineNumber() int
}

// Parser reads records from a plain, gzipped or bgzipped VCF.
type Parser struct {
	in     *bufio.Reader
	closer []io.Closer
	line   int
	header []string
}

// NewParser opens path, or stdin when path is "-", and reads its header.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}
	p := &Parser{closer: []io.Closer{f}}

	br := bufio.NewReader(f)
	// BGZF is multi-member gzip, so one gzip reader covers both.
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.closer = append([]io.Closer{gz}, p.closer...)
		br = bufio.NewReader(gz)
	}
	p.in = br

	if err := p.readHeader(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// NewParserFromReader reads an uncompressed VCF from r.
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{in: bufio.NewReader(r)}
	if err := p.readHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// readLine returns the next line without its terminator, or io.EOF.
func (p *Parser) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		if line == "" {
			return "", io.EOF
		}
	}
	p.line++
	return strings.TrimRight(line, "\r\n"), nil
}

// readHeader consumes meta lines up to and including #CHROM.
func (p *Parser) readHeader() error {
	for {
		line, err := p.readLine()
		if errors.Is(err, io.EOF) {
			return &ParseError{Line: p.line, Message: "no #CHROM header line found"}
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}

		switch {
		case strings.HasPrefix(line, "##"):
			p.header = append(p.header, line)
		case strings.HasPrefix(line, "#CHROM"):
			p.header = append(p.header, line)
			return nil
		default:
			return &ParseError{Line: p.line, Message: "expected #CHROM header line"}
		}
	}
}

// Next returns the next record, skipping blank lines.
func (p *Parser) Next() (*Variant, error) {
	for {
		line, err := p.readLine()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		if line == "" {
			continue
		}

		v, err := ParseLine(line)
		if err != nil {
			return nil, &ParseError{Line: p.line, Message: err.Error()}
		}
		return v, nil
	}
}

// ParseLine parses one data line. Sample columns are ignored and ALT is kept
// as written, multiple alleles included.
func ParseLine(line string) (*Variant, error) {
	fields := strings.SplitN(line, "\t", 9)
	if len(fields) < 8 {
		return nil, fmt.Errorf("expected at least 8 columns, found %d", len(fields))
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid position: %s", fields[1])
	}

	var qual float64
	if fields[5] != "." {
		qual, _ = strconv.ParseFloat(fields[5], 64)
	}

	return &Variant{
		Chrom:  fields[0],
		Pos:    pos,
		ID:     fields[2],
		Ref:    fields[3],
		Alt:    fields[4],
		Qual:   qual,
		Filter: fields[6],
		Info:   parseInfo(fields[7]),
	}, nil
}

// parseInfo splits a semicolon-delimited INFO string. Flags map to true and
// the first occurrence of a repeated key wins.
func parseInfo(info string) map[string]interface{} {
	result := make(map[string]interface{})
	if info == "." {
		return result
	}

	for _, entry := range strings.Split(info, ";") {
		if entry == "" {
			continue
		}
		key, value, hasValue := strings.Cut(entry, "=")
		if _, seen := result[key]; seen {
			continue
		}
		if hasValue {
			result[key] = value
		} else {
			result[key] = true
		}
	}
	return result
}

// Header returns the meta lines and the #CHROM line.
func (p *Parser) Header() []string {
	return p.header
}

// LineNumber returns the number of lines consumed so far.
func (p *Parser) LineNumber() int {
	return p.line
}

// Close closes the decompressor and the file, if any.
func (p *Parser) Close() error {
	var first error
	for _, c := range p.closer {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	p.closer = nil
	return first
}

// ParseError is a malformed-input error with its line number.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}
