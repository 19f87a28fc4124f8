package panel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/bgzf/index"
	"github.com/biogo/hts/tabix"

	"github.com/inodb/somamerge/internal/vcf"
)

// maxLineSize bounds a single VCF line; gnomAD INFO fields run long.
const maxLineSize = 16 << 20

// TabixPanel queries a bgzipped, tabix-indexed VCF.
// Each query reads through its own BGZF reader, so queries may run concurrently.
type TabixPanel struct {
	file *os.File
	size int64
	idx  *tabix.Index
	refs map[string]bool
}

// OpenTabix opens path and its path+".tbi" index.
func OpenTabix(path string) (*TabixPanel, error) {
	idx, err := readTabixIndex(path + ".tbi")
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open panel: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat panel: %w", err)
	}

	refs := make(map[string]bool)
	for _, name := range idx.Names() {
		refs[name] = true
	}

	return &TabixPanel{file: f, size: info.Size(), idx: idx, refs: refs}, nil
}

func readTabixIndex(path string) (*tabix.Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tabix index: %w", err)
	}
	defer f.Close()

	// The index is itself BGZF compressed.
	bg, err := bgzf.NewReader(f, 1)
	if err != nil {
		return nil, fmt.Errorf("read tabix index: %w", err)
	}
	defer bg.Close()

	idx, err := tabix.ReadFrom(bg)
	if err != nil {
		return nil, fmt.Errorf("parse tabix index: %w", err)
	}
	return idx, nil
}

// Chromosomes returns the reference names present in the index.
func (p *TabixPanel) Chromosomes() []string {
	return p.idx.Names()
}

// Query returns records on chrom overlapping [start, end). A chromosome
// absent from the index has no records.
func (p *TabixPanel) Query(ctx context.Context, chrom string, start, end int64) ([]*vcf.Variant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.refs[chrom] {
		return nil, nil
	}

	chunks, err := p.idx.Chunks(chrom, int(start), int(end))
	if err != nil {
		return nil, fmt.Errorf("tabix chunks %s:%d-%d: %w", chrom, start, end, err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	bg, err := bgzf.NewReader(io.NewSectionReader(p.file, 0, p.size), 1)
	if err != nil {
		return nil, fmt.Errorf("open bgzf reader: %w", err)
	}
	defer bg.Close()

	cr, err := index.NewChunkReader(bg, chunks)
	if err != nil {
		return nil, fmt.Errorf("seek %s:%d-%d: %w", chrom, start, end, err)
	}
	defer cr.Close()

	return scanRecords(cr, chrom, start, end)
}

// scanRecords parses VCF lines from r, keeping those on chrom that overlap
// [start, end). Index chunks are coarse, so neighbouring records are expected.
func scanRecords(r io.Reader, chrom string, start, end int64) ([]*vcf.Variant, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var result []*vcf.Variant
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Cheap chromosome check before the full parse.
		if !strings.HasPrefix(line, chrom+"\t") {
			continue
		}
		v, err := vcf.ParseLine(line)
		if err != nil {
			return nil, err
		}
		if v.Pos-1 >= end {
			// Records are position sorted.
			break
		}
		if overlaps(v, start, end) {
			result = append(result, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read panel records: %w", err)
	}
	return result, nil
}

// Close closes the panel file.
func (p *TabixPanel) Close() error {
	return p.file.Close()
}
