package panel

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/inodb/somamerge/internal/vcf"
)

// MemoryPanel holds a whole panel in memory, indexed per chromosome.
// It is immutable after construction.
type MemoryPanel struct {
	trees map[string]*intervalTree
	count int
}

// NewMemoryPanel indexes the given records.
func NewMemoryPanel(variants []*vcf.Variant) *MemoryPanel {
	byChrom := make(map[string][]*vcf.Variant)
	for _, v := range variants {
		byChrom[v.Chrom] = append(byChrom[v.Chrom], v)
	}

	p := &MemoryPanel{trees: make(map[string]*intervalTree, len(byChrom)), count: len(variants)}
	for chrom, vs := range byChrom {
		p.trees[chrom] = buildIntervalTree(vs)
	}
	return p
}

// LoadMemoryPanel reads every well-formed record from parser into a
// MemoryPanel. Malformed records are skipped and counted.
func LoadMemoryPanel(ctx context.Context, parser vcf.VariantParser, logger *zap.Logger) (*MemoryPanel, LoadStats, error) {
	var variants []*vcf.Variant
	stats, err := readRecords(ctx, parser, logger, func(v *vcf.Variant) error {
		variants = append(variants, v)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	return NewMemoryPanel(variants), stats, nil
}

// Len returns the number of records in the panel.
func (p *MemoryPanel) Len() int {
	return p.count
}

// Query returns records on chrom overlapping [start, end).
func (p *MemoryPanel) Query(ctx context.Context, chrom string, start, end int64) ([]*vcf.Variant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tree, ok := p.trees[chrom]
	if !ok {
		return nil, nil
	}
	return tree.findOverlaps(start, end), nil
}

// Close is a no-op.
func (p *MemoryPanel) Close() error {
	return nil
}

// intervalTree provides O(log n + k) overlap queries using a sorted-slice approach.
type intervalTree struct {
	intervals []interval
	maxEnd    []int64 // maxEnd[i] = max(end) for intervals[:i+1]
}

// interval is a 0-based half-open reference span.
type interval struct {
	start   int64
	end     int64
	variant *vcf.Variant
}

func buildIntervalTree(variants []*vcf.Variant) *intervalTree {
	if len(variants) == 0 {
		return &intervalTree{}
	}

	intervals := make([]interval, len(variants))
	for i, v := range variants {
		intervals[i] = interval{start: v.Pos - 1, end: v.End(), variant: v}
	}

	// Stable so records sharing a start keep file order.
	sort.SliceStable(intervals, func(i, j int) bool {
		return intervals[i].start < intervals[j].start
	})

	maxEnd := make([]int64, len(intervals))
	maxEnd[0] = intervals[0].end
	for i := 1; i < len(intervals); i++ {
		maxEnd[i] = intervals[i].end
		if maxEnd[i-1] > maxEnd[i] {
			maxEnd[i] = maxEnd[i-1]
		}
	}

	return &intervalTree{intervals: intervals, maxEnd: maxEnd}
}

// findOverlaps returns the records whose span intersects [start, end).
func (t *intervalTree) findOverlaps(start, end int64) []*vcf.Variant {
	if len(t.intervals) == 0 || end <= start {
		return nil
	}

	// Candidates are intervals starting before end: [0, hi).
	hi := sort.Search(len(t.intervals), func(i int) bool {
		return t.intervals[i].start >= end
	})

	var result []*vcf.Variant
	for i := hi - 1; i >= 0; i-- {
		// No interval in [0, i] reaches past start.
		if t.maxEnd[i] <= start {
			break
		}
		if t.intervals[i].end > start {
			result = append(result, t.intervals[i].variant)
		}
	}

	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}
