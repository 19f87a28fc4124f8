package vcf

import "strings"

// Variant represents a single record from a VCF file.
type Variant struct {
	Chrom  string                 // Chromosome name (e.g., "12", "chr12")
	Pos    int64                  // 1-based genomic position
	ID     string                 // Variant identifier (e.g., rs ID)
	Ref    string                 // Reference allele
	Alt    string                 // Alternate allele(s), comma-separated as in the file
	Qual   float64                // Quality score
	Filter string                 // Filter status (PASS or filter name)
	Info   map[string]interface{} // INFO field key-value pairs
}

// End returns the 1-based inclusive end position covered by the reference allele.
func (v *Variant) End() int64 {
	if len(v.Ref) <= 1 {
		return v.Pos
	}
	return v.Pos + int64(len(v.Ref)) - 1
}

// InfoValue returns the value of a key=value INFO entry.
// Flag entries and absent keys report false.
func (v *Variant) InfoValue(key string) (string, bool) {
	s, ok := v.Info[key].(string)
	return s, ok
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func (v *Variant) NormalizeChrom() string {
	return StripChrPrefix(v.Chrom)
}

// StripChrPrefix removes a leading "chr" from a chromosome name.
func StripChrPrefix(chrom string) string {
	if len(chrom) > 3 && chrom[:3] == "chr" {
		return chrom[3:]
	}
	return chrom
}

// AddChrPrefix returns the chromosome name with a leading "chr".
func AddChrPrefix(chrom string) string {
	if strings.HasPrefix(chrom, "chr") {
		return chrom
	}
	return "chr" + chrom
}
