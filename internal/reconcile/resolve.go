package reconcile

import (
	"strconv"
	"strings"
)

// Key is the identity of a variant: chromosome, start, end, reference
// allele and tumor allele.
type Key [5]string

// String formats the key as chrom:start-end ref>alt.
func (k Key) String() string {
	return k[0] + ":" + k[1] + "-" + k[2] + " " + k[3] + ">" + k[4]
}

// Less orders keys by chromosome, start and end position, reference and
// tumor allele. Chromosomes and alleles compare as text, positions as
// integers. Null fields sort last.
func (k Key) Less(o Key) bool {
	for i := range k {
		if c := compareField(k[i], o[i], i == 1 || i == 2); c != 0 {
			return c < 0
		}
	}
	return false
}

func compareField(a, b string, numeric bool) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	}
	if numeric {
		x, errA := strconv.ParseInt(a, 10, 64)
		y, errB := strconv.ParseInt(b, 10, 64)
		switch {
		case errA == nil && errB == nil:
			if x != y {
				if x < y {
					return -1
				}
				return 1
			}
		case errA == nil:
			return -1
		case errB == nil:
			return 1
		}
	}
	return strings.Compare(a, b)
}

// Record is one caller's report of a variant, or the resolved view of a
// variant across callers. Empty strings are nulls.
type Record struct {
	Shared  []string   // aligned to SharedFields
	Present []bool     // aligned to the caller list
	Counts  [][]string // Counts[c] is aligned to NumericFields for caller c
}

// NewRecord returns an all-null record for n callers.
func NewRecord(n int) Record {
	r := Record{
		Shared:  make([]string, len(SharedFields)),
		Present: make([]bool, n),
		Counts:  make([][]string, n),
	}
	for i := range r.Counts {
		r.Counts[i] = make([]string, len(NumericFields))
	}
	return r
}

// Key returns the identity key of the record.
func (r Record) Key() Key {
	var k Key
	for i, p := range keyPositions {
		k[i] = r.Shared[p]
	}
	return k
}

// Resolve folds records sharing one identity key into a single record.
// Each shared field and numeric cell takes the first non-null value in
// record order; a caller is present if any record reports it.
// Resolve does not modify its input. An empty input yields a zero Record.
func Resolve(records []Record) Record {
	if len(records) == 0 {
		return Record{}
	}
	out := NewRecord(len(records[0].Present))
	for _, r := range records {
		for i, v := range r.Shared {
			if out.Shared[i] == "" {
				out.Shared[i] = v
			}
		}
		for c, present := range r.Present {
			out.Present[c] = out.Present[c] || present
		}
		for c, counts := range r.Counts {
			for i, v := range counts {
				if out.Counts[c][i] == "" {
					out.Counts[c][i] = v
				}
			}
		}
	}
	return out
}

// SplitExistingVariation splits a comma separated list of
// known variant identifiers into dbSNP (rs*), COSMIC (COSM*) and other
// identifiers. Each result is comma-joined, or empty when it has no members.
func SplitExistingVariation(ev string) (rsIDs, cosmic, other string) {
	if ev == "" {
		return "", "", ""
	}
	var rs, cosm, rest []string
	for _, tok := range strings.Split(ev, ",") {
		tok = strings.TrimSpace(tok)
		switch {
		case strings.HasPrefix(tok, "rs"):
			rs = append(rs, tok)
		case strings.HasPrefix(tok, "COSM"):
			cosm = append(cosm, tok)
		case tok != "":
			rest = append(rest, tok)
		}
	}
	return strings.Join(rs, ","), strings.Join(cosm, ","), strings.Join(rest, ",")
}
