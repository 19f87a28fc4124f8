// Package reconcile merges the per-caller variant tables of one sample into a
// single table with one row per unique variant.
package reconcile

import (
	"github.com/inodb/somamerge/internal/maf"
)

// SharedFields are the descriptive MAF columns resolved across callers.
var SharedFields = []string{
	maf.ColHugoSymbol,
	maf.ColEntrezGeneID,
	maf.ColNCBIBuild,
	maf.ColChromosome,
	maf.ColStartPosition,
	maf.ColEndPosition,
	maf.ColStrand,
	maf.ColVariantClassification,
	maf.ColVariantType,
	maf.ColReferenceAllele,
	maf.ColTumorSeqAllele1,
	maf.ColTumorSeqAllele2,
	maf.ColDbSNPRS,
	maf.ColTumorSampleBarcode,
	maf.ColAllEffects,
	maf.ColAllele,
	maf.ColGene,
	maf.ColFeature,
	maf.ColFeatureType,
	maf.ColConsequence,
	maf.ColExistingVariation,
}

// NumericFields are the caller-specific read count columns. Each caller
// contributes its own copy, suffixed with the caller name.
var NumericFields = []string{
	maf.ColTDepth,
	maf.ColTRefCount,
	maf.ColTAltCount,
}

// KeyFields identify a unique variant.
var KeyFields = []string{
	maf.ColChromosome,
	maf.ColStartPosition,
	maf.ColEndPosition,
	maf.ColReferenceAllele,
	maf.ColTumorSeqAllele2,
}

// Columns derived from Existing_variation.
const (
	ColExistingRsIDs  = "Existing_rsIDs"
	ColExistingCOSMIC = "Existing_COSMIC"
	ColExistingOther  = "Existing_other"
)

// positions of KeyFields and Existing_variation within SharedFields
var (
	keyPositions      [5]int
	existingVariation int
)

func init() {
	pos := make(map[string]int, len(SharedFields))
	for i, f := range SharedFields {
		pos[f] = i
	}
	for i, f := range KeyFields {
		keyPositions[i] = pos[f]
	}
	existingVariation = pos[maf.ColExistingVariation]
}

// NumericColumn returns the output column name of a caller's numeric field.
func NumericColumn(field, caller string) string {
	return field + "_" + caller
}

// Schema is the fixed output column layout for a set of callers.
type Schema struct {
	callers []string
	columns []string
}

// NewSchema builds the output layout: shared fields, derived identifier
// fields, one presence flag per caller, then each caller's numeric fields.
func NewSchema(callers []string) *Schema {
	cols := make([]string, 0, len(SharedFields)+3+len(callers)*(1+len(NumericFields)))
	cols = append(cols, SharedFields...)
	cols = append(cols, ColExistingRsIDs, ColExistingCOSMIC, ColExistingOther)
	cols = append(cols, callers...)
	for _, c := range callers {
		for _, f := range NumericFields {
			cols = append(cols, NumericColumn(f, c))
		}
	}
	return &Schema{callers: callers, columns: cols}
}

// Columns returns the output column names in order.
func (s *Schema) Columns() []string {
	return s.columns
}

// Callers returns the caller names in iteration order.
func (s *Schema) Callers() []string {
	return s.callers
}
