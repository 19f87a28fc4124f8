package maf

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMAF = `#version 2.4
## VEP annotated
Hugo_Symbol	Chromosome	Start_Position	End_Position	Reference_Allele	Tumor_Seq_Allele2	t_depth	Hugo_Symbol	Existing_variation
KRAS	12	25245350	25245350	C	A	120	DUPLICATE	rs121913529,COSM516
TP53	17	7674220	7674220	C	T	NA

# trailing comment
BRAF	7	140753336	140753336	A	T
`

func writeMAF(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.maf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParser_ParseRows(t *testing.T) {
	parser, err := NewParser(writeMAF(t, testMAF))
	require.NoError(t, err)
	defer parser.Close()

	cols := parser.Columns()
	assert.Equal(t, []string{
		"Hugo_Symbol", "Chromosome", "Start_Position", "End_Position",
		"Reference_Allele", "Tumor_Seq_Allele2", "t_depth", "Existing_variation",
	}, cols)
	assert.Equal(t, []string{"Hugo_Symbol"}, parser.DuplicateColumns())
	assert.Equal(t, 1, parser.Index(ColChromosome))
	assert.Equal(t, -1, parser.Index(ColTAltCount))

	// First row: duplicate Hugo_Symbol column value is ignored
	row, err := parser.Next()
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "KRAS", row[parser.Index(ColHugoSymbol)])
	assert.Equal(t, "120", row[parser.Index(ColTDepth)])
	assert.Equal(t, "rs121913529,COSM516", row[parser.Index(ColExistingVariation)])

	// Second row: NA and empty are null
	row, err = parser.Next()
	require.NoError(t, err)
	assert.Equal(t, "TP53", row[0])
	assert.Equal(t, "", row[parser.Index(ColTDepth)])
	assert.Equal(t, "", row[parser.Index(ColExistingVariation)])

	// Third row: comment skipped, short row padded
	row, err = parser.Next()
	require.NoError(t, err)
	assert.Equal(t, "BRAF", row[0])
	assert.Len(t, row, len(cols))
	assert.Equal(t, "", row[parser.Index(ColTDepth)])

	row, err = parser.Next()
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestParser_ReadAll(t *testing.T) {
	parser, err := NewParser(writeMAF(t, testMAF))
	require.NoError(t, err)
	defer parser.Close()

	tbl, err := parser.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, parser.Columns(), tbl.Columns())
}

func TestParser_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(testMAF))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "sample.maf.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	parser, err := NewParser(path)
	require.NoError(t, err)
	defer parser.Close()

	tbl, err := parser.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
}

func TestParser_NoHeader(t *testing.T) {
	_, err := NewParserFromReader(strings.NewReader("# only comments\n#\n"))
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Message, "no header")
}

func TestParser_MissingFile(t *testing.T) {
	_, err := NewParser(filepath.Join(t.TempDir(), "absent.maf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParser_HeaderOnly(t *testing.T) {
	parser, err := NewParserFromReader(strings.NewReader("Chromosome\tStart_Position"))
	require.NoError(t, err)

	row, err := parser.Next()
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.Equal(t, "Chromosome\tStart_Position", parser.Header())
}

func TestIsNull(t *testing.T) {
	for _, s := range []string{"", "NA", "NaN", "nan", "None", "NULL"} {
		assert.True(t, IsNull(s), s)
	}
	for _, s := range []string{"0", ".", "-", "KRAS"} {
		assert.False(t, IsNull(s), s)
	}
}

func TestParseError(t *testing.T) {
	err := &ParseError{
		Line:    42,
		Message: "no header line found",
	}

	expected := "maf parse error at line 42: no header line found"
	assert.Equal(t, expected, err.Error())
}
