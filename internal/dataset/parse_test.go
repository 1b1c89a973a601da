package dataset

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCSV = `Substance,EC50_nM,Potency
Fentanyl,1.7,15.2
Xylazine,2500,0.01
Nitazene,0.3,42
`

func TestParseValid(t *testing.T) {
	set, err := Parse(strings.NewReader(validCSV), ParseOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, set.Len())

	assert.Equal(t, Sample{Substance: "Fentanyl", EC50nM: 1.7, Potency: 15.2}, set.Samples[0])
	assert.Equal(t, "Nitazene", set.Samples[2].Substance)
	assert.Empty(t, set.Rejected)
}

func TestParseColumnOrderAndExtras(t *testing.T) {
	in := "Notes,Potency,Substance,EC50_nM\nfirst,2.0,A,10\n,3.5,B,20\n"
	set, err := Parse(strings.NewReader(in), ParseOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	assert.Equal(t, Sample{Substance: "B", EC50nM: 20, Potency: 3.5}, set.Samples[1])
}

func TestParseHeaderWithBOMAndSpaces(t *testing.T) {
	in := "\ufeffSubstance, EC50_nM , Potency\nA,10,1\n"
	set, err := Parse(strings.NewReader(in), ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
}

func TestParseMissingColumn(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"no substance", "Name,EC50_nM,Potency", ColumnSubstance},
		{"no ec50", "Substance,EC50,Potency", ColumnEC50},
		{"no potency", "Substance,EC50_nM", ColumnPotency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.header+"\nA,1,2\n"), ParseOptions{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingColumn))

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, MissingColumn, ve.Kind)
			assert.Equal(t, tt.want, ve.Column)
		})
	}
}

func TestParseEmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader(""), ParseOptions{})
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestParseMalformedHeader(t *testing.T) {
	_, err := Parse(strings.NewReader("Substance,\"EC50_nM,Potency\n"), ParseOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRow)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Rows, 1)
	assert.Equal(t, 1, ve.Rows[0].Line)
}

func TestParseMalformedRowsStrict(t *testing.T) {
	in := `Substance,EC50_nM,Potency
A,10,1
B,abc,2
C,-5,3
,20,4
D,30,-1
E,40,NaN
F,50
`
	_, err := Parse(strings.NewReader(in), ParseOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRow)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Rows, 6)

	assert.Equal(t, 3, ve.Rows[0].Line)
	assert.Equal(t, ColumnEC50, ve.Rows[0].Column)
	assert.Equal(t, ColumnEC50, ve.Rows[1].Column)
	assert.Equal(t, ColumnSubstance, ve.Rows[2].Column)
	assert.Equal(t, ColumnPotency, ve.Rows[3].Column)
	assert.Equal(t, ColumnPotency, ve.Rows[4].Column)
	assert.Equal(t, 8, ve.Rows[5].Line)
	assert.Contains(t, err.Error(), "6 malformed row(s)")
}

func TestParseMalformedRowsLenient(t *testing.T) {
	in := "Substance,EC50_nM,Potency\nA,10,1\nB,zero,2\nC,0,3\nD,30,3\n"
	set, err := Parse(strings.NewReader(in), ParseOptions{SkipMalformed: true})
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	require.Len(t, set.Rejected, 2)
	assert.Equal(t, 3, set.Rejected[0].Line)
	assert.Equal(t, 4, set.Rejected[1].Line)
}

func TestParseSkipsBlankRows(t *testing.T) {
	in := "Substance,EC50_nM,Potency\nA,10,1\n,,\nB,20,2\n"
	set, err := Parse(strings.NewReader(in), ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
}

func TestSampleSetHelpers(t *testing.T) {
	set, err := Parse(strings.NewReader(validCSV), ParseOptions{})
	require.NoError(t, err)

	assert.Len(t, set.Preview(2), 2)
	assert.Len(t, set.Preview(10), 3)
	assert.Empty(t, set.Preview(0))

	xs, ys := set.XY()
	assert.Equal(t, []float64{1.7, 2500, 0.3}, xs)
	assert.Equal(t, []float64{15.2, 0.01, 42}, ys)

	again, err := Parse(strings.NewReader(validCSV), ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, set.Fingerprint(), again.Fingerprint())

	again.Samples[0].Potency = 15.3
	assert.NotEqual(t, set.Fingerprint(), again.Fingerprint())
}
