package table_test

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/housetax/internal/table"
	"github.com/leapstack-labs/housetax/pkg/core"
)

func sample() *table.Table {
	t := table.New("sample", "Code3", "Year", "Value")
	t.Rows = [][]string{
		{"SWE", "2010", "1.5"},
		{"AUS", "2000", "10"},
		{"AUS", "900", "2"},
	}
	return t
}

func TestSelectAndRename(t *testing.T) {
	tbl := sample()
	sel, err := tbl.Select("Value", "Code3")
	require.NoError(t, err)
	assert.Equal(t, []string{"Value", "Code3"}, sel.Columns)
	assert.Equal(t, []string{"1.5", "SWE"}, sel.Rows[0])

	_, err = tbl.Select("Missing")
	assert.Error(t, err)

	sel.Rename(map[string]string{"Value": "PctGDP", "Nope": "X"})
	assert.Equal(t, []string{"PctGDP", "Code3"}, sel.Columns)
}

func TestSortByNumericAware(t *testing.T) {
	tbl := sample()
	require.NoError(t, tbl.SortBy("Code3", "Year"))
	assert.Equal(t, "900", tbl.Get(0, "Year"), "numeric column sorts 900 before 2000")
	assert.Equal(t, "2000", tbl.Get(1, "Year"))
	assert.Equal(t, "SWE", tbl.Get(2, "Code3"))

	assert.Error(t, tbl.SortBy("Nope"))
}

func TestFilterAndMissing(t *testing.T) {
	tbl := sample()
	tbl.Filter(func(r []string) bool { return r[0] == "AUS" })
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"Unit"}, tbl.Missing("Code3", "Unit"))
	assert.True(t, tbl.Has("Code3", "Year"))
}

func TestReadDetectsShapeProblems(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty file", ""},
		{"ragged row", "a\tb\n1\t2\t3\n"},
		{"duplicate header", "a\ta\n1\t2\n"},
		{"empty header", "a\t\n1\t2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := table.Read(strings.NewReader(tt.input), "in.tsv", '\t')
			var sfe *core.SourceFormatError
			require.True(t, errors.As(err, &sfe), "got %v", err)
		})
	}
}

func TestReadStripsBOMAndQuotes(t *testing.T) {
	in := "\ufeff\"LOCATION\",\"Value\"\n\"AUS\",\"1.2\"\n"
	tbl, err := table.Read(strings.NewReader(in), "raw.csv", ',')
	require.NoError(t, err)
	assert.Equal(t, []string{"LOCATION", "Value"}, tbl.Columns)
	assert.Equal(t, "AUS", tbl.Get(0, "LOCATION"))
}

func TestRoundTripPreservesValues(t *testing.T) {
	values := []float64{0.1, 1.0 / 3.0, -2.5e-7, 123456.789, math.NaN()}
	tbl := table.New("numbers", "Name", "Value")
	for _, v := range values {
		require.NoError(t, tbl.Append("Côte d'Ivoire \"x\"", table.FormatFloat(v)))
	}

	path := filepath.Join(t.TempDir(), "nested", "numbers.tsv")
	require.NoError(t, table.WriteFile(path, tbl))

	back, err := table.ReadFile(path, table.ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, tbl.Columns, back.Columns)
	require.Equal(t, len(values), back.Len())

	for i, want := range values {
		got, err := table.ParseFloat(back.Get(i, "Value"))
		require.NoError(t, err)
		if math.IsNaN(want) {
			assert.True(t, math.IsNaN(got))
			continue
		}
		assert.Equal(t, want, got)
		assert.Equal(t, "Côte d'Ivoire \"x\"", back.Get(i, "Name"))
	}
}

func TestWriteUsesTabs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, table.Write(&buf, sample(), '\t'))
	assert.True(t, strings.HasPrefix(buf.String(), "Code3\tYear\tValue\n"))
}

func TestDelimiterFor(t *testing.T) {
	assert.Equal(t, ',', table.DelimiterFor("raw/HOUSE.CSV"))
	assert.Equal(t, '\t', table.DelimiterFor("tidy/codes.tsv"))
	assert.Equal(t, '\t', table.DelimiterFor("notes"))
}
