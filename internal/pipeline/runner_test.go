package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/housetax/internal/chart"
	"github.com/leapstack-labs/housetax/internal/combine"
	"github.com/leapstack-labs/housetax/internal/table"
	"github.com/leapstack-labs/housetax/internal/testutil"
	"github.com/leapstack-labs/housetax/pkg/adapters/sqlite"
	"github.com/leapstack-labs/housetax/pkg/core"
)

const codesPage = `<html><body>
<table class="wikitable sortable">
<tr><th>Country name[5]</th><th>Official state name[6]</th><th>Sovereignty[7]</th>
<th>Alpha-2 code[5]</th><th>Alpha-3 code[5]</th><th>Numeric code[5]</th><th>Subdivision code links[8]</th><th>Internet ccTLD[9]</th></tr>
<tr><td>Australia</td><td>The Commonwealth of Australia</td><td>UN member</td><td>AU</td><td>AUS</td><td>036</td><td>ISO 3166-2:AU</td><td>.au</td></tr>
<tr><td>Sweden</td><td>The Kingdom of Sweden</td><td>UN member</td><td>SE</td><td>SWE</td><td>752</td><td>ISO 3166-2:SE</td><td>.se</td></tr>
<tr><td>Canada</td><td>Canada</td><td>UN member</td><td>CA</td><td>CAN</td><td>124</td><td>ISO 3166-2:CA</td><td>.ca</td></tr>
</table></body></html>`

// fixture holds the raw inputs of a small three-country pipeline.
type fixture struct {
	dir    string
	server *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, codesPage)
	}))
	t.Cleanup(srv.Close)

	prices := []string{"COU,Country,IND,Indicator,TIME,Time,Unit Code,Unit,PowerCode Code,PowerCode,Reference Period Code,Reference Period,Value,Flag Codes,Flags"}
	taxes := []string{"LOCATION,INDICATOR,SUBJECT,MEASURE,FREQUENCY,TIME,Value,Flag Codes"}
	values := map[string][4]float64{
		// rpi 2000, rpi 2020, pct gdp 2000, pct gdp 2020
		"AUS": {70, 150, 2.5, 2.6},
		"SWE": {80, 190, 1.0, 0.8},
		"CAN": {75, 160, 3.0, 3.1},
	}
	for _, code := range []string{"AUS", "SWE", "CAN", "OECD"} {
		v, ok := values[code]
		if !ok {
			v = [4]float64{78, 140, 1.8, 1.9}
		}
		taxCode := code
		if code == "OECD" {
			taxCode = "OAVG"
		}
		for i, year := range []string{"2000", "2020"} {
			prices = append(prices,
				priceRow(code, "RHP", year, v[i]),
				priceRow(code, "HPI_YDH_AVG", year, v[i]+10),
			)
			taxes = append(taxes,
				fmt.Sprintf("%s,TAXPROPERTY,TOT,PC_GDP,A,%s,%g,", taxCode, year, v[2+i]),
				fmt.Sprintf("%s,TAXPROPERTY,TOT,PC_TOT_TAX,A,%s,%g,", taxCode, year, v[2+i]*3),
			)
		}
	}
	// Years outside the window and quarterly rows are filtered on the way in.
	prices = append(prices, priceRow("AUS", "RHP", "2021-Q1", 151))
	taxes = append(taxes, "AUS,TAXPROPERTY,TOT,PC_GDP,A,1999,2.4,")

	writeLines(t, filepath.Join(dir, "raw/house-prices.csv"), prices)
	writeLines(t, filepath.Join(dir, "raw/property-tax.csv"), taxes)
	return &fixture{dir: dir, server: srv}
}

func priceRow(code, ind, year string, v float64) string {
	return strings.Join([]string{code, "x", ind, "x", year, year, "IDX", "Index", "0", "Units", "2015", "2015", fmt.Sprintf("%g", v), "", ""}, ",")
}

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
}

func (f *fixture) path(rel string) string { return filepath.Join(f.dir, rel) }

func (f *fixture) stages() []Stage {
	p := f.path
	return []Stage{
		{Name: "plot-scatter", Kind: KindScatter, Inputs: []string{p("combined.tsv")},
			XVar: "PctGDP", YVar: "RealPriceIndex", Output: p("figures/scatter.png")},
		{Name: "plot-bar", Kind: KindBar, Inputs: []string{p("combined.tsv")},
			Var: "RealPriceIndex", Label: "Real Price Index", Output: p("figures/rpi.svg")},
		{Name: "combine", Kind: KindCombine,
			Inputs: []string{p("tidy/codes.tsv"), p("tidy/prices.tsv"), p("tidy/tax.tsv")}, Output: p("combined.tsv")},
		{Name: "download", Kind: KindDownload, URL: f.server.URL, Output: p("raw/codes.tsv")},
		{Name: "tidy-codes", Kind: KindTidy, Schema: "country-codes", Inputs: []string{p("raw/codes.tsv")}, Output: p("tidy/codes.tsv")},
		{Name: "tidy-prices", Kind: KindTidy, Schema: "house-prices", Inputs: []string{p("raw/house-prices.csv")}, Output: p("tidy/prices.tsv")},
		{Name: "tidy-tax", Kind: KindTidy, Schema: "property-tax", Inputs: []string{p("raw/property-tax.csv")}, Output: p("tidy/tax.tsv")},
	}
}

func testRunner(t *testing.T) *Runner {
	t.Helper()
	opts := DefaultOptions()
	opts.Style.Width, opts.Style.Height = 800, 500
	return NewRunner(opts, testutil.NewTestLogger(t))
}

func TestRunFullPipeline(t *testing.T) {
	f := newFixture(t)
	results, err := testRunner(t).Run(context.Background(), f.stages(), nil, false)
	require.NoError(t, err)

	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"download", "tidy-codes", "tidy-prices", "tidy-tax", "combine", "plot-scatter", "plot-bar"}, names)

	byName := map[string]StageResult{}
	for _, r := range results {
		byName[r.Name] = r
	}
	assert.Equal(t, 3, byName["download"].Rows)
	assert.Equal(t, 8, byName["combine"].Rows, "three countries plus the aggregate, two years each")
	assert.Equal(t, 4, byName["plot-bar"].Rows)
	assert.Equal(t, 4, byName["plot-scatter"].Rows)

	combined, err := table.ReadFile(f.path("combined.tsv"), table.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, core.CombinedColumns, combined.Columns)
	assert.Equal(t, "Australia (AUS)", combined.Get(0, core.ColCountryLabel))
	assert.Equal(t, "OECD", combined.Get(4, core.ColCode3), "OAVG renamed to the aggregate code")

	svg, err := os.ReadFile(f.path("figures/rpi.svg"))
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")

	png, err := os.ReadFile(f.path("figures/scatter.png"))
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(png[:4]))

	leftovers, err := filepath.Glob(f.path("figures/.*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temporary figure files are renamed into place")
}

func TestRunSelectedStages(t *testing.T) {
	f := newFixture(t)
	r := testRunner(t)
	ctx := context.Background()

	_, err := r.Run(ctx, f.stages(), []string{"download", "tidy-codes", "tidy-prices", "tidy-tax", "combine"}, false)
	require.NoError(t, err)
	_, err = os.Stat(f.path("figures/rpi.svg"))
	assert.True(t, os.IsNotExist(err), "plots were not selected")

	results, err := r.Run(ctx, f.stages(), []string{"plot-bar"}, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, KindBar, results[0].Kind)
	assert.FileExists(t, f.path("figures/rpi.svg"))
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t)
	stages := f.stages()
	for i := range stages {
		if stages[i].Name == "tidy-prices" {
			stages[i].Inputs = []string{f.path("raw/missing.csv")}
		}
	}

	results, err := testRunner(t).Run(context.Background(), stages, nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `stage "tidy-prices" failed`)

	var done []string
	for _, r := range results {
		done = append(done, r.Name)
	}
	assert.Equal(t, []string{"download", "tidy-codes"}, done)
	_, statErr := os.Stat(f.path("combined.tsv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := testRunner(t).Run(ctx, f.stages(), nil, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestPlotRejectsUnknownColumn(t *testing.T) {
	r := testRunner(t)
	_, err := r.PlotBar("unused.tsv", "Population", "Population", "out.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown variable "Population"`)

	_, err = r.PlotScatter("unused.tsv", chart.Axis{Column: "PctGDP"}, chart.Axis{Column: "Rent"}, "out.png")
	assert.Error(t, err)
}

func TestCombineReportsDroppedCountries(t *testing.T) {
	f := newFixture(t)
	r := testRunner(t)
	ctx := context.Background()

	stages := f.stages()
	_, err := r.Run(ctx, stages, []string{"download", "tidy-codes", "tidy-prices", "tidy-tax"}, false)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Combine.FirstYear = 1999
	narrow := NewRunner(opts, testutil.NewTestLogger(t))
	res, err := narrow.Combine(f.path("tidy/codes.tsv"), f.path("tidy/prices.tsv"), f.path("tidy/tax.tsv"), f.path("combined.tsv"))
	require.NoError(t, err)
	assert.Empty(t, res.Records, "no country has house prices for 1999")
	assert.Len(t, res.Dropped, 4)
}

func TestRunChecks(t *testing.T) {
	f := newFixture(t)
	_, err := testRunner(t).Run(context.Background(), f.stages(), []string{"download", "tidy-codes", "tidy-prices", "tidy-tax", "combine"}, false)
	require.NoError(t, err)

	adp := sqlite.New(nil)
	require.NoError(t, adp.Connect(context.Background(), core.AdapterConfig{Type: sqlite.Name}))
	defer func() { _ = adp.Close() }()

	results, err := RunChecks(context.Background(), adp, f.path("combined.tsv"), combine.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Empty(t, Failed(results))

	gaps := results[4]
	assert.Equal(t, "contiguous-years", gaps.Name)
	assert.Equal(t, SeverityWarning, gaps.Severity)
	assert.Equal(t, 4, gaps.Violations, "only the endpoint years are present")
}

func TestRunChecksFindsViolations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "combined.tsv")
	row := func(code, year, pct string) string {
		return strings.Join([]string{code, code + " land", code + " land (" + code + ")", year, "1", "2", pct, "4"}, "\t")
	}
	writeLines(t, path, []string{
		strings.Join(core.CombinedColumns, "\t"),
		row("AUS", "2000", "1.5"),
		row("AUS", "2000", "1.5"),
		row("AUS", "2020", "1.6"),
		row("BEL", "2000", ""),
		row("BEL", "2021", "2"),
	})

	adp := sqlite.New(nil)
	require.NoError(t, adp.Connect(context.Background(), core.AdapterConfig{Type: sqlite.Name}))
	defer func() { _ = adp.Close() }()

	results, err := RunChecks(context.Background(), adp, path, combine.DefaultOptions())
	require.NoError(t, err)

	failed := map[string]CheckResult{}
	for _, r := range Failed(results) {
		failed[r.Name] = r
	}
	require.Len(t, failed, 4)
	assert.Equal(t, [][]string{{"AUS", "2000", "2"}}, failed["unique-key"].Sample)
	assert.Equal(t, [][]string{{"BEL", "2000", "2021"}}, failed["endpoints"].Sample)
	assert.Equal(t, [][]string{{"BEL", "2021"}}, failed["window"].Sample)
	assert.Equal(t, [][]string{{"BEL", "2000"}}, failed["no-missing-values"].Sample)
}
