// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/housetax/internal/cli/output"
)

// CodesPage is a trimmed ISO 3166 page with three countries.
const CodesPage = `<html><body>
<table class="wikitable sortable">
<tr><th>Country name[5]</th><th>Official state name[6]</th><th>Sovereignty[7]</th>
<th>Alpha-2 code[5]</th><th>Alpha-3 code[5]</th><th>Numeric code[5]</th><th>Subdivision code links[8]</th><th>Internet ccTLD[9]</th></tr>
<tr><td>Australia</td><td>The Commonwealth of Australia</td><td>UN member</td><td>AU</td><td>AUS</td><td>036</td><td>ISO 3166-2:AU</td><td>.au</td></tr>
<tr><td>Sweden</td><td>The Kingdom of Sweden</td><td>UN member</td><td>SE</td><td>SWE</td><td>752</td><td>ISO 3166-2:SE</td><td>.se</td></tr>
<tr><td>Canada</td><td>Canada</td><td>UN member</td><td>CA</td><td>CAN</td><td>124</td><td>ISO 3166-2:CA</td><td>.ca</td></tr>
</table></body></html>`

// CodesServer serves CodesPage and returns its URL.
func CodesServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, CodesPage)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

// WriteRawExports writes data/raw/house-prices.csv and
// data/raw/property-tax.csv under dir, covering AUS, SWE, CAN and the
// OECD aggregate for 2000 and 2020.
func WriteRawExports(t *testing.T, dir string) {
	t.Helper()

	prices := []string{"COU,Country,IND,Indicator,TIME,Time,Unit Code,Unit,PowerCode Code,PowerCode,Reference Period Code,Reference Period,Value,Flag Codes,Flags"}
	taxes := []string{"LOCATION,INDICATOR,SUBJECT,MEASURE,FREQUENCY,TIME,Value,Flag Codes"}
	values := map[string][4]float64{
		"AUS":  {70, 150, 2.5, 2.6},
		"SWE":  {80, 190, 1.0, 0.8},
		"CAN":  {75, 160, 3.0, 3.1},
		"OECD": {78, 140, 1.8, 1.9},
	}
	for _, code := range []string{"AUS", "SWE", "CAN", "OECD"} {
		v := values[code]
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

	WriteLines(t, filepath.Join(dir, "data", "raw", "house-prices.csv"), prices)
	WriteLines(t, filepath.Join(dir, "data", "raw", "property-tax.csv"), taxes)
}

func priceRow(code, ind, year string, v float64) string {
	return strings.Join([]string{code, "x", ind, "x", year, year, "IDX", "Index", "0", "Units", "2015", "2015", fmt.Sprintf("%g", v), "", ""}, ",")
}

// WriteLines writes lines to path, creating parent directories.
func WriteLines(t *testing.T, path string, lines []string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
