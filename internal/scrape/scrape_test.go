package scrape_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/housetax/internal/scrape"
	"github.com/leapstack-labs/housetax/pkg/core"
)

const page = `<html><body>
<table class="infobox"><tr><th>Ignore</th></tr></table>
<table class="wikitable sortable">
<thead>
<tr><th rowspan="2">Country name<sup>[5]</sup></th><th rowspan="2">Official state name</th><th colspan="3">ISO 3166-1</th></tr>
<tr><th>Alpha-2 code</th><th>Alpha-3 code</th><th>Numeric code</th></tr>
</thead>
<tbody>
<tr><td><a href="/wiki/Afghanistan">Afghanistan</a></td><td>The Islamic Republic of Afghanistan</td><td><span style="display: none">zz</span>AF</td><td>AFG</td><td>004</td></tr>
<tr><td rowspan="2">Shared</td><td>First&nbsp;part</td><td>S1</td><td>SH1</td><td>001</td></tr>
<tr><td>Second
   part</td><td>S2</td><td>SH2</td><td>002</td></tr>
<tr><td colspan="5">See also: notes</td></tr>
</tbody>
</table>
</body></html>`

func TestExtractTable(t *testing.T) {
	tbl, err := scrape.ExtractTable(strings.NewReader(page), "wikitable")
	require.NoError(t, err)

	assert.Equal(t, []string{"Country name[5]", "Official state name", "Alpha-2 code", "Alpha-3 code", "Numeric code"}, tbl.Columns)
	require.Equal(t, 4, tbl.Len())
	assert.Equal(t, []string{"Afghanistan", "The Islamic Republic of Afghanistan", "AF", "AFG", "004"}, tbl.Rows[0])
	assert.Equal(t, []string{"Shared", "First part", "S1", "SH1", "001"}, tbl.Rows[1])
	assert.Equal(t, []string{"Shared", "Second part", "S2", "SH2", "002"}, tbl.Rows[2], "rowspan carried down")
	assert.Equal(t, "See also: notes", tbl.Rows[3][0])
	assert.Equal(t, "See also: notes", tbl.Rows[3][4], "colspan repeated")
}

func TestExtractTableMissing(t *testing.T) {
	_, err := scrape.ExtractTable(strings.NewReader("<table class='other'><tr><td>x</td></tr></table>"), "wikitable")
	var sfe *core.SourceFormatError
	assert.True(t, errors.As(err, &sfe))
}

func TestExtractTableRowWiderThanHeader(t *testing.T) {
	tests := []struct {
		name    string
		row     string
		wantErr bool
	}{
		{"extra value", `<tr><td>Aland</td><td>AX</td><td>ALA</td></tr>`, true},
		{"trailing empty cells", `<tr><td>Aland</td><td>AX</td><td></td><td> </td></tr>`, false},
		{"short row", `<tr><td>Aland</td></tr>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `<table class="wikitable"><tr><th>Name</th><th>Alpha-2 code</th></tr>` + tt.row + `</table>`
			tbl, err := scrape.ExtractTable(strings.NewReader(doc), "wikitable")
			if !tt.wantErr {
				require.NoError(t, err)
				require.Equal(t, 1, tbl.Len())
				assert.Len(t, tbl.Rows[0], 2)
				return
			}
			var sfe *core.SourceFormatError
			require.True(t, errors.As(err, &sfe), "got %v", err)
			assert.Equal(t, "Aland", sfe.Key)
			assert.Contains(t, err.Error(), "body row 1 has 3 cells but the header has 2")
		})
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		assert.Contains(t, r.Header.Get("User-Agent"), "housetax")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	body, err := scrape.Fetch(context.Background(), srv.Client(), srv.URL+"/codes")
	require.NoError(t, err)
	assert.Contains(t, string(body), "wikitable")

	_, err = scrape.Fetch(context.Background(), srv.Client(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = scrape.Fetch(ctx, srv.Client(), srv.URL+"/codes")
	assert.ErrorIs(t, err, context.Canceled)
}
