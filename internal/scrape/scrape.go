// Package scrape downloads an HTML page and extracts a table from it.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/leapstack-labs/housetax/internal/table"
	"github.com/leapstack-labs/housetax/pkg/core"
)

const stageScrape = "download"

// DefaultURL is the ISO 3166 country code list.
const DefaultURL = "https://en.wikipedia.org/wiki/List_of_ISO_3166_country_codes"

// Fetch GETs url and returns the body. Non-2xx responses are errors.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "housetax/1.0 (+https://github.com/leapstack-labs/housetax)")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch %s: %s", url, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	return body, nil
}

// ExtractTable finds the first <table> carrying class and converts it to
// a Table. Row and column spans are expanded into a full grid. When the
// header has several rows, the last one names the columns. A body row
// with more non-empty cells than the header is a SourceFormatError.
func ExtractTable(r io.Reader, class string) (*table.Table, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	node := findTable(doc, class)
	if node == nil {
		return nil, core.NewSourceFormatError(stageScrape, "html", "", "", "no table with class %q", class)
	}

	var header, body [][]string
	var spans []pending
	for _, tr := range rows(node) {
		cells, isHeader := expandRow(tr, &spans)
		if len(cells) == 0 {
			continue
		}
		if isHeader && len(body) == 0 {
			header = append(header, cells)
			continue
		}
		body = append(body, cells)
	}
	if len(header) == 0 {
		return nil, core.NewSourceFormatError(stageScrape, "html", "", "", "table has no header row")
	}

	cols := header[len(header)-1]
	t := table.New(class, dedupe(cols)...)
	for i, cells := range body {
		for len(cells) > len(cols) && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		if len(cells) > len(cols) {
			return nil, core.NewSourceFormatError(stageScrape, "html", "", cells[0],
				"body row %d has %d cells but the header has %d", i+1, len(cells), len(cols))
		}
		row := make([]string, len(cols))
		copy(row, cells)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findTable(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Table && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTable(c, class); t != nil {
			return t
		}
	}
	return nil
}

// rows returns the <tr> elements of a table, skipping nested tables.
func rows(tbl *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Tr:
				out = append(out, c)
			case atom.Thead, atom.Tbody, atom.Tfoot:
				walk(c)
			}
		}
	}
	walk(tbl)
	return out
}

// pending is a cell carried down into later rows by rowspan.
type pending struct {
	col  int
	text string
	left int
}

func span(n *html.Node, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(attr(n, key)))
	if err != nil || v < 1 {
		return 1
	}
	return v
}

func expandRow(tr *html.Node, spans *[]pending) ([]string, bool) {
	var cells []string
	isHeader := true
	carried := make(map[int]string)
	var rest []pending
	for _, p := range *spans {
		carried[p.col] = p.text
		if p.left > 1 {
			rest = append(rest, pending{col: p.col, text: p.text, left: p.left - 1})
		}
	}

	col := 0
	fill := func() {
		for {
			s, ok := carried[col]
			if !ok {
				return
			}
			cells = append(cells, s)
			delete(carried, col)
			col++
		}
	}
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
			continue
		}
		if c.DataAtom == atom.Td {
			isHeader = false
		}
		fill()
		s := cellText(c)
		rs, cs := span(c, "rowspan"), span(c, "colspan")
		for k := 0; k < cs; k++ {
			cells = append(cells, s)
			if rs > 1 {
				rest = append(rest, pending{col: col, text: s, left: rs - 1})
			}
			col++
		}
	}
	fill()
	*spans = rest
	return cells, isHeader
}

// cellText returns the whitespace-collapsed text of a cell, without
// hidden sort keys.
func cellText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode {
			if n.DataAtom == atom.Style || n.DataAtom == atom.Script {
				return
			}
			if strings.Contains(strings.ReplaceAll(attr(n, "style"), " ", ""), "display:none") {
				return
			}
			if n.DataAtom == atom.Br {
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// dedupe suffixes repeated header names so every column is addressable.
func dedupe(cols []string) []string {
	out := make([]string, len(cols))
	seen := make(map[string]int)
	for i, c := range cols {
		if c == "" {
			c = "Column " + strconv.Itoa(i+1)
		}
		seen[c]++
		if n := seen[c]; n > 1 {
			c = c + "." + strconv.Itoa(n-1)
		}
		out[i] = c
	}
	return out
}
