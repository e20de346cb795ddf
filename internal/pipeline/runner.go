package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/housetax/internal/chart"
	"github.com/leapstack-labs/housetax/internal/combine"
	"github.com/leapstack-labs/housetax/internal/records"
	"github.com/leapstack-labs/housetax/internal/scrape"
	"github.com/leapstack-labs/housetax/internal/table"
	"github.com/leapstack-labs/housetax/internal/tidy"
	"github.com/leapstack-labs/housetax/pkg/core"
)

// scrapeClass is the table class the country code page uses.
const scrapeClass = "wikitable"

// Options configures every stage.
type Options struct {
	SourceURL  string
	HTTPClient *http.Client
	Schemas    map[string]tidy.Schema
	Combine    combine.Options
	Style      chart.Style
	Palette    chart.Palette
	Highlight  []string
}

// DefaultOptions returns the built-in configuration.
func DefaultOptions() Options {
	return Options{
		SourceURL:  scrape.DefaultURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Combine:    combine.DefaultOptions(),
		Style:      chart.DefaultStyle(),
		Palette:    chart.DefaultPalette(),
		Highlight:  chart.DefaultHighlight(),
	}
}

// Runner executes stages.
type Runner struct {
	opts   Options
	logger *slog.Logger
}

// NewRunner creates a Runner. A nil logger discards output.
func NewRunner(opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{opts: opts, logger: logger}
}

// DownloadResult describes a downloaded table.
type DownloadResult struct {
	URL     string
	Output  string
	Columns int
	Rows    int
}

// Download fetches the country code page and writes its table as raw TSV.
// An empty url uses the configured source.
func (r *Runner) Download(ctx context.Context, url, out string) (*DownloadResult, error) {
	if url == "" {
		url = r.opts.SourceURL
	}
	r.logger.Info("downloading country codes", "url", url)

	body, err := scrape.Fetch(ctx, r.opts.HTTPClient, url)
	if err != nil {
		return nil, err
	}
	t, err := scrape.ExtractTable(bytes.NewReader(body), scrapeClass)
	if err != nil {
		return nil, err
	}
	if err := table.WriteFile(out, t); err != nil {
		return nil, err
	}

	r.logger.Info("country codes written", "path", out, "rows", t.Len())
	return &DownloadResult{URL: url, Output: out, Columns: len(t.Columns), Rows: t.Len()}, nil
}

// TidyResult describes a normalized table.
type TidyResult struct {
	Schema  string
	Input   string
	Output  string
	RowsIn  int
	RowsOut int
}

// Tidy applies the named schema to a raw file.
func (r *Runner) Tidy(schema, in, out string) (*TidyResult, error) {
	s, err := tidy.Resolve(schema, r.opts.Schemas)
	if err != nil {
		return nil, err
	}
	raw, err := table.ReadFile(in, table.ReadOptions{})
	if err != nil {
		return nil, err
	}
	t, err := tidy.Normalize(raw, s, r.logger)
	if err != nil {
		return nil, err
	}
	if err := table.WriteFile(out, t); err != nil {
		return nil, err
	}

	r.logger.Info("table tidied", "schema", schema, "input", in, "output", out, "rows", t.Len())
	return &TidyResult{Schema: schema, Input: in, Output: out, RowsIn: raw.Len(), RowsOut: t.Len()}, nil
}

// CombineResult is the join summary plus where it was written.
type CombineResult struct {
	*combine.Result
	Output string
}

// Combine joins the three tidy files and writes the combined dataset.
func (r *Runner) Combine(codesPath, pricesPath, taxPath, out string) (*CombineResult, error) {
	codesTable, err := table.ReadFile(codesPath, table.ReadOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read country codes: %w", err)
	}
	codes, err := records.CountryCodes(codesTable)
	if err != nil {
		return nil, fmt.Errorf("failed to read country codes: %w", err)
	}

	pricesTable, err := table.ReadFile(pricesPath, table.ReadOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read house prices: %w", err)
	}
	prices, err := records.HousePrices(pricesTable)
	if err != nil {
		return nil, fmt.Errorf("failed to read house prices: %w", err)
	}

	taxTable, err := table.ReadFile(taxPath, table.ReadOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read property tax: %w", err)
	}
	taxes, err := records.PropertyTax(taxTable)
	if err != nil {
		return nil, fmt.Errorf("failed to read property tax: %w", err)
	}

	opts := r.opts.Combine
	opts.Logger = r.logger
	res, err := combine.Combine(codes, prices, taxes, opts)
	if err != nil {
		return nil, err
	}
	if err := table.WriteFile(out, records.CombinedTable("combined", res.Records)); err != nil {
		return nil, err
	}
	return &CombineResult{Result: res, Output: out}, nil
}

func (r *Runner) renderer() (*chart.Renderer, error) {
	colors, err := chart.NewColorizer(r.opts.Palette, r.opts.Highlight, r.opts.Combine.AggregateCode)
	if err != nil {
		return nil, err
	}
	return chart.NewRenderer(r.opts.Style, colors, r.logger)
}

func readCombined(path string) ([]core.CombinedRecord, error) {
	t, err := table.ReadFile(path, table.ReadOptions{})
	if err != nil {
		return nil, err
	}
	return records.Combined(t)
}

// PlotBar draws the paired bar figure for one indicator. The format
// follows the output extension.
func (r *Runner) PlotBar(in, column, label, out string) (*chart.Report, error) {
	if err := chart.ValidateColumn(column); err != nil {
		return nil, err
	}
	recs, err := readCombined(in)
	if err != nil {
		return nil, err
	}
	rnd, err := r.renderer()
	if err != nil {
		return nil, err
	}
	return writeFigure(out, func(f *os.File) (*chart.Report, error) {
		return rnd.Bar(f, chart.FormatFor(out), recs, column, label)
	})
}

// PlotScatter draws the paired scatter figure of y against x.
func (r *Runner) PlotScatter(in string, x, y chart.Axis, out string) (*chart.Report, error) {
	for _, c := range []string{x.Column, y.Column} {
		if err := chart.ValidateColumn(c); err != nil {
			return nil, err
		}
	}
	recs, err := readCombined(in)
	if err != nil {
		return nil, err
	}
	rnd, err := r.renderer()
	if err != nil {
		return nil, err
	}
	return writeFigure(out, func(f *os.File) (*chart.Report, error) {
		return rnd.Scatter(f, chart.FormatFor(out), recs, x, y)
	})
}

// writeFigure renders into a temporary file next to out and renames it
// into place, so a failed render never leaves a truncated figure behind.
func writeFigure(out string, draw func(*os.File) (*chart.Report, error)) (*chart.Report, error) {
	dir := filepath.Dir(out)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(out)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", out, err)
	}
	tmp := f.Name()

	rep, err := draw(f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("failed to write %s: %w", out, err)
	}
	return rep, nil
}
