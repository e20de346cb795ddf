package table

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/housetax/pkg/core"
)

const stageLoad = "load"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadOptions controls how a delimited file is parsed.
type ReadOptions struct {
	// Delimiter overrides extension-based detection when non-zero.
	Delimiter rune
}

// DelimiterFor returns the delimiter implied by a file extension:
// comma for .csv, tab for everything else.
func DelimiterFor(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ','
	}
	return '\t'
}

// ReadFile loads a delimited file with a header row.
func ReadFile(path string, opts ReadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	delim := opts.Delimiter
	if delim == 0 {
		delim = DelimiterFor(path)
	}
	t, err := Read(f, filepath.Base(path), delim)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Read parses delimited text with a header row. Ragged rows and
// empty or duplicate header names are SourceFormatErrors.
func Read(r io.Reader, name string, delim rune) (*Table, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, utf8BOM) {
		_, _ = br.Discard(3)
	}
	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, core.NewSourceFormatError(stageLoad, name, "", "", "file is empty")
	}
	if err != nil {
		return nil, core.NewSourceFormatError(stageLoad, name, "", "", "unreadable header").WithCause(err)
	}
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		header[i] = h
		if h == "" {
			return nil, core.NewSourceFormatError(stageLoad, name, "", "", "header column %d is empty", i+1)
		}
		if seen[h] {
			return nil, core.NewSourceFormatError(stageLoad, name, h, "", "duplicate header")
		}
		seen[h] = true
	}

	t := New(name, header...)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.NewSourceFormatError(stageLoad, name, "", "", "unreadable row %d", line).WithCause(err)
		}
		if len(rec) == 1 && rec[0] == "" {
			continue
		}
		if len(rec) != len(header) {
			return nil, core.NewSourceFormatError(stageLoad, name, "", fmt.Sprintf("line %d", line),
				"row has %d fields, header has %d", len(rec), len(header))
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// WriteFile writes the table as tab-separated UTF-8, creating parent
// directories as needed.
func WriteFile(path string, t *Table) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, t, '\t'); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// Write emits the header and rows with the given delimiter.
func Write(w io.Writer, t *Table, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}
