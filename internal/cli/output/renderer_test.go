package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTest(mode Mode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"TEXT", ModeText, false},
		{"markdown", ModeMarkdown, false},
		{"json", ModeJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		isTTY bool
		want  Mode
	}{
		{"auto on tty", ModeAuto, true, ModeText},
		{"auto piped", ModeAuto, false, ModeMarkdown},
		{"empty piped", "", false, ModeMarkdown},
		{"explicit text piped", ModeText, false, ModeText},
		{"json on tty", ModeJSON, true, ModeJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTest(tt.mode, tt.isTTY)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestNewRenderer_BufferIsNotTTY(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())
}

func TestRenderer_Markdown(t *testing.T) {
	r, out, errOut := newTest(ModeMarkdown, false)

	r.Header(1, "Combined")
	r.Header(2, "Summary")
	r.KeyValue("Rows", "8")
	r.Success("done")
	r.Warning("2 countries dropped")

	assert.Equal(t, "# Combined\n## Summary\n- **Rows:** 8\ndone\n", out.String())
	assert.Equal(t, "Warning: 2 countries dropped\n", errOut.String())
}

func TestRenderer_TextWithoutColour(t *testing.T) {
	r, out, errOut := newTest(ModeText, false)

	r.Header(1, "Combined")
	r.Success("done")
	r.Error("boom")

	assert.Contains(t, out.String(), "Combined")
	assert.Contains(t, out.String(), "✓ done")
	assert.NotContains(t, out.String(), "\x1b[")
	assert.Contains(t, errOut.String(), "✗ boom")
}

func TestRenderer_JSONKeepsStdoutParseable(t *testing.T) {
	r, out, errOut := newTest(ModeJSON, false)

	r.Header(1, "ignored")
	r.Success("written")
	require.NoError(t, r.JSON(map[string]int{"rows": 3}))

	var got map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 3, got["rows"])
	assert.Equal(t, "written\n", errOut.String())
}

func TestRenderer_Table(t *testing.T) {
	headers := []string{"Stage", "Rows"}
	rows := [][]string{{"combine", "8"}, {"plot", "4"}}

	t.Run("text", func(t *testing.T) {
		r, out, _ := newTest(ModeText, false)
		require.NoError(t, r.Table(headers, rows))
		assert.Contains(t, out.String(), "combine")
		assert.Contains(t, out.String(), "┌")
	})

	t.Run("markdown", func(t *testing.T) {
		r, out, _ := newTest(ModeMarkdown, false)
		require.NoError(t, r.Table(headers, rows))
		assert.Contains(t, out.String(), "| combine")
		assert.Contains(t, out.String(), "---")
	})

	t.Run("json", func(t *testing.T) {
		r, out, _ := newTest(ModeJSON, false)
		require.NoError(t, r.Table(headers, rows))
		var got []map[string]string
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "8", got[0]["Rows"])
	})
}

func TestFormatHeader(t *testing.T) {
	assert.Equal(t, "# A", FormatHeader(0, "A"))
	assert.Equal(t, "### A", FormatHeader(3, "A"))
}
