package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Key     lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles builds styles bound to w. Colour is enabled only on a
// terminal, using the profile the environment advertises.
func NewStyles(w io.Writer, isTTY bool) *Styles {
	re := lipgloss.NewRenderer(w)
	if isTTY {
		re.SetColorProfile(termenv.EnvColorProfile())
	} else {
		re.SetColorProfile(termenv.Ascii)
	}

	return &Styles{
		Header1: re.NewStyle().Bold(true).Foreground(lipgloss.Color("#1C4EAA")).Underline(true),
		Header2: re.NewStyle().Bold(true).Foreground(lipgloss.Color("#7EA8BE")),
		Bold:    re.NewStyle().Bold(true),
		Key:     re.NewStyle().Bold(true),
		Muted:   re.NewStyle().Foreground(lipgloss.Color("#808080")),
		Success: re.NewStyle().Foreground(lipgloss.Color("#2E8B57")),
		Warning: re.NewStyle().Foreground(lipgloss.Color("#E89611")),
		Error:   re.NewStyle().Bold(true).Foreground(lipgloss.Color("#C0392B")),
	}
}
