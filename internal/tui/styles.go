package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/efebarandurmaz/importgraph/internal/depgraph"
	"github.com/efebarandurmaz/importgraph/internal/ir"
)

// Color constants matching the dark terminal theme
const (
	ColorBg     = "#0d1117"
	ColorCard   = "#161b22"
	ColorBorder = "#30363d"
	ColorBlue   = "#58a6ff"
	ColorGreen  = "#3fb950"
	ColorRed    = "#f85149"
	ColorYellow = "#d29922"
	ColorGray   = "#8b949e"
	ColorText   = "#c9d1d9"
	ColorBright = "#f0f6fc"
)

// namedColors resolves the X11 names used by depgraph palettes.
var namedColors = map[string]string{
	"orange":    "#ffa500",
	"skyblue":   "#87ceeb",
	"gold":      "#ffd700",
	"limegreen": "#32cd32",
	"silver":    "#c0c0c0",
	"red":       "#ff0000",
	"green":     "#008000",
	"blue":      "#0000ff",
	"yellow":    "#ffff00",
	"gray":      "#808080",
	"grey":      "#808080",
	"white":     "#ffffff",
	"black":     "#000000",
}

// Styles holds all lipgloss styles for the terminal views
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Help     lipgloss.Style

	Label   lipgloss.Style
	Value   lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	Selected lipgloss.Style
	Muted    lipgloss.Style

	Border       lipgloss.Style
	ActiveBorder lipgloss.Style

	Palette depgraph.Palette
}

// DefaultStyles creates the default style set
func DefaultStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(ColorBright)).
			MarginBottom(1),

		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorText)),

		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGray)).
			Italic(true),

		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGray)).
			Width(14),

		Value: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorBright)).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorYellow)),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorRed)).
			Bold(true),

		Selected: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorBlue)).
			Bold(true),

		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGray)),

		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorBorder)).
			Padding(1, 2),

		ActiveBorder: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorBlue)).
			Padding(1, 2),

		Palette: depgraph.DefaultPalette(),
	}
}

// ResolveColor turns a palette color (hex or X11 name) into a lipgloss
// color. Unknown names fall back to gray.
func ResolveColor(name string) lipgloss.Color {
	if strings.HasPrefix(name, "#") {
		return lipgloss.Color(name)
	}
	if hex, ok := namedColors[strings.ToLower(name)]; ok {
		return lipgloss.Color(hex)
	}
	return lipgloss.Color(ColorGray)
}

// CategoryBadge returns the badge style for a node. The top-level color wins
// over the category color, as in the graph exports.
func (s *Styles) CategoryBadge(c ir.Category, topLevel bool) lipgloss.Style {
	color := s.Palette.Custom
	switch {
	case topLevel:
		color = s.Palette.TopLevel
	case c == ir.Common:
		color = s.Palette.Common
	case c == ir.Uncommon:
		color = s.Palette.Uncommon
	}
	return lipgloss.NewStyle().
		Background(ResolveColor(color)).
		Foreground(lipgloss.Color(ColorBg)).
		Padding(0, 1).
		Bold(true)
}
