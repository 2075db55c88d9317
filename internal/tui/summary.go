package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/efebarandurmaz/importgraph/internal/metrics"
)

// RenderSummary renders the run metrics as a styled card for the terminal.
func RenderSummary(m *metrics.RunMetrics, styles *Styles) string {
	if styles == nil {
		styles = DefaultStyles()
	}
	row := func(label string, value any) string {
		return styles.Label.Render(label) + styles.Value.Render(fmt.Sprint(value))
	}

	scan := []string{
		styles.Subtitle.Render("Scan (" + m.Scan.Language + ")"),
		row("Files", m.Scan.FileCount),
		row("Records", m.Scan.RecordCount),
		row("Common", m.Scan.CommonCount),
		row("Uncommon", m.Scan.UncommonCount),
		row("Custom", m.Scan.CustomCount),
	}
	if m.Scan.FailureCount > 0 {
		scan = append(scan, styles.Warning.Render(fmt.Sprintf("%d file(s) skipped", m.Scan.FailureCount)))
	}

	graph := []string{
		styles.Subtitle.Render("Graph"),
		row("Nodes", m.Graph.NodeCount),
		row("Edges", m.Graph.EdgeCount),
		row("Top-Level", m.Graph.TopLevel),
		row("Components", m.Graph.Components),
		row("Depth", m.Graph.LongestChain),
	}

	columns := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().MarginRight(4).Render(strings.Join(scan, "\n")),
		strings.Join(graph, "\n"),
	)

	sections := []string{
		styles.Title.Render("Import Graph"),
		styles.Muted.Render(m.Scan.Root),
		"",
		columns,
	}

	if len(m.Phases) > 0 {
		var phases []string
		for _, p := range m.Phases {
			phases = append(phases, fmt.Sprintf("%s %s", p.Name, p.Duration.Round(time.Millisecond)))
		}
		sections = append(sections, "", styles.Muted.Render(strings.Join(phases, " · ")))
	}
	for _, o := range m.Outputs {
		sections = append(sections, styles.Subtitle.Render("→ "+o.Path))
	}
	for _, e := range m.Errors {
		sections = append(sections, styles.Warning.Render("! "+e))
	}

	return styles.Border.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}
