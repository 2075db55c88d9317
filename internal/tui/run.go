package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/efebarandurmaz/importgraph/internal/depgraph"
)

// RunExplorer starts the interactive graph explorer and blocks until the
// user quits.
func RunExplorer(g *depgraph.Graph, title string) error {
	p := tea.NewProgram(NewExplorerModel(NewSession(g), title), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
