package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type keyMap struct {
	Up    key.Binding
	Down  key.Binding
	Enter key.Binding
	Back  key.Binding
	Top   key.Binding
	Quit  key.Binding
}

func (km keyMap) ShortHelp() []key.Binding {
	return []key.Binding{km.Up, km.Down, km.Enter, km.Back, km.Top, km.Quit}
}

func (km keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{km.Up, km.Down},
		{km.Enter, km.Back, km.Top},
		{km.Quit},
	}
}

func newKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "prev module"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next module"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter", "l", "right"),
			key.WithHelp("enter", "open imports"),
		),
		Back: key.NewBinding(
			key.WithKeys("backspace", "h", "left"),
			key.WithHelp("backspace", "back"),
		),
		Top: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "top level"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ExplorerModel walks an import graph from its top-level modules down
// through their imports.
type ExplorerModel struct {
	session  *Session
	title    string
	styles   *Styles
	width    int
	height   int
	quitting bool
	help     help.Model
	keys     keyMap
}

func NewExplorerModel(session *Session, title string) ExplorerModel {
	return ExplorerModel{
		session: session,
		title:   title,
		styles:  DefaultStyles(),
		width:   80,
		height:  24,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

func (m ExplorerModel) Init() tea.Cmd {
	return nil
}

func (m ExplorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			m.session.Move(-1)
		case key.Matches(msg, m.keys.Down):
			m.session.Move(1)
		case key.Matches(msg, m.keys.Enter):
			m.session.Descend()
		case key.Matches(msg, m.keys.Back):
			m.session.Ascend()
		case key.Matches(msg, m.keys.Top):
			m.session.Stack = m.session.Stack[:1]
		}
	}

	return m, nil
}

func (m ExplorerModel) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		m.styles.Title.Render(m.title),
		m.renderBreadcrumb(),
	}
	if len(m.session.Current().Items) == 0 {
		sections = append(sections, m.styles.Warning.Render("No modules to show"))
	} else {
		list := m.renderList()
		details := m.renderDetails()
		sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, list, " ", details))
	}
	sections = append(sections, m.styles.Help.Render(m.help.View(m.keys)))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m ExplorerModel) renderBreadcrumb() string {
	parts := append([]string{"top level"}, m.session.Path()...)
	return m.styles.Subtitle.Render(strings.Join(parts, " › "))
}

func (m ExplorerModel) renderList() string {
	f := m.session.Current()
	g := m.session.Graph

	maxRows := m.height - 10
	if maxRows < 3 {
		maxRows = 3
	}
	start := 0
	if f.Cursor >= maxRows {
		start = f.Cursor - maxRows + 1
	}

	var lines []string
	for i := start; i < len(f.Items) && i < start+maxRows; i++ {
		name := f.Items[i]
		marker := "  "
		style := m.styles.Subtitle
		if i == f.Cursor {
			marker = "▸ "
			style = m.styles.Selected
		}
		line := marker + style.Render(name)
		if n := g.OutDegree(name); n > 0 {
			line += m.styles.Muted.Render(fmt.Sprintf(" (%d)", n))
		}
		lines = append(lines, line)
	}

	width := m.width/2 - 4
	if width < 20 {
		width = 20
	}
	return m.styles.ActiveBorder.Width(width).Render(strings.Join(lines, "\n"))
}

func (m ExplorerModel) renderDetails() string {
	name, ok := m.session.Selected()
	if !ok {
		return ""
	}
	g := m.session.Graph
	cat, _ := g.CategoryOf(name)
	top := g.IsTopLevel(name)

	label := string(cat)
	if top {
		label = "top-level " + label
	}
	rows := []string{
		m.styles.CategoryBadge(cat, top).Render(name),
		"",
		m.styles.Label.Render("Category") + m.styles.Value.Render(label),
		m.styles.Label.Render("Imports") + m.styles.Value.Render(fmt.Sprint(g.OutDegree(name))),
		m.styles.Label.Render("Imported by") + m.styles.Value.Render(fmt.Sprint(g.InDegree(name))),
	}
	if importers := m.session.Importers(name); len(importers) > 0 {
		rows = append(rows, "", m.styles.Muted.Render("Imported by: "+strings.Join(importers, ", ")))
	}

	width := m.width/2 - 4
	if width < 20 {
		width = 20
	}
	return m.styles.Border.Width(width).Render(strings.Join(rows, "\n"))
}
