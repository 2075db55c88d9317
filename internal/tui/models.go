package tui

import (
	"github.com/efebarandurmaz/importgraph/internal/depgraph"
)

// Frame is one level of the explorer: the module whose imports are listed
// and the cursor into that list. The root frame lists the top-level modules.
type Frame struct {
	Module string
	Items  []string
	Cursor int
}

// Session is the navigation state of an explorer over one graph. The graph
// is acyclic, so the stack depth is bounded by the longest import chain.
type Session struct {
	Graph *depgraph.Graph
	Stack []Frame
}

// NewSession starts at the top-level modules of g.
func NewSession(g *depgraph.Graph) *Session {
	return &Session{
		Graph: g,
		Stack: []Frame{{Items: g.TopLevel()}},
	}
}

// Current returns the innermost frame.
func (s *Session) Current() *Frame {
	return &s.Stack[len(s.Stack)-1]
}

// Selected returns the module under the cursor.
func (s *Session) Selected() (string, bool) {
	f := s.Current()
	if f.Cursor < 0 || f.Cursor >= len(f.Items) {
		return "", false
	}
	return f.Items[f.Cursor], true
}

// Move shifts the cursor by delta, clamped to the list.
func (s *Session) Move(delta int) {
	f := s.Current()
	f.Cursor += delta
	if f.Cursor >= len(f.Items) {
		f.Cursor = len(f.Items) - 1
	}
	if f.Cursor < 0 {
		f.Cursor = 0
	}
}

// Descend opens the imports of the selected module. It reports false when
// the module imports nothing.
func (s *Session) Descend() bool {
	m, ok := s.Selected()
	if !ok {
		return false
	}
	succ := s.Graph.Successors(m)
	if len(succ) == 0 {
		return false
	}
	s.Stack = append(s.Stack, Frame{Module: m, Items: succ})
	return true
}

// Ascend returns to the previous frame. The root frame cannot be left.
func (s *Session) Ascend() bool {
	if len(s.Stack) == 1 {
		return false
	}
	s.Stack = s.Stack[:len(s.Stack)-1]
	return true
}

// Path returns the modules expanded so far, outermost first.
func (s *Session) Path() []string {
	var out []string
	for _, f := range s.Stack[1:] {
		out = append(out, f.Module)
	}
	return out
}

// Importers returns the modules that import m, in node order.
func (s *Session) Importers(m string) []string {
	var out []string
	for _, n := range s.Graph.Nodes() {
		if s.Graph.HasEdge(n, m) {
			out = append(out, n)
		}
	}
	return out
}
