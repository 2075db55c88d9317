package python

import (
	"bytes"
	"context"
	"fmt"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	tspython "github.com/smacker/go-tree-sitter/python"

	"github.com/efebarandurmaz/importgraph/internal/ir"
	"github.com/efebarandurmaz/importgraph/internal/plugins"
)

// Plugin implements SourcePlugin for Python.
type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Language() string { return "python" }

func (p *Plugin) FileExtensions() []string { return []string{".py"} }

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// legacyStatements are Python 2 constructs the grammar still accepts.
var legacyStatements = map[string]string{
	"print_statement": "Python 2 print statement",
	"exec_statement":  "Python 2 exec statement",
}

// ScanImports parses f and reduces every import statement, at any nesting
// depth, to the outermost segment of the module it names. Relative imports
// are dropped. A file that does not parse as Python 3 is an *ir.ScanError.
func (p *Plugin) ScanImports(ctx context.Context, f plugins.SourceFile) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src := bytes.TrimPrefix(f.Content, utf8BOM)
	if !utf8.Valid(src) {
		return nil, &ir.ScanError{Path: f.Path, Line: invalidUTF8Line(src), Reason: "source is not valid UTF-8"}
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(tspython.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return nil, &ir.ScanError{Path: f.Path, Reason: err.Error()}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		n := firstError(root)
		return nil, &ir.ScanError{Path: f.Path, Line: clampLine(n, src), Reason: errorReason(n, src)}
	}

	var (
		out     []string
		seen    = make(map[string]bool)
		scanErr error
	)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	walk(root, func(n *sitter.Node) bool {
		if scanErr != nil {
			return false
		}
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				if id := topSegment(n.NamedChild(i), src); id != "" {
					add(id)
				}
			}
			return false
		case "import_from_statement":
			// from . import x and from .pkg import y name no absolute module.
			if mod := n.ChildByFieldName("module_name"); mod != nil && mod.Type() == "dotted_name" {
				add(topSegment(mod, src))
			}
			return false
		case "future_import_statement":
			add("__future__")
			return false
		}
		if reason, ok := legacyStatements[n.Type()]; ok {
			scanErr = &ir.ScanError{Path: f.Path, Line: line(n), Reason: reason}
			return false
		}
		return true
	})
	if scanErr != nil {
		return nil, scanErr
	}
	return out, nil
}

// walk visits n and its descendants in source order. fn returns false to
// skip the children of a node.
func walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if !fn(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil {
			walk(c, fn)
		}
	}
}

// topSegment returns "a" for the dotted name a.b.c, also when it is the
// target of an alias.
func topSegment(n *sitter.Node, src []byte) string {
	if n.Type() == "aliased_import" {
		n = n.ChildByFieldName("name")
		if n == nil {
			return ""
		}
	}
	if n.Type() != "dotted_name" || n.NamedChildCount() == 0 {
		return ""
	}
	return n.NamedChild(0).Content(src)
}

// firstError returns the first ERROR or MISSING node in source order.
func firstError(root *sitter.Node) *sitter.Node {
	var found *sitter.Node
	walk(root, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.IsError() || n.IsMissing() {
			found = n
			return false
		}
		return n.HasError()
	})
	if found == nil {
		return root
	}
	return found
}

func errorReason(n *sitter.Node, src []byte) string {
	if n.IsMissing() {
		return fmt.Sprintf("invalid syntax: missing %q", n.Type())
	}
	text := n.Content(src)
	if i := bytes.IndexAny([]byte(text), "\r\n"); i >= 0 {
		text = text[:i]
	}
	if len(text) > 40 {
		text = text[:40] + "..."
	}
	if text == "" {
		return "invalid syntax"
	}
	return fmt.Sprintf("invalid syntax near %q", text)
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// clampLine keeps errors reported at end of input on the last line of src.
func clampLine(n *sitter.Node, src []byte) int {
	l := line(n)
	last := bytes.Count(bytes.TrimRight(src, "\r\n"), []byte("\n")) + 1
	if l > last {
		return last
	}
	return l
}

func invalidUTF8Line(src []byte) int {
	lineNo := 1
	for len(src) > 0 {
		r, size := utf8.DecodeRune(src)
		if r == utf8.RuneError && size <= 1 {
			return lineNo
		}
		if r == '\n' {
			lineNo++
		}
		src = src[size:]
	}
	return lineNo
}
