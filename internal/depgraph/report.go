package depgraph

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/efebarandurmaz/importgraph/internal/ir"
)

// ReportFileName is the name WriteReport writes into its directory.
const ReportFileName = "module_hierarchy.txt"

// FormatReport renders the top-level modules, every registered import and
// the custom module hierarchy as plain text.
func FormatReport(g *Graph) string {
	var labels []string

	labels = append(labels, titled(" ** IMPORT HIERARCHY INFORMATION **", "="))

	labels = append(labels, titled(" ** List of Modules at Top-Level **", "-"))
	for _, n := range g.topLevel {
		labels = append(labels, fmt.Sprintf(" .. %s\n", n))
	}

	labels = append(labels, titled(" ** List of Imported Modules **", "-"))
	for _, c := range ir.Categories {
		kind := "(Standard Library or Third-Party Module/Package)"
		if c == ir.Custom {
			kind = "(Custom Module/Package)"
		}
		for _, name := range g.registry.Names(c) {
			label := fmt.Sprintf("\n .. %s %s", name, kind)
			if g.IsTopLevel(name) {
				label = strings.ReplaceAll(label, "(", "(Top-Level; ")
			}
			labels = append(labels, label)
		}
	}

	labels = append(labels, titled(" ** Hierarchy of Imported Modules **", "-"))
	for _, e := range g.hierarchy {
		var b strings.Builder
		fmt.Fprintf(&b, "\n %s:\n", e.Module)
		for _, s := range e.Successors {
			fmt.Fprintf(&b, " .. %s\n", s)
		}
		labels = append(labels, b.String())
	}

	return strings.Join(labels, "\n")
}

// titled underlines title with symbol, one extra symbol per side.
func titled(title, symbol string) string {
	return fmt.Sprintf("\n%s\n%s\n", title, strings.Repeat(symbol, len(title)+2))
}

// WriteReport writes FormatReport(g) to dir/module_hierarchy.txt and
// returns the path written.
func WriteReport(g *Graph, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &ir.IOError{Path: dir, Op: "mkdir", Err: err}
	}
	path := filepath.Join(dir, ReportFileName)
	if err := os.WriteFile(path, []byte(FormatReport(g)), 0o644); err != nil {
		return "", &ir.IOError{Path: path, Op: "write", Err: err}
	}
	return path, nil
}
