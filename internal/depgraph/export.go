package depgraph

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/efebarandurmaz/importgraph/internal/ir"
)

// Palette holds the colours used to render nodes and edges. A top-level
// node takes the top-level colour regardless of its category.
type Palette struct {
	TopLevel string `json:"top_level" mapstructure:"top_level"`
	Common   string `json:"common" mapstructure:"common"`
	Uncommon string `json:"uncommon" mapstructure:"uncommon"`
	Custom   string `json:"custom" mapstructure:"custom"`
	Edge     string `json:"edge" mapstructure:"edge"`
}

func DefaultPalette() Palette {
	return Palette{
		TopLevel: "orange",
		Common:   "skyblue",
		Uncommon: "gold",
		Custom:   "limegreen",
		Edge:     "silver",
	}
}

// NodeColor returns the fill colour for node n.
func (p Palette) NodeColor(g *Graph, n string) string {
	if g.IsTopLevel(n) {
		return p.TopLevel
	}
	c, _ := g.CategoryOf(n)
	return p.categoryColor(c)
}

func (p Palette) categoryColor(c ir.Category) string {
	switch c {
	case ir.Common:
		return p.Common
	case ir.Uncommon:
		return p.Uncommon
	default:
		return p.Custom
	}
}

// LegendEntry pairs a colour with the label shown for it.
type LegendEntry struct {
	Color string `json:"color"`
	Label string `json:"label"`
}

// Legend lists the top-level entry and one entry per included category.
func (p Palette) Legend(include Include) []LegendEntry {
	out := []LegendEntry{{Color: p.TopLevel, Label: "Modules and Packages at Top-Level"}}
	if include.Common {
		out = append(out, LegendEntry{Color: p.Common, Label: "Common Modules and Packages"})
	}
	if include.Uncommon {
		out = append(out, LegendEntry{Color: p.Uncommon, Label: "Uncommon Modules and Packages"})
	}
	if include.Custom {
		out = append(out, LegendEntry{Color: p.Custom, Label: "Custom Modules and Packages"})
	}
	return out
}

// ExportDOT generates a Graphviz DOT representation of the graph.
func ExportDOT(g *Graph, p Palette) string {
	var b strings.Builder
	b.WriteString("digraph imports {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [fontname=\"Helvetica-Bold\" style=filled];\n")
	fmt.Fprintf(&b, "  edge [color=\"%s\"];\n\n", p.Edge)

	for _, n := range g.nodes {
		fmt.Fprintf(&b, "  %s [label=%s fillcolor=\"%s\" shape=%s];\n",
			dotQuote(n), dotQuote(n), p.NodeColor(g, n), nodeShape(g.category[n]))
	}
	if len(g.edges) > 0 {
		b.WriteString("\n")
	}
	for _, e := range g.edges {
		fmt.Fprintf(&b, "  %s -> %s;\n", dotQuote(e.From), dotQuote(e.To))
	}

	b.WriteString("\n  subgraph cluster_legend {\n")
	b.WriteString("    label=\"Legend\";\n")
	b.WriteString("    style=dashed;\n")
	for i, l := range p.Legend(g.include) {
		fmt.Fprintf(&b, "    legend_%d [label=%s fillcolor=\"%s\" shape=box];\n", i, dotQuote(l.Label), l.Color)
	}
	b.WriteString("  }\n")

	b.WriteString("}\n")
	return b.String()
}

// ExportMermaid generates a Mermaid flowchart of the graph.
func ExportMermaid(g *Graph, p Palette) string {
	var b strings.Builder
	b.WriteString("graph LR\n")
	fmt.Fprintf(&b, "  classDef toplevel fill:%s\n", p.TopLevel)
	fmt.Fprintf(&b, "  classDef common fill:%s\n", p.Common)
	fmt.Fprintf(&b, "  classDef uncommon fill:%s\n", p.Uncommon)
	fmt.Fprintf(&b, "  classDef custom fill:%s\n", p.Custom)

	for _, n := range g.nodes {
		class := string(g.category[n])
		if g.IsTopLevel(n) {
			class = "toplevel"
		}
		fmt.Fprintf(&b, "  %s%s:::%s\n", sanitizeMermaidID(n), mermaidNodeShape(n, g.category[n]), class)
	}
	for _, e := range g.edges {
		fmt.Fprintf(&b, "  %s --> %s\n", sanitizeMermaidID(e.From), sanitizeMermaidID(e.To))
	}
	fmt.Fprintf(&b, "  linkStyle default stroke:%s\n", p.Edge)
	return b.String()
}

type graphDocument struct {
	Include   Include          `json:"include"`
	Nodes     []Node           `json:"nodes"`
	Edges     []Edge           `json:"edges"`
	TopLevel  []string         `json:"top_level"`
	Hierarchy []HierarchyEntry `json:"hierarchy"`
	Stats     GraphStats       `json:"stats"`
}

// ExportJSON serializes the graph and its derived structures to JSON.
func ExportJSON(g *Graph) ([]byte, error) {
	doc := graphDocument{
		Include:   g.include,
		Nodes:     g.NodeList(),
		Edges:     g.Edges(),
		TopLevel:  g.TopLevel(),
		Hierarchy: g.Hierarchy(),
		Stats:     g.stats,
	}
	if doc.Edges == nil {
		doc.Edges = []Edge{}
	}
	if doc.TopLevel == nil {
		doc.TopLevel = []string{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// FormatStats returns a human-readable summary of graph statistics.
func FormatStats(g *Graph) string {
	s := g.stats
	var b strings.Builder
	b.WriteString("Import Graph Statistics\n")
	b.WriteString("=======================\n\n")
	b.WriteString(fmt.Sprintf("Nodes:         %d total\n", s.TotalNodes))
	b.WriteString(fmt.Sprintf("  Common:      %d\n", s.CategoryCounts[ir.Common]))
	b.WriteString(fmt.Sprintf("  Uncommon:    %d\n", s.CategoryCounts[ir.Uncommon]))
	b.WriteString(fmt.Sprintf("  Custom:      %d\n", s.CategoryCounts[ir.Custom]))
	b.WriteString(fmt.Sprintf("  Top-Level:   %d\n", s.TopLevelCount))
	b.WriteString(fmt.Sprintf("Edges:         %d total\n", s.TotalEdges))
	b.WriteString(fmt.Sprintf("Max Fan-Out:   %d (%s)\n", s.MaxFanOut, s.HotspotNode))
	b.WriteString(fmt.Sprintf("Max Fan-In:    %d (%s)\n", s.MaxFanIn, s.MostImported))
	b.WriteString(fmt.Sprintf("Components:    %d\n", s.ConnectedComponents))
	b.WriteString(fmt.Sprintf("Longest Chain: %d\n", s.LongestChain))
	return b.String()
}

func dotQuote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s) + `"`
}

func sanitizeMermaidID(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, s)
}

func nodeShape(c ir.Category) string {
	switch c {
	case ir.Common:
		return "ellipse"
	case ir.Uncommon:
		return "diamond"
	default:
		return "box"
	}
}

func mermaidNodeShape(name string, c ir.Category) string {
	switch c {
	case ir.Common:
		return fmt.Sprintf("([\"%s\"])", name)
	case ir.Uncommon:
		return fmt.Sprintf("{\"%s\"}", name)
	default:
		return fmt.Sprintf("[\"%s\"]", name)
	}
}
