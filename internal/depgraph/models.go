package depgraph

import (
	"strings"

	"github.com/efebarandurmaz/importgraph/internal/ir"
)

// Include selects which import categories take part in a graph.
type Include struct {
	Common   bool `json:"common" mapstructure:"common"`
	Uncommon bool `json:"uncommon" mapstructure:"uncommon"`
	Custom   bool `json:"custom" mapstructure:"custom"`
}

// IncludeAll admits every category.
func IncludeAll() Include { return Include{Common: true, Uncommon: true, Custom: true} }

// ParseInclude builds an Include from category names such as
// "common,custom". An empty list is rejected.
func ParseInclude(names []string) (Include, error) {
	var inc Include
	for _, name := range names {
		switch ir.Category(strings.ToLower(strings.TrimSpace(name))) {
		case ir.Common:
			inc.Common = true
		case ir.Uncommon:
			inc.Uncommon = true
		case ir.Custom:
			inc.Custom = true
		default:
			return Include{}, &ir.ConfigurationError{Field: "graph.include", Value: name, Reason: "unknown category"}
		}
	}
	if !inc.Any() {
		return Include{}, &ir.ConfigurationError{
			Field:  "graph.include",
			Reason: "at least one of common, uncommon or custom must be included",
		}
	}
	return inc, nil
}

// Any reports whether at least one category is included.
func (i Include) Any() bool { return i.Common || i.Uncommon || i.Custom }

// Allows reports whether nodes of category c are included.
func (i Include) Allows(c ir.Category) bool {
	switch c {
	case ir.Common:
		return i.Common
	case ir.Uncommon:
		return i.Uncommon
	case ir.Custom:
		return i.Custom
	}
	return false
}

// Node is the exported view of a graph node.
type Node struct {
	ID       string      `json:"id"`
	Category ir.Category `json:"category"`
	TopLevel bool        `json:"top_level,omitempty"`
}

// Edge u -> v means module u directly imports module v.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// HierarchyEntry lists the direct successors of one custom module.
type HierarchyEntry struct {
	Module     string   `json:"module"`
	Successors []string `json:"successors"`
}

// GraphStats holds computed metrics about the graph
type GraphStats struct {
	TotalNodes          int                 `json:"total_nodes"`
	TotalEdges          int                 `json:"total_edges"`
	CategoryCounts      map[ir.Category]int `json:"category_counts"`
	TopLevelCount       int                 `json:"top_level_count"`
	MaxFanOut           int                 `json:"max_fan_out"`  // most outgoing edges
	MaxFanIn            int                 `json:"max_fan_in"`   // most incoming edges
	HotspotNode         string              `json:"hotspot_node"` // node with most outgoing edges
	MostImported        string              `json:"most_imported"`
	ConnectedComponents int                 `json:"connected_components"`
	LongestChain        int                 `json:"longest_chain"` // edges on the longest import path
}
