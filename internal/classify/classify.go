// Package classify maps module identifiers to an import category using a
// static preset. Anything the preset does not name is Custom.
package classify

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/efebarandurmaz/importgraph/internal/ir"
)

// Preset is the pair of fixed identifier lists an Index is built from.
type Preset struct {
	Common   []string `mapstructure:"common_set" json:"common_set" yaml:"common_set"`
	Uncommon []string `mapstructure:"uncommon_set" json:"uncommon_set" yaml:"uncommon_set"`
}

// DefaultPreset returns the built-in lists of well-known Python modules.
func DefaultPreset() Preset {
	return Preset{
		Common: []string{
			"os", "pathlib", "numpy", "scipy", "matplotlib", "mpl_toolkits",
			"pandas", "sympy", "networkx", "itertools", "datetime", "pygame",
		},
		Uncommon: []string{
			"numpy_indexed", "moviepy", "skimage", "cv2", "ast", "re",
		},
	}
}

// Check reports the first problem that makes p unusable: an empty or
// dotted identifier, a duplicate inside one list, or an identifier listed
// in both.
func (p Preset) Check() error {
	common := make(map[string]bool, len(p.Common))
	if err := checkList("preset.common_set", p.Common, common); err != nil {
		return err
	}
	uncommon := make(map[string]bool, len(p.Uncommon))
	if err := checkList("preset.uncommon_set", p.Uncommon, uncommon); err != nil {
		return err
	}
	for _, id := range p.Uncommon {
		if common[id] {
			return &ir.ConfigurationError{
				Field:  "preset",
				Value:  id,
				Reason: "identifier is listed in both common_set and uncommon_set",
			}
		}
	}
	return nil
}

func checkList(field string, ids []string, seen map[string]bool) error {
	for i, id := range ids {
		if reason := invalidIdentifier(id); reason != "" {
			return &ir.ConfigurationError{Field: fmt.Sprintf("%s[%d]", field, i), Value: id, Reason: reason}
		}
		if seen[id] {
			return &ir.ConfigurationError{Field: fmt.Sprintf("%s[%d]", field, i), Value: id, Reason: "duplicate identifier"}
		}
		seen[id] = true
	}
	return nil
}

func invalidIdentifier(id string) string {
	switch {
	case id == "":
		return "empty identifier"
	case strings.ContainsAny(id, ".:/"):
		return "identifier must be a top-level module name"
	case strings.IndexFunc(id, unicode.IsSpace) >= 0:
		return "identifier contains whitespace"
	}
	return ""
}

// Index is an immutable identifier -> category lookup.
type Index struct {
	common   map[string]struct{}
	uncommon map[string]struct{}
}

// New builds an index from p. The common list is consulted first, so an
// identifier present in both lists is Common.
func New(p Preset) *Index {
	idx := &Index{
		common:   make(map[string]struct{}, len(p.Common)),
		uncommon: make(map[string]struct{}, len(p.Uncommon)),
	}
	for _, id := range p.Common {
		idx.common[id] = struct{}{}
	}
	for _, id := range p.Uncommon {
		idx.uncommon[id] = struct{}{}
	}
	return idx
}

// Classify returns the category of id. It is total: unknown identifiers are
// Custom.
func (idx *Index) Classify(id string) ir.Category {
	if _, ok := idx.common[id]; ok {
		return ir.Common
	}
	if _, ok := idx.uncommon[id]; ok {
		return ir.Uncommon
	}
	return ir.Custom
}
