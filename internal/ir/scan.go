package ir

import (
	"encoding/json"
	"sort"
)

// Category classifies a module identifier. Every identifier maps to exactly
// one category.
type Category string

const (
	Common   Category = "common"
	Uncommon Category = "uncommon"
	Custom   Category = "custom"
)

// Categories lists the categories in report order.
var Categories = []Category{Common, Uncommon, Custom}

// Valid reports whether c is one of the three known categories.
func (c Category) Valid() bool {
	switch c {
	case Common, Uncommon, Custom:
		return true
	}
	return false
}

// Scan is the frozen result of a single tree walk. It is produced by the
// tree builder and only read afterwards.
type Scan struct {
	Root     string            `json:"root"`
	Language string            `json:"language"`
	Records  []*FileRecord     `json:"records"`
	Registry *Registry         `json:"registry"`
	Canopy   *Canopy           `json:"canopy"`
	Failures []FileFailure     `json:"failures,omitempty"`
	Files    map[string]string `json:"files,omitempty"` // relative path -> sha256
}

// Record returns the file record for key.
func (s *Scan) Record(key string) (*FileRecord, bool) {
	i := sort.Search(len(s.Records), func(i int) bool { return s.Records[i].Key >= key })
	if i < len(s.Records) && s.Records[i].Key == key {
		return s.Records[i], true
	}
	return nil, false
}

// CategoryOf resolves the category of id, first from the registry and then
// from the record category of a walked file that nobody imports.
func (s *Scan) CategoryOf(id string) (Category, bool) {
	if s.Registry != nil {
		if c, ok := s.Registry.CategoryOf(id); ok {
			return c, true
		}
	}
	if rec, ok := s.Record(id); ok && rec.Category.Valid() {
		return rec.Category, true
	}
	return "", false
}

// FileRecord holds the categorized imports of one file key. Empty lists are
// nil and omitted from JSON.
type FileRecord struct {
	Key      string   `json:"key"`
	Category Category `json:"category"`
	Paths    []string `json:"paths"`
	Imports  []string `json:"imports,omitempty"` // all identifiers, first-occurrence order
	Common   []string `json:"common,omitempty"`
	Uncommon []string `json:"uncommon,omitempty"`
	Custom   []string `json:"custom,omitempty"`
}

// List returns the record's identifiers for category c.
func (r *FileRecord) List(c Category) []string {
	switch c {
	case Common:
		return r.Common
	case Uncommon:
		return r.Uncommon
	case Custom:
		return r.Custom
	}
	return nil
}

// Empty reports whether the file has no import statements that survived
// scanning.
func (r *FileRecord) Empty() bool {
	return len(r.Common) == 0 && len(r.Uncommon) == 0 && len(r.Custom) == 0
}

// Registry is the global category -> identifiers mapping observed during a
// scan. Names keep first-seen order.
type Registry struct {
	names map[Category][]string
	index map[string]Category
}

// NewRegistry freezes the given category lists into a registry. The first
// category listed for an identifier wins.
func NewRegistry(names map[Category][]string) *Registry {
	r := &Registry{
		names: make(map[Category][]string, len(Categories)),
		index: make(map[string]Category),
	}
	for _, c := range Categories {
		for _, id := range names[c] {
			if _, dup := r.index[id]; dup {
				continue
			}
			r.index[id] = c
			r.names[c] = append(r.names[c], id)
		}
	}
	return r
}

// Names returns a copy of the identifiers registered under c.
func (r *Registry) Names(c Category) []string {
	src := r.names[c]
	if len(src) == 0 {
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Has reports whether id was observed under category c.
func (r *Registry) Has(c Category, id string) bool {
	got, ok := r.index[id]
	return ok && got == c
}

// CategoryOf returns the category id was registered under.
func (r *Registry) CategoryOf(id string) (Category, bool) {
	c, ok := r.index[id]
	return c, ok
}

// Len returns the number of distinct identifiers.
func (r *Registry) Len() int { return len(r.index) }

func (r *Registry) MarshalJSON() ([]byte, error) {
	out := make(map[Category][]string, len(Categories))
	for _, c := range Categories {
		out[c] = r.names[c]
	}
	return json.Marshal(out)
}

func (r *Registry) UnmarshalJSON(data []byte) error {
	var in map[Category][]string
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = *NewRegistry(in)
	return nil
}

// Canopy maps each file key to its direct dependency identifiers. Keys are
// kept sorted; dependency lists keep source order.
type Canopy struct {
	keys []string
	deps map[string][]string
}

// NewCanopy freezes deps into a canopy. Empty dependency lists become nil.
func NewCanopy(deps map[string][]string) *Canopy {
	c := &Canopy{deps: make(map[string][]string, len(deps))}
	for k, v := range deps {
		c.keys = append(c.keys, k)
		if len(v) > 0 {
			c.deps[k] = append([]string(nil), v...)
		} else {
			c.deps[k] = nil
		}
	}
	sort.Strings(c.keys)
	return c
}

// Keys returns the file keys in sorted order.
func (c *Canopy) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Deps returns the dependencies of key.
func (c *Canopy) Deps(key string) []string {
	return append([]string(nil), c.deps[key]...)
}

// Has reports whether key is a canopy key.
func (c *Canopy) Has(key string) bool {
	_, ok := c.deps[key]
	return ok
}

func (c *Canopy) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.deps)
}

func (c *Canopy) UnmarshalJSON(data []byte) error {
	var in map[string][]string
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = *NewCanopy(in)
	return nil
}

// FileFailure records a file that was skipped under the skip-and-continue
// scan policy.
type FileFailure struct {
	Path    string `json:"path"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}
