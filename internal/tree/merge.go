package tree

import (
	"sort"

	"github.com/efebarandurmaz/importgraph/internal/classify"
	"github.com/efebarandurmaz/importgraph/internal/ir"
)

// merger is the single writer behind a Build. It owns the mutable record
// and registry state until freeze hands out the read-only ir.Scan.
type merger struct {
	index    *classify.Index
	records  map[string]*recordBuilder
	registry map[ir.Category][]string
	seen     map[string]bool
	files    map[string]string
	failures []ir.FileFailure
}

type recordBuilder struct {
	rec  *ir.FileRecord
	seen map[string]bool
}

func newMerger(index *classify.Index) *merger {
	return &merger{
		index:    index,
		records:  make(map[string]*recordBuilder),
		registry: make(map[ir.Category][]string, len(ir.Categories)),
		seen:     make(map[string]bool),
		files:    make(map[string]string),
	}
}

// add merges one scanned file and reports whether its key was already
// taken by an earlier file.
func (m *merger) add(sp sourcePath, res scanResult) bool {
	rb, dup := m.records[sp.key]
	if !dup {
		rb = &recordBuilder{
			rec: &ir.FileRecord{
				Key:      sp.key,
				Category: m.index.Classify(sp.key),
			},
			seen: make(map[string]bool),
		}
		m.records[sp.key] = rb
	}
	rb.rec.Paths = append(rb.rec.Paths, sp.rel)
	m.files[sp.rel] = res.hash

	for _, id := range res.ids {
		if rb.seen[id] {
			continue
		}
		rb.seen[id] = true
		c := m.index.Classify(id)
		rec := rb.rec
		rec.Imports = append(rec.Imports, id)
		switch c {
		case ir.Common:
			rec.Common = append(rec.Common, id)
		case ir.Uncommon:
			rec.Uncommon = append(rec.Uncommon, id)
		default:
			rec.Custom = append(rec.Custom, id)
		}
		if !m.seen[id] {
			m.seen[id] = true
			m.registry[c] = append(m.registry[c], id)
		}
	}
	return dup
}

// freeze builds the immutable scan. The canopy of each record is its
// direct dependencies: common and uncommon imports plus custom imports
// the registry recognizes, in first-occurrence order.
func (m *merger) freeze() *ir.Scan {
	registry := ir.NewRegistry(m.registry)

	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	scan := &ir.Scan{
		Records:  make([]*ir.FileRecord, 0, len(keys)),
		Registry: registry,
		Failures: m.failures,
		Files:    m.files,
	}
	deps := make(map[string][]string, len(keys))
	for _, k := range keys {
		rec := m.records[k].rec
		scan.Records = append(scan.Records, rec)
		var d []string
		for _, id := range rec.Imports {
			if m.index.Classify(id) == ir.Custom && !registry.Has(ir.Custom, id) {
				continue
			}
			d = append(d, id)
		}
		deps[k] = d
	}
	scan.Canopy = ir.NewCanopy(deps)
	return scan
}
