package snapshot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/efebarandurmaz/importgraph/internal/ir"
)

// DiffType indicates the kind of change.
type DiffType string

const (
	DiffAdded    DiffType = "added"
	DiffRemoved  DiffType = "removed"
	DiffModified DiffType = "modified"
)

// SnapshotDiff is the difference between two stored scans.
type SnapshotDiff struct {
	OldID           string           `json:"old_id"`
	NewID           string           `json:"new_id"`
	OldTag          string           `json:"old_tag,omitempty"`
	NewTag          string           `json:"new_tag,omitempty"`
	FileDiffs       []FileDiff       `json:"file_diffs"`
	IdentifierDiffs []IdentifierDiff `json:"identifier_diffs,omitempty"`
	ModuleDiffs     []ModuleDiff     `json:"module_diffs,omitempty"`
	Summary         DiffSummary      `json:"summary"`
}

// FileDiff is a change to one scanned source file.
type FileDiff struct {
	Path    string   `json:"path"`
	Type    DiffType `json:"type"`
	OldHash string   `json:"old_hash,omitempty"`
	NewHash string   `json:"new_hash,omitempty"`
}

// IdentifierDiff is a registry entry that appeared, disappeared or changed
// category.
type IdentifierDiff struct {
	Identifier  string      `json:"identifier"`
	Type        DiffType    `json:"type"`
	OldCategory ir.Category `json:"old_category,omitempty"`
	NewCategory ir.Category `json:"new_category,omitempty"`
}

// ModuleDiff lists the imports a module gained or lost.
type ModuleDiff struct {
	Module  string   `json:"module"`
	Type    DiffType `json:"type"`
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// DiffSummary provides aggregate stats about the diff.
type DiffSummary struct {
	FilesAdded         int `json:"files_added"`
	FilesRemoved       int `json:"files_removed"`
	FilesModified      int `json:"files_modified"`
	IdentifiersAdded   int `json:"identifiers_added"`
	IdentifiersRemoved int `json:"identifiers_removed"`
	ImportsAdded       int `json:"imports_added"`
	ImportsRemoved     int `json:"imports_removed"`
}

// Diff computes the differences between two snapshots. File changes come
// from the manifests; when store is not nil the scans are loaded and
// identifier and per-module import changes are added.
func Diff(old, new *Snapshot, store *Store) (*SnapshotDiff, error) {
	d := &SnapshotDiff{
		OldID:     old.ID,
		NewID:     new.ID,
		OldTag:    old.Tag,
		NewTag:    new.Tag,
		FileDiffs: diffFiles(old.FileManifest, new.FileManifest),
	}

	if store != nil {
		oldScan, err := store.LoadScan(old.ID)
		if err != nil {
			return nil, err
		}
		newScan, err := store.LoadScan(new.ID)
		if err != nil {
			return nil, err
		}
		d.IdentifierDiffs = diffIdentifiers(oldScan.Registry, newScan.Registry)
		d.ModuleDiffs = diffModules(oldScan, newScan)
	}

	d.Summary = computeSummary(d)
	return d, nil
}

func diffFiles(oldFiles, newFiles []FileEntry) []FileDiff {
	oldMap := make(map[string]FileEntry, len(oldFiles))
	for _, f := range oldFiles {
		oldMap[f.Path] = f
	}
	newMap := make(map[string]FileEntry, len(newFiles))
	for _, f := range newFiles {
		newMap[f.Path] = f
	}

	var diffs []FileDiff
	for path, oldEntry := range oldMap {
		newEntry, ok := newMap[path]
		switch {
		case !ok:
			diffs = append(diffs, FileDiff{Path: path, Type: DiffRemoved, OldHash: oldEntry.ContentHash})
		case oldEntry.ContentHash != newEntry.ContentHash:
			diffs = append(diffs, FileDiff{
				Path:    path,
				Type:    DiffModified,
				OldHash: oldEntry.ContentHash,
				NewHash: newEntry.ContentHash,
			})
		}
	}
	for path, newEntry := range newMap {
		if _, ok := oldMap[path]; !ok {
			diffs = append(diffs, FileDiff{Path: path, Type: DiffAdded, NewHash: newEntry.ContentHash})
		}
	}

	sort.Slice(diffs, func(i, j int) bool {
		return diffs[i].Path < diffs[j].Path
	})
	return diffs
}

var categories = []ir.Category{ir.Common, ir.Uncommon, ir.Custom}

func registryCategories(r *ir.Registry) map[string]ir.Category {
	out := make(map[string]ir.Category)
	if r == nil {
		return out
	}
	for _, c := range categories {
		for _, id := range r.Names(c) {
			out[id] = c
		}
	}
	return out
}

func diffIdentifiers(old, new *ir.Registry) []IdentifierDiff {
	oldCats := registryCategories(old)
	newCats := registryCategories(new)

	var diffs []IdentifierDiff
	for id, oc := range oldCats {
		nc, ok := newCats[id]
		switch {
		case !ok:
			diffs = append(diffs, IdentifierDiff{Identifier: id, Type: DiffRemoved, OldCategory: oc})
		case oc != nc:
			diffs = append(diffs, IdentifierDiff{Identifier: id, Type: DiffModified, OldCategory: oc, NewCategory: nc})
		}
	}
	for id, nc := range newCats {
		if _, ok := oldCats[id]; !ok {
			diffs = append(diffs, IdentifierDiff{Identifier: id, Type: DiffAdded, NewCategory: nc})
		}
	}

	sort.Slice(diffs, func(i, j int) bool {
		return diffs[i].Identifier < diffs[j].Identifier
	})
	return diffs
}

func diffModules(old, new *ir.Scan) []ModuleDiff {
	imports := func(s *ir.Scan) map[string][]string {
		out := make(map[string][]string, len(s.Records))
		for _, r := range s.Records {
			out[r.Key] = r.Imports
		}
		return out
	}
	oldImports := imports(old)
	newImports := imports(new)

	keys := make(map[string]bool)
	for k := range oldImports {
		keys[k] = true
	}
	for k := range newImports {
		keys[k] = true
	}

	var diffs []ModuleDiff
	for k := range keys {
		oi, inOld := oldImports[k]
		ni, inNew := newImports[k]
		md := ModuleDiff{Module: k, Added: minus(ni, oi), Removed: minus(oi, ni)}
		switch {
		case !inOld:
			md.Type = DiffAdded
		case !inNew:
			md.Type = DiffRemoved
		case len(md.Added) > 0 || len(md.Removed) > 0:
			md.Type = DiffModified
		default:
			continue
		}
		diffs = append(diffs, md)
	}

	sort.Slice(diffs, func(i, j int) bool {
		return diffs[i].Module < diffs[j].Module
	})
	return diffs
}

// minus returns the elements of a not in b, in a's order.
func minus(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, s := range b {
		inB[s] = true
	}
	var out []string
	for _, s := range a {
		if !inB[s] {
			out = append(out, s)
		}
	}
	return out
}

func computeSummary(d *SnapshotDiff) DiffSummary {
	var s DiffSummary
	for _, fd := range d.FileDiffs {
		switch fd.Type {
		case DiffAdded:
			s.FilesAdded++
		case DiffRemoved:
			s.FilesRemoved++
		case DiffModified:
			s.FilesModified++
		}
	}
	for _, id := range d.IdentifierDiffs {
		switch id.Type {
		case DiffAdded:
			s.IdentifiersAdded++
		case DiffRemoved:
			s.IdentifiersRemoved++
		}
	}
	for _, md := range d.ModuleDiffs {
		s.ImportsAdded += len(md.Added)
		s.ImportsRemoved += len(md.Removed)
	}
	return s
}

// FormatDiff returns a human-readable string representation of the diff.
func FormatDiff(d *SnapshotDiff) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Diff: %s → %s\n", d.OldID, d.NewID))
	if d.OldTag != "" || d.NewTag != "" {
		sb.WriteString(fmt.Sprintf("Tags: %s → %s\n", d.OldTag, d.NewTag))
	}
	sb.WriteString(fmt.Sprintf("Files: +%d -%d ~%d\n",
		d.Summary.FilesAdded, d.Summary.FilesRemoved, d.Summary.FilesModified))
	sb.WriteString(fmt.Sprintf("Imports: +%d -%d\n\n",
		d.Summary.ImportsAdded, d.Summary.ImportsRemoved))

	for _, fd := range d.FileDiffs {
		sb.WriteString(fmt.Sprintf("  %s %s\n", icon(fd.Type), fd.Path))
	}

	if len(d.IdentifierDiffs) > 0 {
		sb.WriteString("\nIdentifiers:\n")
		for _, id := range d.IdentifierDiffs {
			sb.WriteString(fmt.Sprintf("  %s %s", icon(id.Type), id.Identifier))
			switch id.Type {
			case DiffModified:
				sb.WriteString(fmt.Sprintf(" [%s→%s]", id.OldCategory, id.NewCategory))
			case DiffAdded:
				sb.WriteString(fmt.Sprintf(" [%s]", id.NewCategory))
			case DiffRemoved:
				sb.WriteString(fmt.Sprintf(" [%s]", id.OldCategory))
			}
			sb.WriteString("\n")
		}
	}

	if len(d.ModuleDiffs) > 0 {
		sb.WriteString("\nModules:\n")
		for _, md := range d.ModuleDiffs {
			sb.WriteString(fmt.Sprintf("  %s %s", icon(md.Type), md.Module))
			if len(md.Added) > 0 {
				sb.WriteString(" +" + strings.Join(md.Added, " +"))
			}
			if len(md.Removed) > 0 {
				sb.WriteString(" -" + strings.Join(md.Removed, " -"))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func icon(t DiffType) string {
	switch t {
	case DiffAdded:
		return "+"
	case DiffRemoved:
		return "-"
	}
	return "~"
}
