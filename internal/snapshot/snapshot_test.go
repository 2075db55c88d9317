package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/efebarandurmaz/importgraph/internal/ir"
)

func makeScan(root string, files map[string]string, deps map[string][]string) *ir.Scan {
	registry := map[ir.Category][]string{}
	var records []*ir.FileRecord
	keys := make([]string, 0, len(deps))
	for k := range deps {
		keys = append(keys, k)
	}
	for _, k := range sortedCopy(keys) {
		r := &ir.FileRecord{Key: k, Category: ir.Custom, Imports: deps[k]}
		for _, id := range deps[k] {
			if id == "os" || id == "numpy" {
				r.Common = append(r.Common, id)
				registry[ir.Common] = appendUnique(registry[ir.Common], id)
			} else {
				r.Custom = append(r.Custom, id)
				registry[ir.Custom] = appendUnique(registry[ir.Custom], id)
			}
		}
		records = append(records, r)
	}
	return &ir.Scan{
		Root:     root,
		Language: "python",
		Records:  records,
		Registry: ir.NewRegistry(registry),
		Canopy:   ir.NewCanopy(deps),
		Files:    files,
	}
}

func sortedCopy(s []string) []string {
	out := append([]string(nil), s...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func appendUnique(list []string, id string) []string {
	for _, s := range list {
		if s == id {
			return list
		}
	}
	return append(list, id)
}

func baseScan() *ir.Scan {
	return makeScan("/src",
		map[string]string{"a.py": "h-a", "b.py": "h-b"},
		map[string][]string{"a": {"os", "b"}, "b": {"numpy"}},
	)
}

func TestContentHash(t *testing.T) {
	h1 := ContentHash([]byte("hello world"))
	h2 := ContentHash([]byte("hello world"))
	h3 := ContentHash([]byte("different"))

	if h1 != h2 {
		t.Error("same content should produce same hash")
	}
	if h1 == h3 {
		t.Error("different content should produce different hash")
	}
	if len(h1) != 64 {
		t.Errorf("expected 64-char hex hash, got %d chars", len(h1))
	}
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 4)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	for _, sub := range []string{snapshotsDir, objectsDir} {
		if _, err := os.Stat(filepath.Join(dir, sub)); err != nil {
			t.Errorf("%s directory not created: %v", sub, err)
		}
	}
	if len(store.List()) != 0 {
		t.Error("new store should be empty")
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	store, err := NewStore(t.TempDir(), 4)
	if err != nil {
		t.Fatal(err)
	}

	snap, err := store.Save(baseScan(), "v1")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(snap.ID) != 16 || !strings.HasPrefix(snap.ScanHash, snap.ID) {
		t.Errorf("id %q should prefix scan hash %q", snap.ID, snap.ScanHash)
	}
	if snap.FileCount != 2 || snap.RecordCount != 2 || snap.IdentifierCount != 3 {
		t.Errorf("unexpected counts %+v", snap)
	}
	if snap.FileManifest[0].Path != "a.py" || snap.FileManifest[1].Path != "b.py" {
		t.Errorf("manifest not sorted: %v", snap.FileManifest)
	}

	loaded, err := store.Load(snap.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Tag != "v1" || loaded.Root != "/src" {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestStoreLoadScan(t *testing.T) {
	for _, cacheSize := range []int{0, 2} {
		store, err := NewStore(t.TempDir(), cacheSize)
		if err != nil {
			t.Fatal(err)
		}
		orig := baseScan()
		snap, err := store.Save(orig, "")
		if err != nil {
			t.Fatal(err)
		}

		scan, err := store.LoadScan(snap.ID)
		if err != nil {
			t.Fatalf("LoadScan (cache %d): %v", cacheSize, err)
		}
		if !reflect.DeepEqual(scan.Canopy.Keys(), orig.Canopy.Keys()) {
			t.Errorf("canopy keys = %v", scan.Canopy.Keys())
		}
		if !reflect.DeepEqual(scan.Registry.Names(ir.Common), []string{"os", "numpy"}) {
			t.Errorf("common = %v", scan.Registry.Names(ir.Common))
		}
		if !reflect.DeepEqual(scan.Canopy.Deps("a"), []string{"os", "b"}) {
			t.Errorf("deps(a) = %v", scan.Canopy.Deps("a"))
		}

		again, err := store.LoadScan(snap.ID)
		if err != nil {
			t.Fatal(err)
		}
		if cached := again == scan; cached != (cacheSize > 0) {
			t.Errorf("cache %d: second load shared=%v", cacheSize, cached)
		}
	}
}

func TestStoreSaveIdempotent(t *testing.T) {
	store, err := NewStore(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	first, err := store.Save(baseScan(), "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.Save(baseScan(), "release")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("identical scans got ids %s and %s", first.ID, second.ID)
	}
	if second.Tag != "release" {
		t.Errorf("resave should retag, got %q", second.Tag)
	}
	if n := len(store.List()); n != 1 {
		t.Errorf("expected 1 snapshot, got %d", n)
	}
}

func TestStorePersistsIndex(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := store.Save(baseScan(), "keep")
	if err != nil {
		t.Fatal(err)
	}

	reopened, err := NewStore(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	list := reopened.List()
	if len(list) != 1 || list[0].ID != snap.ID || list[0].Tag != "keep" {
		t.Fatalf("reopened list = %+v", list)
	}
}

func TestStoreResolve(t *testing.T) {
	store, err := NewStore(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := store.Save(baseScan(), "base")
	if err != nil {
		t.Fatal(err)
	}

	for _, ref := range []string{snap.ID, "base", snap.ID[:6]} {
		id, err := store.Resolve(ref)
		if err != nil || id != snap.ID {
			t.Errorf("Resolve(%q) = %q, %v", ref, id, err)
		}
	}
	for _, ref := range []string{"", "nope"} {
		if _, err := store.Resolve(ref); !errors.Is(err, ErrNotFound) {
			t.Errorf("Resolve(%q): expected ErrNotFound, got %v", ref, err)
		}
	}
}

func TestStoreTag(t *testing.T) {
	store, err := NewStore(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := store.Save(baseScan(), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Tag(snap.ID, "v2"); err != nil {
		t.Fatalf("Tag: %v", err)
	}
	found, err := store.FindByTag("v2")
	if err != nil {
		t.Fatalf("FindByTag: %v", err)
	}
	if found.ID != snap.ID {
		t.Errorf("found %s, want %s", found.ID, snap.ID)
	}
	if _, err := store.FindByTag("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	store, err := NewStore(t.TempDir(), 2)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := store.Save(baseScan(), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.LoadScan(snap.ID); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(snap.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(store.List()) != 0 {
		t.Error("index should be empty after delete")
	}
	if _, err := store.Load(snap.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete: %v", err)
	}
	if _, err := store.LoadScan(snap.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadScan after delete should miss the cache: %v", err)
	}
	if _, err := os.Stat(store.objectPath(snap.ScanHash)); !os.IsNotExist(err) {
		t.Errorf("scan object should be removed: %v", err)
	}
}

func TestDiff(t *testing.T) {
	store, err := NewStore(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	oldSnap, err := store.Save(baseScan(), "old")
	if err != nil {
		t.Fatal(err)
	}
	newScan := makeScan("/src",
		map[string]string{"a.py": "h-a2", "c.py": "h-c"},
		map[string][]string{"a": {"os", "c"}, "c": nil},
	)
	newSnap, err := store.Save(newScan, "new")
	if err != nil {
		t.Fatal(err)
	}

	d, err := Diff(oldSnap, newSnap, store)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}

	wantFiles := []FileDiff{
		{Path: "a.py", Type: DiffModified, OldHash: "h-a", NewHash: "h-a2"},
		{Path: "b.py", Type: DiffRemoved, OldHash: "h-b"},
		{Path: "c.py", Type: DiffAdded, NewHash: "h-c"},
	}
	if !reflect.DeepEqual(d.FileDiffs, wantFiles) {
		t.Errorf("file diffs = %+v", d.FileDiffs)
	}

	wantIDs := []IdentifierDiff{
		{Identifier: "b", Type: DiffRemoved, OldCategory: ir.Custom},
		{Identifier: "c", Type: DiffAdded, NewCategory: ir.Custom},
		{Identifier: "numpy", Type: DiffRemoved, OldCategory: ir.Common},
	}
	if !reflect.DeepEqual(d.IdentifierDiffs, wantIDs) {
		t.Errorf("identifier diffs = %+v", d.IdentifierDiffs)
	}

	wantModules := []ModuleDiff{
		{Module: "a", Type: DiffModified, Added: []string{"c"}, Removed: []string{"b"}},
		{Module: "b", Type: DiffRemoved, Removed: []string{"numpy"}},
		{Module: "c", Type: DiffAdded},
	}
	if !reflect.DeepEqual(d.ModuleDiffs, wantModules) {
		t.Errorf("module diffs = %+v", d.ModuleDiffs)
	}

	want := DiffSummary{
		FilesAdded: 1, FilesRemoved: 1, FilesModified: 1,
		IdentifiersAdded: 1, IdentifiersRemoved: 2,
		ImportsAdded: 1, ImportsRemoved: 2,
	}
	if d.Summary != want {
		t.Errorf("summary = %+v", d.Summary)
	}

	text := FormatDiff(d)
	for _, s := range []string{"Tags: old → new", "Files: +1 -1 ~1", "~ a +c -b", "+ c [custom]"} {
		if !strings.Contains(text, s) {
			t.Errorf("FormatDiff missing %q:\n%s", s, text)
		}
	}
}

func TestDiffIdentical(t *testing.T) {
	snap := newSnapshot(baseScan(), []byte("x"))
	d, err := Diff(snap, snap, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.FileDiffs) != 0 || d.Summary != (DiffSummary{}) {
		t.Errorf("identical snapshots should not differ: %+v", d)
	}
}
