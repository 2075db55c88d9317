package graph

import (
	"context"
	"reflect"
	"testing"

	"github.com/efebarandurmaz/importgraph/internal/depgraph"
	"github.com/efebarandurmaz/importgraph/internal/ir"
)

func sampleGraph(t *testing.T) *depgraph.Graph {
	t.Helper()
	scan := &ir.Scan{
		Records: []*ir.FileRecord{
			{Key: "a", Category: ir.Custom, Imports: []string{"os", "b"}, Common: []string{"os"}, Custom: []string{"b"}},
			{Key: "b", Category: ir.Custom, Imports: []string{"numpy"}, Common: []string{"numpy"}},
		},
		Registry: ir.NewRegistry(map[ir.Category][]string{ir.Common: {"os", "numpy"}, ir.Custom: {"b"}}),
		Canopy:   ir.NewCanopy(map[string][]string{"a": {"os", "b"}, "b": {"numpy"}}),
	}
	g, err := depgraph.Assemble(scan, depgraph.IncludeAll())
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.StoreGraph(ctx, "proj", sampleGraph(t)); err != nil {
		t.Fatal(err)
	}

	succ, err := m.QuerySuccessors(ctx, "proj", "a")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(succ, []string{"os", "b"}) {
		t.Errorf("successors = %v", succ)
	}

	top, err := m.QueryTopLevel(ctx, "proj")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(top, []string{"a"}) {
		t.Errorf("top level = %v", top)
	}

	if succ, _ := m.QuerySuccessors(ctx, "other", "a"); succ != nil {
		t.Errorf("unknown project should be empty, got %v", succ)
	}
	if !reflect.DeepEqual(m.Projects(), []string{"proj"}) {
		t.Errorf("projects = %v", m.Projects())
	}
}

func TestMemory_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewMemory().StoreGraph(ctx, "p", sampleGraph(t)); err == nil {
		t.Fatal("expected context error")
	}
}
