package graph

import (
	"context"
	"sort"
	"sync"

	"github.com/efebarandurmaz/importgraph/internal/depgraph"
)

// Repository persists finished import graphs. Graphs are scoped by a project
// name so several trees can share one store; storing a project replaces its
// previous graph.
type Repository interface {
	// StoreGraph replaces the stored graph of project with g.
	StoreGraph(ctx context.Context, project string, g *depgraph.Graph) error
	// QuerySuccessors returns the direct imports of module in their
	// original order.
	QuerySuccessors(ctx context.Context, project, module string) ([]string, error)
	// QueryTopLevel returns the modules nothing imports, sorted.
	QueryTopLevel(ctx context.Context, project string) ([]string, error)
	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Close releases resources.
	Close(ctx context.Context) error
}

// Memory is an in-process Repository.
type Memory struct {
	mu       sync.RWMutex
	projects map[string]*storedGraph
}

type storedGraph struct {
	successors map[string][]string
	topLevel   []string
}

func NewMemory() *Memory {
	return &Memory{projects: make(map[string]*storedGraph)}
}

func (m *Memory) StoreGraph(ctx context.Context, project string, g *depgraph.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sg := &storedGraph{successors: make(map[string][]string)}
	for _, n := range g.Nodes() {
		sg.successors[n] = g.Successors(n)
	}
	sg.topLevel = g.TopLevel()
	sort.Strings(sg.topLevel)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[project] = sg
	return nil
}

func (m *Memory) QuerySuccessors(ctx context.Context, project, module string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sg, ok := m.projects[project]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), sg.successors[module]...), nil
}

func (m *Memory) QueryTopLevel(ctx context.Context, project string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sg, ok := m.projects[project]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), sg.topLevel...), nil
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close(ctx context.Context) error { return nil }

// Projects returns the stored project names, sorted.
func (m *Memory) Projects() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.projects))
	for p := range m.projects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

var _ Repository = (*Memory)(nil)
