package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/efebarandurmaz/importgraph/internal/depgraph"
	"github.com/efebarandurmaz/importgraph/internal/graph"
)

const (
	clearProjectQuery = "MATCH (m:Module {project: $project}) DETACH DELETE m"

	storeNodesQuery = "UNWIND $nodes AS n " +
		"MERGE (m:Module {project: $project, name: n.name}) " +
		"SET m.category = n.category, m.top_level = n.top_level"

	storeEdgesQuery = "UNWIND $edges AS e " +
		"MATCH (a:Module {project: $project, name: e.from}) " +
		"MATCH (b:Module {project: $project, name: e.to}) " +
		"MERGE (a)-[r:IMPORTS]->(b) SET r.position = e.position"

	successorsQuery = "MATCH (:Module {project: $project, name: $name})-[r:IMPORTS]->(s:Module) " +
		"RETURN s.name AS name ORDER BY r.position"

	topLevelQuery = "MATCH (m:Module {project: $project, top_level: true}) " +
		"RETURN m.name AS name ORDER BY m.name"
)

// Neo4jRepository implements graph.Repository using Neo4j. Modules are
// (:Module {project, name, category, top_level}) nodes joined by
// [:IMPORTS {position}] relationships.
type Neo4jRepository struct {
	driver neo4j.DriverWithContext
}

// NewNeo4j connects to uri and verifies connectivity.
func NewNeo4j(ctx context.Context, uri, username, password string) (*Neo4jRepository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Neo4jRepository{driver: driver}, nil
}

func (r *Neo4jRepository) StoreGraph(ctx context.Context, project string, g *depgraph.Graph) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := graphParams(project, g)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, q := range []string{clearProjectQuery, storeNodesQuery, storeEdgesQuery} {
			if _, err := tx.Run(ctx, q, params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("store graph %s: %w", project, err)
	}
	return nil
}

func (r *Neo4jRepository) QuerySuccessors(ctx context.Context, project, module string) ([]string, error) {
	return r.queryNames(ctx, successorsQuery, map[string]any{"project": project, "name": module})
}

func (r *Neo4jRepository) QueryTopLevel(ctx context.Context, project string) ([]string, error) {
	return r.queryNames(ctx, topLevelQuery, map[string]any{"project": project})
}

func (r *Neo4jRepository) queryNames(ctx context.Context, query string, params map[string]any) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		var names []string
		for records.Next(ctx) {
			n, _ := records.Record().Get("name")
			if s, ok := n.(string); ok {
				names = append(names, s)
			}
		}
		return names, records.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (r *Neo4jRepository) Ping(ctx context.Context) error {
	return r.driver.VerifyConnectivity(ctx)
}

func (r *Neo4jRepository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

// graphParams flattens g into the parameter map shared by the store
// queries. Edge positions keep each module's import order.
func graphParams(project string, g *depgraph.Graph) map[string]any {
	nodes := make([]any, 0, len(g.Nodes()))
	var edges []any
	for _, n := range g.Nodes() {
		cat, _ := g.CategoryOf(n)
		nodes = append(nodes, map[string]any{
			"name":      n,
			"category":  string(cat),
			"top_level": g.IsTopLevel(n),
		})
		for i, s := range g.Successors(n) {
			edges = append(edges, map[string]any{"from": n, "to": s, "position": i})
		}
	}
	if edges == nil {
		edges = []any{}
	}
	return map[string]any{"project": project, "nodes": nodes, "edges": edges}
}

var _ graph.Repository = (*Neo4jRepository)(nil)
