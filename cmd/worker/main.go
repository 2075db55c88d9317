package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/efebarandurmaz/importgraph/internal/config"
	"github.com/efebarandurmaz/importgraph/internal/graph"
	"github.com/efebarandurmaz/importgraph/internal/graph/neo4j"
	"github.com/efebarandurmaz/importgraph/internal/observability"
	"github.com/efebarandurmaz/importgraph/internal/server"
	temporalmod "github.com/efebarandurmaz/importgraph/internal/temporal"
)

const version = "0.1.0"

func main() {
	configPath := "configs/importgraph.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx := context.Background()

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	// The graph store is optional; without it StoreActivity fails fast.
	var repo graph.Repository
	if cfg.Neo4j.URI != "" {
		repo, err = neo4j.NewNeo4j(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password)
		if err != nil {
			log.Fatalf("neo4j: %v", err)
		}
	}

	temporalmod.SetDependencies(&temporalmod.Dependencies{
		Config:     cfg,
		Repository: repo,
	})

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}

	shutdownCfg := server.DefaultShutdownConfig()
	shutdownCfg.Logger = logger
	srv := server.NewGracefulServer(
		&server.HealthConfig{Version: version},
		shutdownCfg,
	)
	srv.Health.RegisterCheck("temporal", server.TemporalHealthChecker(func(ctx context.Context) error {
		_, err := c.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
		return err
	}))
	srv.Health.Mount("/metrics", observability.Metrics().Handler())

	srv.Shutdown.AddHook(server.TemporalWorkerShutdownHook(func() {
		w.Stop()
		c.Close()
	}))
	if repo != nil {
		srv.Health.RegisterCheck("graph-store", server.GraphStoreHealthChecker(repo.Ping))
		srv.Shutdown.AddHook(server.GraphStoreShutdownHook(repo.Close))
	}
	srv.Shutdown.AddHook(server.TracingShutdownHook(tp.Shutdown))

	if err := srv.Start(cfg.Server.HealthAddr); err != nil {
		log.Fatalf("health server: %v", err)
	}

	fmt.Printf("Worker started on task queue: %s (health on %s)\n", cfg.Temporal.TaskQueue, cfg.Server.HealthAddr)
	srv.Wait()
	fmt.Println("Worker stopped")
}
