package temporal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"

	"github.com/efebarandurmaz/importgraph/internal/config"
	"github.com/efebarandurmaz/importgraph/internal/graph"
	"github.com/efebarandurmaz/importgraph/internal/ir"
	"github.com/efebarandurmaz/importgraph/internal/observability"
	"github.com/efebarandurmaz/importgraph/internal/pipeline"
)

// AssembleResult is the serializable summary of an assembled graph.
type AssembleResult struct {
	Nodes    int
	Edges    int
	TopLevel []string
	Outputs  []string
}

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	// Config supplies the defaults an AnalysisInput does not override.
	Config *config.Config
	// Repository is optional; StoreActivity fails without it.
	Repository graph.Repository
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

func baseConfig() *config.Config {
	if deps != nil && deps.Config != nil {
		cfg := *deps.Config
		return &cfg
	}
	return config.Default()
}

// configFor overlays input on the worker configuration.
func configFor(input AnalysisInput) *config.Config {
	cfg := baseConfig()
	cfg.Scan.Root = input.Root
	if input.Language != "" {
		cfg.Scan.Language = input.Language
	}
	if input.Exclude != nil {
		cfg.Scan.Exclude = input.Exclude
	}
	cfg.Scan.SkipFailed = input.SkipFailed
	if input.Preset != nil {
		cfg.Preset = *input.Preset
	}
	if input.Include != nil {
		cfg.Graph.Include = *input.Include
	}
	if input.OutputDir != "" {
		cfg.Output.Dir = input.OutputDir
	}
	cfg.Output.Formats = input.Formats
	return cfg
}

// ScanActivity walks the input tree and returns the frozen scan as JSON so
// later activities can regraph it without rescanning.
func ScanActivity(ctx context.Context, input AnalysisInput) (string, error) {
	scan, err := pipeline.Scan(ctx, configFor(input))
	if err != nil {
		return "", classifyError(err)
	}
	data, err := json.Marshal(scan)
	if err != nil {
		return "", classifyError(fmt.Errorf("marshal scan: %w", err))
	}
	return string(data), nil
}

// AssembleActivity builds the graph of a scan and writes the requested
// outputs.
func AssembleActivity(ctx context.Context, input AnalysisInput, scanJSON string) (AssembleResult, error) {
	cfg := configFor(input)
	res, err := analyze(ctx, cfg, scanJSON)
	if err != nil {
		return AssembleResult{}, err
	}

	out := AssembleResult{
		Nodes:    len(res.Graph.Nodes()),
		Edges:    len(res.Graph.Edges()),
		TopLevel: res.Graph.TopLevel(),
	}
	if len(cfg.Output.Formats) > 0 {
		written, err := pipeline.WriteOutputs(ctx, res, pipeline.OutputDir(cfg, res.Scan), cfg.Output.Formats, cfg.Graph.Palette)
		if err != nil {
			return AssembleResult{}, classifyError(err)
		}
		for _, o := range written {
			out.Outputs = append(out.Outputs, o.Path)
		}
	}
	return out, nil
}

// StoreActivity persists the graph of a scan under input.Project.
func StoreActivity(ctx context.Context, input AnalysisInput, scanJSON string) error {
	if deps == nil || deps.Repository == nil {
		return sdktemporal.NewNonRetryableApplicationError("no graph repository configured", errTypeConfiguration, nil)
	}
	res, err := analyze(ctx, configFor(input), scanJSON)
	if err != nil {
		return err
	}

	start := time.Now()
	err = deps.Repository.StoreGraph(ctx, input.Project, res.Graph)
	observability.Metrics().RecordStore(time.Since(start), err)
	if err != nil {
		return classifyError(fmt.Errorf("store graph: %w", err))
	}
	return nil
}

func analyze(ctx context.Context, cfg *config.Config, scanJSON string) (*pipeline.Result, error) {
	var scan ir.Scan
	if err := json.Unmarshal([]byte(scanJSON), &scan); err != nil {
		return nil, sdktemporal.NewNonRetryableApplicationError("decode scan", errTypeConfiguration, err)
	}
	res, err := pipeline.Analyze(ctx, &scan, cfg.Graph.Include)
	if err != nil {
		return nil, classifyError(err)
	}
	return res, nil
}

// Error types reported to the workflow. Every analysis failure is
// deterministic, so none of them is retried.
const (
	errTypeConfiguration = "ConfigurationError"
	errTypeScan          = "ScanError"
	errTypeIO            = "IOError"
	errTypeStructural    = "StructuralError"
	errTypeAnalysis      = "AnalysisError"
)

// classifyError turns err into a non-retryable application error typed
// after the error taxonomy.
func classifyError(err error) error {
	var (
		ce *ir.ConfigurationError
		se *ir.ScanError
		ie *ir.IOError
		st *ir.StructuralError
	)
	switch {
	case errors.As(err, &ie):
		return sdktemporal.NewNonRetryableApplicationError(err.Error(), errTypeIO, err)
	case errors.As(err, &ce):
		return sdktemporal.NewNonRetryableApplicationError(err.Error(), errTypeConfiguration, err)
	case errors.As(err, &se):
		return sdktemporal.NewNonRetryableApplicationError(err.Error(), errTypeScan, err)
	case errors.As(err, &st):
		return sdktemporal.NewNonRetryableApplicationError(err.Error(), errTypeStructural, err, st.Cycles)
	}
	return sdktemporal.NewNonRetryableApplicationError(err.Error(), errTypeAnalysis, err)
}
