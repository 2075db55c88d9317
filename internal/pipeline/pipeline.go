// Package pipeline runs an analysis end to end: scan a tree, assemble the
// graph and write the requested outputs. It is shared by the CLI and the
// Temporal activities.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/efebarandurmaz/importgraph/internal/classify"
	"github.com/efebarandurmaz/importgraph/internal/config"
	"github.com/efebarandurmaz/importgraph/internal/depgraph"
	"github.com/efebarandurmaz/importgraph/internal/ir"
	"github.com/efebarandurmaz/importgraph/internal/metrics"
	"github.com/efebarandurmaz/importgraph/internal/observability"
	"github.com/efebarandurmaz/importgraph/internal/plugins"
	perlplugin "github.com/efebarandurmaz/importgraph/internal/plugins/source/perl"
	pythonplugin "github.com/efebarandurmaz/importgraph/internal/plugins/source/python"
	"github.com/efebarandurmaz/importgraph/internal/tree"
)

// Output file names, relative to the output directory.
const (
	JSONFileName    = "import_graph.json"
	DOTFileName     = "import_graph.dot"
	MermaidFileName = "import_graph.mmd"
)

// Result is a finished analysis.
type Result struct {
	Scan  *ir.Scan
	Graph *depgraph.Graph
}

// Output describes one written file.
type Output struct {
	Format string
	Path   string
	Bytes  int
}

// DefaultRegistry returns a registry holding every built-in source plugin.
func DefaultRegistry() *plugins.Registry {
	r := plugins.NewRegistry()
	r.RegisterSource(pythonplugin.New())
	r.RegisterSource(perlplugin.New())
	return r
}

// Scan builds the frozen scan of cfg.Scan.Root.
func Scan(ctx context.Context, cfg *config.Config) (*ir.Scan, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	registry := DefaultRegistry()
	plugin, err := registry.Source(cfg.Scan.Language)
	if err != nil {
		return nil, &ir.ConfigurationError{
			Field:  "scan.language",
			Value:  cfg.Scan.Language,
			Reason: "supported languages are " + strings.Join(registry.Languages(), ", "),
		}
	}

	logger := slog.Default()
	builder, err := tree.NewBuilder(plugin, classify.New(cfg.Preset),
		tree.WithSkipFailed(cfg.Scan.SkipFailed),
		tree.WithWorkers(cfg.Scan.Workers),
		tree.WithExclude(cfg.Scan.Exclude...),
		tree.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartPhaseSpan(ctx, observability.PhaseScan,
		attribute.String("scan.root", cfg.Scan.Root),
		attribute.String("scan.language", cfg.Scan.Language),
	)
	defer span.End()

	start := time.Now()
	scan, err := builder.Build(ctx, cfg.Scan.Root)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	observability.Metrics().RecordScan(time.Since(start), len(scan.Files), len(scan.Failures))
	observability.RecordScanResult(span, len(scan.Files), len(scan.Records), scan.Registry.Len(), len(scan.Failures))
	logger.Info("scan complete",
		"root", scan.Root,
		"files", len(scan.Files),
		"records", len(scan.Records),
		"identifiers", scan.Registry.Len(),
		"skipped", len(scan.Failures),
	)
	return scan, nil
}

// Analyze assembles the graph of scan under include. The scan is not
// modified, so one scan can be analyzed under several inclusion filters.
func Analyze(ctx context.Context, scan *ir.Scan, include depgraph.Include) (*Result, error) {
	_, span := observability.StartPhaseSpan(ctx, observability.PhaseAssemble,
		attribute.Bool("graph.include.common", include.Common),
		attribute.Bool("graph.include.uncommon", include.Uncommon),
		attribute.Bool("graph.include.custom", include.Custom),
	)
	defer span.End()

	g, err := depgraph.Assemble(scan, include)
	if err != nil {
		observability.Metrics().RecordAssemble(0, 0, err)
		observability.RecordError(span, err)
		return nil, err
	}
	observability.Metrics().RecordAssemble(len(g.Nodes()), len(g.Edges()), nil)
	observability.RecordGraphResult(span, len(g.Nodes()), len(g.Edges()), len(g.TopLevel()))
	slog.Info("graph assembled",
		"nodes", len(g.Nodes()),
		"edges", len(g.Edges()),
		"top_level", len(g.TopLevel()),
	)
	return &Result{Scan: scan, Graph: g}, nil
}

// WriteOutputs writes one file per format into dir.
func WriteOutputs(ctx context.Context, res *Result, dir string, formats []string, palette depgraph.Palette) ([]Output, error) {
	_, span := observability.StartPhaseSpan(ctx, observability.PhaseExport,
		attribute.String("output.dir", dir),
		attribute.StringSlice("output.formats", formats),
	)
	defer span.End()

	var out []Output
	for _, format := range formats {
		o, err := writeOutput(res.Graph, dir, format, palette)
		if err != nil {
			observability.RecordError(span, err)
			return out, err
		}
		out = append(out, o)
	}
	return out, nil
}

func writeOutput(g *depgraph.Graph, dir, format string, palette depgraph.Palette) (Output, error) {
	var (
		name string
		data []byte
	)
	switch format {
	case config.FormatText:
		path, err := depgraph.WriteReport(g, dir)
		if err != nil {
			return Output{}, err
		}
		return Output{Format: format, Path: path, Bytes: len(depgraph.FormatReport(g))}, nil
	case config.FormatJSON:
		b, err := depgraph.ExportJSON(g)
		if err != nil {
			return Output{}, fmt.Errorf("encoding graph: %w", err)
		}
		name, data = JSONFileName, b
	case config.FormatDOT:
		name, data = DOTFileName, []byte(depgraph.ExportDOT(g, palette))
	case config.FormatMermaid:
		name, data = MermaidFileName, []byte(depgraph.ExportMermaid(g, palette))
	default:
		return Output{}, &ir.ConfigurationError{Field: "output.formats", Value: format, Reason: "unknown format"}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Output{}, &ir.IOError{Path: dir, Op: "mkdir", Err: err}
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Output{}, &ir.IOError{Path: path, Op: "write", Err: err}
	}
	return Output{Format: format, Path: path, Bytes: len(data)}, nil
}

// OutputDir returns the configured output directory, falling back to the
// scanned root.
func OutputDir(cfg *config.Config, scan *ir.Scan) string {
	if cfg.Output.Dir != "" {
		return cfg.Output.Dir
	}
	return scan.Root
}

// Run scans, analyzes and writes outputs, collecting run metrics. The
// returned metrics are finished even when err is non-nil.
func Run(ctx context.Context, cfg *config.Config) (*Result, *metrics.RunMetrics, error) {
	done := observability.Metrics().Begin()
	m := metrics.New()
	fail := func(err error) (*Result, *metrics.RunMetrics, error) {
		done(err)
		m.Finish([]string{err.Error()})
		return nil, m, err
	}

	start := time.Now()
	scan, err := Scan(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	m.AddPhase(observability.PhaseScan, time.Since(start))
	m.CollectScan(scan)

	start = time.Now()
	res, err := Analyze(ctx, scan, cfg.Graph.Include)
	if err != nil {
		return fail(err)
	}
	m.AddPhase(observability.PhaseAssemble, time.Since(start))
	m.CollectGraph(res.Graph)

	start = time.Now()
	outputs, err := WriteOutputs(ctx, res, OutputDir(cfg, scan), cfg.Output.Formats, cfg.Graph.Palette)
	for _, o := range outputs {
		m.AddOutput(o.Path, o.Bytes)
	}
	if err != nil {
		return fail(err)
	}
	m.AddPhase(observability.PhaseExport, time.Since(start))

	var warnings []string
	for _, f := range scan.Failures {
		warnings = append(warnings, f.Message)
	}
	done(nil)
	m.Finish(warnings)
	return res, m, nil
}
