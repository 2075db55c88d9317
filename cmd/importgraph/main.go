package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/efebarandurmaz/importgraph/internal/config"
	"github.com/efebarandurmaz/importgraph/internal/depgraph"
	"github.com/efebarandurmaz/importgraph/internal/graph/neo4j"
	"github.com/efebarandurmaz/importgraph/internal/ir"
	"github.com/efebarandurmaz/importgraph/internal/metrics"
	"github.com/efebarandurmaz/importgraph/internal/observability"
	"github.com/efebarandurmaz/importgraph/internal/pipeline"
	"github.com/efebarandurmaz/importgraph/internal/qualitygate"
	"github.com/efebarandurmaz/importgraph/internal/snapshot"
	temporalmod "github.com/efebarandurmaz/importgraph/internal/temporal"
	"github.com/efebarandurmaz/importgraph/internal/tui"
)

var version = "0.1.0"

var errGatesFailed = errors.New("quality gates failed")

type app struct {
	configPath string
	cfg        *config.Config
	tracer     *observability.TracerProvider
}

// graphFlags are shared by every command that assembles a graph.
type graphFlags struct {
	include  []string
	formats  []string
	output   string
	snapshot string
}

func (f *graphFlags) register(cmd *cobra.Command, withOutputs bool) {
	cmd.Flags().StringSliceVar(&f.include, "include", nil, "Categories to graph (common,uncommon,custom)")
	cmd.Flags().StringVar(&f.snapshot, "snapshot", "", "Use a stored scan (id, tag or id prefix) instead of scanning")
	if withOutputs {
		cmd.Flags().StringSliceVar(&f.formats, "format", nil, "Output formats (text,json,dot,mermaid)")
		cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output directory (default: scanned root)")
	}
}

func (f *graphFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("include") {
		inc, err := depgraph.ParseInclude(f.include)
		if err != nil {
			return err
		}
		cfg.Graph.Include = inc
	}
	if cmd.Flags().Changed("format") {
		cfg.Output.Formats = f.formats
	}
	if f.output != "" {
		cfg.Output.Dir = f.output
	}
	return nil
}

func main() {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "importgraph",
		Short:         "Module dependency graphs for Python and Perl source trees",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file path")

	rootCmd.AddCommand(
		a.analyzeCmd(),
		a.graphCmd(),
		a.exploreCmd(),
		a.pushCmd(),
		a.submitCmd(),
		a.checkCmd(),
		a.presetsCmd(),
		a.snapshotsCmd(),
	)

	err := rootCmd.ExecuteContext(context.Background())
	if a.tracer != nil {
		if serr := a.tracer.Shutdown(context.Background()); serr != nil {
			slog.Warn("tracer shutdown failed", "error", serr)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the error taxonomy to distinct process exit codes.
func exitCode(err error) int {
	var (
		ce *ir.ConfigurationError
		se *ir.ScanError
		ie *ir.IOError
		st *ir.StructuralError
	)
	switch {
	case errors.Is(err, errGatesFailed):
		return 6
	case errors.As(err, &ce):
		return 2
	case errors.As(err, &se):
		return 3
	case errors.As(err, &ie):
		return 4
	case errors.As(err, &st):
		return 5
	}
	return 1
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	slog.SetDefault(cfg.Log.NewLogger(os.Stderr))

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	a.tracer = tp
	return nil
}

// loadConfig reads path. A missing file falls back to defaults and the
// environment.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	var ioErr *ir.IOError
	if path != "" && errors.As(err, &ioErr) && errors.Is(ioErr.Err, fs.ErrNotExist) {
		slog.Warn("config file not found, using defaults", "path", path)
		return config.Load("")
	}
	return nil, err
}

func (a *app) openStore() (*snapshot.Store, error) {
	return snapshot.NewStore(a.cfg.Store.Dir, a.cfg.Store.CacheSize)
}

// loadScan returns the stored scan for ref, or scans the configured root.
func (a *app) loadScan(ctx context.Context, ref string) (*ir.Scan, error) {
	if ref == "" {
		return pipeline.Scan(ctx, a.cfg)
	}
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	id, err := store.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return store.LoadScan(id)
}

func (a *app) analyzeCmd() *cobra.Command {
	var (
		gf         graphFlags
		language   string
		exclude    []string
		skipFailed bool
		save       bool
		tag        string
		report     string
	)

	cmd := &cobra.Command{
		Use:   "analyze [root]",
		Short: "Scan a source tree and write its import graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if len(args) == 1 {
				cfg.Scan.Root = args[0]
			}
			if language != "" {
				cfg.Scan.Language = language
			}
			cfg.Scan.Exclude = append(cfg.Scan.Exclude, exclude...)
			if cmd.Flags().Changed("skip-failed") {
				cfg.Scan.SkipFailed = skipFailed
			}
			if err := gf.apply(cmd, cfg); err != nil {
				return err
			}

			res, m, err := pipeline.Run(cmd.Context(), cfg)
			printMetrics(m, report)
			if err != nil {
				return err
			}

			if save {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				snap, err := store.Save(res.Scan, tag)
				if err != nil {
					return err
				}
				fmt.Printf("Saved snapshot %s", snap.ID)
				if snap.Tag != "" {
					fmt.Printf(" (%s)", snap.Tag)
				}
				fmt.Println()
			}
			return nil
		},
	}

	gf.register(cmd, true)
	cmd.Flags().StringVarP(&language, "language", "l", "", "Source language (python, perl)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Additional glob patterns to skip")
	cmd.Flags().BoolVar(&skipFailed, "skip-failed", false, "Skip files that fail to scan instead of aborting")
	cmd.Flags().BoolVar(&save, "save", false, "Store the scan as a snapshot")
	cmd.Flags().StringVar(&tag, "tag", "", "Tag for the saved snapshot")
	cmd.Flags().StringVar(&report, "report", "styled", "Run report: styled, plain, json or none")
	return cmd
}

func printMetrics(m *metrics.RunMetrics, mode string) {
	if m == nil {
		return
	}
	switch mode {
	case "none":
	case "json":
		data, _ := m.JSON()
		fmt.Println(string(data))
	case "plain":
		m.PrintSummary(os.Stdout)
	default:
		fmt.Println(tui.RenderSummary(m, nil))
	}
}

func (a *app) graphCmd() *cobra.Command {
	var gf graphFlags

	cmd := &cobra.Command{
		Use:   "graph <snapshot>",
		Short: "Regraph a stored scan under a different inclusion filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := gf.apply(cmd, a.cfg); err != nil {
				return err
			}
			ctx := cmd.Context()
			scan, err := a.loadScan(ctx, args[0])
			if err != nil {
				return err
			}
			res, err := pipeline.Analyze(ctx, scan, a.cfg.Graph.Include)
			if err != nil {
				return err
			}
			outputs, err := pipeline.WriteOutputs(ctx, res, pipeline.OutputDir(a.cfg, scan), a.cfg.Output.Formats, a.cfg.Graph.Palette)
			for _, o := range outputs {
				fmt.Printf("Wrote %s (%s)\n", o.Path, o.Format)
			}
			if err != nil {
				return err
			}
			fmt.Print(depgraph.FormatStats(res.Graph))
			return nil
		},
	}
	gf.register(cmd, true)
	// The positional argument names the snapshot.
	_ = cmd.Flags().MarkHidden("snapshot")
	return cmd
}

func (a *app) exploreCmd() *cobra.Command {
	var gf graphFlags

	cmd := &cobra.Command{
		Use:   "explore [root]",
		Short: "Browse an import graph interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				a.cfg.Scan.Root = args[0]
			}
			if err := gf.apply(cmd, a.cfg); err != nil {
				return err
			}
			scan, err := a.loadScan(cmd.Context(), gf.snapshot)
			if err != nil {
				return err
			}
			res, err := pipeline.Analyze(cmd.Context(), scan, a.cfg.Graph.Include)
			if err != nil {
				return err
			}
			return tui.RunExplorer(res.Graph, "importgraph · "+scan.Root)
		},
	}
	gf.register(cmd, false)
	return cmd
}

func (a *app) pushCmd() *cobra.Command {
	var (
		gf      graphFlags
		project string
	)

	cmd := &cobra.Command{
		Use:   "push [root]",
		Short: "Store an import graph in Neo4j",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				a.cfg.Scan.Root = args[0]
			}
			if err := gf.apply(cmd, a.cfg); err != nil {
				return err
			}
			if a.cfg.Neo4j.URI == "" {
				return &ir.ConfigurationError{Field: "neo4j.uri", Reason: "a Neo4j URI is required to push"}
			}
			ctx := cmd.Context()
			scan, err := a.loadScan(ctx, gf.snapshot)
			if err != nil {
				return err
			}
			res, err := pipeline.Analyze(ctx, scan, a.cfg.Graph.Include)
			if err != nil {
				return err
			}
			if project == "" {
				project = scan.Root
			}

			repo, err := neo4j.NewNeo4j(ctx, a.cfg.Neo4j.URI, a.cfg.Neo4j.Username, a.cfg.Neo4j.Password)
			if err != nil {
				return err
			}
			defer repo.Close(context.Background())

			start := time.Now()
			err = repo.StoreGraph(ctx, project, res.Graph)
			observability.Metrics().RecordStore(time.Since(start), err)
			if err != nil {
				return err
			}
			fmt.Printf("Stored %d modules and %d imports as project %q\n",
				len(res.Graph.Nodes()), len(res.Graph.Edges()), project)
			return nil
		},
	}
	gf.register(cmd, false)
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project name (default: scanned root)")
	return cmd
}

func (a *app) submitCmd() *cobra.Command {
	var (
		gf      graphFlags
		project string
		store   bool
		wait    bool
	)

	cmd := &cobra.Command{
		Use:   "submit <root>",
		Short: "Run an analysis on a Temporal worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := gf.apply(cmd, a.cfg); err != nil {
				return err
			}
			c, err := temporalclient.Dial(temporalclient.Options{
				HostPort:  a.cfg.Temporal.Host,
				Namespace: a.cfg.Temporal.Namespace,
			})
			if err != nil {
				return fmt.Errorf("temporal client: %w", err)
			}
			defer c.Close()

			include := a.cfg.Graph.Include
			preset := a.cfg.Preset
			input := temporalmod.AnalysisInput{
				Root:       args[0],
				Language:   a.cfg.Scan.Language,
				Exclude:    a.cfg.Scan.Exclude,
				SkipFailed: a.cfg.Scan.SkipFailed,
				Preset:     &preset,
				Include:    &include,
				OutputDir:  a.cfg.Output.Dir,
				Formats:    a.cfg.Output.Formats,
				Store:      store,
				Project:    project,
			}
			if input.Project == "" {
				input.Project = input.Root
			}

			ctx := cmd.Context()
			run, err := c.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
				ID:        "importgraph-" + uuid.NewString(),
				TaskQueue: a.cfg.Temporal.TaskQueue,
			}, temporalmod.AnalysisWorkflow, input)
			if err != nil {
				return fmt.Errorf("starting workflow: %w", err)
			}
			fmt.Printf("Started workflow %s (run %s)\n", run.GetID(), run.GetRunID())
			if !wait {
				return nil
			}

			var out temporalmod.AnalysisOutput
			if err := run.Get(ctx, &out); err != nil {
				return fmt.Errorf("workflow: %w", err)
			}
			fmt.Printf("Files: %d  Nodes: %d  Edges: %d\n", out.Files, out.Nodes, out.Edges)
			fmt.Printf("Top-level: %s\n", strings.Join(out.TopLevel, ", "))
			for _, p := range out.Outputs {
				fmt.Printf("Wrote %s\n", p)
			}
			for _, f := range out.Failures {
				fmt.Printf("Skipped: %s\n", f)
			}
			if out.Stored {
				fmt.Printf("Stored as project %q\n", input.Project)
			}
			return nil
		},
	}
	gf.register(cmd, true)
	_ = cmd.Flags().MarkHidden("snapshot")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project name for --store (default: root)")
	cmd.Flags().BoolVar(&store, "store", false, "Store the graph through the worker's repository")
	cmd.Flags().BoolVar(&wait, "wait", true, "Wait for the workflow result")
	return cmd
}

func (a *app) checkCmd() *cobra.Command {
	var (
		gf       graphFlags
		jsonOut  bool
		maxDepth int
		forbid   []string
	)

	cmd := &cobra.Command{
		Use:   "check [root]",
		Short: "Evaluate quality gates against an import graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				a.cfg.Scan.Root = args[0]
			}
			if err := gf.apply(cmd, a.cfg); err != nil {
				return err
			}
			if cmd.Flags().Changed("max-depth") {
				a.cfg.Gates.MaxDepth = maxDepth
			}
			a.cfg.Gates.Forbidden = append(a.cfg.Gates.Forbidden, forbid...)

			gates, err := qualitygate.BuildPipeline(&a.cfg.Gates)
			if err != nil {
				return err
			}
			scan, err := a.loadScan(cmd.Context(), gf.snapshot)
			if err != nil {
				return err
			}
			res, err := pipeline.Analyze(cmd.Context(), scan, a.cfg.Graph.Include)
			if err != nil {
				return err
			}

			result := gates.Run(&qualitygate.EvalContext{Graph: res.Graph, Scan: scan})
			if jsonOut {
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			} else {
				fmt.Print(qualitygate.FormatReport(result))
			}
			if result.Status == qualitygate.GateFailed {
				return errGatesFailed
			}
			return nil
		},
	}
	gf.register(cmd, false)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the gate results as JSON")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Longest allowed import chain (0 disables)")
	cmd.Flags().StringSliceVar(&forbid, "forbid", nil, "Glob patterns of modules that must not appear")
	return cmd
}

func (a *app) presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "Show the classification preset in effect",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.cfg.Preset
			if err := p.Check(); err != nil {
				return err
			}
			fmt.Printf("Common (%d):\n", len(p.Common))
			printWrapped(p.Common)
			fmt.Printf("\nUncommon (%d):\n", len(p.Uncommon))
			printWrapped(p.Uncommon)
			fmt.Println("\nEverything else is classified as custom.")
			return nil
		},
	}
}

func printWrapped(ids []string) {
	const width = 76
	line := " "
	for _, id := range ids {
		if len(line)+len(id)+1 > width {
			fmt.Println(line)
			line = " "
		}
		line += " " + id
	}
	if strings.TrimSpace(line) != "" {
		fmt.Println(line)
	}
}
