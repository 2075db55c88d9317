package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/efebarandurmaz/importgraph/internal/depgraph"
	"github.com/efebarandurmaz/importgraph/internal/ir"
)

// RunMetrics collects statistics for one analysis run.
type RunMetrics struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
	Duration   time.Duration  `json:"duration_ms,omitempty"`
	Scan       ScanMetrics    `json:"scan"`
	Graph      GraphMetrics   `json:"graph"`
	Phases     []PhaseMetrics `json:"phases"`
	Outputs    []OutputFile   `json:"outputs,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
}

type ScanMetrics struct {
	Language      string `json:"language"`
	Root          string `json:"root"`
	FileCount     int    `json:"file_count"`
	RecordCount   int    `json:"record_count"`
	CommonCount   int    `json:"common_count"`
	UncommonCount int    `json:"uncommon_count"`
	CustomCount   int    `json:"custom_count"`
	FailureCount  int    `json:"failure_count"`
}

type GraphMetrics struct {
	Include      depgraph.Include `json:"include"`
	NodeCount    int              `json:"node_count"`
	EdgeCount    int              `json:"edge_count"`
	TopLevel     int              `json:"top_level"`
	Components   int              `json:"components"`
	LongestChain int              `json:"longest_chain"`
}

type PhaseMetrics struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ms"`
}

type OutputFile struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// New starts tracking a run.
func New() *RunMetrics {
	return &RunMetrics{StartedAt: time.Now()}
}

// CollectScan computes scan-side metrics.
func (m *RunMetrics) CollectScan(scan *ir.Scan) {
	m.Scan.Language = scan.Language
	m.Scan.Root = scan.Root
	m.Scan.FileCount = len(scan.Files)
	m.Scan.RecordCount = len(scan.Records)
	m.Scan.FailureCount = len(scan.Failures)
	if scan.Registry != nil {
		m.Scan.CommonCount = len(scan.Registry.Names(ir.Common))
		m.Scan.UncommonCount = len(scan.Registry.Names(ir.Uncommon))
		m.Scan.CustomCount = len(scan.Registry.Names(ir.Custom))
	}
}

// CollectGraph computes graph-side metrics.
func (m *RunMetrics) CollectGraph(g *depgraph.Graph) {
	s := g.Stats()
	m.Graph = GraphMetrics{
		Include:      g.Include(),
		NodeCount:    s.TotalNodes,
		EdgeCount:    s.TotalEdges,
		TopLevel:     s.TopLevelCount,
		Components:   s.ConnectedComponents,
		LongestChain: s.LongestChain,
	}
}

// AddPhase records a single phase's timing.
func (m *RunMetrics) AddPhase(name string, d time.Duration) {
	m.Phases = append(m.Phases, PhaseMetrics{Name: name, Duration: d})
}

// AddOutput records a written output file.
func (m *RunMetrics) AddOutput(path string, size int) {
	m.Outputs = append(m.Outputs, OutputFile{Path: path, Bytes: size})
}

// Finish marks the run as complete.
func (m *RunMetrics) Finish(errs []string) {
	m.FinishedAt = time.Now()
	m.Duration = m.FinishedAt.Sub(m.StartedAt)
	m.Errors = errs
}

// PrintSummary writes a human-readable summary.
func (m *RunMetrics) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║       IMPORT GRAPH RUN REPORT        ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Duration:    %-23s║\n", m.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ SCAN (%s)\n", m.Scan.Language)
	fmt.Fprintf(w, "║   Root:        %s\n", m.Scan.Root)
	fmt.Fprintf(w, "║   Files:       %d\n", m.Scan.FileCount)
	fmt.Fprintf(w, "║   Records:     %d\n", m.Scan.RecordCount)
	fmt.Fprintf(w, "║   Common:      %d\n", m.Scan.CommonCount)
	fmt.Fprintf(w, "║   Uncommon:    %d\n", m.Scan.UncommonCount)
	fmt.Fprintf(w, "║   Custom:      %d\n", m.Scan.CustomCount)
	fmt.Fprintf(w, "║   Skipped:     %d\n", m.Scan.FailureCount)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ GRAPH\n")
	fmt.Fprintf(w, "║   Nodes:       %d\n", m.Graph.NodeCount)
	fmt.Fprintf(w, "║   Edges:       %d\n", m.Graph.EdgeCount)
	fmt.Fprintf(w, "║   Top-Level:   %d\n", m.Graph.TopLevel)
	fmt.Fprintf(w, "║   Components:  %d\n", m.Graph.Components)
	fmt.Fprintf(w, "║   Depth:       %d\n", m.Graph.LongestChain)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ PHASES\n")
	for _, p := range m.Phases {
		fmt.Fprintf(w, "║   %-14s %8s\n", p.Name, p.Duration.Round(time.Millisecond))
	}
	if len(m.Outputs) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ OUTPUTS\n")
		for _, o := range m.Outputs {
			fmt.Fprintf(w, "║   %s (%s)\n", o.Path, formatBytes(o.Bytes))
		}
	}
	if len(m.Errors) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ ERRORS\n")
		for _, e := range m.Errors {
			fmt.Fprintf(w, "║   • %s\n", e)
		}
	}
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

// JSON returns the metrics as formatted JSON.
func (m *RunMetrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func formatBytes(b int) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
