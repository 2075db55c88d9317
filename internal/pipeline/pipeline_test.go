package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/efebarandurmaz/importgraph/internal/config"
	"github.com/efebarandurmaz/importgraph/internal/depgraph"
	"github.com/efebarandurmaz/importgraph/internal/ir"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, src := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func testConfig(root string) *config.Config {
	cfg := config.Default()
	cfg.Scan.Root = root
	cfg.Scan.Workers = 2
	return cfg
}

func TestScanAndAnalyze(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py": "import os\nimport b\n",
		"b.py": "import numpy\n",
	})

	scan, err := Scan(context.Background(), testConfig(root))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if scan.Language != "python" || len(scan.Records) != 2 {
		t.Fatalf("unexpected scan %+v", scan)
	}

	res, err := Analyze(context.Background(), scan, depgraph.IncludeAll())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := res.Graph.TopLevel(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("top level = %v", got)
	}
	if !res.Graph.HasEdge("b", "numpy") || !res.Graph.HasEdge("a", "os") {
		t.Errorf("missing edges: %v", res.Graph.Edges())
	}

	// Same scan, different filter, no rescan.
	custom, err := Analyze(context.Background(), scan, depgraph.Include{Custom: true})
	if err != nil {
		t.Fatalf("Analyze custom: %v", err)
	}
	if got := custom.Graph.Nodes(); len(got) != 2 {
		t.Errorf("custom-only nodes = %v", got)
	}
	if !res.Graph.HasNode("numpy") {
		t.Error("first graph must be unaffected by the second analysis")
	}
}

func TestScan_UnknownLanguage(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Scan.Language = "cobol"

	_, err := Scan(context.Background(), cfg)
	var ce *ir.ConfigurationError
	if !errors.As(err, &ce) || ce.Field != "scan.language" {
		t.Fatalf("expected scan.language configuration error, got %v", err)
	}
	if !strings.Contains(ce.Reason, "perl, python") {
		t.Errorf("reason = %q", ce.Reason)
	}
}

func TestScan_InvalidConfig(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Graph.Include = depgraph.Include{}

	_, err := Scan(context.Background(), cfg)
	var ce *ir.ConfigurationError
	if !errors.As(err, &ce) || ce.Field != "graph.include" {
		t.Fatalf("expected graph.include configuration error, got %v", err)
	}
}

func TestAnalyze_Cycle(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py": "import b\n",
		"b.py": "import a\n",
	})
	scan, err := Scan(context.Background(), testConfig(root))
	if err != nil {
		t.Fatal(err)
	}
	_, err = Analyze(context.Background(), scan, depgraph.IncludeAll())
	var se *ir.StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("expected *ir.StructuralError, got %v", err)
	}
	if !reflect.DeepEqual(se.Cycles, [][]string{{"a", "b"}}) {
		t.Errorf("cycles = %v", se.Cycles)
	}
}

func TestWriteOutputs(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py": "import os\nimport b\n",
		"b.py": "import numpy\n",
	})
	scan, err := Scan(context.Background(), testConfig(root))
	if err != nil {
		t.Fatal(err)
	}
	res, err := Analyze(context.Background(), scan, depgraph.IncludeAll())
	if err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(t.TempDir(), "out")
	formats := []string{config.FormatText, config.FormatJSON, config.FormatDOT, config.FormatMermaid}
	outputs, err := WriteOutputs(context.Background(), res, dir, formats, depgraph.DefaultPalette())
	if err != nil {
		t.Fatalf("WriteOutputs: %v", err)
	}
	if len(outputs) != 4 {
		t.Fatalf("expected 4 outputs, got %d", len(outputs))
	}

	want := map[string]string{
		config.FormatText:    depgraph.ReportFileName,
		config.FormatJSON:    JSONFileName,
		config.FormatDOT:     DOTFileName,
		config.FormatMermaid: MermaidFileName,
	}
	for _, o := range outputs {
		if filepath.Base(o.Path) != want[o.Format] {
			t.Errorf("%s written to %s", o.Format, o.Path)
		}
		info, err := os.Stat(o.Path)
		if err != nil {
			t.Fatalf("stat %s: %v", o.Path, err)
		}
		if int(info.Size()) != o.Bytes {
			t.Errorf("%s: size %d, reported %d", o.Format, info.Size(), o.Bytes)
		}
	}

	report, err := os.ReadFile(filepath.Join(dir, depgraph.ReportFileName))
	if err != nil {
		t.Fatal(err)
	}
	if string(report) != depgraph.FormatReport(res.Graph) {
		t.Error("report file differs from FormatReport")
	}
}

func TestWriteOutputs_UnknownFormat(t *testing.T) {
	scan := &ir.Scan{
		Registry: ir.NewRegistry(nil),
		Canopy:   ir.NewCanopy(map[string][]string{"a": nil}),
		Records:  []*ir.FileRecord{{Key: "a", Category: ir.Custom}},
	}
	res, err := Analyze(context.Background(), scan, depgraph.IncludeAll())
	if err != nil {
		t.Fatal(err)
	}
	_, err = WriteOutputs(context.Background(), res, t.TempDir(), []string{"svg"}, depgraph.DefaultPalette())
	var ce *ir.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRun(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py":     "import os\nimport b\n",
		"b.py":     "import numpy\n",
		"bad.py":   "import\n",
		"pkg/c.py": "import a\n",
	})
	cfg := testConfig(root)
	cfg.Scan.SkipFailed = true
	cfg.Output.Formats = []string{config.FormatText, config.FormatJSON}

	res, m, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.Graph.TopLevel(); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("top level = %v", got)
	}
	if m.Scan.FailureCount != 1 || len(m.Errors) != 1 {
		t.Errorf("expected one skipped file, got %+v / %v", m.Scan, m.Errors)
	}
	if len(m.Phases) != 3 || len(m.Outputs) != 2 {
		t.Errorf("phases = %v, outputs = %v", m.Phases, m.Outputs)
	}
	if _, err := os.Stat(filepath.Join(root, depgraph.ReportFileName)); err != nil {
		t.Errorf("report should default to the scanned root: %v", err)
	}
}

func TestRun_FailureFinishesMetrics(t *testing.T) {
	root := writeTree(t, map[string]string{"bad.py": "from import x\n"})

	_, m, err := Run(context.Background(), testConfig(root))
	var se *ir.ScanError
	if !errors.As(err, &se) {
		t.Fatalf("expected *ir.ScanError, got %v", err)
	}
	if m.FinishedAt.IsZero() || len(m.Errors) != 1 {
		t.Errorf("metrics not finished: %+v", m)
	}
}
