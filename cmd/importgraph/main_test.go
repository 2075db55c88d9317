package main

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/importgraph/internal/config"
	"github.com/efebarandurmaz/importgraph/internal/depgraph"
	"github.com/efebarandurmaz/importgraph/internal/ir"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&ir.ConfigurationError{Field: "scan.root"}, 2},
		{fmt.Errorf("wrapped: %w", &ir.ScanError{Path: "a.py"}), 3},
		{&ir.IOError{Path: "x", Op: "read"}, 4},
		{&ir.StructuralError{Cycles: [][]string{{"a"}}}, 5},
		{fmt.Errorf("check: %w", errGatesFailed), 6},
		{fmt.Errorf("other"), 1},
	}
	for _, tc := range tests {
		if got := exitCode(tc.err); got != tc.want {
			t.Errorf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestLoadConfig_MissingFileFallsBack(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Scan.Language != "python" {
		t.Errorf("language = %q", cfg.Scan.Language)
	}
}

func TestGraphFlags_Apply(t *testing.T) {
	var gf graphFlags
	cmd := &cobra.Command{Use: "test"}
	gf.register(cmd, true)
	if err := cmd.Flags().Parse([]string{"--include", "custom", "--format", "dot,json", "-o", "/tmp/out"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	if err := gf.apply(cmd, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Graph.Include != (depgraph.Include{Custom: true}) {
		t.Errorf("include = %+v", cfg.Graph.Include)
	}
	if len(cfg.Output.Formats) != 2 || cfg.Output.Dir != "/tmp/out" {
		t.Errorf("output = %+v", cfg.Output)
	}
}

func TestGraphFlags_ApplyRejectsUnknownCategory(t *testing.T) {
	var gf graphFlags
	cmd := &cobra.Command{Use: "test"}
	gf.register(cmd, false)
	if err := cmd.Flags().Parse([]string{"--include", "stdlib"}); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	if err := gf.apply(cmd, cfg); exitCode(err) != 2 {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if cfg.Graph.Include != depgraph.IncludeAll() {
		t.Error("config must be unchanged on error")
	}
}
