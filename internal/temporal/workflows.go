package temporal

import (
	"encoding/json"
	"fmt"
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/efebarandurmaz/importgraph/internal/classify"
	"github.com/efebarandurmaz/importgraph/internal/depgraph"
	"github.com/efebarandurmaz/importgraph/internal/ir"
)

// Analysis failures are deterministic; an activity runs once.
const maxAttempts = 1

// AnalysisInput holds the workflow parameters. Nil or empty fields fall back
// to the worker configuration.
type AnalysisInput struct {
	Root       string
	Language   string
	Exclude    []string
	SkipFailed bool
	Preset     *classify.Preset
	Include    *depgraph.Include

	// OutputDir and Formats select the files written by AssembleActivity.
	// No formats means no files.
	OutputDir string
	Formats   []string

	// Store persists the graph under Project through the worker's
	// repository.
	Store   bool
	Project string
}

// AnalysisOutput holds the workflow result.
type AnalysisOutput struct {
	Files    int
	Failures []string
	Nodes    int
	Edges    int
	TopLevel []string
	Outputs  []string
	Stored   bool
}

// AnalysisWorkflow scans a tree, assembles its import graph and optionally
// stores it.
func AnalysisWorkflow(ctx workflow.Context, input AnalysisInput) (*AnalysisOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &sdktemporal.RetryPolicy{
			MaximumAttempts: maxAttempts,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	// Step 1: scan
	var scanJSON string
	if err := workflow.ExecuteActivity(ctx, ScanActivity, input).Get(ctx, &scanJSON); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	summary, err := summarizeScan(scanJSON)
	if err != nil {
		return nil, err
	}
	logger.Info("scan finished", "files", summary.Files, "skipped", len(summary.Failures))

	// Step 2: assemble and export
	var assembled AssembleResult
	if err := workflow.ExecuteActivity(ctx, AssembleActivity, input, scanJSON).Get(ctx, &assembled); err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}

	output := &AnalysisOutput{
		Files:    summary.Files,
		Failures: summary.Failures,
		Nodes:    assembled.Nodes,
		Edges:    assembled.Edges,
		TopLevel: assembled.TopLevel,
		Outputs:  assembled.Outputs,
	}

	// Step 3: store
	if input.Store {
		if err := workflow.ExecuteActivity(ctx, StoreActivity, input, scanJSON).Get(ctx, nil); err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		output.Stored = true
	}

	return output, nil
}

type scanSummary struct {
	Files    int
	Failures []string
}

// summarizeScan reads the counts the workflow reports without decoding the
// whole scan.
func summarizeScan(scanJSON string) (scanSummary, error) {
	var partial struct {
		Files    map[string]string `json:"files"`
		Failures []ir.FileFailure  `json:"failures"`
	}
	if err := json.Unmarshal([]byte(scanJSON), &partial); err != nil {
		return scanSummary{}, fmt.Errorf("decode scan: %w", err)
	}
	s := scanSummary{Files: len(partial.Files)}
	for _, f := range partial.Failures {
		s.Failures = append(s.Failures, f.Message)
	}
	return s, nil
}
