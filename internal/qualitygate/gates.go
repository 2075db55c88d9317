package qualitygate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/efebarandurmaz/importgraph/internal/ir"
)

// limitResult fills r for a measured value against an upper limit. Advisory
// gates warn instead of failing.
func limitResult(r *GateResult, value, limit int, what string) {
	r.Threshold = float64(limit)
	if value <= limit {
		r.Status = GatePassed
		r.Score = 1.0
		r.Message = fmt.Sprintf("%s %d within limit %d", what, value, limit)
		return
	}
	r.Score = float64(limit) / float64(value)
	r.Message = fmt.Sprintf("%s %d exceeds limit %d", what, value, limit)
	if r.Severity == SeverityAdvisory {
		r.Status = GateWarning
	} else {
		r.Status = GateFailed
	}
}

// ScanFailureGate limits the number of files skipped during the scan.
type ScanFailureGate struct {
	MaxFailures int
	severity    GateSeverity
}

func NewScanFailureGate(maxFailures int, severity GateSeverity) *ScanFailureGate {
	return &ScanFailureGate{MaxFailures: maxFailures, severity: severity}
}

func (g *ScanFailureGate) Name() string           { return "scan" }
func (g *ScanFailureGate) Severity() GateSeverity { return g.severity }
func (g *ScanFailureGate) Evaluate(ctx *EvalContext) (*GateResult, error) {
	r := &GateResult{Name: g.Name(), Severity: g.severity}
	if ctx.Scan == nil {
		r.Status = GateSkipped
		r.Message = "No scan to evaluate"
		return r, nil
	}
	limitResult(r, len(ctx.Scan.Failures), g.MaxFailures, "Skipped files")
	for _, f := range ctx.Scan.Failures {
		r.Details = append(r.Details, f.Message)
	}
	return r, nil
}

// DepthGate limits the longest import chain.
type DepthGate struct {
	MaxDepth int
	severity GateSeverity
}

func NewDepthGate(maxDepth int, severity GateSeverity) *DepthGate {
	return &DepthGate{MaxDepth: maxDepth, severity: severity}
}

func (g *DepthGate) Name() string           { return "depth" }
func (g *DepthGate) Severity() GateSeverity { return g.severity }
func (g *DepthGate) Evaluate(ctx *EvalContext) (*GateResult, error) {
	r := &GateResult{Name: g.Name(), Severity: g.severity}
	limitResult(r, ctx.Graph.Stats().LongestChain, g.MaxDepth, "Longest import chain")
	return r, nil
}

// FanOutGate limits how many modules a single module imports.
type FanOutGate struct {
	MaxFanOut int
	severity  GateSeverity
}

func NewFanOutGate(maxFanOut int, severity GateSeverity) *FanOutGate {
	return &FanOutGate{MaxFanOut: maxFanOut, severity: severity}
}

func (g *FanOutGate) Name() string           { return "fan_out" }
func (g *FanOutGate) Severity() GateSeverity { return g.severity }
func (g *FanOutGate) Evaluate(ctx *EvalContext) (*GateResult, error) {
	r := &GateResult{Name: g.Name(), Severity: g.severity}

	type offender struct {
		name   string
		degree int
	}
	var over []offender
	for _, n := range ctx.Graph.Nodes() {
		if d := ctx.Graph.OutDegree(n); d > g.MaxFanOut {
			over = append(over, offender{n, d})
		}
	}
	sort.SliceStable(over, func(i, j int) bool { return over[i].degree > over[j].degree })

	limitResult(r, ctx.Graph.Stats().MaxFanOut, g.MaxFanOut, "Largest fan-out")
	for _, o := range over {
		r.Details = append(r.Details, fmt.Sprintf("%s imports %d modules", o.name, o.degree))
	}
	return r, nil
}

// TopLevelGate limits the number of modules nothing imports.
type TopLevelGate struct {
	MaxTopLevel int
	severity    GateSeverity
}

func NewTopLevelGate(maxTopLevel int, severity GateSeverity) *TopLevelGate {
	return &TopLevelGate{MaxTopLevel: maxTopLevel, severity: severity}
}

func (g *TopLevelGate) Name() string           { return "top_level" }
func (g *TopLevelGate) Severity() GateSeverity { return g.severity }
func (g *TopLevelGate) Evaluate(ctx *EvalContext) (*GateResult, error) {
	r := &GateResult{Name: g.Name(), Severity: g.severity}
	top := ctx.Graph.TopLevel()
	limitResult(r, len(top), g.MaxTopLevel, "Top-level modules")
	if r.Status != GatePassed {
		r.Details = top
	}
	return r, nil
}

// UncommonBudgetGate limits the number of distinct third-party (uncommon)
// dependencies observed by the scan.
type UncommonBudgetGate struct {
	MaxUncommon int
	severity    GateSeverity
}

func NewUncommonBudgetGate(maxUncommon int, severity GateSeverity) *UncommonBudgetGate {
	return &UncommonBudgetGate{MaxUncommon: maxUncommon, severity: severity}
}

func (g *UncommonBudgetGate) Name() string           { return "uncommon" }
func (g *UncommonBudgetGate) Severity() GateSeverity { return g.severity }
func (g *UncommonBudgetGate) Evaluate(ctx *EvalContext) (*GateResult, error) {
	r := &GateResult{Name: g.Name(), Severity: g.severity}
	if ctx.Scan == nil || ctx.Scan.Registry == nil {
		r.Status = GateSkipped
		r.Message = "No scan to evaluate"
		return r, nil
	}
	names := ctx.Scan.Registry.Names(ir.Uncommon)
	limitResult(r, len(names), g.MaxUncommon, "Uncommon dependencies")
	if r.Status != GatePassed {
		r.Details = names
	}
	return r, nil
}

// ForbiddenImportGate fails when the graph contains a module matching any
// of its glob patterns.
type ForbiddenImportGate struct {
	Patterns []string
	globs    []glob.Glob
	severity GateSeverity
}

func NewForbiddenImportGate(patterns []string, severity GateSeverity) (*ForbiddenImportGate, error) {
	g := &ForbiddenImportGate{Patterns: patterns, severity: severity}
	for _, p := range patterns {
		compiled, err := glob.Compile(p)
		if err != nil {
			return nil, &ir.ConfigurationError{Field: "gates.forbidden", Value: p, Reason: err.Error()}
		}
		g.globs = append(g.globs, compiled)
	}
	return g, nil
}

func (g *ForbiddenImportGate) Name() string           { return "forbidden" }
func (g *ForbiddenImportGate) Severity() GateSeverity { return g.severity }
func (g *ForbiddenImportGate) Evaluate(ctx *EvalContext) (*GateResult, error) {
	r := &GateResult{Name: g.Name(), Severity: g.severity}

	nodes := ctx.Graph.Nodes()
	var hits []string
	for _, n := range nodes {
		if !g.matches(n) {
			continue
		}
		var importers []string
		for _, m := range nodes {
			if ctx.Graph.HasEdge(m, n) {
				importers = append(importers, m)
			}
		}
		if len(importers) == 0 {
			hits = append(hits, n)
			continue
		}
		hits = append(hits, fmt.Sprintf("%s imported by %s", n, strings.Join(importers, ", ")))
	}

	limitResult(r, len(hits), 0, "Forbidden modules")
	r.Details = hits
	return r, nil
}

func (g *ForbiddenImportGate) matches(name string) bool {
	for _, gl := range g.globs {
		if gl.Match(name) {
			return true
		}
	}
	return false
}
