package qualitygate

import "fmt"

// GateConfig defines the configuration for quality gates. A zero limit
// disables the matching gate, except MaxFailures where a negative value
// does.
type GateConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	MaxFailures     int    `mapstructure:"max_failures" json:"max_failures"`
	FailureSeverity string `mapstructure:"failure_severity" json:"failure_severity"`

	MaxDepth      int    `mapstructure:"max_depth" json:"max_depth"`
	DepthSeverity string `mapstructure:"depth_severity" json:"depth_severity"`

	MaxFanOut      int    `mapstructure:"max_fan_out" json:"max_fan_out"`
	FanOutSeverity string `mapstructure:"fan_out_severity" json:"fan_out_severity"`

	MaxTopLevel      int    `mapstructure:"max_top_level" json:"max_top_level"`
	TopLevelSeverity string `mapstructure:"top_level_severity" json:"top_level_severity"`

	MaxUncommon      int    `mapstructure:"max_uncommon" json:"max_uncommon"`
	UncommonSeverity string `mapstructure:"uncommon_severity" json:"uncommon_severity"`

	Forbidden         []string `mapstructure:"forbidden" json:"forbidden"`
	ForbiddenSeverity string   `mapstructure:"forbidden_severity" json:"forbidden_severity"`
}

// DefaultConfig returns the default gate configuration: a clean scan is
// required and every graph limit is off.
func DefaultConfig() *GateConfig {
	return &GateConfig{
		Enabled:           true,
		MaxFailures:       0,
		FailureSeverity:   "required",
		DepthSeverity:     "required",
		FanOutSeverity:    "advisory",
		TopLevelSeverity:  "advisory",
		UncommonSeverity:  "advisory",
		ForbiddenSeverity: "critical",
	}
}

// parseSeverity converts a string to GateSeverity.
func parseSeverity(s string) GateSeverity {
	switch s {
	case "critical":
		return SeverityCritical
	case "required":
		return SeverityRequired
	case "advisory":
		return SeverityAdvisory
	default:
		return SeverityRequired
	}
}

// BuildPipeline constructs a gate pipeline from configuration. Forbidden
// patterns that do not compile are a configuration error.
func BuildPipeline(cfg *GateConfig) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	p := NewPipeline()
	if !cfg.Enabled {
		return p, nil
	}

	// Forbidden modules go first so a critical hit skips the rest.
	if len(cfg.Forbidden) > 0 {
		g, err := NewForbiddenImportGate(cfg.Forbidden, parseSeverity(cfg.ForbiddenSeverity))
		if err != nil {
			return nil, err
		}
		p.AddGate(g)
	}

	if cfg.MaxFailures >= 0 {
		p.AddGate(NewScanFailureGate(cfg.MaxFailures, parseSeverity(cfg.FailureSeverity)))
	}

	if cfg.MaxDepth > 0 {
		p.AddGate(NewDepthGate(cfg.MaxDepth, parseSeverity(cfg.DepthSeverity)))
	}

	if cfg.MaxFanOut > 0 {
		p.AddGate(NewFanOutGate(cfg.MaxFanOut, parseSeverity(cfg.FanOutSeverity)))
	}

	if cfg.MaxTopLevel > 0 {
		p.AddGate(NewTopLevelGate(cfg.MaxTopLevel, parseSeverity(cfg.TopLevelSeverity)))
	}

	if cfg.MaxUncommon > 0 {
		p.AddGate(NewUncommonBudgetGate(cfg.MaxUncommon, parseSeverity(cfg.UncommonSeverity)))
	}

	return p, nil
}

// FormatReport returns a human-readable quality gate report.
func FormatReport(result *PipelineResult) string {
	var s string
	s += "╔══════════════════════════════════════════╗\n"
	s += "║        Quality Gate Report               ║\n"
	s += "╠══════════════════════════════════════════╣\n"

	for _, gr := range result.Gates {
		icon := "✓"
		switch gr.Status {
		case GateFailed:
			icon = "✗"
		case GateSkipped:
			icon = "○"
		case GateWarning:
			icon = "⚠"
		}

		severity := ""
		switch gr.Severity {
		case SeverityCritical:
			severity = "[CRITICAL]"
		case SeverityRequired:
			severity = "[REQUIRED]"
		case SeverityAdvisory:
			severity = "[ADVISORY]"
		}

		s += fmt.Sprintf("║ %s %-14s %-10s %s\n", icon, gr.Name, severity, gr.Message)
		for _, d := range gr.Details {
			s += fmt.Sprintf("║   → %s\n", d)
		}
	}

	s += "╠══════════════════════════════════════════╣\n"
	status := "PASSED"
	if result.Status == GateFailed {
		status = "FAILED"
	}
	s += fmt.Sprintf("║ Result: %s (%s)\n", status, result.Summary)
	s += "╚══════════════════════════════════════════╝\n"

	return s
}
