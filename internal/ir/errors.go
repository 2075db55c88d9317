package ir

import (
	"fmt"
	"strings"
)

// ConfigurationError reports invalid input to the pipeline: a bad root path,
// an empty inclusion filter, or a malformed preset.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("configuration: %s=%q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// ScanError reports a source file whose import syntax could not be parsed.
type ScanError struct {
	Path   string
	Line   int
	Reason string
}

func (e *ScanError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("scan %s:%d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("scan %s: %s", e.Path, e.Reason)
}

// IOError reports a file or directory that could not be read.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// StructuralError reports every cycle found in an assembled graph.
type StructuralError struct {
	Cycles [][]string
}

func (e *StructuralError) Error() string {
	parts := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		parts[i] = "[" + strings.Join(c, " -> ") + "]"
	}
	return fmt.Sprintf("graph contains %d cycle(s): %s", len(e.Cycles), strings.Join(parts, ", "))
}
