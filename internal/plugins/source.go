package plugins

import "context"

// SourceFile represents a single input file to be scanned.
type SourceFile struct {
	Path    string
	Content []byte
}

// SourcePlugin reduces the import syntax of one source language to the flat
// list of module identifiers each file references.
type SourcePlugin interface {
	// Language returns the source language identifier (e.g. "python").
	Language() string
	// FileExtensions lists the extensions the plugin scans, with leading dot.
	FileExtensions() []string
	// ScanImports returns the unique top-level module identifiers referenced
	// by f's import statements, in first-occurrence order. A malformed file
	// yields an *ir.ScanError.
	ScanImports(ctx context.Context, f SourceFile) ([]string, error)
}
