// Package tree walks a source tree, scans every matching file for imports
// and freezes the results into an ir.Scan.
package tree

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/efebarandurmaz/importgraph/internal/classify"
	"github.com/efebarandurmaz/importgraph/internal/ir"
	"github.com/efebarandurmaz/importgraph/internal/plugins"
)

// Option configures a Builder.
type Option func(*Builder) error

// WithSkipFailed makes unreadable or unparsable files non-fatal. They are
// logged and reported on Scan.Failures.
func WithSkipFailed(skip bool) Option {
	return func(b *Builder) error {
		b.skipFailed = skip
		return nil
	}
}

// WithWorkers bounds the number of files scanned concurrently. Values below
// one select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(b *Builder) error {
		if n < 1 {
			n = runtime.GOMAXPROCS(0)
		}
		b.workers = n
		return nil
	}
}

// WithExclude skips files and directories whose base name matches any of
// the glob patterns.
func WithExclude(patterns ...string) Option {
	return func(b *Builder) error {
		for _, p := range patterns {
			g, err := glob.Compile(p)
			if err != nil {
				return &ir.ConfigurationError{Field: "scan.exclude", Value: p, Reason: err.Error()}
			}
			b.exclude = append(b.exclude, g)
		}
		return nil
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) error {
		if l != nil {
			b.logger = l
		}
		return nil
	}
}

// Builder drives an import scanner over a directory tree.
type Builder struct {
	plugin     plugins.SourcePlugin
	index      *classify.Index
	skipFailed bool
	workers    int
	exclude    []glob.Glob
	extensions map[string]bool
	logger     *slog.Logger
}

func NewBuilder(plugin plugins.SourcePlugin, index *classify.Index, opts ...Option) (*Builder, error) {
	if plugin == nil {
		return nil, &ir.ConfigurationError{Field: "scan.language", Reason: "no source plugin"}
	}
	if index == nil {
		return nil, &ir.ConfigurationError{Field: "preset", Reason: "no classification index"}
	}
	b := &Builder{
		plugin:     plugin,
		index:      index,
		workers:    runtime.GOMAXPROCS(0),
		extensions: make(map[string]bool),
		logger:     slog.Default(),
	}
	for _, ext := range plugin.FileExtensions() {
		b.extensions[strings.ToLower(ext)] = true
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

type sourcePath struct {
	abs string
	rel string
	key string
}

type scanResult struct {
	ids  []string
	hash string
	err  error
}

// Build walks root and returns the frozen scan. Files are scanned
// concurrently and merged by a single writer in walk order, so the result
// does not depend on scheduling.
func (b *Builder) Build(ctx context.Context, root string) (*ir.Scan, error) {
	root, err := checkRoot(root)
	if err != nil {
		return nil, err
	}

	paths, walkFailures, err := b.walk(root)
	if err != nil {
		return nil, err
	}

	results := make([]scanResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, sp := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = b.scanFile(gctx, sp)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := newMerger(b.index)
	m.failures = walkFailures
	for i, sp := range paths {
		res := results[i]
		if res.err != nil {
			if !b.skipFailed {
				return nil, res.err
			}
			b.logger.Warn("skipping file", "path", sp.rel, "error", res.err)
			m.failures = append(m.failures, ir.FileFailure{Path: sp.rel, Message: res.err.Error(), Err: res.err})
			continue
		}
		if m.add(sp, res) {
			b.logger.Warn("duplicate module key, merging records", "key", sp.key, "path", sp.rel)
		}
	}

	scan := m.freeze()
	scan.Root = root
	scan.Language = b.plugin.Language()
	b.logger.Debug("scan complete",
		"root", root,
		"files", len(paths),
		"records", len(scan.Records),
		"identifiers", scan.Registry.Len(),
		"failures", len(scan.Failures),
	)
	return scan, nil
}

func checkRoot(root string) (string, error) {
	if root == "" {
		return "", &ir.ConfigurationError{Field: "scan.root", Reason: "root directory is required"}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", &ir.ConfigurationError{Field: "scan.root", Value: root, Reason: err.Error()}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", &ir.ConfigurationError{Field: "scan.root", Value: root, Reason: err.Error()}
	}
	if !info.IsDir() {
		return "", &ir.ConfigurationError{Field: "scan.root", Value: root, Reason: "not a directory"}
	}
	if _, err := os.ReadDir(abs); err != nil {
		return "", &ir.ConfigurationError{Field: "scan.root", Value: root, Reason: "unreadable: " + err.Error()}
	}
	return abs, nil
}

// walk lists the source files under root in lexical order.
func (b *Builder) walk(root string) ([]sourcePath, []ir.FileFailure, error) {
	var paths []sourcePath
	var failures []ir.FileFailure
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		rel, _ := filepath.Rel(root, p)
		rel = filepath.ToSlash(rel)
		if err != nil {
			ioErr := &ir.IOError{Path: p, Op: "walk", Err: err}
			if p == root || !b.skipFailed {
				return ioErr
			}
			b.logger.Warn("skipping unreadable path", "path", rel, "error", err)
			failures = append(failures, ir.FileFailure{Path: rel, Message: ioErr.Error(), Err: ioErr})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p != root && b.excluded(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(d.Name())
		if !b.extensions[strings.ToLower(ext)] {
			return nil
		}
		paths = append(paths, sourcePath{
			abs: p,
			rel: rel,
			key: strings.TrimSuffix(d.Name(), ext),
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return paths, failures, nil
}

func (b *Builder) excluded(name string) bool {
	for _, g := range b.exclude {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (b *Builder) scanFile(ctx context.Context, sp sourcePath) scanResult {
	data, err := os.ReadFile(sp.abs)
	if err != nil {
		return scanResult{err: &ir.IOError{Path: sp.abs, Op: "read", Err: err}}
	}
	ids, err := b.plugin.ScanImports(ctx, plugins.SourceFile{Path: sp.abs, Content: data})
	if err != nil {
		var se *ir.ScanError
		if !errors.As(err, &se) {
			err = &ir.ScanError{Path: sp.abs, Reason: err.Error()}
		}
		return scanResult{err: err}
	}
	return scanResult{ids: ids, hash: hashBytes(data)}
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
