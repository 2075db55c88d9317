package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/efebarandurmaz/importgraph/internal/ir"
)

const (
	snapshotsDir = "snapshots"
	objectsDir   = "objects"
	indexFile    = "index.json"
	snapshotFile = "snapshot.json"
)

// ErrNotFound is returned when no snapshot matches an ID or tag.
var ErrNotFound = errors.New("snapshot not found")

// Store keeps frozen scans on disk so a graph can be reassembled under a
// different inclusion filter without rescanning the tree. Decoded scans are
// cached; callers must treat a loaded scan as read-only.
type Store struct {
	mu      sync.RWMutex
	rootDir string
	index   *SnapshotIndex
	cache   *lru.Cache[string, *ir.Scan]
}

// NewStore creates or opens a snapshot store at the given directory. A
// cacheSize below one disables the decoded-scan cache.
func NewStore(rootDir string, cacheSize int) (*Store, error) {
	s := &Store{rootDir: rootDir}

	dirs := []string{
		filepath.Join(rootDir, snapshotsDir),
		filepath.Join(rootDir, objectsDir),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &ir.IOError{Path: dir, Op: "mkdir", Err: err}
		}
	}

	if cacheSize > 0 {
		cache, err := lru.New[string, *ir.Scan](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("snapshot cache: %w", err)
		}
		s.cache = cache
	}

	if err := s.loadIndex(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		s.index = &SnapshotIndex{
			Snapshots: []SnapshotSummary{},
			UpdatedAt: time.Now().UTC(),
		}
	}

	return s, nil
}

// Save persists scan and returns its snapshot. Saving a scan that is already
// stored returns the existing snapshot, retagged when tag is not empty.
func (s *Store) Save(scan *ir.Scan, tag string) (*Snapshot, error) {
	data, err := json.Marshal(scan)
	if err != nil {
		return nil, fmt.Errorf("encode scan: %w", err)
	}
	snap := newSnapshot(scan, data)
	snap.Tag = tag

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(snap.ID) >= 0 {
		existing, err := s.readSnapshot(snap.ID)
		if err != nil {
			return nil, err
		}
		if tag == "" || existing.Tag == tag {
			return existing, nil
		}
		return existing, s.setTag(existing, tag)
	}

	if err := s.writeObject(snap.ScanHash, data); err != nil {
		return nil, err
	}
	if err := s.writeSnapshot(snap); err != nil {
		return nil, err
	}

	s.index.Snapshots = append(s.index.Snapshots, snap.Summary())
	s.index.UpdatedAt = time.Now().UTC()
	return snap, s.saveIndex()
}

// Load retrieves a snapshot by ID.
func (s *Store) Load(id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readSnapshot(id)
}

// LoadScan retrieves the scan stored under snapshot id.
func (s *Store) LoadScan(id string) (*ir.Scan, error) {
	if s.cache != nil {
		if scan, ok := s.cache.Get(id); ok {
			return scan, nil
		}
	}

	s.mu.RLock()
	snap, err := s.readSnapshot(id)
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	data, err := s.readObject(snap.ScanHash)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	var scan ir.Scan
	if err := json.Unmarshal(data, &scan); err != nil {
		return nil, fmt.Errorf("decode scan %s: %w", id, err)
	}
	if s.cache != nil {
		s.cache.Add(id, &scan)
	}
	return &scan, nil
}

// List returns all snapshot summaries, newest first.
func (s *Store) List() []SnapshotSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]SnapshotSummary, len(s.index.Snapshots))
	copy(result, s.index.Snapshots)

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result
}

// Resolve maps ref to a snapshot ID. ref may be an ID, a tag, or an ID
// prefix matching exactly one snapshot.
func (s *Store) Resolve(ref string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ref == "" {
		return "", fmt.Errorf("empty snapshot reference: %w", ErrNotFound)
	}
	var prefixed []string
	for _, summary := range s.index.Snapshots {
		if summary.ID == ref || summary.Tag == ref {
			return summary.ID, nil
		}
		if strings.HasPrefix(summary.ID, ref) {
			prefixed = append(prefixed, summary.ID)
		}
	}
	switch len(prefixed) {
	case 0:
		return "", fmt.Errorf("%q: %w", ref, ErrNotFound)
	case 1:
		return prefixed[0], nil
	default:
		return "", fmt.Errorf("%q is ambiguous, matches %s", ref, strings.Join(prefixed, ", "))
	}
}

// FindByTag returns the snapshot with the given tag.
func (s *Store) FindByTag(tag string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, summary := range s.index.Snapshots {
		if summary.Tag == tag {
			return s.readSnapshot(summary.ID)
		}
	}
	return nil, fmt.Errorf("tag %q: %w", tag, ErrNotFound)
}

// Tag assigns a tag to a snapshot.
func (s *Store) Tag(id, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.readSnapshot(id)
	if err != nil {
		return err
	}
	return s.setTag(snap, tag)
}

func (s *Store) setTag(snap *Snapshot, tag string) error {
	snap.Tag = tag
	if err := s.writeSnapshot(snap); err != nil {
		return err
	}
	if i := s.indexOf(snap.ID); i >= 0 {
		s.index.Snapshots[i].Tag = tag
	}
	s.index.UpdatedAt = time.Now().UTC()
	return s.saveIndex()
}

// Delete removes a snapshot and its scan object.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.readSnapshot(id)
	if err != nil {
		return err
	}

	snapDir := filepath.Join(s.rootDir, snapshotsDir, id)
	if err := os.RemoveAll(snapDir); err != nil {
		return &ir.IOError{Path: snapDir, Op: "remove", Err: err}
	}
	if err := os.Remove(s.objectPath(snap.ScanHash)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &ir.IOError{Path: s.objectPath(snap.ScanHash), Op: "remove", Err: err}
	}
	if s.cache != nil {
		s.cache.Remove(id)
	}

	filtered := s.index.Snapshots[:0]
	for _, summary := range s.index.Snapshots {
		if summary.ID != id {
			filtered = append(filtered, summary)
		}
	}
	s.index.Snapshots = filtered
	s.index.UpdatedAt = time.Now().UTC()

	return s.saveIndex()
}

func (s *Store) indexOf(id string) int {
	for i, summary := range s.index.Snapshots {
		if summary.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) readSnapshot(id string) (*Snapshot, error) {
	path := filepath.Join(s.rootDir, snapshotsDir, id, snapshotFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
		}
		return nil, &ir.IOError{Path: path, Op: "read", Err: err}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %s: %w", id, err)
	}
	return &snap, nil
}

func (s *Store) writeSnapshot(snap *Snapshot) error {
	dir := filepath.Join(s.rootDir, snapshotsDir, snap.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &ir.IOError{Path: dir, Op: "mkdir", Err: err}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	path := filepath.Join(dir, snapshotFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &ir.IOError{Path: path, Op: "write", Err: err}
	}
	return nil
}

func (s *Store) objectPath(hash string) string {
	return filepath.Join(s.rootDir, objectsDir, hash[:2], hash[2:])
}

// writeObject stores content by its hash.
func (s *Store) writeObject(hash string, content []byte) error {
	path := s.objectPath(hash)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &ir.IOError{Path: filepath.Dir(path), Op: "mkdir", Err: err}
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return &ir.IOError{Path: path, Op: "write", Err: err}
	}
	return nil
}

func (s *Store) readObject(hash string) ([]byte, error) {
	path := s.objectPath(hash)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ir.IOError{Path: path, Op: "read", Err: err}
	}
	return data, nil
}

func (s *Store) loadIndex() error {
	path := filepath.Join(s.rootDir, indexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s.index = &SnapshotIndex{}
	if err := json.Unmarshal(data, s.index); err != nil {
		return fmt.Errorf("read snapshot index %s: %w", path, err)
	}
	return nil
}

func (s *Store) saveIndex() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.rootDir, indexFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &ir.IOError{Path: path, Op: "write", Err: err}
	}
	return nil
}
