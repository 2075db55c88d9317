package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/efebarandurmaz/importgraph/internal/ir"
)

// Snapshot describes one stored scan. The scan itself is kept as a
// content-addressed object named by ScanHash.
type Snapshot struct {
	ID              string      `json:"id"`
	Tag             string      `json:"tag,omitempty"`
	Description     string      `json:"description,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	Root            string      `json:"root"`
	Language        string      `json:"language"`
	ScanHash        string      `json:"scan_hash"`
	FileCount       int         `json:"file_count"`
	RecordCount     int         `json:"record_count"`
	IdentifierCount int         `json:"identifier_count"`
	FailureCount    int         `json:"failure_count"`
	FileManifest    []FileEntry `json:"file_manifest"`
}

// FileEntry records a scanned source file with its content hash.
type FileEntry struct {
	Path        string `json:"path"`
	ContentHash string `json:"content_hash"`
}

// SnapshotIndex is a lightweight listing of all snapshots for fast lookup.
type SnapshotIndex struct {
	Snapshots []SnapshotSummary `json:"snapshots"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SnapshotSummary is the minimal info for listing snapshots.
type SnapshotSummary struct {
	ID          string    `json:"id"`
	Tag         string    `json:"tag,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Root        string    `json:"root"`
	Language    string    `json:"language"`
	FileCount   int       `json:"file_count"`
	RecordCount int       `json:"record_count"`
}

// newSnapshot describes scan, whose encoded form is data. The ID derives
// from data alone, so saving an identical scan twice yields the same ID.
func newSnapshot(scan *ir.Scan, data []byte) *Snapshot {
	hash := ContentHash(data)
	snap := &Snapshot{
		ID:              hash[:16],
		CreatedAt:       time.Now().UTC(),
		Root:            scan.Root,
		Language:        scan.Language,
		ScanHash:        hash,
		FileCount:       len(scan.Files),
		RecordCount:     len(scan.Records),
		IdentifierCount: scan.Registry.Len(),
		FailureCount:    len(scan.Failures),
	}
	for path, h := range scan.Files {
		snap.FileManifest = append(snap.FileManifest, FileEntry{Path: path, ContentHash: h})
	}
	sort.Slice(snap.FileManifest, func(i, j int) bool {
		return snap.FileManifest[i].Path < snap.FileManifest[j].Path
	})
	return snap
}

// ContentHash computes SHA-256 of content.
func ContentHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// Summary returns a lightweight summary of this snapshot.
func (s *Snapshot) Summary() SnapshotSummary {
	return SnapshotSummary{
		ID:          s.ID,
		Tag:         s.Tag,
		CreatedAt:   s.CreatedAt,
		Root:        s.Root,
		Language:    s.Language,
		FileCount:   s.FileCount,
		RecordCount: s.RecordCount,
	}
}
