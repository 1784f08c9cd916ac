// Package extract provides AI-assisted field extraction for project board
// items, backed by a per-project cache of previous extractions.
package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/boardtrack/boardtrack/internal/logging"
)

// Entry is one cached extraction result. Entries are written by the
// extractor after every successful backend call and reused as long as
// the issue has not been updated since.
type Entry struct {
	// Fields holds the extracted field values keyed by extraction field name
	Fields map[string]string `json:"fields"`

	// Timestamp records when the extraction ran, RFC 3339
	Timestamp string `json:"timestamp"`

	// Model is the deployment that produced the extraction. Metadata only;
	// changing model does not invalidate entries.
	Model string `json:"model"`

	// IssueUpdatedAt is the item's updatedAt at extraction time, RFC 3339
	IssueUpdatedAt string `json:"issue_updated_at"`
}

// Store is the extraction cache interface. Implementations are scoped
// to one (owner, project) namespace; keys are "owner/repo#number".
type Store interface {
	Get(key string) (Entry, bool)
	Put(key string, entry Entry) error
	IsStale(entry Entry, currentUpdatedAt time.Time) bool
}

// entryStale reports whether a cached entry predates the item's current
// updatedAt. Entries with a missing or unparsable snapshot count as
// stale so they are always recomputed.
func entryStale(entry Entry, currentUpdatedAt time.Time) bool {
	if entry.IssueUpdatedAt == "" {
		return true
	}
	cached, err := time.Parse(time.RFC3339, entry.IssueUpdatedAt)
	if err != nil {
		return true
	}
	return cached.Before(currentUpdatedAt)
}

// FileStore persists one extraction namespace to a JSON file. Every Put
// rewrites the whole file; extraction volume per run is bounded by the
// project's issue count, so the cost is acceptable.
type FileStore struct {
	path string
	data map[string]Entry
}

// sanitizeOwner makes an owner login safe for use in a file name.
func sanitizeOwner(owner string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, owner)
}

// NewFileStore opens the cache namespace for (owner, project) under dir,
// creating the directory if needed. A missing namespace file yields an
// empty cache; an unreadable or corrupt file is treated the same way and
// logged, never surfaced as an error.
func NewFileStore(dir string, owner string, project int) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("extractions_%s_project_%d.json", sanitizeOwner(owner), project))

	store := &FileStore{
		path: path,
		data: make(map[string]Entry),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("failed to read extraction cache, starting empty",
				"path", path,
				"error", err)
		}
		return store, nil
	}

	if err := json.Unmarshal(raw, &store.data); err != nil {
		logging.Warn("extraction cache is corrupt, starting empty",
			"path", path,
			"error", err)
		store.data = make(map[string]Entry)
	}

	return store, nil
}

// Path returns the namespace's file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the cached entry for key, if any.
func (s *FileStore) Get(key string) (Entry, bool) {
	entry, ok := s.data[key]
	return entry, ok
}

// Put stores an entry and immediately rewrites the namespace file.
func (s *FileStore) Put(key string, entry Entry) error {
	s.data[key] = entry

	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode extraction cache: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write extraction cache %s: %w", s.path, err)
	}
	return nil
}

// IsStale reports whether entry predates currentUpdatedAt.
func (s *FileStore) IsStale(entry Entry, currentUpdatedAt time.Time) bool {
	return entryStale(entry, currentUpdatedAt)
}

// MemoryStore is an in-process Store with no persistence, used in tests
// and as a fallback when no cache directory is available.
type MemoryStore struct {
	data map[string]Entry
}

// NewMemoryStore creates an empty in-memory cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Entry)}
}

// Get returns the cached entry for key, if any.
func (s *MemoryStore) Get(key string) (Entry, bool) {
	entry, ok := s.data[key]
	return entry, ok
}

// Put stores an entry.
func (s *MemoryStore) Put(key string, entry Entry) error {
	s.data[key] = entry
	return nil
}

// IsStale reports whether entry predates currentUpdatedAt.
func (s *MemoryStore) IsStale(entry Entry, currentUpdatedAt time.Time) bool {
	return entryStale(entry, currentUpdatedAt)
}
