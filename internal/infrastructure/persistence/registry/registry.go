// Package registry implements the process-registry file the cleanup
// manager uses to survive a crash-restart: a single JSON document under the
// OS temp directory listing every native PID a browser driver has spawned,
// rewritten atomically on every change (spec.md §6 "Process registry").
// Grounded on the retrieved daemon's boltdb store's "never leave a
// half-written file behind" discipline, adapted here to a plain JSON file
// since the registry has no query surface beyond "read it all back".
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	appcleanup "github.com/danbao/testring-sub000/internal/application/cleanup"
)

// DefaultPath is the well-known location readers and writers agree on
// within one machine, namespaced by runID so concurrent runs do not
// collide.
func DefaultPath(runID string) string {
	return filepath.Join(os.TempDir(), "testring-sub000-"+runID+".json")
}

// Document is the on-disk shape (spec.md §6): a PID list plus the writer's
// own identity and the time it last rewrote the file.
type Document struct {
	PIDs      []int `json:"pid"`
	WriterPID int   `json:"writerPid"`
	WrittenAt int64 `json:"writtenAt"`
}

// Store owns the single on-disk file at path. It is safe for concurrent
// use by one process only — the spec assigns exactly one writer (the
// owning process) per registry file.
type Store struct {
	path string
}

// New creates a Store writing to path.
func New(path string) *Store {
	return &Store{path: path}
}

// Read loads the current document. A missing file is treated as an empty
// registry rather than an error, since the first writer in a fresh run has
// nothing to read yet. Readers must tolerate partial/old data (spec.md §5)
// — a corrupt file is reported as an error rather than silently emptied, so
// the caller can decide whether to treat it as "start fresh".
func (s *Store) Read() (Document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Document{}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("registry: read %s: %w", s.path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("registry: decode %s: %w", s.path, err)
	}
	return doc, nil
}

// Write rewrites the whole file atomically: write to a temp file in the
// same directory, then rename over the target, so a reader never observes
// a partially-written document (spec.md §6).
func (s *Store) Write(doc Document) error {
	doc.WriterPID = os.Getpid()
	doc.WrittenAt = time.Now().UnixNano()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("registry: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".registry-*.tmp")
	if err != nil {
		return fmt.Errorf("registry: create temp: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("registry: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("registry: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("registry: rename: %w", err)
	}
	return nil
}

// Remove deletes the registry file. Idempotent: removing an already-gone
// file is not an error.
func (s *Store) Remove() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("registry: remove %s: %w", s.path, err)
	}
	return nil
}

// Path returns the file path this Store reads and writes.
func (s *Store) Path() string { return s.path }

// Adapter wraps a *Store to satisfy application/cleanup.Store, converting
// between this package's JSON-tagged Document and cleanup's storage-agnostic
// one.
type Adapter struct {
	*Store
}

// NewAdapter wraps store for use as an application/cleanup.Store.
func NewAdapter(store *Store) Adapter {
	return Adapter{Store: store}
}

// Read loads the document, converted to cleanup.Document.
func (a Adapter) Read() (appcleanup.Document, error) {
	doc, err := a.Store.Read()
	if err != nil {
		return appcleanup.Document{}, err
	}
	return appcleanup.Document(doc), nil
}

// Write persists doc, converted from cleanup.Document.
func (a Adapter) Write(doc appcleanup.Document) error {
	return a.Store.Write(Document(doc))
}

var _ appcleanup.Store = Adapter{}
