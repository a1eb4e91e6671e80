// Package file implements the project registry as a single JSON file.
// The file is the process-wide source of truth for project existence:
// every mutation reloads it, applies the change and commits with a
// temp-file-plus-rename write while holding the writer lock. Readers get
// defensively-copied snapshots and never contend with writers beyond
// snapshot acquisition.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
	"github.com/custodia-labs/docquery/internal/logger"
)

// Ensure Registry implements the interface.
var _ driven.ProjectRegistry = (*Registry)(nil)

// Registry is a JSON-file-backed project registry.
type Registry struct {
	mu       sync.Mutex // writer lock; serializes load-apply-commit cycles
	filePath string
	cache    map[string]projectRecord // last committed state, for snapshot reads
	cacheMu  sync.RWMutex
}

// projectRecord is the persisted shape of a project. Timestamps are
// ISO-8601 strings in the file.
type projectRecord struct {
	ID           string                    `json:"id"`
	DisplayName  string                    `json:"display_name"`
	Backend      string                    `json:"backend_kind"`
	CreatedAt    time.Time                 `json:"created_at"`
	SystemPrompt string                    `json:"system_prompt,omitempty"`
	Documents    map[string]documentRecord `json:"documents"`
}

type documentRecord struct {
	IndexedAt  time.Time `json:"indexed_at"`
	ChunkCount int       `json:"chunk_count,omitempty"`
}

// Open loads the registry from dir/projects.json, creating the directory
// if needed. A malformed file is fatal: the caller must refuse to serve
// rather than silently discard project metadata.
func Open(dir string) (*Registry, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".docquery")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating registry directory: %w", err)
	}

	r := &Registry{filePath: filepath.Join(dir, "projects.json")}

	records, err := r.load()
	if err != nil {
		return nil, err
	}
	r.cache = records
	logger.Info("Registry loaded: %d project(s) from %s", len(records), r.filePath)

	return r, nil
}

// Path returns the registry file path.
func (r *Registry) Path() string {
	return r.filePath
}

// load reads and parses the registry file. A missing file is an empty
// registry; a corrupt one is an error.
func (r *Registry) load() (map[string]projectRecord, error) {
	data, err := os.ReadFile(r.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]projectRecord), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry file: %w", err)
	}

	if len(data) == 0 {
		return make(map[string]projectRecord), nil
	}

	var records map[string]projectRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("registry file %s is corrupt: %w", r.filePath, err)
	}
	if records == nil {
		records = make(map[string]projectRecord)
	}
	return records, nil
}

// commit writes records to a temp file and renames it over the registry
// file. Callers must hold the writer lock. I/O failure surfaces as
// domain.ErrWriteConflict.
func (r *Registry) commit(records map[string]projectRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding registry: %v", domain.ErrWriteConflict, err)
	}

	tmpPath := r.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("%w: writing %s: %v", domain.ErrWriteConflict, tmpPath, err)
	}
	if err := os.Rename(tmpPath, r.filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: replacing %s: %v", domain.ErrWriteConflict, r.filePath, err)
	}

	r.cacheMu.Lock()
	r.cache = records
	r.cacheMu.Unlock()
	return nil
}

// mutate runs one load-apply-commit cycle under the writer lock.
func (r *Registry) mutate(apply func(map[string]projectRecord) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	if err := apply(records); err != nil {
		return err
	}
	return r.commit(records)
}

// snapshot returns a deep copy of the last committed state.
func (r *Registry) snapshot() map[string]projectRecord {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	out := make(map[string]projectRecord, len(r.cache))
	for id, rec := range r.cache {
		docs := make(map[string]documentRecord, len(rec.Documents))
		for name, doc := range rec.Documents {
			docs[name] = doc
		}
		rec.Documents = docs
		out[id] = rec
	}
	return out
}

// Create persists a new project record.
func (r *Registry) Create(_ context.Context, project domain.Project) error {
	return r.mutate(func(records map[string]projectRecord) error {
		if _, ok := records[project.ID]; ok {
			return fmt.Errorf("%w: project %s", domain.ErrAlreadyExists, project.ID)
		}
		records[project.ID] = toRecord(project)
		logger.Debug("Registry: created project %s (%s)", project.ID, project.Backend)
		return nil
	})
}

// Get returns a copy of a project.
func (r *Registry) Get(_ context.Context, id string) (domain.Project, error) {
	rec, ok := r.snapshot()[id]
	if !ok {
		return domain.Project{}, fmt.Errorf("%w: project %s", domain.ErrNotFound, id)
	}
	return fromRecord(rec), nil
}

// List returns all projects ordered by creation time, then ID, so the
// merged view across backends is stable.
func (r *Registry) List(_ context.Context) ([]domain.Project, error) {
	snap := r.snapshot()
	projects := make([]domain.Project, 0, len(snap))
	for _, rec := range snap {
		projects = append(projects, fromRecord(rec))
	}
	sort.Slice(projects, func(i, j int) bool {
		if !projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].CreatedAt.Before(projects[j].CreatedAt)
		}
		return projects[i].ID < projects[j].ID
	})
	return projects, nil
}

// Delete removes a project record.
func (r *Registry) Delete(_ context.Context, id string) error {
	return r.mutate(func(records map[string]projectRecord) error {
		if _, ok := records[id]; !ok {
			return fmt.Errorf("%w: project %s", domain.ErrNotFound, id)
		}
		delete(records, id)
		logger.Debug("Registry: deleted project %s", id)
		return nil
	})
}

// RecordDocument writes a document metadata record.
func (r *Registry) RecordDocument(_ context.Context, id string, doc domain.Document) error {
	return r.mutate(func(records map[string]projectRecord) error {
		rec, ok := records[id]
		if !ok {
			return fmt.Errorf("%w: project %s", domain.ErrNotFound, id)
		}
		if rec.Documents == nil {
			rec.Documents = make(map[string]documentRecord)
		}
		rec.Documents[doc.Name] = documentRecord{
			IndexedAt:  doc.IndexedAt,
			ChunkCount: doc.ChunkCount,
		}
		records[id] = rec
		return nil
	})
}

// RemoveDocument deletes a document metadata record.
func (r *Registry) RemoveDocument(_ context.Context, id, name string) error {
	return r.mutate(func(records map[string]projectRecord) error {
		rec, ok := records[id]
		if !ok {
			return fmt.Errorf("%w: project %s", domain.ErrNotFound, id)
		}
		if _, ok := rec.Documents[name]; !ok {
			return fmt.Errorf("%w: document %s", domain.ErrNotFound, name)
		}
		delete(rec.Documents, name)
		records[id] = rec
		return nil
	})
}

// SetPrompt stores a per-project system prompt.
func (r *Registry) SetPrompt(_ context.Context, id, prompt string) error {
	return r.mutate(func(records map[string]projectRecord) error {
		rec, ok := records[id]
		if !ok {
			return fmt.Errorf("%w: project %s", domain.ErrNotFound, id)
		}
		rec.SystemPrompt = prompt
		records[id] = rec
		return nil
	})
}

func toRecord(p domain.Project) projectRecord {
	docs := make(map[string]documentRecord, len(p.Documents))
	for name, doc := range p.Documents {
		docs[name] = documentRecord{IndexedAt: doc.IndexedAt, ChunkCount: doc.ChunkCount}
	}
	return projectRecord{
		ID:           p.ID,
		DisplayName:  p.DisplayName,
		Backend:      string(p.Backend),
		CreatedAt:    p.CreatedAt,
		SystemPrompt: p.SystemPrompt,
		Documents:    docs,
	}
}

func fromRecord(rec projectRecord) domain.Project {
	docs := make(map[string]domain.Document, len(rec.Documents))
	for name, doc := range rec.Documents {
		docs[name] = domain.Document{
			Name:       name,
			IndexedAt:  doc.IndexedAt,
			ChunkCount: doc.ChunkCount,
		}
	}
	return domain.Project{
		ID:           rec.ID,
		DisplayName:  rec.DisplayName,
		Backend:      domain.BackendKind(rec.Backend),
		CreatedAt:    rec.CreatedAt,
		SystemPrompt: rec.SystemPrompt,
		Documents:    docs,
	}
}
