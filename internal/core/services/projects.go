package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
	"github.com/custodia-labs/docquery/internal/core/ports/driving"
	"github.com/custodia-labs/docquery/internal/logger"
)

// Ensure ProjectService implements the interface.
var _ driving.ProjectService = (*ProjectService)(nil)

// ProjectService orchestrates the project/document/query lifecycle over
// the registry and the configured backends. Backend selection is a
// single dispatch on the project's stored backend kind.
type ProjectService struct {
	registry driven.ProjectRegistry
	backends map[domain.BackendKind]driven.Backend
	now      func() time.Time

	// writeLocks serializes document writes per project so that the
	// duplicate check, the backend write and the registry record form
	// one critical section. Without it two racing uploads of the same
	// name would both pass the check and the content would be indexed
	// twice behind a single registry record.
	writeLocksMu sync.Mutex
	writeLocks   map[string]*sync.Mutex
}

// NewProjectService creates a project service over the given backends.
func NewProjectService(registry driven.ProjectRegistry, backends ...driven.Backend) *ProjectService {
	byKind := make(map[domain.BackendKind]driven.Backend, len(backends))
	for _, backend := range backends {
		byKind[backend.Kind()] = backend
	}
	return &ProjectService{
		registry:   registry,
		backends:   byKind,
		now:        time.Now,
		writeLocks: make(map[string]*sync.Mutex),
	}
}

// CreateProject provisions a backend store and registers the project.
// If the registry write fails the freshly created store is torn down so
// no orphaned stores accumulate.
func (s *ProjectService) CreateProject(ctx context.Context, displayName string, kind domain.BackendKind) (domain.ProjectSummary, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return domain.ProjectSummary{}, fmt.Errorf("%w: project name is empty", domain.ErrInvalidInput)
	}

	backend, err := s.backendFor(kind)
	if err != nil {
		return domain.ProjectSummary{}, err
	}

	id, err := backend.CreateStore(ctx, displayName)
	if err != nil {
		return domain.ProjectSummary{}, err
	}

	project := domain.Project{
		ID:          id,
		DisplayName: displayName,
		Backend:     kind,
		CreatedAt:   s.now().UTC(),
		Documents:   make(map[string]domain.Document),
	}
	if err := s.registry.Create(ctx, project); err != nil {
		if deleteErr := backend.DeleteStore(ctx, project); deleteErr != nil {
			logger.Warn("Orphaned store %s could not be removed, %v", id, deleteErr)
		}
		return domain.ProjectSummary{}, err
	}

	logger.Debug("Created project %s (%s backend)", id, kind)
	return project.Summary(), nil
}

// ListProjects returns the unified listing across both backends.
func (s *ProjectService) ListProjects(ctx context.Context) ([]domain.ProjectSummary, error) {
	projects, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]domain.ProjectSummary, len(projects))
	for i, project := range projects {
		summaries[i] = project.Summary()
	}
	return summaries, nil
}

// DeleteProject removes the backend store first and the registry record
// only once that succeeds, so a failed store deletion never leaves a
// registry entry pointing at nothing.
func (s *ProjectService) DeleteProject(ctx context.Context, id string) error {
	project, err := s.registry.Get(ctx, id)
	if err != nil {
		return err
	}
	backend, err := s.backendFor(project.Backend)
	if err != nil {
		return err
	}
	if err := backend.DeleteStore(ctx, project); err != nil {
		return err
	}
	return s.registry.Delete(ctx, id)
}

// ListDocuments returns the project's document records in indexing
// order.
func (s *ProjectService) ListDocuments(ctx context.Context, id string) ([]domain.DocumentSummary, error) {
	project, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	names := project.DocumentNames()
	summaries := make([]domain.DocumentSummary, len(names))
	for i, name := range names {
		summaries[i] = project.Documents[name].Summary()
	}
	return summaries, nil
}

// UploadDocument ingests a document through the project's backend and
// records it in the registry only after the backend reports full
// success. A failed registry write removes the just-indexed content so
// the two stores never disagree.
func (s *ProjectService) UploadDocument(ctx context.Context, id, name string, content []byte) (domain.DocumentSummary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.DocumentSummary{}, fmt.Errorf("%w: document name is empty", domain.ErrInvalidInput)
	}

	unlock := s.lockWrites(id)
	defer unlock()

	project, err := s.registry.Get(ctx, id)
	if err != nil {
		return domain.DocumentSummary{}, err
	}
	if _, exists := project.Documents[name]; exists {
		return domain.DocumentSummary{}, fmt.Errorf("%w: document %s in project %s", domain.ErrAlreadyExists, name, id)
	}

	backend, err := s.backendFor(project.Backend)
	if err != nil {
		return domain.DocumentSummary{}, err
	}

	summary, err := backend.Upload(ctx, project, name, content)
	if err != nil {
		return domain.DocumentSummary{}, err
	}

	doc := domain.Document{
		Name:       summary.Name,
		IndexedAt:  summary.IndexedAt,
		ChunkCount: summary.ChunkCount,
	}
	if err := s.registry.RecordDocument(ctx, id, doc); err != nil {
		if deleteErr := backend.DeleteDocument(ctx, project, name); deleteErr != nil {
			logger.Warn("Unrecorded document %s could not be removed, %v", name, deleteErr)
		}
		return domain.DocumentSummary{}, err
	}

	logger.Debug("Indexed %s into %s (%d chunks)", name, id, summary.ChunkCount)
	return summary, nil
}

// DeleteDocument removes a document from the backend and its registry
// record.
func (s *ProjectService) DeleteDocument(ctx context.Context, id, name string) error {
	unlock := s.lockWrites(id)
	defer unlock()

	project, err := s.registry.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, exists := project.Documents[name]; !exists {
		return fmt.Errorf("%w: document %s in project %s", domain.ErrNotFound, name, id)
	}

	backend, err := s.backendFor(project.Backend)
	if err != nil {
		return err
	}
	if err := backend.DeleteDocument(ctx, project, name); err != nil {
		return err
	}
	return s.registry.RemoveDocument(ctx, id, name)
}

// Query answers a question grounded in the project's documents. A
// project with zero indexed documents fails fast; the backend and its
// generation endpoint are never invoked.
func (s *ProjectService) Query(ctx context.Context, id, question string, topK int) (domain.QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.QueryResult{}, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = driving.DefaultTopK
	}

	project, err := s.registry.Get(ctx, id)
	if err != nil {
		return domain.QueryResult{}, err
	}
	if len(project.Documents) == 0 {
		return domain.QueryResult{}, fmt.Errorf("%w: project %s has no documents", domain.ErrEmptyCorpus, id)
	}

	backend, err := s.backendFor(project.Backend)
	if err != nil {
		return domain.QueryResult{}, err
	}

	start := s.now()
	answer, passages, err := backend.Query(ctx, project, question, topK)
	if err != nil {
		return domain.QueryResult{}, err
	}

	return domain.QueryResult{
		Answer:    answer,
		Citations: ExtractCitations(passages),
		LatencyMs: s.now().Sub(start).Milliseconds(),
	}, nil
}

// lockWrites takes the per-project document write lock and returns its
// release.
func (s *ProjectService) lockWrites(projectID string) func() {
	s.writeLocksMu.Lock()
	mu, ok := s.writeLocks[projectID]
	if !ok {
		mu = &sync.Mutex{}
		s.writeLocks[projectID] = mu
	}
	s.writeLocksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// SetPrompt stores a per-project system prompt. An empty prompt clears
// the override and queries fall back to the default answer style.
func (s *ProjectService) SetPrompt(ctx context.Context, id, prompt string) error {
	return s.registry.SetPrompt(ctx, id, prompt)
}

func (s *ProjectService) backendFor(kind domain.BackendKind) (driven.Backend, error) {
	backend, ok := s.backends[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no %s backend configured", domain.ErrInvalidInput, kind)
	}
	return backend, nil
}
