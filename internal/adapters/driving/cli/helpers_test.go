package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driving"
)

// stubService is a canned ProjectService for command tests.
type stubService struct {
	summaries []domain.ProjectSummary
	docs      []domain.DocumentSummary
	result    domain.QueryResult
	err       error

	lastPrompt string
}

var _ driving.ProjectService = (*stubService)(nil)

func (s *stubService) CreateProject(_ context.Context, displayName string, backend domain.BackendKind) (domain.ProjectSummary, error) {
	if s.err != nil {
		return domain.ProjectSummary{}, s.err
	}
	return domain.ProjectSummary{
		ID:          fmt.Sprintf("%s_1", backend),
		DisplayName: displayName,
		Backend:     backend,
		CreatedAt:   time.Now(),
	}, nil
}

func (s *stubService) ListProjects(_ context.Context) ([]domain.ProjectSummary, error) {
	return s.summaries, s.err
}

func (s *stubService) DeleteProject(_ context.Context, _ string) error {
	return s.err
}

func (s *stubService) ListDocuments(_ context.Context, _ string) ([]domain.DocumentSummary, error) {
	return s.docs, s.err
}

func (s *stubService) UploadDocument(_ context.Context, _, name string, _ []byte) (domain.DocumentSummary, error) {
	if s.err != nil {
		return domain.DocumentSummary{}, s.err
	}
	return domain.DocumentSummary{Name: name, IndexedAt: time.Now(), ChunkCount: 4}, nil
}

func (s *stubService) DeleteDocument(_ context.Context, _, _ string) error {
	return s.err
}

func (s *stubService) Query(_ context.Context, _, _ string, _ int) (domain.QueryResult, error) {
	return s.result, s.err
}

func (s *stubService) SetPrompt(_ context.Context, _, prompt string) error {
	s.lastPrompt = prompt
	return s.err
}

// setupTestService installs a stub service and returns it with a
// cleanup that restores the previous one.
func setupTestService() (*stubService, func()) {
	previous := projectService
	stub := &stubService{}
	projectService = stub
	return stub, func() {
		projectService = previous
	}
}
