package driving

import (
	"context"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

// DefaultTopK is the number of passages retrieved when the caller does
// not specify one.
const DefaultTopK = 3

// ProjectService is the unified project/document/query lifecycle exposed
// to the surrounding application layer. Both backends sit behind it.
type ProjectService interface {
	// CreateProject provisions a backend store and registers the project.
	CreateProject(ctx context.Context, displayName string, backend domain.BackendKind) (domain.ProjectSummary, error)

	// ListProjects returns a merged, order-stable view across backends.
	ListProjects(ctx context.Context) ([]domain.ProjectSummary, error)

	// DeleteProject cascades: backend store first, then the registry
	// record. A failed backend delete leaves the registry unchanged.
	DeleteProject(ctx context.Context, id string) error

	// ListDocuments returns the project's document records in insertion
	// order.
	ListDocuments(ctx context.Context, id string) ([]domain.DocumentSummary, error)

	// UploadDocument ingests a document and records it on full success.
	UploadDocument(ctx context.Context, id, name string, content []byte) (domain.DocumentSummary, error)

	// DeleteDocument removes a document from the backend and registry.
	DeleteDocument(ctx context.Context, id, name string) error

	// Query answers a question with citations. topK <= 0 uses DefaultTopK.
	Query(ctx context.Context, id, question string, topK int) (domain.QueryResult, error)

	// SetPrompt stores a per-project system prompt ("" clears it).
	SetPrompt(ctx context.Context, id, prompt string) error
}
