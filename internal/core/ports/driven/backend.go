package driven

import (
	"context"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

// Backend is the polymorphic adapter over the retrieval capability set.
// The project service selects an implementation by the project's stored
// backend kind; callers never branch on project ID shapes.
//
// Implementations:
//   - remote: delegates to the managed file-search service
//   - local: owns extraction, chunking, embedding and vector storage
type Backend interface {
	// Kind identifies which projects this backend serves.
	Kind() domain.BackendKind

	// CreateStore provisions storage for a new project and returns its
	// ID. Remote stores are named by the service; local stores derive the
	// ID from the display name and creation time.
	CreateStore(ctx context.Context, displayName string) (string, error)

	// Upload ingests a document into the project's store. The returned
	// summary carries the chunk count where the backend knows it.
	// Ingestion is atomic: on failure no chunks for the document remain.
	Upload(ctx context.Context, project domain.Project, name string, content []byte) (domain.DocumentSummary, error)

	// DeleteDocument removes a document and its indexed content.
	DeleteDocument(ctx context.Context, project domain.Project, name string) error

	// Query answers a question grounded in the project's documents and
	// returns the ranked passages, already normalized to the canonical
	// shape, that back the answer.
	Query(ctx context.Context, project domain.Project, question string, topK int) (answer string, passages []domain.Passage, err error)

	// DeleteStore tears down the project's store and all indexed content.
	DeleteStore(ctx context.Context, project domain.Project) error
}
