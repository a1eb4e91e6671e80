package driven

import (
	"context"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

// ProjectRegistry persists project and document metadata independently of
// which backend indexed the content. It is the only process-wide shared
// mutable state; implementations serialize mutations behind a single
// writer lock and hand out defensively-copied snapshots to readers.
type ProjectRegistry interface {
	// Create persists a new project record with an empty document map.
	Create(ctx context.Context, project domain.Project) error

	// Get returns a copy of a project, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (domain.Project, error)

	// List returns copies of all projects in a stable order.
	List(ctx context.Context) ([]domain.Project, error)

	// Delete removes a project record, or domain.ErrNotFound.
	// Callers must tear down the backend store first so a failed backend
	// delete never leaves a ghost registry entry.
	Delete(ctx context.Context, id string) error

	// RecordDocument writes a document metadata record.
	RecordDocument(ctx context.Context, id string, doc domain.Document) error

	// RemoveDocument deletes a document metadata record.
	RemoveDocument(ctx context.Context, id, name string) error

	// SetPrompt stores a per-project system prompt ("" clears it).
	SetPrompt(ctx context.Context, id, prompt string) error
}
