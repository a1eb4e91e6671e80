// Package remote implements the retrieval backend that delegates
// storage, indexing and grounded answering to the managed file-search
// service. Grounding metadata is normalized to domain passages at this
// boundary so callers never see service-specific shapes.
package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
	"github.com/custodia-labs/docquery/internal/logger"
)

// Ensure Backend implements the interface.
var _ driven.Backend = (*Backend)(nil)

// Backend serves projects indexed by the managed file-search service.
type Backend struct {
	client *client
	now    func() time.Time
}

// Option configures the backend.
type Option func(*Backend)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBackend creates a remote backend from client configuration.
func NewBackend(cfg Config, opts ...Option) *Backend {
	b := &Backend{
		client: newClient(cfg),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Kind identifies which projects this backend serves.
func (b *Backend) Kind() domain.BackendKind {
	return domain.BackendRemote
}

// CreateStore provisions a store on the service. The returned project
// ID is the service-issued resource name.
func (b *Backend) CreateStore(ctx context.Context, displayName string) (string, error) {
	storeID, err := b.client.createStore(ctx, displayName)
	if err != nil {
		return "", err
	}
	logger.Debug("Created remote store %s", storeID)
	return storeID, nil
}

// Upload sends the document for service-side indexing and verifies it
// landed by resolving it in the store's document listing. The service
// does not expose chunk counts, so the summary reports zero.
func (b *Backend) Upload(ctx context.Context, project domain.Project, name string, content []byte) (domain.DocumentSummary, error) {
	if err := b.client.uploadDocument(ctx, project.ID, name, content); err != nil {
		return domain.DocumentSummary{}, err
	}

	// The indexing operation result is not always populated, so confirm
	// via the listing and take the newest document with our name.
	doc, err := b.resolveDocument(ctx, project.ID, name)
	if err != nil {
		return domain.DocumentSummary{}, err
	}

	indexedAt := doc.CreateTime
	if indexedAt.IsZero() {
		indexedAt = b.now().UTC()
	}
	return domain.DocumentSummary{Name: name, IndexedAt: indexedAt}, nil
}

// DeleteDocument resolves the document's resource name by display name
// and deletes it along with its indexed embeddings.
func (b *Backend) DeleteDocument(ctx context.Context, project domain.Project, name string) error {
	doc, err := b.resolveDocument(ctx, project.ID, name)
	if err != nil {
		return err
	}
	return b.client.deleteDocument(ctx, doc.Name)
}

// Query runs one grounded generation call against the store. Ranking
// and retrieval happen service-side; topK is not forwarded.
func (b *Backend) Query(ctx context.Context, project domain.Project, question string, _ int) (string, []domain.Passage, error) {
	return b.client.groundedQuery(ctx, project.ID, question, project.SystemPrompt)
}

// DeleteStore permanently removes the store and all its documents.
func (b *Backend) DeleteStore(ctx context.Context, project domain.Project) error {
	return b.client.deleteStore(ctx, project.ID)
}

// resolveDocument finds the newest document in the store whose display
// name matches.
func (b *Backend) resolveDocument(ctx context.Context, storeID, name string) (documentResource, error) {
	docs, err := b.client.listDocuments(ctx, storeID)
	if err != nil {
		return documentResource{}, err
	}

	var newest documentResource
	found := false
	for _, doc := range docs {
		if doc.DisplayName != name {
			continue
		}
		if !found || doc.CreateTime.After(newest.CreateTime) {
			newest = doc
			found = true
		}
	}
	if !found {
		return documentResource{}, fmt.Errorf("%w: document %s in store %s", domain.ErrNotFound, name, storeID)
	}
	return newest, nil
}
