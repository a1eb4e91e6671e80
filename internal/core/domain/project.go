package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// BackendKind selects which retrieval backend indexes a project's content.
type BackendKind string

const (
	// BackendRemote delegates storage and retrieval to the managed
	// file-search service. Project IDs are resource names issued by the
	// service (e.g. "fileSearchStores/abc-123").
	BackendRemote BackendKind = "remote"

	// BackendLocal owns extraction, embedding and vector storage on this
	// machine. Project IDs are generated as "local_<timestamp>_<slug>".
	BackendLocal BackendKind = "local"
)

// ParseBackendKind validates a backend kind string.
func ParseBackendKind(s string) (BackendKind, error) {
	switch BackendKind(strings.ToLower(strings.TrimSpace(s))) {
	case BackendRemote:
		return BackendRemote, nil
	case BackendLocal:
		return BackendLocal, nil
	default:
		return "", fmt.Errorf("%w: backend kind %q", ErrInvalidInput, s)
	}
}

// Project groups documents under one retrieval backend.
// The registry is the single source of truth for project existence.
type Project struct {
	// ID is opaque, globally unique and immutable once created.
	ID string

	// DisplayName is the human-readable project name.
	DisplayName string

	// Backend is the kind of backend that indexed this project's content.
	Backend BackendKind

	// CreatedAt is when the project was created.
	CreatedAt time.Time

	// SystemPrompt optionally overrides the default answer style for
	// queries against this project.
	SystemPrompt string

	// Documents maps document name to its metadata record.
	Documents map[string]Document
}

// Clone returns a deep copy so registry snapshots cannot be mutated
// through shared map references.
func (p Project) Clone() Project {
	out := p
	out.Documents = make(map[string]Document, len(p.Documents))
	for name, doc := range p.Documents {
		out.Documents[name] = doc
	}
	return out
}

// DocumentNames returns document names ordered by indexing time, oldest
// first. Names tie-break lexicographically so the order is stable.
func (p Project) DocumentNames() []string {
	names := make([]string, 0, len(p.Documents))
	for name := range p.Documents {
		names = append(names, name)
	}
	sortDocumentNames(p, names)
	return names
}

// ProjectSummary is the listing view of a project. It never exposes
// chunk-level data.
type ProjectSummary struct {
	ID            string
	DisplayName   string
	Backend       BackendKind
	CreatedAt     time.Time
	DocumentCount int
}

// Summary derives the listing view.
func (p Project) Summary() ProjectSummary {
	return ProjectSummary{
		ID:            p.ID,
		DisplayName:   p.DisplayName,
		Backend:       p.Backend,
		CreatedAt:     p.CreatedAt,
		DocumentCount: len(p.Documents),
	}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// LocalProjectID generates an ID for a local project from its display
// name and creation time, matching the "local_<timestamp>_<slug>" scheme.
func LocalProjectID(displayName string, createdAt time.Time) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(displayName), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "project"
	}
	return fmt.Sprintf("local_%s_%s", createdAt.Format("20060102_150405"), slug)
}

// CollectionName derives the deterministic vector collection name for a
// project. Resource separators are flattened so the name is safe for any
// vector store backend.
func CollectionName(projectID string) string {
	replacer := strings.NewReplacer("/", "_", "-", "_", ":", "_", ".", "_")
	return "project_" + replacer.Replace(projectID)
}
