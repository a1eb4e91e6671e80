package extractors

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// Registry routes extraction to the extractor registered for a file's
// extension.
type Registry struct {
	byExtension map[string]driven.Extractor
}

// NewRegistry builds a registry from the given extractors.
func NewRegistry(extractors ...driven.Extractor) *Registry {
	r := &Registry{byExtension: make(map[string]driven.Extractor)}
	for _, e := range extractors {
		for _, ext := range e.Extensions() {
			r.byExtension[strings.ToLower(ext)] = e
		}
	}
	return r
}

// Supported returns the sorted list of supported extensions.
func (r *Registry) Supported() []string {
	exts := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract selects an extractor by the name's extension and runs it.
// Unknown extensions fail with domain.ErrUnsupportedFormat.
func (r *Registry) Extract(ctx context.Context, name string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	extractor, ok := r.byExtension[ext]
	if !ok {
		if ext == "" {
			ext = "(none)"
		}
		return "", fmt.Errorf("%w: extension %s", domain.ErrUnsupportedFormat, ext)
	}
	return extractor.Extract(ctx, content)
}
