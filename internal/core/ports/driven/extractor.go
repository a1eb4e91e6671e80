package driven

import "context"

// Extractor converts raw document bytes of one format family into plain
// text. Each extractor declares the file extensions it handles.
type Extractor interface {
	// Extensions returns the lowercase file extensions (with dot) this
	// extractor handles, e.g. [".md", ".markdown"].
	Extensions() []string

	// Extract returns the full plain text of the document.
	// Malformed content fails with domain.ErrExtraction.
	Extract(ctx context.Context, content []byte) (string, error)
}
