// Package plaintext extracts text from plain text documents.
package plaintext

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles plain text documents.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extensions returns the file extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{".txt", ".text"}
}

// Extract returns the document bytes as text. Content that is not valid
// UTF-8 is treated as malformed.
func (e *Extractor) Extract(_ context.Context, content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: content is not valid UTF-8", domain.ErrExtraction)
	}
	return string(content), nil
}
