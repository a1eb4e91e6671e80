// Package pdf extracts text from PDF documents by shelling out to the
// pdftotext tool from poppler-utils. The external command is wrapped in
// a CommandRunner so tests can substitute a double.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found")

// CommandRunner executes an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands via os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Extractor handles PDF documents.
type Extractor struct {
	runner CommandRunner
}

// Option configures the extractor.
type Option func(*Extractor)

// WithRunner substitutes the command runner. Used by tests.
func WithRunner(r CommandRunner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

// New creates a new PDF extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{runner: execRunner{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extensions returns the file extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{".pdf"}
}

// Extract writes the PDF bytes to a spool file and converts them with
// pdftotext. The spool file is removed on every exit path.
func (e *Extractor) Extract(ctx context.Context, content []byte) (string, error) {
	tmp, err := os.CreateTemp("", "docquery-*.pdf")
	if err != nil {
		return "", fmt.Errorf("%w: create spool file: %v", domain.ErrExtraction, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: write spool file: %v", domain.ErrExtraction, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: close spool file: %v", domain.ErrExtraction, err)
	}

	// "-" sends the extracted text to stdout.
	out, err := e.runner.Run(ctx, "pdftotext", tmp.Name(), "-")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrPDFToolNotFound, InstallInstructions())
		}
		return "", fmt.Errorf("%w: pdftotext: %v", domain.ErrExtraction, err)
	}

	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", fmt.Errorf("%w: no text extracted from PDF", domain.ErrExtraction)
	}
	return text, nil
}

// CheckAvailable reports whether pdftotext is on PATH.
func CheckAvailable() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return fmt.Errorf("%w: %s", ErrPDFToolNotFound, InstallInstructions())
	}
	return nil
}

// InstallInstructions returns platform hints for installing pdftotext.
func InstallInstructions() string {
	return "install poppler-utils (macOS: brew install poppler; Debian/Ubuntu: apt install poppler-utils)"
}
