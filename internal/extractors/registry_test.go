package extractors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/extractors/markdown"
	"github.com/custodia-labs/docquery/internal/extractors/plaintext"
)

func TestRegistry_Supported(t *testing.T) {
	r := NewRegistry(plaintext.New(), markdown.New())

	supported := r.Supported()
	assert.Contains(t, supported, ".txt")
	assert.Contains(t, supported, ".md")
	assert.Contains(t, supported, ".markdown")
}

func TestRegistry_Extract_RoutesByExtension(t *testing.T) {
	r := NewRegistry(plaintext.New(), markdown.New())
	ctx := context.Background()

	text, err := r.Extract(ctx, "notes.TXT", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	text, err = r.Extract(ctx, "readme.md", []byte("# Title\n\nbody"))
	require.NoError(t, err)
	assert.Equal(t, "Title\n\nbody", text)
}

func TestRegistry_Extract_Unsupported(t *testing.T) {
	r := NewRegistry(plaintext.New())
	ctx := context.Background()

	_, err := r.Extract(ctx, "image.png", []byte{0x89})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	_, err = r.Extract(ctx, "noextension", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}
