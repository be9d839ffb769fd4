package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
)

func normalise(t *testing.T, path, content string) *domain.Document {
	t.Helper()
	doc, err := New().Normalise(context.Background(), &driven.NormaliseInput{
		ID:       "doc",
		Path:     path,
		MIMEType: "text/markdown",
		Content:  []byte(content),
	})
	require.NoError(t, err)
	return doc
}

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{"text/markdown", "text/x-markdown"}, New().SupportedMIMETypes())
}

func TestNormalise_TitleFromHeading(t *testing.T) {
	content := "Intro line\n\n# Getting Started\n\n## Install\n\nRun the installer.\n"
	doc := normalise(t, "/docs/guide.md", content)

	assert.Equal(t, "Getting Started", doc.Title)
	assert.Equal(t, content, doc.Content, "headings stay in the content")
	assert.Equal(t, "markdown", doc.Metadata["format"])
	assert.Equal(t, "/docs/guide.md", doc.Origin)
}

func TestNormalise_TitleFromFilename(t *testing.T) {
	doc := normalise(t, "/docs/release_notes.md", "## Only a subsection\n\nText.")
	assert.Equal(t, "release notes", doc.Title)
}

func TestNormalise_FrontMatter(t *testing.T) {
	content := "---\ntitle: Operator Handbook\nrevision: 7\nowner: platform\ntags: [a, b]\n---\n# Ignored\n\nBody text.\n"
	doc := normalise(t, "/docs/handbook.md", content)

	assert.Equal(t, "Operator Handbook", doc.Title)
	assert.Equal(t, "7", doc.Revision)
	assert.Equal(t, "platform", doc.Metadata["owner"])
	assert.NotContains(t, doc.Metadata, "tags")
	assert.Equal(t, "# Ignored\n\nBody text.\n", doc.Content)
}

func TestNormalise_UnterminatedFrontMatterIsContent(t *testing.T) {
	content := "---\nnot closed\n\nText."
	doc := normalise(t, "/docs/x.md", content)
	assert.Equal(t, content, doc.Content)
}

func TestNormalise_BadFrontMatter(t *testing.T) {
	_, err := New().Normalise(context.Background(), &driven.NormaliseInput{
		Path:    "/docs/bad.md",
		Content: []byte("---\ntitle: [unclosed\n---\nBody"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_NilInput(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
