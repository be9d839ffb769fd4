package sections

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/passage/internal/core/domain"
)

func chunkAt(text, part string, ordinal int) domain.Chunk {
	start := strings.Index(text, part)
	return domain.Chunk{Ordinal: ordinal, Start: start, End: start + len(part), Content: part}
}

func TestProcessor_Process(t *testing.T) {
	text := "Preface text.\n# Intro\nIntro body.\n## Details ##\nDetail body.\n"
	doc := &domain.Document{ID: "d", Content: text}

	chunks := []domain.Chunk{
		chunkAt(text, "Preface text.\n# Intro\n", 0),
		chunkAt(text, "Intro body.\n", 1),
		chunkAt(text, "## Details ##\nDetail body.\n", 2),
	}

	out, err := New().Process(context.Background(), doc, chunks)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "Intro", out[0].Metadata[MetadataKey])
	assert.Equal(t, "Intro", out[1].Metadata[MetadataKey])
	assert.Equal(t, "Details", out[2].Metadata[MetadataKey])
}

func TestProcessor_MaxLevel(t *testing.T) {
	text := "# Top\nbody\n### Deep\nmore\n"
	doc := &domain.Document{ID: "d", Content: text}
	chunks := []domain.Chunk{chunkAt(text, "more\n", 0)}

	out, err := New(WithMaxLevel(2)).Process(context.Background(), doc, chunks)
	require.NoError(t, err)
	assert.Equal(t, "Top", out[0].Metadata[MetadataKey])
}

func TestProcessor_NoHeadings(t *testing.T) {
	text := "plain text without headings\n#hashtag is not a heading\n"
	doc := &domain.Document{ID: "d", Content: text}
	chunks := []domain.Chunk{chunkAt(text, "plain text", 0)}

	out, err := New().Process(context.Background(), doc, chunks)
	require.NoError(t, err)
	assert.NotContains(t, out[0].Metadata, MetadataKey)
}

func TestProcessor_Name(t *testing.T) {
	assert.Equal(t, "sections", New().Name())
}
