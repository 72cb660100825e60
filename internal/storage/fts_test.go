package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/plexus-go/internal/catalog"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "SimpleWord",
			input:    "user",
			expected: []string{"user"},
		},
		{
			name:     "CamelCase",
			input:    "UserService",
			expected: []string{"userservice", "user", "service"},
		},
		{
			name:     "SnakeCase",
			input:    "parse_input",
			expected: []string{"parse_input", "parse", "input"},
		},
		{
			name:     "DotNotation",
			input:    "math.sqrt",
			expected: []string{"math.sqrt", "math", "sqrt"},
		},
		{
			name:     "WithNumbers",
			input:    "parseHTTP2",
			expected: []string{"parsehttp2", "parse", "http2", "2"},
		},
		{
			name:     "Sentence",
			input:    "Return the sine of x (in radians).",
			expected: []string{"return", "the", "sine", "of", "x", "in", "radians"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tokens := tokenize(tt.input)
			for _, expected := range tt.expected {
				assert.Contains(t, tokens, expected)
			}
			for _, tok := range tokens {
				assert.NotContains(t, tok, ":")
				assert.NotContains(t, tok, " ")
			}
		})
	}

	assert.Empty(t, tokenize(""))
	assert.Empty(t, tokenize("  ,; "))
	assert.Len(t, tokenize("a a a"), 1)
}

func TestTemplateTokens(t *testing.T) {
	t.Parallel()

	tpl := sampleTemplates()[0]
	weights := templateTokens(&tpl)

	assert.Equal(t, nameWeight, weights["sin"])
	assert.Equal(t, nameWeight, weights["math.sin"])
	assert.Equal(t, nameWeight, weights["math"])
	assert.Equal(t, 1, weights["radians"])
	assert.Equal(t, 2, weights["x"])

	tpl.Doc = catalog.NoDoc
	assert.NotContains(t, templateTokens(&tpl), "documentation")
}

func TestFTSIndex_IndexAndSearch(t *testing.T) {
	// Subtests share one database.
	backend, cleanup := setupTestBadgerBackend(t)
	defer cleanup()

	ctx := t.Context()
	require.NoError(t, backend.AddTemplates(ctx, sampleTemplates()))

	t.Run("ExactName", func(t *testing.T) {
		results, err := backend.fts.Search("sqrt", 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "math.sqrt", results[0].TemplateID)
		assert.Equal(t, "Return the square root of x.", results[0].Snippet)
		assert.Equal(t, "lib/math.py", results[0].FilePath)
	})

	t.Run("NameOutranksDoc", func(t *testing.T) {
		results, err := backend.fts.Search("join", 10)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "text.join", results[0].TemplateID)
		assert.Equal(t, "math.sin", results[1].TemplateID)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("Limit", func(t *testing.T) {
		results, err := backend.fts.Search("math", 1)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("NoMatch", func(t *testing.T) {
		results, err := backend.fts.Search("nonexistent", 10)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("Reindex", func(t *testing.T) {
		before, err := backend.fts.IndexSize()
		require.NoError(t, err)

		require.NoError(t, backend.AddTemplates(ctx, sampleTemplates()))
		after, err := backend.fts.IndexSize()
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

func TestFTSIndex_NilDB(t *testing.T) {
	t.Parallel()

	fts := NewFTSIndex(nil)
	results, err := fts.Search("anything", 10)
	assert.NoError(t, err)
	assert.Empty(t, results)

	size, err := fts.IndexSize()
	assert.NoError(t, err)
	assert.Zero(t, size)
}
