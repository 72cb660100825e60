package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		fullPath := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
	}
}

func relPaths(entries []FileEntry) []string {
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.RelPath)
	}
	return paths
}

func TestWalkRepo(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"main.py":                "print('hello')",
		"src/app.py":             "x = 1",
		"src/lib/utils.py":       "def util(): pass",
		"src/generated/out.py":   "y = 2",
		"README.md":              "# README",
		".gitignore":             "# build output\nsrc/generated/\nsecret_*.py\n",
		"secret_keys.py":         "KEY = 'x'",
		"__pycache__/mod.py":     "z = 3",
		".venv/lib/site.py":      "w = 4",
		".plexus/badger/note.py": "v = 5",
	})

	t.Run("WithoutGitignore", func(t *testing.T) {
		t.Parallel()
		entries, err := WalkRepo(tmpDir, nil)
		require.NoError(t, err)

		assert.Equal(t, []string{
			"main.py",
			"secret_keys.py",
			"src/app.py",
			"src/generated/out.py",
			"src/lib/utils.py",
		}, relPaths(entries))
	})

	t.Run("RespectGitignore", func(t *testing.T) {
		t.Parallel()
		patterns, err := LoadGitignore(tmpDir)
		require.NoError(t, err)

		entries, err := WalkRepo(tmpDir, patterns)
		require.NoError(t, err)

		assert.Equal(t, []string{"main.py", "src/app.py", "src/lib/utils.py"}, relPaths(entries))
	})

	t.Run("EntryFields", func(t *testing.T) {
		t.Parallel()
		entries, err := WalkRepo(tmpDir, nil)
		require.NoError(t, err)
		require.NotEmpty(t, entries)

		e := entries[0]
		assert.Equal(t, filepath.Join(tmpDir, "main.py"), e.Path)
		assert.Equal(t, []byte("print('hello')"), e.Content)
		assert.Len(t, e.SHA256, 64)
	})

	t.Run("MissingRoot", func(t *testing.T) {
		t.Parallel()
		_, err := WalkRepo(filepath.Join(tmpDir, "nope"), nil)
		assert.Error(t, err)
	})
}

func TestLoadGitignore(t *testing.T) {
	t.Parallel()

	t.Run("NoGitignore", func(t *testing.T) {
		t.Parallel()
		patterns, err := LoadGitignore(t.TempDir())
		assert.NoError(t, err)
		assert.Empty(t, patterns)
	})

	t.Run("SkipsCommentsAndBlankLines", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		writeFiles(t, tmpDir, map[string]string{".gitignore": "# comment\n\n*.pyc\n  \n.env\n"})

		patterns, err := LoadGitignore(tmpDir)
		assert.NoError(t, err)
		assert.Len(t, patterns, 2)
	})

	t.Run("NegationReincludesDefault", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		writeFiles(t, tmpDir, map[string]string{
			".gitignore":   "!build/\n",
			"build/gen.py": "x = 1",
		})

		patterns, err := LoadGitignore(tmpDir)
		require.NoError(t, err)
		entries, err := WalkRepo(tmpDir, patterns)
		require.NoError(t, err)
		assert.Equal(t, []string{"build/gen.py"}, relPaths(entries))
	})
}

func TestIsPythonFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		expected bool
	}{
		{"Python", "main.py", true},
		{"UpperCase", "MAIN.PY", true},
		{"Compiled", "main.pyc", false},
		{"Stub", "main.pyi", false},
		{"Go", "main.go", false},
		{"Markdown", "README.md", false},
		{"NoExtension", "Makefile", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, isPythonFile(tt.filename))
		})
	}
}

func TestFileEntry_HashConsistency(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	content := "hello = 'world'"
	writeFiles(t, tmpDir, map[string]string{"test.py": content})

	entries, err := WalkRepo(tmpDir, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	expected := sha256.Sum256([]byte(content))
	assert.Equal(t, hex.EncodeToString(expected[:]), entries[0].SHA256)
}
