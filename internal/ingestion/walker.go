// Package ingestion indexes a workspace of Python files: it decompiles every
// file into a graph record, extracts node templates and keeps the store in
// sync with the file system.
package ingestion

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/Benny93/plexus-go/internal/storage"
)

// FileEntry is a Python file found in the workspace.
type FileEntry struct {
	// Path is the absolute file path.
	Path string

	// RelPath is the slash separated path relative to the workspace root.
	RelPath string

	Content []byte

	// SHA256 is the hex digest of Content.
	SHA256 string
}

// Patterns ignored in addition to .gitignore.
var defaultIgnorePatterns = []string{
	".git/",
	".plexus/",
	"__pycache__/",
	".venv/",
	"venv/",
	".tox/",
	".eggs/",
	"*.egg-info/",
	".pytest_cache/",
	".mypy_cache/",
	"build/",
	"dist/",
}

// WalkRepo returns every .py file under repoPath that is not ignored by the
// default patterns or the given patterns. Entries come back in lexical path
// order.
func WalkRepo(repoPath string, patterns []gitignore.Pattern) ([]FileEntry, error) {
	matcher := newMatcher(patterns)

	var entries []FileEntry
	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != repoPath && isIgnored(path, repoPath, true, matcher) {
				return filepath.SkipDir
			}
			return nil
		}

		if !isPythonFile(d.Name()) || isIgnored(path, repoPath, false, matcher) {
			return nil
		}

		entry, err := readEntry(repoPath, path)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	})

	return entries, err
}

func readEntry(repoPath, path string) (FileEntry, error) {
	relPath, err := filepath.Rel(repoPath, path)
	if err != nil {
		return FileEntry{}, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return FileEntry{}, err
	}

	return FileEntry{
		Path:    path,
		RelPath: filepath.ToSlash(relPath),
		Content: content,
		SHA256:  storage.Digest(content),
	}, nil
}

// LoadGitignore reads the patterns of the .gitignore at the workspace root.
// A missing file yields no patterns.
func LoadGitignore(repoPath string) ([]gitignore.Pattern, error) {
	content, err := os.ReadFile(filepath.Join(repoPath, ".gitignore"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns, nil
}

// newMatcher combines the default patterns with the loaded ones. Later
// patterns take precedence, so a .gitignore negation can re-include a default.
func newMatcher(patterns []gitignore.Pattern) gitignore.Matcher {
	all := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns)+len(patterns))
	for _, p := range defaultIgnorePatterns {
		all = append(all, gitignore.ParsePattern(p, nil))
	}
	all = append(all, patterns...)
	return gitignore.NewMatcher(all)
}

func isPythonFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".py")
}

// isIgnored reports whether path, inside repoPath, matches the ignore rules.
func isIgnored(path, repoPath string, isDir bool, matcher gitignore.Matcher) bool {
	if matcher == nil {
		return false
	}
	relPath, err := filepath.Rel(repoPath, path)
	if err != nil || relPath == "." || strings.HasPrefix(relPath, "..") {
		return false
	}
	return matcher.Match(splitPath(relPath), isDir)
}

func splitPath(path string) []string {
	return strings.Split(filepath.ToSlash(path), "/")
}
