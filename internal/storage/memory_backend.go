package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/Benny93/plexus-go/internal/catalog"
)

// MemoryBackend is an in-memory Backend for tests.
type MemoryBackend struct {
	mu          sync.RWMutex
	graphs      map[string]*GraphRecord
	templates   map[string]catalog.Template
	initialized bool
}

// NewMemoryBackend creates a new in-memory storage backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		graphs:    make(map[string]*GraphRecord),
		templates: make(map[string]catalog.Template),
	}
}

// Initialize implements Backend.
func (m *MemoryBackend) Initialize(path string, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = false
	return nil
}

// IsInitialized reports whether Initialize was called.
func (m *MemoryBackend) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// PutGraph implements Backend.
func (m *MemoryBackend) PutGraph(ctx context.Context, rec *GraphRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs[rec.Path] = rec
	return nil
}

// GetGraph implements Backend.
func (m *MemoryBackend) GetGraph(ctx context.Context, path string) (*GraphRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.graphs[path], nil
}

// ListGraphs implements Backend.
func (m *MemoryBackend) ListGraphs(ctx context.Context) ([]*GraphRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*GraphRecord, 0, len(m.graphs))
	for _, rec := range m.graphs {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records, nil
}

// RemoveGraph implements Backend.
func (m *MemoryBackend) RemoveGraph(ctx context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.graphs[path]
	delete(m.graphs, path)
	return ok, nil
}

// AddTemplates implements Backend.
func (m *MemoryBackend) AddTemplates(ctx context.Context, templates []catalog.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range templates {
		m.templates[t.ID()] = t
	}
	return nil
}

// RemoveTemplatesByFile implements Backend.
func (m *MemoryBackend) RemoveTemplatesByFile(ctx context.Context, filePath string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for id, t := range m.templates {
		if t.FilePath == filePath {
			delete(m.templates, id)
			count++
		}
	}
	return count, nil
}

// GetTemplate implements Backend.
func (m *MemoryBackend) GetTemplate(ctx context.Context, id string) (*catalog.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.templates[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// SearchTemplates implements Backend with the same scoring as the Badger
// index, computed on the fly.
func (m *MemoryBackend) SearchTemplates(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tokens := tokenize(query)
	results := []SearchResult{}
	if len(tokens) == 0 {
		return results, nil
	}

	for _, t := range m.templates {
		weights := templateTokens(&t)
		score := 0
		for _, tok := range tokens {
			score += weights[tok]
		}
		if score > 0 {
			results = append(results, resultFor(&t, float64(score)))
		}
	}
	return rank(results, limit), nil
}

// GraphCount implements Backend.
func (m *MemoryBackend) GraphCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.graphs)
}

// TemplateCount implements Backend.
func (m *MemoryBackend) TemplateCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.templates)
}
