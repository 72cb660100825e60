// Package storage persists the state of an indexed workspace.
//
// A workspace store holds one graph record per Python source file and the
// node templates extracted from those files, along with a full-text index
// over the templates.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Benny93/plexus-go/internal/catalog"
	"github.com/Benny93/plexus-go/internal/graph"
)

// ErrNotInitialized is returned by backends used before Initialize.
var ErrNotInitialized = errors.New("storage backend is not initialized")

// recordNamespace scopes graph record ids.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://plexus.dev/graph-record"))

// GraphRecord is the stored translation of one source file.
type GraphRecord struct {
	// ID is derived from Path, so re-indexing a file keeps its id.
	ID string `json:"id"`

	// Path is the file path relative to the workspace root, slash separated.
	Path string `json:"path"`

	// SHA256 is the hex digest of the source the record was built from.
	SHA256 string `json:"sha256"`

	// Graph is the decompiled graph; nil when decompiling failed.
	Graph *graph.Graph `json:"graph,omitempty"`

	// Error holds the decompile failure.
	Error string `json:"error,omitempty"`

	NodeCount int       `json:"node_count"`
	IndexedAt time.Time `json:"indexed_at"`
}

// OK reports whether the file decompiled.
func (r *GraphRecord) OK() bool {
	return r.Error == ""
}

// RecordID returns the id of the record for path.
func RecordID(path string) string {
	return uuid.NewSHA1(recordNamespace, []byte(path)).String()
}

// Digest returns the hex SHA-256 of src.
func Digest(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}

// NewGraphRecord builds the record for a decompile of src. A non-nil err is
// recorded in place of the graph.
func NewGraphRecord(path string, src []byte, g *graph.Graph, err error) *GraphRecord {
	rec := &GraphRecord{
		ID:        RecordID(path),
		Path:      path,
		SHA256:    Digest(src),
		IndexedAt: time.Now().UTC(),
	}
	if err != nil {
		rec.Error = err.Error()
		return rec
	}
	rec.Graph = g
	rec.NodeCount = g.NodeCount()
	return rec
}

// SearchResult is a template matched by a full-text query.
type SearchResult struct {
	// TemplateID is the id the template is stored under.
	TemplateID string `json:"template_id"`

	// Score is the relevance score (higher is better).
	Score float64 `json:"score"`

	DisplayName string `json:"display_name"`
	FuncName    string `json:"func_name"`
	Module      string `json:"module"`
	FilePath    string `json:"file_path,omitempty"`

	// Snippet is the first line of the template's doc.
	Snippet string `json:"snippet"`
}

// Backend is implemented by workspace stores.
//
// Implementations must be safe for concurrent use.
type Backend interface {
	// Initialize opens or creates the store at path.
	Initialize(path string, readOnly bool) error

	// Close releases the store.
	Close() error

	// PutGraph inserts or replaces the record for rec.Path.
	PutGraph(ctx context.Context, rec *GraphRecord) error

	// GetGraph returns the record for path, or nil if there is none.
	GetGraph(ctx context.Context, path string) (*GraphRecord, error)

	// ListGraphs returns every record ordered by path.
	ListGraphs(ctx context.Context) ([]*GraphRecord, error)

	// RemoveGraph deletes the record for path and reports whether it existed.
	RemoveGraph(ctx context.Context, path string) (bool, error)

	// AddTemplates inserts or replaces templates and indexes them.
	AddTemplates(ctx context.Context, templates []catalog.Template) error

	// RemoveTemplatesByFile deletes the templates found in filePath.
	RemoveTemplatesByFile(ctx context.Context, filePath string) (int, error)

	// GetTemplate returns a template by id, or nil if there is none.
	GetTemplate(ctx context.Context, id string) (*catalog.Template, error)

	// SearchTemplates runs a full-text query over templates.
	SearchTemplates(ctx context.Context, query string, limit int) ([]SearchResult, error)

	GraphCount() int
	TemplateCount() int
}
