package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/Benny93/plexus-go/internal/catalog"
)

// Key prefixes for different data types
const (
	prefixGraph    = "g:" // g:path -> GraphRecord
	prefixTemplate = "t:" // t:templateID -> catalog.Template
)

// BadgerBackend is a BadgerDB-backed workspace store.
type BadgerBackend struct {
	db            *badger.DB
	fts           *FTSIndex
	initialized   bool
	mu            sync.RWMutex
	graphCount    int
	templateCount int
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR)
	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}
	b.db = db
	b.fts = NewFTSIndex(db)
	b.initialized = true

	b.graphCount = b.countPrefix(prefixGraph)
	b.templateCount = b.countPrefix(prefixTemplate)
	return nil
}

func (b *BadgerBackend) countPrefix(prefix string) int {
	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	count := 0
	for it.Rewind(); it.Valid(); it.Next() {
		count++
	}
	return count
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil
	b.fts = nil
	b.initialized = false
	return err
}

// PutGraph inserts or replaces the record for rec.Path.
func (b *BadgerBackend) PutGraph(ctx context.Context, rec *GraphRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return ErrNotInitialized
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling graph record: %w", err)
	}

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	key := graphKey(rec.Path)
	_, err = txn.Get(key)
	exists := err == nil
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("getting graph record: %w", err)
	}

	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("setting graph record: %w", err)
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	if !exists {
		b.graphCount++
	}
	return nil
}

// GetGraph returns the record for path, or nil if not found.
func (b *BadgerBackend) GetGraph(ctx context.Context, path string) (*GraphRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.initialized {
		return nil, ErrNotInitialized
	}

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	item, err := txn.Get(graphKey(path))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting graph record: %w", err)
	}

	var rec GraphRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling graph record: %w", err)
	}
	return &rec, nil
}

// ListGraphs returns every record ordered by path.
func (b *BadgerBackend) ListGraphs(ctx context.Context) ([]*GraphRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.initialized {
		return nil, ErrNotInitialized
	}

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixGraph)
	it := txn.NewIterator(opts)
	defer it.Close()

	// Keys iterate in byte order, which is path order.
	var records []*GraphRecord
	for it.Rewind(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rec GraphRecord
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return nil, fmt.Errorf("unmarshaling graph record: %w", err)
		}
		records = append(records, &rec)
	}
	return records, nil
}

// RemoveGraph deletes the record for path.
func (b *BadgerBackend) RemoveGraph(ctx context.Context, path string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return false, ErrNotInitialized
	}

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	key := graphKey(path)
	if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("getting graph record: %w", err)
	}

	if err := txn.Delete(key); err != nil {
		return false, fmt.Errorf("deleting graph record: %w", err)
	}
	if err := txn.Commit(); err != nil {
		return false, err
	}
	b.graphCount--
	return true, nil
}

// AddTemplates inserts or replaces templates and indexes them.
func (b *BadgerBackend) AddTemplates(ctx context.Context, templates []catalog.Template) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return ErrNotInitialized
	}

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	added := 0
	for i := range templates {
		t := &templates[i]
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshaling template: %w", err)
		}

		key := templateKey(t.ID())
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			added++
		} else if err != nil {
			return fmt.Errorf("getting template: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("setting template: %w", err)
		}
		if err := b.fts.IndexTemplate(txn, t); err != nil {
			return err
		}
	}

	if err := txn.Commit(); err != nil {
		return err
	}
	b.templateCount += added
	return nil
}

// RemoveTemplatesByFile deletes all templates whose file path matches.
func (b *BadgerBackend) RemoveTemplatesByFile(ctx context.Context, filePath string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return 0, ErrNotInitialized
	}

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixTemplate)
	it := txn.NewIterator(opts)

	var ids []string
	for it.Rewind(); it.Valid(); it.Next() {
		var t catalog.Template
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &t)
		}); err != nil {
			it.Close()
			return 0, fmt.Errorf("unmarshaling template: %w", err)
		}
		if t.FilePath == filePath {
			ids = append(ids, t.ID())
		}
	}
	it.Close()

	for _, id := range ids {
		if err := txn.Delete(templateKey(id)); err != nil {
			return 0, fmt.Errorf("deleting template: %w", err)
		}
		if err := b.fts.RemoveTemplate(txn, id); err != nil {
			return 0, fmt.Errorf("deleting template index: %w", err)
		}
	}

	if err := txn.Commit(); err != nil {
		return 0, err
	}
	b.templateCount -= len(ids)
	return len(ids), nil
}

// GetTemplate returns a template by id, or nil if not found.
func (b *BadgerBackend) GetTemplate(ctx context.Context, id string) (*catalog.Template, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.initialized {
		return nil, ErrNotInitialized
	}

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	item, err := txn.Get(templateKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting template: %w", err)
	}

	var t catalog.Template
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &t)
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling template: %w", err)
	}
	return &t, nil
}

// SearchTemplates performs full-text search over indexed templates.
func (b *BadgerBackend) SearchTemplates(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.initialized {
		return nil, ErrNotInitialized
	}
	return b.fts.Search(query, limit)
}

// GraphCount returns the number of stored graph records.
func (b *BadgerBackend) GraphCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.graphCount
}

// TemplateCount returns the number of stored templates.
func (b *BadgerBackend) TemplateCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.templateCount
}

func graphKey(path string) []byte {
	return []byte(prefixGraph + path)
}

func templateKey(id string) []byte {
	return []byte(prefixTemplate + id)
}
