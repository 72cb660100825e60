package storage

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/Benny93/plexus-go/internal/catalog"
)

// Key prefixes for FTS
const (
	prefixFTSToken = "fts:t:" // fts:t:token:templateID -> weight
	prefixFTSMeta  = "fts:m:" // fts:m:templateID -> result metadata
)

// nameWeight boosts tokens found in a template's names over doc tokens.
const nameWeight = 3

var (
	wordSplit      = regexp.MustCompile(`[^A-Za-z0-9_.\-]+`)
	separatorSplit = regexp.MustCompile(`[_.\-]+`)
	camelBoundary  = regexp.MustCompile(`([a-z])([A-Z])`)
	letterDigit    = regexp.MustCompile(`([a-zA-Z])(\d)`)
	digitLetter    = regexp.MustCompile(`(\d)([a-zA-Z])`)
)

// tokenize splits text into searchable tokens. Each word contributes itself
// plus its snake_case, dotted, camelCase and digit boundary parts. Tokens are
// lower case and unique.
func tokenize(text string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(tok string) {
		tok = strings.ToLower(strings.Trim(tok, "_.-"))
		if tok != "" && !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}

	for _, word := range wordSplit.Split(text, -1) {
		if word == "" {
			continue
		}
		add(word)
		for _, part := range separatorSplit.Split(word, -1) {
			add(part)
			for _, sub := range strings.Fields(camelBoundary.ReplaceAllString(part, "$1 $2")) {
				add(sub)
			}
			split := digitLetter.ReplaceAllString(letterDigit.ReplaceAllString(part, "$1 $2"), "$1 $2")
			for _, sub := range strings.Fields(split) {
				add(sub)
			}
		}
	}
	return out
}

// templateTokens returns the weighted tokens of a template.
func templateTokens(t *catalog.Template) map[string]int {
	weights := make(map[string]int)
	for _, tok := range tokenize(t.DisplayName + " " + t.FuncName) {
		weights[tok] += nameWeight
	}
	for _, in := range t.Inputs {
		for _, tok := range tokenize(in.Name) {
			weights[tok]++
		}
	}
	if t.Doc != catalog.NoDoc {
		for _, tok := range tokenize(t.Doc) {
			weights[tok]++
		}
	}
	return weights
}

func resultFor(t *catalog.Template, score float64) SearchResult {
	snippet, _, _ := strings.Cut(t.Doc, "\n")
	return SearchResult{
		TemplateID:  t.ID(),
		Score:       score,
		DisplayName: t.DisplayName,
		FuncName:    t.FuncName,
		Module:      t.Module,
		FilePath:    t.FilePath,
		Snippet:     snippet,
	}
}

// rank orders results by score, then id, and applies limit when positive.
func rank(results []SearchResult, limit int) []SearchResult {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].TemplateID < results[j].TemplateID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// FTSIndex is an inverted index over templates persisted in BadgerDB.
type FTSIndex struct {
	db *badger.DB
}

// NewFTSIndex creates a new FTS index using the given BadgerDB instance.
func NewFTSIndex(db *badger.DB) *FTSIndex {
	return &FTSIndex{db: db}
}

// IndexTemplate adds or replaces t in the index within txn.
func (f *FTSIndex) IndexTemplate(txn *badger.Txn, t *catalog.Template) error {
	if err := f.deleteTokens(txn, t.ID()); err != nil {
		return err
	}

	for token, weight := range templateTokens(t) {
		key := fmt.Sprintf("%s%s:%s", prefixFTSToken, token, t.ID())
		if err := txn.Set([]byte(key), []byte(strconv.Itoa(weight))); err != nil {
			return fmt.Errorf("setting token index: %w", err)
		}
	}

	meta, err := json.Marshal(resultFor(t, 0))
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := txn.Set([]byte(prefixFTSMeta+t.ID()), meta); err != nil {
		return fmt.Errorf("setting metadata: %w", err)
	}
	return nil
}

// RemoveTemplate drops a template from the index within txn.
func (f *FTSIndex) RemoveTemplate(txn *badger.Txn, id string) error {
	if err := f.deleteTokens(txn, id); err != nil {
		return err
	}
	err := txn.Delete([]byte(prefixFTSMeta + id))
	if err != nil && err != badger.ErrKeyNotFound {
		return err
	}
	return nil
}

// deleteTokens removes all token entries of a template.
func (f *FTSIndex) deleteTokens(txn *badger.Txn, id string) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixFTSToken)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)

	var keys [][]byte
	suffix := ":" + id
	for it.Rewind(); it.Valid(); it.Next() {
		key := it.Item().KeyCopy(nil)
		if strings.HasSuffix(string(key), suffix) {
			keys = append(keys, key)
		}
	}
	it.Close()

	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Search scores templates by the summed weight of matching query tokens.
func (f *FTSIndex) Search(query string, limit int) ([]SearchResult, error) {
	if f.db == nil {
		return []SearchResult{}, nil
	}

	tokens := tokenize(query)
	if len(tokens) == 0 {
		return []SearchResult{}, nil
	}

	txn := f.db.NewTransaction(false)
	defer txn.Discard()

	scores := make(map[string]float64)
	for _, token := range tokens {
		prefix := prefixFTSToken + token + ":"
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := strings.TrimPrefix(string(item.Key()), prefix)

			var weight int
			_ = item.Value(func(val []byte) error {
				weight, _ = strconv.Atoi(string(val))
				return nil
			})
			scores[id] += float64(weight)
		}
		it.Close()
	}

	results := make([]SearchResult, 0, len(scores))
	for id, score := range scores {
		item, err := txn.Get([]byte(prefixFTSMeta + id))
		if err != nil {
			continue
		}

		var res SearchResult
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &res)
		}); err != nil {
			continue
		}
		res.Score = score
		results = append(results, res)
	}
	return rank(results, limit), nil
}

// IndexSize returns the number of token entries.
func (f *FTSIndex) IndexSize() (int, error) {
	if f.db == nil {
		return 0, nil
	}

	txn := f.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixFTSToken)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	count := 0
	for it.Rewind(); it.Valid(); it.Next() {
		count++
	}
	return count, nil
}
