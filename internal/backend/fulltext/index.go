// Package fulltext is a local full-text backend for development and offline
// use. Scores are relative: the best hit of every query scores 1.
package fulltext

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/govreposcrape/govsearch/internal/backend"
	"github.com/govreposcrape/govsearch/internal/domain"
)

const (
	fieldContent    = "content"
	fieldSnippet    = "snippet"
	fieldPath       = "path"
	fieldRepository = "repository"
	fieldName       = "name"

	nameBoost = 3.0
)

type summaryDoc struct {
	Content    string `json:"content"`
	Snippet    string `json:"snippet"`
	Path       string `json:"path"`
	Repository string `json:"repository"`
	Name       string `json:"name"`
}

// Backend is a bleve index of repository summaries
type Backend struct {
	index bleve.Index
}

// Open opens the index at path, creating it if missing. An empty path gives
// an in-memory index.
func Open(path string) (*Backend, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory index: %w", err)
		}
		return &Backend{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open index %s: %w", path, err)
		}
		return &Backend{index: index}, nil
	}

	index, err := bleve.New(path, newIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index %s: %w", path, err)
	}
	return &Backend{index: index}, nil
}

func newIndexMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	content.Store = false
	doc.AddFieldMappingsAt(fieldContent, content)

	snippet := bleve.NewTextFieldMapping()
	snippet.Index = false
	snippet.Store = true
	doc.AddFieldMappingsAt(fieldSnippet, snippet)

	for _, f := range []string{fieldPath, fieldRepository} {
		m := bleve.NewTextFieldMapping()
		m.Analyzer = keyword.Name
		m.Store = true
		doc.AddFieldMappingsAt(f, m)
	}

	name := bleve.NewTextFieldMapping()
	name.Analyzer = standard.Name
	doc.AddFieldMappingsAt(fieldName, name)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

// Query runs a full-text match over summary content and repository names.
func (b *Backend) Query(ctx context.Context, q domain.BackendQuery) (*domain.BackendResult, error) {
	start := time.Now()

	contentQuery := bleve.NewMatchQuery(q.Query)
	contentQuery.SetField(fieldContent)
	nameQuery := bleve.NewMatchQuery(q.Query)
	nameQuery.SetField(fieldName)
	nameQuery.SetBoost(nameBoost)

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(contentQuery, nameQuery), q.TopK, 0, false)
	req.Fields = []string{fieldSnippet, fieldPath}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	hits := make([]domain.BackendHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		snippet, _ := h.Fields[fieldSnippet].(string)
		path, _ := h.Fields[fieldPath].(string)
		if path == "" {
			path = h.ID
		}
		hits = append(hits, domain.BackendHit{
			Content: snippet,
			Score:   backend.NormaliseScore(h.Score, res.MaxScore),
			Path:    path,
		})
	}

	return &domain.BackendResult{Results: hits, TookMs: time.Since(start).Milliseconds()}, nil
}

// Index adds or replaces the document keyed by its storage path.
func (b *Backend) Index(_ context.Context, doc domain.SummaryDocument) error {
	err := b.index.Index(doc.StoragePath, summaryDoc{
		Content:    doc.Content,
		Snippet:    backend.Snippet(doc.Content, backend.DefaultSnippetMaxChars),
		Path:       doc.StoragePath,
		Repository: doc.Repository,
		Name:       doc.Repository,
	})
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", doc.Repository, err)
	}
	return nil
}

// Count returns the number of indexed documents
func (b *Backend) Count() (uint64, error) {
	return b.index.DocCount()
}

func (b *Backend) Close() error {
	return b.index.Close()
}
