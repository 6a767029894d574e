// Package knowledge maintains the embedded vector index over ingested
// documents.
package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
)

const collectionName = "valet_docs"

// Document is one ingestable unit of text.
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Result is one search hit.
type Result struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Similarity float32           `json:"similarity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Index is a persistent vector index over documents.
type Index struct {
	col *chromem.Collection
}

// Open creates or loads the index. dir == ":memory:" keeps it in memory.
func Open(dir string, embed chromem.EmbeddingFunc) (*Index, error) {
	var db *chromem.DB
	if dir == ":memory:" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(dir, false)
		if err != nil {
			return nil, fmt.Errorf("open knowledge index: %w", err)
		}
	}

	col, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	return &Index{col: col}, nil
}

// OllamaEmbedding returns an embedding function backed by a local Ollama
// daemon.
func OllamaEmbedding(baseURL, model string) chromem.EmbeddingFunc {
	return chromem.NewEmbeddingFuncOllama(model, strings.TrimRight(baseURL, "/")+"/api")
}

// Add embeds and stores a document. An empty ID gets a generated one.
func (idx *Index) Add(ctx context.Context, doc Document) (string, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return "", fmt.Errorf("add document: empty content")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	err := idx.col.AddDocument(ctx, chromem.Document{
		ID:       doc.ID,
		Metadata: doc.Metadata,
		Content:  doc.Content,
	})
	if err != nil {
		return "", fmt.Errorf("add document: %w", err)
	}
	return doc.ID, nil
}

// Search returns up to limit documents ranked by similarity to query.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	count := idx.col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}
	if limit <= 0 {
		limit = 1
	}

	hits, err := idx.col.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			ID:         h.ID,
			Content:    h.Content,
			Similarity: h.Similarity,
			Metadata:   h.Metadata,
		})
	}
	return results, nil
}

// Count reports the number of indexed documents.
func (idx *Index) Count() int { return idx.col.Count() }
