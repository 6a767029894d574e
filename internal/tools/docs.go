package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/jheinecke/valet/internal/knowledge"
)

const searchDocsLimit = 3

// snippetLen caps how much of a matched document is rendered per hit.
const snippetLen = 200

// Searcher is the knowledge index surface the search tool needs.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]knowledge.Result, error)
}

type searchDocsTool struct {
	index Searcher
}

// NewSearchDocs returns the tool the model calls to search ingested documents.
func NewSearchDocs(index Searcher) Tool {
	return &searchDocsTool{index: index}
}

func (t *searchDocsTool) Name() string { return "search_docs" }

func (t *searchDocsTool) Description() string {
	return "Search the ingested document collection, e.g. search_docs(\"deductible for water damage\")"
}

func (t *searchDocsTool) Params() []Param {
	return []Param{{Name: "query", Description: "free-text search query"}}
}

func (t *searchDocsTool) Invoke(ctx context.Context, args map[string]string) (string, error) {
	query := args["query"]
	if query == "" {
		return "", &Error{Tool: t.Name(), Message: "missing required argument: query"}
	}

	results, err := t.index.Search(ctx, query, searchDocsLimit)
	if err != nil {
		return "", fmt.Errorf("search docs: %w", err)
	}
	if len(results) == 0 {
		return "No documents found.", nil
	}

	var b strings.Builder
	for _, res := range results {
		text := res.Content
		if runes := []rune(text); len(runes) > snippetLen {
			text = string(runes[:snippetLen]) + "..."
		}
		fmt.Fprintf(&b, "- %s (relevance: %.2f)\n", text, res.Similarity)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
