package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jheinecke/valet/internal/knowledge"
)

type fakeSearcher struct {
	results []knowledge.Result
	query   string
	limit   int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]knowledge.Result, error) {
	f.query, f.limit = query, limit
	return f.results, nil
}

func TestSearchDocs(t *testing.T) {
	searcher := &fakeSearcher{results: []knowledge.Result{
		{Content: "Water damage is covered up to 250000 euros.", Similarity: 0.91},
		{Content: strings.Repeat("long text ", 50), Similarity: 0.42},
	}}
	tool := NewSearchDocs(searcher)

	out, err := tool.Invoke(context.Background(), map[string]string{"query": "water damage"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if searcher.query != "water damage" || searcher.limit != searchDocsLimit {
		t.Errorf("search called with %q/%d", searcher.query, searcher.limit)
	}
	if !strings.Contains(out, "(relevance: 0.91)") {
		t.Errorf("output missing relevance: %q", out)
	}
	if !strings.Contains(out, "...") {
		t.Errorf("long hit not truncated: %q", out)
	}
}

func TestSearchDocsNoResults(t *testing.T) {
	tool := NewSearchDocs(&fakeSearcher{})

	out, err := tool.Invoke(context.Background(), map[string]string{"query": "anything"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != "No documents found." {
		t.Errorf("output = %q", out)
	}
}

func TestSearchDocsRequiresQuery(t *testing.T) {
	tool := NewSearchDocs(&fakeSearcher{})

	_, err := tool.Invoke(context.Background(), nil)
	var toolErr *Error
	if !errors.As(err, &toolErr) {
		t.Errorf("error type = %T, want *Error", err)
	}
}
