package knowledge

import (
	"context"
	"strings"
	"testing"
)

// fakeEmbedding maps text onto a tiny deterministic vector so tests never
// need a live embedding backend. Texts sharing a keyword land close together.
func fakeEmbedding(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, 4)
	lower := strings.ToLower(text)
	if strings.Contains(lower, "insurance") {
		v[0] = 1
	}
	if strings.Contains(lower, "recipe") {
		v[1] = 1
	}
	if strings.Contains(lower, "car") {
		v[2] = 1
	}
	v[3] = 0.01 // keep the vector non-zero for unrelated text
	return v, nil
}

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(":memory:", fakeEmbedding)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return idx
}

func TestAddAndSearch(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	docs := []Document{
		{Content: "The building insurance covers water damage up to 250000 euros."},
		{Content: "Pasta recipe: cook for eleven minutes."},
		{Content: "The car needs its inspection in October.", Metadata: map[string]string{"source": "notes"}},
	}
	for _, d := range docs {
		id, err := idx.Add(ctx, d)
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if id == "" {
			t.Error("Add returned empty id")
		}
	}
	if idx.Count() != 3 {
		t.Fatalf("Count = %d, want 3", idx.Count())
	}

	results, err := idx.Search(ctx, "what does my insurance cover", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Search returned no results")
	}
	if !strings.Contains(results[0].Content, "insurance") {
		t.Errorf("top hit = %q, want the insurance document", results[0].Content)
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := openTestIndex(t)

	results, err := idx.Search(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("Search on empty index: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestSearchLimitClampedToCount(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	if _, err := idx.Add(ctx, Document{Content: "car inspection note"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := idx.Search(ctx, "car", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestAddRejectsEmptyContent(t *testing.T) {
	idx := openTestIndex(t)

	if _, err := idx.Add(context.Background(), Document{Content: "   "}); err == nil {
		t.Error("Add with blank content succeeded, want error")
	}
}

func TestAddKeepsExplicitID(t *testing.T) {
	idx := openTestIndex(t)

	id, err := idx.Add(context.Background(), Document{ID: "doc-1", Content: "insurance summary"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id != "doc-1" {
		t.Errorf("id = %q, want doc-1", id)
	}
}

func TestExtractHTML(t *testing.T) {
	page := `<html><head><style>body { color: red }</style>
<script>console.log("noise")</script></head>
<body><h1>Policy</h1><p>Coverage   includes
water damage.</p></body></html>`

	got, err := ExtractText("html", []byte(page))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if got != "Policy Coverage includes water damage." {
		t.Errorf("ExtractText = %q", got)
	}
	if strings.Contains(got, "console.log") || strings.Contains(got, "color") {
		t.Errorf("script/style leaked into text: %q", got)
	}
}

func TestExtractPlainTextPassthrough(t *testing.T) {
	got, err := ExtractText("text", []byte("just plain text"))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if got != "just plain text" {
		t.Errorf("ExtractText = %q", got)
	}
}
