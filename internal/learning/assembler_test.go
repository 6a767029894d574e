package learning

import (
	"errors"
	"strings"
	"testing"

	"github.com/jheinecke/valet/internal/storage"
)

type fakeStore struct {
	corrections []storage.Correction
	negative    []storage.Feedback
	err         error

	correctionsLimit int
	negativeLimit    int
}

func (f *fakeStore) RecentCorrections(limit int) ([]storage.Correction, error) {
	f.correctionsLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.corrections) {
		return f.corrections[:limit], nil
	}
	return f.corrections, nil
}

func (f *fakeStore) RecentNegativeFeedback(limit int) ([]storage.Feedback, error) {
	f.negativeLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.negative) {
		return f.negative[:limit], nil
	}
	return f.negative, nil
}

func TestBuildContextEmpty(t *testing.T) {
	a := NewAssembler(&fakeStore{})

	got, err := a.BuildContext(5)
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if got != "" {
		t.Errorf("BuildContext on empty store = %q, want empty string", got)
	}
}

func TestBuildContextSectionsAndOrder(t *testing.T) {
	store := &fakeStore{
		corrections: []storage.Correction{
			{Query: "capital of France", WrongResponse: "London", CorrectResponse: "Paris"},
			{Query: "boiling point", WrongResponse: "90C", CorrectResponse: "100C"},
		},
		negative: []storage.Feedback{
			{Query: "weather tomorrow", Response: "it depends", Rating: 1, Comment: "useless"},
			{Query: "shopping list", Response: "no idea", Rating: 2},
		},
	}
	a := NewAssembler(store)

	got, err := a.BuildContext(5)
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}

	corrIdx := strings.Index(got, "## Past corrections (learn from these):")
	negIdx := strings.Index(got, "## Negative feedback (avoid answers like these):")
	if corrIdx == -1 || negIdx == -1 {
		t.Fatalf("missing section headers in:\n%s", got)
	}
	if corrIdx > negIdx {
		t.Error("corrections section must come before negative feedback")
	}

	for _, want := range []string{
		"1. Query: capital of France",
		"Wrong answer: London",
		"Correct answer: Paris",
		"2. Query: boiling point",
		"1. Query: weather tomorrow",
		"Problematic answer: it depends",
		"Feedback: useless",
		"2. Query: shopping list",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}

	// Comment-less entries get no Feedback line.
	if strings.Count(got, "Feedback:") != 1 {
		t.Errorf("expected exactly one Feedback line, got:\n%s", got)
	}
}

func TestBuildContextTruncatesAnswers(t *testing.T) {
	long := strings.Repeat("x", 150)
	store := &fakeStore{
		corrections: []storage.Correction{
			{Query: "q", WrongResponse: long, CorrectResponse: "short"},
		},
	}
	a := NewAssembler(store)

	got, err := a.BuildContext(5)
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}

	want := strings.Repeat("x", 100) + "..."
	if !strings.Contains(got, want) {
		t.Errorf("long answer not truncated to 100 runes:\n%s", got)
	}
	if strings.Contains(got, strings.Repeat("x", 101)) {
		t.Errorf("truncation kept more than 100 runes:\n%s", got)
	}
	// Short answers pass through without an ellipsis.
	if !strings.Contains(got, "Correct answer: short\n") {
		t.Errorf("short answer altered:\n%s", got)
	}
}

func TestBuildContextDefaultLimit(t *testing.T) {
	store := &fakeStore{}
	a := NewAssembler(store)

	if _, err := a.BuildContext(0); err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if store.correctionsLimit != DefaultLimit || store.negativeLimit != DefaultLimit {
		t.Errorf("limits = %d/%d, want %d", store.correctionsLimit, store.negativeLimit, DefaultLimit)
	}
}

func TestBuildContextPropagatesStoreError(t *testing.T) {
	wantErr := errors.New("db locked")
	a := NewAssembler(&fakeStore{err: wantErr})

	_, err := a.BuildContext(5)
	if !errors.Is(err, wantErr) {
		t.Errorf("BuildContext error = %v, want wrapped %v", err, wantErr)
	}
}
