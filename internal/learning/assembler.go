// Package learning assembles past corrections and negative feedback into a
// prompt block the orchestrator injects into the system message.
package learning

import (
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jheinecke/valet/internal/storage"
)

// DefaultLimit is the per-category record cap when the caller passes 0.
const DefaultLimit = 5

// truncateAt is the rune cap applied to correction answers before rendering.
const truncateAt = 100

// Store provides the records the assembler reads. *storage.Store satisfies it.
type Store interface {
	RecentCorrections(limit int) ([]storage.Correction, error)
	RecentNegativeFeedback(limit int) ([]storage.Feedback, error)
}

// Assembler builds learning context blocks from stored feedback.
type Assembler struct {
	store Store
}

func NewAssembler(store Store) *Assembler {
	return &Assembler{store: store}
}

// BuildContext renders up to limit corrections followed by up to limit
// negative feedback entries, newest first within each section. Returns the
// empty string when no qualifying records exist.
func (a *Assembler) BuildContext(limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var (
		corrections []storage.Correction
		negative    []storage.Feedback
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		corrections, err = a.store.RecentCorrections(limit)
		return err
	})
	g.Go(func() error {
		var err error
		negative, err = a.store.RecentNegativeFeedback(limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("build learning context: %w", err)
	}

	if len(corrections) == 0 && len(negative) == 0 {
		return "", nil
	}

	var b strings.Builder

	if len(corrections) > 0 {
		b.WriteString("## Past corrections (learn from these):\n")
		for i, c := range corrections {
			fmt.Fprintf(&b, "%d. Query: %s\n", i+1, c.Query)
			fmt.Fprintf(&b, "   Wrong answer: %s\n", truncate(c.WrongResponse))
			fmt.Fprintf(&b, "   Correct answer: %s\n", truncate(c.CorrectResponse))
		}
	}

	if len(negative) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## Negative feedback (avoid answers like these):\n")
		for i, f := range negative {
			fmt.Fprintf(&b, "%d. Query: %s\n", i+1, f.Query)
			fmt.Fprintf(&b, "   Problematic answer: %s\n", truncate(f.Response))
			if f.Comment != "" {
				fmt.Fprintf(&b, "   Feedback: %s\n", f.Comment)
			}
		}
	}

	return b.String(), nil
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= truncateAt {
		return s
	}
	return string(runes[:truncateAt]) + "..."
}
