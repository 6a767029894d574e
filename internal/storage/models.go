package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Feedback is one user rating of an assistant response. Records are
// append-only: once written they are never mutated or deleted.
type Feedback struct {
	ID        int64     `json:"id"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Rating    int       `json:"rating"` // 1 (very bad) .. 5 (excellent)
	Comment   string    `json:"comment,omitempty"`
	Model     string    `json:"model,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Correction is a user-supplied known-correct answer for a prior wrong one.
// Append-only, like Feedback. Corrections and feedback are independent
// records; they are never linked by key.
type Correction struct {
	ID              int64     `json:"id"`
	Query           string    `json:"query"`
	WrongResponse   string    `json:"wrong_response"`
	CorrectResponse string    `json:"correct_response"`
	Context         string    `json:"context,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Stats aggregates the full feedback record set.
type Stats struct {
	TotalFeedback      int         `json:"total_feedback"`
	AverageRating      float64     `json:"average_rating"`
	RatingDistribution map[int]int `json:"rating_distribution"`
	TotalCorrections   int         `json:"total_corrections"`
	RecentFeedback7d   int         `json:"recent_feedback_7d"`
}

// Fact is one key/value entry in the facts table.
type Fact struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
