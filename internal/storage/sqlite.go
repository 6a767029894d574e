package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding feedback, corrections, facts, and
// preferences. Inserts are single-record transactions serialized by SQLite;
// reads may run concurrently with writes (WAL mode).
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "valet.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Feedback ---

// AddFeedback inserts a feedback record and returns its assigned id.
// CreatedAt defaults to now when zero.
func (s *Store) AddFeedback(f Feedback) (int64, error) {
	if f.Rating < 1 || f.Rating > 5 {
		return 0, fmt.Errorf("rating %d out of range 1-5", f.Rating)
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT INTO feedback (query, response, rating, comment, model, provider, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.Query, f.Response, f.Rating,
		nullable(f.Comment), nullable(f.Model), nullable(f.Provider),
		f.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting feedback: %w", err)
	}
	return res.LastInsertId()
}

// AddCorrection inserts a correction record and returns its assigned id.
func (s *Store) AddCorrection(c Correction) (int64, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT INTO corrections (query, wrong_response, correct_response, context, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.Query, c.WrongResponse, c.CorrectResponse, nullable(c.Context),
		c.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting correction: %w", err)
	}
	return res.LastInsertId()
}

// RecentNegativeFeedback returns feedback with rating <= 2, newest first,
// truncated to limit. Ordering uses the autoincrement id, which is strictly
// monotonic even for records created within the same second.
func (s *Store) RecentNegativeFeedback(limit int) ([]Feedback, error) {
	rows, err := s.db.Query(`
		SELECT id, query, response, rating, comment, model, provider, created_at
		FROM feedback WHERE rating <= 2 ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying negative feedback: %w", err)
	}
	defer rows.Close()

	var results []Feedback
	for rows.Next() {
		var f Feedback
		var comment, model, provider sql.NullString
		var createdAt string
		if err := rows.Scan(&f.ID, &f.Query, &f.Response, &f.Rating, &comment, &model, &provider, &createdAt); err != nil {
			return nil, err
		}
		f.Comment = comment.String
		f.Model = model.String
		f.Provider = provider.String
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		f.CreatedAt = t
		results = append(results, f)
	}
	return results, rows.Err()
}

// RecentCorrections returns the most recent corrections, newest first,
// truncated to limit.
func (s *Store) RecentCorrections(limit int) ([]Correction, error) {
	rows, err := s.db.Query(`
		SELECT id, query, wrong_response, correct_response, context, created_at
		FROM corrections ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying corrections: %w", err)
	}
	defer rows.Close()

	var results []Correction
	for rows.Next() {
		var c Correction
		var context sql.NullString
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Query, &c.WrongResponse, &c.CorrectResponse, &context, &createdAt); err != nil {
			return nil, err
		}
		c.Context = context.String
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		c.CreatedAt = t
		results = append(results, c)
	}
	return results, rows.Err()
}

// Statistics computes aggregates over the full record set. AverageRating is
// 0 when there is no feedback at all.
func (s *Store) Statistics() (Stats, error) {
	st := Stats{RatingDistribution: make(map[int]int)}

	if err := s.db.QueryRow(`SELECT COUNT(*), COALESCE(AVG(rating), 0) FROM feedback`).
		Scan(&st.TotalFeedback, &st.AverageRating); err != nil {
		return Stats{}, fmt.Errorf("counting feedback: %w", err)
	}
	st.AverageRating = math.Round(st.AverageRating*100) / 100

	rows, err := s.db.Query(`SELECT rating, COUNT(*) FROM feedback GROUP BY rating`)
	if err != nil {
		return Stats{}, fmt.Errorf("querying rating distribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rating, count int
		if err := rows.Scan(&rating, &count); err != nil {
			return Stats{}, err
		}
		st.RatingDistribution[rating] = count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM corrections`).Scan(&st.TotalCorrections); err != nil {
		return Stats{}, fmt.Errorf("counting corrections: %w", err)
	}

	cutoff := time.Now().UTC().Add(-7 * 24 * time.Hour).Format(time.RFC3339)
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM feedback WHERE created_at >= ?`, cutoff).
		Scan(&st.RecentFeedback7d); err != nil {
		return Stats{}, fmt.Errorf("counting recent feedback: %w", err)
	}

	return st, nil
}

// --- Facts ---

// GetFact returns the fact stored under key, or ErrNotFound.
func (s *Store) GetFact(key string) (Fact, error) {
	var f Fact
	var createdAt, updatedAt string
	err := s.db.QueryRow(`SELECT key, value, created_at, updated_at FROM facts WHERE key = ?`, key).
		Scan(&f.Key, &f.Value, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Fact{}, ErrNotFound
	}
	if err != nil {
		return Fact{}, err
	}
	if f.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Fact{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if f.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Fact{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return f, nil
}

// SetFact inserts or updates the fact stored under key.
func (s *Store) SetFact(key, value string) (Fact, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO facts (key, value, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now, now,
	)
	if err != nil {
		return Fact{}, fmt.Errorf("upserting fact: %w", err)
	}
	return s.GetFact(key)
}

// DeleteFact removes the fact stored under key, or returns ErrNotFound.
func (s *Store) DeleteFact(key string) error {
	res, err := s.db.Exec(`DELETE FROM facts WHERE key = ?`, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFacts returns all facts ordered by key.
func (s *Store) ListFacts() ([]Fact, error) {
	rows, err := s.db.Query(`SELECT key, value, created_at, updated_at FROM facts ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Fact
	for rows.Next() {
		var f Fact
		var createdAt, updatedAt string
		if err := rows.Scan(&f.Key, &f.Value, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if f.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if f.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		results = append(results, f)
	}
	return results, rows.Err()
}

// --- Preferences ---

// SetPreference inserts or updates a user preference.
func (s *Store) SetPreference(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetPreference returns the preference stored under key, or ErrNotFound.
func (s *Store) GetPreference(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// AllPreferences returns all preferences as a map.
func (s *Store) AllPreferences() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM preferences`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		result[k] = v
	}
	return result, rows.Err()
}

// nullable maps an empty string to NULL so optional columns stay NULL
// instead of storing "".
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
