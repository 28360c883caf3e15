package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/qgenlab/qgen/internal/model"
)

// tsLayout has fixed width so stored timestamps compare as strings.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is an append-only log of LLM calls in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Totals aggregates the whole call log.
type Totals struct {
	Calls    int
	Failed   int
	Usage    model.Usage
	Duration time.Duration
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures the
// llm_calls table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS llm_calls (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		ts                TEXT NOT NULL,
		model             TEXT NOT NULL,
		provider          TEXT NOT NULL,
		stage             TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL,
		prompt_tokens     INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens      INTEGER NOT NULL DEFAULT 0,
		duration_ms       INTEGER NOT NULL DEFAULT 0,
		subject           TEXT NOT NULL DEFAULT '',
		params            TEXT NOT NULL DEFAULT '{}'
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating llm_calls table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Record appends one call to the log.
func (s *SQLiteStore) Record(rec model.CallRecord) error {
	params, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO llm_calls
		(ts, model, provider, stage, status, prompt_tokens, completion_tokens, total_tokens, duration_ms, subject, params)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.UTC().Format(tsLayout),
		rec.Model,
		rec.Provider,
		rec.Stage,
		rec.Status,
		rec.Usage.PromptTokens,
		rec.Usage.CompletionTokens,
		rec.Usage.TotalTokens,
		rec.Duration.Milliseconds(),
		rec.Params.Subject,
		string(params),
	)
	if err != nil {
		return fmt.Errorf("recording %s call: %w", rec.Model, err)
	}
	return nil
}

// Recent returns up to n calls, newest first.
func (s *SQLiteStore) Recent(n int) ([]model.CallRecord, error) {
	rows, err := s.db.Query(`SELECT ts, model, provider, stage, status,
		prompt_tokens, completion_tokens, total_tokens, duration_ms, params
		FROM llm_calls ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying recent calls: %w", err)
	}
	defer rows.Close()

	var out []model.CallRecord
	for rows.Next() {
		var (
			rec    model.CallRecord
			ts     string
			ms     int64
			params string
		)
		if err := rows.Scan(&ts, &rec.Model, &rec.Provider, &rec.Stage, &rec.Status,
			&rec.Usage.PromptTokens, &rec.Usage.CompletionTokens, &rec.Usage.TotalTokens,
			&ms, &params); err != nil {
			return nil, fmt.Errorf("scanning call row: %w", err)
		}
		if rec.Timestamp, err = time.Parse(tsLayout, ts); err != nil {
			return nil, fmt.Errorf("parsing timestamp %q: %w", ts, err)
		}
		rec.Duration = time.Duration(ms) * time.Millisecond
		if err := json.Unmarshal([]byte(params), &rec.Params); err != nil {
			return nil, fmt.Errorf("decoding params: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating call rows: %w", err)
	}
	return out, nil
}

// Totals sums every recorded call. A non-empty subject restricts the sum to
// calls made for that subject (case-insensitive).
func (s *SQLiteStore) Totals(subject string) (Totals, error) {
	query := `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN status != 'ok' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(prompt_tokens), 0),
		COALESCE(SUM(completion_tokens), 0),
		COALESCE(SUM(total_tokens), 0),
		COALESCE(SUM(duration_ms), 0)
		FROM llm_calls`
	var args []any
	if subject = strings.TrimSpace(subject); subject != "" {
		query += ` WHERE LOWER(subject) = LOWER(?)`
		args = append(args, subject)
	}

	var t Totals
	var ms int64
	err := s.db.QueryRow(query, args...).Scan(&t.Calls, &t.Failed,
		&t.Usage.PromptTokens, &t.Usage.CompletionTokens, &t.Usage.TotalTokens, &ms)
	if err != nil {
		return Totals{}, fmt.Errorf("summing calls: %w", err)
	}
	t.Duration = time.Duration(ms) * time.Millisecond
	return t, nil
}

// Prune deletes calls older than the given duration and reports how many went.
func (s *SQLiteStore) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC().Format(tsLayout)
	res, err := s.db.Exec("DELETE FROM llm_calls WHERE ts < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning calls older than %v: %w", olderThan, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
