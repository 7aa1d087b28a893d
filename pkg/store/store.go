// Package store persists cached query/response records in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/verba-ai/verba/pkg/models"
	"github.com/verba-ai/verba/pkg/vector"
)

const createQueriesTable = `
CREATE TABLE IF NOT EXISTS queries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	query TEXT UNIQUE,
	embedding BLOB,
	response TEXT,
	usage_count INTEGER DEFAULT 1
);
`

// Store is the durable side of the semantic cache: one row per distinct
// query text, in insertion order.
type Store struct {
	db *sql.DB
}

// New opens the database at dbPath and runs auto-migration.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open query store: %w", err)
	}

	if _, err := db.Exec(createQueriesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate query store: %w", err)
	}

	return &Store{db: db}, nil
}

// Upsert inserts a record for query, or on conflict replaces its
// response and increments usage_count, leaving the stored embedding
// untouched. It reports whether the row was newly inserted. The whole
// read-modify-write is a single statement, so concurrent callers with
// the same query text cannot lose an increment.
func (s *Store) Upsert(ctx context.Context, query string, embedding []float32, response string) (bool, error) {
	var usageCount int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO queries (query, embedding, response)
		 VALUES (?, ?, ?)
		 ON CONFLICT(query) DO UPDATE SET
			response = excluded.response,
			usage_count = usage_count + 1
		 RETURNING usage_count`,
		query, vector.Encode(embedding), response,
	).Scan(&usageCount)
	if err != nil {
		return false, fmt.Errorf("upsert query: %w", err)
	}
	return usageCount == 1, nil
}

// All returns every record ordered by insertion. This order defines the
// in-memory handle assignment on rebuild, so it must be stable.
func (s *Store) All(ctx context.Context) ([]models.QueryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, embedding, response, usage_count FROM queries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("scan query store: %w", err)
	}
	defer rows.Close()

	var records []models.QueryRecord
	for rows.Next() {
		var r models.QueryRecord
		var blob []byte
		if err := rows.Scan(&r.ID, &r.Query, &blob, &r.Response, &r.UsageCount); err != nil {
			return nil, fmt.Errorf("scan query record: %w", err)
		}
		if r.Embedding, err = vector.Decode(blob); err != nil {
			return nil, fmt.Errorf("decode embedding for %q: %w", r.Query, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Count returns the number of cached records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count queries: %w", err)
	}
	return count, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
