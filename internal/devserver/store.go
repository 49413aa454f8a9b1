// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jeranaias/chatly-tui/internal/backend"
	"github.com/jeranaias/chatly-tui/internal/sqlitedb"
)

// HistoryLimit caps the records returned per history request.
const HistoryLimit = 100

// timestampLayout matches what the original service stored.
const timestampLayout = "2006-01-02 15:04:05.000000"

const schema = `
CREATE TABLE IF NOT EXISTS query_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	query TEXT NOT NULL,
	answer TEXT NOT NULL,
	confidence TEXT NOT NULL DEFAULT '',
	timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_logs_user ON query_logs(user_id, timestamp);

CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	source TEXT NOT NULL,
	page INTEGER NOT NULL,
	chunk INTEGER NOT NULL,
	text TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_user ON chunks(user_id);
`

// Chunk is one indexed run of sentences from an uploaded document.
type Chunk struct {
	Source string
	Page   int
	Index  int
	Text   string
}

// Store persists query logs and document chunks.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// OpenStore opens the dev database under dataDir. Pass sqlitedb.Memory as
// dataDir for a throwaway store.
func OpenStore(dataDir string) (*Store, error) {
	path := sqlitedb.Memory
	if dataDir != sqlitedb.Memory {
		path = filepath.Join(dataDir, "chatly-dev.db")
	}
	db, err := sqlitedb.Open(path, schema)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LogQuery records one answered question.
func (s *Store) LogQuery(ctx context.Context, userID, query, answer, confidence string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO query_logs (user_id, query, answer, confidence, timestamp) VALUES (?, ?, ?, ?, ?)`,
		userID, query, answer, confidence, s.now().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("log query: %w", err)
	}
	return res.LastInsertId()
}

// History returns a user's most recent records, newest first.
func (s *Store) History(ctx context.Context, userID string) ([]backend.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, answer, confidence, timestamp FROM query_logs
		 WHERE user_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`,
		userID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer rows.Close()

	records := make([]backend.Record, 0)
	for rows.Next() {
		var r backend.Record
		var confidence string
		if err := rows.Scan(&r.ID, &r.Query, &r.Answer, &confidence, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.Confidence = backend.Confidence(confidence)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Delete removes one record owned by userID and reports rows removed.
func (s *Store) Delete(ctx context.Context, userID string, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM query_logs WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return 0, fmt.Errorf("delete history item: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every record owned by userID.
func (s *Store) Clear(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM query_logs WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

// ReplaceChunks swaps the indexed chunks of one source document.
func (s *Store) ReplaceChunks(ctx context.Context, userID, source string, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ingest: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE user_id = ? AND source = ?`, userID, source); err != nil {
		return fmt.Errorf("drop old chunks: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (user_id, source, page, chunk, text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare ingest: %w", err)
	}
	defer stmt.Close()
	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, userID, source, c.Page, c.Index, c.Text); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}
	return tx.Commit()
}

// Chunks returns every chunk indexed for userID.
func (s *Store) Chunks(ctx context.Context, userID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, page, chunk, text FROM chunks WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch chunks: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.Source, &c.Page, &c.Index, &c.Text); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
