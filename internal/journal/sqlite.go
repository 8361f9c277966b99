package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/tutorguard/internal/errors"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens the journal database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storageError("open journal database", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, storageError("initialize journal schema", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS errors (
		id TEXT PRIMARY KEY,
		occurred_at INTEGER NOT NULL,
		code TEXT NOT NULL,
		category TEXT NOT NULL,
		severity INTEGER NOT NULL,
		message TEXT NOT NULL,
		session_id TEXT,
		user_id TEXT,
		endpoint TEXT,
		method TEXT,
		action TEXT NOT NULL,
		can_recover INTEGER NOT NULL,
		delay_ms INTEGER NOT NULL DEFAULT 0,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_errors_occurred_at ON errors(occurred_at);
	CREATE INDEX IF NOT EXISTS idx_errors_category ON errors(category);
	CREATE INDEX IF NOT EXISTS idx_errors_session ON errors(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds a record to the journal. Appending an ID twice is a no-op, so
// redelivered stream messages are journaled once.
func (s *SQLiteStore) Append(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var metadataJSON []byte
	if len(r.Metadata) > 0 {
		var err error
		metadataJSON, err = json.Marshal(r.Metadata)
		if err != nil {
			return storageError("marshal metadata", err)
		}
	}
	if r.OccurredAt.IsZero() {
		r.OccurredAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO errors
		(id, occurred_at, code, category, severity, message, session_id, user_id, endpoint, method, action, can_recover, delay_ms, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OccurredAt.UnixMilli(), r.Code, string(r.Category), int(r.Severity), r.Message,
		r.SessionID, r.UserID, r.Endpoint, r.Method, r.Action, r.CanRecover, r.DelayMS, metadataJSON,
	)
	if err != nil {
		return storageError("insert journal record", err)
	}
	return nil
}

// List retrieves records matching f, newest first.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(f.Category))
	}
	if f.MinSeverity.Valid() {
		where = append(where, "severity >= ?")
		args = append(args, int(f.MinSeverity))
	}
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if !f.Since.IsZero() {
		where = append(where, "occurred_at >= ?")
		args = append(args, f.Since.UnixMilli())
	}

	query := `SELECT id, occurred_at, code, category, severity, message, session_id, user_id, endpoint, method, action, can_recover, delay_ms, metadata FROM errors`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY occurred_at DESC, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError("query journal", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Prune deletes records older than cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM errors WHERE occurred_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, storageError("prune journal", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageError("prune journal", err)
	}
	return n, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var (
			r                                   Record
			occurredAt                          int64
			category                            string
			severity                            int
			sessionID, userID, endpoint, method sql.NullString
			metadataJSON                        []byte
		)
		err := rows.Scan(&r.ID, &occurredAt, &r.Code, &category, &severity, &r.Message,
			&sessionID, &userID, &endpoint, &method, &r.Action, &r.CanRecover, &r.DelayMS, &metadataJSON)
		if err != nil {
			return nil, storageError("scan journal record", err)
		}

		r.OccurredAt = time.UnixMilli(occurredAt)
		r.Category = errors.ErrorCategory(category)
		r.Severity = errors.ErrorSeverity(severity)
		r.SessionID = sessionID.String
		r.UserID = userID.String
		r.Endpoint = endpoint.String
		r.Method = method.String

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &r.Metadata); err != nil {
				return nil, storageError("unmarshal metadata", err)
			}
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError("iterate journal rows", err)
	}
	return records, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func storageError(op string, err error) error {
	return errors.NewStorageError("journal", fmt.Sprintf("%s: %v", op, err)).WithCause(err)
}
