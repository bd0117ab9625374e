// Package sqlite implements the queue store on embedded SQLite.
//
// The database runs in WAL mode so several processes (the daemon and a CLI
// enqueuing from a shell) can share one queue. Ordering is by enqueue time,
// ties broken by insertion sequence.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/bft-labs/wardsync/internal/domain"
)

// DBFileName is the database file created inside the state dir.
const DBFileName = "queue.db"

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT    NOT NULL UNIQUE,
	url             TEXT    NOT NULL,
	method          TEXT    NOT NULL,
	body            BLOB,
	headers         TEXT,
	enqueued_at     INTEGER NOT NULL,
	idempotency_key TEXT    NOT NULL DEFAULT '',
	attempts        INTEGER NOT NULL DEFAULT 0,
	last_error      TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_requests_order ON requests(enqueued_at, seq);

CREATE TABLE IF NOT EXISTS dead_letters (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	id        TEXT    NOT NULL UNIQUE,
	request   TEXT    NOT NULL,
	reason    TEXT    NOT NULL,
	failed_at INTEGER NOT NULL
);
`

const selectColumns = `id, url, method, body, headers, enqueued_at, idempotency_key, attempts, last_error`

// QueueStore implements ports.QueueStore on SQLite.
type QueueStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates or opens the queue database at path and applies the schema.
//
// The caller must call Close when done.
func Open(path string) (*QueueStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: create database directory: %v", domain.ErrStorage, err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", domain.ErrStorage, err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping database: %v", domain.ErrStorage, err)
	}

	// One connection serializes writers inside the process; busy_timeout
	// covers other processes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: apply schema: %v", domain.ErrStorage, err)
	}

	return &QueueStore{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file path.
func (s *QueueStore) Path() string { return s.path }

// Close closes the database connection.
func (s *QueueStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Enqueue inserts req. Returns domain.ErrConflict if the id is already queued.
func (s *QueueStore) Enqueue(ctx context.Context, req domain.QueuedRequest) error {
	if req.EnqueuedAt.IsZero() {
		req.EnqueuedAt = s.now().UTC()
	}

	headers, err := encodeHeaders(req.Headers)
	if err != nil {
		return fmt.Errorf("%w: encode headers: %v", domain.ErrStorage, err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (id, url, method, body, headers, enqueued_at, idempotency_key, attempts, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		req.ID,
		req.URL,
		req.Method,
		nullBytes(req.Body),
		headers,
		req.EnqueuedAt.UnixNano(),
		req.IdempotencyKey,
		req.Attempts,
		req.LastError,
	)
	if err != nil {
		return fmt.Errorf("%w: enqueue: %v", domain.ErrStorage, err)
	}
	return conflictIfUnchanged(res, "enqueue", req.ID)
}

func conflictIfUnchanged(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrStorage, op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, id, domain.ErrConflict)
	}
	return nil
}

// List returns queued requests, oldest first.
func (s *QueueStore) List(ctx context.Context) ([]domain.QueuedRequest, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM requests ORDER BY enqueued_at, seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	var out []domain.QueuedRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %v", domain.ErrStorage, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list: %v", domain.ErrStorage, err)
	}
	return out, nil
}

// Remove deletes the entry with the given id.
func (s *QueueStore) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: remove %s: %v", domain.ErrStorage, id, err)
	}
	return nil
}

// RecordFailure increments the attempt counter of an entry.
func (s *QueueStore) RecordFailure(ctx context.Context, id, message string) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx, `
		UPDATE requests SET attempts = attempts + 1, last_error = ?
		WHERE id = ?
		RETURNING attempts
	`, message, id).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("record failure %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: record failure %s: %v", domain.ErrStorage, id, err)
	}
	return attempts, nil
}

// DeadLetter moves an entry to the dead_letters table in one transaction.
func (s *QueueStore) DeadLetter(ctx context.Context, id, reason string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM requests WHERE id = ?`, id)
		r, err := scanRequest(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("dead-letter %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("%w: dead-letter %s: %v", domain.ErrStorage, id, err)
		}

		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("%w: encode dead letter: %v", domain.ErrStorage, err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dead_letters (id, request, reason, failed_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET request = excluded.request, reason = excluded.reason, failed_at = excluded.failed_at
		`, id, string(payload), reason, s.now().UTC().UnixNano()); err != nil {
			return fmt.Errorf("%w: dead-letter %s: %v", domain.ErrStorage, id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id); err != nil {
			return fmt.Errorf("%w: dead-letter %s: %v", domain.ErrStorage, id, err)
		}
		return nil
	})
}

// ListDeadLetters returns dead-lettered entries in failure order.
func (s *QueueStore) ListDeadLetters(ctx context.Context) ([]domain.DeadLetter, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT request, reason, failed_at FROM dead_letters ORDER BY failed_at, seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: list dead letters: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	var out []domain.DeadLetter
	for rows.Next() {
		var (
			payload  string
			reason   string
			failedAt int64
		)
		if err := rows.Scan(&payload, &reason, &failedAt); err != nil {
			return nil, fmt.Errorf("%w: scan dead letter: %v", domain.ErrStorage, err)
		}
		var r domain.QueuedRequest
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("%w: decode dead letter: %v", domain.ErrStorage, err)
		}
		out = append(out, domain.DeadLetter{
			Request:  r,
			Reason:   reason,
			FailedAt: time.Unix(0, failedAt).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list dead letters: %v", domain.ErrStorage, err)
	}
	return out, nil
}

// Requeue moves a dead-lettered entry back to the tail of the queue.
func (s *QueueStore) Requeue(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var payload string
		err := tx.QueryRowContext(ctx, `SELECT request FROM dead_letters WHERE id = ?`, id).Scan(&payload)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("requeue %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("%w: requeue %s: %v", domain.ErrStorage, id, err)
		}

		var r domain.QueuedRequest
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return fmt.Errorf("%w: decode dead letter: %v", domain.ErrStorage, err)
		}
		headers, err := encodeHeaders(r.Headers)
		if err != nil {
			return fmt.Errorf("%w: encode headers: %v", domain.ErrStorage, err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO requests (id, url, method, body, headers, enqueued_at, idempotency_key, attempts, last_error)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, '')
			ON CONFLICT(id) DO NOTHING
		`, r.ID, r.URL, r.Method, nullBytes(r.Body), headers, s.now().UTC().UnixNano(), r.IdempotencyKey)
		if err != nil {
			return fmt.Errorf("%w: requeue %s: %v", domain.ErrStorage, id, err)
		}
		// The dead letter stays put when the id was queued again.
		if err := conflictIfUnchanged(res, "requeue", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM dead_letters WHERE id = ?`, id); err != nil {
			return fmt.Errorf("%w: requeue %s: %v", domain.ErrStorage, id, err)
		}
		return nil
	})
}

// Len returns the number of queued requests.
func (s *QueueStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %v", domain.ErrStorage, err)
	}
	return n, nil
}

func (s *QueueStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrStorage, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrStorage, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (domain.QueuedRequest, error) {
	var (
		r          domain.QueuedRequest
		body       []byte
		headers    sql.NullString
		enqueuedAt int64
	)
	if err := row.Scan(&r.ID, &r.URL, &r.Method, &body, &headers, &enqueuedAt, &r.IdempotencyKey, &r.Attempts, &r.LastError); err != nil {
		return domain.QueuedRequest{}, err
	}
	if len(body) > 0 {
		r.Body = json.RawMessage(body)
	}
	if headers.Valid && headers.String != "" {
		if err := json.Unmarshal([]byte(headers.String), &r.Headers); err != nil {
			return domain.QueuedRequest{}, fmt.Errorf("decode headers: %w", err)
		}
	}
	r.EnqueuedAt = time.Unix(0, enqueuedAt).UTC()
	return r, nil
}

func encodeHeaders(h map[string]string) (sql.NullString, error) {
	if len(h) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
