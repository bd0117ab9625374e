// Package fs implements the queue store on a single JSON document.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/wardsync/internal/domain"
)

const (
	queueFileName = "queue.json"
	fileVersion   = 1
)

// document is the on-disk layout of queue.json.
type document struct {
	Version     int                    `json:"version"`
	Queue       []domain.QueuedRequest `json:"queue"`
	DeadLetters []domain.DeadLetter    `json:"dead_letters,omitempty"`
}

func (d *document) queued(id string) bool {
	for _, r := range d.Queue {
		if r.ID == id {
			return true
		}
	}
	return false
}

// insert keeps Queue ordered by EnqueuedAt; ties keep arrival order.
func (d *document) insert(r domain.QueuedRequest) {
	i := sort.Search(len(d.Queue), func(i int) bool {
		return d.Queue[i].EnqueuedAt.After(r.EnqueuedAt)
	})
	d.Queue = slices.Insert(d.Queue, i, r)
}

// QueueFile implements ports.QueueStore using a JSON file.
//
// Every operation is a read-modify-write of the whole document under a
// mutex, persisted with write-to-temp + rename. The file is owned by one
// process; use the SQLite store when several processes share a queue.
type QueueFile struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewQueueFile creates a QueueFile storing queue.json in dir.
func NewQueueFile(dir string) *QueueFile {
	return &QueueFile{dir: dir, now: time.Now}
}

// Path returns the full path to the queue file.
func (q *QueueFile) Path() string {
	return filepath.Join(q.dir, queueFileName)
}

// Enqueue inserts req after every entry enqueued at or before it.
// Returns domain.ErrConflict if the id is already queued.
func (q *QueueFile) Enqueue(ctx context.Context, req domain.QueuedRequest) error {
	return q.update(ctx, func(doc *document) error {
		if doc.queued(req.ID) {
			return fmt.Errorf("enqueue %s: %w", req.ID, domain.ErrConflict)
		}
		if req.EnqueuedAt.IsZero() {
			req.EnqueuedAt = q.now().UTC()
		}
		doc.insert(req.Clone())
		return nil
	})
}

// List returns the queued requests, oldest first.
func (q *QueueFile) List(ctx context.Context) ([]domain.QueuedRequest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	doc, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.QueuedRequest, len(doc.Queue))
	for i, r := range doc.Queue {
		out[i] = r.Clone()
	}
	return out, nil
}

// Remove deletes the entry with the given id. Unknown ids are ignored.
func (q *QueueFile) Remove(ctx context.Context, id string) error {
	return q.update(ctx, func(doc *document) error {
		for i, r := range doc.Queue {
			if r.ID == id {
				doc.Queue = append(doc.Queue[:i], doc.Queue[i+1:]...)
				return nil
			}
		}
		return errUnchanged
	})
}

// RecordFailure increments the attempt counter of the entry.
func (q *QueueFile) RecordFailure(ctx context.Context, id, message string) (int, error) {
	var attempts int
	err := q.update(ctx, func(doc *document) error {
		for i := range doc.Queue {
			if doc.Queue[i].ID == id {
				doc.Queue[i].Attempts++
				doc.Queue[i].LastError = message
				attempts = doc.Queue[i].Attempts
				return nil
			}
		}
		return fmt.Errorf("record failure %s: %w", id, domain.ErrNotFound)
	})
	return attempts, err
}

// DeadLetter moves the entry to the dead-letter list.
func (q *QueueFile) DeadLetter(ctx context.Context, id, reason string) error {
	return q.update(ctx, func(doc *document) error {
		for i, r := range doc.Queue {
			if r.ID == id {
				doc.Queue = append(doc.Queue[:i], doc.Queue[i+1:]...)
				doc.DeadLetters = append(doc.DeadLetters, domain.DeadLetter{
					Request:  r,
					Reason:   reason,
					FailedAt: q.now().UTC(),
				})
				return nil
			}
		}
		return fmt.Errorf("dead-letter %s: %w", id, domain.ErrNotFound)
	})
}

// ListDeadLetters returns dead-lettered entries in the order they failed.
func (q *QueueFile) ListDeadLetters(ctx context.Context) ([]domain.DeadLetter, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	doc, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DeadLetter, len(doc.DeadLetters))
	for i, d := range doc.DeadLetters {
		out[i] = domain.DeadLetter{Request: d.Request.Clone(), Reason: d.Reason, FailedAt: d.FailedAt}
	}
	return out, nil
}

// Requeue moves a dead-lettered entry back to the tail of the queue.
func (q *QueueFile) Requeue(ctx context.Context, id string) error {
	return q.update(ctx, func(doc *document) error {
		for i, d := range doc.DeadLetters {
			if d.Request.ID == id {
				if doc.queued(id) {
					return fmt.Errorf("requeue %s: %w", id, domain.ErrConflict)
				}
				doc.DeadLetters = append(doc.DeadLetters[:i], doc.DeadLetters[i+1:]...)
				r := d.Request
				r.Attempts = 0
				r.LastError = ""
				r.EnqueuedAt = q.now().UTC()
				doc.insert(r)
				return nil
			}
		}
		return fmt.Errorf("requeue %s: %w", id, domain.ErrNotFound)
	})
}

// Len returns the number of queued requests.
func (q *QueueFile) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	doc, err := q.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(doc.Queue), nil
}

// Close is a no-op; every write is already durable.
func (q *QueueFile) Close() error { return nil }

// errUnchanged tells update to skip the write.
var errUnchanged = errors.New("unchanged")

func (q *QueueFile) update(ctx context.Context, fn func(doc *document) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	doc, err := q.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	return q.save(ctx, doc)
}

// load reads the document from disk. A missing file is an empty queue.
func (q *QueueFile) load(ctx context.Context) (document, error) {
	if err := ctx.Err(); err != nil {
		return document{}, err
	}

	data, err := os.ReadFile(q.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return document{Version: fileVersion}, nil
		}
		return document{}, fmt.Errorf("%w: read queue: %v", domain.ErrStorage, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("%w: decode queue: %v", domain.ErrStorage, err)
	}
	return doc, nil
}

// save persists the document atomically (temp file, fsync, rename).
func (q *QueueFile) save(ctx context.Context, doc document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(q.dir, 0o700); err != nil {
		return fmt.Errorf("%w: state dir: %v", domain.ErrStorage, err)
	}

	doc.Version = fileVersion
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode queue: %v", domain.ErrStorage, err)
	}

	path := q.Path()
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("%w: write queue: %v", domain.ErrStorage, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("%w: write queue: %v", domain.ErrStorage, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("%w: sync queue: %v", domain.ErrStorage, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close queue: %v", domain.ErrStorage, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: rename queue: %v", domain.ErrStorage, err)
	}
	return nil
}
