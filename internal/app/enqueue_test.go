package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/wardsync/internal/domain"
)

type sanitizerFunc func(domain.RequestDraft) (domain.QueuedRequest, error)

func (f sanitizerFunc) Sanitize(d domain.RequestDraft) (domain.QueuedRequest, error) { return f(d) }

func passThrough() sanitizerFunc {
	return func(d domain.RequestDraft) (domain.QueuedRequest, error) {
		return domain.QueuedRequest{ID: d.ID, URL: d.URL, Method: d.Method, EnqueuedAt: time.Now()}, nil
	}
}

func TestEnqueuer_AssignsIDs(t *testing.T) {
	store := newFakeStore()
	var seen []domain.QueuedRequest
	e := NewEnqueuer(store, passThrough(), nil, func(r domain.QueuedRequest) { seen = append(seen, r) })

	got, err := e.Enqueue(context.Background(), domain.RequestDraft{URL: "/api/a", Method: "POST"})
	require.NoError(t, err)

	id, err := uuid.Parse(got.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())

	key, err := uuid.Parse(got.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), key.Version())

	assert.Equal(t, []string{got.ID}, store.ids())
	require.Len(t, seen, 1)
	assert.Equal(t, got.ID, seen[0].ID)
}

func TestEnqueuer_KeepsCallerID(t *testing.T) {
	store := newFakeStore()
	e := NewEnqueuer(store, passThrough(), nil, nil)

	got, err := e.Enqueue(context.Background(), domain.RequestDraft{ID: "mine", URL: "/api/a", Method: "POST"})
	require.NoError(t, err)
	assert.Equal(t, "mine", got.ID)
}

func TestEnqueuer_DuplicateIDConflicts(t *testing.T) {
	store := newFakeStore()
	var seen []domain.QueuedRequest
	e := NewEnqueuer(store, passThrough(), nil, func(r domain.QueuedRequest) { seen = append(seen, r) })

	first, err := e.Enqueue(context.Background(), domain.RequestDraft{ID: "mine", URL: "/api/a", Method: "POST"})
	require.NoError(t, err)

	_, err = e.Enqueue(context.Background(), domain.RequestDraft{ID: "mine", URL: "/api/a", Method: "POST"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	queued, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, first.IdempotencyKey, queued[0].IdempotencyKey)
	require.Len(t, seen, 1)
}

func TestEnqueuer_SanitizeError(t *testing.T) {
	store := newFakeStore()
	e := NewEnqueuer(store, sanitizerFunc(func(domain.RequestDraft) (domain.QueuedRequest, error) {
		return domain.QueuedRequest{}, domain.ErrInvalidRequest
	}), nil, nil)

	_, err := e.Enqueue(context.Background(), domain.RequestDraft{})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Empty(t, store.ids())
}

func TestEnqueuer_StoreError(t *testing.T) {
	e := NewEnqueuer(failingStore{newFakeStore()}, passThrough(), nil, nil)

	_, err := e.Enqueue(context.Background(), domain.RequestDraft{URL: "/api/a", Method: "POST"})
	assert.ErrorIs(t, err, domain.ErrStorage)
}

type failingStore struct{ *fakeStore }

func (failingStore) Enqueue(context.Context, domain.QueuedRequest) error {
	return errors.Join(domain.ErrStorage, errors.New("disk full"))
}
