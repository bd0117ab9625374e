// Package storetest holds the conformance suite every ports.QueueStore
// implementation runs from its own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/wardsync/internal/domain"
	"github.com/bft-labs/wardsync/internal/ports"
)

// Factory opens a fresh, empty store. Reopen opens the same backing storage
// again, simulating a process restart.
type Factory struct {
	Open   func(t *testing.T) ports.QueueStore
	Reopen func(t *testing.T, prev ports.QueueStore) ports.QueueStore
}

// Run executes the suite.
func Run(t *testing.T, f Factory) {
	t.Run("EmptyQueue", func(t *testing.T) { testEmpty(t, f) })
	t.Run("FIFOOrder", func(t *testing.T) { testFIFO(t, f) })
	t.Run("OrderedByEnqueuedAt", func(t *testing.T) { testOutOfOrderEnqueue(t, f) })
	t.Run("DuplicateEnqueueConflicts", func(t *testing.T) { testDuplicate(t, f) })
	t.Run("RemoveUnknownIsNoop", func(t *testing.T) { testRemoveUnknown(t, f) })
	t.Run("SurvivesRestart", func(t *testing.T) { testRestart(t, f) })
	t.Run("RecordFailure", func(t *testing.T) { testRecordFailure(t, f) })
	t.Run("DeadLetterAndRequeue", func(t *testing.T) { testDeadLetter(t, f) })
	t.Run("RequeueConflictKeepsDeadLetter", func(t *testing.T) { testRequeueConflict(t, f) })
	t.Run("ConcurrentEnqueueAndRemove", func(t *testing.T) { testConcurrent(t, f) })
}

func req(id string, at time.Time) domain.QueuedRequest {
	return domain.QueuedRequest{
		ID:         id,
		URL:        "/api/patients/" + id,
		Method:     "POST",
		Body:       []byte(`{"name":"` + id + `"}`),
		Headers:    map[string]string{"X-Ward": "icu"},
		EnqueuedAt: at,
	}
}

func ids(reqs []domain.QueuedRequest) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.ID
	}
	return out
}

func testEmpty(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.Open(t)

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func testFIFO(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.Open(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Enqueue(ctx, req(id, base.Add(time.Duration(i)*time.Second))))
	}

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
	assert.Equal(t, "POST", got[0].Method)
	assert.JSONEq(t, `{"name":"a"}`, string(got[0].Body))
	assert.Equal(t, "icu", got[0].Headers["X-Ward"])
	assert.True(t, got[0].EnqueuedAt.Equal(base))

	require.NoError(t, s.Remove(ctx, "b"))
	got, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(got))
}

func testDuplicate(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.Open(t)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Enqueue(ctx, req("a", at)))
	dup := req("a", at.Add(time.Minute))
	dup.URL = "/api/other"
	assert.ErrorIs(t, s.Enqueue(ctx, dup), domain.ErrConflict)

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/api/patients/a", got[0].URL)
	assert.True(t, got[0].EnqueuedAt.Equal(at))
}

func testOutOfOrderEnqueue(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.Open(t)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Enqueue(ctx, req("late", at.Add(time.Minute))))
	require.NoError(t, s.Enqueue(ctx, req("early", at)))
	require.NoError(t, s.Enqueue(ctx, req("tie", at.Add(time.Minute))))

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late", "tie"}, ids(got))

	s2 := f.Reopen(t, s)
	got, err = s2.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late", "tie"}, ids(got))
}

func testRemoveUnknown(t *testing.T, f Factory) {
	s := f.Open(t)
	assert.NoError(t, s.Remove(context.Background(), "missing"))
}

func testRestart(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.Open(t)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Enqueue(ctx, req("a", at)))
	require.NoError(t, s.Enqueue(ctx, req("b", at.Add(time.Second))))

	s2 := f.Reopen(t, s)
	got, err := s2.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func testRecordFailure(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.Open(t)
	require.NoError(t, s.Enqueue(ctx, req("a", time.Now().UTC())))

	n, err := s.RecordFailure(ctx, "a", "503")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.RecordFailure(ctx, "a", "504")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Attempts)
	assert.Equal(t, "504", got[0].LastError)

	_, err = s.RecordFailure(ctx, "missing", "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testDeadLetter(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.Open(t)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Enqueue(ctx, req("a", at)))
	require.NoError(t, s.Enqueue(ctx, req("b", at.Add(time.Second))))
	_, err := s.RecordFailure(ctx, "a", "gone")
	require.NoError(t, err)

	require.NoError(t, s.DeadLetter(ctx, "a", "max attempts"))

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(got))

	dead, err := s.ListDeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "a", dead[0].Request.ID)
	assert.Equal(t, "max attempts", dead[0].Reason)
	assert.False(t, dead[0].FailedAt.IsZero())

	assert.ErrorIs(t, s.DeadLetter(ctx, "missing", "x"), domain.ErrNotFound)

	require.NoError(t, s.Requeue(ctx, "a"))
	got, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(got))
	assert.Equal(t, 0, got[1].Attempts)

	dead, err = s.ListDeadLetters(ctx)
	require.NoError(t, err)
	assert.Empty(t, dead)

	assert.ErrorIs(t, s.Requeue(ctx, "a"), domain.ErrNotFound)
}

func testConcurrent(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.Open(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 20; i++ {
		require.NoError(t, s.Enqueue(ctx, req(fmt.Sprintf("old-%02d", i), base.Add(time.Duration(i)*time.Millisecond))))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			assert.NoError(t, s.Enqueue(ctx, req(fmt.Sprintf("new-%02d", i), base.Add(time.Hour+time.Duration(i)*time.Millisecond))))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			assert.NoError(t, s.Remove(ctx, fmt.Sprintf("old-%02d", i)))
		}
	}()
	wg.Wait()

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 20)
	for i, r := range got {
		assert.Equal(t, fmt.Sprintf("new-%02d", i), r.ID)
	}
}

func testRequeueConflict(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.Open(t)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Enqueue(ctx, req("x", at)))
	require.NoError(t, s.DeadLetter(ctx, "x", "max attempts"))
	require.NoError(t, s.Enqueue(ctx, req("x", at.Add(time.Hour))))

	assert.ErrorIs(t, s.Requeue(ctx, "x"), domain.ErrConflict)

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, ids(got))
	assert.True(t, got[0].EnqueuedAt.Equal(at.Add(time.Hour)))

	dead, err := s.ListDeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "x", dead[0].Request.ID)
	assert.Equal(t, "max attempts", dead[0].Reason)

	require.NoError(t, s.Remove(ctx, "x"))
	require.NoError(t, s.Requeue(ctx, "x"))
	dead, err = s.ListDeadLetters(ctx)
	require.NoError(t, err)
	assert.Empty(t, dead)
}
