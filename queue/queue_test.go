package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueDequeue_FIFO(t *testing.T) {
	q := New[int, string]()
	require.NoError(t, q.Enqueue(1, "a", AllowDuplicate))
	require.NoError(t, q.Enqueue(2, "b", AllowDuplicate))
	require.NoError(t, q.Enqueue(1, "c", AllowDuplicate))

	v, ok, err := q.Dequeue()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok, err = q.Dequeue()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestEnqueue_EnforceUniqueRejectsDuplicateKey(t *testing.T) {
	q := New[int, string]()
	require.NoError(t, q.Enqueue(1, "a", EnforceUnique))
	err := q.Enqueue(1, "b", EnforceUnique)
	require.ErrorIs(t, err, ErrDuplicateKey)
	assert.Equal(t, 1, q.Len())
}

func TestEnqueue_AllowDuplicateNeverRejects(t *testing.T) {
	q := New[int, string]()
	require.NoError(t, q.Enqueue(1, "a", AllowDuplicate))
	require.NoError(t, q.Enqueue(1, "b", AllowDuplicate))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 2, q.CountByKey(1))
}

func TestEnqueueBatch_PartialAcceptance(t *testing.T) {
	q := New[int, string]()
	require.NoError(t, q.Enqueue(1, "a", EnforceUnique))

	res := q.EnqueueBatch([]BatchItem[int, string]{
		{Key: 1, Val: "dup"},
		{Key: 2, Val: "new"},
		{Key: 2, Val: "dup-within-batch"},
	}, EnforceUnique)

	assert.Equal(t, 1, res.Accepted)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Failures, 2)
	assert.ErrorIs(t, res.Failures[0].Err, ErrDuplicateKey)
	assert.Equal(t, "dup", res.Failures[0].Item)
	assert.Equal(t, "dup-within-batch", res.Failures[1].Item)
}

func TestDequeue_EmptyReturnsNotOK(t *testing.T) {
	q := New[int, string]()
	_, ok, err := q.Dequeue()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPeek_DoesNotRemove(t *testing.T) {
	q := New[int, string]()
	require.NoError(t, q.Enqueue(1, "a", AllowDuplicate))

	v, ok, err := q.Peek()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, 1, q.Len())
}

func TestRemoveFirstByKey_PreservesOrderOfSurvivors(t *testing.T) {
	q := New[int, string]()
	require.NoError(t, q.Enqueue(1, "a", AllowDuplicate))
	require.NoError(t, q.Enqueue(2, "b", AllowDuplicate))
	require.NoError(t, q.Enqueue(1, "c", AllowDuplicate))

	removed := q.RemoveFirstByKey(1)
	assert.True(t, removed)
	assert.Equal(t, []string{"b", "c"}, q.Snapshot())
	assert.Equal(t, 1, q.CountByKey(1))
}

func TestRemoveAllByKey(t *testing.T) {
	q := New[int, string]()
	require.NoError(t, q.Enqueue(1, "a", AllowDuplicate))
	require.NoError(t, q.Enqueue(2, "b", AllowDuplicate))
	require.NoError(t, q.Enqueue(1, "c", AllowDuplicate))

	removed := q.RemoveAllByKey(1)
	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"b"}, q.Snapshot())
	assert.False(t, q.Contains(1))
}

func TestClear_WakesWaitersWithoutDisposing(t *testing.T) {
	q := New[int, string]()
	done := make(chan struct{})
	go func() {
		_, ok, err := q.DequeueWait(context.Background(), -1)
		assert.NoError(t, err)
		assert.False(t, ok)
		close(done)
	}()

	// give the waiter a chance to block
	time.Sleep(20 * time.Millisecond)
	q.Clear()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken by Clear")
	}
}

func TestDispose_RejectsSubsequentOperations(t *testing.T) {
	q := New[int, string]()
	require.NoError(t, q.Enqueue(1, "a", AllowDuplicate))
	q.Dispose()

	err := q.Enqueue(2, "b", AllowDuplicate)
	require.ErrorIs(t, err, ErrDisposed)

	_, _, err = q.Dequeue()
	require.ErrorIs(t, err, ErrDisposed)

	assert.True(t, q.Disposed())
}

func TestDispose_WakesBlockedWaiters(t *testing.T) {
	q := New[int, string]()
	errCh := make(chan error, 1)
	go func() {
		_, _, err := q.DequeueWait(context.Background(), -1)
		errCh <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !waiterIsBlocked(q) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	q.Dispose()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrDisposed)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken by Dispose")
	}
}

func waiterIsBlocked[K comparable, V any](q *Queue[K, V]) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0 && !q.disposed
}

func TestDequeueWait_TimeoutZeroIsNonBlocking(t *testing.T) {
	q := New[int, string]()
	_, ok, err := q.DequeueWait(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDequeueWait_DeadlineExpires(t *testing.T) {
	q := New[int, string]()
	start := time.Now()
	_, ok, err := q.DequeueWait(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestDequeueWait_ContextCancellation(t *testing.T) {
	q := New[int, string]()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, _, err := q.DequeueWait(ctx, -1)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken by context cancellation")
	}
}

func TestDequeueWait_WokenByEnqueue(t *testing.T) {
	q := New[int, string]()
	valCh := make(chan string, 1)
	go func() {
		v, ok, err := q.DequeueWait(context.Background(), -1)
		require.NoError(t, err)
		require.True(t, ok)
		valCh <- v
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Enqueue(1, "payload", AllowDuplicate))

	select {
	case v := <-valCh:
		assert.Equal(t, "payload", v)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken by Enqueue")
	}
}

// invariantCheck asserts properties (a) and (b) of the keyed-queue contract:
// sum(per-key counts) equals queue size, and no key is present with count zero.
func invariantCheck[K comparable, V any](t *testing.T, q *Queue[K, V]) {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()

	sum := 0
	for k, c := range q.counts {
		assert.NotZero(t, c, "key %v present with zero count", k)
		sum += c
	}
	assert.Equal(t, len(q.items), sum, "sum(per-key counts) must equal queue size")
}

func TestInvariants_HoldAcrossMixedOperations(t *testing.T) {
	q := New[int, int]()
	for i := 0; i < 20; i++ {
		require.NoError(t, q.Enqueue(i%4, i, AllowDuplicate))
	}
	invariantCheck(t, q)

	q.RemoveFirstByKey(2)
	invariantCheck(t, q)

	q.RemoveAllByKey(1)
	invariantCheck(t, q)

	_, _, _ = q.Dequeue()
	invariantCheck(t, q)

	q.EnqueueBatch([]BatchItem[int, int]{{Key: 5, Val: 100}, {Key: 5, Val: 101}}, AllowDuplicate)
	invariantCheck(t, q)
}
