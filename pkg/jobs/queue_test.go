package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	done := make(chan Job[int], 1)
	q := NewQueue[int]("test", func(ctx context.Context, job Job[int]) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		done <- job
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[int]{ID: "j1", Payload: 42}))

	select {
	case job := <-done:
		assert.Equal(t, 42, job.Payload)
		assert.Equal(t, 2, job.Attempt)
	case <-time.After(time.Second):
		t.Fatal("job never succeeded")
	}
}

func TestQueueCallsExhaustedHook(t *testing.T) {
	var mu sync.Mutex
	var exhausted []string
	finished := make(chan struct{})
	q := NewQueue[string]("test", func(ctx context.Context, job Job[string]) error {
		return errors.New("permanent")
	}, QueueConfig{MaxRetries: 1, RetryDelay: 5 * time.Millisecond})
	q.OnExhausted(func(job Job[string], err error) {
		mu.Lock()
		exhausted = append(exhausted, job.Payload)
		mu.Unlock()
		close(finished)
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[string]{ID: "j1", Payload: "student-7"}))
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("exhausted hook not called")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"student-7"}, exhausted)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue[int]("idle", func(context.Context, Job[int]) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job[int]{ID: "x"}))
}

func TestQueuePermanentErrorSkipsRetries(t *testing.T) {
	var calls int32
	cause := errors.New("no phone number")
	failed := make(chan error, 1)
	q := NewQueue[int]("test", func(ctx context.Context, job Job[int]) error {
		atomic.AddInt32(&calls, 1)
		return Permanent(cause)
	}, QueueConfig{MaxRetries: 5, RetryDelay: time.Millisecond})
	q.OnExhausted(func(job Job[int], err error) { failed <- err })
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[int]{ID: "j1", Payload: 1}))
	select {
	case err := <-failed:
		assert.Same(t, cause, err)
		assert.False(t, IsPermanent(err))
	case <-time.After(time.Second):
		t.Fatal("failure hook not called")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQueueBackoffDoublesUpToCap(t *testing.T) {
	q := NewQueue[int]("test", nil, QueueConfig{RetryDelay: 100 * time.Millisecond, MaxRetryDelay: 350 * time.Millisecond})
	assert.Equal(t, 100*time.Millisecond, q.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, q.Backoff(2))
	assert.Equal(t, 350*time.Millisecond, q.Backoff(3))
	assert.Equal(t, 350*time.Millisecond, q.Backoff(10))
	assert.Nil(t, Permanent(nil))
}
