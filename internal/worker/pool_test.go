package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentflow/internal/queue"
)

// fakeQueue is an in-memory queueClient used to exercise retry and
// completion semantics without a real Redis instance.
type fakeQueue struct {
	mu        sync.Mutex
	pending   []*queue.Task
	completed map[string]*queue.Task
	enqueues  int
	closed    bool
	notify    chan struct{}
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{completed: map[string]*queue.Task{}, notify: make(chan struct{}, 16)}
}

func (f *fakeQueue) seed(task *queue.Task) {
	f.mu.Lock()
	f.pending = append(f.pending, task)
	f.mu.Unlock()
	f.notify <- struct{}{}
}

func (f *fakeQueue) Dequeue(ctx context.Context, kind queue.Kind, timeout time.Duration) (*queue.Task, error) {
	select {
	case <-f.notify:
	case <-time.After(timeout):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return nil, nil
	}
	t := f.pending[0]
	f.pending = f.pending[1:]
	return t, nil
}

func (f *fakeQueue) Complete(ctx context.Context, taskID string, result any, taskErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := queue.StatusCompleted
	if taskErr != "" {
		status = queue.StatusFailed
	}
	f.completed[taskID] = &queue.Task{ID: taskID, Status: status, Result: result, Error: taskErr}
	return nil
}

func (f *fakeQueue) Update(ctx context.Context, task *queue.Task) error { return nil }

func (f *fakeQueue) Enqueue(ctx context.Context, task *queue.Task) (string, error) {
	f.mu.Lock()
	f.enqueues++
	f.pending = append(f.pending, task)
	f.mu.Unlock()
	f.notify <- struct{}{}
	return task.ID, nil
}

func (f *fakeQueue) Close() error {
	f.closed = true
	return nil
}

func TestPool_SuccessfulTaskCompletes(t *testing.T) {
	fq := newFakeQueue()
	p := newPool(fq, nil, nil)

	done := make(chan struct{})
	p.Register(queue.KindWorkflowExecute, func(ctx context.Context, task *queue.Task) (any, error) {
		close(done)
		return "ok", nil
	})

	task := queue.NewTask(queue.KindWorkflowExecute, nil, 3)
	fq.seed(task)

	p.Start(context.Background())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked")
	}

	require.NoError(t, p.Stop(context.Background()))

	fq.mu.Lock()
	completed := fq.completed[task.ID]
	fq.mu.Unlock()
	require.NotNil(t, completed)
	assert.Equal(t, queue.StatusCompleted, completed.Status)
}

// TestPool_MaxRetriesThreeYieldsFourAttempts is the boundary property from
// the specification: an always-failing handler with max_retries=3 produces
// exactly 1 enqueue + 3 re-enqueues = 4 attempts, terminal status FAILED.
func TestPool_MaxRetriesThreeYieldsFourAttempts(t *testing.T) {
	fq := newFakeQueue()
	p := newPool(fq, nil, nil)

	var attempts int
	var mu sync.Mutex
	allDone := make(chan struct{})

	p.Register(queue.KindWorkflowExecute, func(ctx context.Context, task *queue.Task) (any, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 4 {
			close(allDone)
		}
		return nil, errors.New("handler always fails")
	})

	task := queue.NewTask(queue.KindWorkflowExecute, nil, 3)
	fq.seed(task)

	p.Start(context.Background())
	select {
	case <-allDone:
	case <-time.After(3 * time.Second):
		t.Fatalf("expected 4 attempts, got %d", attempts)
	}

	// allow the 4th attempt's completion to land before stopping
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, p.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, attempts)
	assert.Equal(t, 3, fq.enqueues, "3 re-enqueues after the initial seed")

	fq.mu.Lock()
	completed := fq.completed[task.ID]
	fq.mu.Unlock()
	require.NotNil(t, completed)
	assert.Equal(t, queue.StatusFailed, completed.Status)
}

func TestPool_CancelledTaskIsSkipped(t *testing.T) {
	fq := newFakeQueue()
	p := newPool(fq, nil, nil)

	invoked := false
	p.Register(queue.KindWorkflowExecute, func(ctx context.Context, task *queue.Task) (any, error) {
		invoked = true
		return nil, nil
	})

	task := queue.NewTask(queue.KindWorkflowExecute, nil, 3)
	task.Status = queue.StatusCancelled
	fq.seed(task)

	p.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, p.Stop(context.Background()))

	assert.False(t, invoked, "cancelled task must not reach the handler")
}
