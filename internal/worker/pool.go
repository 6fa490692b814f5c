// Package worker implements the task queue's consumer side: one goroutine
// per registered task kind, dequeuing with a short timeout so shutdown can
// interrupt within a bounded time, dispatching to a kind-specific handler,
// and retrying failed tasks up to their max_retries before marking them
// permanently FAILED.
package worker

import (
	"context"
	"sync"
	"time"

	"agentflow/internal/queue"
	"agentflow/internal/telemetry"
	"agentflow/internal/tracing"
)

// Handler processes one dequeued task and returns its result or an error.
// Handlers must respect ctx cancellation at suspension points.
type Handler func(ctx context.Context, task *queue.Task) (any, error)

// dequeueTimeout bounds each BRPOP wait so Stop can interrupt promptly.
const dequeueTimeout = time.Second

// queueClient is the subset of *queue.Client the pool depends on. Tests
// substitute an in-memory fake; production wiring passes a *queue.Client.
type queueClient interface {
	Dequeue(ctx context.Context, kind queue.Kind, timeout time.Duration) (*queue.Task, error)
	Complete(ctx context.Context, taskID string, result any, taskErr string) error
	Update(ctx context.Context, task *queue.Task) error
	Enqueue(ctx context.Context, task *queue.Task) (string, error)
	Close() error
}

// Pool runs one consumer loop per registered task kind.
type Pool struct {
	client   queueClient
	logger   telemetry.Logger
	metrics  telemetry.Metrics
	handlers map[queue.Kind]Handler

	// RetryDelay computes the delay before a failed task is re-enqueued,
	// keyed by the attempt number about to be made (1-indexed). The
	// specification's default worker re-enqueues immediately (delay 0);
	// this seam exists so a delayed-requeue policy can be introduced
	// without changing the no-delay default tested by the testable
	// properties.
	RetryDelay func(attempt int) time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a Pool bound to client. Register handlers with Register
// before calling Start.
func New(client *queue.Client, logger telemetry.Logger, metrics telemetry.Metrics) *Pool {
	return newPool(client, logger, metrics)
}

func newPool(client queueClient, logger telemetry.Logger, metrics telemetry.Metrics) *Pool {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Pool{
		client:     client,
		logger:     logger,
		metrics:    metrics,
		handlers:   make(map[queue.Kind]Handler),
		RetryDelay: func(int) time.Duration { return 0 },
	}
}

// Register binds handler to kind. Must be called before Start.
func (p *Pool) Register(kind queue.Kind, handler Handler) {
	p.handlers[kind] = handler
}

// Start spawns one consumer loop per registered kind. Calling Start while
// already running is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.logger.Warn(ctx, "worker pool already running")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	for kind, handler := range p.handlers {
		p.wg.Add(1)
		go p.loop(runCtx, kind, handler)
		p.logger.Info(ctx, "worker started", "kind", string(kind))
	}
}

// Stop flips the running flag, cancels every consumer loop, awaits their
// termination, then disconnects the queue client. Disconnection is
// attempted even if a consumer returned an error.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()

	if err := p.client.Close(); err != nil {
		p.logger.Warn(ctx, "disconnect queue client failed", "error", err.Error())
		return err
	}
	p.logger.Info(ctx, "all workers stopped")
	return nil
}

func (p *Pool) loop(ctx context.Context, kind queue.Kind, handler Handler) {
	defer p.wg.Done()
	p.logger.Info(ctx, "worker loop started", "kind", string(kind))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info(ctx, "worker loop cancelled", "kind", string(kind))
			return
		default:
		}

		task, err := p.client.Dequeue(ctx, kind, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error(ctx, "worker loop error", "kind", string(kind), "error", err.Error())
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		if task == nil {
			continue
		}

		if task.Status == queue.StatusCancelled {
			p.logger.Info(ctx, "task cancelled, skipping", "task_id", task.ID)
			continue
		}

		taskCtx := ctx
		if traceID, ok := task.TraceID(); ok {
			taskCtx = tracing.WithTraceID(ctx, traceID)
		}

		p.processTask(taskCtx, task, handler)
	}
}

func (p *Pool) processTask(ctx context.Context, task *queue.Task, handler Handler) {
	start := time.Now()
	p.logger.Info(ctx, "processing task", "task_id", task.ID, "kind", string(task.Kind))

	result, err := handler(ctx, task)
	p.metrics.RecordTimer("worker.task_duration", time.Since(start), "kind", string(task.Kind))

	if err == nil {
		if cerr := p.client.Complete(ctx, task.ID, result, ""); cerr != nil {
			p.logger.Error(ctx, "complete task failed", "task_id", task.ID, "error", cerr.Error())
		}
		p.logger.Info(ctx, "task processed", "task_id", task.ID)
		return
	}

	p.logger.Error(ctx, "task processing failed", "task_id", task.ID, "error", err.Error())

	if task.RetryCount < task.MaxRetries {
		task.RetryCount++
		task.Status = queue.StatusQueued
		task.Error = ""
		if uerr := p.client.Update(ctx, task); uerr != nil {
			p.logger.Error(ctx, "update task before retry failed", "task_id", task.ID, "error", uerr.Error())
			return
		}

		if delay := p.RetryDelay(task.RetryCount); delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}

		if _, eerr := p.client.Enqueue(ctx, task); eerr != nil {
			p.logger.Error(ctx, "re-enqueue task failed", "task_id", task.ID, "error", eerr.Error())
			return
		}
		p.logger.Info(ctx, "task will retry", "task_id", task.ID, "retry_count", task.RetryCount, "max_retries", task.MaxRetries)
		return
	}

	if cerr := p.client.Complete(ctx, task.ID, nil, err.Error()); cerr != nil {
		p.logger.Error(ctx, "complete failed task failed", "task_id", task.ID, "error", cerr.Error())
	}
}
