package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"agentflow/internal/errs"
	"agentflow/internal/telemetry"
)

const retention = 7 * 24 * time.Hour

const (
	queuePrefix  = "task_queue:"
	taskPrefix   = "task:"
	statusPrefix = "task_status:"
)

// Client is the Redis-backed task queue client. It owns a bounded
// connection pool and transparently reconnects on health-check failure;
// connection failures are fatal to the operation in progress but not to
// the process.
type Client struct {
	redis  *redis.Client
	logger telemetry.Logger
}

// Config configures a Client.
type Config struct {
	// RedisURL is a redis://host:port/db connection string. Required.
	RedisURL string
	// PoolSize bounds the number of concurrent Redis connections.
	// Defaults to 10 if not provided.
	PoolSize int
	// Logger receives connection-health diagnostics. Defaults to a no-op
	// logger if not provided.
	Logger telemetry.Logger
}

// New constructs a Client from cfg, applying defaults for unset fields.
func New(cfg Config) (*Client, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	poolSize := cfg.PoolSize
	if poolSize == 0 {
		poolSize = 10
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = poolSize

	return &Client{redis: redis.NewClient(opts), logger: logger}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error { return c.redis.Close() }

func (c *Client) ensureHealthy(ctx context.Context) error {
	if err := c.redis.Ping(ctx).Err(); err != nil {
		c.logger.Warn(ctx, "redis connection unhealthy", "error", err.Error())
		return errs.Wrap(errs.KindUpstream, "redis unavailable", err)
	}
	return nil
}

func queueName(kind Kind) string  { return queuePrefix + string(kind) }
func taskKey(id string) string    { return taskPrefix + id }
func statusKey(id string) string  { return statusPrefix + id }

// Enqueue marks task QUEUED, persists it and its status key with a 7-day
// TTL, and LPUSHes its id onto the queue for its kind.
func (c *Client) Enqueue(ctx context.Context, task *Task) (string, error) {
	if err := c.ensureHealthy(ctx); err != nil {
		return "", err
	}

	task.Status = StatusQueued
	task.UpdatedAt = time.Now()

	data, err := json.Marshal(task)
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, "marshal task", err)
	}

	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, taskKey(task.ID), data, retention)
	pipe.Set(ctx, statusKey(task.ID), string(task.Status), retention)
	pipe.LPush(ctx, queueName(task.Kind), task.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", errs.Wrap(errs.KindUpstream, "enqueue task", err)
	}

	c.logger.Info(ctx, "task enqueued", "task_id", task.ID, "kind", string(task.Kind))
	return task.ID, nil
}

// Dequeue blocks up to timeout for a task id on kind's queue (BRPOP), loads
// the task, flips it to RUNNING with started_at set, persists the update,
// and returns it. Returns (nil, nil) on timeout.
func (c *Client) Dequeue(ctx context.Context, kind Kind, timeout time.Duration) (*Task, error) {
	if err := c.ensureHealthy(ctx); err != nil {
		return nil, err
	}

	result, err := c.redis.BRPop(ctx, timeout, queueName(kind)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindUpstream, "dequeue task", err)
	}
	taskID := result[1]

	task, err := c.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		c.logger.Warn(ctx, "dequeued task missing from store", "task_id", taskID)
		return nil, nil
	}

	now := time.Now()
	task.Status = StatusRunning
	task.StartedAt = &now
	if err := c.Update(ctx, task); err != nil {
		return nil, err
	}

	c.logger.Info(ctx, "task dequeued", "task_id", task.ID, "kind", string(task.Kind))
	return task, nil
}

// Get loads and deserializes a task by id, returning (nil, nil) if absent.
func (c *Client) Get(ctx context.Context, taskID string) (*Task, error) {
	if err := c.ensureHealthy(ctx); err != nil {
		return nil, err
	}

	data, err := c.redis.Get(ctx, taskKey(taskID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindUpstream, "get task", err)
	}

	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "unmarshal task", err)
	}
	return &task, nil
}

// Update overwrites the serialized task and status keys, refreshing the
// 7-day TTL on both.
func (c *Client) Update(ctx context.Context, task *Task) error {
	if err := c.ensureHealthy(ctx); err != nil {
		return err
	}

	task.UpdatedAt = time.Now()
	data, err := json.Marshal(task)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "marshal task", err)
	}

	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, taskKey(task.ID), data, retention)
	pipe.Set(ctx, statusKey(task.ID), string(task.Status), retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(errs.KindUpstream, "update task", err)
	}
	return nil
}

// Complete sets result/error/completed_at and flips status to COMPLETED (no
// error) or FAILED (error present).
func (c *Client) Complete(ctx context.Context, taskID string, result any, taskErr string) error {
	task, err := c.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		c.logger.Warn(ctx, "complete: task not found", "task_id", taskID)
		return nil
	}

	now := time.Now()
	task.CompletedAt = &now
	task.Result = result
	task.Error = taskErr
	if taskErr != "" {
		task.Status = StatusFailed
	} else {
		task.Status = StatusCompleted
	}

	if err := c.Update(ctx, task); err != nil {
		return err
	}
	c.logger.Info(ctx, "task completed", "task_id", taskID, "status", string(task.Status))
	return nil
}

// Status returns the status string stored for task_id, or ("", false) if
// absent.
func (c *Client) Status(ctx context.Context, taskID string) (Status, bool, error) {
	if err := c.ensureHealthy(ctx); err != nil {
		return "", false, err
	}
	v, err := c.redis.Get(ctx, statusKey(taskID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, errs.Wrap(errs.KindUpstream, "get task status", err)
	}
	return Status(v), true, nil
}

// QueueLength returns LLEN for kind's queue.
func (c *Client) QueueLength(ctx context.Context, kind Kind) (int64, error) {
	if err := c.ensureHealthy(ctx); err != nil {
		return 0, err
	}
	n, err := c.redis.LLen(ctx, queueName(kind)).Result()
	if err != nil {
		return 0, errs.Wrap(errs.KindUpstream, "queue length", err)
	}
	return n, nil
}

// Cancel flips a PENDING or QUEUED task to CANCELLED with completed_at set,
// returning true on success. Returns false (no error) if the task is
// missing or already past PENDING/QUEUED — cancellation is a terminal,
// idempotent operation on the caller's side.
func (c *Client) Cancel(ctx context.Context, taskID string) (bool, error) {
	task, err := c.Get(ctx, taskID)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}
	if task.Status != StatusPending && task.Status != StatusQueued {
		return false, nil
	}

	now := time.Now()
	task.Status = StatusCancelled
	task.CompletedAt = &now
	if err := c.Update(ctx, task); err != nil {
		return false, err
	}

	c.logger.Info(ctx, "task cancelled", "task_id", taskID)
	return true, nil
}
