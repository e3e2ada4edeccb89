package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ispasdani/k2ide/internal/core/domain"
	"github.com/ispasdani/k2ide/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

const (
	taskStream     = "k2ide:tasks"
	taskGroup      = "k2ide:workers"
	scheduledTasks = "k2ide:scheduled"
	taskKeyPrefix  = "k2ide:task:"

	// taskTTL bounds how long task records stay readable for status checks
	taskTTL = 24 * time.Hour

	// claimTimeout is how long a delivered message may stay unacked before
	// another worker takes it over
	claimTimeout = 5 * time.Minute
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements TaskQueue using Redis Streams with one consumer group.
// Task records live in plain keys; the stream only carries task IDs.
// Retried tasks wait in a sorted set until their ScheduledFor time.
type Queue struct {
	client       *redis.Client
	consumerName string
}

// NewQueue creates the consumer group if needed.
// consumerName should be unique per worker process.
func NewQueue(ctx context.Context, client *redis.Client, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = "worker-" + domain.GenerateID()
	}

	err := client.XGroupCreateMkStream(ctx, taskStream, taskGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &Queue{client: client, consumerName: consumerName}, nil
}

func taskKey(id string) string    { return taskKeyPrefix + id }
func messageKey(id string) string { return taskKeyPrefix + id + ":msg" }

// Enqueue stores the task and publishes it, or parks it until ScheduledFor.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return fmt.Errorf("task is required: %w", domain.ErrInvalidInput)
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, taskKey(task.ID), data, taskTTL)
	q.publish(ctx, pipe, task)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

func (q *Queue) publish(ctx context.Context, pipe redis.Pipeliner, task *domain.Task) {
	if task.ScheduledFor.After(time.Now()) {
		pipe.ZAdd(ctx, scheduledTasks, redis.Z{
			Score:  float64(task.ScheduledFor.UnixMilli()),
			Member: task.ID,
		})
		return
	}
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: taskStream,
		Values: map[string]any{
			"task_id":    task.ID,
			"type":       string(task.Type),
			"project_id": task.ProjectID,
		},
	})
}

// DequeueWithTimeout claims the next task, blocking up to timeout seconds.
// A timeout of 0 checks once without blocking.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	if err := q.promoteScheduled(ctx); err != nil {
		return nil, fmt.Errorf("promote scheduled tasks: %w", err)
	}

	if task, err := q.claimAbandoned(ctx); err == nil && task != nil {
		return task, nil
	}

	block := time.Duration(timeout) * time.Second
	if timeout <= 0 {
		block = -1
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    taskGroup,
		Consumer: q.consumerName,
		Streams:  []string{taskStream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return q.start(ctx, streams[0].Messages[0])
}

// start marks the task behind msg as processing and remembers the message ID.
// Messages without a readable task are dropped.
func (q *Queue) start(ctx context.Context, msg redis.XMessage) (*domain.Task, error) {
	taskID, _ := msg.Values["task_id"].(string)
	task, err := q.GetTask(ctx, taskID)
	if errors.Is(err, domain.ErrNotFound) || taskID == "" {
		q.client.XAck(ctx, taskStream, taskGroup, msg.ID)
		q.client.XDel(ctx, taskStream, msg.ID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	task.MarkProcessing()
	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, taskKey(task.ID), data, taskTTL)
	pipe.Set(ctx, messageKey(task.ID), msg.ID, taskTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("mark task processing: %w", err)
	}
	return task, nil
}

// Ack marks a task completed and removes its stream message.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	return q.finish(ctx, taskID, func(task *domain.Task, pipe redis.Pipeliner) {
		task.MarkCompleted()
	})
}

// Nack reschedules the task with backoff, or fails it once attempts run out.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	return q.finish(ctx, taskID, func(task *domain.Task, pipe redis.Pipeliner) {
		if !task.CanRetry() {
			task.MarkFailed(reason)
			return
		}
		task.Retry(reason)
		q.publish(ctx, pipe, task)
	})
}

// Fail marks the task failed without retrying.
func (q *Queue) Fail(ctx context.Context, taskID string, reason string) error {
	return q.finish(ctx, taskID, func(task *domain.Task, pipe redis.Pipeliner) {
		task.MarkFailed(reason)
	})
}

// finish acks the delivered message, applies update and stores the task atomically.
func (q *Queue) finish(ctx context.Context, taskID string, update func(*domain.Task, redis.Pipeliner)) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	msgID, err := q.client.Get(ctx, messageKey(taskID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("get message id: %w", err)
	}

	pipe := q.client.TxPipeline()
	if msgID != "" {
		pipe.XAck(ctx, taskStream, taskGroup, msgID)
		pipe.XDel(ctx, taskStream, msgID)
	}
	pipe.Del(ctx, messageKey(taskID))

	update(task, pipe)
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	pipe.Set(ctx, taskKey(taskID), data, taskTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update task %s: %w", taskID, err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := q.client.Get(ctx, taskKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &task, nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close is a no-op; the client is shared with the lock.
func (q *Queue) Close() error {
	return nil
}

// promoteScheduled moves due retries from the sorted set onto the stream.
func (q *Queue) promoteScheduled(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, scheduledTasks, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}).Result()
	if err != nil || len(due) == 0 {
		return err
	}

	pipe := q.client.TxPipeline()
	for _, taskID := range due {
		// ZRem first so a concurrent promoter cannot publish the same ID twice.
		removed, err := q.client.ZRem(ctx, scheduledTasks, taskID).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		task, err := q.GetTask(ctx, taskID)
		if err != nil {
			continue
		}
		task.ScheduledFor = time.Now()
		q.publish(ctx, pipe, task)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// claimAbandoned takes over a message another consumer left unacked too long.
func (q *Queue) claimAbandoned(ctx context.Context) (*domain.Task, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: taskStream,
		Group:  taskGroup,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   claimTimeout,
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   taskStream,
			Group:    taskGroup,
			Consumer: q.consumerName,
			MinIdle:  claimTimeout,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}
		task, err := q.start(ctx, claimed[0])
		if err != nil || task == nil {
			continue
		}
		return task, nil
	}
	return nil, nil
}
