// Package queue implements interfaces.UpdateQueue over hibiken/asynq: a
// Redis-backed queue of inbound incremental-scrape update notifications,
// the incremental-via-update-queue ingestion mode.
//
// asynq is built around a push-model Server/handler; it has no native
// long-poll Receive call. UpdateQueue's pull contract is built on top of
// asynq's Inspector, treating ListPendingTasks as the receive side and a
// task's ID as the delete handle.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

const (
	taskTypePostUpdate = "course:post_update"
	queueName          = "incremental_scrape"
)

// Queue is the asynq-backed UpdateQueue implementation. The same Redis
// connection options back both the producing client and the consuming
// inspector.
type Queue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	pollEvery time.Duration
}

// New connects to Redis at the given address and returns a ready Queue.
func New(redisAddr string) *Queue {
	opt := asynq.RedisClientOpt{Addr: redisAddr}
	return &Queue{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		pollEvery: 100 * time.Millisecond,
	}
}

// Close releases the underlying Redis connections.
func (q *Queue) Close() error {
	if err := q.client.Close(); err != nil {
		return err
	}
	return q.inspector.Close()
}

var _ interfaces.UpdateQueue = (*Queue)(nil)

// Enqueue publishes an inbound incremental-scrape notification. Called by
// the webhook/trigger surface that learns a course has new activity;
// consumed later by the scraper's incremental mode via Receive.
func (q *Queue) Enqueue(ctx context.Context, msg interfaces.QueueMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: encode payload: %w", err)
	}
	task := asynq.NewTask(taskTypePostUpdate, payload)
	if _, err := q.client.EnqueueContext(ctx, task, asynq.Queue(queueName)); err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}
	return nil
}

// Receive long-polls for up to maxMessages pending updates, waiting up to
// waitSeconds for at least one to appear before returning empty-handed.
func (q *Queue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]interfaces.QueueMessage, error) {
	if maxMessages <= 0 || maxMessages > 10 {
		maxMessages = 10
	}
	deadline := time.Now().Add(time.Duration(waitSeconds) * time.Second)

	for {
		tasks, err := q.inspector.ListPendingTasks(queueName, asynq.PageSize(maxMessages))
		if err != nil {
			return nil, fmt.Errorf("queue: list pending: %w", err)
		}
		if len(tasks) > 0 {
			out := make([]interfaces.QueueMessage, 0, len(tasks))
			for _, task := range tasks {
				var msg interfaces.QueueMessage
				if err := json.Unmarshal(task.Payload, &msg); err != nil {
					continue
				}
				msg.Handle = task.ID
				out = append(out, msg)
			}
			return out, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollEvery):
		}
	}
}

// Delete removes a task by its handle (asynq task id), acknowledging
// processing of that update.
func (q *Queue) Delete(ctx context.Context, handle string) error {
	if err := q.inspector.DeleteTask(queueName, handle); err != nil {
		return fmt.Errorf("queue: delete %s: %w", handle, err)
	}
	return nil
}
