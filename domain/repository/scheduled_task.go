package repository

import (
	"context"
	"time"

	"social-publisher/domain/model"
)

// IScheduledTask is the Task Store.
type IScheduledTask interface {
	Create(ctx context.Context, task *model.ScheduledTask) error
	// Get is ownership-scoped; an empty userID skips the owner check.
	Get(ctx context.Context, taskID, userID string) (*model.ScheduledTask, error)
	ListByUser(ctx context.Context, userID string, status model.TaskStatus) ([]model.ScheduledTask, error)
	ListPending(ctx context.Context) ([]model.ScheduledTask, error)
	// MarkCompleted and MarkFailed only move a pending task; they report
	// false when the task was already terminal.
	MarkCompleted(ctx context.Context, taskID, postID string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, taskID, reason string, at time.Time) (bool, error)
}

// IPublishAttempt is the append-only audit log.
type IPublishAttempt interface {
	Record(ctx context.Context, attempt *model.PublishAttempt) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.PublishAttempt, error)
}

// ITaskLock guards a fired task against concurrent execution across replicas.
type ITaskLock interface {
	Acquire(ctx context.Context, taskID string, ttl time.Duration) (bool, error)
}

// ITaskEventPublisher fans out terminal task transitions.
type ITaskEventPublisher interface {
	PublishTaskEvent(ctx context.Context, event model.TaskEvent) error
}
