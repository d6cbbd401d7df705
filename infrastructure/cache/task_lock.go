package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const taskLockPrefix = "social-publisher:task-lock:"

// TaskLock is a SETNX lease so a fired task runs on one replica only.
// Without a Redis client every Acquire succeeds.
type TaskLock struct {
	client *redis.Client
}

func NewTaskLock(client *redis.Client) *TaskLock {
	return &TaskLock{client: client}
}

func (l *TaskLock) Acquire(ctx context.Context, taskID string, ttl time.Duration) (bool, error) {
	if l == nil || l.client == nil {
		return true, nil
	}
	return l.client.SetNX(ctx, taskLockPrefix+taskID, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}
