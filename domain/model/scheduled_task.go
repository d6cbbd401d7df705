package model

import "time"

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// ScheduledTask is the durable record of a deferred publish.
type ScheduledTask struct {
	TaskID         string     `json:"taskId" bson:"task_id"`
	UserID         string     `json:"userId" bson:"user_id"`
	Platform       Platform   `json:"platform" bson:"platform"`
	TargetID       string     `json:"targetId,omitempty" bson:"target_id"`
	Title          string     `json:"title" bson:"title"`
	Description    string     `json:"description" bson:"description"`
	Hashtags       []string   `json:"hashtags" bson:"hashtags"`
	Media          []string   `json:"media" bson:"media"`
	ScheduleTime   time.Time  `json:"scheduleTime" bson:"schedule_time"`
	CronExpression string     `json:"cronExpression" bson:"cron_expression"`
	Status         TaskStatus `json:"status" bson:"status"`
	ResultPostID   *string    `json:"resultPostId,omitempty" bson:"result_post_id,omitempty"`
	ErrorMessage   *string    `json:"errorMessage,omitempty" bson:"error_message,omitempty"`
	ExecutedAt     *time.Time `json:"executedAt,omitempty" bson:"executed_at,omitempty"`
	CreatedAt      time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" bson:"updated_at"`
}

// Request rebuilds the publish payload snapshotted in the task.
func (t *ScheduledTask) Request() *PublishRequest {
	return &PublishRequest{
		Platform:    t.Platform,
		TargetID:    t.TargetID,
		Title:       t.Title,
		Description: t.Description,
		Hashtags:    append([]string(nil), t.Hashtags...),
		Media:       append([]string(nil), t.Media...),
	}
}

// TaskEvent is broadcast whenever a task reaches a terminal state.
type TaskEvent struct {
	Type         string     `json:"type"`
	TaskID       string     `json:"task_id"`
	UserID       string     `json:"user_id"`
	Platform     Platform   `json:"platform"`
	Status       TaskStatus `json:"status"`
	ResultPostID *string    `json:"result_post_id,omitempty"`
	Error        *string    `json:"error,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

func NewTaskEvent(t *ScheduledTask) TaskEvent {
	return TaskEvent{
		Type:         "task_status",
		TaskID:       t.TaskID,
		UserID:       t.UserID,
		Platform:     t.Platform,
		Status:       t.Status,
		ResultPostID: t.ResultPostID,
		Error:        t.ErrorMessage,
		OccurredAt:   time.Now().UTC(),
	}
}
