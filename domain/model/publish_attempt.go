package model

import "time"

const (
	AttemptOutcomeSuccess = "success"
	AttemptOutcomeFailure = "failure"
)

// PublishAttempt is an append-only log of adapter invocations
type PublishAttempt struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID         string    `json:"user_id" gorm:"size:128;not null;index:idx_publish_attempts_user_created,priority:1"`
	Platform       string    `json:"platform" gorm:"size:32;not null"`
	TargetID       string    `json:"target_id,omitempty" gorm:"size:128"`
	TaskID         *string   `json:"task_id,omitempty" gorm:"size:64;index"`
	MediaCount     int       `json:"media_count"`
	Outcome        string    `json:"outcome" gorm:"size:16;not null"`
	ExternalPostID *string   `json:"external_post_id,omitempty" gorm:"size:255"`
	ErrorKind      *string   `json:"error_kind,omitempty" gorm:"size:64"`
	ErrorMessage   *string   `json:"error_message,omitempty" gorm:"type:text"`
	DurationMs     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime;index:idx_publish_attempts_user_created,priority:2"`
}

func (PublishAttempt) TableName() string {
	return "publish_attempts"
}
