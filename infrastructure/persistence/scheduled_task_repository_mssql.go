package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
)

type ScheduledTaskRepositoryMSSQL struct{ db *sql.DB }

func NewScheduledTaskRepositoryMSSQL(db *sql.DB) *ScheduledTaskRepositoryMSSQL {
	return &ScheduledTaskRepositoryMSSQL{db: db}
}

func (r *ScheduledTaskRepositoryMSSQL) Create(ctx context.Context, t *model.ScheduledTask) error {
	hashtags, media, err := encodeTaskLists(t)
	if err != nil {
		return err
	}
	q := `INSERT INTO dbo.[scheduled_tasks] (` + taskColumns + `)
VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8,@p9,@p10,@p11,@p12,@p13,@p14,@p15,@p16)`
	_, err = r.db.ExecContext(ctx, q, t.TaskID, t.UserID, string(t.Platform), t.TargetID, t.Title, t.Description,
		hashtags, media, t.ScheduleTime, t.CronExpression, string(t.Status),
		nullString(t.ResultPostID), nullString(t.ErrorMessage), nullTime(t.ExecutedAt), t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *ScheduledTaskRepositoryMSSQL) Get(ctx context.Context, taskID, userID string) (*model.ScheduledTask, error) {
	q := `SELECT ` + taskColumns + ` FROM dbo.[scheduled_tasks] WHERE task_id=@p1`
	args := []interface{}{taskID}
	if userID != "" {
		q += ` AND user_id=@p2`
		args = append(args, userID)
	}
	t, err := scanTask(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("scheduled task not found")
	}
	return t, err
}

func (r *ScheduledTaskRepositoryMSSQL) ListByUser(ctx context.Context, userID string, status model.TaskStatus) ([]model.ScheduledTask, error) {
	q := `SELECT ` + taskColumns + ` FROM dbo.[scheduled_tasks] WHERE user_id=@p1`
	args := []interface{}{userID}
	if status != "" {
		q += ` AND status=@p2`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at DESC`
	return queryTasks(ctx, r.db, q, args...)
}

func (r *ScheduledTaskRepositoryMSSQL) ListPending(ctx context.Context) ([]model.ScheduledTask, error) {
	return queryTasks(ctx, r.db, `SELECT `+taskColumns+` FROM dbo.[scheduled_tasks] WHERE status=@p1 ORDER BY schedule_time ASC`, string(model.TaskStatusPending))
}

func (r *ScheduledTaskRepositoryMSSQL) MarkCompleted(ctx context.Context, taskID, postID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE dbo.[scheduled_tasks] SET status=@p1, result_post_id=@p2, executed_at=@p3, updated_at=@p3 WHERE task_id=@p4 AND status=@p5`,
		string(model.TaskStatusCompleted), postID, at, taskID, string(model.TaskStatusPending))
	return affected(res, err)
}

func (r *ScheduledTaskRepositoryMSSQL) MarkFailed(ctx context.Context, taskID, reason string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE dbo.[scheduled_tasks] SET status=@p1, error_message=@p2, executed_at=@p3, updated_at=@p3 WHERE task_id=@p4 AND status=@p5`,
		string(model.TaskStatusFailed), reason, at, taskID, string(model.TaskStatusPending))
	return affected(res, err)
}
