package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
)

const taskColumns = `task_id, user_id, platform, target_id, title, description, hashtags, media, schedule_time, cron_expression, status, result_post_id, error_message, executed_at, created_at, updated_at`

// ScheduledTaskRepository is the PostgreSQL Task Store.
type ScheduledTaskRepository struct{ db *sql.DB }

func NewScheduledTaskRepository(db *sql.DB) *ScheduledTaskRepository {
	return &ScheduledTaskRepository{db: db}
}

func (r *ScheduledTaskRepository) Create(ctx context.Context, t *model.ScheduledTask) error {
	hashtags, media, err := encodeTaskLists(t)
	if err != nil {
		return err
	}
	q := `INSERT INTO scheduled_tasks (` + taskColumns + `)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`
	_, err = r.db.ExecContext(ctx, q, t.TaskID, t.UserID, string(t.Platform), t.TargetID, t.Title, t.Description,
		hashtags, media, t.ScheduleTime, t.CronExpression, string(t.Status),
		nullString(t.ResultPostID), nullString(t.ErrorMessage), nullTime(t.ExecutedAt), t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *ScheduledTaskRepository) Get(ctx context.Context, taskID, userID string) (*model.ScheduledTask, error) {
	q := `SELECT ` + taskColumns + ` FROM scheduled_tasks WHERE task_id=$1`
	args := []interface{}{taskID}
	if userID != "" {
		q += ` AND user_id=$2`
		args = append(args, userID)
	}
	t, err := scanTask(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("scheduled task not found")
	}
	return t, err
}

func (r *ScheduledTaskRepository) ListByUser(ctx context.Context, userID string, status model.TaskStatus) ([]model.ScheduledTask, error) {
	q := `SELECT ` + taskColumns + ` FROM scheduled_tasks WHERE user_id=$1`
	args := []interface{}{userID}
	if status != "" {
		q += ` AND status=$2`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at DESC`
	return queryTasks(ctx, r.db, q, args...)
}

func (r *ScheduledTaskRepository) ListPending(ctx context.Context) ([]model.ScheduledTask, error) {
	return queryTasks(ctx, r.db, `SELECT `+taskColumns+` FROM scheduled_tasks WHERE status=$1 ORDER BY schedule_time ASC`, string(model.TaskStatusPending))
}

func (r *ScheduledTaskRepository) MarkCompleted(ctx context.Context, taskID, postID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE scheduled_tasks SET status=$1, result_post_id=$2, executed_at=$3, updated_at=$3 WHERE task_id=$4 AND status=$5`,
		string(model.TaskStatusCompleted), postID, at, taskID, string(model.TaskStatusPending))
	return affected(res, err)
}

func (r *ScheduledTaskRepository) MarkFailed(ctx context.Context, taskID, reason string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE scheduled_tasks SET status=$1, error_message=$2, executed_at=$3, updated_at=$3 WHERE task_id=$4 AND status=$5`,
		string(model.TaskStatusFailed), reason, at, taskID, string(model.TaskStatusPending))
	return affected(res, err)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*model.ScheduledTask, error) {
	t := &model.ScheduledTask{}
	var platform, status, hashtags, media string
	var postID, errMsg sql.NullString
	var executedAt sql.NullTime
	if err := row.Scan(&t.TaskID, &t.UserID, &platform, &t.TargetID, &t.Title, &t.Description, &hashtags, &media,
		&t.ScheduleTime, &t.CronExpression, &status, &postID, &errMsg, &executedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Platform = model.Platform(platform)
	t.Status = model.TaskStatus(status)
	if err := decodeList(hashtags, &t.Hashtags); err != nil {
		return nil, err
	}
	if err := decodeList(media, &t.Media); err != nil {
		return nil, err
	}
	if postID.Valid {
		v := postID.String
		t.ResultPostID = &v
	}
	if errMsg.Valid {
		v := errMsg.String
		t.ErrorMessage = &v
	}
	if executedAt.Valid {
		v := executedAt.Time
		t.ExecutedAt = &v
	}
	return t, nil
}

func queryTasks(ctx context.Context, db *sql.DB, q string, args ...interface{}) ([]model.ScheduledTask, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]model.ScheduledTask, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

func encodeTaskLists(t *model.ScheduledTask) (string, string, error) {
	hashtags, err := json.Marshal(nonNil(t.Hashtags))
	if err != nil {
		return "", "", fmt.Errorf("marshal hashtags: %w", err)
	}
	media, err := json.Marshal(nonNil(t.Media))
	if err != nil {
		return "", "", fmt.Errorf("marshal media: %w", err)
	}
	return string(hashtags), string(media), nil
}

func decodeList(raw string, out *[]string) error {
	if raw == "" {
		*out = []string{}
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("unmarshal list: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
