package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var taskCols = []string{"task_id", "user_id", "platform", "target_id", "title", "description", "hashtags", "media", "schedule_time", "cron_expression", "status", "result_post_id", "error_message", "executed_at", "created_at", "updated_at"}

func sampleTask(now time.Time) *model.ScheduledTask {
	return &model.ScheduledTask{
		TaskID:         "t-1",
		UserID:         "u-1",
		Platform:       model.PlatformInstagram,
		Title:          "Hello",
		Media:          []string{"https://cdn/a.jpg", "https://cdn/b.jpg"},
		ScheduleTime:   now.Add(time.Hour),
		CronExpression: "0 0 4 2 1 *",
		Status:         model.TaskStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestScheduledTaskRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	task := sampleTask(now)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO scheduled_tasks`)).
		WithArgs("t-1", "u-1", "instagram", "", "Hello", "", "[]", `["https://cdn/a.jpg","https://cdn/b.jpg"]`,
			task.ScheduleTime, "0 0 4 2 1 *", "pending", nil, nil, nil, now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, NewScheduledTaskRepository(db).Create(context.Background(), task))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledTaskRepository_GetScopedToOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	repo := NewScheduledTaskRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM scheduled_tasks WHERE task_id=$1 AND user_id=$2`)).
		WithArgs("t-1", "u-1").
		WillReturnRows(sqlmock.NewRows(taskCols).AddRow("t-1", "u-1", "linkedin", "", "T", "D", `["#go"]`, `["https://cdn/a.jpg"]`,
			now, "0 0 3 2 1 *", "completed", "urn:li:share:1", nil, now, now, now))

	task, err := repo.Get(context.Background(), "t-1", "u-1")
	require.NoError(t, err)
	require.Equal(t, model.TaskStatusCompleted, task.Status)
	require.Equal(t, "urn:li:share:1", *task.ResultPostID)
	require.Equal(t, []string{"#go"}, task.Hashtags)
	require.Nil(t, task.ErrorMessage)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM scheduled_tasks WHERE task_id=$1 AND user_id=$2`)).
		WithArgs("t-1", "intruder").
		WillReturnRows(sqlmock.NewRows(taskCols))

	_, err = repo.Get(context.Background(), "t-1", "intruder")
	require.ErrorIs(t, err, apperror.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledTaskRepository_TransitionsOnlyFromPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2026, 1, 2, 4, 0, 0, 0, time.UTC)
	repo := NewScheduledTaskRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE scheduled_tasks SET status=$1, result_post_id=$2, executed_at=$3, updated_at=$3 WHERE task_id=$4 AND status=$5`)).
		WithArgs("completed", "17841_1", at, "t-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE scheduled_tasks SET status=$1, error_message=$2`)).
		WithArgs("failed", "boom", at, "t-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkCompleted(context.Background(), "t-1", "17841_1", at)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.MarkFailed(context.Background(), "t-1", "boom", at)
	require.NoError(t, err)
	require.False(t, ok, "terminal task must not move again")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledTaskRepository_ListPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM scheduled_tasks WHERE status=$1 ORDER BY schedule_time ASC`)).
		WithArgs("pending").
		WillReturnRows(sqlmock.NewRows(taskCols).
			AddRow("t-1", "u-1", "facebook", "p-1", "", "only text", "[]", "[]", now, "0 0 3 2 1 *", "pending", nil, nil, nil, now, now).
			AddRow("t-2", "u-2", "instagram", "", "", "", "[]", `["https://cdn/x.jpg"]`, now.Add(time.Minute), "0 1 3 2 1 *", "pending", nil, nil, nil, now, now))

	tasks, err := NewScheduledTaskRepository(db).ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, "p-1", tasks[0].TargetID)
	require.Equal(t, []string{}, tasks[0].Media)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledTaskRepositoryMSSQL_MarkFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2026, 1, 2, 4, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE dbo.[scheduled_tasks] SET status=@p1, error_message=@p2`)).
		WithArgs("failed", "missed trigger", at, "t-9", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := NewScheduledTaskRepositoryMSSQL(db).MarkFailed(context.Background(), "t-9", "missed trigger", at)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
