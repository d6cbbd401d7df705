package persistence

import (
	"context"
	"testing"
	"time"

	"social-publisher/domain/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestPublishAttemptRepository_Record(t *testing.T) {
	gormDB, mock := newMockGorm(t)
	repo := NewPublishAttemptRepository(gormDB)

	postID := "123_456"
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `publish_attempts`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	attempt := &model.PublishAttempt{
		UserID:         "u-1",
		Platform:       "facebook",
		MediaCount:     0,
		Outcome:        model.AttemptOutcomeSuccess,
		ExternalPostID: &postID,
		DurationMs:     12,
	}
	require.NoError(t, repo.Record(context.Background(), attempt))
	require.Equal(t, int64(1), attempt.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishAttemptRepository_ListByUser(t *testing.T) {
	gormDB, mock := newMockGorm(t)
	repo := NewPublishAttemptRepository(gormDB)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT \\* FROM `publish_attempts` WHERE user_id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "platform", "outcome", "media_count", "duration_ms", "created_at"}).
			AddRow(2, "u-1", "instagram", "failure", 3, 40, now).
			AddRow(1, "u-1", "facebook", "success", 0, 12, now.Add(-time.Minute)))

	attempts, err := repo.ListByUser(context.Background(), "u-1", 10)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	require.Equal(t, "instagram", attempts[0].Platform)
	require.Equal(t, 3, attempts[0].MediaCount)
	require.NoError(t, mock.ExpectationsWereMet())
}
