package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/persistence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type publishFixture struct {
	adapter  *MockAdapter
	vault    ICredentialVault
	tasks    *persistence.MemoryTaskStore
	attempts *persistence.MemoryAttemptLog
	usecase  *PublishUsecase
}

func newPublishFixture(t *testing.T) *publishFixture {
	t.Helper()
	vault, _ := newTestVault(t)
	exp := time.Now().Add(time.Hour)
	require.NoError(t, vault.Store(context.Background(), "user-1", model.PlatformLinkedIn, model.TokenGrant{AccessToken: "li-token", ExpiresAt: &exp}, &model.Identity{ProfileID: "abc"}))

	f := &publishFixture{
		adapter:  newMockAdapter(model.PlatformLinkedIn, 9),
		vault:    vault,
		tasks:    persistence.NewMemoryTaskStore(),
		attempts: persistence.NewMemoryAttemptLog(),
	}
	f.usecase = NewPublishUsecase([]repository.IPlatformAdapter{f.adapter}, vault, f.tasks).WithAttemptLog(f.attempts)
	f.usecase.WithScheduler(NewScheduler(SchedulerConfig{}, f.tasks, nil, f.usecase))
	return f
}

func TestExecute_ImmediatePublishReturnsPostID(t *testing.T) {
	f := newPublishFixture(t)
	f.adapter.On("Publish", mock.Anything, mock.Anything, mock.MatchedBy(func(c *model.Credential) bool {
		return c.AccessToken == "li-token"
	})).Return("urn:li:share:1", nil).Once()

	res, err := f.usecase.Execute(context.Background(), "user-1", &model.PublishRequest{
		Platform: model.PlatformLinkedIn,
		Title:    "Hello",
		Media:    []string{"  https://cdn.example.com/a.jpg ", ""},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Post)
	assert.Nil(t, res.Scheduled)
	assert.Equal(t, "urn:li:share:1", res.Post.PostID)

	req := f.adapter.Calls[0].Arguments.Get(1).(*model.PublishRequest)
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg"}, req.Media)

	attempts, err := f.usecase.ListAttempts(context.Background(), "user-1", 10)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, model.AttemptOutcomeSuccess, attempts[0].Outcome)
	assert.Equal(t, 1, attempts[0].MediaCount)
	assert.Nil(t, attempts[0].TaskID)
	f.adapter.AssertExpectations(t)
}

func TestExecute_PlatformErrorPropagatesAndIsAudited(t *testing.T) {
	f := newPublishFixture(t)
	f.adapter.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Return("", apperror.PlatformAPI("linkedin", apperror.StageCompose, 422, "bad share")).Once()

	_, err := f.usecase.Execute(context.Background(), "user-1", &model.PublishRequest{Platform: model.PlatformLinkedIn, Title: "x"})
	require.ErrorIs(t, err, apperror.ErrPlatformAPI)

	attempts, _ := f.attempts.ListByUser(context.Background(), "user-1", 0)
	require.Len(t, attempts, 1)
	assert.Equal(t, model.AttemptOutcomeFailure, attempts[0].Outcome)
	require.NotNil(t, attempts[0].ErrorKind)
	assert.Equal(t, string(apperror.KindPlatformAPI), *attempts[0].ErrorKind)
}

func TestExecute_ValidationHappensBeforeAnyCall(t *testing.T) {
	f := newPublishFixture(t)
	media := make([]string, 10)
	for i := range media {
		media[i] = "https://cdn.example.com/img.jpg"
	}

	cases := []struct {
		name string
		req  *model.PublishRequest
		want error
	}{
		{"too many media", &model.PublishRequest{Platform: model.PlatformLinkedIn, Media: media}, apperror.ErrTooManyMediaItems},
		{"empty post", &model.PublishRequest{Platform: model.PlatformLinkedIn, Media: []string{" "}}, apperror.ErrEmptyPost},
		{"unknown platform", &model.PublishRequest{Platform: "myspace", Title: "x"}, apperror.ErrValidation},
		{"unconfigured platform", &model.PublishRequest{Platform: model.PlatformFacebook, Title: "x"}, apperror.ErrValidation},
		{"bad media url", &model.PublishRequest{Platform: model.PlatformLinkedIn, Media: []string{"not a url"}}, apperror.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.usecase.Execute(context.Background(), "user-1", tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}
	f.adapter.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_PastScheduleTimeCreatesNoTask(t *testing.T) {
	f := newPublishFixture(t)
	past := time.Now().Add(-time.Minute)

	_, err := f.usecase.Execute(context.Background(), "user-1", &model.PublishRequest{Platform: model.PlatformLinkedIn, Title: "x", ScheduleTime: &past})
	require.ErrorIs(t, err, apperror.ErrInvalidScheduleTime)

	tasks, err := f.usecase.ListTasks(context.Background(), "user-1", "")
	require.NoError(t, err)
	assert.Empty(t, tasks)
	f.adapter.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_FutureScheduleTimePersistsPendingTask(t *testing.T) {
	f := newPublishFixture(t)
	at := time.Now().Add(time.Hour)

	res, err := f.usecase.Execute(context.Background(), "user-1", &model.PublishRequest{
		Platform: model.PlatformLinkedIn, Title: "Later", Hashtags: []string{"go"}, ScheduleTime: &at,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Scheduled)
	assert.Nil(t, res.Post)
	assert.NotEmpty(t, res.Scheduled.TaskID)

	task, err := f.usecase.GetTask(context.Background(), res.Scheduled.TaskID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, task.Status)
	assert.Equal(t, "Later", task.Title)
	assert.Equal(t, []string{"go"}, task.Hashtags)
	assert.NotEmpty(t, task.CronExpression)

	_, err = f.usecase.GetTask(context.Background(), res.Scheduled.TaskID, "user-2")
	require.ErrorIs(t, err, apperror.ErrNotFound)
	f.adapter.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishNow_NotConnected(t *testing.T) {
	f := newPublishFixture(t)

	_, err := f.usecase.PublishNow(context.Background(), "user-2", &model.PublishRequest{Platform: model.PlatformLinkedIn, Title: "x"}, "")
	require.ErrorIs(t, err, apperror.ErrNotAuthenticated)
	f.adapter.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishNow_ExpiredWithoutRefreshIsTokenExpired(t *testing.T) {
	f := newPublishFixture(t)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, f.vault.Store(context.Background(), "user-3", model.PlatformLinkedIn, model.TokenGrant{AccessToken: "old", ExpiresAt: &past}, nil))

	_, err := f.usecase.PublishNow(context.Background(), "user-3", &model.PublishRequest{Platform: model.PlatformLinkedIn, Title: "x"}, "task-1")
	require.ErrorIs(t, err, apperror.ErrTokenExpired)
	f.adapter.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestListTasks_RejectsUnknownStatus(t *testing.T) {
	f := newPublishFixture(t)

	_, err := f.usecase.ListTasks(context.Background(), "user-1", "running")
	require.True(t, errors.Is(err, apperror.ErrValidation))
}
