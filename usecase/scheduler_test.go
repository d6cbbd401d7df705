package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/infrastructure/persistence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(store *persistence.MemoryTaskStore, publisher ImmediatePublisher, lock *MockTaskLock, events *recordingEvents) *Scheduler {
	cfg := SchedulerConfig{MissedGrace: 15 * time.Minute, ExecutionTimeout: 5 * time.Second, LockTTL: time.Minute}
	if lock == nil {
		return NewScheduler(cfg, store, nil, publisher, events)
	}
	return NewScheduler(cfg, store, lock, publisher, events)
}

func stopScheduler(t *testing.T, s *Scheduler) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func taskStatus(store *persistence.MemoryTaskStore, id string) model.TaskStatus {
	task, err := store.Get(context.Background(), id, "")
	if err != nil {
		return ""
	}
	return task.Status
}

func TestCronExpression(t *testing.T) {
	at := time.Date(2026, time.March, 4, 9, 30, 15, 0, time.UTC)
	assert.Equal(t, "15 30 9 4 3 *", cronExpression(at, time.UTC))

	jakarta := time.FixedZone("WIB", 7*3600)
	assert.Equal(t, "15 30 16 4 3 *", cronExpression(at, jakarta))
}

func TestOnceSchedule_FiresOnce(t *testing.T) {
	at := time.Now().Add(time.Minute)
	s := &onceSchedule{at: at}

	assert.Equal(t, at, s.Next(time.Now()))
	assert.True(t, s.Next(at).IsZero())
}

func TestOnceSchedule_PastInstantFiresImmediately(t *testing.T) {
	now := time.Now()
	s := &onceSchedule{at: now.Add(-50 * time.Millisecond)}

	assert.Equal(t, now, s.Next(now))
	assert.True(t, s.Next(now.Add(time.Second)).IsZero())
}

// slowCreateStore delays Create so the trigger instant passes before the
// cron entry is registered.
type slowCreateStore struct {
	*persistence.MemoryTaskStore
	delay time.Duration
}

func (s *slowCreateStore) Create(ctx context.Context, task *model.ScheduledTask) error {
	time.Sleep(s.delay)
	return s.MemoryTaskStore.Create(ctx, task)
}

func TestSchedule_TriggerPassedDuringCreateStillRuns(t *testing.T) {
	mem := persistence.NewMemoryTaskStore()
	store := &slowCreateStore{MemoryTaskStore: mem, delay: 200 * time.Millisecond}
	publisher := new(MockPublisher)
	events := &recordingEvents{}
	s := NewScheduler(SchedulerConfig{MissedGrace: time.Minute, ExecutionTimeout: 5 * time.Second, LockTTL: time.Minute}, store, nil, publisher, events)
	require.NoError(t, s.Start(context.Background()))
	defer stopScheduler(t, s)

	publisher.On("PublishNow", mock.Anything, "user-1", mock.Anything, mock.AnythingOfType("string")).
		Return(&model.PostResult{PostID: "1789_001", Platform: model.PlatformFacebook}, nil).Once()

	at := time.Now().Add(10 * time.Millisecond)
	task, err := s.Schedule(context.Background(), "user-1", &model.PublishRequest{Platform: model.PlatformFacebook, Title: "Flash sale", ScheduleTime: &at})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return taskStatus(mem, task.TaskID) == model.TaskStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	s.mu.Lock()
	_, stillArmed := s.entries[task.TaskID]
	s.mu.Unlock()
	assert.False(t, stillArmed)
	publisher.AssertExpectations(t)
}

func TestSchedule_OneSecondAheadCompletes(t *testing.T) {
	store := persistence.NewMemoryTaskStore()
	publisher := new(MockPublisher)
	events := &recordingEvents{}
	s := newTestScheduler(store, publisher, nil, events)
	require.NoError(t, s.Start(context.Background()))
	defer stopScheduler(t, s)

	publisher.On("PublishNow", mock.Anything, "user-1", mock.MatchedBy(func(r *model.PublishRequest) bool {
		return r.Title == "Launch" && r.Platform == model.PlatformLinkedIn
	}), mock.AnythingOfType("string")).Return(&model.PostResult{PostID: "urn:li:share:42", Platform: model.PlatformLinkedIn}, nil).Once()

	at := time.Now().Add(time.Second)
	task, err := s.Schedule(context.Background(), "user-1", &model.PublishRequest{Platform: model.PlatformLinkedIn, Title: "Launch", ScheduleTime: &at})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, taskStatus(store, task.TaskID), "pending row must exist before the trigger")

	require.Eventually(t, func() bool {
		return taskStatus(store, task.TaskID) == model.TaskStatusCompleted
	}, 5*time.Second, 50*time.Millisecond)

	done, err := store.Get(context.Background(), task.TaskID, "user-1")
	require.NoError(t, err)
	require.NotNil(t, done.ResultPostID)
	assert.Equal(t, "urn:li:share:42", *done.ResultPostID)
	assert.NotNil(t, done.ExecutedAt)
	publisher.AssertExpectations(t)

	require.Eventually(t, func() bool { return len(events.all()) == 1 }, time.Second, 10*time.Millisecond)
	evt := events.all()[0]
	assert.Equal(t, task.TaskID, evt.TaskID)
	assert.Equal(t, model.TaskStatusCompleted, evt.Status)
}

func TestFire_FailureIsRecordedNotRaised(t *testing.T) {
	store := persistence.NewMemoryTaskStore()
	publisher := new(MockPublisher)
	events := &recordingEvents{}
	s := newTestScheduler(store, publisher, nil, events)

	task := &model.ScheduledTask{TaskID: "t-1", UserID: "user-1", Platform: model.PlatformInstagram, Status: model.TaskStatusPending, ScheduleTime: time.Now()}
	require.NoError(t, store.Create(context.Background(), task))
	publisher.On("PublishNow", mock.Anything, "user-1", mock.Anything, "t-1").
		Return(nil, apperror.PlatformAPI("instagram", apperror.StagePublish, 400, "media not ready")).Once()

	assert.NotPanics(t, func() { s.fire("t-1") })

	got, err := store.Get(context.Background(), "t-1", "")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "media not ready")
	require.Len(t, events.all(), 1)
	assert.Equal(t, model.TaskStatusFailed, events.all()[0].Status)
}

func TestFire_SkipsTerminalTasks(t *testing.T) {
	store := persistence.NewMemoryTaskStore()
	publisher := new(MockPublisher)
	s := newTestScheduler(store, publisher, nil, &recordingEvents{})

	require.NoError(t, store.Create(context.Background(), &model.ScheduledTask{TaskID: "t-2", UserID: "u", Status: model.TaskStatusCompleted}))
	s.fire("t-2")

	publisher.AssertNotCalled(t, "PublishNow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFire_LockHeldElsewhereSkips(t *testing.T) {
	store := persistence.NewMemoryTaskStore()
	publisher := new(MockPublisher)
	lock := new(MockTaskLock)
	s := newTestScheduler(store, publisher, lock, &recordingEvents{})

	require.NoError(t, store.Create(context.Background(), &model.ScheduledTask{TaskID: "t-3", UserID: "u", Status: model.TaskStatusPending}))
	lock.On("Acquire", mock.Anything, "t-3", time.Minute).Return(false, nil).Once()
	s.fire("t-3")

	assert.Equal(t, model.TaskStatusPending, taskStatus(store, "t-3"))
	publisher.AssertNotCalled(t, "PublishNow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	lock.AssertExpectations(t)
}

func TestFire_LockErrorFallsBackToRunning(t *testing.T) {
	store := persistence.NewMemoryTaskStore()
	publisher := new(MockPublisher)
	lock := new(MockTaskLock)
	s := newTestScheduler(store, publisher, lock, &recordingEvents{})

	require.NoError(t, store.Create(context.Background(), &model.ScheduledTask{TaskID: "t-4", UserID: "u", Status: model.TaskStatusPending}))
	lock.On("Acquire", mock.Anything, "t-4", time.Minute).Return(false, errors.New("redis down")).Once()
	publisher.On("PublishNow", mock.Anything, "u", mock.Anything, "t-4").Return(&model.PostResult{PostID: "p"}, nil).Once()
	s.fire("t-4")

	assert.Equal(t, model.TaskStatusCompleted, taskStatus(store, "t-4"))
}

func TestStart_RehydratesPendingTasks(t *testing.T) {
	store := persistence.NewMemoryTaskStore()
	publisher := new(MockPublisher)
	events := &recordingEvents{}
	s := newTestScheduler(store, publisher, nil, events)
	now := time.Now()
	ctx := context.Background()

	future := &model.ScheduledTask{TaskID: "future", UserID: "u", Status: model.TaskStatusPending, ScheduleTime: now.Add(time.Hour)}
	future.CronExpression = cronExpression(future.ScheduleTime, time.UTC)
	recent := &model.ScheduledTask{TaskID: "recent", UserID: "u", Status: model.TaskStatusPending, ScheduleTime: now.Add(-time.Minute)}
	stale := &model.ScheduledTask{TaskID: "stale", UserID: "u", Status: model.TaskStatusPending, ScheduleTime: now.Add(-2 * time.Hour)}
	for _, task := range []*model.ScheduledTask{future, recent, stale} {
		require.NoError(t, store.Create(ctx, task))
	}
	publisher.On("PublishNow", mock.Anything, "u", mock.Anything, "recent").Return(&model.PostResult{PostID: "p-recent"}, nil).Once()

	require.NoError(t, s.Start(ctx))
	stopScheduler(t, s)

	assert.Equal(t, model.TaskStatusPending, taskStatus(store, "future"))
	assert.Equal(t, model.TaskStatusCompleted, taskStatus(store, "recent"))
	assert.Equal(t, model.TaskStatusFailed, taskStatus(store, "stale"))

	got, _ := store.Get(ctx, "stale", "")
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "missed trigger")

	s.mu.Lock()
	_, armed := s.entries["future"]
	s.mu.Unlock()
	assert.True(t, armed)
	publisher.AssertExpectations(t)
}

func TestSchedule_RegistrationFailureMarksTaskFailed(t *testing.T) {
	store := persistence.NewMemoryTaskStore()
	events := &recordingEvents{}
	s := newTestScheduler(store, new(MockPublisher), nil, events)
	stopScheduler(t, s)

	at := time.Now().Add(time.Hour)
	_, err := s.Schedule(context.Background(), "user-1", &model.PublishRequest{Platform: model.PlatformFacebook, Title: "x", ScheduleTime: &at})
	require.ErrorIs(t, err, ErrSchedulerStopped)

	tasks, err := store.ListByUser(context.Background(), "user-1", model.TaskStatusFailed)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Contains(t, *tasks[0].ErrorMessage, "schedule registration failed")
	assert.Len(t, events.all(), 1)
}
