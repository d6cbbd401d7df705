package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/logger"
	"social-publisher/infrastructure/metrics"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

var ErrSchedulerStopped = errors.New("scheduler is stopped")

// IScheduler defers publish requests to a point in time.
type IScheduler interface {
	Schedule(ctx context.Context, userID string, req *model.PublishRequest) (*model.ScheduledTask, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ImmediatePublisher is the publish path a fired task runs.
type ImmediatePublisher interface {
	PublishNow(ctx context.Context, userID string, req *model.PublishRequest, taskID string) (*model.PostResult, error)
}

type SchedulerConfig struct {
	Location         *time.Location
	MissedGrace      time.Duration
	ExecutionTimeout time.Duration
	LockTTL          time.Duration
}

type Scheduler struct {
	cfg       SchedulerConfig
	parser    cron.Parser
	c         *cron.Cron
	store     repository.IScheduledTask
	lock      repository.ITaskLock
	publisher ImmediatePublisher
	events    []repository.ITaskEventPublisher
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]cron.EntryID
	stopped bool
	wg      sync.WaitGroup
}

func NewScheduler(cfg SchedulerConfig, store repository.IScheduledTask, lock repository.ITaskLock, publisher ImmediatePublisher, events ...repository.ITaskEventPublisher) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = 10 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 15 * time.Minute
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Scheduler{
		cfg:       cfg,
		parser:    parser,
		c:         cron.New(cron.WithParser(parser), cron.WithLocation(cfg.Location), cron.WithChain(cron.Recover(cronLogger{}))),
		store:     store,
		lock:      lock,
		publisher: publisher,
		events:    events,
		now:       time.Now,
		entries:   map[string]cron.EntryID{},
	}
}

// onceSchedule fires a single time at `at` and never again. cron asks for
// Next once when the entry is added and once after it runs, so the first
// answer is `at`, or t itself when `at` has already passed by then.
// Only the cron run loop calls Next.
type onceSchedule struct {
	at     time.Time
	issued bool
}

func (s *onceSchedule) Next(t time.Time) time.Time {
	if s.issued {
		return time.Time{}
	}
	s.issued = true
	if s.at.After(t) {
		return s.at
	}
	return t
}

// cronExpression renders at as a seconds-precision cron expression in loc.
func cronExpression(at time.Time, loc *time.Location) string {
	at = at.In(loc)
	return fmt.Sprintf("%d %d %d %d %d *", at.Second(), at.Minute(), at.Hour(), at.Day(), int(at.Month()))
}

// cronLogger routes cron's internal logging through logrus.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.GetLogger().WithField("cron", keysAndValues).Debug(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.GetLogger().WithField("cron", keysAndValues).WithField("error", err).Error(msg)
}

func (s *Scheduler) Schedule(ctx context.Context, userID string, req *model.PublishRequest) (*model.ScheduledTask, error) {
	if req.ScheduleTime == nil {
		return nil, errors.New("schedule time is required")
	}
	now := s.now().UTC()
	at := req.ScheduleTime.UTC()
	task := &model.ScheduledTask{
		TaskID:         uuid.NewString(),
		UserID:         userID,
		Platform:       req.Platform,
		TargetID:       req.TargetID,
		Title:          req.Title,
		Description:    req.Description,
		Hashtags:       append([]string{}, req.Hashtags...),
		Media:          append([]string{}, req.Media...),
		ScheduleTime:   at,
		CronExpression: cronExpression(at, s.cfg.Location),
		Status:         model.TaskStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, task); err != nil {
		return nil, err
	}

	if err := s.arm(task); err != nil {
		reason := "schedule registration failed: " + err.Error()
		if moved, mErr := s.store.MarkFailed(ctx, task.TaskID, reason, s.now().UTC()); mErr != nil {
			logger.GetLogger().WithField("task_id", task.TaskID).WithField("error", mErr).Error("failed to mark unregistered task as failed")
		} else if moved {
			task.Status = model.TaskStatusFailed
			task.ErrorMessage = &reason
			metrics.TaskTransition(string(task.Platform), string(task.Status))
			s.emit(ctx, task)
		}
		return nil, err
	}

	logger.GetLogger().
		WithField("task_id", task.TaskID).
		WithField("platform", task.Platform).
		WithField("schedule_time", at.Format(time.RFC3339)).
		WithField("cron", task.CronExpression).
		Info("task scheduled")
	return task, nil
}

// arm registers the one-shot cron entry. The stored cron expression must
// resolve to the task's schedule time.
func (s *Scheduler) arm(task *model.ScheduledTask) error {
	sched, err := s.parser.Parse("CRON_TZ=" + s.cfg.Location.String() + " " + task.CronExpression)
	if err != nil {
		return fmt.Errorf("parse cron expression %q: %w", task.CronExpression, err)
	}
	at := task.ScheduleTime
	if next := sched.Next(at.Add(-time.Second)); !next.Equal(at.Truncate(time.Second)) {
		return fmt.Errorf("cron expression %q does not resolve to %s", task.CronExpression, at.Format(time.RFC3339))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSchedulerStopped
	}
	if _, ok := s.entries[task.TaskID]; ok {
		return nil
	}
	taskID := task.TaskID
	s.entries[taskID] = s.c.Schedule(&onceSchedule{at: at}, cron.FuncJob(func() { s.fire(taskID) }))
	metrics.TaskArmed()
	return nil
}

func (s *Scheduler) disarm(taskID string) {
	s.mu.Lock()
	id, ok := s.entries[taskID]
	delete(s.entries, taskID)
	s.mu.Unlock()
	if ok {
		s.c.Remove(id)
		metrics.TaskDisarmed()
	}
}

// fire runs a due task. Errors end up on the task row and in the log,
// never in the caller.
func (s *Scheduler) fire(taskID string) {
	s.disarm(taskID)
	lg := logger.GetLogger().WithField("task_id", taskID)
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ExecutionTimeout)
	defer cancel()

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, taskID, s.cfg.LockTTL)
		if err != nil {
			lg.WithField("error", err).Warn("task lock unavailable, running without it")
		} else if !acquired {
			lg.Info("task already claimed by another instance")
			return
		}
	}

	task, err := s.store.Get(ctx, taskID, "")
	if err != nil {
		lg.WithField("error", err).Error("failed to load fired task")
		return
	}
	if task.Status != model.TaskStatusPending {
		lg.WithField("status", task.Status).Info("fired task is no longer pending")
		return
	}

	res, pubErr := s.publisher.PublishNow(ctx, task.UserID, task.Request(), task.TaskID)
	at := s.now().UTC()
	var moved bool
	if pubErr != nil {
		reason := pubErr.Error()
		moved, err = s.store.MarkFailed(ctx, taskID, reason, at)
		task.Status = model.TaskStatusFailed
		task.ErrorMessage = &reason
		lg.WithField("platform", task.Platform).WithField("error", pubErr).Warn("scheduled publish failed")
	} else {
		moved, err = s.store.MarkCompleted(ctx, taskID, res.PostID, at)
		task.Status = model.TaskStatusCompleted
		task.ResultPostID = &res.PostID
		lg.WithField("platform", task.Platform).WithField("post_id", res.PostID).Info("scheduled publish completed")
	}
	if err != nil {
		lg.WithField("error", err).Error("failed to record task outcome")
		return
	}
	if !moved {
		lg.Warn("task left pending state before its outcome was recorded")
		return
	}
	task.ExecutedAt = &at
	task.UpdatedAt = at
	metrics.TaskTransition(string(task.Platform), string(task.Status))
	s.emit(ctx, task)
}

func (s *Scheduler) emit(ctx context.Context, task *model.ScheduledTask) {
	evt := model.NewTaskEvent(task)
	for _, p := range s.events {
		if p == nil {
			continue
		}
		if err := p.PublishTaskEvent(ctx, evt); err != nil {
			logger.GetLogger().WithField("task_id", task.TaskID).WithField("error", err).Warn("failed to publish task event")
		}
	}
}

// Start starts the cron loop and re-arms pending tasks from the store.
// Tasks overdue within the missed grace window run right away; older ones
// are failed.
func (s *Scheduler) Start(ctx context.Context) error {
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("load pending tasks: %w", err)
	}
	metrics.ResetArmed()
	s.c.Start()
	now := s.now()
	var armed, fired, missed int
	for i := range pending {
		task := &pending[i]
		switch {
		case task.ScheduleTime.After(now):
			if err := s.arm(task); err != nil {
				logger.GetLogger().WithField("task_id", task.TaskID).WithField("error", err).Error("failed to re-arm task")
				continue
			}
			armed++
		case now.Sub(task.ScheduleTime) <= s.cfg.MissedGrace:
			s.wg.Add(1)
			go func(id string) {
				defer s.wg.Done()
				s.fire(id)
			}(task.TaskID)
			fired++
		default:
			reason := fmt.Sprintf("missed trigger: scheduled for %s", task.ScheduleTime.UTC().Format(time.RFC3339))
			moved, err := s.store.MarkFailed(ctx, task.TaskID, reason, now.UTC())
			if err != nil {
				logger.GetLogger().WithField("task_id", task.TaskID).WithField("error", err).Error("failed to expire missed task")
				continue
			}
			if moved {
				task.Status = model.TaskStatusFailed
				task.ErrorMessage = &reason
				metrics.TaskTransition(string(task.Platform), string(task.Status))
				s.emit(ctx, task)
			}
			missed++
		}
	}
	logger.GetLogger().
		WithField("armed", armed).
		WithField("fired", fired).
		WithField("missed", missed).
		Info("scheduler started")
	return nil
}

// Stop halts the cron loop and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	cronDone := s.c.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.GetLogger().Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
