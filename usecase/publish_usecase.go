package usecase

import (
	"context"
	"fmt"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/logger"
	"social-publisher/infrastructure/metrics"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// IPublishUsecase routes publish requests to the platform adapters, either
// now or through the scheduler.
type IPublishUsecase interface {
	Execute(ctx context.Context, userID string, req *model.PublishRequest) (*model.PublishResponse, error)
	PublishNow(ctx context.Context, userID string, req *model.PublishRequest, taskID string) (*model.PostResult, error)
	ListTasks(ctx context.Context, userID string, status model.TaskStatus) ([]model.ScheduledTask, error)
	GetTask(ctx context.Context, taskID, userID string) (*model.ScheduledTask, error)
	ListAttempts(ctx context.Context, userID string, limit int) ([]model.PublishAttempt, error)
}

type PublishUsecase struct {
	adapters  map[model.Platform]repository.IPlatformAdapter
	vault     ICredentialVault
	tasks     repository.IScheduledTask
	attempts  repository.IPublishAttempt // optional
	scheduler IScheduler
	now       func() time.Time
}

func NewPublishUsecase(adapters []repository.IPlatformAdapter, vault ICredentialVault, tasks repository.IScheduledTask) *PublishUsecase {
	m := make(map[model.Platform]repository.IPlatformAdapter, len(adapters))
	for _, a := range adapters {
		m[a.Platform()] = a
	}
	return &PublishUsecase{adapters: m, vault: vault, tasks: tasks, now: time.Now}
}

// WithScheduler enables deferred publishing (fluent)
func (u *PublishUsecase) WithScheduler(s IScheduler) *PublishUsecase {
	u.scheduler = s
	return u
}

// WithAttemptLog enables the publish audit log (fluent)
func (u *PublishUsecase) WithAttemptLog(log repository.IPublishAttempt) *PublishUsecase {
	u.attempts = log
	return u
}

// Adapters exposes the platform map for the OAuth flow.
func (u *PublishUsecase) Adapters() map[model.Platform]repository.IPlatformAdapter {
	return u.adapters
}

func validateRequest(req *model.PublishRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.Platform, validation.Required, validation.In(model.PlatformLinkedIn, model.PlatformFacebook, model.PlatformInstagram).Error("must be one of linkedin, facebook, instagram")),
		validation.Field(&req.TargetID, validation.Length(0, 128)),
		validation.Field(&req.Title, validation.Length(0, 3000)),
		validation.Field(&req.Media, validation.Each(is.RequestURL)),
	)
	if err != nil {
		return apperror.Validation(err.Error())
	}
	return nil
}

func (u *PublishUsecase) adapter(p model.Platform) (repository.IPlatformAdapter, error) {
	a, ok := u.adapters[p]
	if !ok {
		return nil, apperror.Validation("unsupported platform " + string(p))
	}
	return a, nil
}

func (u *PublishUsecase) Execute(ctx context.Context, userID string, req *model.PublishRequest) (*model.PublishResponse, error) {
	if req == nil {
		return nil, apperror.Validation("request body is required")
	}
	req.Media = model.NormalizeMedia(req.Media)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	adapter, err := u.adapter(req.Platform)
	if err != nil {
		return nil, err
	}
	if err := adapter.Validate(req); err != nil {
		return nil, err
	}

	if req.ScheduleTime == nil {
		post, err := u.PublishNow(ctx, userID, req, "")
		if err != nil {
			return nil, err
		}
		return &model.PublishResponse{Post: post}, nil
	}

	if !req.ScheduleTime.After(u.now()) {
		return nil, apperror.InvalidScheduleTime(fmt.Sprintf("scheduleTime %s is not in the future", req.ScheduleTime.UTC().Format(time.RFC3339)))
	}
	if u.scheduler == nil {
		return nil, apperror.Validation("scheduling is not enabled")
	}
	task, err := u.scheduler.Schedule(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	return &model.PublishResponse{Scheduled: &model.ScheduledAck{
		TaskID:       task.TaskID,
		Message:      fmt.Sprintf("post scheduled for %s on %s", task.ScheduleTime.Format(time.RFC3339), task.Platform),
		ScheduleTime: task.ScheduleTime,
	}}, nil
}

// PublishNow loads the caller's credential and runs the adapter. taskID is
// empty for immediate requests.
func (u *PublishUsecase) PublishNow(ctx context.Context, userID string, req *model.PublishRequest, taskID string) (*model.PostResult, error) {
	adapter, err := u.adapter(req.Platform)
	if err != nil {
		return nil, err
	}
	cred, err := u.vault.Load(ctx, userID, req.Platform)
	if err != nil {
		return nil, err
	}
	if cred.Expired(u.now()) {
		if cred, err = u.vault.Refresh(ctx, cred); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	postID, err := adapter.Publish(ctx, req, cred)
	elapsed := time.Since(start)
	u.recordAttempt(ctx, userID, req, taskID, postID, err, elapsed)
	if err != nil {
		return nil, err
	}
	logger.GetLogger().
		WithField("platform", req.Platform).
		WithField("user_id", userID).
		WithField("task_id", taskID).
		WithField("post_id", postID).
		Info("post published")
	return &model.PostResult{PostID: postID, Platform: req.Platform}, nil
}

func (u *PublishUsecase) recordAttempt(ctx context.Context, userID string, req *model.PublishRequest, taskID, postID string, pubErr error, elapsed time.Duration) {
	outcome := model.AttemptOutcomeSuccess
	if pubErr != nil {
		outcome = model.AttemptOutcomeFailure
	}
	trigger := "immediate"
	if taskID != "" {
		trigger = "scheduled"
	}
	metrics.ObservePublish(string(req.Platform), outcome, trigger, elapsed)
	if u.attempts == nil {
		return
	}

	attempt := &model.PublishAttempt{
		UserID:     userID,
		Platform:   string(req.Platform),
		TargetID:   req.TargetID,
		MediaCount: len(req.Media),
		Outcome:    outcome,
		DurationMs: elapsed.Milliseconds(),
	}
	if taskID != "" {
		attempt.TaskID = &taskID
	}
	if postID != "" {
		attempt.ExternalPostID = &postID
	}
	if pubErr != nil {
		kind := string(apperror.KindOf(pubErr))
		msg := pubErr.Error()
		attempt.ErrorKind = &kind
		attempt.ErrorMessage = &msg
	}
	if err := u.attempts.Record(ctx, attempt); err != nil {
		logger.GetLogger().WithField("error", err).Warn("failed to record publish attempt")
	}
}

func (u *PublishUsecase) ListTasks(ctx context.Context, userID string, status model.TaskStatus) ([]model.ScheduledTask, error) {
	switch status {
	case "", model.TaskStatusPending, model.TaskStatusCompleted, model.TaskStatusFailed:
	default:
		return nil, apperror.Validation("unknown status " + string(status))
	}
	return u.tasks.ListByUser(ctx, userID, status)
}

func (u *PublishUsecase) GetTask(ctx context.Context, taskID, userID string) (*model.ScheduledTask, error) {
	if userID == "" {
		return nil, apperror.NotFound("task " + taskID)
	}
	return u.tasks.Get(ctx, taskID, userID)
}

func (u *PublishUsecase) ListAttempts(ctx context.Context, userID string, limit int) ([]model.PublishAttempt, error) {
	if u.attempts == nil {
		return []model.PublishAttempt{}, nil
	}
	return u.attempts.ListByUser(ctx, userID, limit)
}
