package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
)

// MemoryCredentialStore is used when no relational database is reachable.
type MemoryCredentialStore struct {
	mu      sync.RWMutex
	records map[string]model.CredentialRecord
	nextID  int64
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{records: make(map[string]model.CredentialRecord)}
}

func credentialKey(userID string, platform model.Platform) string {
	return userID + "|" + string(platform)
}

func (s *MemoryCredentialStore) Upsert(_ context.Context, rec *model.CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	key := credentialKey(rec.UserID, rec.Platform)
	if prev, ok := s.records[key]; ok {
		rec.ID = prev.ID
		rec.CreatedAt = prev.CreatedAt
	} else {
		s.nextID++
		rec.ID = s.nextID
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	s.records[key] = *rec
	return nil
}

func (s *MemoryCredentialStore) Get(_ context.Context, userID string, platform model.Platform) (*model.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[credentialKey(userID, platform)]
	if !ok {
		return nil, apperror.NotFound("credential not found")
	}
	return &rec, nil
}

// MemoryTaskStore keeps tasks for the lifetime of the process.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]model.ScheduledTask
}

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]model.ScheduledTask)}
}

func (s *MemoryTaskStore) Create(_ context.Context, t *model.ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.TaskID]; exists {
		return apperror.Validation("task id already exists")
	}
	s.tasks[t.TaskID] = cloneTask(*t)
	return nil
}

func (s *MemoryTaskStore) Get(_ context.Context, taskID, userID string) (*model.ScheduledTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok || (userID != "" && t.UserID != userID) {
		return nil, apperror.NotFound("scheduled task not found")
	}
	out := cloneTask(t)
	return &out, nil
}

func (s *MemoryTaskStore) ListByUser(_ context.Context, userID string, status model.TaskStatus) ([]model.ScheduledTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]model.ScheduledTask, 0)
	for _, t := range s.tasks {
		if t.UserID != userID || (status != "" && t.Status != status) {
			continue
		}
		list = append(list, cloneTask(t))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (s *MemoryTaskStore) ListPending(_ context.Context) ([]model.ScheduledTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]model.ScheduledTask, 0)
	for _, t := range s.tasks {
		if t.Status == model.TaskStatusPending {
			list = append(list, cloneTask(t))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ScheduleTime.Before(list[j].ScheduleTime) })
	return list, nil
}

func (s *MemoryTaskStore) MarkCompleted(_ context.Context, taskID, postID string, at time.Time) (bool, error) {
	return s.transition(taskID, func(t *model.ScheduledTask) {
		t.Status = model.TaskStatusCompleted
		t.ResultPostID = &postID
		t.ExecutedAt = &at
		t.UpdatedAt = at
	})
}

func (s *MemoryTaskStore) MarkFailed(_ context.Context, taskID, reason string, at time.Time) (bool, error) {
	return s.transition(taskID, func(t *model.ScheduledTask) {
		t.Status = model.TaskStatusFailed
		t.ErrorMessage = &reason
		t.ExecutedAt = &at
		t.UpdatedAt = at
	})
}

func (s *MemoryTaskStore) transition(taskID string, apply func(t *model.ScheduledTask)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return false, apperror.NotFound("scheduled task not found")
	}
	if t.Status != model.TaskStatusPending {
		return false, nil
	}
	apply(&t)
	s.tasks[taskID] = t
	return true, nil
}

func cloneTask(t model.ScheduledTask) model.ScheduledTask {
	t.Hashtags = append([]string(nil), t.Hashtags...)
	t.Media = append([]string(nil), t.Media...)
	return t
}

// MemoryAttemptLog is the audit fallback without MySQL.
type MemoryAttemptLog struct {
	mu       sync.Mutex
	attempts []model.PublishAttempt
}

func NewMemoryAttemptLog() *MemoryAttemptLog { return &MemoryAttemptLog{} }

func (l *MemoryAttemptLog) Record(_ context.Context, a *model.PublishAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a.ID = int64(len(l.attempts) + 1)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	l.attempts = append(l.attempts, *a)
	return nil
}

func (l *MemoryAttemptLog) ListByUser(_ context.Context, userID string, limit int) ([]model.PublishAttempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.PublishAttempt, 0)
	for i := len(l.attempts) - 1; i >= 0; i-- {
		if l.attempts[i].UserID != userID {
			continue
		}
		out = append(out, l.attempts[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
