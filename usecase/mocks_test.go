package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/infrastructure/crypto"
	"social-publisher/infrastructure/persistence"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAdapter struct {
	mock.Mock
	platform model.Platform
	max      int
}

func newMockAdapter(p model.Platform, max int) *MockAdapter {
	return &MockAdapter{platform: p, max: max}
}

func (m *MockAdapter) Platform() model.Platform { return m.platform }

func (m *MockAdapter) MaxMedia() int { return m.max }

func (m *MockAdapter) Validate(req *model.PublishRequest) error {
	if len(req.Media) > m.max {
		return apperror.TooManyMediaItems(string(m.platform), len(req.Media), m.max)
	}
	if len(req.Media) == 0 && req.Caption() == "" {
		return apperror.EmptyPost(string(m.platform), "nothing to post")
	}
	return nil
}

func (m *MockAdapter) Publish(ctx context.Context, req *model.PublishRequest, cred *model.Credential) (string, error) {
	args := m.Called(ctx, req, cred)
	return args.String(0), args.Error(1)
}

func (m *MockAdapter) ResolveIdentity(ctx context.Context, accessToken string) (*model.Identity, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Identity), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishNow(ctx context.Context, userID string, req *model.PublishRequest, taskID string) (*model.PostResult, error) {
	args := m.Called(ctx, userID, req, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PostResult), args.Error(1)
}

type MockTaskLock struct {
	mock.Mock
}

func (m *MockTaskLock) Acquire(ctx context.Context, taskID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, taskID, ttl)
	return args.Bool(0), args.Error(1)
}

// recordingEvents collects task events in memory.
type recordingEvents struct {
	mu     sync.Mutex
	events []model.TaskEvent
}

func (r *recordingEvents) PublishTaskEvent(_ context.Context, evt model.TaskEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingEvents) all() []model.TaskEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.TaskEvent(nil), r.events...)
}

func newTestVault(t *testing.T) (ICredentialVault, *persistence.MemoryCredentialStore) {
	t.Helper()
	c, err := crypto.NewCipher("unit-test-key")
	require.NoError(t, err)
	store := persistence.NewMemoryCredentialStore()
	return NewCredentialVault(store, c, nil), store
}
