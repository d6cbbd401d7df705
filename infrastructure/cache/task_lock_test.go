package cache_test

import (
	"context"
	"testing"
	"time"

	"social-publisher/infrastructure/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskLock_WithoutRedisAlwaysAcquires(t *testing.T) {
	lock := cache.NewTaskLock(nil)
	for i := 0; i < 2; i++ {
		ok, err := lock.Acquire(context.Background(), "t-1", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestNewCache_UnreachableServer(t *testing.T) {
	client, err := cache.NewCache(context.Background(), "127.0.0.1:1", "", "")
	assert.Error(t, err)
	assert.Nil(t, client)
}
