package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, 0, nil, false)

	require.NoError(t, svc.Set(context.Background(), "k", "v", time.Minute))
	var dest string
	hit, err := svc.Get(context.Background(), "k", &dest)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, repo.entries)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	assert.NoError(t, nilSvc.InvalidateCourse(context.Background(), "course-1"))
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newMemoryCacheRepo()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)
	key := RunKey("course-1", "abc")

	var dest map[string]int
	hit, err := svc.Get(context.Background(), key, &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(context.Background(), key, map[string]int{"classes": 2}, 0))
	hit, err = svc.Get(context.Background(), key, &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, dest["classes"])

	require.NoError(t, svc.InvalidateCourse(context.Background(), "course-1"))
	assert.Equal(t, []string{"scheduling:runs:course-1:*"}, repo.deleted)
	assert.Equal(t, "scheduling:runs:course-1:abc", key)
	assert.Equal(t, 0.5, metrics.Snapshot().CacheHitRatio)
}

func TestCacheServiceBackendFailure(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.getErr = errors.New("redis: connection refused")
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	var dest string
	hit, err := svc.Get(context.Background(), "k", &dest)
	assert.False(t, hit)
	assert.Error(t, err)
}
