package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedExam struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func newTestHelper(t *testing.T) (*CacheHelper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheHelper(client, "exam:"), mr
}

func TestCacheHelperSetGet(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	require.NoError(t, helper.Set(ctx, "1", cachedExam{ID: 1, Title: "Final"}, time.Minute))

	var got cachedExam
	require.NoError(t, helper.Get(ctx, "1", &got))
	assert.Equal(t, uint(1), got.ID)
	assert.Equal(t, "Final", got.Title)
}

func TestCacheHelperGetMiss(t *testing.T) {
	helper, _ := newTestHelper(t)

	var got cachedExam
	err := helper.Get(context.Background(), "missing", &got)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestCacheHelperDelete(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	require.NoError(t, helper.Set(ctx, "1", cachedExam{ID: 1}, time.Minute))
	require.NoError(t, helper.Set(ctx, "2", cachedExam{ID: 2}, time.Minute))
	require.NoError(t, helper.Delete(ctx, "1", "2"))

	var got cachedExam
	assert.ErrorIs(t, helper.Get(ctx, "1", &got), ErrCacheNotFound)
	assert.ErrorIs(t, helper.Get(ctx, "2", &got), ErrCacheNotFound)
}

func TestCacheHelperExists(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	exists, err := helper.Exists(ctx, "1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, helper.Set(ctx, "1", cachedExam{ID: 1}, time.Minute))
	exists, err = helper.Exists(ctx, "1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCacheHelperTTLExpiry(t *testing.T) {
	helper, mr := newTestHelper(t)
	ctx := context.Background()

	require.NoError(t, helper.Set(ctx, "1", cachedExam{ID: 1}, time.Minute))
	mr.FastForward(2 * time.Minute)

	var got cachedExam
	assert.ErrorIs(t, helper.Get(ctx, "1", &got), ErrCacheNotFound)
}

func TestCacheHelperInvalidatePattern(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	require.NoError(t, helper.Set(ctx, "5:all", cachedExam{ID: 5}, time.Minute))
	require.NoError(t, helper.Set(ctx, "5:meta", cachedExam{ID: 5}, time.Minute))
	require.NoError(t, helper.Set(ctx, "6:all", cachedExam{ID: 6}, time.Minute))

	require.NoError(t, helper.InvalidatePattern(ctx, "5:*"))

	var got cachedExam
	assert.ErrorIs(t, helper.Get(ctx, "5:all", &got), ErrCacheNotFound)
	assert.ErrorIs(t, helper.Get(ctx, "5:meta", &got), ErrCacheNotFound)
	assert.NoError(t, helper.Get(ctx, "6:all", &got))
}

func TestCacheOrExecuteFetchesOnMiss(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return cachedExam{ID: 7, Title: "Fetched"}, nil
	}

	var got cachedExam
	require.NoError(t, helper.CacheOrExecute(ctx, "7", &got, time.Minute, fetch))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "Fetched", got.Title)

	// the background write needs a moment to land
	assert.Eventually(t, func() bool {
		var cached cachedExam
		return helper.Get(ctx, "7", &cached) == nil
	}, time.Second, 10*time.Millisecond)

	var again cachedExam
	require.NoError(t, helper.CacheOrExecute(ctx, "7", &again, time.Minute, fetch))
	assert.Equal(t, 1, calls, "second read must hit the cache")
	assert.Equal(t, "Fetched", again.Title)
}

func TestCacheOrExecutePreservesFetchError(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	// Read-through callers match on the underlying error (e.g. a gorm
	// record-not-found), so the wrapper must keep the chain intact.
	sentinel := errors.New("row does not exist")
	fetch := func() (interface{}, error) {
		return nil, sentinel
	}

	var got cachedExam
	err := helper.CacheOrExecute(ctx, "missing", &got, time.Minute, fetch)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)

	exists, err := helper.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists, "failed fetches must not be cached")
}

func TestNilClientDegradesGracefully(t *testing.T) {
	helper := NewCacheHelper(nil, "exam:")
	ctx := context.Background()

	assert.NoError(t, helper.Set(ctx, "1", cachedExam{ID: 1}, time.Minute))
	assert.NoError(t, helper.Delete(ctx, "1"))
	assert.NoError(t, helper.InvalidatePattern(ctx, "*"))

	var got cachedExam
	assert.ErrorIs(t, helper.Get(ctx, "1", &got), ErrCacheNotAvailable)

	_, err := helper.Exists(ctx, "1")
	assert.ErrorIs(t, err, ErrCacheNotAvailable)

	// fetch still runs without a cache behind it
	calls := 0
	require.NoError(t, helper.CacheOrExecute(ctx, "1", &got, time.Minute, func() (interface{}, error) {
		calls++
		return cachedExam{ID: 1}, nil
	}))
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint(1), got.ID)
}

func TestCacheManagerHealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	manager := NewCacheManager(client)
	assert.NoError(t, manager.HealthCheck(context.Background()))

	nilManager := NewCacheManager(nil)
	assert.ErrorIs(t, nilManager.HealthCheck(context.Background()), ErrCacheNotAvailable)
}
