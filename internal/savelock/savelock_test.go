package savelock

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocal(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	release, err := l.Acquire(ctx, "collection:1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "collection:1")
	assert.ErrorIs(t, err, ErrLocked)

	other, err := l.Acquire(ctx, "collection:2")
	require.NoError(t, err, "different collections do not contend")
	other()

	release()
	release() // releasing twice is harmless

	again, err := l.Acquire(ctx, "collection:1")
	require.NoError(t, err)
	again()
}

func TestLocalForgetsReleasedKeys(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	for i := 0; i < 100; i++ {
		release, err := l.Acquire(ctx, "collection:"+strconv.Itoa(i))
		require.NoError(t, err)
		release()
	}
	assert.Empty(t, l.held)

	held, err := l.Acquire(ctx, "owner:3")
	require.NoError(t, err)
	assert.Len(t, l.held, 1)

	// A stale release from an earlier holder must not free the new one.
	held()
	next, err := l.Acquire(ctx, "owner:3")
	require.NoError(t, err)
	held()
	_, err = l.Acquire(ctx, "owner:3")
	assert.ErrorIs(t, err, ErrLocked)
	next()
	assert.Empty(t, l.held)
}

func setupRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	r, err := NewRedis("redis://"+s.Addr(), ttl, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, s
}

func TestRedisAcquireRelease(t *testing.T) {
	ctx := context.Background()
	r, s := setupRedis(t, time.Minute)

	release, err := r.Acquire(ctx, "collection:7")
	require.NoError(t, err)
	assert.True(t, s.Exists("savelock:collection:7"))

	_, err = r.Acquire(ctx, "collection:7")
	assert.ErrorIs(t, err, ErrLocked)

	release()
	assert.False(t, s.Exists("savelock:collection:7"))

	release2, err := r.Acquire(ctx, "collection:7")
	require.NoError(t, err)
	release2()
}

func TestRedisLockExpires(t *testing.T) {
	ctx := context.Background()
	r, s := setupRedis(t, 10*time.Second)

	stale, err := r.Acquire(ctx, "collection:9")
	require.NoError(t, err)

	s.FastForward(11 * time.Second)

	release, err := r.Acquire(ctx, "collection:9")
	require.NoError(t, err, "expired lock can be taken over")

	// The first holder's release must not drop the new holder's lock.
	stale()
	assert.True(t, s.Exists("savelock:collection:9"))

	release()
	assert.False(t, s.Exists("savelock:collection:9"))
}

func TestNewRedisBadURL(t *testing.T) {
	_, err := NewRedis("not-a-url", time.Second, nil)
	assert.Error(t, err)
}
