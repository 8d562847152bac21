package biz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStatusStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStatusStore(client, ""), mr
}

func TestStatusTransitions(t *testing.T) {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	running, err := begin(IdleStatus(), "r1", t0)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, running.State)
	assert.Equal(t, t0, *running.LastRun)
	assert.Nil(t, running.LastCompleted)

	_, err = begin(running, "r2", t0)
	assert.ErrorIs(t, err, ErrIngestionRunning)

	done := finish(running, 7, nil, t0.Add(time.Minute))
	assert.Equal(t, StateCompleted, done.State)
	assert.Equal(t, t0.Add(time.Minute), *done.LastCompleted)
	assert.Equal(t, 7, done.Vectors)

	// 失败保留上一次成功时间
	rerun, err := begin(done, "r3", t0.Add(time.Hour))
	require.NoError(t, err)
	failed := finish(rerun, 0, errBoom, t0.Add(2*time.Hour))
	assert.Equal(t, StateFailed, failed.State)
	assert.Equal(t, "boom", *failed.Error)
	assert.Equal(t, t0.Add(time.Minute), *failed.LastCompleted)
	assert.Equal(t, t0.Add(time.Hour), *failed.LastRun)
}

func TestMemoryStatusStoreBegin(t *testing.T) {
	s := NewMemoryStatusStore()
	ctx := context.Background()

	st, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, st.State)

	_, err = s.Begin(ctx, "r1", time.Now())
	require.NoError(t, err)
	_, err = s.Begin(ctx, "r2", time.Now())
	assert.ErrorIs(t, err, ErrIngestionRunning)
}

func TestRedisStatusStoreRoundTrip(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	st, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, st.State)

	now := time.Now().UTC().Truncate(time.Second)
	running, err := s.Begin(ctx, "r1", now)
	require.NoError(t, err)

	_, err = s.Begin(ctx, "r2", now)
	assert.ErrorIs(t, err, ErrIngestionRunning)

	require.NoError(t, s.Set(ctx, finish(running, 3, nil, now.Add(time.Second))))
	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, got.State)
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, 3, got.Vectors)
	assert.True(t, now.Add(time.Second).Equal(*got.LastCompleted))
}

func TestRedisStatusStoreSharedBetweenInstances(t *testing.T) {
	a, mr := newTestRedisStore(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	b := NewRedisStatusStore(client, "")

	_, err := a.Begin(context.Background(), "r1", time.Now())
	require.NoError(t, err)
	_, err = b.Begin(context.Background(), "r2", time.Now())
	assert.ErrorIs(t, err, ErrIngestionRunning)
}

func TestRedisStatusStoreTakesOverStaleRun(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()
	start := time.Now()

	_, err := s.Begin(ctx, "crashed", start)
	require.NoError(t, err)

	st, err := s.Begin(ctx, "fresh", start.Add(defaultStaleAfter+time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "fresh", st.RunID)
}

func TestRedisStatusStoreReportsCorruptValue(t *testing.T) {
	s, mr := newTestRedisStore(t)
	require.NoError(t, mr.Set(DefaultStatusKey, "{not json"))

	_, err := s.Get(context.Background())
	assert.Error(t, err)
}
