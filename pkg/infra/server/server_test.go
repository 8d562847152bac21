package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeServer struct {
	name     string
	rec      *recorder
	startErr error
	stopErr  error
}

func (f *fakeServer) Name() string { return f.name }

func (f *fakeServer) Start(context.Context) error {
	f.rec.add("start " + f.name)
	return f.startErr
}

func (f *fakeServer) Stop(context.Context) error {
	f.rec.add("stop " + f.name)
	return f.stopErr
}

func TestManagerStartStopOrder(t *testing.T) {
	rec := &recorder{}
	m := NewManager(WithServers(&fakeServer{name: "pool", rec: rec}))
	m.AddServer(&fakeServer{name: "http", rec: rec})

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()), "second start must fail")

	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, []string{"start pool", "start http", "stop http", "stop pool"}, rec.list())

	require.NoError(t, m.Stop(context.Background()), "stop is idempotent")
	assert.Len(t, rec.list(), 4)
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("address already in use")
	m := NewManager(WithServers(
		&fakeServer{name: "pool", rec: rec},
		&fakeServer{name: "http", rec: rec, startErr: boom},
		&fakeServer{name: "never", rec: rec},
	))

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start pool", "start http", "stop pool"}, rec.list())
}

func TestManagerStopJoinsErrors(t *testing.T) {
	rec := &recorder{}
	first := errors.New("first")
	second := errors.New("second")
	m := NewManager(WithServers(
		&fakeServer{name: "a", rec: rec, stopErr: first},
		&fakeServer{name: "b", rec: rec, stopErr: second},
	))

	require.NoError(t, m.Start(context.Background()))
	err := m.Stop(context.Background())
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestManagerRunStopsOnCancel(t *testing.T) {
	rec := &recorder{}
	stopped := make(chan struct{})
	m := NewManager(
		WithShutdownTimeout(time.Second),
		WithServers(
			&fakeServer{name: "http", rec: rec},
			NewStopFunc("redis", func(context.Context) error {
				close(stopped)
				return nil
			}),
		),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(rec.list()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	<-stopped
	assert.Equal(t, []string{"start http", "stop http"}, rec.list())
}
