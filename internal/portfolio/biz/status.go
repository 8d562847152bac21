package biz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	goredis "github.com/redis/go-redis/v9"
)

// State is the ingestion run state.
type State string

// Ingestion states. idle is the initial state; running moves only to
// completed or failed, and those two may start a new run.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// ErrIngestionRunning is returned when a run is requested while one is in progress.
var ErrIngestionRunning = errors.New("ingestion already running")

// Status is the observable ingestion state.
type Status struct {
	State         State      `json:"status"`
	RunID         string     `json:"runId,omitempty"`
	LastRun       *time.Time `json:"lastRun"`
	LastCompleted *time.Time `json:"lastCompleted"`
	Error         *string    `json:"error"`
	Vectors       int        `json:"vectors"`
}

// IdleStatus is the status before any run.
func IdleStatus() Status {
	return Status{State: StateIdle}
}

// begin returns the running status following prev, or ErrIngestionRunning.
func begin(prev Status, runID string, at time.Time) (Status, error) {
	if prev.State == StateRunning {
		return prev, ErrIngestionRunning
	}
	return Status{
		State:         StateRunning,
		RunID:         runID,
		LastRun:       &at,
		LastCompleted: prev.LastCompleted,
	}, nil
}

// finish returns the terminal status of a running status.
func finish(running Status, vectors int, runErr error, at time.Time) Status {
	next := running
	next.Vectors = vectors
	if runErr != nil {
		msg := runErr.Error()
		next.State = StateFailed
		next.Error = &msg
		return next
	}
	next.State = StateCompleted
	next.LastCompleted = &at
	next.Error = nil
	return next
}

// StatusStore persists the ingestion status.
type StatusStore interface {
	// Get returns the current status; IdleStatus if none was stored.
	Get(ctx context.Context) (Status, error)
	// Set overwrites the status.
	Set(ctx context.Context, s Status) error
	// Begin atomically moves to running unless a run is already running.
	Begin(ctx context.Context, runID string, at time.Time) (Status, error)
}

// MemoryStatusStore keeps the status in process memory.
type MemoryStatusStore struct {
	mu     sync.Mutex
	status Status
}

// NewMemoryStatusStore creates an idle MemoryStatusStore.
func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{status: IdleStatus()}
}

// Get implements StatusStore.
func (s *MemoryStatusStore) Get(context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, nil
}

// Set implements StatusStore.
func (s *MemoryStatusStore) Set(_ context.Context, st Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
	return nil
}

// Begin implements StatusStore.
func (s *MemoryStatusStore) Begin(_ context.Context, runID string, at time.Time) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := begin(s.status, runID, at)
	if err != nil {
		return next, err
	}
	s.status = next
	return next, nil
}

// DefaultStatusKey is the redis key holding the status document.
const DefaultStatusKey = "portfolio:ingest:status"

// defaultStaleAfter is how long a running status survives without finishing
// before a new run may take over, covering a process that died mid-run.
const defaultStaleAfter = 2 * time.Hour

// RedisStatusStore shares the status between replicas.
type RedisStatusStore struct {
	client     goredis.UniversalClient
	key        string
	staleAfter time.Duration
}

// NewRedisStatusStore creates a RedisStatusStore. An empty key uses DefaultStatusKey.
func NewRedisStatusStore(client goredis.UniversalClient, key string) *RedisStatusStore {
	if key == "" {
		key = DefaultStatusKey
	}
	return &RedisStatusStore{client: client, key: key, staleAfter: defaultStaleAfter}
}

// Get implements StatusStore.
func (s *RedisStatusStore) Get(ctx context.Context) (Status, error) {
	return s.get(ctx, s.client)
}

// stringGetter is satisfied by both the client and a WATCH transaction.
type stringGetter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func (s *RedisStatusStore) get(ctx context.Context, c stringGetter) (Status, error) {
	raw, err := c.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return IdleStatus(), nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("read ingestion status: %w", err)
	}
	var st Status
	if err := sonic.Unmarshal(raw, &st); err != nil {
		return Status{}, fmt.Errorf("decode ingestion status: %w", err)
	}
	return st, nil
}

// Set implements StatusStore.
func (s *RedisStatusStore) Set(ctx context.Context, st Status) error {
	raw, err := sonic.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode ingestion status: %w", err)
	}
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("write ingestion status: %w", err)
	}
	return nil
}

// Begin implements StatusStore with an optimistic WATCH transaction.
func (s *RedisStatusStore) Begin(ctx context.Context, runID string, at time.Time) (Status, error) {
	var started Status
	txf := func(tx *goredis.Tx) error {
		prev, err := s.get(ctx, tx)
		if err != nil {
			return err
		}
		if prev.State == StateRunning && prev.LastRun != nil && at.Sub(*prev.LastRun) > s.staleAfter {
			prev.State = StateFailed
		}
		next, err := begin(prev, runID, at)
		if err != nil {
			started = next
			return err
		}
		raw, err := sonic.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode ingestion status: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, s.key, raw, 0)
			return nil
		})
		started = next
		return err
	}

	err := s.client.Watch(ctx, txf, s.key)
	if errors.Is(err, goredis.TxFailedErr) {
		// 另一个实例抢先写入了状态
		return Status{}, ErrIngestionRunning
	}
	if err != nil {
		return started, err
	}
	return started, nil
}
