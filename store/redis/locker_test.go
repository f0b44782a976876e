package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/goliatone/go-tenant-sessions/core"
)

// fakeRedis keeps keys in memory and evaluates only the release script.
type fakeRedis struct {
	mu      sync.Mutex
	values  map[string]string
	expires map[string]time.Time
	now     time.Time
	setErr  error
	evals   int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		values:  map[string]string{},
		expires: map[string]time.Time{},
		now:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRedis) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeRedis) live(key string) (string, bool) {
	value, ok := f.values[key]
	if !ok {
		return "", false
	}
	if deadline, ok := f.expires[key]; ok && !f.now.Before(deadline) {
		delete(f.values, key)
		delete(f.expires, key)
		return "", false
	}
	return value, true
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, expiration time.Duration) *rdb.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return rdb.NewBoolResult(false, f.setErr)
	}
	if _, ok := f.live(key); ok {
		return rdb.NewBoolResult(false, nil)
	}
	f.values[key] = fmt.Sprint(value)
	f.expires[key] = f.now.Add(expiration)
	return rdb.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(_ context.Context, script string, keys []string, args ...any) *rdb.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	if script != releaseScript || len(keys) != 1 || len(args) != 1 {
		return rdb.NewCmdResult(nil, errors.New("unexpected script"))
	}
	if value, ok := f.live(keys[0]); ok && value == fmt.Sprint(args[0]) {
		delete(f.values, keys[0])
		delete(f.expires, keys[0])
		return rdb.NewCmdResult(int64(1), nil)
	}
	return rdb.NewCmdResult(int64(0), nil)
}

func sequentialTokens() func() string {
	var (
		mu  sync.Mutex
		seq int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("token-%d", seq)
	}
}

func TestTenantLocker_SecondAcquireIsHeld(t *testing.T) {
	locker := NewTenantLocker(newFakeRedis(), WithTokenGenerator(sequentialTokens()))
	ctx := context.Background()

	handle, err := locker.Acquire(ctx, "T1", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := locker.Acquire(ctx, "T1", time.Minute); !errors.Is(err, core.ErrLockHeld) {
		t.Fatalf("expected lock held, got %v", err)
	}
	if _, err := locker.Acquire(ctx, "T2", time.Minute); err != nil {
		t.Fatalf("expected other tenant to lock independently, got %v", err)
	}

	if err := handle.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := locker.Acquire(ctx, "T1", time.Minute); err != nil {
		t.Fatalf("expected reacquire after unlock, got %v", err)
	}
}

func TestTenantLocker_UnlockAfterExpiryKeepsNewOwner(t *testing.T) {
	redis := newFakeRedis()
	locker := NewTenantLocker(redis, WithTokenGenerator(sequentialTokens()))
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "T1", time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	redis.advance(2 * time.Second)

	if _, err := locker.Acquire(ctx, "T1", time.Minute); err != nil {
		t.Fatalf("expected expired lease to be taken over, got %v", err)
	}
	if err := stale.Unlock(ctx); err != nil {
		t.Fatalf("stale unlock: %v", err)
	}
	if _, err := locker.Acquire(ctx, "T1", time.Minute); !errors.Is(err, core.ErrLockHeld) {
		t.Fatalf("expected new owner to keep the lease, got %v", err)
	}
}

func TestTenantLocker_UnlockRunsOnce(t *testing.T) {
	redis := newFakeRedis()
	locker := NewTenantLocker(redis)
	ctx := context.Background()

	handle, err := locker.Acquire(ctx, "T1", 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	_ = handle.Unlock(ctx)
	_ = handle.Unlock(ctx)
	if redis.evals != 1 {
		t.Fatalf("expected a single release call, got %d", redis.evals)
	}
	if got := redis.expires[locker.Key("T1")]; !got.IsZero() {
		t.Fatalf("expected key removed, found expiry %v", got)
	}
}

func TestTenantLocker_KeyPrefixAndErrors(t *testing.T) {
	redis := newFakeRedis()
	locker := NewTenantLocker(redis, WithKeyPrefix("bot:lock:"))
	if locker.Key(" T1 ") != "bot:lock:T1" {
		t.Fatalf("unexpected key %q", locker.Key(" T1 "))
	}
	if _, err := locker.Acquire(context.Background(), "  ", time.Minute); err == nil {
		t.Fatalf("expected missing tenant error")
	}

	redis.setErr = errors.New("connection refused")
	_, err := locker.Acquire(context.Background(), "T1", time.Minute)
	if err == nil || errors.Is(err, core.ErrLockHeld) {
		t.Fatalf("expected connection error distinct from lock held, got %v", err)
	}
}

func TestTenantLocker_SerializesConcurrentAcquire(t *testing.T) {
	locker := NewTenantLocker(newFakeRedis())
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := locker.Acquire(ctx, "T1", time.Minute); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if granted != 1 {
		t.Fatalf("expected exactly one lease, got %d", granted)
	}
}
