package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = DefaultLockRetryInitial
	}
	max := s.Max
	if max <= 0 {
		max = DefaultLockRetryMax
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// refreshLease is a held tenant lease. ExpiresAt is measured from just before
// the successful Acquire call, so it never lies after the locker's own expiry.
type refreshLease struct {
	LockHandle
	ExpiresAt time.Time
}

// WorkDeadline is the latest time work under the lease may run while leaving
// headroom to persist its result.
func (l refreshLease) WorkDeadline(ttl time.Duration) time.Time {
	return l.ExpiresAt.Add(-LeaseHeadroom(ttl))
}

// acquireRefreshLease takes the tenant's refresh lease, retrying a held lease
// with backoff until the configured wait timeout elapses.
func (s *Service) acquireRefreshLease(ctx context.Context, tenantID string) (refreshLease, error) {
	ttl := s.config.Resolver.LockTTL
	if s.tenantLocker == nil {
		return refreshLease{LockHandle: noopLockHandle{}, ExpiresAt: time.Now().Add(ttl)}, nil
	}
	deadline := time.Now().Add(s.config.Resolver.LockWaitTimeout)
	for attempt := 1; ; attempt++ {
		attemptedAt := time.Now()
		handle, err := s.tenantLocker.Acquire(ctx, tenantID, ttl)
		if err == nil {
			return refreshLease{LockHandle: handle, ExpiresAt: attemptedAt.Add(ttl)}, nil
		}
		if !errors.Is(err, ErrLockHeld) {
			return refreshLease{}, NewTransientError(tenantID, "core: refresh lock unavailable", err)
		}

		delay := s.backoffScheduler.NextDelay(attempt)
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return refreshLease{}, NewRefreshLockedError(tenantID, err)
		}
		if delay > remaining {
			delay = remaining
		}
		if waitErr := waitWithContext(ctx, delay); waitErr != nil {
			return refreshLease{}, NewTransientError(tenantID, "core: waiting for refresh lock", waitErr)
		}
	}
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type noopLockHandle struct{}

func (noopLockHandle) Unlock(context.Context) error { return nil }

// MemoryTenantLocker is a process-local TenantLocker. Leases expire after
// their ttl so a crashed holder cannot block a tenant forever.
type MemoryTenantLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLease
	nowFn func() time.Time
	seq   uint64
}

type memoryLease struct {
	until time.Time
	token uint64
}

func NewMemoryTenantLocker() *MemoryTenantLocker {
	return &MemoryTenantLocker{
		locks: make(map[string]memoryLease),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryTenantLocker) Acquire(_ context.Context, tenantID string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: tenant locker is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("core: tenant id is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if lease, ok := l.locks[tenantID]; ok && now.Before(lease.until) {
		return nil, fmt.Errorf("%w for tenant %q", ErrLockHeld, tenantID)
	}
	l.seq++
	l.locks[tenantID] = memoryLease{until: now.Add(ttl), token: l.seq}
	return &memoryLockHandle{locker: l, tenantID: tenantID, token: l.seq}, nil
}

type memoryLockHandle struct {
	locker   *MemoryTenantLocker
	tenantID string
	token    uint64
	once     sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		defer h.locker.mu.Unlock()
		// an expired lease may already belong to someone else
		if lease, ok := h.locker.locks[h.tenantID]; ok && lease.token == h.token {
			delete(h.locker.locks, h.tenantID)
		}
	})
	return nil
}
