// Package redis provides a TenantLocker shared by every process that talks
// to the same Redis.
package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	rdb "github.com/redis/go-redis/v9"

	"github.com/goliatone/go-tenant-sessions/core"
)

const DefaultKeyPrefix = "tenant-sessions:refresh-lock:"

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// Client is the subset of go-redis the locker needs. *redis.Client,
// *redis.ClusterClient and redis.UniversalClient all satisfy it.
type Client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *rdb.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *rdb.Cmd
}

type Option func(*TenantLocker)

func WithKeyPrefix(prefix string) Option {
	return func(l *TenantLocker) {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			l.prefix = prefix
		}
	}
}

func WithTokenGenerator(next func() string) Option {
	return func(l *TenantLocker) {
		if next != nil {
			l.nextToken = next
		}
	}
}

// TenantLocker stores one key per tenant with a random token and a ttl.
type TenantLocker struct {
	client    Client
	prefix    string
	nextToken func() string
}

func NewTenantLocker(client Client, opts ...Option) *TenantLocker {
	locker := &TenantLocker{
		client:    client,
		prefix:    DefaultKeyPrefix,
		nextToken: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(locker)
		}
	}
	return locker
}

// NewTenantLockerFromAddr dials a single Redis node.
func NewTenantLockerFromAddr(addr string, db int, opts ...Option) *TenantLocker {
	return NewTenantLocker(rdb.NewClient(&rdb.Options{Addr: addr, DB: db}), opts...)
}

func (l *TenantLocker) Key(tenantID string) string {
	return l.prefix + strings.TrimSpace(tenantID)
}

func (l *TenantLocker) Acquire(ctx context.Context, tenantID string, ttl time.Duration) (core.LockHandle, error) {
	if l == nil || l.client == nil {
		return nil, fmt.Errorf("redis: tenant locker is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("redis: tenant id is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = core.DefaultLockTTL
	}

	key := l.Key(tenantID)
	token := l.nextToken()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock for tenant %q: %w", tenantID, err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w for tenant %q", core.ErrLockHeld, tenantID)
	}
	return &lockHandle{client: l.client, key: key, token: token}, nil
}

type lockHandle struct {
	client Client
	key    string
	token  string

	once sync.Once
	err  error
}

// Unlock releases the lease if it has not expired and been taken over.
func (h *lockHandle) Unlock(ctx context.Context) error {
	if h == nil || h.client == nil {
		return nil
	}
	h.once.Do(func() {
		if err := h.client.Eval(ctx, releaseScript, []string{h.key}, h.token).Err(); err != nil && err != rdb.Nil {
			h.err = fmt.Errorf("redis: release lock %q: %w", h.key, err)
		}
	})
	return h.err
}

var (
	_ core.TenantLocker = (*TenantLocker)(nil)
	_ Client            = (*rdb.Client)(nil)
	_ Client            = (rdb.UniversalClient)(nil)
)
