package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// SessionService is the surface consumed by command handlers and adapters.
type SessionService interface {
	Resolve(ctx context.Context, tenantID string) (Session, error)
	ResolveSession(ctx context.Context, req ResolveRequest) (Session, error)
	RefreshTenant(ctx context.Context, tenantID string, opts RefreshOptions) (RefreshOutcome, error)
	OnInstall(ctx context.Context, installation Installation) (Installation, error)
	Lookup(ctx context.Context, tenantID string) (Installation, error)
	OnUninstallOrRevoke(ctx context.Context, tenantID string) error
	ConfigureCredentials(ctx context.Context, req ConfigureCredentialsRequest) (CommerceCredentials, error)
	TenantStatus(ctx context.Context, tenantID string) (TenantState, error)
}

// CredentialStore persists one CommerceCredentials record per tenant.
// Get returns an error matching ErrRecordNotFound when the tenant has none.
// Delete of an absent record is not an error.
type CredentialStore interface {
	Get(ctx context.Context, tenantID string) (CommerceCredentials, error)
	Put(ctx context.Context, tenantID string, credentials CommerceCredentials) error
	Delete(ctx context.Context, tenantID string) error
}

// InstallationStore persists one Installation per tenant. Create must not
// overwrite an existing record and reports ErrDuplicateRecord instead.
type InstallationStore interface {
	Create(ctx context.Context, installation Installation) (Installation, error)
	Get(ctx context.Context, tenantID string) (Installation, error)
	Delete(ctx context.Context, tenantID string) error
}

type ExchangeParams struct {
	OrganizationSlug string
	ClientID         string
	ClientSecret     string
	Code             string
	RedirectURI      string
	RefreshToken     string
	Scope            string
}

type TokenResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    *time.Time
	Scope        string
}

// AuthorizationClient performs grant exchanges against the commerce
// authorization server. Rejections are returned as auth errors, unreachable
// servers and timeouts as transient errors.
type AuthorizationClient interface {
	Exchange(ctx context.Context, grantType GrantType, params ExchangeParams) (TokenResult, error)
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// TenantLocker hands out exclusive, time-bounded refresh leases per tenant.
// Acquire fails fast with ErrLockHeld when the lease is taken.
type TenantLocker interface {
	Acquire(ctx context.Context, tenantID string, ttl time.Duration) (LockHandle, error)
}

type BackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type CredentialCodec interface {
	Format() string
	Version() int
	Encode(secrets CredentialSecrets) ([]byte, error)
	Decode(raw []byte) (CredentialSecrets, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
