// Package sessions resolves per-tenant Commerce Layer sessions for a chat bot
// and manages the installation lifecycle behind them.
package sessions

import "github.com/goliatone/go-tenant-sessions/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type Session = core.Session
type ResolveRequest = core.ResolveRequest
type Installation = core.Installation
type CommerceCredentials = core.CommerceCredentials
type ConfigureCredentialsRequest = core.ConfigureCredentialsRequest
type TenantState = core.TenantState
type RefreshOptions = core.RefreshOptions
type RefreshOutcome = core.RefreshOutcome

type CredentialStore = core.CredentialStore
type InstallationStore = core.InstallationStore
type AuthorizationClient = core.AuthorizationClient
type TenantLocker = core.TenantLocker
type SecretProvider = core.SecretProvider
type MetricsRecorder = core.MetricsRecorder
type JobEnqueuer = core.JobEnqueuer

var (
	WithLogger                     = core.WithLogger
	WithLoggerProvider             = core.WithLoggerProvider
	WithMetricsRecorder            = core.WithMetricsRecorder
	WithErrorFactory               = core.WithErrorFactory
	WithErrorMapper                = core.WithErrorMapper
	WithPersistenceClient          = core.WithPersistenceClient
	WithRepositoryFactory          = core.WithRepositoryFactory
	WithConfigProvider             = core.WithConfigProvider
	WithOptionsResolver            = core.WithOptionsResolver
	WithCredentialStore            = core.WithCredentialStore
	WithInstallationStore          = core.WithInstallationStore
	WithAuthorizationClient        = core.WithAuthorizationClient
	WithTenantLocker               = core.WithTenantLocker
	WithBackoffScheduler           = core.WithBackoffScheduler
	WithJobEnqueuer                = core.WithJobEnqueuer
	WithFallbackCredentials        = core.WithFallbackCredentials
	WithCredentialPurgeOnUninstall = core.WithCredentialPurgeOnUninstall
	WithClock                      = core.WithClock
)

var (
	IsNotFound              = core.IsNotFound
	IsAuth                  = core.IsAuth
	IsTransient             = core.IsTransient
	IsDuplicateInstallation = core.IsDuplicateInstallation
	ErrorTextCode           = core.ErrorTextCode
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
