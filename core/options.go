package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// StoreProvider exposes the stores built by a repository factory.
type StoreProvider interface {
	CredentialStore() CredentialStore
	InstallationStore() InstallationStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type serviceBuilder struct {
	runtimeConfig       Config
	logger              Logger
	loggerProvider      LoggerProvider
	metricsRecorder     MetricsRecorder
	errorFactory        ErrorFactory
	errorMapper         ErrorMapper
	persistenceClient   any
	repositoryFactory   any
	configProvider      ConfigProvider
	optionsResolver     OptionsResolver
	credentialStore     CredentialStore
	installationStore   InstallationStore
	authorizationClient AuthorizationClient
	clientFactory       AuthorizationClientFactory
	tenantLocker        TenantLocker
	backoffScheduler    BackoffScheduler
	jobEnqueuer         JobEnqueuer
	fallbackCredentials *CommerceCredentials
	purgeOnUninstall    *bool
	clock               func() time.Time
}

type Option func(*serviceBuilder)

// AuthorizationClientFactory builds the authorization client from the
// resolved configuration.
type AuthorizationClientFactory func(cfg Config) (AuthorizationClient, error)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithCredentialStore(store CredentialStore) Option {
	return func(b *serviceBuilder) {
		b.credentialStore = store
	}
}

func WithInstallationStore(store InstallationStore) Option {
	return func(b *serviceBuilder) {
		b.installationStore = store
	}
}

func WithAuthorizationClient(client AuthorizationClient) Option {
	return func(b *serviceBuilder) {
		b.authorizationClient = client
	}
}

// WithAuthorizationClientFactory defers building the authorization client
// until the configuration layers are merged. WithAuthorizationClient wins
// when both are set.
func WithAuthorizationClientFactory(factory AuthorizationClientFactory) Option {
	return func(b *serviceBuilder) {
		b.clientFactory = factory
	}
}

func WithTenantLocker(locker TenantLocker) Option {
	return func(b *serviceBuilder) {
		b.tenantLocker = locker
	}
}

func WithBackoffScheduler(scheduler BackoffScheduler) Option {
	return func(b *serviceBuilder) {
		b.backoffScheduler = scheduler
	}
}

func WithJobEnqueuer(enqueuer JobEnqueuer) Option {
	return func(b *serviceBuilder) {
		b.jobEnqueuer = enqueuer
	}
}

// WithFallbackCredentials installs the record used for tenants that have
// none stored, typically non-production environment credentials.
func WithFallbackCredentials(credentials CommerceCredentials) Option {
	return func(b *serviceBuilder) {
		normalized := credentials.Normalized()
		b.fallbackCredentials = &normalized
	}
}

func WithCredentialPurgeOnUninstall(enabled bool) Option {
	return func(b *serviceBuilder) {
		b.purgeOnUninstall = &enabled
	}
}

func WithClock(clock func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("sessions", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		clock:           func() time.Time { return time.Now().UTC() },
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return sessionErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// StaticConfigLoader serves a fixed raw configuration map.
func StaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, true),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	resolver := map[string]any{}
	putDuration(resolver, "refresh_lead_window", cfg.Resolver.RefreshLeadWindow, includeZero)
	putDuration(resolver, "lock_ttl", cfg.Resolver.LockTTL, includeZero)
	putDuration(resolver, "lock_wait_timeout", cfg.Resolver.LockWaitTimeout, includeZero)
	putDuration(resolver, "lock_retry_initial", cfg.Resolver.LockRetryInitial, includeZero)
	putDuration(resolver, "lock_retry_max", cfg.Resolver.LockRetryMax, includeZero)
	putDuration(resolver, "exchange_timeout", cfg.Resolver.ExchangeTimeout, includeZero)
	if len(resolver) > 0 {
		layer["resolver"] = resolver
	}

	commerce := map[string]any{}
	putString(commerce, "token_url_template", cfg.Commerce.TokenURLTemplate, includeZero)
	putString(commerce, "admin_url_template", cfg.Commerce.AdminURLTemplate, includeZero)
	putString(commerce, "checkout_url_template", cfg.Commerce.CheckoutURLTemplate, includeZero)
	putDuration(commerce, "default_token_ttl", cfg.Commerce.DefaultTokenTTL, includeZero)
	if len(commerce) > 0 {
		layer["commerce"] = commerce
	}

	if includeZero || cfg.Lifecycle.PurgeCredentialsOnUninstall {
		layer["lifecycle"] = map[string]any{
			"purge_credentials_on_uninstall": cfg.Lifecycle.PurgeCredentialsOnUninstall,
		}
	}
	return layer
}

func putDuration(target map[string]any, key string, value time.Duration, includeZero bool) {
	if includeZero || value != 0 {
		target[key] = value
	}
}

func putString(target map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		target[key] = value
	}
}
