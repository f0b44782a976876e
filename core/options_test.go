package core

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

type failingConfigProvider struct{}

func (failingConfigProvider) Load(context.Context, Config) (Config, error) {
	return Config{}, errors.New("config source unavailable")
}

type staticStoreProvider struct {
	credentials  CredentialStore
	installation InstallationStore
}

func (p staticStoreProvider) CredentialStore() CredentialStore     { return p.credentials }
func (p staticStoreProvider) InstallationStore() InstallationStore { return p.installation }

type capturingStoreFactory struct {
	client any
	stores StoreProvider
}

func (f *capturingStoreFactory) BuildStores(client any) (StoreProvider, error) {
	f.client = client
	return f.stores, nil
}

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deps := svc.Dependencies()
	if deps.Logger == nil {
		t.Fatalf("expected default logger")
	}
	if deps.LoggerProvider == nil {
		t.Fatalf("expected default logger provider")
	}
	if deps.ErrorFactory == nil {
		t.Fatalf("expected default error factory")
	}
	if deps.ErrorMapper == nil {
		t.Fatalf("expected default error mapper")
	}
	if deps.TenantLocker == nil {
		t.Fatalf("expected default in-process tenant locker")
	}
	cfg := svc.Config()
	if cfg.ServiceName != "sessions" {
		t.Fatalf("expected default config service_name=sessions, got %q", cfg.ServiceName)
	}
	if cfg.Resolver.LockTTL != DefaultLockTTL || !cfg.Lifecycle.PurgeCredentialsOnUninstall {
		t.Fatalf("expected defaults applied, got %+v", cfg)
	}
}

func TestNewService_WithXOverrides(t *testing.T) {
	logger := newCaptureLogger()
	customFactory := func(message string, category ...goerrors.Category) *goerrors.Error {
		return goerrors.New("custom:"+message, category...)
	}
	configProvider := &fixedConfigProvider{cfg: DefaultConfig()}
	resolved := DefaultConfig()
	resolved.ServiceName = "resolved"
	optionsResolver := &fixedOptionsResolver{cfg: resolved}
	enqueuer := &recordingEnqueuer{}

	svc, err := NewService(Config{ServiceName: "runtime"},
		WithLogger(logger),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithErrorFactory(customFactory),
		WithConfigProvider(configProvider),
		WithOptionsResolver(optionsResolver),
		WithJobEnqueuer(enqueuer),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := svc.Dependencies()
	if deps.Logger != Logger(logger) {
		t.Fatalf("expected custom logger override")
	}
	if deps.JobEnqueuer != JobEnqueuer(enqueuer) {
		t.Fatalf("expected custom job enqueuer")
	}
	if got := svc.Config().ServiceName; got != "resolved" {
		t.Fatalf("expected options resolver output config, got %q", got)
	}

	_, err = svc.Resolve(context.Background(), "T1")
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Message != "custom:core: credential store is not configured" {
		t.Fatalf("expected custom error factory message, got %v", err)
	}
}

func TestNewService_ConfigLayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(StaticConfigLoader(map[string]any{
		"service_name": "from-config",
		"commerce": map[string]any{
			"admin_url_template": "https://{slug}.example.test/admin",
		},
	}))

	svc, err := NewService(Config{ServiceName: "from-runtime"}, WithConfigProvider(provider))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cfg := svc.Config()
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime value to override config/default, got %q", cfg.ServiceName)
	}
	if cfg.Commerce.AdminURLTemplate != "https://{slug}.example.test/admin" {
		t.Fatalf("expected config layer value, got %q", cfg.Commerce.AdminURLTemplate)
	}
	if cfg.Commerce.TokenURLTemplate != DefaultTokenURLTemplate {
		t.Fatalf("expected default layer value, got %q", cfg.Commerce.TokenURLTemplate)
	}
}

func TestNewService_RuntimeDurationsOverrideDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolver.RefreshLeadWindow = 5 * time.Minute

	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if got := svc.Config().Resolver.RefreshLeadWindow; got != 5*time.Minute {
		t.Fatalf("expected runtime lead window, got %s", got)
	}
}

func TestNewService_ConfigProviderErrorIsMapped(t *testing.T) {
	_, err := NewService(Config{}, WithConfigProvider(failingConfigProvider{}))
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected mapped build error, got %v", err)
	}
}

func TestNewService_InvalidConfigRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Commerce.TokenURLTemplate = "https://auth.example.test/oauth/token"
	if _, err := NewService(cfg); err == nil {
		t.Fatalf("expected token template without slug placeholder to fail")
	}
}

func TestNewService_RepositoryFactoryBuildsStores(t *testing.T) {
	credentials := newMemoryCredentialStore()
	installs := newMemoryInstallationStore()
	client := &struct{ Name string }{Name: "persistence"}
	factory := &capturingStoreFactory{stores: staticStoreProvider{credentials: credentials, installation: installs}}

	svc, err := NewService(DefaultConfig(),
		WithPersistenceClient(client),
		WithRepositoryFactory(factory),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if factory.client != client {
		t.Fatalf("expected persistence client passed to the factory")
	}
	deps := svc.Dependencies()
	if deps.CredentialStore != CredentialStore(credentials) || deps.InstallationStore != InstallationStore(installs) {
		t.Fatalf("expected factory stores wired into the service")
	}
}

func TestNewService_UnsupportedRepositoryFactory(t *testing.T) {
	if _, err := NewService(DefaultConfig(), WithRepositoryFactory(struct{}{})); err == nil {
		t.Fatalf("expected unsupported factory error")
	}
}

func TestNewService_AuthorizationClientFactoryGetsResolvedConfig(t *testing.T) {
	provider := NewCfgxConfigProvider(StaticConfigLoader(map[string]any{
		"commerce": map[string]any{
			"token_url_template": "https://{slug}.auth.example.test/oauth/token",
			"default_token_ttl":  "45m",
		},
	}))
	var seen Config
	client := &fakeAuthorizationClient{}
	svc, err := NewService(Config{}, WithConfigProvider(provider),
		WithAuthorizationClientFactory(func(cfg Config) (AuthorizationClient, error) {
			seen = cfg
			return client, nil
		}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if seen.Commerce.TokenURLTemplate != "https://{slug}.auth.example.test/oauth/token" {
		t.Fatalf("expected factory to see the config layer token url, got %q", seen.Commerce.TokenURLTemplate)
	}
	if seen.Commerce.DefaultTokenTTL != 45*time.Minute || seen.Resolver.ExchangeTimeout != DefaultExchangeTimeout {
		t.Fatalf("expected merged config in factory, got %+v", seen)
	}
	if svc.authorizationClient != client {
		t.Fatalf("expected factory client to be used")
	}

	_, err = NewService(Config{}, WithAuthorizationClientFactory(func(Config) (AuthorizationClient, error) {
		return nil, errors.New("bad template")
	}))
	if err == nil {
		t.Fatalf("expected factory error to fail construction")
	}
}
