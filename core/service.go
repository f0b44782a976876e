package core

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/singleflight"
)

// Service resolves tenant sessions and owns the installation lifecycle.
type Service struct {
	config              Config
	logger              Logger
	loggerProvider      LoggerProvider
	metricsRecorder     MetricsRecorder
	errorFactory        ErrorFactory
	errorMapper         ErrorMapper
	credentialStore     CredentialStore
	installationStore   InstallationStore
	authorizationClient AuthorizationClient
	tenantLocker        TenantLocker
	backoffScheduler    BackoffScheduler
	jobEnqueuer         JobEnqueuer
	fallbackCredentials *CommerceCredentials
	now                 func() time.Time

	refreshFlights singleflight.Group
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("sessions", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("sessions"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.tenantLocker == nil {
		builder.tenantLocker = NewMemoryTenantLocker()
	}
	if builder.clock == nil {
		builder.clock = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	if builder.purgeOnUninstall != nil {
		finalConfig.Lifecycle.PurgeCredentialsOnUninstall = *builder.purgeOnUninstall
	}

	if builder.authorizationClient == nil && builder.clientFactory != nil {
		client, buildErr := builder.clientFactory(finalConfig)
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		builder.authorizationClient = client
	}

	if builder.backoffScheduler == nil {
		builder.backoffScheduler = ExponentialBackoffScheduler{
			Initial: finalConfig.Resolver.LockRetryInitial,
			Max:     finalConfig.Resolver.LockRetryMax,
		}
	}

	if (builder.credentialStore == nil || builder.installationStore == nil) && builder.repositoryFactory != nil {
		stores, buildErr := resolveStoreProvider(builder.repositoryFactory, builder.persistenceClient)
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		if stores != nil {
			if builder.credentialStore == nil {
				builder.credentialStore = stores.CredentialStore()
			}
			if builder.installationStore == nil {
				builder.installationStore = stores.InstallationStore()
			}
		}
	}

	return &Service{
		config:              finalConfig,
		logger:              logger,
		loggerProvider:      provider,
		metricsRecorder:     builder.metricsRecorder,
		errorFactory:        builder.errorFactory,
		errorMapper:         builder.errorMapper,
		credentialStore:     builder.credentialStore,
		installationStore:   builder.installationStore,
		authorizationClient: builder.authorizationClient,
		tenantLocker:        builder.tenantLocker,
		backoffScheduler:    builder.backoffScheduler,
		jobEnqueuer:         builder.jobEnqueuer,
		fallbackCredentials: builder.fallbackCredentials,
		now:                 builder.clock,
	}, nil
}

func resolveStoreProvider(factory any, persistenceClient any) (StoreProvider, error) {
	switch typed := factory.(type) {
	case RepositoryStoreFactory:
		return typed.BuildStores(persistenceClient)
	case StoreProvider:
		return typed, nil
	default:
		return nil, fmt.Errorf("core: unsupported repository factory type %T", factory)
	}
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Logger() Logger {
	if s == nil {
		return glog.Nop()
	}
	return s.logger
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (s *Service) clock() time.Time {
	if s == nil || s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

func (s *Service) missingDependency(name string) error {
	factory := goerrors.New
	if s != nil && s.errorFactory != nil {
		factory = s.errorFactory
	}
	return factory("core: "+name+" is not configured", goerrors.CategoryInternal).
		WithTextCode(SessionErrorInternal).
		WithCode(http.StatusInternalServerError)
}

// Dependencies exposes the collaborators the service was built with.
type Dependencies struct {
	Logger              Logger
	LoggerProvider      LoggerProvider
	MetricsRecorder     MetricsRecorder
	ErrorFactory        ErrorFactory
	ErrorMapper         ErrorMapper
	CredentialStore     CredentialStore
	InstallationStore   InstallationStore
	AuthorizationClient AuthorizationClient
	TenantLocker        TenantLocker
	JobEnqueuer         JobEnqueuer
}

func (s *Service) Dependencies() Dependencies {
	if s == nil {
		return Dependencies{}
	}
	return Dependencies{
		Logger:              s.logger,
		LoggerProvider:      s.loggerProvider,
		MetricsRecorder:     s.metricsRecorder,
		ErrorFactory:        s.errorFactory,
		ErrorMapper:         s.errorMapper,
		CredentialStore:     s.credentialStore,
		InstallationStore:   s.installationStore,
		AuthorizationClient: s.authorizationClient,
		TenantLocker:        s.tenantLocker,
		JobEnqueuer:         s.jobEnqueuer,
	}
}
