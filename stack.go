package sessions

import (
	"fmt"
	"net/http"

	"github.com/goliatone/go-job/queue"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-tenant-sessions/adapters/gojob"
	"github.com/goliatone/go-tenant-sessions/adapters/gologger"
	sessionmetrics "github.com/goliatone/go-tenant-sessions/adapters/prometheus"
	"github.com/goliatone/go-tenant-sessions/core"
	"github.com/goliatone/go-tenant-sessions/providers/commercelayer"
	storeredis "github.com/goliatone/go-tenant-sessions/store/redis"
	sqlstore "github.com/goliatone/go-tenant-sessions/store/sql"
)

// Stack is a session service wired to the SQL stores, the Commerce Layer
// authorization client and the optional Redis, Prometheus and go-job
// integrations.
type Stack struct {
	Service *core.Service
	Facade  *Facade
	Stores  *sqlstore.RepositoryFactory
	// Metrics is nil unless a Prometheus registry was supplied.
	Metrics *sessionmetrics.Recorder
}

type StackOption func(*stackOptions)

type stackOptions struct {
	httpClient        *http.Client
	redisClient       storeredis.Client
	redisOptions      []storeredis.Option
	registry          *prometheus.Registry
	metricsOptions    []sessionmetrics.Option
	enqueuer          queue.Enqueuer
	installationCache repositorycache.CacheService
	loggerProvider    core.LoggerProvider
	logger            core.Logger
	serviceOptions    []core.Option
}

func WithHTTPClient(client *http.Client) StackOption {
	return func(o *stackOptions) {
		o.httpClient = client
	}
}

// WithRedisLocker shares refresh leases across processes through Redis.
func WithRedisLocker(client storeredis.Client, opts ...storeredis.Option) StackOption {
	return func(o *stackOptions) {
		o.redisClient = client
		o.redisOptions = append(o.redisOptions, opts...)
	}
}

func WithPrometheusRegistry(registry *prometheus.Registry, opts ...sessionmetrics.Option) StackOption {
	return func(o *stackOptions) {
		o.registry = registry
		o.metricsOptions = append(o.metricsOptions, opts...)
	}
}

// WithQueueEnqueuer schedules proactive refresh jobs on a go-job queue.
func WithQueueEnqueuer(enqueuer queue.Enqueuer) StackOption {
	return func(o *stackOptions) {
		o.enqueuer = enqueuer
	}
}

func WithInstallationCache(cacheService repositorycache.CacheService) StackOption {
	return func(o *stackOptions) {
		o.installationCache = cacheService
	}
}

func WithLogging(provider core.LoggerProvider, logger core.Logger) StackOption {
	return func(o *stackOptions) {
		o.loggerProvider = provider
		o.logger = logger
	}
}

// WithServiceOptions appends raw core options. They run last and override
// anything the stack configured.
func WithServiceOptions(opts ...core.Option) StackOption {
	return func(o *stackOptions) {
		o.serviceOptions = append(o.serviceOptions, opts...)
	}
}

// NewStack builds a service over an already migrated persistence client.
func NewStack(cfg Config, client *persistence.Client, secrets core.SecretProvider, opts ...StackOption) (*Stack, error) {
	if client == nil {
		return nil, fmt.Errorf("sessions: persistence client is required")
	}
	if secrets == nil {
		return nil, fmt.Errorf("sessions: secret provider is required")
	}
	options := stackOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	var factoryOptions []sqlstore.FactoryOption
	if options.installationCache != nil {
		factoryOptions = append(factoryOptions, sqlstore.WithInstallationCache(options.installationCache))
	}
	stores, err := sqlstore.NewRepositoryFactoryFromPersistence(client, secrets, factoryOptions...)
	if err != nil {
		return nil, fmt.Errorf("sessions: build stores: %w", err)
	}

	serviceOptions := gologger.ServiceOptions(options.loggerProvider, options.logger)
	serviceOptions = append(serviceOptions,
		core.WithRepositoryFactory(stores),
		core.WithPersistenceClient(client),
		core.WithAuthorizationClientFactory(func(resolved core.Config) (core.AuthorizationClient, error) {
			client, err := commercelayer.NewClientFromConfig(resolved, options.httpClient)
			if err != nil {
				return nil, fmt.Errorf("sessions: build authorization client: %w", err)
			}
			return client, nil
		}),
	)
	if options.redisClient != nil {
		serviceOptions = append(serviceOptions, core.WithTenantLocker(storeredis.NewTenantLocker(options.redisClient, options.redisOptions...)))
	}
	var recorder *sessionmetrics.Recorder
	if options.registry != nil {
		recorder = sessionmetrics.NewRecorder(options.registry, options.metricsOptions...)
		serviceOptions = append(serviceOptions, core.WithMetricsRecorder(recorder))
	}
	if options.enqueuer != nil {
		serviceOptions = append(serviceOptions, core.WithJobEnqueuer(gojob.NewEnqueuerAdapter(options.enqueuer)))
	}
	serviceOptions = append(serviceOptions, options.serviceOptions...)

	service, err := core.NewService(cfg, serviceOptions...)
	if err != nil {
		return nil, err
	}
	facade, err := NewFacade(service)
	if err != nil {
		return nil, err
	}
	return &Stack{
		Service: service,
		Facade:  facade,
		Stores:  stores,
		Metrics: recorder,
	}, nil
}

// RefreshHandler returns the go-job handler that runs scheduled refreshes
// for this stack's service.
func (s *Stack) RefreshHandler(opts ...gojob.RefreshHandlerOption) *gojob.RefreshHandler {
	if s == nil || s.Service == nil {
		return nil
	}
	return gojob.NewRefreshHandler(s.Service, opts...)
}

// WorkerHook reports refresh worker activity through the stack's metrics.
func (s *Stack) WorkerHook() *gojob.MetricsHook {
	if s == nil || s.Metrics == nil {
		return gojob.NewMetricsHook(nil)
	}
	return gojob.NewMetricsHook(s.Metrics)
}
