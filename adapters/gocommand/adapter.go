// Package gocommand registers the session commands and queries with a
// go-command registry and the process dispatcher.
package gocommand

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gocmd "github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	sessioncommand "github.com/goliatone/go-tenant-sessions/command"
	"github.com/goliatone/go-tenant-sessions/core"
	sessionquery "github.com/goliatone/go-tenant-sessions/query"
)

// SessionService is the surface the registered handlers call into.
// *core.Service satisfies it.
type SessionService interface {
	sessioncommand.InstallationService
	sessioncommand.CredentialService
	sessionquery.SessionResolver
	sessionquery.InstallationReader
	sessionquery.TenantStatusReader
}

// ValidateMessageContract enforces Type() plus the optional Validate().
func ValidateMessageContract(msg any) error {
	if err := gocmd.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(gocmd.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *gocmd.Registry
}

func NewRegistryAdapter(registry *gocmd.Registry) *RegistryAdapter {
	if registry == nil {
		registry = gocmd.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *gocmd.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

// AddQueueResolver mirrors registered commands into a go-job queue registry
// so the same messages can run from a worker. Queries are never mirrored.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd gocmd.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.registry.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry gocmd.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	// queries answer in process only; registry resolvers expect commanders
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...), nil
}

// Registration holds the dispatcher subscriptions of one service.
type Registration struct {
	subscriptions []commanddispatcher.Subscription
}

// Close unsubscribes every handler. It is safe to call more than once.
func (r *Registration) Close() {
	if r == nil {
		return
	}
	for _, subscription := range r.subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	r.subscriptions = nil
}

func (r *Registration) Len() int {
	if r == nil {
		return 0
	}
	return len(r.subscriptions)
}

// RegisterSessionHandlers registers the lifecycle commands and the session
// queries for service. On failure nothing stays subscribed.
func RegisterSessionHandlers(adapter *RegistryAdapter, service SessionService, runnerOpts ...runner.Option) (*Registration, error) {
	if service == nil {
		return nil, fmt.Errorf("gocommand: session service is required")
	}
	registration := &Registration{}
	var errs []error
	track := func(subscription commanddispatcher.Subscription, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		registration.subscriptions = append(registration.subscriptions, subscription)
	}

	track(RegisterAndSubscribe(adapter, gocmd.Commander[sessioncommand.InstallMessage](sessioncommand.NewInstallCommand(service)), runnerOpts...))
	track(RegisterAndSubscribe(adapter, gocmd.Commander[sessioncommand.UninstallOrRevokeMessage](sessioncommand.NewUninstallOrRevokeCommand(service)), runnerOpts...))
	track(RegisterAndSubscribe(adapter, gocmd.Commander[sessioncommand.ConfigureCredentialsMessage](sessioncommand.NewConfigureCredentialsCommand(service)), runnerOpts...))
	track(RegisterAndSubscribe(adapter, gocmd.Commander[sessioncommand.RefreshTenantMessage](sessioncommand.NewRefreshTenantCommand(service)), runnerOpts...))
	track(RegisterAndSubscribeQuery(adapter, gocmd.Querier[sessionquery.ResolveSessionMessage, core.Session](sessionquery.NewResolveSessionQuery(service)), runnerOpts...))
	track(RegisterAndSubscribeQuery(adapter, gocmd.Querier[sessionquery.LookupInstallationMessage, core.Installation](sessionquery.NewLookupInstallationQuery(service)), runnerOpts...))
	track(RegisterAndSubscribeQuery(adapter, gocmd.Querier[sessionquery.TenantStatusMessage, core.TenantState](sessionquery.NewTenantStatusQuery(service)), runnerOpts...))

	if len(errs) > 0 {
		registration.Close()
		return nil, errors.Join(errs...)
	}
	return registration, nil
}
