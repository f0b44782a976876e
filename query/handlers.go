package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-tenant-sessions/core"
)

type SessionResolver interface {
	ResolveSession(ctx context.Context, req core.ResolveRequest) (core.Session, error)
}

type InstallationReader interface {
	Lookup(ctx context.Context, tenantID string) (core.Installation, error)
}

type TenantStatusReader interface {
	TenantStatus(ctx context.Context, tenantID string) (core.TenantState, error)
}

// ResolveSessionQuery is the per-command entry point: every bot command
// resolves a fresh session for the invoking tenant.
type ResolveSessionQuery struct {
	resolver SessionResolver
}

func NewResolveSessionQuery(resolver SessionResolver) *ResolveSessionQuery {
	return &ResolveSessionQuery{resolver: resolver}
}

func (q *ResolveSessionQuery) Query(ctx context.Context, msg ResolveSessionMessage) (core.Session, error) {
	if q == nil || q.resolver == nil {
		return core.Session{}, queryDependencyError("query: session resolver is required")
	}
	return q.resolver.ResolveSession(ctx, core.ResolveRequest{
		TenantID:       strings.TrimSpace(msg.TenantID),
		CheckoutMarket: strings.TrimSpace(msg.CheckoutMarket),
	})
}

type LookupInstallationQuery struct {
	reader InstallationReader
}

func NewLookupInstallationQuery(reader InstallationReader) *LookupInstallationQuery {
	return &LookupInstallationQuery{reader: reader}
}

func (q *LookupInstallationQuery) Query(ctx context.Context, msg LookupInstallationMessage) (core.Installation, error) {
	if q == nil || q.reader == nil {
		return core.Installation{}, queryDependencyError("query: installation reader is required")
	}
	return q.reader.Lookup(ctx, strings.TrimSpace(msg.TenantID))
}

type TenantStatusQuery struct {
	reader TenantStatusReader
}

func NewTenantStatusQuery(reader TenantStatusReader) *TenantStatusQuery {
	return &TenantStatusQuery{reader: reader}
}

func (q *TenantStatusQuery) Query(ctx context.Context, msg TenantStatusMessage) (core.TenantState, error) {
	if q == nil || q.reader == nil {
		return core.TenantState{}, queryDependencyError("query: tenant status reader is required")
	}
	return q.reader.TenantStatus(ctx, strings.TrimSpace(msg.TenantID))
}
