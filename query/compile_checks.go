package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-tenant-sessions/core"
)

var (
	_ gocmd.Querier[ResolveSessionMessage, core.Session]          = (*ResolveSessionQuery)(nil)
	_ gocmd.Querier[LookupInstallationMessage, core.Installation] = (*LookupInstallationQuery)(nil)
	_ gocmd.Querier[TenantStatusMessage, core.TenantState]        = (*TenantStatusQuery)(nil)

	_ SessionResolver    = (core.SessionService)(nil)
	_ InstallationReader = (core.SessionService)(nil)
	_ TenantStatusReader = (core.SessionService)(nil)
)
