package sessions

import (
	"fmt"

	sessioncommand "github.com/goliatone/go-tenant-sessions/command"
	"github.com/goliatone/go-tenant-sessions/core"
	sessionquery "github.com/goliatone/go-tenant-sessions/query"
)

type Commands struct {
	Install              *sessioncommand.InstallCommand
	UninstallOrRevoke    *sessioncommand.UninstallOrRevokeCommand
	ConfigureCredentials *sessioncommand.ConfigureCredentialsCommand
	RefreshTenant        *sessioncommand.RefreshTenantCommand
}

type Queries struct {
	ResolveSession     *sessionquery.ResolveSessionQuery
	LookupInstallation *sessionquery.LookupInstallationQuery
	TenantStatus       *sessionquery.TenantStatusQuery
}

// Facade groups the go-command handlers of one session service for bot
// handlers that call them directly instead of through a dispatcher.
type Facade struct {
	service  core.SessionService
	commands Commands
	queries  Queries
}

func NewFacade(service core.SessionService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("sessions: session service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			Install:              sessioncommand.NewInstallCommand(service),
			UninstallOrRevoke:    sessioncommand.NewUninstallOrRevokeCommand(service),
			ConfigureCredentials: sessioncommand.NewConfigureCredentialsCommand(service),
			RefreshTenant:        sessioncommand.NewRefreshTenantCommand(service),
		},
		queries: Queries{
			ResolveSession:     sessionquery.NewResolveSessionQuery(service),
			LookupInstallation: sessionquery.NewLookupInstallationQuery(service),
			TenantStatus:       sessionquery.NewTenantStatusQuery(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() core.SessionService {
	if f == nil {
		return nil
	}
	return f.service
}
