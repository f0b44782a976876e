package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-tenant-sessions/core"
)

var (
	_ gocmd.Commander[InstallMessage]              = (*InstallCommand)(nil)
	_ gocmd.Commander[UninstallOrRevokeMessage]    = (*UninstallOrRevokeCommand)(nil)
	_ gocmd.Commander[ConfigureCredentialsMessage] = (*ConfigureCredentialsCommand)(nil)
	_ gocmd.Commander[RefreshTenantMessage]        = (*RefreshTenantCommand)(nil)

	_ InstallationService = (core.SessionService)(nil)
	_ CredentialService   = (core.SessionService)(nil)
)
