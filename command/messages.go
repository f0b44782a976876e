package command

import (
	"strings"

	"github.com/goliatone/go-tenant-sessions/core"
)

const (
	TypeInstall              = "sessions.command.installation.install"
	TypeUninstallOrRevoke    = "sessions.command.installation.uninstall"
	TypeConfigureCredentials = "sessions.command.credentials.configure"
	TypeRefreshTenant        = "sessions.command.credentials.refresh"
)

type InstallMessage struct {
	Installation core.Installation
}

func (InstallMessage) Type() string { return TypeInstall }

func (m InstallMessage) Validate() error {
	installation := m.Installation.Normalized()
	if installation.TenantID == "" {
		return commandValidationError("team_id", "team id or enterprise id is required")
	}
	if strings.TrimSpace(installation.BotToken) == "" {
		return commandValidationError("bot_token", "bot token is required")
	}
	return nil
}

// UninstallOrRevokeMessage covers both app_uninstalled and tokens_revoked
// platform events; both end the tenant's installation.
type UninstallOrRevokeMessage struct {
	TenantID string
	Reason   string
}

func (UninstallOrRevokeMessage) Type() string { return TypeUninstallOrRevoke }

func (m UninstallOrRevokeMessage) Validate() error {
	return validateTenantID(m.TenantID)
}

type ConfigureCredentialsMessage struct {
	Request core.ConfigureCredentialsRequest
}

func (ConfigureCredentialsMessage) Type() string { return TypeConfigureCredentials }

func (m ConfigureCredentialsMessage) Validate() error {
	if err := validateTenantID(m.Request.TenantID); err != nil {
		return err
	}
	if strings.TrimSpace(m.Request.Endpoint) == "" && strings.TrimSpace(m.Request.OrganizationSlug) == "" {
		return commandValidationError("endpoint", "endpoint or organization slug is required")
	}
	if strings.TrimSpace(m.Request.ClientID) == "" {
		return commandValidationError("client_id", "client id is required")
	}
	return nil
}

type RefreshTenantMessage struct {
	TenantID string
	Force    bool
}

func (RefreshTenantMessage) Type() string { return TypeRefreshTenant }

func (m RefreshTenantMessage) Validate() error {
	return validateTenantID(m.TenantID)
}

func validateTenantID(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	return nil
}
