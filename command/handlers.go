package command

import (
	"context"
	"strings"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-tenant-sessions/core"
)

type InstallationService interface {
	OnInstall(ctx context.Context, installation core.Installation) (core.Installation, error)
	OnUninstallOrRevoke(ctx context.Context, tenantID string) error
}

type CredentialService interface {
	ConfigureCredentials(ctx context.Context, req core.ConfigureCredentialsRequest) (core.CommerceCredentials, error)
	RefreshTenant(ctx context.Context, tenantID string, opts core.RefreshOptions) (core.RefreshOutcome, error)
}

type InstallCommand struct {
	service InstallationService
}

func NewInstallCommand(service InstallationService) *InstallCommand {
	return &InstallCommand{service: service}
}

func (c *InstallCommand) Execute(ctx context.Context, msg InstallMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: installation service is required")
	}
	out, err := c.service.OnInstall(ctx, msg.Installation)
	if err != nil {
		return err
	}
	// results never carry the bot token
	out.BotToken = core.RedactedValue
	storeResult(ctx, out)
	return nil
}

type UninstallOrRevokeCommand struct {
	service InstallationService
}

func NewUninstallOrRevokeCommand(service InstallationService) *UninstallOrRevokeCommand {
	return &UninstallOrRevokeCommand{service: service}
}

func (c *UninstallOrRevokeCommand) Execute(ctx context.Context, msg UninstallOrRevokeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: installation service is required")
	}
	return c.service.OnUninstallOrRevoke(ctx, strings.TrimSpace(msg.TenantID))
}

type ConfigureCredentialsCommand struct {
	service CredentialService
}

func NewConfigureCredentialsCommand(service CredentialService) *ConfigureCredentialsCommand {
	return &ConfigureCredentialsCommand{service: service}
}

func (c *ConfigureCredentialsCommand) Execute(ctx context.Context, msg ConfigureCredentialsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	out, err := c.service.ConfigureCredentials(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshTenantCommand struct {
	service CredentialService
}

func NewRefreshTenantCommand(service CredentialService) *RefreshTenantCommand {
	return &RefreshTenantCommand{service: service}
}

func (c *RefreshTenantCommand) Execute(ctx context.Context, msg RefreshTenantMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	out, err := c.service.RefreshTenant(ctx, strings.TrimSpace(msg.TenantID), core.RefreshOptions{Force: msg.Force})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
