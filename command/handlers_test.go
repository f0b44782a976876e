package command

import (
	"context"
	"errors"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-tenant-sessions/core"
)

type stubSessionService struct {
	onInstallFn            func(context.Context, core.Installation) (core.Installation, error)
	onUninstallOrRevokeFn  func(context.Context, string) error
	configureCredentialsFn func(context.Context, core.ConfigureCredentialsRequest) (core.CommerceCredentials, error)
	refreshTenantFn        func(context.Context, string, core.RefreshOptions) (core.RefreshOutcome, error)
}

func (s stubSessionService) OnInstall(ctx context.Context, installation core.Installation) (core.Installation, error) {
	if s.onInstallFn == nil {
		return core.Installation{}, nil
	}
	return s.onInstallFn(ctx, installation)
}

func (s stubSessionService) OnUninstallOrRevoke(ctx context.Context, tenantID string) error {
	if s.onUninstallOrRevokeFn == nil {
		return nil
	}
	return s.onUninstallOrRevokeFn(ctx, tenantID)
}

func (s stubSessionService) ConfigureCredentials(ctx context.Context, req core.ConfigureCredentialsRequest) (core.CommerceCredentials, error) {
	if s.configureCredentialsFn == nil {
		return core.CommerceCredentials{}, nil
	}
	return s.configureCredentialsFn(ctx, req)
}

func (s stubSessionService) RefreshTenant(ctx context.Context, tenantID string, opts core.RefreshOptions) (core.RefreshOutcome, error) {
	if s.refreshTenantFn == nil {
		return core.RefreshOutcome{}, nil
	}
	return s.refreshTenantFn(ctx, tenantID, opts)
}

func TestInstallCommand_ExecuteDelegatesAndStoresRedactedResult(t *testing.T) {
	svc := stubSessionService{
		onInstallFn: func(_ context.Context, installation core.Installation) (core.Installation, error) {
			if installation.TeamID != "T1" {
				t.Fatalf("unexpected installation %#v", installation)
			}
			installation.TenantID = "T1"
			return installation, nil
		},
	}

	collector := gocmd.NewResult[core.Installation]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewInstallCommand(svc).Execute(ctx, InstallMessage{Installation: core.Installation{TeamID: "T1", BotToken: "xoxb-1"}})
	if err != nil {
		t.Fatalf("execute install: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected installation result to be stored")
	}
	if result.TenantID != "T1" || result.BotToken != core.RedactedValue {
		t.Fatalf("unexpected stored installation %#v", result)
	}
}

func TestInstallCommand_PropagatesDuplicate(t *testing.T) {
	svc := stubSessionService{
		onInstallFn: func(context.Context, core.Installation) (core.Installation, error) {
			return core.Installation{}, core.NewDuplicateInstallationError("T1", nil)
		},
	}
	err := NewInstallCommand(svc).Execute(context.Background(), InstallMessage{Installation: core.Installation{TeamID: "T1", BotToken: "xoxb-1"}})
	if !core.IsDuplicateInstallation(err) {
		t.Fatalf("expected duplicate installation, got %v", err)
	}
}

func TestUninstallOrRevokeCommand_TrimsTenant(t *testing.T) {
	var got string
	svc := stubSessionService{
		onUninstallOrRevokeFn: func(_ context.Context, tenantID string) error {
			got = tenantID
			return nil
		},
	}
	if err := NewUninstallOrRevokeCommand(svc).Execute(context.Background(), UninstallOrRevokeMessage{TenantID: " T1 ", Reason: "tokens_revoked"}); err != nil {
		t.Fatalf("execute uninstall: %v", err)
	}
	if got != "T1" {
		t.Fatalf("expected trimmed tenant id, got %q", got)
	}
}

func TestConfigureCredentialsCommand_StoresResult(t *testing.T) {
	svc := stubSessionService{
		configureCredentialsFn: func(_ context.Context, req core.ConfigureCredentialsRequest) (core.CommerceCredentials, error) {
			if req.ClientID != "client-1" {
				t.Fatalf("unexpected request %#v", req)
			}
			return core.CommerceCredentials{TenantID: req.TenantID, ClientSecret: core.RedactedValue}, nil
		},
	}
	collector := gocmd.NewResult[core.CommerceCredentials]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewConfigureCredentialsCommand(svc).Execute(ctx, ConfigureCredentialsMessage{Request: core.ConfigureCredentialsRequest{
		TenantID: "T1",
		Endpoint: "https://acme.commercelayer.io",
		ClientID: "client-1",
	}})
	if err != nil {
		t.Fatalf("execute configure: %v", err)
	}
	result, ok := collector.Load()
	if !ok || result.TenantID != "T1" {
		t.Fatalf("expected stored credentials, got %#v", result)
	}
}

func TestRefreshTenantCommand_ForwardsForceFlag(t *testing.T) {
	expires := time.Now().UTC().Add(time.Hour)
	svc := stubSessionService{
		refreshTenantFn: func(_ context.Context, tenantID string, opts core.RefreshOptions) (core.RefreshOutcome, error) {
			if tenantID != "T1" || !opts.Force {
				t.Fatalf("unexpected refresh call %q %#v", tenantID, opts)
			}
			return core.RefreshOutcome{TenantID: tenantID, Refreshed: true, ExpiresAt: &expires}, nil
		},
	}
	collector := gocmd.NewResult[core.RefreshOutcome]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := NewRefreshTenantCommand(svc).Execute(ctx, RefreshTenantMessage{TenantID: "T1", Force: true}); err != nil {
		t.Fatalf("execute refresh: %v", err)
	}
	result, ok := collector.Load()
	if !ok || !result.Refreshed {
		t.Fatalf("expected refresh outcome, got %#v", result)
	}
}

func TestRefreshTenantCommand_PropagatesServiceError(t *testing.T) {
	svc := stubSessionService{
		refreshTenantFn: func(context.Context, string, core.RefreshOptions) (core.RefreshOutcome, error) {
			return core.RefreshOutcome{}, core.NewTransientError("", "down", errors.New("boom"))
		},
	}
	err := NewRefreshTenantCommand(svc).Execute(context.Background(), RefreshTenantMessage{TenantID: "T1"})
	if !core.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestMessages_Validate(t *testing.T) {
	cases := []struct {
		name  string
		msg   interface{ Validate() error }
		valid bool
	}{
		{"install ok", InstallMessage{Installation: core.Installation{TeamID: "T1", BotToken: "x"}}, true},
		{"install missing team", InstallMessage{Installation: core.Installation{BotToken: "x"}}, false},
		{"install missing token", InstallMessage{Installation: core.Installation{TeamID: "T1"}}, false},
		{"uninstall ok", UninstallOrRevokeMessage{TenantID: "T1"}, true},
		{"uninstall missing tenant", UninstallOrRevokeMessage{TenantID: " "}, false},
		{"configure ok", ConfigureCredentialsMessage{Request: core.ConfigureCredentialsRequest{TenantID: "T1", OrganizationSlug: "acme", ClientID: "c"}}, true},
		{"configure missing endpoint", ConfigureCredentialsMessage{Request: core.ConfigureCredentialsRequest{TenantID: "T1", ClientID: "c"}}, false},
		{"configure missing client", ConfigureCredentialsMessage{Request: core.ConfigureCredentialsRequest{TenantID: "T1", Endpoint: "https://acme.commercelayer.io"}}, false},
		{"refresh ok", RefreshTenantMessage{TenantID: "T1"}, true},
		{"refresh missing tenant", RefreshTenantMessage{}, false},
	}
	for _, tc := range cases {
		err := tc.msg.Validate()
		if tc.valid && err != nil {
			t.Fatalf("%s: expected valid, got %v", tc.name, err)
		}
		if !tc.valid && err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
