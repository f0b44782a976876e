package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type ConfigureCredentialsRequest struct {
	TenantID             string
	Endpoint             string
	OrganizationSlug     string
	Mode                 OrganizationMode
	ClientID             string
	ClientSecret         string
	SalesChannelClientID string
	// AuthorizationCode selects the stateful grant; without it the tenant is
	// configured for client-credentials issuance.
	AuthorizationCode string
	RedirectURI       string
}

// OnInstall records a new installation. An existing record for the tenant is
// never overwritten.
func (s *Service) OnInstall(ctx context.Context, installation Installation) (out Installation, err error) {
	if s == nil {
		return Installation{}, fmt.Errorf("core: service is nil")
	}
	startedAt := time.Now()
	installation = installation.Normalized()
	defer func() {
		s.observeOperation(ctx, startedAt, "install", err, map[string]any{
			"tenant_id":  installation.TenantID,
			"enterprise": installation.IsEnterpriseInstall,
		})
	}()

	if s.installationStore == nil {
		return Installation{}, s.mapError(s.missingDependency("installation store"))
	}
	if err := installation.Validate(); err != nil {
		return Installation{}, s.mapError(NewBadInputError(err.Error()))
	}
	if installation.InstalledAt.IsZero() {
		installation.InstalledAt = s.clock()
	}

	created, err := s.installationStore.Create(ctx, installation)
	if err != nil {
		if errors.Is(err, ErrDuplicateRecord) || IsDuplicateInstallation(err) {
			return Installation{}, s.mapError(NewDuplicateInstallationError(installation.TenantID, err))
		}
		return Installation{}, s.mapError(NewTransientError(installation.TenantID, "core: installation store unavailable", err))
	}
	return created, nil
}

func (s *Service) Lookup(ctx context.Context, tenantID string) (out Installation, err error) {
	if s == nil {
		return Installation{}, fmt.Errorf("core: service is nil")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return Installation{}, s.mapError(NewBadInputError("core: tenant id is required"))
	}
	if s.installationStore == nil {
		return Installation{}, s.mapError(s.missingDependency("installation store"))
	}
	installation, err := s.installationStore.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) || IsNotFound(err) {
			return Installation{}, s.mapError(NewInstallationNotFoundError(tenantID))
		}
		return Installation{}, s.mapError(NewTransientError(tenantID, "core: installation store unavailable", err))
	}
	return installation, nil
}

// OnUninstallOrRevoke removes the installation and, by policy, the stored
// credentials. Removing an absent tenant succeeds.
func (s *Service) OnUninstallOrRevoke(ctx context.Context, tenantID string) (err error) {
	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	startedAt := time.Now()
	tenantID = strings.TrimSpace(tenantID)
	purge := s.config.Lifecycle.PurgeCredentialsOnUninstall
	defer func() {
		s.observeOperation(ctx, startedAt, "uninstall", err, map[string]any{
			"tenant_id":          tenantID,
			"purge_on_uninstall": purge,
		})
	}()

	if tenantID == "" {
		return s.mapError(NewBadInputError("core: tenant id is required"))
	}
	if s.installationStore == nil {
		return s.mapError(s.missingDependency("installation store"))
	}
	if err := s.installationStore.Delete(ctx, tenantID); err != nil && !errors.Is(err, ErrRecordNotFound) {
		return s.mapError(NewTransientError(tenantID, "core: installation store unavailable", err))
	}
	if !purge || s.credentialStore == nil {
		return nil
	}

	// hold the refresh lease so an in-flight refresh cannot write the
	// credentials back after they are gone
	lease, leaseErr := s.acquireRefreshLease(ctx, tenantID)
	if leaseErr != nil {
		s.logWarn(ctx, "purging credentials without refresh lease", map[string]any{
			"tenant_id": tenantID,
			"error":     leaseErr.Error(),
		})
		lease = refreshLease{LockHandle: noopLockHandle{}}
	}
	defer func() {
		_ = lease.Unlock(context.WithoutCancel(ctx))
	}()
	if err := s.credentialStore.Delete(ctx, tenantID); err != nil && !errors.Is(err, ErrRecordNotFound) {
		return s.mapError(NewTransientError(tenantID, "core: credential store unavailable", err))
	}
	return nil
}

// ConfigureCredentials stores the tenant's commerce configuration after
// proving it against the authorization server.
func (s *Service) ConfigureCredentials(ctx context.Context, req ConfigureCredentialsRequest) (out CommerceCredentials, err error) {
	if s == nil {
		return CommerceCredentials{}, fmt.Errorf("core: service is nil")
	}
	startedAt := time.Now()
	tenantID := strings.TrimSpace(req.TenantID)
	credentials := CommerceCredentials{
		TenantID:             tenantID,
		Endpoint:             req.Endpoint,
		OrganizationSlug:     req.OrganizationSlug,
		Mode:                 req.Mode,
		ClientID:             req.ClientID,
		ClientSecret:         req.ClientSecret,
		SalesChannelClientID: req.SalesChannelClientID,
	}.Normalized()
	defer func() {
		s.observeOperation(ctx, startedAt, "configure_credentials", err, map[string]any{
			"tenant_id":         tenantID,
			"organization_slug": credentials.OrganizationSlug,
			"strategy":          string(credentials.Strategy()),
		})
	}()

	if tenantID == "" {
		return CommerceCredentials{}, s.mapError(NewBadInputError("core: tenant id is required"))
	}
	if s.credentialStore == nil {
		return CommerceCredentials{}, s.mapError(s.missingDependency("credential store"))
	}
	if _, err := s.Lookup(ctx, tenantID); err != nil {
		return CommerceCredentials{}, err
	}
	if err := credentials.Validate(); err != nil {
		return CommerceCredentials{}, s.mapError(NewBadInputError(err.Error()))
	}

	params := ExchangeParams{
		OrganizationSlug: credentials.Slug(),
		ClientID:         credentials.ClientID,
		ClientSecret:     credentials.ClientSecret,
	}
	grantType := GrantTypeClientCredentials
	if code := strings.TrimSpace(req.AuthorizationCode); code != "" {
		grantType = GrantTypeAuthorizationCode
		params.Code = code
		params.RedirectURI = strings.TrimSpace(req.RedirectURI)
	}
	token, err := s.exchange(ctx, tenantID, grantType, params)
	if err != nil {
		if IsAuth(err) {
			return CommerceCredentials{}, s.mapError(NewAuthError(tenantID, "core: commerce credentials rejected", err))
		}
		return CommerceCredentials{}, s.mapError(err)
	}
	if grantType == GrantTypeAuthorizationCode {
		credentials.AccessToken = token.AccessToken
		credentials.RefreshToken = strings.TrimSpace(token.RefreshToken)
		credentials.ExpiresAt = cloneTime(token.ExpiresAt)
		credentials.Scope = strings.TrimSpace(token.Scope)
	}
	credentials.Status = CredentialStatusActive
	credentials.StatusReason = ""
	credentials.UpdatedAt = s.clock()

	lease, err := s.acquireRefreshLease(ctx, tenantID)
	if err != nil {
		return CommerceCredentials{}, s.mapError(err)
	}
	defer func() {
		_ = lease.Unlock(context.WithoutCancel(ctx))
	}()
	if err := s.credentialStore.Put(ctx, tenantID, credentials); err != nil {
		return CommerceCredentials{}, s.mapError(NewTransientError(tenantID, "core: credential store unavailable", err))
	}
	return RedactCredentials(credentials), nil
}

// TenantStatus derives the Installed and Configured flags for a tenant.
func (s *Service) TenantStatus(ctx context.Context, tenantID string) (TenantState, error) {
	if s == nil {
		return TenantState{}, fmt.Errorf("core: service is nil")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return TenantState{}, s.mapError(NewBadInputError("core: tenant id is required"))
	}
	state := TenantState{TenantID: tenantID}

	installation, err := s.Lookup(ctx, tenantID)
	switch {
	case err == nil:
		state.Installed = true
		installedAt := installation.InstalledAt
		state.InstalledAt = &installedAt
	case !IsNotFound(err):
		return TenantState{}, err
	}

	if s.credentialStore == nil {
		return state, nil
	}
	credentials, err := s.credentialStore.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) || IsNotFound(err) {
			return state, nil
		}
		return TenantState{}, s.mapError(NewTransientError(tenantID, "core: credential store unavailable", err))
	}
	credentials = credentials.Normalized()
	state.Configured = true
	state.Strategy = credentials.Strategy()
	state.CredentialStatus = credentials.Status
	state.StatusReason = credentials.StatusReason
	state.ExpiresAt = cloneTime(credentials.ExpiresAt)
	return state, nil
}
