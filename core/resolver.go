package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const JobIDRefreshCredentials = "sessions.credentials.refresh"

const maxStatusReasonLength = 512

type ResolveRequest struct {
	TenantID string
	// CheckoutMarket requests an extra market scoped token for checkout links.
	CheckoutMarket string
}

type RefreshOptions struct {
	Force bool
}

type RefreshOutcome struct {
	TenantID  string
	Strategy  GrantStrategyKind
	Refreshed bool
	ExpiresAt *time.Time
}

// Resolve returns a session whose access token is valid at the time of return.
func (s *Service) Resolve(ctx context.Context, tenantID string) (Session, error) {
	return s.ResolveSession(ctx, ResolveRequest{TenantID: tenantID})
}

func (s *Service) ResolveSession(ctx context.Context, req ResolveRequest) (session Session, err error) {
	if s == nil {
		return Session{}, fmt.Errorf("core: service is nil")
	}
	startedAt := time.Now()
	tenantID := strings.TrimSpace(req.TenantID)
	market := strings.TrimSpace(req.CheckoutMarket)
	fields := map[string]any{"tenant_id": tenantID}
	defer func() {
		fields["strategy"] = string(session.Strategy)
		fields["renewed"] = session.Refreshed
		if market != "" {
			fields["checkout_market"] = market
			fields["checkout_attached"] = session.HasCheckoutToken()
		}
		s.observeOperation(ctx, startedAt, "resolve_session", err, fields)
	}()

	if tenantID == "" {
		return Session{}, s.mapError(NewBadInputError("core: tenant id is required"))
	}
	credentials, err := s.loadCredentials(ctx, tenantID)
	if err != nil {
		return Session{}, s.mapError(err)
	}

	strategy := s.strategyFor(credentials)
	issued, err := strategy.Issue(ctx, tenantID, credentials)
	if err != nil {
		return Session{}, s.mapError(err)
	}
	resolved := s.buildSession(tenantID, issued)
	if resolved.Expired(s.clock()) {
		return Session{}, s.mapError(NewTransientError(tenantID, "core: issued access token is already expired", nil))
	}
	if market != "" {
		s.attachCheckoutToken(ctx, &resolved, issued.credentials, market)
	}
	return resolved, nil
}

// RefreshTenant refreshes a stateful tenant whose token is expired or inside
// the refresh lead window. Stateless tenants have nothing to refresh.
func (s *Service) RefreshTenant(ctx context.Context, tenantID string, opts RefreshOptions) (outcome RefreshOutcome, err error) {
	if s == nil {
		return RefreshOutcome{}, fmt.Errorf("core: service is nil")
	}
	startedAt := time.Now()
	tenantID = strings.TrimSpace(tenantID)
	outcome.TenantID = tenantID
	defer func() {
		s.observeOperation(ctx, startedAt, "refresh_tenant", err, map[string]any{
			"tenant_id": tenantID,
			"strategy":  string(outcome.Strategy),
			"renewed":   outcome.Refreshed,
			"forced":    opts.Force,
		})
	}()

	if tenantID == "" {
		return outcome, s.mapError(NewBadInputError("core: tenant id is required"))
	}
	credentials, err := s.loadCredentials(ctx, tenantID)
	if err != nil {
		return outcome, s.mapError(err)
	}
	outcome.Strategy = credentials.Strategy()
	if outcome.Strategy != GrantStrategyStateful {
		return outcome, nil
	}
	if credentials.RequiresReauthorization() {
		return outcome, s.mapError(NewReauthRequiredError(tenantID, credentials.StatusReason))
	}
	state := ResolveCredentialTokenState(s.clock(), credentials, s.config.Resolver.RefreshLeadWindow)
	outcome.ExpiresAt = state.ExpiresAt
	if !ShouldRefreshCredential(state, opts.Force) {
		return outcome, nil
	}

	issued, err := s.refreshSerialized(ctx, tenantID, opts.Force)
	if err != nil {
		return outcome, s.mapError(err)
	}
	outcome.Refreshed = issued.refreshed
	outcome.ExpiresAt = cloneTime(issued.expiresAt)
	return outcome, nil
}

func (s *Service) loadCredentials(ctx context.Context, tenantID string) (CommerceCredentials, error) {
	if s.credentialStore == nil {
		return CommerceCredentials{}, s.missingDependency("credential store")
	}
	stored, err := s.credentialStore.Get(ctx, tenantID)
	if err == nil {
		stored = stored.Normalized()
		stored.TenantID = tenantID
		return stored, nil
	}
	if !errors.Is(err, ErrRecordNotFound) && !IsNotFound(err) {
		return CommerceCredentials{}, NewTransientError(tenantID, "core: credential store unavailable", err)
	}
	if s.fallbackCredentials != nil {
		fallback := s.fallbackCredentials.Normalized()
		fallback.TenantID = tenantID
		return fallback, nil
	}
	return CommerceCredentials{}, NewCredentialsNotFoundError(tenantID)
}

// refreshSerialized runs at most one refresh per tenant in this process and
// lets concurrent callers share its result. Each caller still honors its own
// context while waiting.
func (s *Service) refreshSerialized(ctx context.Context, tenantID string, force bool) (issuedToken, error) {
	key := tenantID
	if force {
		key = tenantID + "|force"
	}
	flight := s.refreshFlights.DoChan(key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(
			context.WithoutCancel(ctx),
			s.config.Resolver.LockWaitTimeout+s.config.Resolver.LockTTL,
		)
		defer cancel()
		return s.runRefresh(flightCtx, tenantID, force)
	})

	select {
	case <-ctx.Done():
		return issuedToken{}, NewTransientError(tenantID, "core: resolution cancelled while waiting for refresh", ctx.Err())
	case result := <-flight:
		if result.Err != nil {
			return issuedToken{}, result.Err
		}
		issued, ok := result.Val.(issuedToken)
		if !ok {
			return issuedToken{}, fmt.Errorf("core: unexpected refresh result %T", result.Val)
		}
		issued.expiresAt = cloneTime(issued.expiresAt)
		return issued, nil
	}
}

func (s *Service) runRefresh(ctx context.Context, tenantID string, force bool) (issuedToken, error) {
	lease, err := s.acquireRefreshLease(ctx, tenantID)
	if err != nil {
		return issuedToken{}, err
	}
	defer func() {
		if unlockErr := lease.Unlock(context.WithoutCancel(ctx)); unlockErr != nil {
			s.logWarn(ctx, "refresh lease release failed", map[string]any{
				"tenant_id": tenantID,
				"error":     unlockErr.Error(),
			})
		}
	}()

	// another holder may have refreshed while we waited for the lease
	current, err := s.loadCredentials(ctx, tenantID)
	if err != nil {
		return issuedToken{}, err
	}
	if current.Strategy() != GrantStrategyStateful {
		return statelessStrategy{service: s}.Issue(ctx, tenantID, current)
	}
	if current.RequiresReauthorization() {
		return issuedToken{}, NewReauthRequiredError(tenantID, current.StatusReason)
	}
	state := ResolveCredentialTokenState(s.clock(), current, s.config.Resolver.RefreshLeadWindow)
	if !ShouldRefreshCredential(state, force) {
		if state.IsExpired {
			return issuedToken{}, NewAuthError(tenantID, "core: access token expired and no refresh token is stored", nil)
		}
		return issuedFromStored(current, false), nil
	}

	// the exchange must end while the lease is still ours, otherwise another
	// holder could spend the same refresh token
	workDeadline := lease.WorkDeadline(s.config.Resolver.LockTTL)
	if !time.Now().Before(workDeadline) {
		return issuedToken{}, NewTransientError(tenantID, "core: refresh lease expired before exchange", nil)
	}
	exchangeCtx, cancelExchange := context.WithDeadline(ctx, workDeadline)
	token, err := s.exchange(exchangeCtx, tenantID, GrantTypeRefreshToken, ExchangeParams{
		OrganizationSlug: current.Slug(),
		ClientID:         current.ClientID,
		ClientSecret:     current.ClientSecret,
		RefreshToken:     current.RefreshToken,
	})
	cancelExchange()
	if err != nil {
		if IsAuth(err) {
			s.markPendingReauth(ctx, tenantID, current, err)
			return issuedToken{}, NewAuthError(tenantID, "core: refresh token rejected", err)
		}
		return issuedToken{}, err
	}

	next := current
	next.AccessToken = token.AccessToken
	if refreshToken := strings.TrimSpace(token.RefreshToken); refreshToken != "" {
		next.RefreshToken = refreshToken
	}
	next.ExpiresAt = cloneTime(token.ExpiresAt)
	if scope := strings.TrimSpace(token.Scope); scope != "" {
		next.Scope = scope
	}
	next.Status = CredentialStatusActive
	next.StatusReason = ""
	next.UpdatedAt = s.clock()

	// the old refresh token is spent now; never retry the exchange with it
	if err := s.credentialStore.Put(ctx, tenantID, next); err != nil {
		s.logError(ctx, "refreshed credentials could not be persisted", map[string]any{
			"tenant_id": tenantID,
			"error":     err.Error(),
		})
		return issuedToken{}, NewTransientError(tenantID, "core: persisting refreshed credentials failed", err)
	}
	return issuedFromStored(next, true), nil
}

func (s *Service) markPendingReauth(ctx context.Context, tenantID string, current CommerceCredentials, cause error) {
	reason := strings.TrimSpace(fmt.Sprint(cause))
	if reason == "" {
		reason = "refresh rejected"
	}
	if len(reason) > maxStatusReasonLength {
		reason = reason[:maxStatusReasonLength]
	}
	marked := current
	marked.Status = CredentialStatusPendingReauth
	marked.StatusReason = reason
	marked.UpdatedAt = s.clock()
	if err := s.credentialStore.Put(ctx, tenantID, marked); err != nil {
		s.logError(ctx, "marking credentials for re-authorization failed", map[string]any{
			"tenant_id": tenantID,
			"error":     err.Error(),
		})
		return
	}
	s.recordCounter(ctx, "sessions.credentials.pending_reauth", 1, map[string]string{
		"strategy": string(GrantStrategyStateful),
	})
}

func (s *Service) exchange(ctx context.Context, tenantID string, grantType GrantType, params ExchangeParams) (TokenResult, error) {
	if s.authorizationClient == nil {
		return TokenResult{}, s.missingDependency("authorization client")
	}
	exchangeCtx, cancel := context.WithTimeout(ctx, s.config.Resolver.ExchangeTimeout)
	defer cancel()

	startedAt := time.Now()
	token, err := s.authorizationClient.Exchange(exchangeCtx, grantType, params)
	status := "success"
	if err != nil {
		status = "failure"
	}
	tags := map[string]string{"grant_type": string(grantType), "status": status}
	s.recordCounter(ctx, "sessions.exchange.total", 1, tags)
	s.recordHistogram(ctx, "sessions.exchange.duration_ms", float64(time.Since(startedAt).Milliseconds()), tags)

	if err != nil {
		if IsAuth(err) || IsTransient(err) {
			return TokenResult{}, err
		}
		return TokenResult{}, NewTransientError(tenantID, "core: authorization exchange failed", err)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return TokenResult{}, NewTransientError(tenantID, "core: authorization server returned no access token", nil)
	}
	return token, nil
}

func (s *Service) buildSession(tenantID string, issued issuedToken) Session {
	credentials := issued.credentials
	slug := credentials.Slug()
	return Session{
		TenantID:         tenantID,
		AccessToken:      issued.accessToken,
		BaseEndpoint:     credentials.BaseEndpoint(),
		OrganizationSlug: slug,
		OrganizationMode: credentials.Mode,
		ExpiresAt:        cloneTime(issued.expiresAt),
		Strategy:         issued.strategy,
		Refreshed:        issued.refreshed,
		ResolvedAt:       s.clock(),
		AdminBaseURL:     ExpandSlugTemplate(s.config.Commerce.AdminURLTemplate, slug),
		CheckoutBaseURL:  ExpandSlugTemplate(s.config.Commerce.CheckoutURLTemplate, slug),
	}
}

// attachCheckoutToken never fails the session; callers fall back to the
// admin link when the checkout token is missing.
func (s *Service) attachCheckoutToken(ctx context.Context, session *Session, credentials CommerceCredentials, market string) {
	params := ExchangeParams{
		OrganizationSlug: credentials.Slug(),
		ClientID:         credentials.SalesChannelClientID,
		Scope:            checkoutScope(market),
	}
	if params.ClientID == "" {
		params.ClientID = credentials.ClientID
		params.ClientSecret = credentials.ClientSecret
	}
	token, err := s.exchange(ctx, session.TenantID, GrantTypeClientCredentials, params)
	if err != nil {
		s.recordCounter(ctx, "sessions.checkout_token.failures", 1, map[string]string{
			"strategy": string(session.Strategy),
		})
		s.logWarn(ctx, "checkout token unavailable, falling back to admin links", map[string]any{
			"tenant_id":       session.TenantID,
			"checkout_market": market,
			"error":           err.Error(),
		})
		return
	}
	session.CheckoutAccessToken = token.AccessToken
	session.CheckoutMarket = market
}

func (s *Service) scheduleRefresh(ctx context.Context, tenantID string, expiresAt *time.Time) {
	if s.jobEnqueuer == nil {
		return
	}
	idempotencyKey := tenantID
	if expiresAt != nil {
		idempotencyKey = fmt.Sprintf("%s:%d", tenantID, expiresAt.Unix())
	}
	err := s.jobEnqueuer.Enqueue(ctx, &JobExecutionMessage{
		JobID:          JobIDRefreshCredentials,
		Parameters:     map[string]any{"tenant_id": tenantID},
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		s.logWarn(ctx, "scheduling credential refresh failed", map[string]any{
			"tenant_id": tenantID,
			"error":     err.Error(),
		})
	}
}
