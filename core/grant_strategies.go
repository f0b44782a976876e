package core

import (
	"context"
	"strings"
	"time"
)

// issuedToken is the token a strategy hands back together with the record it
// was issued for.
type issuedToken struct {
	credentials CommerceCredentials
	accessToken string
	expiresAt   *time.Time
	strategy    GrantStrategyKind
	refreshed   bool
}

func issuedFromStored(credentials CommerceCredentials, refreshed bool) issuedToken {
	return issuedToken{
		credentials: credentials,
		accessToken: credentials.AccessToken,
		expiresAt:   cloneTime(credentials.ExpiresAt),
		strategy:    GrantStrategyStateful,
		refreshed:   refreshed,
	}
}

type credentialStrategy interface {
	Kind() GrantStrategyKind
	Issue(ctx context.Context, tenantID string, credentials CommerceCredentials) (issuedToken, error)
}

func (s *Service) strategyFor(credentials CommerceCredentials) credentialStrategy {
	if credentials.Strategy() == GrantStrategyStateful {
		return statefulStrategy{service: s}
	}
	return statelessStrategy{service: s}
}

// statefulStrategy serves the stored token and refreshes it under the
// tenant's refresh lease once it has expired.
type statefulStrategy struct {
	service *Service
}

func (statefulStrategy) Kind() GrantStrategyKind {
	return GrantStrategyStateful
}

func (st statefulStrategy) Issue(ctx context.Context, tenantID string, credentials CommerceCredentials) (issuedToken, error) {
	s := st.service
	if credentials.RequiresReauthorization() {
		return issuedToken{}, NewReauthRequiredError(tenantID, credentials.StatusReason)
	}
	state := ResolveCredentialTokenState(s.clock(), credentials, s.config.Resolver.RefreshLeadWindow)
	if !state.IsExpired {
		if state.IsExpiringSoon {
			s.scheduleRefresh(ctx, tenantID, state.ExpiresAt)
		}
		return issuedFromStored(credentials, false), nil
	}
	if !state.CanAutoRefresh {
		return issuedToken{}, NewAuthError(tenantID, "core: access token expired and no refresh token is stored", nil)
	}
	return s.refreshSerialized(ctx, tenantID, false)
}

// statelessStrategy requests a client-credentials token on every call and
// never writes to the store.
type statelessStrategy struct {
	service *Service
}

func (statelessStrategy) Kind() GrantStrategyKind {
	return GrantStrategyStateless
}

func (st statelessStrategy) Issue(ctx context.Context, tenantID string, credentials CommerceCredentials) (issuedToken, error) {
	s := st.service
	token, err := s.exchange(ctx, tenantID, GrantTypeClientCredentials, ExchangeParams{
		OrganizationSlug: credentials.Slug(),
		ClientID:         credentials.ClientID,
		ClientSecret:     credentials.ClientSecret,
	})
	if err != nil {
		if IsAuth(err) {
			return issuedToken{}, NewAuthError(tenantID, "core: client credentials rejected", err)
		}
		return issuedToken{}, err
	}
	return issuedToken{
		credentials: credentials,
		accessToken: token.AccessToken,
		expiresAt:   cloneTime(token.ExpiresAt),
		strategy:    GrantStrategyStateless,
	}, nil
}

func checkoutScope(market string) string {
	market = strings.TrimSpace(market)
	if strings.HasPrefix(market, "market:") {
		return market
	}
	return "market:" + market
}
