package core

import (
	"strings"
	"time"
)

// CredentialTokenState captures the token lifecycle flags of a stored record.
type CredentialTokenState struct {
	ExpiresAt       *time.Time
	HasAccessToken  bool
	HasRefreshToken bool
	CanAutoRefresh  bool
	IsExpired       bool
	IsExpiringSoon  bool
}

// ResolveCredentialTokenState evaluates expiry flags for a record. A record
// inside leadWindow of its expiry is expiring soon.
func ResolveCredentialTokenState(now time.Time, credentials CommerceCredentials, leadWindow time.Duration) CredentialTokenState {
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}

	state := CredentialTokenState{
		HasAccessToken:  strings.TrimSpace(credentials.AccessToken) != "",
		HasRefreshToken: strings.TrimSpace(credentials.RefreshToken) != "",
	}
	state.CanAutoRefresh = state.HasRefreshToken && !credentials.RequiresReauthorization()
	if credentials.ExpiresAt == nil {
		// without an expiry only a refreshable token is renewed eagerly
		state.IsExpired = !state.HasAccessToken || state.HasRefreshToken
		return state
	}
	expiresAt := credentials.ExpiresAt.UTC()
	state.ExpiresAt = &expiresAt
	if !state.HasAccessToken || !expiresAt.After(now) {
		state.IsExpired = true
		return state
	}
	if leadWindow > 0 {
		state.IsExpiringSoon = !expiresAt.After(now.Add(leadWindow))
	}
	return state
}

// ShouldRefreshCredential reports whether a refresh exchange is due. force
// refreshes any refreshable record regardless of its expiry.
func ShouldRefreshCredential(state CredentialTokenState, force bool) bool {
	if !state.CanAutoRefresh {
		return false
	}
	return force || state.IsExpired || state.IsExpiringSoon
}
