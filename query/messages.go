package query

import (
	"strings"
)

const (
	TypeResolveSession     = "sessions.query.session.resolve"
	TypeLookupInstallation = "sessions.query.installation.lookup"
	TypeTenantStatus       = "sessions.query.tenant.status"
)

type ResolveSessionMessage struct {
	TenantID       string
	CheckoutMarket string
}

func (ResolveSessionMessage) Type() string { return TypeResolveSession }

func (m ResolveSessionMessage) Validate() error {
	if err := validateTenantID(m.TenantID); err != nil {
		return err
	}
	if market := strings.TrimSpace(m.CheckoutMarket); market != "" && strings.ContainsAny(market, " :") {
		return queryValidationError("checkout_market", "checkout market must be a bare market id")
	}
	return nil
}

type LookupInstallationMessage struct {
	TenantID string
}

func (LookupInstallationMessage) Type() string { return TypeLookupInstallation }

func (m LookupInstallationMessage) Validate() error {
	return validateTenantID(m.TenantID)
}

type TenantStatusMessage struct {
	TenantID string
}

func (TenantStatusMessage) Type() string { return TypeTenantStatus }

func (m TenantStatusMessage) Validate() error {
	return validateTenantID(m.TenantID)
}

func validateTenantID(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return queryValidationError("tenant_id", "tenant id is required")
	}
	return nil
}
