package core

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

type OrganizationMode string

const (
	OrganizationModeTest OrganizationMode = "test"
	OrganizationModeLive OrganizationMode = "live"
)

type CredentialStatus string

const (
	CredentialStatusActive        CredentialStatus = "active"
	CredentialStatusPendingReauth CredentialStatus = "pending_reauth"
)

type GrantStrategyKind string

const (
	GrantStrategyStateful  GrantStrategyKind = "stateful"
	GrantStrategyStateless GrantStrategyKind = "stateless"
)

type GrantType string

const (
	GrantTypeAuthorizationCode GrantType = "authorization_code"
	GrantTypeRefreshToken      GrantType = "refresh_token"
	GrantTypeClientCredentials GrantType = "client_credentials"
)

func (g GrantType) Valid() bool {
	switch g {
	case GrantTypeAuthorizationCode, GrantTypeRefreshToken, GrantTypeClientCredentials:
		return true
	default:
		return false
	}
}

// Installation is the platform grant recorded when a workspace installs the bot.
type Installation struct {
	TenantID            string
	TeamID              string
	EnterpriseID        string
	IsEnterpriseInstall bool
	BotToken            string
	BotID               string
	BotUserID           string
	InstallerUserID     string
	Scopes              []string
	Metadata            map[string]any
	InstalledAt         time.Time
}

// TenantIDFor returns the durable tenant key for an installation. Org-wide
// installs are keyed by the enterprise, everything else by the team.
func TenantIDFor(teamID string, enterpriseID string, isEnterpriseInstall bool) string {
	if isEnterpriseInstall && strings.TrimSpace(enterpriseID) != "" {
		return strings.TrimSpace(enterpriseID)
	}
	return strings.TrimSpace(teamID)
}

func (i Installation) Normalized() Installation {
	out := i
	out.TeamID = strings.TrimSpace(i.TeamID)
	out.EnterpriseID = strings.TrimSpace(i.EnterpriseID)
	out.TenantID = strings.TrimSpace(i.TenantID)
	if out.TenantID == "" {
		out.TenantID = TenantIDFor(out.TeamID, out.EnterpriseID, out.IsEnterpriseInstall)
	}
	out.BotID = strings.TrimSpace(i.BotID)
	out.BotUserID = strings.TrimSpace(i.BotUserID)
	out.InstallerUserID = strings.TrimSpace(i.InstallerUserID)
	out.Scopes = normalizeScopes(i.Scopes)
	out.Metadata = cloneFields(i.Metadata)
	if !out.InstalledAt.IsZero() {
		out.InstalledAt = out.InstalledAt.UTC()
	}
	return out
}

func (i Installation) Validate() error {
	if strings.TrimSpace(i.TenantID) == "" {
		return fmt.Errorf("core: installation tenant id is required")
	}
	if i.IsEnterpriseInstall && strings.TrimSpace(i.EnterpriseID) == "" {
		return fmt.Errorf("core: enterprise installation requires an enterprise id")
	}
	if !i.IsEnterpriseInstall && strings.TrimSpace(i.TeamID) == "" {
		return fmt.Errorf("core: workspace installation requires a team id")
	}
	if strings.TrimSpace(i.BotToken) == "" {
		return fmt.Errorf("core: installation bot token is required")
	}
	return nil
}

// CommerceCredentials is the tenant supplied commerce API configuration plus,
// for stateful grants, the persisted token triple.
type CommerceCredentials struct {
	TenantID             string
	Endpoint             string
	OrganizationSlug     string
	Mode                 OrganizationMode
	ClientID             string
	ClientSecret         string
	SalesChannelClientID string
	AccessToken          string
	RefreshToken         string
	ExpiresAt            *time.Time
	Scope                string
	Status               CredentialStatus
	StatusReason         string
	UpdatedAt            time.Time
}

// Slug returns the organization slug, deriving it from the endpoint host
// (https://{slug}.commercelayer.io) when it was not stored explicitly.
func (c CommerceCredentials) Slug() string {
	if slug := strings.TrimSpace(c.OrganizationSlug); slug != "" {
		return slug
	}
	return SlugFromEndpoint(c.Endpoint)
}

func SlugFromEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ""
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	host := parsed.Hostname()
	if idx := strings.Index(host, "."); idx > 0 {
		return host[:idx]
	}
	return ""
}

// Strategy selects the grant strategy from the fields present on the record.
func (c CommerceCredentials) Strategy() GrantStrategyKind {
	if strings.TrimSpace(c.RefreshToken) != "" || strings.TrimSpace(c.AccessToken) != "" {
		return GrantStrategyStateful
	}
	return GrantStrategyStateless
}

func (c CommerceCredentials) RequiresReauthorization() bool {
	return c.Status == CredentialStatusPendingReauth
}

func (c CommerceCredentials) Normalized() CommerceCredentials {
	out := c
	out.TenantID = strings.TrimSpace(c.TenantID)
	out.Endpoint = strings.TrimRight(strings.TrimSpace(c.Endpoint), "/")
	out.OrganizationSlug = c.Slug()
	out.Mode = OrganizationMode(strings.ToLower(strings.TrimSpace(string(c.Mode))))
	out.ClientID = strings.TrimSpace(c.ClientID)
	out.ClientSecret = strings.TrimSpace(c.ClientSecret)
	out.SalesChannelClientID = strings.TrimSpace(c.SalesChannelClientID)
	out.AccessToken = strings.TrimSpace(c.AccessToken)
	out.RefreshToken = strings.TrimSpace(c.RefreshToken)
	out.ExpiresAt = cloneTime(c.ExpiresAt)
	if out.Status == "" {
		out.Status = CredentialStatusActive
	}
	return out
}

func (c CommerceCredentials) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" && strings.TrimSpace(c.OrganizationSlug) == "" {
		return fmt.Errorf("core: credentials endpoint or organization slug is required")
	}
	if c.Slug() == "" {
		return fmt.Errorf("core: credentials endpoint %q has no organization slug", c.Endpoint)
	}
	switch c.Mode {
	case "", OrganizationModeTest, OrganizationModeLive:
	default:
		return fmt.Errorf("core: credentials mode %q is invalid", c.Mode)
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("core: credentials client id is required")
	}
	switch c.Status {
	case "", CredentialStatusActive, CredentialStatusPendingReauth:
	default:
		return fmt.Errorf("core: credentials status %q is invalid", c.Status)
	}
	if c.Strategy() == GrantStrategyStateful && strings.TrimSpace(c.AccessToken) == "" && strings.TrimSpace(c.RefreshToken) == "" {
		return fmt.Errorf("core: stateful credentials require a token")
	}
	return nil
}

// BaseEndpoint returns the API root for the organization.
func (c CommerceCredentials) BaseEndpoint() string {
	if endpoint := strings.TrimRight(strings.TrimSpace(c.Endpoint), "/"); endpoint != "" {
		return endpoint
	}
	if slug := c.Slug(); slug != "" {
		return "https://" + slug + ".commercelayer.io"
	}
	return ""
}

// Session is the resolved, short-lived access context for one command.
type Session struct {
	TenantID            string
	AccessToken         string
	BaseEndpoint        string
	OrganizationSlug    string
	OrganizationMode    OrganizationMode
	CheckoutAccessToken string
	CheckoutMarket      string
	ExpiresAt           *time.Time
	Strategy            GrantStrategyKind
	Refreshed           bool
	ResolvedAt          time.Time
	AdminBaseURL        string
	CheckoutBaseURL     string
}

func (s Session) Expired(now time.Time) bool {
	if s.ExpiresAt == nil {
		return false
	}
	return !s.ExpiresAt.After(now)
}

func (s Session) HasCheckoutToken() bool {
	return strings.TrimSpace(s.CheckoutAccessToken) != ""
}

// AdminOrderURL is the dashboard link used when no checkout token is available.
func (s Session) AdminOrderURL(orderID string) string {
	base := strings.TrimRight(strings.TrimSpace(s.AdminBaseURL), "/")
	if base == "" || strings.TrimSpace(orderID) == "" {
		return ""
	}
	return base + "/orders/" + url.PathEscape(strings.TrimSpace(orderID)) + "/edit"
}

func (s Session) CheckoutURL(orderID string) (string, bool) {
	base := strings.TrimRight(strings.TrimSpace(s.CheckoutBaseURL), "/")
	if !s.HasCheckoutToken() || base == "" || strings.TrimSpace(orderID) == "" {
		return "", false
	}
	query := url.Values{}
	query.Set("accessToken", s.CheckoutAccessToken)
	return base + "/" + url.PathEscape(strings.TrimSpace(orderID)) + "?" + query.Encode(), true
}

// OrderLink prefers the hosted checkout link and falls back to the admin view.
func (s Session) OrderLink(orderID string) string {
	if link, ok := s.CheckoutURL(orderID); ok {
		return link
	}
	return s.AdminOrderURL(orderID)
}

// HTTPClient returns a client bound to this session's token. It lives as
// long as the caller keeps it; nothing is shared across tenants.
func (s Session) HTTPClient(ctx context.Context) *http.Client {
	if ctx == nil {
		ctx = context.Background()
	}
	token := &oauth2.Token{AccessToken: s.AccessToken, TokenType: "Bearer"}
	if s.ExpiresAt != nil {
		token.Expiry = s.ExpiresAt.UTC()
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
}

func (s Session) APIBaseURL() string {
	base := strings.TrimRight(strings.TrimSpace(s.BaseEndpoint), "/")
	if base == "" {
		return ""
	}
	return base + "/api"
}

// TenantState reports where a tenant sits in the install/configure lifecycle.
type TenantState struct {
	TenantID         string
	Installed        bool
	Configured       bool
	Strategy         GrantStrategyKind
	CredentialStatus CredentialStatus
	StatusReason     string
	ExpiresAt        *time.Time
	InstalledAt      *time.Time
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	out := value.UTC()
	return &out
}

func normalizeScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		trimmed := strings.TrimSpace(scope)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
