// Package commercelayer exchanges OAuth grants against the Commerce Layer
// authorization server of each tenant organization.
package commercelayer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-tenant-sessions/core"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultTokenRequestTimeout = 30 * time.Second
)

type Config struct {
	// TokenURLTemplate must contain {slug}; it defaults to the public
	// commercelayer.io token endpoint.
	TokenURLTemplate    string
	TokenRequestTimeout time.Duration
	// TokenTTL is assumed when the server omits expires_in. Zero leaves the
	// expiry unknown.
	TokenTTL   time.Duration
	HTTPClient *http.Client
	Now        func() time.Time
}

// Client implements core.AuthorizationClient for the three grants the
// session resolver uses.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	cfg.TokenURLTemplate = strings.TrimSpace(cfg.TokenURLTemplate)
	if cfg.TokenURLTemplate == "" {
		cfg.TokenURLTemplate = core.DefaultTokenURLTemplate
	}
	if !strings.Contains(cfg.TokenURLTemplate, "{slug}") {
		return nil, fmt.Errorf("commercelayer: token url template %q must contain {slug}", cfg.TokenURLTemplate)
	}
	if cfg.TokenRequestTimeout <= 0 {
		cfg.TokenRequestTimeout = defaultTokenRequestTimeout
	}
	if cfg.TokenTTL < 0 {
		cfg.TokenTTL = 0
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time {
			return time.Now().UTC()
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.TokenRequestTimeout}
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
	}, nil
}

// NewClientFromConfig builds a client from the service configuration.
func NewClientFromConfig(cfg core.Config, httpClient *http.Client) (*Client, error) {
	return NewClient(Config{
		TokenURLTemplate:    cfg.Commerce.TokenURLTemplate,
		TokenRequestTimeout: cfg.Resolver.ExchangeTimeout,
		TokenTTL:            cfg.Commerce.DefaultTokenTTL,
		HTTPClient:          httpClient,
	})
}

func (c *Client) TokenURL(slug string) string {
	if c == nil {
		return ""
	}
	return core.ExpandSlugTemplate(c.cfg.TokenURLTemplate, slug)
}

func (c *Client) Exchange(ctx context.Context, grantType core.GrantType, params core.ExchangeParams) (core.TokenResult, error) {
	if c == nil {
		return core.TokenResult{}, fmt.Errorf("commercelayer: client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	tokenURL := c.TokenURL(params.OrganizationSlug)
	if tokenURL == "" {
		return core.TokenResult{}, core.NewBadInputError("commercelayer: organization slug is required")
	}
	clientID := strings.TrimSpace(params.ClientID)
	if clientID == "" {
		return core.TokenResult{}, core.NewBadInputError("commercelayer: client id is required")
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.cfg.TokenRequestTimeout)
	defer cancel()
	requestCtx = context.WithValue(requestCtx, oauth2.HTTPClient, c.httpClient)

	var (
		token *oauth2.Token
		err   error
	)
	switch grantType {
	case core.GrantTypeAuthorizationCode:
		code := strings.TrimSpace(params.Code)
		if code == "" {
			return core.TokenResult{}, core.NewBadInputError("commercelayer: authorization code is required")
		}
		token, err = c.codeConfig(tokenURL, params).Exchange(requestCtx, code)
	case core.GrantTypeRefreshToken:
		refreshToken := strings.TrimSpace(params.RefreshToken)
		if refreshToken == "" {
			return core.TokenResult{}, core.NewBadInputError("commercelayer: refresh token is required")
		}
		// an empty access token forces the source to refresh immediately
		token, err = c.codeConfig(tokenURL, params).
			TokenSource(requestCtx, &oauth2.Token{RefreshToken: refreshToken}).
			Token()
	case core.GrantTypeClientCredentials:
		conf := clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: strings.TrimSpace(params.ClientSecret),
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		if scope := strings.TrimSpace(params.Scope); scope != "" {
			conf.Scopes = strings.Fields(scope)
		}
		token, err = conf.Token(requestCtx)
	default:
		return core.TokenResult{}, core.NewBadInputError(fmt.Sprintf("commercelayer: unsupported grant type %q", grantType))
	}
	if err != nil {
		return core.TokenResult{}, classifyTokenError(grantType, err)
	}
	return c.toTokenResult(token), nil
}

func (c *Client) codeConfig(tokenURL string, params core.ExchangeParams) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     strings.TrimSpace(params.ClientID),
		ClientSecret: strings.TrimSpace(params.ClientSecret),
		RedirectURL:  strings.TrimSpace(params.RedirectURI),
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (c *Client) toTokenResult(token *oauth2.Token) core.TokenResult {
	if token == nil {
		return core.TokenResult{}
	}
	result := core.TokenResult{
		AccessToken:  strings.TrimSpace(token.AccessToken),
		RefreshToken: strings.TrimSpace(token.RefreshToken),
		TokenType:    normalizeTokenType(token.TokenType),
		Scope:        readExtraString(token, "scope"),
	}
	switch {
	case !token.Expiry.IsZero():
		expiresAt := token.Expiry.UTC()
		result.ExpiresAt = &expiresAt
	case c.cfg.TokenTTL > 0:
		expiresAt := c.cfg.Now().UTC().Add(c.cfg.TokenTTL)
		result.ExpiresAt = &expiresAt
	}
	return result
}

func readExtraString(token *oauth2.Token, key string) string {
	value, ok := token.Extra(key).(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func normalizeTokenType(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "bearer"
	}
	return normalized
}

var _ core.AuthorizationClient = (*Client)(nil)
