package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultLockTTL          = 30 * time.Second
	DefaultLockWaitTimeout  = 10 * time.Second
	DefaultLockRetryInitial = 50 * time.Millisecond
	DefaultLockRetryMax     = time.Second
	DefaultExchangeTimeout  = 15 * time.Second
	DefaultTokenTTL         = time.Hour

	DefaultTokenURLTemplate    = "https://{slug}.commercelayer.io/oauth/token"
	DefaultAdminURLTemplate    = "https://{slug}.commercelayer.io/admin"
	DefaultCheckoutURLTemplate = "https://{slug}.checkout.commercelayer.app"

	slugPlaceholder = "{slug}"
)

type ResolverConfig struct {
	// RefreshLeadWindow refreshes tokens this long before they expire. Zero
	// keeps strict expiry semantics on the resolve path.
	RefreshLeadWindow time.Duration `koanf:"refresh_lead_window" mapstructure:"refresh_lead_window"`
	LockTTL           time.Duration `koanf:"lock_ttl" mapstructure:"lock_ttl"`
	LockWaitTimeout   time.Duration `koanf:"lock_wait_timeout" mapstructure:"lock_wait_timeout"`
	LockRetryInitial  time.Duration `koanf:"lock_retry_initial" mapstructure:"lock_retry_initial"`
	LockRetryMax      time.Duration `koanf:"lock_retry_max" mapstructure:"lock_retry_max"`
	ExchangeTimeout   time.Duration `koanf:"exchange_timeout" mapstructure:"exchange_timeout"`
}

type CommerceConfig struct {
	TokenURLTemplate    string `koanf:"token_url_template" mapstructure:"token_url_template"`
	AdminURLTemplate    string `koanf:"admin_url_template" mapstructure:"admin_url_template"`
	CheckoutURLTemplate string `koanf:"checkout_url_template" mapstructure:"checkout_url_template"`
	// DefaultTokenTTL is assumed when the token endpoint omits expires_in.
	DefaultTokenTTL time.Duration `koanf:"default_token_ttl" mapstructure:"default_token_ttl"`
}

type LifecycleConfig struct {
	PurgeCredentialsOnUninstall bool `koanf:"purge_credentials_on_uninstall" mapstructure:"purge_credentials_on_uninstall"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Resolver    ResolverConfig  `koanf:"resolver" mapstructure:"resolver"`
	Commerce    CommerceConfig  `koanf:"commerce" mapstructure:"commerce"`
	Lifecycle   LifecycleConfig `koanf:"lifecycle" mapstructure:"lifecycle"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "sessions",
		Resolver: ResolverConfig{
			LockTTL:          DefaultLockTTL,
			LockWaitTimeout:  DefaultLockWaitTimeout,
			LockRetryInitial: DefaultLockRetryInitial,
			LockRetryMax:     DefaultLockRetryMax,
			ExchangeTimeout:  DefaultExchangeTimeout,
		},
		Commerce: CommerceConfig{
			TokenURLTemplate:    DefaultTokenURLTemplate,
			AdminURLTemplate:    DefaultAdminURLTemplate,
			CheckoutURLTemplate: DefaultCheckoutURLTemplate,
			DefaultTokenTTL:     DefaultTokenTTL,
		},
		Lifecycle: LifecycleConfig{
			PurgeCredentialsOnUninstall: true,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Resolver.RefreshLeadWindow < 0 {
		return fmt.Errorf("core: resolver.refresh_lead_window must not be negative")
	}
	if c.Resolver.LockTTL <= 0 {
		return fmt.Errorf("core: resolver.lock_ttl must be positive")
	}
	if c.Resolver.LockWaitTimeout < 0 {
		return fmt.Errorf("core: resolver.lock_wait_timeout must not be negative")
	}
	if c.Resolver.ExchangeTimeout <= 0 {
		return fmt.Errorf("core: resolver.exchange_timeout must be positive")
	}
	// a refresh exchange has to finish and persist while the lease is held
	if limit := c.Resolver.LockTTL - LeaseHeadroom(c.Resolver.LockTTL); c.Resolver.ExchangeTimeout > limit {
		return fmt.Errorf("core: resolver.exchange_timeout %s must not exceed %s for resolver.lock_ttl %s",
			c.Resolver.ExchangeTimeout, limit, c.Resolver.LockTTL)
	}
	if c.Commerce.DefaultTokenTTL < 0 {
		return fmt.Errorf("core: commerce.default_token_ttl must not be negative")
	}
	for key, template := range map[string]string{
		"commerce.token_url_template":    c.Commerce.TokenURLTemplate,
		"commerce.admin_url_template":    c.Commerce.AdminURLTemplate,
		"commerce.checkout_url_template": c.Commerce.CheckoutURLTemplate,
	} {
		if !strings.Contains(template, slugPlaceholder) {
			return fmt.Errorf("core: %s must contain %s", key, slugPlaceholder)
		}
	}
	return nil
}

// LeaseHeadroom is the part of a refresh lease reserved for persisting the
// refreshed record after the exchange returns.
func LeaseHeadroom(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl / 5
}

// ExpandSlugTemplate substitutes the organization slug into a URL template.
func ExpandSlugTemplate(template string, slug string) string {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ""
	}
	return strings.ReplaceAll(strings.TrimSpace(template), slugPlaceholder, slug)
}
