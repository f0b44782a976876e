package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTenantIDFor(t *testing.T) {
	if got := TenantIDFor(" T1 ", "E1", false); got != "T1" {
		t.Fatalf("expected team tenant, got %q", got)
	}
	if got := TenantIDFor("T1", "E1", true); got != "E1" {
		t.Fatalf("expected enterprise tenant, got %q", got)
	}
	if got := TenantIDFor("T1", "", true); got != "T1" {
		t.Fatalf("expected team fallback without enterprise id, got %q", got)
	}
}

func TestInstallationValidate(t *testing.T) {
	installation := workspaceInstallation("T1").Normalized()
	if err := installation.Validate(); err != nil {
		t.Fatalf("expected valid installation, got %v", err)
	}

	enterprise := installation
	enterprise.IsEnterpriseInstall = true
	if err := enterprise.Validate(); err == nil {
		t.Fatalf("expected enterprise install without enterprise id to fail")
	}

	installation.Scopes = []string{" commands", "commands", ""}
	if got := installation.Normalized().Scopes; len(got) != 1 || got[0] != "commands" {
		t.Fatalf("expected deduplicated scopes, got %#v", got)
	}
}

func TestSlugFromEndpoint(t *testing.T) {
	cases := map[string]string{
		"https://acme.commercelayer.io":      "acme",
		"https://acme.commercelayer.io/api/": "acme",
		"acme.commercelayer.io":              "acme",
		"http://localhost:8080":              "",
		"":                                   "",
	}
	for endpoint, want := range cases {
		if got := SlugFromEndpoint(endpoint); got != want {
			t.Fatalf("endpoint %q: expected %q, got %q", endpoint, want, got)
		}
	}
}

func TestCommerceCredentialsStrategyAndValidate(t *testing.T) {
	stateless := statelessCredentials("T3").Normalized()
	if stateless.Strategy() != GrantStrategyStateless {
		t.Fatalf("expected stateless strategy")
	}
	if err := stateless.Validate(); err != nil {
		t.Fatalf("expected valid stateless credentials, got %v", err)
	}
	if stateless.BaseEndpoint() != "https://acme.commercelayer.io" {
		t.Fatalf("unexpected base endpoint %q", stateless.BaseEndpoint())
	}

	stateful := statefulCredentials("T1", time.Now().Add(time.Hour))
	if stateful.Strategy() != GrantStrategyStateful {
		t.Fatalf("expected stateful strategy")
	}

	missingClient := stateless
	missingClient.ClientID = ""
	if err := missingClient.Validate(); err == nil {
		t.Fatalf("expected missing client id to fail")
	}

	badMode := stateless
	badMode.Mode = "staging"
	if err := badMode.Validate(); err == nil {
		t.Fatalf("expected invalid mode to fail")
	}

	slugOnly := CommerceCredentials{OrganizationSlug: "acme", ClientID: "c"}
	if slugOnly.BaseEndpoint() != "https://acme.commercelayer.io" {
		t.Fatalf("expected endpoint derived from slug, got %q", slugOnly.BaseEndpoint())
	}
}

func TestSessionLinksAndExpiry(t *testing.T) {
	now := time.Now().UTC()
	expires := now.Add(time.Minute)
	session := Session{
		AccessToken:     "tok",
		BaseEndpoint:    "https://acme.commercelayer.io",
		ExpiresAt:       &expires,
		AdminBaseURL:    "https://acme.commercelayer.io/admin",
		CheckoutBaseURL: "https://acme.checkout.commercelayer.app",
	}
	if session.Expired(now) {
		t.Fatalf("expected session valid")
	}
	if !session.Expired(expires) {
		t.Fatalf("expected session expired at its expiry")
	}
	if _, ok := session.CheckoutURL("ord_1"); ok {
		t.Fatalf("expected no checkout url without a checkout token")
	}
	if session.APIBaseURL() != "https://acme.commercelayer.io/api" {
		t.Fatalf("unexpected api base %q", session.APIBaseURL())
	}
	if session.AdminOrderURL("") != "" {
		t.Fatalf("expected empty admin link for empty order id")
	}
}

func TestSessionHTTPClientSendsBearerToken(t *testing.T) {
	var authorization string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	expires := time.Now().Add(time.Hour)
	session := Session{AccessToken: "tok-1", ExpiresAt: &expires}
	resp, err := session.HTTPClient(context.Background()).Get(server.URL)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_ = resp.Body.Close()
	if authorization != "Bearer tok-1" {
		t.Fatalf("expected bearer token, got %q", authorization)
	}
}
