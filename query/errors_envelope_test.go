package query

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-tenant-sessions/core"
)

func TestResolveSessionMessage_ValidateReturnsRichError(t *testing.T) {
	err := (ResolveSessionMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.SessionErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.SessionErrorBadInput, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
	}
}

func TestResolveSessionQuery_NilResolverReturnsRichError(t *testing.T) {
	_, err := NewResolveSessionQuery(nil).Query(context.Background(), ResolveSessionMessage{TenantID: "T1"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal || rich.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected dependency error %#v", rich)
	}
}
