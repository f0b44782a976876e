package core

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	SessionErrorBadInput              = "SESSION_BAD_INPUT"
	SessionErrorCredentialsNotFound   = "SESSION_CREDENTIALS_NOT_FOUND"
	SessionErrorInstallationNotFound  = "SESSION_INSTALLATION_NOT_FOUND"
	SessionErrorAuthRejected          = "SESSION_AUTH_REJECTED"
	SessionErrorReauthRequired        = "SESSION_REAUTH_REQUIRED"
	SessionErrorTransient             = "SESSION_TRANSIENT"
	SessionErrorRefreshLocked         = "SESSION_REFRESH_LOCKED"
	SessionErrorDuplicateInstallation = "SESSION_DUPLICATE_INSTALLATION"
	SessionErrorInternal              = "SESSION_INTERNAL_ERROR"
)

const metadataTenantIDKey = "tenant_id"

var (
	// ErrRecordNotFound is returned by stores when no record exists for a tenant.
	ErrRecordNotFound = errors.New("core: record not found")
	// ErrDuplicateRecord is returned by installation stores when the tenant already has a record.
	ErrDuplicateRecord = errors.New("core: record already exists")
	// ErrLockHeld is returned by tenant lockers when another holder owns the lease.
	ErrLockHeld = errors.New("core: tenant refresh lock already held")
)

func NewCredentialsNotFoundError(tenantID string) *goerrors.Error {
	return withTenant(
		goerrors.New("core: no commerce credentials configured for tenant", goerrors.CategoryNotFound).
			WithTextCode(SessionErrorCredentialsNotFound).
			WithCode(http.StatusNotFound),
		tenantID,
	)
}

func NewInstallationNotFoundError(tenantID string) *goerrors.Error {
	return withTenant(
		goerrors.New("core: no installation recorded for tenant", goerrors.CategoryNotFound).
			WithTextCode(SessionErrorInstallationNotFound).
			WithCode(http.StatusNotFound),
		tenantID,
	)
}

func NewAuthError(tenantID string, message string, cause error) *goerrors.Error {
	return withTenant(wrapOrNew(cause, goerrors.CategoryAuth, message).
		WithTextCode(SessionErrorAuthRejected).
		WithCode(http.StatusUnauthorized), tenantID)
}

func NewReauthRequiredError(tenantID string, reason string) *goerrors.Error {
	metadata := map[string]any{metadataTenantIDKey: strings.TrimSpace(tenantID)}
	if reason = strings.TrimSpace(reason); reason != "" {
		metadata["reason"] = reason
	}
	return goerrors.New("core: commerce credentials require re-authorization", goerrors.CategoryAuth).
		WithTextCode(SessionErrorReauthRequired).
		WithCode(http.StatusUnauthorized).
		WithMetadata(metadata)
}

func NewTransientError(tenantID string, message string, cause error) *goerrors.Error {
	return withTenant(wrapOrNew(cause, goerrors.CategoryExternal, message).
		WithTextCode(SessionErrorTransient).
		WithCode(http.StatusServiceUnavailable), tenantID)
}

func NewRefreshLockedError(tenantID string, cause error) *goerrors.Error {
	return withTenant(wrapOrNew(cause, goerrors.CategoryExternal, "core: refresh already in progress for tenant").
		WithTextCode(SessionErrorRefreshLocked).
		WithCode(http.StatusServiceUnavailable), tenantID)
}

func NewDuplicateInstallationError(tenantID string, cause error) *goerrors.Error {
	return withTenant(wrapOrNew(cause, goerrors.CategoryConflict, "core: tenant already has an installation").
		WithTextCode(SessionErrorDuplicateInstallation).
		WithCode(http.StatusConflict), tenantID)
}

func NewBadInputError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithTextCode(SessionErrorBadInput).
		WithCode(http.StatusBadRequest)
}

func IsNotFound(err error) bool {
	return hasCategory(err, goerrors.CategoryNotFound) || errors.Is(err, ErrRecordNotFound)
}

func IsAuth(err error) bool {
	return hasCategory(err, goerrors.CategoryAuth)
}

func IsTransient(err error) bool {
	if hasCategory(err, goerrors.CategoryExternal) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func IsDuplicateInstallation(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == SessionErrorDuplicateInstallation
	}
	return errors.Is(err, ErrDuplicateRecord)
}

// ErrorTextCode returns the SESSION_* code carried by err, if any.
func ErrorTextCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

func hasCategory(err error, category goerrors.Category) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == category
	}
	return false
}

func wrapOrNew(cause error, category goerrors.Category, message string) *goerrors.Error {
	if cause == nil {
		return goerrors.New(message, category)
	}
	wrapped := goerrors.Wrap(cause, category, message)
	// a wrapped rich error keeps its own category unless overridden
	wrapped.Category = category
	return wrapped
}

func withTenant(err *goerrors.Error, tenantID string) *goerrors.Error {
	if err == nil {
		return nil
	}
	if tenantID = strings.TrimSpace(tenantID); tenantID != "" {
		return err.WithMetadata(map[string]any{metadataTenantIDKey: tenantID})
	}
	return err
}

func sessionErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureSessionErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrRecordNotFound):
		return newSessionError(err.Error(), goerrors.CategoryNotFound, SessionErrorCredentialsNotFound)
	case errors.Is(err, ErrDuplicateRecord):
		return newSessionError(err.Error(), goerrors.CategoryConflict, SessionErrorDuplicateInstallation)
	case errors.Is(err, ErrLockHeld):
		return newSessionError(err.Error(), goerrors.CategoryExternal, SessionErrorRefreshLocked)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return newSessionError(err.Error(), goerrors.CategoryExternal, SessionErrorTransient)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newSessionError(err.Error(), goerrors.CategoryBadInput, SessionErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureSessionErrorEnvelope(mapped)
}

func newSessionError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureSessionErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureSessionErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = sessionHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultSessionTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultSessionTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return SessionErrorBadInput
	case goerrors.CategoryNotFound:
		return SessionErrorCredentialsNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return SessionErrorAuthRejected
	case goerrors.CategoryConflict:
		return SessionErrorDuplicateInstallation
	case goerrors.CategoryExternal, goerrors.CategoryRateLimit:
		return SessionErrorTransient
	default:
		return SessionErrorInternal
	}
}

func sessionHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
