package commercelayer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/goliatone/go-tenant-sessions/core"
	"golang.org/x/oauth2"
)

// OAuth error codes the authorization server uses for a grant or client it
// will keep rejecting.
var rejectionCodes = map[string]struct{}{
	"invalid_grant":          {},
	"invalid_client":         {},
	"unauthorized_client":    {},
	"invalid_scope":          {},
	"unsupported_grant_type": {},
	"access_denied":          {},
}

// classifyTokenError splits token endpoint failures into rejections (the
// tenant must act) and transient failures (retrying later may succeed).
func classifyTokenError(grantType core.GrantType, err error) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf("commercelayer: %s grant failed", grantType)

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		code := strings.ToLower(strings.TrimSpace(retrieveErr.ErrorCode))
		if _, rejected := rejectionCodes[code]; rejected {
			return core.NewAuthError("", message+": "+code, err)
		}
		if isTransientStatus(status) {
			return core.NewTransientError("", fmt.Sprintf("%s: status %d", message, status), err)
		}
		if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
			return core.NewAuthError("", fmt.Sprintf("%s: status %d", message, status), err)
		}
		return core.NewTransientError("", message, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return core.NewTransientError("", message+": request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return core.NewTransientError("", message+": network error", err)
	}
	// malformed responses and anything else unexpected are worth a retry
	return core.NewTransientError("", message, err)
}

func isTransientStatus(status int) bool {
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return true
	case status >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}
