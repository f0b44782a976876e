package gojob

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-tenant-sessions/core"
)

type TenantRefresher interface {
	RefreshTenant(ctx context.Context, tenantID string, opts core.RefreshOptions) (core.RefreshOutcome, error)
}

// RefreshHandler consumes refresh deliveries. Transient failures are nacked
// with backoff; rejections and unknown tenants are acked because retrying
// cannot succeed until the tenant acts.
type RefreshHandler struct {
	refresher TenantRefresher
	policy    RetryPolicy
	backoff   core.BackoffScheduler
	logger    core.Logger
}

type RefreshHandlerOption func(*RefreshHandler)

func WithRetryPolicy(policy RetryPolicy) RefreshHandlerOption {
	return func(h *RefreshHandler) {
		h.policy = policy
	}
}

func WithBackoffScheduler(scheduler core.BackoffScheduler) RefreshHandlerOption {
	return func(h *RefreshHandler) {
		if scheduler != nil {
			h.backoff = scheduler
		}
	}
}

func WithLogger(logger core.Logger) RefreshHandlerOption {
	return func(h *RefreshHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewRefreshHandler(refresher TenantRefresher, opts ...RefreshHandlerOption) *RefreshHandler {
	handler := &RefreshHandler{
		refresher: refresher,
		policy:    DefaultRetryPolicy(),
		backoff: core.ExponentialBackoffScheduler{
			Initial: 5 * time.Second,
			Max:     5 * time.Minute,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}
	return handler
}

// Handle runs one delivery. attempt is 1 for the first try.
func (h *RefreshHandler) Handle(ctx context.Context, delivery queue.Delivery, attempt int) error {
	if h == nil || h.refresher == nil {
		return fmt.Errorf("gojob: refresh handler is not configured")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	msg := FromExecutionMessage(delivery.Message())
	tenantID, err := TenantIDFromMessage(msg)
	if err != nil {
		return delivery.Nack(ctx, queue.NackOptions{Disposition: queue.NackDispositionDeadLetter, Reason: err.Error()})
	}

	outcome, err := h.refresher.RefreshTenant(ctx, tenantID, core.RefreshOptions{})
	switch {
	case err == nil:
		h.log(ctx, "info", "scheduled refresh completed", map[string]any{
			"tenant_id": tenantID,
			"renewed":   outcome.Refreshed,
			"attempt":   attempt,
		})
		return delivery.Ack(ctx)
	case core.IsTransient(err):
		opts := h.policy.NormalizeAttempt(queue.NackOptions{
			Disposition: queue.NackDispositionRetry,
			Delay:       h.backoff.NextDelay(attempt),
			Reason:      core.ErrorTextCode(err),
		}, attempt)
		h.log(ctx, "warn", "scheduled refresh failed, retrying", map[string]any{
			"tenant_id":   tenantID,
			"attempt":     attempt,
			"delay":       opts.Delay.String(),
			"disposition": string(opts.Disposition),
			"error":       err.Error(),
		})
		return delivery.Nack(ctx, opts)
	default:
		h.log(ctx, "warn", "scheduled refresh dropped", map[string]any{
			"tenant_id":  tenantID,
			"attempt":    attempt,
			"error_code": core.ErrorTextCode(err),
			"error":      err.Error(),
		})
		return delivery.Ack(ctx)
	}
}

func (h *RefreshHandler) log(ctx context.Context, level string, msg string, fields map[string]any) {
	if h.logger == nil {
		return
	}
	logger := h.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	switch level {
	case "warn":
		logger.Warn(msg, args...)
	default:
		logger.Info(msg, args...)
	}
}
