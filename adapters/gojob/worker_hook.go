package gojob

import (
	"context"

	"github.com/goliatone/go-job/queue/worker"
	"github.com/goliatone/go-tenant-sessions/core"
)

// MetricsHook reports refresh worker activity through the session metrics
// recorder.
type MetricsHook struct {
	recorder core.MetricsRecorder
}

func NewMetricsHook(recorder core.MetricsRecorder) *MetricsHook {
	if recorder == nil {
		recorder = core.NopMetricsRecorder{}
	}
	return &MetricsHook{recorder: recorder}
}

func (h *MetricsHook) OnStart(ctx context.Context, event worker.Event) {
	h.count(ctx, event, "started")
}

func (h *MetricsHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.count(ctx, event, "succeeded")
	h.recorder.ObserveHistogram(ctx, "sessions.refresh_job.duration_ms", float64(event.Duration.Milliseconds()), jobTags(event, "succeeded"))
}

func (h *MetricsHook) OnFailure(ctx context.Context, event worker.Event) {
	h.count(ctx, event, "failed")
}

func (h *MetricsHook) OnRetry(ctx context.Context, event worker.Event) {
	h.count(ctx, event, "retried")
}

func (h *MetricsHook) count(ctx context.Context, event worker.Event, status string) {
	if h == nil || h.recorder == nil {
		return
	}
	h.recorder.IncCounter(ctx, "sessions.refresh_job.total", 1, jobTags(event, status))
}

func jobTags(event worker.Event, status string) map[string]string {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	jobID := ""
	if message != nil {
		jobID = message.JobID
	}
	return map[string]string{
		"job_id": jobID,
		"status": status,
	}
}

var _ worker.Hook = (*MetricsHook)(nil)
