package gologger

import (
	"context"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-tenant-sessions/core"
)

func TestResolvePrecedence(t *testing.T) {
	loggerOnly := &capturingLogger{id: "logger"}
	provider := &capturingProvider{logger: &capturingLogger{id: "provider"}}

	_, resolved := Resolve("sessions", provider, loggerOnly)
	if got := resolved.(*capturingLogger); got.id != "provider" {
		t.Fatalf("expected provider logger precedence, got %q", got.id)
	}

	resolvedProvider, resolved := Resolve("", nil, loggerOnly)
	if got := resolved.(*capturingLogger); got.id != "logger" {
		t.Fatalf("expected direct logger when provider is nil, got %q", got.id)
	}
	if resolvedProvider == nil {
		t.Fatalf("expected provider wrapper from logger")
	}

	_, resolved = Resolve("sessions", nil, nil)
	if resolved == nil {
		t.Fatalf("expected nop logger fallback")
	}
}

func TestResolveDefaultsLoggerName(t *testing.T) {
	provider := &capturingProvider{logger: &capturingLogger{id: "provider"}}
	Resolve("  ", provider, nil)
	if provider.lastName != DefaultLoggerName {
		t.Fatalf("expected default logger name, got %q", provider.lastName)
	}
}

func TestServiceOptionsInstallResolvedLogger(t *testing.T) {
	opts := ServiceOptions(nil, &capturingLogger{id: "svc"})
	if len(opts) != 2 {
		t.Fatalf("expected provider and logger options, got %d", len(opts))
	}
	service, err := core.NewService(core.DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if service == nil {
		t.Fatalf("expected service")
	}
}

func TestRefreshWorkerLoggerBridge(t *testing.T) {
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	_, _, jobProvider, jobLogger := ResolveForJob("sessions.refresh", provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	jobProvider.GetLogger("sessions.refresh").Info("refresh scheduled", "tenant_id", "T1")

	captured := providerLogger.lastInfo
	if captured.msg != "refresh scheduled" {
		t.Fatalf("expected bridged message, got %q", captured.msg)
	}
	if len(captured.args) != 2 || captured.args[0] != "tenant_id" || captured.args[1] != "T1" {
		t.Fatalf("expected bridged args, got %#v", captured.args)
	}
	if ToJobProvider(nil) != nil || ToJobLogger(nil) != nil {
		t.Fatalf("expected nil bridges for nil inputs")
	}
}

var (
	_ glog.Logger         = (*capturingLogger)(nil)
	_ glog.LoggerProvider = (*capturingProvider)(nil)
)

type capturingProvider struct {
	logger   *capturingLogger
	lastName string
}

func (p *capturingProvider) GetLogger(name string) glog.Logger {
	p.lastName = name
	if p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type infoCall struct {
	msg  string
	args []any
}

type capturingLogger struct {
	id       string
	lastInfo infoCall
}

func (l *capturingLogger) Trace(string, ...any) {}
func (l *capturingLogger) Debug(string, ...any) {}
func (l *capturingLogger) Warn(string, ...any)  {}
func (l *capturingLogger) Error(string, ...any) {}
func (l *capturingLogger) Fatal(string, ...any) {}

func (l *capturingLogger) Info(msg string, args ...any) {
	l.lastInfo = infoCall{msg: msg, args: append([]any(nil), args...)}
}

func (l *capturingLogger) WithContext(context.Context) glog.Logger {
	return l
}
