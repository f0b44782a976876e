package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type memoryCredentialStore struct {
	mu      sync.Mutex
	records map[string]CommerceCredentials
	puts    int
	getErr  error
	putErr  func(CommerceCredentials) error
}

func newMemoryCredentialStore() *memoryCredentialStore {
	return &memoryCredentialStore{records: map[string]CommerceCredentials{}}
}

func (s *memoryCredentialStore) Get(_ context.Context, tenantID string) (CommerceCredentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return CommerceCredentials{}, s.getErr
	}
	record, ok := s.records[tenantID]
	if !ok {
		return CommerceCredentials{}, fmt.Errorf("%w: tenant %q", ErrRecordNotFound, tenantID)
	}
	record.ExpiresAt = cloneTime(record.ExpiresAt)
	return record, nil
}

func (s *memoryCredentialStore) Put(_ context.Context, tenantID string, credentials CommerceCredentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		if err := s.putErr(credentials); err != nil {
			return err
		}
	}
	s.puts++
	credentials.TenantID = tenantID
	credentials.ExpiresAt = cloneTime(credentials.ExpiresAt)
	s.records[tenantID] = credentials
	return nil
}

func (s *memoryCredentialStore) Delete(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, tenantID)
	return nil
}

func (s *memoryCredentialStore) seed(credentials CommerceCredentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[credentials.TenantID] = credentials
}

func (s *memoryCredentialStore) snapshot(tenantID string) (CommerceCredentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[tenantID]
	return record, ok
}

func (s *memoryCredentialStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

type memoryInstallationStore struct {
	mu        sync.Mutex
	records   map[string]Installation
	createErr error
}

func newMemoryInstallationStore() *memoryInstallationStore {
	return &memoryInstallationStore{records: map[string]Installation{}}
}

func (s *memoryInstallationStore) Create(_ context.Context, installation Installation) (Installation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return Installation{}, s.createErr
	}
	if _, exists := s.records[installation.TenantID]; exists {
		return Installation{}, fmt.Errorf("%w: tenant %q", ErrDuplicateRecord, installation.TenantID)
	}
	s.records[installation.TenantID] = installation
	return installation, nil
}

func (s *memoryInstallationStore) Get(_ context.Context, tenantID string) (Installation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[tenantID]
	if !ok {
		return Installation{}, ErrRecordNotFound
	}
	return record, nil
}

func (s *memoryInstallationStore) Delete(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, tenantID)
	return nil
}

type exchangeCall struct {
	grantType GrantType
	params    ExchangeParams
}

type fakeAuthorizationClient struct {
	mu      sync.Mutex
	calls   []exchangeCall
	delay   time.Duration
	handler func(GrantType, ExchangeParams) (TokenResult, error)
}

func (c *fakeAuthorizationClient) Exchange(ctx context.Context, grantType GrantType, params ExchangeParams) (TokenResult, error) {
	c.mu.Lock()
	c.calls = append(c.calls, exchangeCall{grantType: grantType, params: params})
	delay := c.delay
	handler := c.handler
	c.mu.Unlock()

	if delay > 0 {
		if err := waitWithContext(ctx, delay); err != nil {
			return TokenResult{}, NewTransientError("", "fake exchange timed out", err)
		}
	}
	if handler == nil {
		expires := time.Now().UTC().Add(time.Hour)
		return TokenResult{AccessToken: "access-" + string(grantType), ExpiresAt: &expires}, nil
	}
	return handler(grantType, params)
}

func (c *fakeAuthorizationClient) count(grantType GrantType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, call := range c.calls {
		if call.grantType == grantType {
			total++
		}
	}
	return total
}

func (c *fakeAuthorizationClient) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *fakeAuthorizationClient) last(grantType GrantType) (exchangeCall, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.calls) - 1; i >= 0; i-- {
		if c.calls[i].grantType == grantType {
			return c.calls[i], true
		}
	}
	return exchangeCall{}, false
}

type recordingEnqueuer struct {
	mu       sync.Mutex
	messages []*JobExecutionMessage
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, msg *JobExecutionMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, msg)
	return nil
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type serviceFixture struct {
	service     *Service
	credentials *memoryCredentialStore
	installs    *memoryInstallationStore
	auth        *fakeAuthorizationClient
	metrics     *captureMetricsRecorder
	logger      *captureLogger
}

func newServiceFixture(t *testing.T, cfg Config, opts ...Option) *serviceFixture {
	t.Helper()
	fixture := &serviceFixture{
		credentials: newMemoryCredentialStore(),
		installs:    newMemoryInstallationStore(),
		auth:        &fakeAuthorizationClient{},
		metrics:     &captureMetricsRecorder{},
		logger:      newCaptureLogger(),
	}
	base := []Option{
		WithCredentialStore(fixture.credentials),
		WithInstallationStore(fixture.installs),
		WithAuthorizationClient(fixture.auth),
		WithMetricsRecorder(fixture.metrics),
		WithLoggerProvider(stubLoggerProvider{logger: fixture.logger}),
		WithLogger(fixture.logger),
	}
	svc, err := NewService(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	fixture.service = svc
	return fixture
}

func statefulCredentials(tenantID string, expiresAt time.Time) CommerceCredentials {
	return CommerceCredentials{
		TenantID:     tenantID,
		Endpoint:     "https://acme.commercelayer.io",
		Mode:         OrganizationModeTest,
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		AccessToken:  "access-old",
		RefreshToken: "refresh-old",
		ExpiresAt:    &expiresAt,
		Status:       CredentialStatusActive,
	}
}

func statelessCredentials(tenantID string) CommerceCredentials {
	return CommerceCredentials{
		TenantID:     tenantID,
		Endpoint:     "https://acme.commercelayer.io",
		Mode:         OrganizationModeLive,
		ClientID:     "integration-1",
		ClientSecret: "integration-secret",
		Status:       CredentialStatusActive,
	}
}

func workspaceInstallation(teamID string) Installation {
	return Installation{
		TeamID:          teamID,
		BotToken:        "xoxb-" + strings.ToLower(teamID),
		BotID:           "B1",
		BotUserID:       "U_BOT",
		InstallerUserID: "U1",
		Scopes:          []string{"commands", "chat:write"},
	}
}
