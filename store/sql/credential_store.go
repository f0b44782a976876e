package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-tenant-sessions/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CredentialStore keeps one row per tenant. Client secret and tokens are
// sealed into encrypted_payload; the remaining fields stay queryable.
type CredentialStore struct {
	db      *bun.DB
	repo    repository.Repository[*credentialRecord]
	secrets core.SecretProvider
	codec   core.CredentialCodec
	now     func() time.Time
}

func NewCredentialStore(db *bun.DB, secrets core.SecretProvider, codec core.CredentialCodec) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if secrets == nil {
		return nil, fmt.Errorf("sqlstore: secret provider is required")
	}
	if codec == nil {
		codec = core.JSONCredentialCodec{}
	}
	repo := repository.NewRepository[*credentialRecord](db, credentialHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credential repository wiring: %w", err)
		}
	}
	return &CredentialStore{
		db:      db,
		repo:    repo,
		secrets: secrets,
		codec:   codec,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *CredentialStore) Get(ctx context.Context, tenantID string) (core.CommerceCredentials, error) {
	if s == nil || s.repo == nil {
		return core.CommerceCredentials{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return core.CommerceCredentials{}, fmt.Errorf("sqlstore: tenant id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("tenant_id", "=", tenantID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		if isNoRows(err) {
			return core.CommerceCredentials{}, notFound("credentials", tenantID)
		}
		return core.CommerceCredentials{}, err
	}
	if len(records) == 0 {
		return core.CommerceCredentials{}, notFound("credentials", tenantID)
	}
	return s.toDomain(ctx, records[0])
}

// Put replaces the tenant row in a single statement so a concurrent reader
// never observes a partially written token triple.
func (s *CredentialStore) Put(ctx context.Context, tenantID string, credentials core.CommerceCredentials) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return fmt.Errorf("sqlstore: tenant id is required")
	}
	credentials.TenantID = tenantID
	credentials = credentials.Normalized()

	record, err := s.newRecord(ctx, credentials)
	if err != nil {
		return err
	}
	_, err = s.db.NewInsert().
		Model(record).
		On("CONFLICT (tenant_id) DO UPDATE").
		Set("endpoint = EXCLUDED.endpoint").
		Set("organization_slug = EXCLUDED.organization_slug").
		Set("mode = EXCLUDED.mode").
		Set("client_id = EXCLUDED.client_id").
		Set("sales_channel_client_id = EXCLUDED.sales_channel_client_id").
		Set("strategy = EXCLUDED.strategy").
		Set("encrypted_payload = EXCLUDED.encrypted_payload").
		Set("payload_format = EXCLUDED.payload_format").
		Set("payload_version = EXCLUDED.payload_version").
		Set("expires_at = EXCLUDED.expires_at").
		Set("scope = EXCLUDED.scope").
		Set("status = EXCLUDED.status").
		Set("status_reason = EXCLUDED.status_reason").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *CredentialStore) Delete(ctx context.Context, tenantID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return fmt.Errorf("sqlstore: tenant id is required")
	}
	_, err := s.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("tenant_id = ?", tenantID).
		Exec(ctx)
	return err
}

func (s *CredentialStore) newRecord(ctx context.Context, credentials core.CommerceCredentials) (*credentialRecord, error) {
	payload, err := s.codec.Encode(core.SecretsFromCredentials(credentials))
	if err != nil {
		return nil, err
	}
	encrypted, err := s.secrets.Encrypt(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: encrypt credential payload: %w", err)
	}
	now := s.now()
	updatedAt := credentials.UpdatedAt.UTC()
	if credentials.UpdatedAt.IsZero() {
		updatedAt = now
	}
	return &credentialRecord{
		ID:                   uuid.NewString(),
		TenantID:             credentials.TenantID,
		Endpoint:             credentials.Endpoint,
		OrganizationSlug:     credentials.OrganizationSlug,
		Mode:                 string(credentials.Mode),
		ClientID:             credentials.ClientID,
		SalesChannelClientID: credentials.SalesChannelClientID,
		Strategy:             string(credentials.Strategy()),
		EncryptedPayload:     encrypted,
		PayloadFormat:        s.codec.Format(),
		PayloadVersion:       s.codec.Version(),
		ExpiresAt:            credentials.ExpiresAt,
		Scope:                strings.TrimSpace(credentials.Scope),
		Status:               string(credentials.Status),
		StatusReason:         strings.TrimSpace(credentials.StatusReason),
		CreatedAt:            now,
		UpdatedAt:            updatedAt,
	}, nil
}

func (s *CredentialStore) toDomain(ctx context.Context, record *credentialRecord) (core.CommerceCredentials, error) {
	if record == nil {
		return core.CommerceCredentials{}, fmt.Errorf("sqlstore: credential record is nil")
	}
	if record.PayloadFormat != s.codec.Format() || record.PayloadVersion != s.codec.Version() {
		return core.CommerceCredentials{}, fmt.Errorf(
			"sqlstore: unsupported credential payload %s/v%d",
			record.PayloadFormat,
			record.PayloadVersion,
		)
	}
	plaintext, err := s.secrets.Decrypt(ctx, record.EncryptedPayload)
	if err != nil {
		return core.CommerceCredentials{}, fmt.Errorf("sqlstore: decrypt credential payload: %w", err)
	}
	secrets, err := s.codec.Decode(plaintext)
	if err != nil {
		return core.CommerceCredentials{}, err
	}
	credentials := core.CommerceCredentials{
		TenantID:             record.TenantID,
		Endpoint:             record.Endpoint,
		OrganizationSlug:     record.OrganizationSlug,
		Mode:                 core.OrganizationMode(record.Mode),
		ClientID:             record.ClientID,
		SalesChannelClientID: record.SalesChannelClientID,
		ExpiresAt:            cloneTimePointer(record.ExpiresAt),
		Scope:                record.Scope,
		Status:               core.CredentialStatus(record.Status),
		StatusReason:         record.StatusReason,
		UpdatedAt:            record.UpdatedAt.UTC(),
	}
	return secrets.ApplyTo(credentials), nil
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
