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

type InstallationStore struct {
	db      *bun.DB
	repo    repository.Repository[*installationRecord]
	secrets core.SecretProvider
	codec   core.CredentialCodec
}

func NewInstallationStore(db *bun.DB, secrets core.SecretProvider, codec core.CredentialCodec) (*InstallationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if secrets == nil {
		return nil, fmt.Errorf("sqlstore: secret provider is required")
	}
	if codec == nil {
		codec = core.JSONCredentialCodec{}
	}
	repo := repository.NewRepository[*installationRecord](db, installationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid installation repository wiring: %w", err)
		}
	}
	return &InstallationStore{
		db:      db,
		repo:    repo,
		secrets: secrets,
		codec:   codec,
	}, nil
}

// Create inserts the installation and relies on the tenant_id unique index
// to reject a second install for the same tenant.
func (s *InstallationStore) Create(ctx context.Context, installation core.Installation) (core.Installation, error) {
	if s == nil || s.repo == nil {
		return core.Installation{}, fmt.Errorf("sqlstore: installation store is not configured")
	}
	installation = installation.Normalized()
	if err := installation.Validate(); err != nil {
		return core.Installation{}, err
	}
	if installation.InstalledAt.IsZero() {
		installation.InstalledAt = time.Now().UTC()
	}

	record, err := s.newRecord(ctx, installation)
	if err != nil {
		return core.Installation{}, err
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Installation{}, fmt.Errorf(
				"sqlstore: installation for tenant %q: %w",
				installation.TenantID,
				core.ErrDuplicateRecord,
			)
		}
		return core.Installation{}, err
	}
	return s.toDomain(ctx, created)
}

func (s *InstallationStore) Get(ctx context.Context, tenantID string) (core.Installation, error) {
	if s == nil || s.db == nil {
		return core.Installation{}, fmt.Errorf("sqlstore: installation store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return core.Installation{}, fmt.Errorf("sqlstore: tenant id is required")
	}
	record := &installationRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", tenantID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return core.Installation{}, notFound("installation", tenantID)
		}
		return core.Installation{}, err
	}
	return s.toDomain(ctx, record)
}

func (s *InstallationStore) Delete(ctx context.Context, tenantID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: installation store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return fmt.Errorf("sqlstore: tenant id is required")
	}
	_, err := s.db.NewDelete().
		Model((*installationRecord)(nil)).
		Where("tenant_id = ?", tenantID).
		Exec(ctx)
	return err
}

func (s *InstallationStore) newRecord(ctx context.Context, installation core.Installation) (*installationRecord, error) {
	payload, err := s.codec.Encode(core.CredentialSecrets{BotToken: installation.BotToken})
	if err != nil {
		return nil, err
	}
	encrypted, err := s.secrets.Encrypt(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: encrypt bot token: %w", err)
	}
	scopes := installation.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	metadata := installation.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &installationRecord{
		ID:                  uuid.NewString(),
		TenantID:            installation.TenantID,
		TeamID:              installation.TeamID,
		EnterpriseID:        installation.EnterpriseID,
		IsEnterpriseInstall: installation.IsEnterpriseInstall,
		EncryptedBotToken:   encrypted,
		BotID:               installation.BotID,
		BotUserID:           installation.BotUserID,
		InstallerUserID:     installation.InstallerUserID,
		Scopes:              scopes,
		Metadata:            metadata,
		InstalledAt:         installation.InstalledAt.UTC(),
		CreatedAt:           time.Now().UTC(),
	}, nil
}

func (s *InstallationStore) toDomain(ctx context.Context, record *installationRecord) (core.Installation, error) {
	if record == nil {
		return core.Installation{}, fmt.Errorf("sqlstore: installation record is nil")
	}
	plaintext, err := s.secrets.Decrypt(ctx, record.EncryptedBotToken)
	if err != nil {
		return core.Installation{}, fmt.Errorf("sqlstore: decrypt bot token: %w", err)
	}
	secrets, err := s.codec.Decode(plaintext)
	if err != nil {
		return core.Installation{}, err
	}
	return core.Installation{
		TenantID:            record.TenantID,
		TeamID:              record.TeamID,
		EnterpriseID:        record.EnterpriseID,
		IsEnterpriseInstall: record.IsEnterpriseInstall,
		BotToken:            secrets.BotToken,
		BotID:               record.BotID,
		BotUserID:           record.BotUserID,
		InstallerUserID:     record.InstallerUserID,
		Scopes:              append([]string(nil), record.Scopes...),
		Metadata:            copyAnyMap(record.Metadata),
		InstalledAt:         record.InstalledAt.UTC(),
	}, nil
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
