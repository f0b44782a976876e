package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type credentialRecord struct {
	bun.BaseModel `bun:"table:tenant_credentials,alias:tc"`

	ID                   string     `bun:"id,pk"`
	TenantID             string     `bun:"tenant_id,notnull"`
	Endpoint             string     `bun:"endpoint,notnull"`
	OrganizationSlug     string     `bun:"organization_slug,notnull"`
	Mode                 string     `bun:"mode,notnull"`
	ClientID             string     `bun:"client_id,notnull"`
	SalesChannelClientID string     `bun:"sales_channel_client_id,notnull"`
	Strategy             string     `bun:"strategy,notnull"`
	EncryptedPayload     []byte     `bun:"encrypted_payload,notnull"`
	PayloadFormat        string     `bun:"payload_format,notnull"`
	PayloadVersion       int        `bun:"payload_version,notnull"`
	ExpiresAt            *time.Time `bun:"expires_at,nullzero"`
	Scope                string     `bun:"scope,notnull"`
	Status               string     `bun:"status,notnull"`
	StatusReason         string     `bun:"status_reason,notnull"`
	CreatedAt            time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt            time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type installationRecord struct {
	bun.BaseModel `bun:"table:tenant_installations,alias:ti"`

	ID                  string         `bun:"id,pk"`
	TenantID            string         `bun:"tenant_id,notnull"`
	TeamID              string         `bun:"team_id,notnull"`
	EnterpriseID        string         `bun:"enterprise_id,notnull"`
	IsEnterpriseInstall bool           `bun:"is_enterprise_install,notnull"`
	EncryptedBotToken   []byte         `bun:"encrypted_bot_token,notnull"`
	BotID               string         `bun:"bot_id,notnull"`
	BotUserID           string         `bun:"bot_user_id,notnull"`
	InstallerUserID     string         `bun:"installer_user_id,notnull"`
	Scopes              []string       `bun:"scopes,type:jsonb,notnull"`
	Metadata            map[string]any `bun:"metadata,type:jsonb,notnull"`
	InstalledAt         time.Time      `bun:"installed_at,notnull"`
	CreatedAt           time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
