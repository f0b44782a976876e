package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	CredentialPayloadFormatJSONV1 = "tenant_secrets_json"
	CredentialPayloadVersionV1    = 1
)

// CredentialSecrets is the secret part of a tenant record, persisted
// encrypted. Everything else is stored in plain columns.
type CredentialSecrets struct {
	ClientSecret string
	AccessToken  string
	RefreshToken string
	BotToken     string
}

func SecretsFromCredentials(credentials CommerceCredentials) CredentialSecrets {
	return CredentialSecrets{
		ClientSecret: strings.TrimSpace(credentials.ClientSecret),
		AccessToken:  strings.TrimSpace(credentials.AccessToken),
		RefreshToken: strings.TrimSpace(credentials.RefreshToken),
	}
}

func (s CredentialSecrets) ApplyTo(credentials CommerceCredentials) CommerceCredentials {
	credentials.ClientSecret = s.ClientSecret
	credentials.AccessToken = s.AccessToken
	credentials.RefreshToken = s.RefreshToken
	return credentials
}

func (s CredentialSecrets) IsEmpty() bool {
	return s.ClientSecret == "" && s.AccessToken == "" && s.RefreshToken == "" && s.BotToken == ""
}

type JSONCredentialCodec struct{}

func (JSONCredentialCodec) Format() string {
	return CredentialPayloadFormatJSONV1
}

func (JSONCredentialCodec) Version() int {
	return CredentialPayloadVersionV1
}

type jsonCredentialPayload struct {
	ClientSecret string `json:"client_secret,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	BotToken     string `json:"bot_token,omitempty"`
}

func (JSONCredentialCodec) Encode(secrets CredentialSecrets) ([]byte, error) {
	encoded, err := json.Marshal(jsonCredentialPayload{
		ClientSecret: strings.TrimSpace(secrets.ClientSecret),
		AccessToken:  strings.TrimSpace(secrets.AccessToken),
		RefreshToken: strings.TrimSpace(secrets.RefreshToken),
		BotToken:     strings.TrimSpace(secrets.BotToken),
	})
	if err != nil {
		return nil, fmt.Errorf("core: encode credential payload: %w", err)
	}
	return encoded, nil
}

func (JSONCredentialCodec) Decode(raw []byte) (CredentialSecrets, error) {
	if len(raw) == 0 {
		return CredentialSecrets{}, fmt.Errorf("core: credential payload is empty")
	}
	decoded := jsonCredentialPayload{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return CredentialSecrets{}, fmt.Errorf("core: decode credential payload: %w", err)
	}
	return CredentialSecrets{
		ClientSecret: strings.TrimSpace(decoded.ClientSecret),
		AccessToken:  strings.TrimSpace(decoded.AccessToken),
		RefreshToken: strings.TrimSpace(decoded.RefreshToken),
		BotToken:     strings.TrimSpace(decoded.BotToken),
	}, nil
}
