package security

import (
	"context"
	"fmt"

	"github.com/goliatone/go-tenant-sessions/core"
)

// Keyring encrypts with the active key and decrypts with whichever known key
// sealed the envelope, so app keys can be rotated without re-encrypting
// every stored secret first.
type Keyring struct {
	active *AppKeySecretProvider
	keys   map[string]*AppKeySecretProvider
}

func NewKeyring(active *AppKeySecretProvider, retired ...*AppKeySecretProvider) (*Keyring, error) {
	if active == nil {
		return nil, fmt.Errorf("security: active key is required")
	}
	ring := &Keyring{
		active: active,
		keys:   map[string]*AppKeySecretProvider{},
	}
	for _, provider := range append([]*AppKeySecretProvider{active}, retired...) {
		if provider == nil {
			continue
		}
		id := keyringID(provider.KeyID(), provider.Version())
		if _, exists := ring.keys[id]; exists {
			return nil, fmt.Errorf("security: duplicate key %s in keyring", id)
		}
		ring.keys[id] = provider
	}
	return ring, nil
}

func (k *Keyring) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if k == nil || k.active == nil {
		return nil, fmt.Errorf("security: keyring is not configured")
	}
	return k.active.Encrypt(ctx, plaintext)
}

func (k *Keyring) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if k == nil || k.active == nil {
		return nil, fmt.Errorf("security: keyring is not configured")
	}
	meta, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return nil, err
	}
	provider, ok := k.keys[keyringID(meta.KeyID, meta.Version)]
	if !ok {
		return nil, fmt.Errorf("security: no key %s in keyring", keyringID(meta.KeyID, meta.Version))
	}
	return provider.Decrypt(ctx, ciphertext)
}

// NeedsRotation reports whether ciphertext was sealed by a key other than the
// active one.
func (k *Keyring) NeedsRotation(ciphertext []byte) bool {
	if k == nil || k.active == nil {
		return false
	}
	meta, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return false
	}
	return meta.KeyID != k.active.KeyID() || meta.Version != k.active.Version()
}

func keyringID(keyID string, version int) string {
	return fmt.Sprintf("%s@v%d", keyID, version)
}

var _ core.SecretProvider = (*Keyring)(nil)
