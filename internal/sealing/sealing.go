// Package sealing encrypts stored snapshots and event payloads at rest.
package sealing

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/hashicorp/vault/api"
)

// Sealer seals and opens payloads. aad binds a payload to its owner
// (the assignment id) so sealed rows cannot be swapped between assignments.
type Sealer interface {
	Seal(ctx context.Context, plaintext []byte, aad string) ([]byte, error)
	Open(ctx context.Context, sealed []byte, aad string) ([]byte, error)
}

// Plain stores payloads unchanged
type Plain struct{}

func (Plain) Seal(_ context.Context, plaintext []byte, _ string) ([]byte, error) {
	return plaintext, nil
}

func (Plain) Open(_ context.Context, sealed []byte, _ string) ([]byte, error) {
	return sealed, nil
}

// vaultPrefix marks transit ciphertext
var vaultPrefix = []byte("vault:")

// Config holds Vault transit settings
type Config struct {
	Address      string
	Token        string
	TransitMount string
	KeyName      string
}

// VaultSealer uses the Vault transit engine with a derived key
type VaultSealer struct {
	client       *api.Client
	transitMount string
	keyName      string
}

// NewVaultSealer connects to Vault, mounts transit if needed and makes sure
// the key exists
func NewVaultSealer(ctx context.Context, cfg Config) (*VaultSealer, error) {
	config := api.DefaultConfig()
	config.Address = cfg.Address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	s := &VaultSealer{
		client:       client,
		transitMount: cfg.TransitMount,
		keyName:      cfg.KeyName,
	}
	if s.transitMount == "" {
		s.transitMount = "transit"
	}
	if s.keyName == "" {
		s.keyName = "review-flow"
	}

	if err := s.initTransitEngine(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize transit engine: %w", err)
	}
	if err := s.ensureKey(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *VaultSealer) initTransitEngine(ctx context.Context) error {
	mounts, err := s.client.Sys().ListMountsWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to list mounts: %w", err)
	}
	if _, exists := mounts[s.transitMount+"/"]; exists {
		return nil
	}

	err = s.client.Sys().MountWithContext(ctx, s.transitMount, &api.MountInput{
		Type:        "transit",
		Description: "Transit encryption for review-flow",
	})
	if err != nil {
		return fmt.Errorf("failed to mount transit engine: %w", err)
	}
	return nil
}

// ensureKey creates the key; writing an existing key is a no-op in Vault
func (s *VaultSealer) ensureKey(ctx context.Context) error {
	path := fmt.Sprintf("%s/keys/%s", s.transitMount, s.keyName)
	data := map[string]interface{}{
		"type":       "aes256-gcm96",
		"exportable": false,
		"derived":    true,
	}
	if _, err := s.client.Logical().WriteWithContext(ctx, path, data); err != nil {
		return fmt.Errorf("failed to create key %s: %w", s.keyName, err)
	}
	return nil
}

// Seal encrypts plaintext with aad as the key derivation context
func (s *VaultSealer) Seal(ctx context.Context, plaintext []byte, aad string) ([]byte, error) {
	path := fmt.Sprintf("%s/encrypt/%s", s.transitMount, s.keyName)
	data := map[string]interface{}{
		"plaintext": base64.StdEncoding.EncodeToString(plaintext),
		"context":   base64.StdEncoding.EncodeToString([]byte(aad)),
	}

	secret, err := s.client.Logical().WriteWithContext(ctx, path, data)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt: %w", err)
	}
	if secret == nil {
		return nil, fmt.Errorf("empty encrypt response")
	}
	ciphertext, ok := secret.Data["ciphertext"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid ciphertext response")
	}
	return []byte(ciphertext), nil
}

// Open decrypts a sealed payload. Payloads written before sealing was
// enabled are returned unchanged.
func (s *VaultSealer) Open(ctx context.Context, sealed []byte, aad string) ([]byte, error) {
	if !bytes.HasPrefix(sealed, vaultPrefix) {
		return sealed, nil
	}

	path := fmt.Sprintf("%s/decrypt/%s", s.transitMount, s.keyName)
	data := map[string]interface{}{
		"ciphertext": string(sealed),
		"context":    base64.StdEncoding.EncodeToString([]byte(aad)),
	}

	secret, err := s.client.Logical().WriteWithContext(ctx, path, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	if secret == nil {
		return nil, fmt.Errorf("empty decrypt response")
	}
	encoded, ok := secret.Data["plaintext"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid plaintext response")
	}
	plaintext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode plaintext: %w", err)
	}
	return plaintext, nil
}

// Health checks that Vault is reachable and unsealed
func (s *VaultSealer) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := s.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if !health.Initialized {
		return fmt.Errorf("vault is not initialized")
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}
