package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/tee-secure-signer/interfaces"
)

// VaultStore keeps values in a HashiCorp Vault KV v2 mount, one secret per key.
type VaultStore struct {
	client    *api.Client
	mountPath string
	dataPath  string
	log       *slog.Logger
}

// NewVaultStore creates a Vault store.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - token: Vault token; empty means the client picks up VAULT_TOKEN
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: path within the mount (e.g. "signer")
func NewVaultStore(address, token, mountPath, dataPath string, log *slog.Logger) (*VaultStore, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.HttpClient = &http.Client{Timeout: 30 * time.Second}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	return &VaultStore{
		client:    client,
		mountPath: strings.Trim(mountPath, "/"),
		dataPath:  strings.Trim(dataPath, "/"),
		log:       log,
	}, nil
}

func (s *VaultStore) Get(ctx context.Context, key string) (string, error) {
	path := s.secretPath("data", key)

	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		s.log.Error("Failed to read from Vault", slog.String("path", path), "err", err)
		return "", fmt.Errorf("failed to read from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", interfaces.ErrNotFound
	}

	// KV v2 returns a nil data map for soft-deleted versions
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok || data == nil {
		return "", interfaces.ErrNotFound
	}

	value, ok := data["value"].(string)
	if !ok {
		return "", fmt.Errorf("invalid value format in Vault secret %s", path)
	}
	return value, nil
}

func (s *VaultStore) Put(ctx context.Context, key string, value string) error {
	path := s.secretPath("data", key)

	_, err := s.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"data": map[string]interface{}{
			"value": value,
		},
	})
	if err != nil {
		s.log.Error("Failed to write to Vault", slog.String("path", path), "err", err)
		return fmt.Errorf("failed to write to Vault: %w", err)
	}
	return nil
}

// Delete removes the secret together with all of its versions.
func (s *VaultStore) Delete(ctx context.Context, key string) error {
	path := s.secretPath("metadata", key)

	if _, err := s.client.Logical().DeleteWithContext(ctx, path); err != nil {
		s.log.Error("Failed to delete from Vault", slog.String("path", path), "err", err)
		return fmt.Errorf("failed to delete from Vault: %w", err)
	}
	return nil
}

func (s *VaultStore) Name() string {
	return fmt.Sprintf("vault-%s-%s", s.mountPath, s.dataPath)
}

func (s *VaultStore) secretPath(kind, key string) string {
	if s.dataPath == "" {
		return fmt.Sprintf("%s/%s/%s", s.mountPath, kind, key)
	}
	return fmt.Sprintf("%s/%s/%s/%s", s.mountPath, kind, s.dataPath, key)
}
