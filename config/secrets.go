package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrSecretNotFound is returned when a secret is not set.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore resolves named secrets.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
}

// EnvironmentSecretStore reads secrets from KEY, or from the file named by
// KEY_FILE (Docker and Kubernetes secret mounts).
type EnvironmentSecretStore struct{}

// NewEnvironmentSecretStore creates an environment-backed secret store.
func NewEnvironmentSecretStore() *EnvironmentSecretStore { return &EnvironmentSecretStore{} }

// Get returns the secret or ErrSecretNotFound.
func (s *EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	path := os.Getenv(key + "_FILE")
	if path == "" {
		return "", fmt.Errorf("%s: %w", key, ErrSecretNotFound)
	}
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the operator's environment
	if err != nil {
		return "", fmt.Errorf("failed to read secret file for %s: %w", key, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// GetWithDefault returns the secret, or def when it is missing or unreadable.
func (s *EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return v
}

// LoadSecretsFromEnv fills credentials from the environment secret store.
func (c *Config) LoadSecretsFromEnv(ctx context.Context) error {
	return c.LoadSecrets(ctx, NewEnvironmentSecretStore())
}

// LoadSecrets fills credentials from store. Missing secrets keep the current
// value; unreadable secret files are errors.
func (c *Config) LoadSecrets(ctx context.Context, store SecretStore) error {
	targets := []struct {
		key string
		set func(string)
	}{
		{"RATEKIT_REDIS_PASSWORD", func(v string) { c.Storage.Redis.Password = v }},
		{"RATEKIT_SQL_DSN", func(v string) { c.Storage.SQL.DSN = v }},
		{"RATEKIT_ANALYTICS_EXPORT_API_KEY", func(v string) { c.Analytics.ExportAPIKey = v }},
		{"RATEKIT_SECURITY_API_KEYS", func(v string) {
			keys := strings.Split(v, ",")
			for i := range keys {
				keys[i] = strings.TrimSpace(keys[i])
			}
			c.Security.APIKeys = keys
		}},
	}
	for _, t := range targets {
		v, err := store.Get(ctx, t.key)
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		t.set(v)
	}
	return nil
}
