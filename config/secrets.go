package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrSecretNotFound is returned when a store has no value for a key.
var ErrSecretNotFound = errors.New("secret not found")

// SecretRefPrefix marks a config value that must be resolved from a SecretStore,
// e.g. "secret://TRAVELKIT_DB_PASSWORD".
const SecretRefPrefix = "secret://"

// SecretStore resolves named secrets.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
}

// EnvironmentSecretStore reads secrets from process environment variables.
type EnvironmentSecretStore struct{}

func NewEnvironmentSecretStore() *EnvironmentSecretStore { return &EnvironmentSecretStore{} }

func (s *EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return v, nil
}

// GetWithDefault returns def when key is unset.
func (s *EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return v
}

// ResolveSecrets replaces every secret:// reference in the sensitive fields of c.
func (c *Config) ResolveSecrets(ctx context.Context, store SecretStore) error {
	fields := []*string{
		&c.Storage.SQL.DSN,
		&c.Storage.Redis.Password,
		&c.Webhooks.Secret,
		&c.Analytics.ExportAPIKey,
	}
	for i := range c.Security.APIKeys {
		fields = append(fields, &c.Security.APIKeys[i])
	}
	for _, f := range fields {
		name, ok := strings.CutPrefix(*f, SecretRefPrefix)
		if !ok {
			continue
		}
		v, err := store.Get(ctx, name)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", name, err)
		}
		*f = v
	}
	return nil
}
