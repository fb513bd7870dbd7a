package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrSecretNotFound is returned when a secret has no value.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore resolves named secrets.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetWithDefault(ctx context.Context, key, def string) string
}

// EnvironmentSecretStore reads secrets from environment variables.
// A KEY_FILE variable pointing at a file is honored when KEY itself is unset.
type EnvironmentSecretStore struct{}

func NewEnvironmentSecretStore() *EnvironmentSecretStore { return &EnvironmentSecretStore{} }

func (EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, nil
	}
	if path := os.Getenv(key + "_FILE"); path != "" {
		b, err := os.ReadFile(path) // #nosec G304 - operator supplied secret path
		if err != nil {
			return "", fmt.Errorf("read secret %s: %w", key, err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
}

func (s EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return v
}

// LoadSecrets fills credentials that should not live in config files.
func LoadSecrets(ctx context.Context, cfg *Config, store SecretStore) {
	cfg.Storage.SQL.DSN = store.GetWithDefault(ctx, "ECOREWARDS_SQL_DSN", cfg.Storage.SQL.DSN)
	cfg.Storage.Redis.Password = store.GetWithDefault(ctx, "ECOREWARDS_REDIS_PASSWORD", cfg.Storage.Redis.Password)
	cfg.Storage.Mongo.URI = store.GetWithDefault(ctx, "ECOREWARDS_MONGO_URI", cfg.Storage.Mongo.URI)
	if keys, err := store.Get(ctx, "ECOREWARDS_SECURITY_API_KEYS"); err == nil {
		cfg.Security.APIKeys = nil
		for _, k := range strings.Split(keys, ",") {
			if k = strings.TrimSpace(k); k != "" {
				cfg.Security.APIKeys = append(cfg.Security.APIKeys, k)
			}
		}
	}
}

// LoadSecretsFromEnv is LoadSecrets backed by the environment.
func LoadSecretsFromEnv(ctx context.Context, cfg *Config) {
	LoadSecrets(ctx, cfg, NewEnvironmentSecretStore())
}
