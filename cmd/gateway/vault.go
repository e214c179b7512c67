package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vyrodovalexey/bizgw/internal/config"
	"github.com/vyrodovalexey/bizgw/internal/observability"
	"github.com/vyrodovalexey/bizgw/internal/retry"
	"github.com/vyrodovalexey/bizgw/internal/vault"
)

// Vault defaults for the signing secret location.
const (
	defaultVaultMount = "secret"
	defaultVaultKey   = "secret"
)

// signingSecret returns the JWT signing secret: from Vault when enabled,
// from configuration otherwise. Vault reads are retried while Vault is
// unreachable; a missing secret fails at once. The gateway never falls
// back to the configured secret.
func signingSecret(ctx context.Context, cfg config.JWTConfig, logger observability.Logger) (string, error) {
	if cfg.Vault == nil || !cfg.Vault.Enabled {
		return cfg.Secret, nil
	}

	client, err := vault.New(cfg.Vault, vault.WithLogger(logger))
	if err != nil {
		return "", fmt.Errorf("failed to create vault client: %w", err)
	}

	mount := cfg.Vault.Mount
	if mount == "" {
		mount = defaultVaultMount
	}
	key := cfg.Vault.Key
	if key == "" {
		key = defaultVaultKey
	}

	var secret string
	err = retry.Do(ctx, retry.Config{MaxRetries: 3, InitialBackoff: time.Second}, func(ctx context.Context) error {
		var readErr error
		secret, readErr = client.SecretString(ctx, mount, cfg.Vault.Path, key)
		return readErr
	}, retry.Options{
		ShouldRetry: func(err error) bool {
			return !errors.Is(err, vault.ErrSecretNotFound) && !errors.Is(err, vault.ErrKeyNotFound)
		},
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			logger.Warn("vault read failed, retrying",
				observability.Int("attempt", attempt),
				observability.Duration("backoff", backoff),
				observability.Error(err),
			)
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to read signing secret: %w", err)
	}

	logger.Info("signing secret loaded from vault",
		observability.String("mount", mount),
		observability.String("path", cfg.Vault.Path),
	)
	return secret, nil
}
