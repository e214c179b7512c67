// Package vault reads gateway secrets from a HashiCorp Vault KV v2 engine.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/vyrodovalexey/bizgw/internal/config"
	"github.com/vyrodovalexey/bizgw/internal/observability"
)

// DefaultTimeout bounds a single Vault call.
const DefaultTimeout = 10 * time.Second

// Vault errors.
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrKeyNotFound    = errors.New("key not found in secret")
	ErrDisabled       = errors.New("vault is disabled")
)

// Error describes a failed Vault operation.
type Error struct {
	Op    string
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("vault %s %s: %v", e.Op, e.Path, e.Cause)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Client is a token-authenticated Vault client.
type Client struct {
	api     *vaultapi.Client
	logger  observability.Logger
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for cfg. It does not contact Vault.
func New(cfg *config.VaultConfig, opts ...Option) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, ErrDisabled
	}

	apiCfg := vaultapi.DefaultConfig()
	if apiCfg.Error != nil {
		return nil, fmt.Errorf("vault default config: %w", apiCfg.Error)
	}
	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}
	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	apiCfg.Timeout = timeout

	api, err := vaultapi.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}
	if cfg.Token != "" {
		api.SetToken(cfg.Token)
	}

	c := &Client{api: api, logger: observability.NopLogger(), timeout: timeout}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(observability.String("component", "vault"))
	return c, nil
}

// ReadKV returns the latest version of the KV v2 secret at mount/path.
func (c *Client) ReadKV(ctx context.Context, mount, path string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	secret, err := c.api.KVv2(mount).Get(ctx, path)
	if errors.Is(err, vaultapi.ErrSecretNotFound) {
		return nil, &Error{Op: "read", Path: mount + "/" + path, Cause: ErrSecretNotFound}
	}
	if err != nil {
		return nil, &Error{Op: "read", Path: mount + "/" + path, Cause: err}
	}
	if secret == nil || secret.Data == nil {
		return nil, &Error{Op: "read", Path: mount + "/" + path, Cause: ErrSecretNotFound}
	}

	c.logger.Debug("secret read", observability.String("path", mount+"/"+path))
	return secret.Data, nil
}

// SecretString reads one string field of a KV v2 secret.
func (c *Client) SecretString(ctx context.Context, mount, path, key string) (string, error) {
	data, err := c.ReadKV(ctx, mount, path)
	if err != nil {
		return "", err
	}
	v, ok := data[key].(string)
	if !ok || v == "" {
		return "", &Error{Op: "read", Path: mount + "/" + path + "#" + key, Cause: ErrKeyNotFound}
	}
	return v, nil
}
