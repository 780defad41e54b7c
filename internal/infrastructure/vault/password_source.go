// Package vault resolves service credentials from HashiCorp Vault's KV v2 engine.
package vault

import (
	"context"
	"fmt"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/patrickmn/go-cache"

	"github.com/turtacn/mfagate/internal/config"
	"github.com/turtacn/mfagate/internal/domain/service"
	"github.com/turtacn/mfagate/pkg/errors"
	"github.com/turtacn/mfagate/pkg/logger"
)

const (
	passwordKey      = "password"
	passwordCacheTTL = 5 * time.Minute
)

// PasswordSource reads a password stored under key "password" of a KV v2 secret.
// Reads are cached so that a Vault outage does not immediately break remote logins.
type PasswordSource struct {
	client    *vault.Client
	mountPath string
	secret    string
	cache     *cache.Cache
	log       logger.Logger
	metrics   service.Metrics
}

// NewPasswordSource creates and configures a Vault client for secretPath.
func NewPasswordSource(cfg *config.VaultConfig, secretPath string, log logger.Logger, metrics service.Metrics) (*PasswordSource, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, err
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	if metrics == nil {
		metrics = service.NoopMetrics{}
	}
	mount := cfg.MountPath
	if mount == "" {
		mount = "secret"
	}

	return &PasswordSource{
		client:    client,
		mountPath: mount,
		secret:    secretPath,
		cache:     cache.New(passwordCacheTTL, passwordCacheTTL),
		log:       log,
		metrics:   metrics,
	}, nil
}

// Password returns the cached password or reads it from Vault.
func (p *PasswordSource) Password(ctx context.Context) (string, error) {
	if v, ok := p.cache.Get(p.secret); ok {
		return v.(string), nil
	}

	start := time.Now()
	secret, err := p.client.KVv2(p.mountPath).Get(ctx, p.secret)
	p.metrics.RecordVaultAPI("kv_get", time.Since(start), err)
	if err != nil {
		p.log.Error(ctx, "Failed to read service password from Vault", err, logger.String("path", p.secret))
		return "", errors.Wrap(err, errors.ErrServiceUnavailable)
	}
	if secret == nil || secret.Data == nil {
		return "", errors.ErrNotFound.WithMetadata("path", p.secret)
	}

	password, ok := secret.Data[passwordKey].(string)
	if !ok || password == "" {
		return "", errors.Wrap(fmt.Errorf("key %q missing in %s", passwordKey, p.secret), errors.ErrNotFound)
	}

	p.cache.SetDefault(p.secret, password)
	return password, nil
}
