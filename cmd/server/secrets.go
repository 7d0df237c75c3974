package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blueberrycongee/recall/internal/config"
	"github.com/blueberrycongee/recall/internal/secret"
	"github.com/blueberrycongee/recall/internal/secret/env"
	"github.com/blueberrycongee/recall/internal/secret/vault"
)

// secretResolver resolves env:// and vault:// references in every loaded
// config. The Vault provider is created on first use and rebuilt when its
// address changes.
type secretResolver struct {
	mu        sync.Mutex
	manager   *secret.Manager
	vault     secret.Provider
	vaultAddr string
	logger    *slog.Logger
}

func newSecretResolver(logger *slog.Logger) *secretResolver {
	m := secret.NewManager()
	m.Register("env", env.New())
	return &secretResolver{manager: m, logger: logger}
}

// Resolve implements config.Resolver.
func (s *secretResolver) Resolve(ctx context.Context, cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.Vault.Enabled {
		// Vault credentials may themselves come from the environment.
		if err := s.manager.ResolveAll(ctx, &cfg.Vault.Token, &cfg.Vault.RoleID, &cfg.Vault.SecretID); err != nil {
			return err
		}
		if s.vault == nil || s.vaultAddr != cfg.Vault.Address {
			p, err := vault.New(ctx, cfg.Vault.Config, s.logger)
			if err != nil {
				return fmt.Errorf("init vault: %w", err)
			}
			if s.vault != nil {
				_ = s.vault.Close()
			}
			s.vault = secret.NewCachedProvider(p, cfg.Vault.CacheTTL)
			s.vaultAddr = cfg.Vault.Address
			s.manager.Register("vault", s.vault)
			s.logger.Info("vault secret provider enabled", "address", cfg.Vault.Address)
		}
	}
	return s.manager.ResolveAll(ctx, cfg.SecretFields()...)
}

func (s *secretResolver) Close() {
	if err := s.manager.Close(); err != nil {
		s.logger.Warn("failed to close secret providers", "error", err)
	}
}
