package main

import (
	"context"
	"fmt"
	"io"

	"github.com/Gleipnir-Technology/bounce/config"
	"github.com/Gleipnir-Technology/bounce/identity"
)

type identityStore interface {
	identity.Store
	io.Closer
}

func openIdentityStore(ctx context.Context, cfg config.IdentityConfig) (identityStore, error) {
	switch cfg.Store {
	case config.StoreBolt:
		return identity.OpenBoltStore(cfg.Path, 0600)
	case config.StoreRedis:
		return identity.DialRedisStore(ctx, cfg.RedisAddr)
	case config.StoreMemory:
		return identity.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown identity store %q", cfg.Store)
}

// workspaceIdentity returns the identifier forwarded to the upstream, creating
// it on first use. With reset a fresh identifier replaces the stored one.
func workspaceIdentity(ctx context.Context, cfg config.IdentityConfig, reset bool) (identity.Identifier, error) {
	store, err := openIdentityStore(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("open identity store: %w", err)
	}
	defer store.Close()

	provider := identity.NewProvider(store)
	if reset {
		return provider.Reset(ctx)
	}
	return provider.ID(ctx)
}
