// Package identity issues and persists a stable user identifier.
//
// The identifier lives in an injected key-value Store rather than in process
// globals, so the same code runs against a bbolt file, a shared redis or an
// in-memory map under test.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// DefaultKey is the store key holding the identifier.
const DefaultKey = "userId"

var (
	ErrEmptyIdentifier = errors.New("identifier is empty")
	ErrStoreClosed     = errors.New("store is closed")
)

type Identifier string

func (i Identifier) String() string {
	return string(i)
}

// Store is a string key-value persistence capability.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// CreateStore is implemented by stores that can create a value atomically.
// SetIfAbsent stores value unless key already holds one, and returns whatever
// key holds afterwards.
type CreateStore interface {
	SetIfAbsent(ctx context.Context, key, value string) (string, error)
}

// New generates a fresh random identifier.
func New() Identifier {
	return Identifier(uuid.NewString())
}

// GetOrCreate returns the identifier stored under DefaultKey, generating and
// persisting one on first use.
func GetOrCreate(ctx context.Context, store Store) (Identifier, error) {
	return getOrCreate(ctx, store, DefaultKey)
}

func getOrCreate(ctx context.Context, store Store, key string) (Identifier, error) {
	if cs, ok := store.(CreateStore); ok {
		v, err := cs.SetIfAbsent(ctx, key, New().String())
		if err != nil {
			return "", fmt.Errorf("create identifier: %w", err)
		}
		return Identifier(v), nil
	}
	v, ok, err := store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read identifier: %w", err)
	}
	if ok && v != "" {
		return Identifier(v), nil
	}
	id := New()
	if err := store.Set(ctx, key, id.String()); err != nil {
		return "", fmt.Errorf("persist identifier: %w", err)
	}
	return id, nil
}

// Provider is a getter/setter pair over a Store. The identifier is read from
// the store once and cached.
type Provider struct {
	key   string
	mu    sync.Mutex
	id    Identifier
	store Store
}

func NewProvider(store Store) *Provider {
	return &Provider{
		key:   DefaultKey,
		store: store,
	}
}

func (p *Provider) ID(ctx context.Context) (Identifier, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.id != "" {
		return p.id, nil
	}
	id, err := getOrCreate(ctx, p.store, p.key)
	if err != nil {
		return "", err
	}
	p.id = id
	return id, nil
}

// SetID replaces the identifier and persists it.
func (p *Provider) SetID(ctx context.Context, id Identifier) error {
	if id == "" {
		return ErrEmptyIdentifier
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.Set(ctx, p.key, id.String()); err != nil {
		return fmt.Errorf("persist identifier: %w", err)
	}
	p.id = id
	return nil
}

// Reset generates a new identifier and persists it.
func (p *Provider) Reset(ctx context.Context) (Identifier, error) {
	id := New()
	if err := p.SetID(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}
