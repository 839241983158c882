package providers

import (
	"fmt"
	"sync"

	"github.com/aristath/portfolio-sync/internal/domain"
)

// Constructor builds a Provider bound to one account.
type Constructor func(account domain.Account) (Provider, error)

// Factory maps provider kinds to constructors
type Factory struct {
	mu           sync.RWMutex
	constructors map[domain.ProviderKind]Constructor
}

// NewFactory creates an empty factory. Register provider implementations at startup.
func NewFactory() *Factory {
	return &Factory{constructors: make(map[domain.ProviderKind]Constructor)}
}

// Register binds a provider kind to its constructor, replacing any previous binding.
func (f *Factory) Register(kind domain.ProviderKind, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[kind] = ctor
}

// Supports reports whether kind has a registered constructor.
func (f *Factory) Supports(kind domain.ProviderKind) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.constructors[kind]
	return ok
}

// New returns a Provider for the account, or an error wrapping
// domain.ErrUnsupportedProvider when the account's provider is unknown.
func (f *Factory) New(account domain.Account) (Provider, error) {
	f.mu.RLock()
	ctor, ok := f.constructors[account.Provider]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedProvider, account.Provider)
	}

	p, err := ctor(account)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider for account %d: %w", account.Provider, account.ID, err)
	}
	return p, nil
}
