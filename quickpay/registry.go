package quickpay

import (
	"fmt"
	"sync"
)

// Registry manages the configured merchant accounts. It replaces the
// cached-singleton-per-processor pattern with an explicit object the
// caller owns and passes around.
type Registry struct {
	accounts map[string]MerchantConfig
	mu       sync.RWMutex
}

// NewRegistry creates an empty merchant account registry.
func NewRegistry() *Registry {
	return &Registry{
		accounts: make(map[string]MerchantConfig),
	}
}

// Register validates and stores a merchant account under a name.
// Re-registering a name replaces the previous configuration.
func (r *Registry) Register(name string, cfg MerchantConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("merchant account %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[name] = cfg
	return nil
}

// Get retrieves a merchant account configuration by name.
func (r *Registry) Get(name string) (MerchantConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, exists := r.accounts[name]
	if !exists {
		return MerchantConfig{}, fmt.Errorf("merchant account %q is not registered", name)
	}
	return cfg, nil
}

// Names returns the names of all registered merchant accounts.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.accounts))
	for name := range r.accounts {
		names = append(names, name)
	}
	return names
}
