package provider

import (
	"fmt"
	"log/slog"
	"sync"

	"leasebot/internal/config"
	"leasebot/internal/domain"
)

// Constructor is a function that creates a provider from a config entry.
type Constructor func(pc config.ProviderConfig, logger *slog.Logger) domain.Provider

// Factory creates and caches LLM providers from config.
type Factory struct {
	cfg          *config.Config
	logger       *slog.Logger
	constructors map[string]Constructor
	cache        map[string]domain.Provider
	mu           sync.RWMutex
}

// NewFactory creates a provider factory with the built-in constructors registered.
func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	f := &Factory{
		cfg:          cfg,
		logger:       logger,
		constructors: make(map[string]Constructor),
		cache:        make(map[string]domain.Provider),
	}
	f.registerDefaults()
	return f
}

// RegisterConstructor adds (or replaces) a provider constructor by name.
func (f *Factory) RegisterConstructor(name string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[name] = ctor
}

func (f *Factory) registerDefaults() {
	f.constructors["openai"] = func(pc config.ProviderConfig, logger *slog.Logger) domain.Provider {
		return NewOpenAI(OpenAIConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.DefaultModel, Logger: logger})
	}
	f.constructors["ollama"] = func(pc config.ProviderConfig, logger *slog.Logger) domain.Provider {
		return NewOllama(OllamaConfig{APIBase: pc.APIBase, DefaultModel: pc.DefaultModel, Logger: logger})
	}
}

// Get returns the provider with the given name, or the default if name is
// empty. Created providers are cached so the same instance is reused.
// Uses double-check locking to avoid TOCTOU races.
func (f *Factory) Get(name string) (domain.Provider, error) {
	if name == "" {
		name = f.cfg.General.DefaultProvider
	}

	f.mu.RLock()
	if p, ok := f.cache[name]; ok {
		f.mu.RUnlock()
		return p, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.cache[name]; ok {
		return p, nil
	}

	pc, ok := f.cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	if !pc.Enabled {
		return nil, fmt.Errorf("provider %q is disabled", name)
	}
	ctor, ok := f.constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider type %q", name)
	}

	p := ctor(pc, f.logger)
	f.cache[name] = p
	return p, nil
}

// Default resolves the configured default provider, honoring the failover
// chain when one is configured.
func (f *Factory) Default() (domain.Provider, error) {
	chain := f.cfg.General.FailoverChain
	if len(chain) == 0 {
		return f.Get("")
	}

	var providers []domain.Provider
	for _, name := range chain {
		p, err := f.Get(name)
		if err != nil {
			f.logger.Warn("skipping provider in failover chain", "provider", name, "err", err)
			continue
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no usable provider in failover chain %v", chain)
	}
	if len(providers) == 1 {
		return providers[0], nil
	}
	return NewFailover(providers, f.logger), nil
}
