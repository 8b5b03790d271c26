package credaudit

import (
	"context"
	"fmt"
	"sync"
)

// Capability represents a feature supported by a provider.
type Capability string

const (
	// CapabilitySource indicates the provider can list credentials.
	CapabilitySource Capability = "source"
	// CapabilityDisable indicates the provider can disable credentials.
	CapabilityDisable Capability = "disable"
	// CapabilityDelete indicates the provider can delete credentials.
	CapabilityDelete Capability = "delete"
)

// Provider is the base interface for identity provider implementations.
type Provider interface {
	// Service returns the provider identifier.
	Service() Service

	// Capabilities returns the features supported by this provider.
	Capabilities() []Capability

	// HasCapability checks if the provider supports a specific capability.
	HasCapability(cap Capability) bool
}

// ProviderFactory creates provider instances. Factories let providers
// defer credential/API-client construction until configuration is known.
type ProviderFactory interface {
	// Create creates a new provider instance with the given configuration.
	Create(ctx context.Context, config map[string]interface{}) (Provider, error)
}

// Registry manages provider registration and discovery.
// It provides thread-safe access to registered providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[Service]Provider
	factories map[Service]ProviderFactory
}

// DefaultRegistry is the global provider registry.
// Provider packages register their factories via init() functions.
var DefaultRegistry = NewRegistry()

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[Service]Provider),
		factories: make(map[Service]ProviderFactory),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	service := p.Service()
	if _, exists := r.providers[service]; exists {
		return fmt.Errorf("provider already registered: %s", service)
	}

	r.providers[service] = p
	return nil
}

// RegisterFactory adds a provider factory to the registry.
// This is typically called from provider package init() functions.
func (r *Registry) RegisterFactory(service Service, f ProviderFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[service]; exists {
		return fmt.Errorf("provider factory already registered: %s", service)
	}

	r.factories[service] = f
	return nil
}

// Get retrieves a registered provider by service.
func (r *Registry) Get(service Service) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.providers[service]
	if !exists {
		return nil, ErrNotFound("provider", string(service))
	}
	return p, nil
}

// GetOrCreate retrieves a provider or creates one using its factory.
func (r *Registry) GetOrCreate(ctx context.Context, service Service, config map[string]interface{}) (Provider, error) {
	r.mu.RLock()
	p, exists := r.providers[service]
	r.mu.RUnlock()

	if exists {
		return p, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if p, exists = r.providers[service]; exists {
		return p, nil
	}

	factory, exists := r.factories[service]
	if !exists {
		return nil, ErrNotFound("provider or factory", string(service))
	}

	p, err := factory.Create(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %s: %w", service, err)
	}

	r.providers[service] = p
	return p, nil
}

// GetSource retrieves a provider that can list credentials.
func (r *Registry) GetSource(service Service) (CredentialSource, error) {
	p, err := r.Get(service)
	if err != nil {
		return nil, err
	}

	src, ok := p.(CredentialSource)
	if !ok || !p.HasCapability(CapabilitySource) {
		return nil, fmt.Errorf("provider %s cannot list credentials", service)
	}
	return src, nil
}

// GetActionClient retrieves a provider that can perform lifecycle actions.
func (r *Registry) GetActionClient(service Service) (ActionClient, error) {
	p, err := r.Get(service)
	if err != nil {
		return nil, err
	}

	client, ok := p.(ActionClient)
	if !ok {
		return nil, fmt.Errorf("provider %s cannot perform lifecycle actions", service)
	}
	return client, nil
}

// List returns all registered provider services.
func (r *Registry) List() []Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	services := make([]Service, 0, len(r.providers))
	for service := range r.providers {
		services = append(services, service)
	}
	return services
}

// ListFactories returns the services for which a factory is registered.
func (r *Registry) ListFactories() []Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	services := make([]Service, 0, len(r.factories))
	for service := range r.factories {
		services = append(services, service)
	}
	return services
}

// Unregister removes a provider from the registry.
// This is mainly useful for testing.
func (r *Registry) Unregister(service Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, service)
}

// Clear removes all providers and factories from the registry.
// This is mainly useful for testing.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = make(map[Service]Provider)
	r.factories = make(map[Service]ProviderFactory)
}

// Global convenience functions that use DefaultRegistry

// Register adds a provider to the default registry.
func Register(p Provider) error {
	return DefaultRegistry.Register(p)
}

// RegisterFactory adds a provider factory to the default registry.
func RegisterFactory(service Service, f ProviderFactory) error {
	return DefaultRegistry.RegisterFactory(service, f)
}

// GetProvider retrieves a provider from the default registry.
func GetProvider(service Service) (Provider, error) {
	return DefaultRegistry.Get(service)
}

// ProviderInfo contains metadata about a registered provider.
type ProviderInfo struct {
	Service      Service
	Capabilities []Capability
	IsSource     bool
	IsActions    bool
}

// DescribeProviders returns detailed info about all registered providers.
func DescribeProviders() []ProviderInfo {
	registry := DefaultRegistry
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	var infos []ProviderInfo
	for service, p := range registry.providers {
		info := ProviderInfo{
			Service:      service,
			Capabilities: p.Capabilities(),
		}
		_, info.IsSource = p.(CredentialSource)
		_, info.IsActions = p.(ActionClient)
		infos = append(infos, info)
	}
	return infos
}
