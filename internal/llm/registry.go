package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"pageforge/internal/metrics"
)

var (
	ErrProviderNotRegistered = errors.New("llm: provider is not registered")
	ErrRoleNotConfigured     = errors.New("llm: no model configured for role")
)

// ClientFactory builds a Client for one provider/model pair.
type ClientFactory func(ctx context.Context, model string) (Client, error)

// Registry resolves (preset, role) to a live Client. Providers register a
// factory once; clients are created lazily and cached per provider/model.
type Registry struct {
	presets *PresetTable

	mu        sync.RWMutex
	factories map[string]ClientFactory
	clients   map[string]Client
}

func NewRegistry(presets *PresetTable) *Registry {
	return &Registry{
		presets:   presets,
		factories: map[string]ClientFactory{},
		clients:   map[string]Client{},
	}
}

func clientKey(provider, model string) string {
	// Accept env-style inputs with accidental whitespace and mixed casing.
	return strings.ToLower(strings.TrimSpace(provider)) + "::" + strings.TrimSpace(model)
}

// RegisterProvider installs the factory used for every model of a provider.
func (r *Registry) RegisterProvider(provider string, factory ClientFactory) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" || factory == nil {
		return fmt.Errorf("register provider: name and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[provider] = factory
	return nil
}

// RegisterClient installs a pre-built client for an exact provider/model
// pair, bypassing the factory. Used for fakes in tests.
func (r *Registry) RegisterClient(provider, model string, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[clientKey(provider, model)] = c
}

func (r *Registry) client(ctx context.Context, provider, model string) (Client, error) {
	key := clientKey(provider, model)
	r.mu.RLock()
	c, ok := r.clients[key]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[key]; ok {
		return c, nil
	}
	factory, ok := r.factories[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotRegistered, provider)
	}
	c, err := factory(ctx, strings.TrimSpace(model))
	if err != nil {
		return nil, err
	}
	r.clients[key] = c
	return c, nil
}

// ModelFor reports the model name a preset assigns to a role, or "" when
// the role is not configured.
func (r *Registry) ModelFor(preset string, role Role) string {
	params, ok := r.presets.Resolve(preset, role)
	if !ok {
		return ""
	}
	return params.Model
}

// Invoke resolves the preset/role to a client and performs one generation.
// Temperature and token limits come from the preset unless the request
// already sets them.
func (r *Registry) Invoke(ctx context.Context, preset string, role Role, req Request) (Result, error) {
	params, ok := r.presets.Resolve(preset, role)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrRoleNotConfigured, role)
	}
	c, err := r.client(ctx, params.Provider, params.Model)
	if err != nil {
		return Result{}, err
	}
	if req.Temperature == 0 {
		req.Temperature = params.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = params.MaxTokens
	}
	res, err := c.Generate(ctx, req)
	if err == nil {
		metrics.ModelCallDuration.WithLabelValues(string(role), params.Provider).
			Observe(res.Duration.Seconds())
	}
	return res, err
}

// Close releases every cached client.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, c := range r.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.clients = map[string]Client{}
	return firstErr
}
