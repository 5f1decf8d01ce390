package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/modelroom/modelroom/internal/logger"
)

// Registry holds the engines available to the host. Registration
// cross-checks each engine's declared capability set against the
// extension interfaces it actually implements, so a capability flag
// can be trusted everywhere downstream.
type Registry struct {
	mu       sync.RWMutex
	engines  map[string]Engine
	metadata map[string]Metadata
	logger   *logger.Logger
}

// NewRegistry returns an empty engine registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		engines:  make(map[string]Engine),
		metadata: make(map[string]Metadata),
		logger:   log,
	}
}

// Register adds an engine to the registry.
//
// A capability declared without the matching interface is an error:
// the metadata would promise an operation the host cannot route. The
// reverse, an implemented interface without the flag, keeps the
// capability off and logs a warning, since an undeclared method may be
// intentional scaffolding.
func (r *Registry) Register(e Engine) error {
	if e == nil {
		return fmt.Errorf("engine is nil")
	}

	meta := e.Metadata()
	if err := meta.Validate(); err != nil {
		return err
	}
	if err := r.checkCapabilityContract(e, meta); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.engines[meta.Name]; exists {
		return fmt.Errorf("engine '%s' already registered", meta.Name)
	}

	r.engines[meta.Name] = e
	r.metadata[meta.Name] = meta

	if r.logger != nil {
		r.logger.WithFields(map[string]any{
			"engine":       meta.Name,
			"version":      meta.Version,
			"capabilities": meta.Capabilities.String(),
		}).Info("engine registered")
	}
	return nil
}

// Get retrieves an engine by name.
func (r *Registry) Get(name string) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.engines[name]
	if !exists {
		return nil, ErrEngineNotFound{Name: name}
	}
	return e, nil
}

// Metadata retrieves the registered metadata for an engine.
func (r *Registry) Metadata(name string) (Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, exists := r.metadata[name]
	if !exists {
		return Metadata{}, ErrEngineNotFound{Name: name}
	}
	return meta, nil
}

// Has reports whether the named engine is registered with the given
// capability declared.
func (r *Registry) Has(name string, cap Capability) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, exists := r.metadata[name]
	return exists && meta.Capabilities.Has(cap)
}

// List returns the registered engine names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListMetadata returns the metadata of every registered engine, sorted
// by name.
func (r *Registry) ListMetadata() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Metadata, 0, len(r.metadata))
	for _, meta := range r.metadata {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) checkCapabilityContract(e Engine, meta Metadata) error {
	_, updater := e.(Updater)
	_, describer := e.(Describer)
	_, connector := e.(Connector)

	checks := []struct {
		cap         Capability
		implemented bool
	}{
		{CapUpdate, updater},
		{CapDescribe, describer},
		{CapConnect, connector},
	}
	for _, check := range checks {
		declared := meta.Capabilities.Has(check.cap)
		if declared && !check.implemented {
			return ErrCapabilityContract{Engine: meta.Name, Capability: check.cap}
		}
		if check.implemented && !declared && r.logger != nil {
			r.logger.WithFields(map[string]any{
				"engine":     meta.Name,
				"capability": check.cap.String(),
			}).Warn("engine implements an undeclared capability; it stays disabled")
		}
	}
	return nil
}
