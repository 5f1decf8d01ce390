// Package storage provides the artifact backends behind the per-model
// stores handed to engines. A Provider owns the shared backend (a
// directory tree or an object-store bucket) and carves out one namespace
// per model.
package storage

import (
	"context"

	"github.com/modelroom/modelroom/internal/engine"
)

// Provider hands out per-model artifact stores over a shared backend.
type Provider interface {
	// ForModel returns the artifact store scoped to the given model ID.
	// The store is valid until Drop is called for the same ID.
	ForModel(id string) engine.ArtifactStore

	// Drop removes every artifact the model owns.
	Drop(ctx context.Context, id string) error

	// Ping verifies the backend is reachable and writable.
	Ping(ctx context.Context) error
}
