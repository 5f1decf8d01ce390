package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrArtifactNotFound is returned by ArtifactStore.Get for keys that
// were never written.
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStore is the per-model persistence handle handed to engines.
// Keys are relative, slash-separated paths inside the model's own
// namespace; an engine never sees another model's artifacts.
// Implementations are safe for concurrent use.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// List returns the keys under prefix, sorted. An empty prefix lists
	// every artifact the model owns.
	List(ctx context.Context, prefix string) ([]string, error)
}

// PutJSON marshals v and stores it under key.
func PutJSON(ctx context.Context, store ArtifactStore, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact %s: %w", key, err)
	}
	return store.Put(ctx, key, data)
}

// GetJSON loads the artifact under key and unmarshals it into v.
func GetJSON(ctx context.Context, store ArtifactStore, key string, v any) error {
	data, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode artifact %s: %w", key, err)
	}
	return nil
}
