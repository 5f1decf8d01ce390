package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modelroom/modelroom/internal/engine"
	pkgerrors "github.com/modelroom/modelroom/pkg/errors"
)

// FSProvider stores artifacts on the local filesystem under
// <root>/models/<id>/<key>. It is the default backend for single-node
// setups.
type FSProvider struct {
	root string
}

// NewFSProvider creates the root directory if needed and returns a
// filesystem-backed provider.
func NewFSProvider(root string) (*FSProvider, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root cannot be empty")
	}
	if err := os.MkdirAll(filepath.Join(root, "models"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FSProvider{root: root}, nil
}

// ForModel returns the artifact store scoped to one model directory.
func (p *FSProvider) ForModel(id string) engine.ArtifactStore {
	return &fsStore{dir: p.modelDir(id)}
}

// Drop removes the model's directory and everything in it.
func (p *FSProvider) Drop(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.RemoveAll(p.modelDir(id)); err != nil {
		return pkgerrors.NewStoreError("drop", id, err)
	}
	return nil
}

// Ping verifies the root directory exists and is writable.
func (p *FSProvider) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	probe := filepath.Join(p.root, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return pkgerrors.NewStoreError("ping", p.root, err)
	}
	return os.Remove(probe)
}

func (p *FSProvider) modelDir(id string) string {
	return filepath.Join(p.root, "models", id)
}

// fsStore implements engine.ArtifactStore over one model directory.
type fsStore struct {
	dir string
}

func (s *fsStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return pkgerrors.NewStoreError("put", key, err)
	}

	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return pkgerrors.NewStoreError("put", key, err)
	}

	// Write to a temporary file first, then rename for atomicity.
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return pkgerrors.NewStoreError("put", key, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return pkgerrors.NewStoreError("put", key, err)
	}
	return nil
}

func (s *fsStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, pkgerrors.NewStoreError("get", key, err)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pkgerrors.NewStoreError("get", key, engine.ErrArtifactNotFound)
		}
		return nil, pkgerrors.NewStoreError("get", key, err)
	}
	return data, nil
}

func (s *fsStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return pkgerrors.NewStoreError("delete", key, err)
	}

	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return pkgerrors.NewStoreError("delete", key, err)
	}
	return nil
}

func (s *fsStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := filepath.WalkDir(s.dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(s.dir, path)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, pkgerrors.NewStoreError("list", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// validateKey rejects keys that would escape the model's namespace.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("artifact key cannot be empty")
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("artifact key %q must be relative", key)
	}
	if strings.Contains(key, "\\") {
		return fmt.Errorf("artifact key %q must use forward slashes", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("artifact key %q contains an invalid path element", key)
		}
	}
	return nil
}
