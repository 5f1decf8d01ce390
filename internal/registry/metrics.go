package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MetricsCache persists the last training outcome per model between sessions.
// Listings and the dashboard read it to show scores without opening artifact
// storage.
type MetricsCache struct {
	path    string
	mu      sync.RWMutex
	version string
	entries map[string]CachedMetrics
}

// NewMetricsCache creates a new MetricsCache instance and loads it from disk
func NewMetricsCache(path string) (*MetricsCache, error) {
	c := &MetricsCache{
		path:    path,
		version: "1.0",
		entries: make(map[string]CachedMetrics),
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Load existing cache or start with empty one
	if err := c.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return c, nil
}

// Load reads the cache from disk
func (c *MetricsCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}

	var file MetricsCacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse cache: %w", err)
	}

	c.version = file.Version
	c.entries = file.Entries
	if c.entries == nil {
		c.entries = make(map[string]CachedMetrics)
	}

	return nil
}

// Save writes the cache to disk atomically
func (c *MetricsCache) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	file := MetricsCacheFile{
		Version: c.version,
		Entries: c.entries,
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	// Write to temporary file first
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, c.path); err != nil {
		_ = os.Remove(tmpPath) // Clean up temp file on failure
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

// Get retrieves cached metrics for a model
func (c *MetricsCache) Get(modelID string) (CachedMetrics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[modelID]
	return entry, ok
}

// Set updates the cached metrics for a model
func (c *MetricsCache) Set(modelID string, entry CachedMetrics) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[modelID] = entry
	return nil
}

// Invalidate removes cached metrics for a model
func (c *MetricsCache) Invalidate(modelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, modelID)
	return nil
}

// InvalidateAll removes all cached metrics
func (c *MetricsCache) InvalidateAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]CachedMetrics)
	return nil
}
