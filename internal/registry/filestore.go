package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileStore manages model record persistence in a single JSON file
type FileStore struct {
	path    string
	mu      sync.RWMutex
	version string
	records []Record
}

// NewFileStore creates a new FileStore instance and loads it from disk
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		version: "1.0",
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	// Load existing registry or start with an empty one
	if err := s.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		s.records = []Record{}
	}

	return s, nil
}

// load reads the registry from disk
func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var file RegistryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse registry: %w", err)
	}

	s.version = file.Version
	s.records = file.Models

	return nil
}

// persistLocked writes the registry to disk atomically. Callers must hold the
// write lock.
func (s *FileStore) persistLocked() error {
	file := RegistryFile{
		Version: s.version,
		Models:  s.records,
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	// Write to temporary file first
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath) // Clean up temp file on failure
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

// Add inserts a new record and persists the registry
func (s *FileStore) Add(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records {
		if existing.ID == rec.ID {
			return fmt.Errorf("record with ID %s already exists", rec.ID)
		}
		if existing.Name == rec.Name {
			return ErrDuplicateName{Name: rec.Name}
		}
	}

	s.records = append(s.records, rec)
	return s.persistLocked()
}

// Get retrieves a record by ID
func (s *FileStore) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.ID == id {
			return rec, nil
		}
	}

	return Record{}, ErrRecordNotFound{Key: id}
}

// GetByName retrieves a record by model name
func (s *FileStore) GetByName(name string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.Name == name {
			return rec, nil
		}
	}

	return Record{}, ErrRecordNotFound{Key: name}
}

// List returns all records ordered by creation time
func (s *FileStore) List() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Return a copy to prevent external modification
	result := make([]Record, len(s.records))
	copy(result, s.records)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Update replaces an existing record and persists the registry
func (s *FileStore) Update(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.records {
		if existing.ID == rec.ID {
			s.records[i] = rec
			return s.persistLocked()
		}
	}

	return ErrRecordNotFound{Key: rec.ID}
}

// Remove deletes a record and persists the registry
func (s *FileStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rec := range s.records {
		if rec.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return s.persistLocked()
		}
	}

	return ErrRecordNotFound{Key: id}
}

// Close implements Store. A FileStore holds no open resources.
func (s *FileStore) Close() error {
	return nil
}
