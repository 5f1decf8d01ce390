package registry

// Store persists model records. The host keeps exactly one store open and
// serializes writes per model, so implementations only need to be safe for
// concurrent readers plus independent writers.
type Store interface {
	// Add inserts a new record. It fails with ErrDuplicateName when another
	// record already uses the same model name.
	Add(rec Record) error

	// Get returns the record with the given ID, or ErrRecordNotFound.
	Get(id string) (Record, error)

	// GetByName returns the record with the given model name, or
	// ErrRecordNotFound.
	GetByName(name string) (Record, error)

	// List returns all records ordered by creation time.
	List() ([]Record, error)

	// Update replaces the record with the same ID, or returns
	// ErrRecordNotFound.
	Update(rec Record) error

	// Remove deletes the record with the given ID, or returns
	// ErrRecordNotFound.
	Remove(id string) error

	// Close releases any resources held by the store.
	Close() error
}
