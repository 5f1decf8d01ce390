package registry

import "fmt"

// ErrRecordNotFound is returned when no record matches the given ID or name.
type ErrRecordNotFound struct {
	Key string
}

func (e ErrRecordNotFound) Error() string {
	return fmt.Sprintf("model record not found: %s", e.Key)
}

func (e ErrRecordNotFound) Is(target error) bool {
	_, ok := target.(ErrRecordNotFound)
	return ok
}

// ErrDuplicateName is returned when a record with the same model name is
// already registered. Model names are the user-facing key and must be unique.
type ErrDuplicateName struct {
	Name string
}

func (e ErrDuplicateName) Error() string {
	return fmt.Sprintf("model with name '%s' already exists", e.Name)
}

func (e ErrDuplicateName) Is(target error) bool {
	_, ok := target.(ErrDuplicateName)
	return ok
}
