package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("unexpected token")
	err := NewParseError("config.yaml", 12, underlying)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "config.yaml", parseErr.Path)
	require.Equal(t, 12, parseErr.Line)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "config.yaml")
}

func TestParseErrorWithoutLine(t *testing.T) {
	t.Parallel()

	err := NewParseError("data.csv", 0, fmt.Errorf("missing header row"))
	require.NotContains(t, err.Error(), ":0:")
	require.Contains(t, err.Error(), "data.csv")
	require.Contains(t, err.Error(), "missing header row")
}

func TestValidationErrorCarriesField(t *testing.T) {
	t.Parallel()

	err := NewValidationError("storage.minio.bucket", "required for the minio storage backend", nil)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "storage.minio.bucket", validationErr.Field)
	require.Contains(t, validationErr.Message, "required")
}

func TestStoreErrorIncludesOperationContext(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("connection refused")
	err := NewStoreError("put", "models/state.json", underlying)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, "put", storeErr.Op)
	require.Equal(t, "models/state.json", storeErr.Key)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "put models/state.json")
}
