package engine

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidationErrorCarriesModel(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("target column 'price' not in dataset")
	err := NewValidationError("house-prices", underlying)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "house-prices", validationErr.Subject())
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "validation error for model house-prices")
}

func TestCapabilityErrorHasNoCause(t *testing.T) {
	t.Parallel()

	err := NewCapabilityError("linreg", CapUpdate)

	var capErr *CapabilityError
	require.ErrorAs(t, err, &capErr)
	require.Equal(t, "linreg", capErr.Subject())
	require.Nil(t, capErr.Unwrap())
	require.Equal(t, "engine 'linreg' does not support update", err.Error())
}

func TestTaxonomyIsMatchesByType(t *testing.T) {
	t.Parallel()

	training := NewTrainingError("m", fmt.Errorf("singular matrix"))
	require.True(t, stdErrors.Is(training, &TrainingError{}))
	require.False(t, stdErrors.Is(training, &InferenceError{}))

	inference := NewInferenceError("m", fmt.Errorf("row count mismatch"))
	require.True(t, stdErrors.Is(inference, &InferenceError{}))
	require.False(t, stdErrors.Is(inference, &ValidationError{}))

	connection := NewConnectionError("remote", fmt.Errorf("dial tcp: refused"))
	require.True(t, stdErrors.Is(connection, &ConnectionError{}))
}

func TestAsEngineErrorFindsWrappedTaxonomy(t *testing.T) {
	t.Parallel()

	inner := NewTrainingError("churn", fmt.Errorf("no usable features"))
	wrapped := fmt.Errorf("job failed: %w", inner)

	engineErr, ok := AsEngineError(wrapped)
	require.True(t, ok)
	require.Equal(t, "churn", engineErr.Subject())

	_, ok = AsEngineError(fmt.Errorf("plain"))
	require.False(t, ok)
}

func TestRegistryErrorMessages(t *testing.T) {
	t.Parallel()

	require.Contains(t, ErrEngineNotFound{Name: "ghost"}.Error(), "engine 'ghost' not found")
	require.Contains(t,
		ErrCapabilityContract{Engine: "remote", Capability: CapDescribe}.Error(),
		"declares the describe capability")
}
