package engine

import (
	"errors"
	"fmt"
)

// ErrEngineNotFound is returned when the requested engine is not
// registered.
type ErrEngineNotFound struct {
	Name string
}

func (e ErrEngineNotFound) Error() string {
	return fmt.Sprintf("engine '%s' not found in registry\nHint: list registered engines with their metadata to see what is available", e.Name)
}

// ErrCapabilityContract is returned at registration time when an
// engine's declared capability set disagrees with the interfaces it
// implements.
type ErrCapabilityContract struct {
	Engine     string
	Capability Capability
}

func (e ErrCapabilityContract) Error() string {
	return fmt.Sprintf(
		"engine '%s' declares the %s capability but does not implement it\nHint: implement the extension interface or drop the flag from Metadata.Capabilities",
		e.Engine,
		e.Capability,
	)
}

// EngineError is the base interface for the adapter error taxonomy.
// The host uses it to classify failures without inspecting messages.
type EngineError interface {
	error
	// Subject names what the error concerns: a model name for
	// validation, training, and inference errors, an engine name for
	// capability and connection errors.
	Subject() string
	Unwrap() error
}

// ValidationError reports a malformed request: unknown model or
// engine, a target column missing from the dataset, bad arguments, or
// an operation against a model that is not ready.
type ValidationError struct {
	Model string
	Err   error
}

// NewValidationError creates a new ValidationError.
func NewValidationError(model string, err error) *ValidationError {
	return &ValidationError{Model: model, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return "validation error for model " + e.Model
	}
	return "validation error for model " + e.Model + ": " + e.Err.Error()
}

// Subject returns the model the error concerns.
func (e *ValidationError) Subject() string { return e.Model }

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error { return e.Err }

// Is checks if this error matches another ValidationError.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// CapabilityError reports an operation outside the engine's declared
// capability set. The engine method is never invoked.
type CapabilityError struct {
	Engine     string
	Capability Capability
}

// NewCapabilityError creates a new CapabilityError.
func NewCapabilityError(engineName string, cap Capability) *CapabilityError {
	return &CapabilityError{Engine: engineName, Capability: cap}
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("engine '%s' does not support %s", e.Engine, e.Capability)
}

// Subject returns the engine the error concerns.
func (e *CapabilityError) Subject() string { return e.Engine }

// Unwrap returns nil; capability errors have no cause.
func (e *CapabilityError) Unwrap() error { return nil }

// Is checks if this error matches another CapabilityError.
func (e *CapabilityError) Is(target error) bool {
	_, ok := target.(*CapabilityError)
	return ok
}

// TrainingError reports a create or update that failed inside the
// engine. The model record ends up in the error status with this
// message.
type TrainingError struct {
	Model string
	Err   error
}

// NewTrainingError creates a new TrainingError.
func NewTrainingError(model string, err error) *TrainingError {
	return &TrainingError{Model: model, Err: err}
}

func (e *TrainingError) Error() string {
	if e.Err == nil {
		return "training error for model " + e.Model
	}
	return "training error for model " + e.Model + ": " + e.Err.Error()
}

// Subject returns the model the error concerns.
func (e *TrainingError) Subject() string { return e.Model }

// Unwrap returns the underlying error.
func (e *TrainingError) Unwrap() error { return e.Err }

// Is checks if this error matches another TrainingError.
func (e *TrainingError) Is(target error) bool {
	_, ok := target.(*TrainingError)
	return ok
}

// InferenceError reports a failed prediction: the engine itself
// failed, required feature columns were absent, or the returned frame
// violated the prediction-table contract.
type InferenceError struct {
	Model string
	Err   error
}

// NewInferenceError creates a new InferenceError.
func NewInferenceError(model string, err error) *InferenceError {
	return &InferenceError{Model: model, Err: err}
}

func (e *InferenceError) Error() string {
	if e.Err == nil {
		return "inference error for model " + e.Model
	}
	return "inference error for model " + e.Model + ": " + e.Err.Error()
}

// Subject returns the model the error concerns.
func (e *InferenceError) Subject() string { return e.Model }

// Unwrap returns the underlying error.
func (e *InferenceError) Unwrap() error { return e.Err }

// Is checks if this error matches another InferenceError.
func (e *InferenceError) Is(target error) bool {
	_, ok := target.(*InferenceError)
	return ok
}

// ConnectionError reports an unreachable external service or rejected
// credentials.
type ConnectionError struct {
	Engine string
	Err    error
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(engineName string, err error) *ConnectionError {
	return &ConnectionError{Engine: engineName, Err: err}
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return "connection error for engine " + e.Engine
	}
	return "connection error for engine " + e.Engine + ": " + e.Err.Error()
}

// Subject returns the engine the error concerns.
func (e *ConnectionError) Subject() string { return e.Engine }

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error { return e.Err }

// Is checks if this error matches another ConnectionError.
func (e *ConnectionError) Is(target error) bool {
	_, ok := target.(*ConnectionError)
	return ok
}

// AsEngineError attempts to find a taxonomy error in err's chain.
func AsEngineError(err error) (EngineError, bool) {
	var engineErr EngineError
	if errors.As(err, &engineErr) {
		return engineErr, true
	}
	return nil, false
}
