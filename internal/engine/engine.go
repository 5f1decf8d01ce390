// Package engine defines the adapter contract between the modelroom
// host and the machine-learning engines plugged into it. An engine
// wraps one ML framework or remote service behind a uniform surface:
// create a model for a target column, predict with it, and optionally
// update, describe, or connect.
//
// Engines hold no host state of their own. Everything a model needs at
// prediction time must be written through the Model's artifact store
// during Create, and engines log only through the injected logger.
package engine

import (
	"context"

	"github.com/modelroom/modelroom/internal/dataset"
	"github.com/modelroom/modelroom/internal/logger"
)

// Engine is the mandatory adapter surface. Implementations must be
// safe for concurrent use across distinct models; the host serializes
// mutations per model.
type Engine interface {
	// Metadata reports identity, version, declared capabilities and
	// well-known arguments. It must be constant for the lifetime of
	// the engine.
	Metadata() Metadata

	// Create trains or registers a model. A nil req.Data means
	// registration-only: the engine records configuration (typically
	// endpoint arguments) without training. Everything needed for
	// later Predict calls must be persisted through m.Store.
	Create(ctx context.Context, m *Model, req CreateRequest) error

	// Predict produces a prediction frame for the input. It must not
	// mutate model state: the host treats it as read-only and may run
	// predictions concurrently. The returned frame must preserve the
	// input's row count and order and contain the target column.
	Predict(ctx context.Context, m *Model, req PredictRequest) (*dataset.Frame, error)
}

// Updater is implemented by engines that can refresh an existing model
// with new data or arguments. The model keeps its identity.
type Updater interface {
	Update(ctx context.Context, m *Model, req UpdateRequest) error
}

// Describer is implemented by engines that can report model facets.
// Unrecognized or empty attributes yield the default "info" facet.
// Describe is read-only.
type Describer interface {
	Describe(ctx context.Context, m *Model, attribute string) (*dataset.Frame, error)
}

// Connector is implemented by engines backed by an external service.
// Connect validates reachability and credentials; it is idempotent and
// safe to call repeatedly.
type Connector interface {
	Connect(ctx context.Context, args Args) error
}

// Model is the runtime handle for one model, assembled by the host for
// every engine call. Store is scoped to this model's namespace and Log
// carries the model and operation fields.
type Model struct {
	ID     string
	Name   string
	Target string
	Engine string
	Store  ArtifactStore
	Log    *logger.Logger
}

// CreateRequest carries the inputs of a create operation.
type CreateRequest struct {
	Target string
	// Data is the training frame, or nil for registration-only.
	Data *dataset.Frame
	Args Args
}

// PredictRequest carries the inputs of a predict operation.
type PredictRequest struct {
	Data *dataset.Frame
	Args Args
}

// UpdateRequest carries the inputs of an update operation. When the
// caller supplies no new data the host fills Data with the stored
// training snapshot, so engines see nil only for models that were
// registered without data.
type UpdateRequest struct {
	Data *dataset.Frame
	Args Args
}
