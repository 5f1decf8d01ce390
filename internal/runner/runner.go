// Package runner hosts registered engines and drives the lifecycle of
// their models: training, prediction, updates, description and removal.
//
// Concurrency policy: every model is guarded by its own RWMutex. Read
// operations (Predict, Describe) take the read lock and may run
// concurrently with each other. Create, update and delete take the
// write lock, so at most one mutation runs per model while reads and
// mutations of other models proceed. Training and update jobs run
// asynchronously on a bounded worker pool and never block the caller;
// callers observe progress through the model record's status field.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelroom/modelroom/internal/dataset"
	"github.com/modelroom/modelroom/internal/engine"
	"github.com/modelroom/modelroom/internal/logger"
	"github.com/modelroom/modelroom/internal/registry"
	"github.com/modelroom/modelroom/internal/storage"
)

const (
	defaultWorkers      = 4
	defaultTrainTimeout = 10 * time.Minute
)

// Options configures a Runner. Engines, Records and Storage are
// required; everything else has a working default.
type Options struct {
	Engines      *engine.Registry
	Records      registry.Store
	Storage      storage.Provider
	Metrics      *registry.MetricsCache
	Monitor      Monitor
	Logger       *logger.Logger
	Workers      int
	TrainTimeout time.Duration
}

// Runner coordinates engines, the model record store and artifact
// storage behind a single API surface.
type Runner struct {
	engines *engine.Registry
	records registry.Store
	store   storage.Provider
	metrics *registry.MetricsCache
	monitor Monitor
	log     *logger.Logger

	trainTimeout time.Duration
	workerPool   chan struct{}

	mu    sync.Mutex
	locks map[string]*sync.RWMutex

	jobs   sync.WaitGroup
	closed atomic.Bool
}

// New validates the options and builds a Runner.
func New(opts Options) (*Runner, error) {
	if opts.Engines == nil {
		return nil, fmt.Errorf("engine registry is required")
	}
	if opts.Records == nil {
		return nil, fmt.Errorf("model record store is required")
	}
	if opts.Storage == nil {
		return nil, fmt.Errorf("artifact storage provider is required")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	timeout := opts.TrainTimeout
	if timeout <= 0 {
		timeout = defaultTrainTimeout
	}
	return &Runner{
		engines:      opts.Engines,
		records:      opts.Records,
		store:        opts.Storage,
		metrics:      opts.Metrics,
		monitor:      opts.Monitor,
		log:          opts.Logger,
		trainTimeout: timeout,
		workerPool:   make(chan struct{}, workers),
		locks:        make(map[string]*sync.RWMutex),
	}, nil
}

// CreateModelRequest describes a new model. Data may be nil for
// engines that train against external state at registration time; when
// Data is present, Target must name one of its columns.
type CreateModelRequest struct {
	Name   string
	Engine string
	Target string
	Data   *dataset.Frame
	Args   engine.Args
}

// PredictRequest carries the rows to predict for plus optional
// per-call arguments that the engine may honor.
type PredictRequest struct {
	Data *dataset.Frame
	Args engine.Args
}

// UpdateModelRequest retrains an existing model. A nil Data reuses the
// training snapshot persisted at creation time; Args are merged over
// the arguments the model was created with.
type UpdateModelRequest struct {
	Data *dataset.Frame
	Args engine.Args
}

// CreateModel validates the request, persists a record in status
// "generating" and schedules the training job. The returned record is
// the pending one; poll Model (or call Wait in tests) to observe the
// final status. The runner takes ownership of req.Data.
func (r *Runner) CreateModel(ctx context.Context, req CreateModelRequest) (registry.Record, error) {
	if r.closed.Load() {
		return registry.Record{}, fmt.Errorf("runner is closed")
	}
	if err := registry.ValidateModelName(req.Name); err != nil {
		return registry.Record{}, engine.NewValidationError(req.Name, err)
	}
	meta, err := r.engines.Metadata(req.Engine)
	if err != nil {
		return registry.Record{}, engine.NewValidationError(req.Name, err)
	}
	if req.Data != nil {
		if req.Target == "" {
			return registry.Record{}, engine.NewValidationError(req.Name, fmt.Errorf("target column is required when training data is provided"))
		}
		if !req.Data.HasColumn(req.Target) {
			return registry.Record{}, engine.NewValidationError(req.Name, fmt.Errorf("target column %q not found in training data", req.Target))
		}
		if req.Data.NumRows() == 0 {
			return registry.Record{}, engine.NewValidationError(req.Name, fmt.Errorf("training data has no rows"))
		}
	}
	if err := req.Args.Validate(meta.Args); err != nil {
		return registry.Record{}, engine.NewValidationError(req.Name, err)
	}
	args := req.Args.ApplyDefaults(meta.Args)

	rec := registry.NewRecord(req.Name, req.Engine, req.Target, args)
	rec.DataRows = req.Data.NumRows()
	if err := r.records.Add(rec); err != nil {
		if errors.Is(err, registry.ErrDuplicateName{}) {
			return registry.Record{}, engine.NewValidationError(req.Name, err)
		}
		return registry.Record{}, err
	}

	eng, err := r.engines.Get(req.Engine)
	if err != nil {
		return registry.Record{}, err
	}
	r.jobs.Add(1)
	go r.runCreateJob(rec, eng, req.Data)
	return rec, nil
}

// Predict runs the named model over req.Data and returns the
// prediction frame. The model must be in status "complete".
func (r *Runner) Predict(ctx context.Context, name string, req PredictRequest) (*dataset.Frame, error) {
	rec, err := r.records.GetByName(name)
	if err != nil {
		return nil, err
	}
	if rec.Status != registry.StatusComplete {
		return nil, engine.NewValidationError(name, fmt.Errorf("model is not ready for predictions (status: %s)", rec.Status))
	}
	if req.Data == nil || req.Data.NumRows() == 0 {
		return nil, engine.NewValidationError(name, fmt.Errorf("prediction input has no rows"))
	}
	eng, err := r.engines.Get(rec.Engine)
	if err != nil {
		return nil, err
	}

	lock := r.lockFor(rec.ID)
	lock.RLock()
	defer lock.RUnlock()

	start := time.Now()
	m := r.modelFor(rec, "predict")
	out, err := r.callPredict(ctx, eng, m, req)
	if err == nil {
		err = validatePredictionFrame(out, req.Data, rec.Target)
		if err != nil {
			err = engine.NewInferenceError(name, err)
		}
	}
	r.monitor.observeOperation(rec.Engine, "predict", statusLabel(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	r.monitor.observePredictionRows(rec.Engine, out.NumRows())
	return out, nil
}

func (r *Runner) callPredict(ctx context.Context, eng engine.Engine, m *engine.Model, req PredictRequest) (out *dataset.Frame, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, engine.NewInferenceError(m.Name, fmt.Errorf("engine panic: %v", p))
		}
	}()
	out, err = eng.Predict(ctx, m, engine.PredictRequest{Data: req.Data, Args: req.Args})
	if err != nil {
		if _, ok := engine.AsEngineError(err); !ok {
			err = engine.NewInferenceError(m.Name, err)
		}
		return nil, err
	}
	return out, nil
}

// UpdateModel merges the new arguments over the stored ones, flips the
// record to status "updating" and schedules the update job. The engine
// must declare the update capability. A nil req.Data retrains from the
// persisted training snapshot.
func (r *Runner) UpdateModel(ctx context.Context, name string, req UpdateModelRequest) (registry.Record, error) {
	if r.closed.Load() {
		return registry.Record{}, fmt.Errorf("runner is closed")
	}
	rec, err := r.records.GetByName(name)
	if err != nil {
		return registry.Record{}, err
	}
	if !r.engines.Has(rec.Engine, engine.CapUpdate) {
		return registry.Record{}, engine.NewCapabilityError(rec.Engine, engine.CapUpdate)
	}
	if rec.Status != registry.StatusComplete {
		return registry.Record{}, engine.NewValidationError(name, fmt.Errorf("model cannot be updated (status: %s)", rec.Status))
	}
	meta, err := r.engines.Metadata(rec.Engine)
	if err != nil {
		return registry.Record{}, err
	}
	args := rec.Args.Clone()
	if args == nil && len(req.Args) > 0 {
		args = engine.Args{}
	}
	for k, v := range req.Args {
		args[k] = v
	}
	if err := args.Validate(meta.Args); err != nil {
		return registry.Record{}, engine.NewValidationError(name, err)
	}
	if req.Data != nil {
		if rec.Target != "" && !req.Data.HasColumn(rec.Target) {
			return registry.Record{}, engine.NewValidationError(name, fmt.Errorf("target column %q not found in update data", rec.Target))
		}
		if req.Data.NumRows() == 0 {
			return registry.Record{}, engine.NewValidationError(name, fmt.Errorf("update data has no rows"))
		}
	}
	eng, err := r.engines.Get(rec.Engine)
	if err != nil {
		return registry.Record{}, err
	}

	rec.Status = registry.StatusUpdating
	rec.Args = args
	rec.UpdatedAt = time.Now().UTC()
	if err := r.records.Update(rec); err != nil {
		return registry.Record{}, err
	}
	r.jobs.Add(1)
	go r.runUpdateJob(rec, eng, req.Data)
	return rec, nil
}

// Describe returns the engine's view of the named model. The engine
// must declare the describe capability and the model must be complete.
// An empty attribute asks for the default "info" facet.
func (r *Runner) Describe(ctx context.Context, name, attribute string) (*dataset.Frame, error) {
	rec, err := r.records.GetByName(name)
	if err != nil {
		return nil, err
	}
	if !r.engines.Has(rec.Engine, engine.CapDescribe) {
		return nil, engine.NewCapabilityError(rec.Engine, engine.CapDescribe)
	}
	if rec.Status != registry.StatusComplete {
		return nil, engine.NewValidationError(name, fmt.Errorf("model cannot be described (status: %s)", rec.Status))
	}
	eng, err := r.engines.Get(rec.Engine)
	if err != nil {
		return nil, err
	}
	describer, ok := eng.(engine.Describer)
	if !ok {
		return nil, engine.NewCapabilityError(rec.Engine, engine.CapDescribe)
	}
	if attribute == "" {
		attribute = "info"
	}

	lock := r.lockFor(rec.ID)
	lock.RLock()
	defer lock.RUnlock()

	start := time.Now()
	m := r.modelFor(rec, "describe")
	out, err := describer.Describe(ctx, m, attribute)
	if err != nil {
		if _, ok := engine.AsEngineError(err); !ok {
			err = engine.NewInferenceError(name, err)
		}
	} else if out == nil {
		err = engine.NewInferenceError(name, fmt.Errorf("engine returned no description"))
	}
	r.monitor.observeOperation(rec.Engine, "describe", statusLabel(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Connect checks the named engine's connection to its backing service.
// The engine must declare the connect capability.
func (r *Runner) Connect(ctx context.Context, engineName string, args engine.Args) error {
	if _, err := r.engines.Metadata(engineName); err != nil {
		return err
	}
	if !r.engines.Has(engineName, engine.CapConnect) {
		return engine.NewCapabilityError(engineName, engine.CapConnect)
	}
	eng, err := r.engines.Get(engineName)
	if err != nil {
		return err
	}
	connector, ok := eng.(engine.Connector)
	if !ok {
		return engine.NewCapabilityError(engineName, engine.CapConnect)
	}

	start := time.Now()
	err = connector.Connect(ctx, args)
	if err != nil {
		if _, ok := engine.AsEngineError(err); !ok {
			err = engine.NewConnectionError(engineName, err)
		}
	}
	r.monitor.observeOperation(engineName, "connect", statusLabel(err), time.Since(start))
	return err
}

// DeleteModel removes the record, drops the model's artifacts and
// invalidates cached metrics. It waits for any running job on the
// model before removing anything.
func (r *Runner) DeleteModel(ctx context.Context, name string) error {
	rec, err := r.records.GetByName(name)
	if err != nil {
		return err
	}

	lock := r.lockFor(rec.ID)
	lock.Lock()
	defer func() {
		lock.Unlock()
		r.dropLock(rec.ID)
	}()

	if err := r.records.Remove(rec.ID); err != nil {
		return err
	}
	dropErr := r.store.Drop(ctx, rec.ID)
	if dropErr != nil {
		r.log.WithFields(map[string]any{"model": rec.Name, "error": dropErr.Error()}).Warn("failed to drop model artifacts")
	}
	if r.metrics != nil {
		r.metrics.Invalidate(rec.ID)
		if err := r.metrics.Save(); err != nil {
			r.log.WithFields(map[string]any{"error": err.Error()}).Warn("failed to persist metrics cache")
		}
	}
	r.monitor.observeOperation(rec.Engine, "delete", statusLabel(dropErr), 0)
	return dropErr
}

// Model returns the record for the named model.
func (r *Runner) Model(name string) (registry.Record, error) {
	return r.records.GetByName(name)
}

// Models lists every model record ordered by creation time.
func (r *Runner) Models() ([]registry.Record, error) {
	return r.records.List()
}

// Engines lists the metadata of every registered engine.
func (r *Runner) Engines() []engine.Metadata {
	return r.engines.ListMetadata()
}

// ModelMetrics returns the cached outcome of the model's last training
// or update run, if one is recorded.
func (r *Runner) ModelMetrics(id string) (registry.CachedMetrics, bool) {
	if r.metrics == nil {
		return registry.CachedMetrics{}, false
	}
	return r.metrics.Get(id)
}

// Stats summarizes the runner for status endpoints.
type Stats struct {
	Models      int            `json:"models"`
	ByStatus    map[string]int `json:"by_status"`
	Engines     int            `json:"engines"`
	JobsRunning int            `json:"jobs_running"`
}

// Stats counts models by status and reports worker occupancy.
func (r *Runner) Stats() (Stats, error) {
	records, err := r.records.List()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		Models:      len(records),
		ByStatus:    make(map[string]int),
		Engines:     len(r.engines.List()),
		JobsRunning: len(r.workerPool),
	}
	for _, rec := range records {
		stats.ByStatus[string(rec.Status)]++
	}
	return stats, nil
}

// Wait blocks until every scheduled job has finished.
func (r *Runner) Wait() {
	r.jobs.Wait()
}

// Close stops accepting new jobs and waits for running ones.
func (r *Runner) Close() error {
	r.closed.Store(true)
	r.jobs.Wait()
	return nil
}

func (r *Runner) lockFor(id string) *sync.RWMutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[id]
	if !ok {
		lock = &sync.RWMutex{}
		r.locks[id] = lock
	}
	return lock
}

func (r *Runner) dropLock(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.locks, id)
}

func (r *Runner) modelFor(rec registry.Record, op string) *engine.Model {
	log := r.log.WithFields(map[string]any{"model": rec.Name, "engine": rec.Engine, "op": op})
	return &engine.Model{
		ID:     rec.ID,
		Name:   rec.Name,
		Engine: rec.Engine,
		Target: rec.Target,
		Store:  r.store.ForModel(rec.ID),
		Log:    log,
	}
}

func validatePredictionFrame(out, in *dataset.Frame, target string) error {
	if out == nil {
		return fmt.Errorf("engine returned no prediction frame")
	}
	if out.NumRows() != in.NumRows() {
		return fmt.Errorf("prediction has %d rows for %d input rows", out.NumRows(), in.NumRows())
	}
	if target != "" && !out.HasColumn(target) {
		return fmt.Errorf("prediction frame is missing target column %q", target)
	}
	return nil
}
