package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelroom/modelroom/internal/dataset"
	"github.com/modelroom/modelroom/internal/engine"
	"github.com/modelroom/modelroom/internal/evaluate"
	"github.com/modelroom/modelroom/internal/registry"
)

// Training snapshot keys inside a model's artifact namespace. The
// snapshot lets update jobs retrain without the caller resending data
// and lets operators inspect what a model was trained on.
const (
	snapshotDataKey    = "training/data.parquet"
	snapshotColumnsKey = "training/columns.json"
)

func (r *Runner) runCreateJob(rec registry.Record, eng engine.Engine, data *dataset.Frame) {
	defer r.jobs.Done()

	lock := r.lockFor(rec.ID)
	lock.Lock()
	defer lock.Unlock()

	r.workerPool <- struct{}{}
	defer func() { <-r.workerPool }()
	r.monitor.jobStarted()
	defer r.monitor.jobFinished()

	ctx, cancel := context.WithTimeout(context.Background(), r.trainTimeout)
	defer cancel()

	start := time.Now()
	m := r.modelFor(rec, "create")
	m.Log.Info("training job started")

	jobErr := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = engine.NewTrainingError(rec.Name, fmt.Errorf("engine panic: %v", p))
			}
		}()
		if data != nil {
			if err := writeSnapshot(ctx, m.Store, data); err != nil {
				return fmt.Errorf("failed to persist training snapshot: %w", err)
			}
		}
		if err := eng.Create(ctx, m, engine.CreateRequest{Target: rec.Target, Data: data, Args: rec.Args}); err != nil {
			if _, ok := engine.AsEngineError(err); ok {
				return err
			}
			return engine.NewTrainingError(rec.Name, err)
		}
		return nil
	}()

	var scores map[string]float64
	if jobErr == nil && data != nil {
		var scoreErr error
		scores, scoreErr = r.scoreModel(ctx, eng, m, data, rec.Target)
		if scoreErr != nil {
			m.Log.WithFields(map[string]any{"error": scoreErr.Error()}).Warn("failed to score model against its training data")
			scores = nil
		}
	}

	r.finishJob(rec, "create", start, data.NumRows(), scores, jobErr)
}

func (r *Runner) runUpdateJob(rec registry.Record, eng engine.Engine, data *dataset.Frame) {
	defer r.jobs.Done()

	lock := r.lockFor(rec.ID)
	lock.Lock()
	defer lock.Unlock()

	r.workerPool <- struct{}{}
	defer func() { <-r.workerPool }()
	r.monitor.jobStarted()
	defer r.monitor.jobFinished()

	ctx, cancel := context.WithTimeout(context.Background(), r.trainTimeout)
	defer cancel()

	start := time.Now()
	m := r.modelFor(rec, "update")
	m.Log.Info("update job started")

	jobErr := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = engine.NewTrainingError(rec.Name, fmt.Errorf("engine panic: %v", p))
			}
		}()
		if data == nil {
			snapshot, err := readSnapshot(ctx, m.Store)
			if err != nil && !errors.Is(err, engine.ErrArtifactNotFound) {
				return fmt.Errorf("failed to load training snapshot: %w", err)
			}
			// Models registered without data have no snapshot; the
			// engine sees a nil frame then, same as at creation.
			data = snapshot
		} else if err := writeSnapshot(ctx, m.Store, data); err != nil {
			return fmt.Errorf("failed to refresh training snapshot: %w", err)
		}
		updater, ok := eng.(engine.Updater)
		if !ok {
			return engine.NewCapabilityError(rec.Engine, engine.CapUpdate)
		}
		if err := updater.Update(ctx, m, engine.UpdateRequest{Data: data, Args: rec.Args}); err != nil {
			if _, ok := engine.AsEngineError(err); ok {
				return err
			}
			return engine.NewTrainingError(rec.Name, err)
		}
		return nil
	}()

	var scores map[string]float64
	if jobErr == nil && data != nil {
		var scoreErr error
		scores, scoreErr = r.scoreModel(ctx, eng, m, data, rec.Target)
		if scoreErr != nil {
			m.Log.WithFields(map[string]any{"error": scoreErr.Error()}).Warn("failed to score model against its training data")
			scores = nil
		}
	}

	r.finishJob(rec, "update", start, data.NumRows(), scores, jobErr)
}

// finishJob flips the record to its terminal status, refreshes the
// metrics cache and records the operation. The job still holds the
// model's write lock, so the record cannot change underneath it.
func (r *Runner) finishJob(rec registry.Record, op string, start time.Time, rows int, scores map[string]float64, jobErr error) {
	now := time.Now().UTC()
	duration := time.Since(start)

	rec.UpdatedAt = now
	if jobErr != nil {
		rec.Status = registry.StatusError
		rec.Error = jobErr.Error()
	} else {
		rec.Status = registry.StatusComplete
		rec.Error = ""
		rec.TrainedAt = now
		if rows > 0 {
			rec.DataRows = rows
		}
	}
	if err := r.records.Update(rec); err != nil {
		r.log.Error(err, "failed to persist job outcome")
	}

	if r.metrics != nil {
		r.metrics.Set(rec.ID, registry.CachedMetrics{
			Status:   rec.Status,
			LastRun:  now,
			Duration: duration,
			Rows:     rec.DataRows,
			Scores:   scores,
			Error:    rec.Error,
		})
		if err := r.metrics.Save(); err != nil {
			r.log.WithFields(map[string]any{"error": err.Error()}).Warn("failed to persist metrics cache")
		}
	}

	r.monitor.observeOperation(rec.Engine, op, statusLabel(jobErr), duration)

	log := r.log.WithFields(map[string]any{"model": rec.Name, "engine": rec.Engine, "duration": duration.String()})
	if jobErr != nil {
		log.Error(jobErr, op+" job failed")
	} else {
		log.Info(op + " job finished")
	}
}

// scoreModel predicts over the training frame and computes metrics for
// the target column: regression metrics for numeric targets,
// classification metrics otherwise. Failures here never fail the job;
// the model simply has no cached scores.
func (r *Runner) scoreModel(ctx context.Context, eng engine.Engine, m *engine.Model, data *dataset.Frame, target string) (scores map[string]float64, err error) {
	if target == "" {
		return nil, nil
	}
	defer func() {
		if p := recover(); p != nil {
			scores, err = nil, fmt.Errorf("engine panic: %v", p)
		}
	}()

	out, predErr := eng.Predict(ctx, m, engine.PredictRequest{Data: data})
	if predErr != nil {
		return nil, predErr
	}
	if out == nil || !out.HasColumn(target) {
		return nil, fmt.Errorf("prediction frame is missing target column %q", target)
	}

	predVals, truthVals, err := evaluate.Columns(out, data, target)
	if err != nil {
		return nil, err
	}
	if len(predVals) == 0 {
		return nil, fmt.Errorf("no comparable rows between predictions and training data")
	}

	colType, _ := data.ColumnType(target)
	if colType == dataset.TypeNumeric {
		pred, truth := floatPairs(predVals, truthVals)
		if len(pred) == 0 {
			return nil, fmt.Errorf("target values are not numeric")
		}
		return evaluate.Regression(pred, truth)
	}
	pred, truth := stringPairs(predVals, truthVals)
	return evaluate.Classification(pred, truth)
}

// floatPairs keeps the positions where both values convert to float64.
func floatPairs(predVals, truthVals []any) ([]float64, []float64) {
	pred := make([]float64, 0, len(predVals))
	truth := make([]float64, 0, len(truthVals))
	for i := range predVals {
		p, pok := dataset.ToFloat(predVals[i])
		t, tok := dataset.ToFloat(truthVals[i])
		if pok && tok {
			pred = append(pred, p)
			truth = append(truth, t)
		}
	}
	return pred, truth
}

func stringPairs(predVals, truthVals []any) ([]string, []string) {
	pred := make([]string, len(predVals))
	truth := make([]string, len(truthVals))
	for i := range predVals {
		pred[i] = dataset.FormatValue(predVals[i])
		truth[i] = dataset.FormatValue(truthVals[i])
	}
	return pred, truth
}

func writeSnapshot(ctx context.Context, store engine.ArtifactStore, f *dataset.Frame) error {
	var buf bytes.Buffer
	if err := dataset.WriteParquet(&buf, f); err != nil {
		return err
	}
	if err := store.Put(ctx, snapshotDataKey, buf.Bytes()); err != nil {
		return err
	}
	return engine.PutJSON(ctx, store, snapshotColumnsKey, f.Columns())
}

func readSnapshot(ctx context.Context, store engine.ArtifactStore) (*dataset.Frame, error) {
	var cols []dataset.Column
	if err := engine.GetJSON(ctx, store, snapshotColumnsKey, &cols); err != nil {
		return nil, err
	}
	raw, err := store.Get(ctx, snapshotDataKey)
	if err != nil {
		return nil, err
	}
	return dataset.ReadParquet(raw, cols)
}
