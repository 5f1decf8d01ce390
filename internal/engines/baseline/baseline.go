// Package baseline implements the built-in reference engine: a constant
// predictor answering the mean of a numeric target or the majority
// class of anything else. It exists to exercise the whole adapter
// contract with no ML machinery behind it.
package baseline

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/modelroom/modelroom/internal/dataset"
	"github.com/modelroom/modelroom/internal/engine"
	"github.com/modelroom/modelroom/internal/evaluate"
)

const stateKey = "state.json"

// Engine is the baseline adapter. Stateless; everything model-specific
// lives in the model's artifact store.
type Engine struct{}

// New returns the baseline engine.
func New() *Engine { return &Engine{} }

func (e *Engine) Metadata() engine.Metadata {
	return engine.Metadata{
		Name:         "baseline",
		Version:      "1.0.0",
		Description:  "Constant predictor: target mean for numeric targets, majority class otherwise.",
		Capabilities: engine.BaseCapabilities | engine.CapUpdate | engine.CapDescribe,
		Args: []engine.ArgSpec{
			{Key: "band", Type: engine.ArgFloat, Default: 1.0, Doc: "half-width of the numeric prediction interval, in standard deviations"},
		},
	}
}

// state carries running aggregates so updates can fold new rows in
// without revisiting old ones.
type state struct {
	Target     string             `json:"target"`
	TargetType dataset.Type       `json:"target_type"`
	Features   []dataset.Column   `json:"features,omitempty"`
	Rows       int                `json:"rows"`
	Band       float64            `json:"band"`
	Sum        float64            `json:"sum,omitempty"`
	SumSquares float64            `json:"sum_squares,omitempty"`
	Counts     map[string]int     `json:"counts,omitempty"`
	Scores     map[string]float64 `json:"scores,omitempty"`
}

func (s *state) numeric() bool { return s.TargetType == dataset.TypeNumeric }

func (s *state) mean() float64 {
	if s.Rows == 0 {
		return 0
	}
	return s.Sum / float64(s.Rows)
}

func (s *state) stddev() float64 {
	if s.Rows == 0 {
		return 0
	}
	mean := s.mean()
	variance := s.SumSquares/float64(s.Rows) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// majority returns the most frequent class and its share, breaking ties
// alphabetically so predictions stay deterministic.
func (s *state) majority() (string, float64) {
	best := ""
	bestCount := -1
	total := 0
	keys := make([]string, 0, len(s.Counts))
	for k := range s.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		total += s.Counts[k]
		if s.Counts[k] > bestCount {
			best, bestCount = k, s.Counts[k]
		}
	}
	if total == 0 {
		return best, 0
	}
	return best, float64(bestCount) / float64(total)
}

func (e *Engine) Create(ctx context.Context, m *engine.Model, req engine.CreateRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.Data == nil {
		return engine.NewValidationError(m.Name, fmt.Errorf("baseline engine requires training data"))
	}
	clean, err := dataset.DropMissingTarget(req.Data, req.Target)
	if err != nil {
		return engine.NewValidationError(m.Name, err)
	}
	if clean.NumRows() == 0 {
		return engine.NewValidationError(m.Name, fmt.Errorf("no rows carry a value for target %q", req.Target))
	}

	targetType, _ := clean.ColumnType(req.Target)
	s := &state{
		Target:     req.Target,
		TargetType: targetType,
		Band:       req.Args.FloatOr("band", 1.0),
	}
	for _, col := range clean.Columns() {
		if col.Name == req.Target || dataset.IsExplanationColumn(col.Name, req.Target) {
			continue
		}
		s.Features = append(s.Features, col)
	}

	if err := s.absorb(clean); err != nil {
		return engine.NewTrainingError(m.Name, err)
	}
	s.Scores = e.score(s, clean)

	if err := engine.PutJSON(ctx, m.Store, stateKey, s); err != nil {
		return engine.NewTrainingError(m.Name, err)
	}
	m.Log.WithFields(map[string]any{"rows": s.Rows, "strategy": s.strategy()}).Info("baseline model trained")
	return nil
}

func (e *Engine) Predict(ctx context.Context, m *engine.Model, req engine.PredictRequest) (*dataset.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Data == nil {
		return nil, engine.NewValidationError(m.Name, fmt.Errorf("prediction input is required"))
	}
	s, err := e.loadState(ctx, m)
	if err != nil {
		return nil, err
	}

	n := req.Data.NumRows()
	out := req.Data.Clone()

	if s.numeric() {
		mean, sd := s.mean(), s.stddev()
		confidence := math.Erf(s.Band / math.Sqrt2)
		lower, upper := mean-s.Band*sd, mean+s.Band*sd

		out, err = withConstant(out, dataset.Column{Name: s.Target, Type: dataset.TypeNumeric}, n, mean)
		if err == nil {
			out, err = withConstant(out, dataset.Column{Name: s.Target + dataset.ConfidenceSuffix, Type: dataset.TypeNumeric}, n, confidence)
		}
		if err == nil {
			out, err = withConstant(out, dataset.Column{Name: s.Target + dataset.LowerSuffix, Type: dataset.TypeNumeric}, n, lower)
		}
		if err == nil {
			out, err = withConstant(out, dataset.Column{Name: s.Target + dataset.UpperSuffix, Type: dataset.TypeNumeric}, n, upper)
		}
		if err != nil {
			return nil, engine.NewInferenceError(m.Name, err)
		}
		return out, nil
	}

	class, share := s.majority()
	out, err = withConstant(out, dataset.Column{Name: s.Target, Type: s.TargetType}, n, class)
	if err == nil {
		out, err = withConstant(out, dataset.Column{Name: s.Target + dataset.ConfidenceSuffix, Type: dataset.TypeNumeric}, n, share)
	}
	if err != nil {
		return nil, engine.NewInferenceError(m.Name, err)
	}
	return out, nil
}

// Update folds the new rows into the running aggregates; old rows are
// never revisited.
func (e *Engine) Update(ctx context.Context, m *engine.Model, req engine.UpdateRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.Data == nil {
		return engine.NewValidationError(m.Name, fmt.Errorf("baseline engine requires data to update"))
	}
	s, err := e.loadState(ctx, m)
	if err != nil {
		return err
	}
	clean, err := dataset.DropMissingTarget(req.Data, s.Target)
	if err != nil {
		return engine.NewValidationError(m.Name, err)
	}
	if clean.NumRows() == 0 {
		return engine.NewValidationError(m.Name, fmt.Errorf("no rows carry a value for target %q", s.Target))
	}
	if targetType, _ := clean.ColumnType(s.Target); targetType != s.TargetType {
		return engine.NewTrainingError(m.Name, fmt.Errorf("target %q is %s here but the model was trained on %s", s.Target, targetType, s.TargetType))
	}

	s.Band = req.Args.FloatOr("band", s.Band)
	if err := s.absorb(clean); err != nil {
		return engine.NewTrainingError(m.Name, err)
	}
	s.Scores = e.score(s, clean)

	if err := engine.PutJSON(ctx, m.Store, stateKey, s); err != nil {
		return engine.NewTrainingError(m.Name, err)
	}
	m.Log.WithFields(map[string]any{"rows": s.Rows, "merged": clean.NumRows()}).Info("baseline model updated")
	return nil
}

func (e *Engine) Describe(ctx context.Context, m *engine.Model, attribute string) (*dataset.Frame, error) {
	s, err := e.loadState(ctx, m)
	if err != nil {
		return nil, err
	}

	switch attribute {
	case "features":
		out, err := dataset.New(
			dataset.Column{Name: "name", Type: dataset.TypeText},
			dataset.Column{Name: "type", Type: dataset.TypeText},
		)
		if err != nil {
			return nil, engine.NewInferenceError(m.Name, err)
		}
		for _, col := range s.Features {
			if err := out.AppendRow(col.Name, string(col.Type)); err != nil {
				return nil, engine.NewInferenceError(m.Name, err)
			}
		}
		return out, nil

	case "model":
		pairs := [][2]string{{"strategy", s.strategy()}}
		if s.numeric() {
			pairs = append(pairs,
				[2]string{"mean", dataset.FormatValue(s.mean())},
				[2]string{"stddev", dataset.FormatValue(s.stddev())},
				[2]string{"band", dataset.FormatValue(s.Band)},
			)
		} else {
			class, share := s.majority()
			pairs = append(pairs,
				[2]string{"class", class},
				[2]string{"share", dataset.FormatValue(share)},
				[2]string{"classes", dataset.FormatValue(float64(len(s.Counts)))},
			)
		}
		return kvFrame(m.Name, "property", pairs)

	case "evaluation":
		out, err := dataset.New(
			dataset.Column{Name: "metric", Type: dataset.TypeText},
			dataset.Column{Name: "value", Type: dataset.TypeNumeric},
		)
		if err != nil {
			return nil, engine.NewInferenceError(m.Name, err)
		}
		metrics := make([]string, 0, len(s.Scores))
		for k := range s.Scores {
			metrics = append(metrics, k)
		}
		sort.Strings(metrics)
		for _, k := range metrics {
			if err := out.AppendRow(k, s.Scores[k]); err != nil {
				return nil, engine.NewInferenceError(m.Name, err)
			}
		}
		return out, nil

	default:
		meta := e.Metadata()
		return kvFrame(m.Name, "attribute", [][2]string{
			{"engine", meta.Name},
			{"version", meta.Version},
			{"target", s.Target},
			{"target_type", string(s.TargetType)},
			{"rows", dataset.FormatValue(float64(s.Rows))},
			{"strategy", s.strategy()},
		})
	}
}

func (s *state) strategy() string {
	if s.numeric() {
		return "mean"
	}
	return "majority"
}

// absorb merges a cleaned frame into the aggregates.
func (s *state) absorb(clean *dataset.Frame) error {
	if s.numeric() {
		for i := 0; i < clean.NumRows(); i++ {
			v, err := clean.Float(i, s.Target)
			if err != nil {
				return err
			}
			s.Sum += v
			s.SumSquares += v * v
		}
	} else {
		if s.Counts == nil {
			s.Counts = make(map[string]int)
		}
		values, _ := clean.Column(s.Target)
		for _, v := range values {
			s.Counts[dataset.FormatValue(v)]++
		}
	}
	s.Rows += clean.NumRows()
	return nil
}

// score evaluates the constant prediction against the given frame.
// Failures are swallowed: scores are advisory.
func (e *Engine) score(s *state, clean *dataset.Frame) map[string]float64 {
	values, ok := clean.Column(s.Target)
	if !ok || len(values) == 0 {
		return nil
	}
	if s.numeric() {
		truth := make([]float64, 0, len(values))
		for _, v := range values {
			if f, ok := dataset.ToFloat(v); ok {
				truth = append(truth, f)
			}
		}
		pred := make([]float64, len(truth))
		for i := range pred {
			pred[i] = s.mean()
		}
		scores, err := evaluate.Regression(pred, truth)
		if err != nil {
			return nil
		}
		return scores
	}

	class, _ := s.majority()
	truth := make([]string, len(values))
	pred := make([]string, len(values))
	for i, v := range values {
		truth[i] = dataset.FormatValue(v)
		pred[i] = class
	}
	scores, err := evaluate.Classification(pred, truth)
	if err != nil {
		return nil
	}
	return scores
}

func (e *Engine) loadState(ctx context.Context, m *engine.Model) (*state, error) {
	var s state
	if err := engine.GetJSON(ctx, m.Store, stateKey, &s); err != nil {
		return nil, engine.NewInferenceError(m.Name, fmt.Errorf("model state unavailable: %w", err))
	}
	return &s, nil
}

func withConstant(f *dataset.Frame, col dataset.Column, n int, value any) (*dataset.Frame, error) {
	values := make([]any, n)
	for i := range values {
		values[i] = value
	}
	return f.WithColumn(col, values)
}

func kvFrame(model, keyName string, pairs [][2]string) (*dataset.Frame, error) {
	out, err := dataset.New(
		dataset.Column{Name: keyName, Type: dataset.TypeText},
		dataset.Column{Name: "value", Type: dataset.TypeText},
	)
	if err != nil {
		return nil, engine.NewInferenceError(model, err)
	}
	for _, pair := range pairs {
		if err := out.AppendRow(pair[0], pair[1]); err != nil {
			return nil, engine.NewInferenceError(model, err)
		}
	}
	return out, nil
}
