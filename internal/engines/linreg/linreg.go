// Package linreg implements a linear regression engine: ordinary least
// squares over the numeric feature columns, solved through the normal
// equations, with a ridge fallback when the system is singular. It
// deliberately implements no Update, making it the engine that proves
// capability gating.
package linreg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/modelroom/modelroom/internal/dataset"
	"github.com/modelroom/modelroom/internal/engine"
	"github.com/modelroom/modelroom/internal/evaluate"
)

const (
	stateKey = "state.json"

	// fallbackRidge stabilizes a singular normal system when the caller
	// asked for plain least squares.
	fallbackRidge = 1e-6
)

var errSingular = errors.New("normal equations are singular")

// Engine is the linear regression adapter.
type Engine struct{}

// New returns the linreg engine.
func New() *Engine { return &Engine{} }

func (e *Engine) Metadata() engine.Metadata {
	return engine.Metadata{
		Name:         "linreg",
		Version:      "1.0.0",
		Description:  "Ordinary least squares over numeric features, with ridge regularization on demand.",
		Capabilities: engine.BaseCapabilities | engine.CapDescribe,
		Args: []engine.ArgSpec{
			{Key: "ridge", Type: engine.ArgFloat, Default: 0.0, Doc: "L2 penalty added to the normal equations; 0 means plain least squares"},
		},
	}
}

type state struct {
	Target   string             `json:"target"`
	Features []string           `json:"features"`
	Coef     []float64          `json:"coef"` // Coef[0] is the intercept
	Means    map[string]float64 `json:"means"`
	Ridge    float64            `json:"ridge"`
	Rows     int                `json:"rows"`
	Scores   map[string]float64 `json:"scores,omitempty"`
}

func (e *Engine) Create(ctx context.Context, m *engine.Model, req engine.CreateRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.Data == nil {
		return engine.NewValidationError(m.Name, fmt.Errorf("linreg engine requires training data"))
	}
	if targetType, ok := req.Data.ColumnType(req.Target); !ok || targetType != dataset.TypeNumeric {
		return engine.NewValidationError(m.Name, fmt.Errorf("target %q must be numeric", req.Target))
	}
	clean, err := dataset.DropMissingTarget(req.Data, req.Target)
	if err != nil {
		return engine.NewValidationError(m.Name, err)
	}
	if clean.NumRows() == 0 {
		return engine.NewValidationError(m.Name, fmt.Errorf("no rows carry a value for target %q", req.Target))
	}

	features, means := usableFeatures(clean, req.Target)
	if len(features) == 0 {
		return engine.NewValidationError(m.Name, fmt.Errorf("no usable numeric feature columns for target %q", req.Target))
	}

	x, y, err := designMatrix(clean, req.Target, features, means)
	if err != nil {
		return engine.NewTrainingError(m.Name, err)
	}

	ridge := req.Args.FloatOr("ridge", 0)
	if ridge < 0 {
		return engine.NewValidationError(m.Name, fmt.Errorf("ridge must not be negative"))
	}
	coef, usedRidge, err := fit(x, y, ridge)
	if err != nil {
		return engine.NewTrainingError(m.Name, err)
	}
	if usedRidge != ridge {
		m.Log.WithFields(map[string]any{"ridge": usedRidge}).Warn("normal equations were singular, applied ridge fallback")
	}

	s := &state{
		Target:   req.Target,
		Features: features,
		Coef:     coef,
		Means:    means,
		Ridge:    usedRidge,
		Rows:     len(y),
	}
	pred := make([]float64, len(y))
	for i, row := range x {
		pred[i] = dot(coef, row)
	}
	if scores, err := evaluate.Regression(pred, y); err == nil {
		s.Scores = scores
	}

	if err := engine.PutJSON(ctx, m.Store, stateKey, s); err != nil {
		return engine.NewTrainingError(m.Name, err)
	}
	m.Log.WithFields(map[string]any{"rows": s.Rows, "features": len(features)}).Info("linear model fitted")
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
	for _, feature := range s.Features {
		if !req.Data.HasColumn(feature) {
			return nil, engine.NewInferenceError(m.Name, fmt.Errorf("input is missing feature column %q", feature))
		}
	}

	values := make([]any, req.Data.NumRows())
	for i := range values {
		row := make([]float64, len(s.Features)+1)
		row[0] = 1
		for j, feature := range s.Features {
			cell, _ := req.Data.Value(i, feature)
			v, ok := dataset.ToFloat(cell)
			if !ok {
				// Missing or non-numeric cells fall back to the
				// training mean, same as at fit time.
				v = s.Means[feature]
			}
			row[j+1] = v
		}
		values[i] = dot(s.Coef, row)
	}

	out, err := req.Data.Clone().WithColumn(dataset.Column{Name: s.Target, Type: dataset.TypeNumeric}, values)
	if err != nil {
		return nil, engine.NewInferenceError(m.Name, err)
	}
	return out, nil
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
			dataset.Column{Name: "coefficient", Type: dataset.TypeNumeric},
		)
		if err != nil {
			return nil, engine.NewInferenceError(m.Name, err)
		}
		if err := out.AppendRow("(intercept)", s.Coef[0]); err != nil {
			return nil, engine.NewInferenceError(m.Name, err)
		}
		for i, feature := range s.Features {
			if err := out.AppendRow(feature, s.Coef[i+1]); err != nil {
				return nil, engine.NewInferenceError(m.Name, err)
			}
		}
		return out, nil

	case "model":
		return textFrame(m.Name, "property", [][2]string{
			{"intercept", dataset.FormatValue(s.Coef[0])},
			{"ridge", dataset.FormatValue(s.Ridge)},
			{"rows", dataset.FormatValue(float64(s.Rows))},
		})

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
		return textFrame(m.Name, "attribute", [][2]string{
			{"engine", meta.Name},
			{"version", meta.Version},
			{"target", s.Target},
			{"rows", dataset.FormatValue(float64(s.Rows))},
			{"features", dataset.FormatValue(float64(len(s.Features)))},
		})
	}
}

func (e *Engine) loadState(ctx context.Context, m *engine.Model) (*state, error) {
	var s state
	if err := engine.GetJSON(ctx, m.Store, stateKey, &s); err != nil {
		return nil, engine.NewInferenceError(m.Name, fmt.Errorf("model state unavailable: %w", err))
	}
	return &s, nil
}

// usableFeatures returns the numeric non-target columns that carry at
// least one value, with their training means for imputation.
func usableFeatures(f *dataset.Frame, target string) ([]string, map[string]float64) {
	var features []string
	means := make(map[string]float64)
	for _, col := range f.Columns() {
		if col.Name == target || col.Type != dataset.TypeNumeric || dataset.IsExplanationColumn(col.Name, target) {
			continue
		}
		values, _ := f.Column(col.Name)
		sum, count := 0.0, 0
		for _, v := range values {
			if x, ok := dataset.ToFloat(v); ok {
				sum += x
				count++
			}
		}
		if count == 0 {
			continue
		}
		features = append(features, col.Name)
		means[col.Name] = sum / float64(count)
	}
	return features, means
}

// designMatrix builds the intercept-augmented feature matrix and the
// target vector, imputing missing feature cells with the column mean.
func designMatrix(f *dataset.Frame, target string, features []string, means map[string]float64) ([][]float64, []float64, error) {
	n := f.NumRows()
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		t, err := f.Float(i, target)
		if err != nil {
			return nil, nil, err
		}
		y[i] = t
		row := make([]float64, len(features)+1)
		row[0] = 1
		for j, feature := range features {
			cell, _ := f.Value(i, feature)
			v, ok := dataset.ToFloat(cell)
			if !ok {
				v = means[feature]
			}
			row[j+1] = v
		}
		x[i] = row
	}
	return x, y, nil
}

// fit solves the normal equations, retrying with a small ridge penalty
// when the plain system is singular. Returns the coefficients and the
// penalty actually used.
func fit(x [][]float64, y []float64, ridge float64) ([]float64, float64, error) {
	coef, err := solveNormal(x, y, ridge)
	if err == nil {
		return coef, ridge, nil
	}
	if !errors.Is(err, errSingular) || ridge > 0 {
		return nil, ridge, err
	}
	coef, err = solveNormal(x, y, fallbackRidge)
	if err != nil {
		return nil, fallbackRidge, err
	}
	return coef, fallbackRidge, nil
}

// solveNormal forms XᵀX + λI and XᵀY and solves for the coefficients.
// The intercept is never penalized.
func solveNormal(x [][]float64, y []float64, ridge float64) ([]float64, error) {
	p := len(x[0])
	a := make([][]float64, p)
	for i := range a {
		a[i] = make([]float64, p)
	}
	b := make([]float64, p)
	for r, row := range x {
		for i := 0; i < p; i++ {
			b[i] += row[i] * y[r]
			for j := 0; j < p; j++ {
				a[i][j] += row[i] * row[j]
			}
		}
	}
	for i := 1; i < p; i++ {
		a[i][i] += ridge
	}
	return solve(a, b)
}

// solve runs gaussian elimination with partial pivoting. The inputs are
// mutated.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	for j := 0; j < n; j++ {
		pivot := j
		for i := j + 1; i < n; i++ {
			if math.Abs(a[i][j]) > math.Abs(a[pivot][j]) {
				pivot = i
			}
		}
		if math.Abs(a[pivot][j]) < 1e-12 {
			return nil, errSingular
		}
		a[j], a[pivot] = a[pivot], a[j]
		b[j], b[pivot] = b[pivot], b[j]
		for i := j + 1; i < n; i++ {
			factor := a[i][j] / a[j][j]
			for k := j; k < n; k++ {
				a[i][k] -= factor * a[j][k]
			}
			b[i] -= factor * b[j]
		}
	}
	out := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for k := i + 1; k < n; k++ {
			sum -= a[i][k] * out[k]
		}
		out[i] = sum / a[i][i]
	}
	return out, nil
}

func dot(coef, row []float64) float64 {
	sum := 0.0
	for i := range coef {
		sum += coef[i] * row[i]
	}
	return sum
}

func textFrame(model, keyName string, pairs [][2]string) (*dataset.Frame, error) {
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
