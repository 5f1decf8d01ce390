package linreg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelroom/modelroom/internal/dataset"
	"github.com/modelroom/modelroom/internal/engine"
	"github.com/modelroom/modelroom/internal/storage"
)

func newTestModel(t *testing.T, name string) *engine.Model {
	t.Helper()
	provider, err := storage.NewFSProvider(t.TempDir())
	require.NoError(t, err)
	id := "test-" + name
	return &engine.Model{ID: id, Name: name, Target: "y", Engine: "linreg", Store: provider.ForModel(id)}
}

// lineFrame holds y = 2x + 3 exactly.
func lineFrame(t *testing.T, xs ...float64) *dataset.Frame {
	t.Helper()
	f, err := dataset.New(
		dataset.Column{Name: "x", Type: dataset.TypeNumeric},
		dataset.Column{Name: "y", Type: dataset.TypeNumeric},
	)
	require.NoError(t, err)
	for _, x := range xs {
		require.NoError(t, f.AppendRow(x, 2*x+3))
	}
	return f
}

func inputFrame(t *testing.T, xs ...any) *dataset.Frame {
	t.Helper()
	f, err := dataset.New(dataset.Column{Name: "x", Type: dataset.TypeNumeric})
	require.NoError(t, err)
	for _, x := range xs {
		require.NoError(t, f.AppendRow(x))
	}
	return f
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	meta := New().Metadata()
	require.NoError(t, meta.Validate())
	assert.Equal(t, "linreg", meta.Name)
	assert.True(t, meta.Capabilities.Has(engine.CapDescribe))
	assert.False(t, meta.Capabilities.Has(engine.CapUpdate))

	_, ok := any(New()).(engine.Updater)
	assert.False(t, ok, "linreg must not implement the update surface")
}

func TestFitsExactLinearRelation(t *testing.T) {
	t.Parallel()

	e := New()
	m := newTestModel(t, "line")
	ctx := context.Background()

	err := e.Create(ctx, m, engine.CreateRequest{Target: "y", Data: lineFrame(t, 1, 2, 3, 4, 5)})
	require.NoError(t, err)

	features, err := e.Describe(ctx, m, "features")
	require.NoError(t, err)
	require.Equal(t, 2, features.NumRows())

	intercept, err := features.Float(0, "coefficient")
	require.NoError(t, err)
	slope, err := features.Float(1, "coefficient")
	require.NoError(t, err)
	assert.InDelta(t, 3.0, intercept, 1e-6)
	assert.InDelta(t, 2.0, slope, 1e-6)

	out, err := e.Predict(ctx, m, engine.PredictRequest{Data: inputFrame(t, 10.0)})
	require.NoError(t, err)
	pred, err := out.Float(0, "y")
	require.NoError(t, err)
	assert.InDelta(t, 23.0, pred, 1e-6)
}

func TestFitsTwoFeatures(t *testing.T) {
	t.Parallel()

	// y = 1 + 2a - b exactly.
	f, err := dataset.New(
		dataset.Column{Name: "a", Type: dataset.TypeNumeric},
		dataset.Column{Name: "b", Type: dataset.TypeNumeric},
		dataset.Column{Name: "y", Type: dataset.TypeNumeric},
	)
	require.NoError(t, err)
	for _, row := range [][3]float64{{1, 1, 2}, {2, 1, 4}, {3, 2, 5}, {4, 5, 4}, {5, 3, 8}} {
		require.NoError(t, f.AppendRow(row[0], row[1], row[2]))
	}

	e := New()
	m := newTestModel(t, "plane")
	ctx := context.Background()
	require.NoError(t, e.Create(ctx, m, engine.CreateRequest{Target: "y", Data: f}))

	in, err := dataset.New(
		dataset.Column{Name: "a", Type: dataset.TypeNumeric},
		dataset.Column{Name: "b", Type: dataset.TypeNumeric},
	)
	require.NoError(t, err)
	require.NoError(t, in.AppendRow(10.0, 4.0))

	out, err := e.Predict(ctx, m, engine.PredictRequest{Data: in})
	require.NoError(t, err)
	pred, err := out.Float(0, "y")
	require.NoError(t, err)
	assert.InDelta(t, 17.0, pred, 1e-6)
}

func TestRidgeFallbackHandlesCollinearFeatures(t *testing.T) {
	t.Parallel()

	// Two identical feature columns make the plain system singular.
	f, err := dataset.New(
		dataset.Column{Name: "a", Type: dataset.TypeNumeric},
		dataset.Column{Name: "a_copy", Type: dataset.TypeNumeric},
		dataset.Column{Name: "y", Type: dataset.TypeNumeric},
	)
	require.NoError(t, err)
	for _, x := range []float64{1, 2, 3, 4, 5} {
		require.NoError(t, f.AppendRow(x, x, 2*x+3))
	}

	e := New()
	m := newTestModel(t, "collinear")
	ctx := context.Background()
	require.NoError(t, e.Create(ctx, m, engine.CreateRequest{Target: "y", Data: f}))

	model, err := e.Describe(ctx, m, "model")
	require.NoError(t, err)
	ridge, ok := model.Value(1, "value")
	require.True(t, ok)
	assert.Equal(t, "1e-06", ridge)

	in := f.Drop("y")
	out, err := e.Predict(ctx, m, engine.PredictRequest{Data: in.Head(1)})
	require.NoError(t, err)
	pred, err := out.Float(0, "y")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, pred, 1e-3)
}

func TestExplicitRidgeIsUsed(t *testing.T) {
	t.Parallel()

	e := New()
	m := newTestModel(t, "ridged")
	ctx := context.Background()

	err := e.Create(ctx, m, engine.CreateRequest{
		Target: "y",
		Data:   lineFrame(t, 1, 2, 3, 4, 5),
		Args:   engine.Args{"ridge": 0.5},
	})
	require.NoError(t, err)

	model, err := e.Describe(ctx, m, "model")
	require.NoError(t, err)
	ridge, _ := model.Value(1, "value")
	assert.Equal(t, "0.5", ridge)
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	e := New()
	ctx := context.Background()
	var verr *engine.ValidationError

	err := e.Create(ctx, newTestModel(t, "nodata"), engine.CreateRequest{Target: "y"})
	require.ErrorAs(t, err, &verr)

	categorical, err := dataset.New(
		dataset.Column{Name: "x", Type: dataset.TypeNumeric},
		dataset.Column{Name: "y", Type: dataset.TypeCategorical},
	)
	require.NoError(t, err)
	require.NoError(t, categorical.AppendRow(1.0, "a"))
	err = e.Create(ctx, newTestModel(t, "cat"), engine.CreateRequest{Target: "y", Data: categorical})
	require.ErrorAs(t, err, &verr)
	assert.ErrorContains(t, err, "must be numeric")

	// Categorical-only features leave nothing to regress on.
	unusable, err := dataset.New(
		dataset.Column{Name: "city", Type: dataset.TypeCategorical},
		dataset.Column{Name: "y", Type: dataset.TypeNumeric},
	)
	require.NoError(t, err)
	require.NoError(t, unusable.AppendRow("austin", 1.0))
	err = e.Create(ctx, newTestModel(t, "unusable"), engine.CreateRequest{Target: "y", Data: unusable})
	require.ErrorAs(t, err, &verr)
	assert.ErrorContains(t, err, "no usable numeric feature")

	err = e.Create(ctx, newTestModel(t, "negridge"), engine.CreateRequest{
		Target: "y",
		Data:   lineFrame(t, 1, 2, 3),
		Args:   engine.Args{"ridge": -1.0},
	})
	require.ErrorAs(t, err, &verr)
}

func TestPredictRequiresFeatureColumns(t *testing.T) {
	t.Parallel()

	e := New()
	m := newTestModel(t, "strict")
	ctx := context.Background()
	require.NoError(t, e.Create(ctx, m, engine.CreateRequest{Target: "y", Data: lineFrame(t, 1, 2, 3)}))

	in, err := dataset.New(dataset.Column{Name: "unrelated", Type: dataset.TypeNumeric})
	require.NoError(t, err)
	require.NoError(t, in.AppendRow(1.0))

	_, err = e.Predict(ctx, m, engine.PredictRequest{Data: in})
	var ierr *engine.InferenceError
	require.ErrorAs(t, err, &ierr)
	assert.ErrorContains(t, err, "missing feature column")
}

func TestPredictImputesMissingCells(t *testing.T) {
	t.Parallel()

	e := New()
	m := newTestModel(t, "imputing")
	ctx := context.Background()
	require.NoError(t, e.Create(ctx, m, engine.CreateRequest{Target: "y", Data: lineFrame(t, 1, 2, 3, 4, 5)}))

	out, err := e.Predict(ctx, m, engine.PredictRequest{Data: inputFrame(t, nil)})
	require.NoError(t, err)
	pred, err := out.Float(0, "y")
	require.NoError(t, err)
	assert.InDelta(t, 9.0, pred, 1e-6, "missing x falls back to the training mean of 3")
}

func TestDescribeEvaluation(t *testing.T) {
	t.Parallel()

	e := New()
	m := newTestModel(t, "scored")
	ctx := context.Background()
	require.NoError(t, e.Create(ctx, m, engine.CreateRequest{Target: "y", Data: lineFrame(t, 1, 2, 3, 4, 5)}))

	eval, err := e.Describe(ctx, m, "evaluation")
	require.NoError(t, err)

	scores := map[string]float64{}
	for i := 0; i < eval.NumRows(); i++ {
		k, _ := eval.Value(i, "metric")
		v, ferr := eval.Float(i, "value")
		require.NoError(t, ferr)
		scores[k.(string)] = v
	}
	assert.InDelta(t, 1.0, scores["r2"], 1e-9, "exact fit")
	assert.InDelta(t, 0.0, scores["mae"], 1e-9)

	info, err := e.Describe(ctx, m, "")
	require.NoError(t, err)
	assert.True(t, info.HasColumn("attribute"))
}
