package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelroom/modelroom/internal/dataset"
	"github.com/modelroom/modelroom/internal/engine"
	"github.com/modelroom/modelroom/internal/storage"
)

func newTestModel(t *testing.T, name, target string) *engine.Model {
	t.Helper()
	provider, err := storage.NewFSProvider(t.TempDir())
	require.NoError(t, err)
	id := "test-" + name
	return &engine.Model{ID: id, Name: name, Target: target, Engine: "remote", Store: provider.ForModel(id)}
}

func registered(t *testing.T, name, target, endpoint string, extra engine.Args) *engine.Model {
	t.Helper()
	m := newTestModel(t, name, target)
	args := engine.Args{"endpoint": endpoint}
	for k, v := range extra {
		args[k] = v
	}
	require.NoError(t, New().Create(context.Background(), m, engine.CreateRequest{Target: target, Args: args}))
	return m
}

func usageFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	f, err := dataset.New(
		dataset.Column{Name: "tenure", Type: dataset.TypeNumeric},
		dataset.Column{Name: "plan", Type: dataset.TypeCategorical},
	)
	require.NoError(t, err)
	require.NoError(t, f.AppendRow(12.0, "basic"))
	require.NoError(t, f.AppendRow(3.0, "premium"))
	return f
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	e := New()
	meta := e.Metadata()
	require.NoError(t, meta.Validate())
	assert.Equal(t, "remote", meta.Name)
	assert.True(t, meta.Capabilities.Has(engine.CapConnect))
	assert.False(t, meta.Capabilities.Has(engine.CapUpdate))
	assert.False(t, meta.Capabilities.Has(engine.CapDescribe))

	_, isUpdater := any(e).(engine.Updater)
	assert.False(t, isUpdater)
	_, isDescriber := any(e).(engine.Describer)
	assert.False(t, isDescriber)
	_, isConnector := any(e).(engine.Connector)
	assert.True(t, isConnector)
}

func TestCreateRegistrationOnly(t *testing.T) {
	t.Parallel()

	m := registered(t, "churn", "churn", "http://models.internal:9090", engine.Args{
		"api_key":         "sekret",
		"timeout_seconds": 5,
	})

	var cfg config
	require.NoError(t, engine.GetJSON(context.Background(), m.Store, configKey, &cfg))
	assert.Equal(t, "http://models.internal:9090", cfg.Endpoint)
	assert.Equal(t, "sekret", cfg.APIKey)
	assert.Equal(t, 5, cfg.TimeoutSeconds)
}

func TestCreateRejectsBadEndpoint(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args engine.Args
	}{
		{"missing", engine.Args{}},
		{"empty", engine.Args{"endpoint": ""}},
		{"not a url", engine.Args{"endpoint": "models.internal"}},
		{"wrong scheme", engine.Args{"endpoint": "ftp://models.internal/churn"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := newTestModel(t, "churn-"+tc.name, "churn")
			err := New().Create(context.Background(), m, engine.CreateRequest{Target: "churn", Args: tc.args})
			var verr *engine.ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestCreateWithTrainingData(t *testing.T) {
	t.Parallel()

	t.Run("strict rejects it", func(t *testing.T) {
		t.Parallel()

		m := newTestModel(t, "strict", "churn")
		err := New().Create(context.Background(), m, engine.CreateRequest{
			Target: "churn",
			Data:   usageFrame(t),
			Args:   engine.Args{"endpoint": "http://models.internal:9090", "strict": true},
		})
		var verr *engine.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.ErrorContains(t, err, "registration-only")
	})

	t.Run("ignored by default", func(t *testing.T) {
		t.Parallel()

		m := newTestModel(t, "lenient", "churn")
		err := New().Create(context.Background(), m, engine.CreateRequest{
			Target: "churn",
			Data:   usageFrame(t),
			Args:   engine.Args{"endpoint": "http://models.internal:9090"},
		})
		require.NoError(t, err)

		var cfg config
		require.NoError(t, engine.GetJSON(context.Background(), m.Store, configKey, &cfg))
		assert.Equal(t, "http://models.internal:9090", cfg.Endpoint)
	})
}

func TestPredictProxies(t *testing.T) {
	t.Parallel()

	var (
		gotMethod string
		gotPath   string
		gotAuth   string
		gotBody   struct {
			Target string           `json:"target"`
			Rows   []map[string]any `json:"rows"`
		}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rows":[{"churn":"yes"},{"churn":"no"}]}`))
	}))
	defer srv.Close()

	m := registered(t, "churn", "churn", srv.URL, engine.Args{"api_key": "sekret"})
	out, err := New().Predict(context.Background(), m, engine.PredictRequest{Data: usageFrame(t)})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/predict", gotPath)
	assert.Equal(t, "Bearer sekret", gotAuth)
	assert.Equal(t, "churn", gotBody.Target)
	require.Len(t, gotBody.Rows, 2)
	assert.Equal(t, 12.0, gotBody.Rows[0]["tenure"])
	assert.Equal(t, "basic", gotBody.Rows[0]["plan"])

	require.Equal(t, 2, out.NumRows())
	first, ok := out.Value(0, "churn")
	require.True(t, ok)
	assert.Equal(t, "yes", first)
	second, ok := out.Value(1, "churn")
	require.True(t, ok)
	assert.Equal(t, "no", second)
}

func TestPredictServiceFailures(t *testing.T) {
	t.Parallel()

	t.Run("service error status", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model exploded", http.StatusInternalServerError)
		}))
		defer srv.Close()

		m := registered(t, "churn", "churn", srv.URL, nil)
		_, err := New().Predict(context.Background(), m, engine.PredictRequest{Data: usageFrame(t)})
		var cerr *engine.ConnectionError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "remote", cerr.Engine)
		assert.ErrorContains(t, err, "500")
		assert.ErrorContains(t, err, "model exploded")
	})

	t.Run("service unreachable", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		endpoint := srv.URL
		srv.Close()

		m := registered(t, "gone", "churn", endpoint, nil)
		_, err := New().Predict(context.Background(), m, engine.PredictRequest{Data: usageFrame(t)})
		var cerr *engine.ConnectionError
		require.ErrorAs(t, err, &cerr)
	})

	t.Run("malformed response", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`this is not json`))
		}))
		defer srv.Close()

		m := registered(t, "garbled", "churn", srv.URL, nil)
		_, err := New().Predict(context.Background(), m, engine.PredictRequest{Data: usageFrame(t)})
		var ierr *engine.InferenceError
		require.ErrorAs(t, err, &ierr)
		assert.ErrorContains(t, err, "malformed response")
	})

	t.Run("rows are not objects", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"rows": "yes"}`))
		}))
		defer srv.Close()

		m := registered(t, "shapeless", "churn", srv.URL, nil)
		_, err := New().Predict(context.Background(), m, engine.PredictRequest{Data: usageFrame(t)})
		var ierr *engine.InferenceError
		require.ErrorAs(t, err, &ierr)
	})
}

func TestPredictWithoutRegistration(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, "unregistered", "churn")
	_, err := New().Predict(context.Background(), m, engine.PredictRequest{Data: usageFrame(t)})
	var ierr *engine.InferenceError
	require.ErrorAs(t, err, &ierr)
	assert.ErrorIs(t, err, engine.ErrArtifactNotFound)
}

func TestPredictRequiresInput(t *testing.T) {
	t.Parallel()

	m := registered(t, "empty", "churn", "http://models.internal:9090", nil)
	_, err := New().Predict(context.Background(), m, engine.PredictRequest{})
	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestConnect(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()

		var gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		err := New().Connect(context.Background(), engine.Args{"endpoint": srv.URL})
		require.NoError(t, err)
		assert.Equal(t, "/health", gotPath)
	})

	t.Run("unhealthy", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "draining", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		err := New().Connect(context.Background(), engine.Args{"endpoint": srv.URL})
		var cerr *engine.ConnectionError
		require.ErrorAs(t, err, &cerr)
		assert.ErrorContains(t, err, "503")
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		endpoint := srv.URL
		srv.Close()

		err := New().Connect(context.Background(), engine.Args{"endpoint": endpoint})
		var cerr *engine.ConnectionError
		require.ErrorAs(t, err, &cerr)
	})

	t.Run("missing endpoint", func(t *testing.T) {
		t.Parallel()

		err := New().Connect(context.Background(), engine.Args{})
		var verr *engine.ValidationError
		require.ErrorAs(t, err, &verr)
	})
}
