// Package remote implements the proxy engine for an external prediction
// service. Create is registration-only: it records the endpoint
// configuration without training anything. Predict forwards rows to the
// service and returns its answer.
//
// Wire contract: POST {endpoint}/predict with {"target": ..., "rows":
// [{...}]} answers {"rows": [{...}]} with one object per input row.
// GET {endpoint}/health answers 2xx when the service is up.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/modelroom/modelroom/internal/dataset"
	"github.com/modelroom/modelroom/internal/engine"
)

const (
	configKey = "config.json"

	defaultTimeoutSeconds = 30

	// errorBodyLimit caps how much of a failure response is quoted in
	// error messages.
	errorBodyLimit = 512
)

// Engine proxies to a remote prediction service.
type Engine struct {
	client *http.Client
}

// New returns the remote engine. Request deadlines come from the
// per-model timeout argument, applied through the request context.
func New() *Engine {
	return &Engine{client: &http.Client{}}
}

func (e *Engine) Metadata() engine.Metadata {
	return engine.Metadata{
		Name:         "remote",
		Version:      "1.0.0",
		Description:  "Proxy to an external prediction service speaking the modelroom JSON wire contract.",
		Capabilities: engine.BaseCapabilities | engine.CapConnect,
		Args: []engine.ArgSpec{
			{Key: "endpoint", Type: engine.ArgString, Required: true, Doc: "base URL of the prediction service"},
			{Key: "api_key", Type: engine.ArgString, Doc: "bearer token sent with every request"},
			{Key: "timeout_seconds", Type: engine.ArgInt, Default: defaultTimeoutSeconds, Doc: "per-request timeout"},
			{Key: "strict", Type: engine.ArgBool, Default: false, Doc: "reject training data instead of ignoring it"},
		},
	}
}

type config struct {
	Endpoint       string `json:"endpoint"`
	APIKey         string `json:"api_key,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (c config) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (e *Engine) Create(ctx context.Context, m *engine.Model, req engine.CreateRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	endpoint, err := endpointFrom(req.Args)
	if err != nil {
		return engine.NewValidationError(m.Name, err)
	}
	if req.Data != nil {
		if req.Args.BoolOr("strict", false) {
			return engine.NewValidationError(m.Name, fmt.Errorf("remote models are registration-only and take no training data"))
		}
		m.Log.Warn("ignoring training data for remote model")
	}

	cfg := config{
		Endpoint:       endpoint,
		APIKey:         req.Args.StringOr("api_key", ""),
		TimeoutSeconds: req.Args.IntOr("timeout_seconds", defaultTimeoutSeconds),
	}
	if err := engine.PutJSON(ctx, m.Store, configKey, cfg); err != nil {
		return engine.NewTrainingError(m.Name, err)
	}
	m.Log.WithFields(map[string]any{"endpoint": cfg.Endpoint}).Info("remote model registered")
	return nil
}

func (e *Engine) Predict(ctx context.Context, m *engine.Model, req engine.PredictRequest) (*dataset.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Data == nil {
		return nil, engine.NewValidationError(m.Name, fmt.Errorf("prediction input is required"))
	}
	var cfg config
	if err := engine.GetJSON(ctx, m.Store, configKey, &cfg); err != nil {
		return nil, engine.NewInferenceError(m.Name, fmt.Errorf("model configuration unavailable: %w", err))
	}

	rows, err := req.Data.MarshalJSONRows()
	if err != nil {
		return nil, engine.NewInferenceError(m.Name, err)
	}
	body, err := json.Marshal(struct {
		Target string          `json:"target,omitempty"`
		Rows   json.RawMessage `json:"rows"`
	}{Target: m.Target, Rows: rows})
	if err != nil {
		return nil, engine.NewInferenceError(m.Name, err)
	}

	status, answer, err := e.do(ctx, cfg, http.MethodPost, "/predict", bytes.NewReader(body))
	if err != nil {
		return nil, engine.NewConnectionError(m.Engine, err)
	}
	if status < 200 || status > 299 {
		return nil, engine.NewConnectionError(m.Engine, statusError(status, answer))
	}

	var payload struct {
		Rows json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(answer, &payload); err != nil {
		return nil, engine.NewInferenceError(m.Name, fmt.Errorf("malformed response from %s: %w", cfg.Endpoint, err))
	}
	out, err := dataset.FromJSONRows(payload.Rows, nil)
	if err != nil {
		return nil, engine.NewInferenceError(m.Name, fmt.Errorf("malformed response rows from %s: %w", cfg.Endpoint, err))
	}
	return out, nil
}

// Connect checks service health with the supplied arguments; it never
// reads model state, so it works before any model exists.
func (e *Engine) Connect(ctx context.Context, args engine.Args) error {
	endpoint, err := endpointFrom(args)
	if err != nil {
		return engine.NewValidationError("remote", err)
	}
	cfg := config{
		Endpoint:       endpoint,
		APIKey:         args.StringOr("api_key", ""),
		TimeoutSeconds: args.IntOr("timeout_seconds", defaultTimeoutSeconds),
	}

	status, answer, err := e.do(ctx, cfg, http.MethodGet, "/health", nil)
	if err != nil {
		return engine.NewConnectionError("remote", err)
	}
	if status < 200 || status > 299 {
		return engine.NewConnectionError("remote", statusError(status, answer))
	}
	return nil
}

// do sends one request and returns the status and the full response
// body. The body is read before the timeout context is released.
func (e *Engine) do(ctx context.Context, cfg config, method, path string, body io.Reader) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, cfg.Endpoint+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request to %s failed: %w", cfg.Endpoint, err)
	}
	defer resp.Body.Close()

	answer, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response from %s: %w", cfg.Endpoint, err)
	}
	return resp.StatusCode, answer, nil
}

func endpointFrom(args engine.Args) (string, error) {
	endpoint, ok := args.String("endpoint")
	if !ok || endpoint == "" {
		return "", fmt.Errorf("the endpoint argument is required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("endpoint %q is not a valid http(s) URL", endpoint)
	}
	return endpoint, nil
}

func statusError(status int, body []byte) error {
	if len(body) > errorBodyLimit {
		body = body[:errorBodyLimit]
	}
	if len(body) == 0 {
		return fmt.Errorf("service returned status %d", status)
	}
	return fmt.Errorf("service returned status %d: %s", status, body)
}
