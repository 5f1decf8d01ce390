package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/modelroom/modelroom/internal/dataset"
	"github.com/modelroom/modelroom/internal/engine"
	"github.com/modelroom/modelroom/internal/registry"
)

// errorResponse is the uniform error payload. Kind carries the error
// taxonomy class so clients can branch without parsing messages.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// frameResponse is a dataset on the wire: the ordered column schema
// plus one object per row.
type frameResponse struct {
	Columns []dataset.Column `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

func toFrameResponse(f *dataset.Frame) frameResponse {
	return frameResponse{
		Columns: f.Columns(),
		Rows:    f.Records(),
	}
}

type createModelRequest struct {
	Name    string           `json:"name"`
	Engine  string           `json:"engine"`
	Target  string           `json:"target"`
	Args    engine.Args      `json:"args"`
	Data    json.RawMessage  `json:"data"`
	Columns []dataset.Column `json:"columns"`
}

type predictRequest struct {
	Data    json.RawMessage  `json:"data"`
	Columns []dataset.Column `json:"columns"`
	Args    engine.Args      `json:"args"`
}

type predictResponse struct {
	Model   string           `json:"model"`
	Columns []dataset.Column `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

type updateModelRequest struct {
	Data    json.RawMessage  `json:"data"`
	Columns []dataset.Column `json:"columns"`
	Args    engine.Args      `json:"args"`
}

type connectRequest struct {
	Args engine.Args `json:"args"`
}

type modelResponse struct {
	registry.Record
	Metrics *registry.CachedMetrics `json:"metrics,omitempty"`
}

type engineResponse struct {
	Name         string        `json:"name"`
	Version      string        `json:"version"`
	Description  string        `json:"description"`
	Capabilities []string      `json:"capabilities"`
	Args         []argResponse `json:"args,omitempty"`
}

type argResponse struct {
	Key      string `json:"key"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
	Doc      string `json:"doc,omitempty"`
}

func toEngineResponse(meta engine.Metadata) engineResponse {
	resp := engineResponse{
		Name:         meta.Name,
		Version:      meta.Version,
		Description:  meta.Description,
		Capabilities: meta.Capabilities.List(),
	}
	for _, spec := range meta.Args {
		resp.Args = append(resp.Args, argResponse{
			Key:      spec.Key,
			Type:     string(spec.Type),
			Required: spec.Required,
			Default:  spec.Default,
			Doc:      spec.Doc,
		})
	}
	return resp
}

// frameFromWire decodes the request rows. An absent data field yields
// a nil frame; the runner decides whether that is acceptable.
func frameFromWire(data json.RawMessage, cols []dataset.Column) (*dataset.Frame, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	return dataset.FromJSONRows(data, cols)
}

// writeError maps an error onto a status code and the uniform payload.
// Unknown models and engines are 404s; the taxonomy drives the rest.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	kind := "internal"

	var notFound registry.ErrRecordNotFound
	var engineMissing engine.ErrEngineNotFound
	switch {
	case errors.As(err, &notFound), errors.As(err, &engineMissing):
		status, kind = http.StatusNotFound, "not_found"
	default:
		if taxErr, ok := engine.AsEngineError(err); ok {
			switch taxErr.(type) {
			case *engine.ValidationError:
				status, kind = http.StatusBadRequest, "validation"
			case *engine.CapabilityError:
				status, kind = http.StatusNotImplemented, "capability"
			case *engine.TrainingError:
				status, kind = http.StatusInternalServerError, "training"
			case *engine.InferenceError:
				status, kind = http.StatusInternalServerError, "inference"
			case *engine.ConnectionError:
				status, kind = http.StatusBadGateway, "connection"
			}
		}
	}

	c.JSON(status, errorResponse{Error: err.Error(), Kind: kind})
}

// writeBadRequest reports a request that could not be decoded at all.
func writeBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
}
