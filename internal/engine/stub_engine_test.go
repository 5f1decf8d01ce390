package engine

import (
	"context"
	"fmt"

	"github.com/modelroom/modelroom/internal/dataset"
)

// stubEngine implements only the mandatory contract surface.
type stubEngine struct {
	meta      Metadata
	createFn  func(context.Context, *Model, CreateRequest) error
	predictFn func(context.Context, *Model, PredictRequest) (*dataset.Frame, error)
}

func newStubEngine(name string, caps Capability) *stubEngine {
	return &stubEngine{
		meta: Metadata{
			Name:         name,
			Version:      "1.0.0",
			Description:  "stub engine for tests",
			Capabilities: caps,
		},
	}
}

func (s *stubEngine) Metadata() Metadata { return s.meta }

func (s *stubEngine) Create(ctx context.Context, m *Model, req CreateRequest) error {
	if s.createFn != nil {
		return s.createFn(ctx, m, req)
	}
	return nil
}

func (s *stubEngine) Predict(ctx context.Context, m *Model, req PredictRequest) (*dataset.Frame, error) {
	if s.predictFn != nil {
		return s.predictFn(ctx, m, req)
	}
	if req.Data == nil {
		return nil, fmt.Errorf("no input frame")
	}
	values := make([]any, req.Data.NumRows())
	return req.Data.WithColumn(dataset.Column{Name: m.Target, Type: dataset.TypeNumeric}, values)
}

// stubUpdaterEngine adds the Update extension.
type stubUpdaterEngine struct {
	*stubEngine
	updateFn func(context.Context, *Model, UpdateRequest) error
}

func (s *stubUpdaterEngine) Update(ctx context.Context, m *Model, req UpdateRequest) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, m, req)
	}
	return nil
}

// stubFullEngine implements every extension interface.
type stubFullEngine struct {
	*stubEngine
}

func (s *stubFullEngine) Update(ctx context.Context, m *Model, req UpdateRequest) error {
	return nil
}

func (s *stubFullEngine) Describe(ctx context.Context, m *Model, attribute string) (*dataset.Frame, error) {
	f, err := dataset.New(dataset.Column{Name: "attribute", Type: dataset.TypeText})
	if err != nil {
		return nil, err
	}
	if err := f.AppendRow(attribute); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *stubFullEngine) Connect(ctx context.Context, args Args) error {
	return nil
}
