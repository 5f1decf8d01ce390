package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelroom/modelroom/internal/engine"
)

func TestStatus_Icon(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   string
	}{
		{"complete", StatusComplete, "🟢"},
		{"generating", StatusGenerating, "🟡"},
		{"updating", StatusUpdating, "🔵"},
		{"error", StatusError, "🔴"},
		{"unknown", Status("bogus"), "⚪"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Icon())
		})
	}
}

func TestStatus_IconFallback(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   string
	}{
		{"complete", StatusComplete, "[OK]"},
		{"generating", StatusGenerating, "[..]"},
		{"updating", StatusUpdating, "[>>]"},
		{"error", StatusError, "[XX]"},
		{"unknown", Status("bogus"), "[??]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IconFallback())
		})
	}
}

func TestStatus_Color(t *testing.T) {
	tests := []struct {
		name   string
		status Status
	}{
		{"complete", StatusComplete},
		{"generating", StatusGenerating},
		{"updating", StatusUpdating},
		{"error", StatusError},
		{"unknown", Status("bogus")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			color := tt.status.Color()
			assert.NotNil(t, color)
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusComplete.Terminal())
	assert.True(t, StatusError.Terminal())
	assert.False(t, StatusGenerating.Terminal())
	assert.False(t, StatusUpdating.Terminal())
}

func TestNewRecord(t *testing.T) {
	args := engine.Args{"alpha": 0.5}
	rec := NewRecord("house_prices", "linreg", "price", args)

	require.NotEmpty(t, rec.ID)
	assert.Equal(t, "house_prices", rec.Name)
	assert.Equal(t, "linreg", rec.Engine)
	assert.Equal(t, "price", rec.Target)
	assert.Equal(t, StatusGenerating, rec.Status)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)
	assert.True(t, rec.TrainedAt.IsZero())

	// The record owns its args; mutating the caller's map must not leak in.
	args["alpha"] = 0.9
	assert.Equal(t, 0.5, rec.Args["alpha"])

	other := NewRecord("house_prices", "linreg", "price", nil)
	assert.NotEqual(t, rec.ID, other.ID)
	assert.Nil(t, other.Args)
}
