package registry

import (
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/modelroom/modelroom/internal/engine"
)

// Record is the registry entry for one model hosted by modelroom.
type Record struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Engine   string      `json:"engine"`
	Target   string      `json:"target"`
	Status   Status      `json:"status"`
	Error    string      `json:"error,omitempty"`
	Args     engine.Args `json:"args,omitempty"`
	DataRows int         `json:"data_rows"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	TrainedAt time.Time `json:"trained_at"`
}

// NewRecord builds a record for a model that is about to start training.
func NewRecord(name, engineName, target string, args engine.Args) Record {
	now := time.Now().UTC()
	return Record{
		ID:        uuid.NewString(),
		Name:      name,
		Engine:    engineName,
		Target:    target,
		Status:    StatusGenerating,
		Args:      args.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Status represents the lifecycle state of a model record.
type Status string

const (
	StatusGenerating Status = "generating"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
	StatusUpdating   Status = "updating"
)

// Icon returns the Unicode icon for the status
func (s Status) Icon() string {
	switch s {
	case StatusComplete:
		return "🟢"
	case StatusGenerating:
		return "🟡"
	case StatusUpdating:
		return "🔵"
	case StatusError:
		return "🔴"
	default:
		return "⚪"
	}
}

// IconFallback returns ASCII fallback when Unicode is not supported
func (s Status) IconFallback() string {
	switch s {
	case StatusComplete:
		return "[OK]"
	case StatusGenerating:
		return "[..]"
	case StatusUpdating:
		return "[>>]"
	case StatusError:
		return "[XX]"
	default:
		return "[??]"
	}
}

// Color returns the Lipgloss color for the status
func (s Status) Color() lipgloss.Color {
	switch s {
	case StatusComplete:
		return lipgloss.Color("42") // green
	case StatusGenerating:
		return lipgloss.Color("226") // yellow
	case StatusUpdating:
		return lipgloss.Color("33") // blue
	case StatusError:
		return lipgloss.Color("196") // red
	default:
		return lipgloss.Color("250") // light gray
	}
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// Terminal reports whether the status marks a finished job. Records in a
// terminal state only change again when a new create or update starts.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// RegistryFile is the JSON file format for the model registry
type RegistryFile struct {
	Version string   `json:"version"`
	Models  []Record `json:"models"`
}

// CachedMetrics stores the outcome of the last training or update job for a
// model, so listings can show scores without touching artifact storage.
type CachedMetrics struct {
	Status   Status             `json:"status"`
	LastRun  time.Time          `json:"last_run"`
	Duration time.Duration      `json:"duration"`
	Rows     int                `json:"rows"`
	Scores   map[string]float64 `json:"scores,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// MetricsCacheFile is the JSON file format for the metrics cache
type MetricsCacheFile struct {
	Version string                   `json:"version"`
	Entries map[string]CachedMetrics `json:"entries"`
}
