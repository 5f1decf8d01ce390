// Package tui is the terminal dashboard: a read-only live view of the
// model records with a detail screen per model.
package tui

import (
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modelroom/modelroom/internal/engine"
	"github.com/modelroom/modelroom/internal/registry"
)

// RecordSource is the slice of the record store the dashboard reads.
type RecordSource interface {
	List() ([]registry.Record, error)
}

// Model is the dashboard state.
type Model struct {
	source  RecordSource
	engines map[string]engine.Metadata

	records  []registry.Record
	viewMode ViewMode
	cursor   int
	selected string

	spinner spinner.Model
	loading bool

	showError bool
	errorMsg  string

	width      int
	height     int
	useUnicode bool
}

// NewModel builds the dashboard over a record source and the metadata
// of the registered engines.
func NewModel(source RecordSource, engines []engine.Metadata) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	byName := make(map[string]engine.Metadata, len(engines))
	for _, meta := range engines {
		byName[meta.Name] = meta
	}

	return Model{
		source:     source,
		engines:    byName,
		viewMode:   ViewList,
		spinner:    s,
		loading:    true,
		width:      80,
		height:     24,
		useUnicode: detectUnicode(),
	}
}

// Init starts the spinner and the first record load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, loadRecordsCmd(m.source))
}

// Run drives the dashboard until the user quits.
func Run(source RecordSource, engines []engine.Metadata) error {
	p := tea.NewProgram(NewModel(source, engines), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// sortRecords orders by urgency: failed models first, then running
// jobs, then the healthy rest, each group alphabetical.
func (m *Model) sortRecords() {
	sort.SliceStable(m.records, func(i, j int) bool {
		pi, pj := statusPriority(m.records[i].Status), statusPriority(m.records[j].Status)
		if pi != pj {
			return pi < pj
		}
		return m.records[i].Name < m.records[j].Name
	})
}

func statusPriority(status registry.Status) int {
	switch status {
	case registry.StatusError:
		return 0
	case registry.StatusGenerating, registry.StatusUpdating:
		return 1
	case registry.StatusComplete:
		return 2
	default:
		return 3
	}
}

// CountByStatus returns counts of records in each status.
func (m *Model) CountByStatus() map[registry.Status]int {
	counts := make(map[registry.Status]int)
	for _, rec := range m.records {
		counts[rec.Status]++
	}
	return counts
}

// SelectedRecord returns the record under the cursor.
func (m *Model) SelectedRecord() (registry.Record, bool) {
	if m.cursor < 0 || m.cursor >= len(m.records) {
		return registry.Record{}, false
	}
	return m.records[m.cursor], true
}

// RecordByName returns a record by model name.
func (m *Model) RecordByName(name string) (registry.Record, bool) {
	for _, rec := range m.records {
		if rec.Name == name {
			return rec, true
		}
	}
	return registry.Record{}, false
}

// MoveCursorUp moves the cursor up with wrapping.
func (m *Model) MoveCursorUp() {
	if len(m.records) == 0 {
		return
	}
	m.cursor--
	if m.cursor < 0 {
		m.cursor = len(m.records) - 1
	}
}

// MoveCursorDown moves the cursor down with wrapping.
func (m *Model) MoveCursorDown() {
	if len(m.records) == 0 {
		return
	}
	m.cursor++
	if m.cursor >= len(m.records) {
		m.cursor = 0
	}
}

func detectUnicode() bool {
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return strings.Contains(strings.ToUpper(v), "UTF-8") ||
				strings.Contains(strings.ToUpper(v), "UTF8")
		}
	}
	return false
}
