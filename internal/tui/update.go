package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles incoming messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		applyMaxWidth(m.width)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case recordsLoadedMsg:
		m.records = msg.Records
		m.loading = false
		m.sortRecords()
		if m.cursor >= len(m.records) {
			m.cursor = 0
		}
		return m, nil

	case loadFailedMsg:
		m.loading = false
		m.showError = true
		m.errorMsg = fmt.Sprintf("Failed to load models: %s", msg.Err)
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.viewMode {
	case ViewList:
		return m.handleListKeys(msg)
	case ViewDetail:
		return m.handleDetailKeys(msg)
	case ViewHelp:
		return m.handleHelpKeys(msg)
	default:
		return m, nil
	}
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		m.MoveCursorUp()
		return m, nil

	case "down", "j":
		m.MoveCursorDown()
		return m, nil

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		index := int(msg.String()[0] - '1')
		if index < len(m.records) {
			m.cursor = index
		}
		return m, nil

	case "enter", " ":
		if selected, ok := m.SelectedRecord(); ok {
			m.selected = selected.Name
			m.viewMode = ViewDetail
		}
		return m, nil

	case "r":
		return m.startRefresh()

	case "?":
		m.viewMode = ViewHelp
		return m, nil

	case "x", "esc":
		if m.showError {
			m.showError = false
			m.errorMsg = ""
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "esc", "backspace":
		m.viewMode = ViewList
		m.selected = ""
		return m, nil

	case "r":
		return m.startRefresh()

	case "?":
		m.viewMode = ViewHelp
		return m, nil
	}

	return m, nil
}

func (m Model) handleHelpKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "?", "esc":
		if m.selected != "" {
			m.viewMode = ViewDetail
		} else {
			m.viewMode = ViewList
		}
		return m, nil
	}

	return m, nil
}

func (m Model) startRefresh() (tea.Model, tea.Cmd) {
	if m.loading {
		return m, nil
	}
	m.loading = true
	return m, tea.Batch(m.spinner.Tick, loadRecordsCmd(m.source))
}
