package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// loadRecordsCmd reads the record store asynchronously so the UI keeps
// animating while a slow backend responds.
func loadRecordsCmd(source RecordSource) tea.Cmd {
	return func() tea.Msg {
		records, err := source.List()
		if err != nil {
			return loadFailedMsg{Err: err}
		}
		return recordsLoadedMsg{Records: records}
	}
}
