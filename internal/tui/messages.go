package tui

import "github.com/modelroom/modelroom/internal/registry"

// ViewMode determines which screen to render
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
	ViewHelp
)

// recordsLoadedMsg carries a fresh snapshot of the model records.
type recordsLoadedMsg struct {
	Records []registry.Record
}

// loadFailedMsg indicates the record store could not be read.
type loadFailedMsg struct {
	Err error
}
