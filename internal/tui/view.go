package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/modelroom/modelroom/internal/registry"
)

// View renders the current model state
func (m Model) View() string {
	switch m.viewMode {
	case ViewList:
		return m.renderListView()
	case ViewDetail:
		return m.renderDetailView()
	case ViewHelp:
		return m.renderHelpView()
	default:
		return m.renderListView()
	}
}

// renderListView renders the main model list view
func (m Model) renderListView() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var content strings.Builder

	// Render header
	content.WriteString(m.renderHeader())
	content.WriteString("\n")

	// Render error banner if present
	if m.showError {
		content.WriteString(m.renderErrorBanner())
		content.WriteString("\n")
	}

	// Render record list
	content.WriteString(m.renderRecordList())
	content.WriteString("\n")

	// Render footer
	content.WriteString(m.renderFooter())

	return content.String()
}

// renderHeader renders the header with title and status summary
func (m Model) renderHeader() string {
	title := titleStyle.Render("🧠 Modelroom Dashboard")

	counts := m.CountByStatus()
	summary := fmt.Sprintf(
		"%s %d  %s %d  %s %d  %s %d",
		m.statusIcon(registry.StatusComplete), counts[registry.StatusComplete],
		m.statusIcon(registry.StatusGenerating), counts[registry.StatusGenerating],
		m.statusIcon(registry.StatusUpdating), counts[registry.StatusUpdating],
		m.statusIcon(registry.StatusError), counts[registry.StatusError],
	)

	// Add loading indicator while the registry is being read
	if m.loading {
		summary += fmt.Sprintf("  %s Loading", m.spinner.View())
	}

	headerContent := lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		summary,
	)

	return headerStyle.Render(headerContent)
}

// renderRecordList renders the list of model records
func (m Model) renderRecordList() string {
	if len(m.records) == 0 {
		return m.renderEmptyState()
	}

	var items []string
	visibleHeight := m.height - 10 // Reserve space for header and footer

	// Calculate scroll window around the cursor
	start := 0
	if visibleHeight > 0 && m.cursor >= visibleHeight {
		start = m.cursor - visibleHeight + 1
	}
	end := start + visibleHeight
	if end > len(m.records) || visibleHeight <= 0 {
		end = len(m.records)
	}

	for i := start; i < end; i++ {
		items = append(items, m.renderRecordItem(i, i == m.cursor))
	}

	// Add scroll indicators if needed
	if start > 0 {
		items = append([]string{lipgloss.NewStyle().Foreground(mutedColor).Render("▲ More above")}, items...)
	}
	if end < len(m.records) {
		items = append(items, lipgloss.NewStyle().Foreground(mutedColor).Render("▼ More below"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

// renderRecordItem renders a single model record item
func (m Model) renderRecordItem(index int, selected bool) string {
	rec := m.records[index]

	// Status icon, animated while training runs
	icon := m.statusIcon(rec.Status)
	if rec.Status == registry.StatusGenerating || rec.Status == registry.StatusUpdating {
		icon = m.spinner.View()
	}
	statusStr := statusStyle(rec.Status).Render(icon)

	// Model number (1-indexed for display)
	number := fmt.Sprintf("%d.", index+1)

	// Engine and target summary
	summary := fmt.Sprintf("engine: %s  target: %s", rec.Engine, rec.Target)
	if rec.DataRows > 0 {
		summary += fmt.Sprintf("  rows: %d", rec.DataRows)
	}

	// Third line: training error when present, relative training time otherwise
	var detail string
	if rec.Status == registry.StatusError && rec.Error != "" {
		msg := rec.Error
		if len(msg) > 60 {
			msg = msg[:57] + "..."
		}
		detail = lipgloss.NewStyle().Foreground(errorColor).Render(msg)
	} else {
		detail = lipgloss.NewStyle().Foreground(mutedColor).Render("Trained: " + FormatWhen(rec.TrainedAt))
	}

	// Compose the item
	line1 := fmt.Sprintf("%s %s %s", statusStr, number, lipgloss.NewStyle().Bold(true).Render(rec.Name))
	line2 := fmt.Sprintf("   %s", summary)
	line3 := fmt.Sprintf("   %s", detail)

	content := lipgloss.JoinVertical(lipgloss.Left, line1, line2, line3)

	// Apply selected style if this item is selected
	if selected {
		return selectedItemStyle.Render(content)
	}
	return itemStyle.Render(content)
}

// renderEmptyState renders the empty state when no models are registered
func (m Model) renderEmptyState() string {
	message := `No models yet.

To train one, use:
  modelroom create <name> --engine <engine> --target <column> --data <file.csv>`

	return emptyStateStyle.Render(message)
}

// renderFooter renders the footer with keyboard shortcuts
func (m Model) renderFooter() string {
	hints := []string{
		"↑/↓: navigate",
		"enter: details",
		"r: refresh",
		"?: help",
	}

	// Add error dismissal hint if error is showing
	if m.showError {
		hints = append(hints, "x: dismiss error")
	}

	hints = append(hints, "q: quit")

	return footerStyle.Render(strings.Join(hints, "  •  "))
}

// renderErrorBanner renders an error message banner
func (m Model) renderErrorBanner() string {
	return errorBannerStyle.Render(m.errorMsg)
}

// renderDetailView renders the detail view for a selected model
func (m Model) renderDetailView() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	rec, ok := m.RecordByName(m.selected)
	if !ok {
		return "Model not found"
	}

	var content strings.Builder

	// Header with model name
	header := titleStyle.Render(fmt.Sprintf("📋 %s", rec.Name))
	content.WriteString(header)
	content.WriteString("\n\n")

	// Render error banner if present
	if m.showError {
		content.WriteString(m.renderErrorBanner())
		content.WriteString("\n\n")
	}

	// Status section
	statusIcon := m.statusIcon(rec.Status)
	statusLine := fmt.Sprintf("%s Status: %s",
		statusStyle(rec.Status).Render(statusIcon),
		lipgloss.NewStyle().Bold(true).Render(rec.Status.String()))
	content.WriteString(statusLine)
	content.WriteString("\n\n")

	// Metadata section
	metaStyle := lipgloss.NewStyle().Foreground(mutedColor)
	content.WriteString(lipgloss.NewStyle().Bold(true).Render("Model"))
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("  ID: %s\n", rec.ID))
	content.WriteString(fmt.Sprintf("  Engine: %s\n", rec.Engine))
	content.WriteString(fmt.Sprintf("  Target: %s\n", rec.Target))
	content.WriteString(fmt.Sprintf("  Training rows: %d\n", rec.DataRows))
	content.WriteString(fmt.Sprintf("  Created: %s\n", rec.CreatedAt.Format("Jan 2, 2006 15:04")))
	if !rec.TrainedAt.IsZero() {
		content.WriteString(fmt.Sprintf("  Trained: %s\n", FormatWhen(rec.TrainedAt)))
	}
	content.WriteString("\n")

	// Arguments section
	if len(rec.Args) > 0 {
		content.WriteString(lipgloss.NewStyle().Bold(true).Render("Arguments"))
		content.WriteString("\n")
		keys := make([]string, 0, len(rec.Args))
		for key := range rec.Args {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			content.WriteString(fmt.Sprintf("  %s: %v\n", key, rec.Args[key]))
		}
		content.WriteString("\n")
	}

	// Engine section
	if meta, found := m.engines[rec.Engine]; found {
		content.WriteString(lipgloss.NewStyle().Bold(true).Render("Engine"))
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("  Version: %s\n", meta.Version))
		if meta.Description != "" {
			content.WriteString(fmt.Sprintf("  %s\n", meta.Description))
		}
		content.WriteString(fmt.Sprintf("  Capabilities: %s\n", strings.Join(meta.Capabilities.List(), ", ")))
		content.WriteString("\n")
	}

	// Error section
	if rec.Error != "" {
		content.WriteString(lipgloss.NewStyle().Bold(true).Foreground(errorColor).Render("Error"))
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("  %s\n", rec.Error))
		content.WriteString("\n")
	}

	// Footer with actions
	hints := []string{
		"r: refresh",
		"esc: back",
		"?: help",
		"q: quit",
	}
	footer := footerStyle.Render(strings.Join(hints, "  •  "))

	// Calculate available height for content
	contentHeight := m.height - 4 // Reserve space for footer
	lines := strings.Split(content.String(), "\n")

	// Truncate if too many lines
	if len(lines) > contentHeight {
		lines = lines[:contentHeight]
		content.Reset()
		content.WriteString(strings.Join(lines, "\n"))
		content.WriteString("\n")
		content.WriteString(metaStyle.Render("... (content truncated)"))
		content.WriteString("\n")
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		content.String(),
		"",
		footer,
	)
}

// renderHelpView renders the help overlay
func (m Model) renderHelpView() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	title := titleStyle.Render("❓ Modelroom Dashboard Help")

	helpContent := `
List View:
  ↑/↓, j/k      Navigate up/down
  1-9           Jump to model by number
  Enter         View model details
  r             Reload models from the registry
  ?             Toggle this help
  q, Ctrl+C     Quit application

Detail View:
  r             Reload models from the registry
  Esc           Back to list
  ?             Toggle this help
  q, Ctrl+C     Quit application

Status Indicators:
  🟢 complete     Training finished, model ready for predictions
  🟡 generating   Training job still running
  🔵 updating     Retraining on fresh data
  🔴 error        Training or update failed

Tips:
  • Failed models are sorted to the top
  • The dashboard is read-only; create and delete models with the CLI
  • Press r to pick up models trained in another session
`

	helpText := lipgloss.NewStyle().
		Padding(1, 2).
		Render(helpContent)

	footer := footerStyle.Render("Press ? or Esc to close")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		helpText,
		footer,
	)
}

// statusIcon returns the icon for a status, honouring the terminal's
// unicode support.
func (m Model) statusIcon(status registry.Status) string {
	if m.useUnicode {
		return status.Icon()
	}
	return status.IconFallback()
}

// FormatWhen formats a timestamp to a human-readable relative time
func FormatWhen(t time.Time) string {
	if t.IsZero() {
		return "Never"
	}

	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("Jan 2, 2006")
	}
}
