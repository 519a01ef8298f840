// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the engine status display
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the TUI
func Run() (*tea.Program, error) {
	p := tea.NewProgram(NewModel(), tea.WithAltScreen())
	return p, nil
}
