// ABOUTME: Bubbletea model for the engine status TUI
// ABOUTME: Defines application state and update logic
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	// Engine
	state   string
	backend string

	// Queue
	queued   int
	capacity int

	// Counters
	enqueued      int64
	rejected      int64
	bytesConsumed int64

	// Recovery
	recoveries  int64
	lastFailure string

	// Ingest
	producerAddr string

	// Dimensions
	width  int
	height int
}

// NewModel creates a new TUI model
func NewModel() Model {
	return Model{
		state:   "idle",
		backend: "unknown",
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderQueue()
	s += m.renderStats()
	s += m.renderHelp()

	return s
}

// renderHeader renders engine and producer status
func (m Model) renderHeader() string {
	producer := "No producer"
	if m.producerAddr != "" {
		producer = fmt.Sprintf("Producer: %s", truncate(m.producerAddr, 35))
	}

	return fmt.Sprintf(`┌─ Airwave ────────────────────────────────────────────┐
│ State:   %-43s │
│ Backend: %-43s │
│ %-52s │
├──────────────────────────────────────────────────────┤
`, m.state, m.backend, producer)
}

// renderQueue renders queue occupancy
func (m Model) renderQueue() string {
	capacity := m.capacity
	if capacity == 0 {
		capacity = 1
	}
	bar := renderBar(m.queued, capacity, 20)

	return fmt.Sprintf("│ Queue:  [%s] %d/%d%-14s │\n",
		bar, m.queued, m.capacity, "")
}

// renderStats renders packet and recovery statistics
func (m Model) renderStats() string {
	failure := m.lastFailure
	if failure == "" {
		failure = "none"
	}

	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Packets: RX: %d  Dropped: %d  Consumed: %s%-4s │
│ Recoveries: %d  Last failure: %-24s │
`, m.enqueued, m.rejected, formatBytes(m.bytesConsumed), "",
		m.recoveries, truncate(failure, 24))
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ q:Quit                                               │
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.Backend != "" {
		m.backend = msg.Backend
	}
	if msg.Capacity != 0 {
		m.queued = msg.Queued
		m.capacity = msg.Capacity
	}
	if msg.ProducerAddr != nil {
		m.producerAddr = *msg.ProducerAddr
	}
	m.enqueued = msg.Enqueued
	m.rejected = msg.Rejected
	m.bytesConsumed = msg.BytesConsumed
	m.recoveries = msg.Recoveries
	if msg.LastFailure != "" {
		m.lastFailure = msg.LastFailure
	}
}

// StatusMsg updates TUI state
type StatusMsg struct {
	State         string
	Backend       string
	Queued        int
	Capacity      int
	Enqueued      int64
	Rejected      int64
	BytesConsumed int64
	Recoveries    int64
	LastFailure   string
	ProducerAddr  *string
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1fGB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%dB", n)
}
