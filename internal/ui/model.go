// ABOUTME: Bubbletea model for the tap TUI
// ABOUTME: Defines display state and update logic
package ui

import (
	"fmt"
	"strings"

	"github.com/Resonate-Protocol/bustap/pkg/tap"
	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	// Sink
	backend string
	target  string
	open    bool
	running bool
	failed  bool

	// Stream
	source     string
	sampleRate int
	peakL      float32
	peakR      float32
	muted      bool

	// Stats
	ringFill      int
	ringCapacity  int
	pushed        uint64
	dropped       uint64
	written       uint64
	reconfigs     uint64
	openFailures  uint64
	writeFailures uint64

	// Debug
	showDebug  bool
	goroutines int
	memAlloc   uint64
	memSys     uint64

	// Dimensions
	width  int
	height int

	ctrl *Control
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
	s += m.renderStreamInfo()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders sink status
func (m Model) renderHeader() string {
	target := m.target
	if target == "" {
		target = "default"
	}

	icon := "✗"
	state := "Closed"
	switch {
	case m.open && m.running:
		icon = "✓"
		state = "Streaming"
	case m.failed:
		icon = "⚠"
		state = "Write failed"
	case m.open:
		icon = "⚠"
		state = "Open, worker stopped"
	}

	return fmt.Sprintf(`┌─ Bus Tap ────────────────────────────────────────────┐
│ Sink:   %-45s │
│ State:  %s %-43s │
├──────────────────────────────────────────────────────┤
`, truncate(m.backend+" → "+target, 45), icon, state)
}

// renderStreamInfo renders the source and pass-through level
func (m Model) renderStreamInfo() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " (muted)"
	}

	return fmt.Sprintf("│ Source: %-45s │\n"+
		"│ Format: %dHz Stereo float32%-25s │\n"+
		"│ Out L:  [%s]%s%-9s │\n"+
		"│ Out R:  [%s]%-17s │\n",
		truncate(m.source, 45),
		m.sampleRate, "",
		renderBar(int(m.peakL*100), 100, 20), muteIcon, "",
		renderBar(int(m.peakR*100), 100, 20), "")
}

// renderStats renders ring and sink counters
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Ring:   [%s] %d/%d%-10s │
│ Frames: pushed %d  written %d  dropped %d%-4s │
│ Sink:   reconfigs %d  open fails %d  write fails %d │
│                                                      │
`, renderBar(m.ringFill, m.ringCapacity, 20), m.ringFill, m.ringCapacity, "",
		m.pushed, m.written, m.dropped, "",
		m.reconfigs, m.openFailures, m.writeFailures)
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ m:Mute  d:Debug  q:Quit                              │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders runtime information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Goroutines: %d%-30s │
│   Memory: %.1fMB alloc, %.1fMB sys%-15s │
`, m.goroutines, "", float64(m.memAlloc)/1e6, float64(m.memSys)/1e6, "")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.ctrl != nil {
			m.ctrl.RequestQuit()
		}
		return m, tea.Quit
	case "m":
		m.muted = !m.muted
		if m.ctrl != nil {
			m.ctrl.requestMute(m.muted)
		}
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Backend != "" {
		m.backend = msg.Backend
	}
	if msg.Source != "" {
		m.source = msg.Source
	}
	if msg.SampleRate != 0 {
		m.sampleRate = msg.SampleRate
	}
	if msg.Muted != nil {
		m.muted = *msg.Muted
	}
	if msg.Status != nil {
		m.target = msg.Status.Target
		m.open = msg.Status.Open
		m.running = msg.Status.Running
		m.failed = msg.Status.Failed
	}
	if msg.Stats != nil {
		m.ringFill = msg.Stats.RingFill
		m.ringCapacity = msg.Stats.RingCapacity
		m.pushed = msg.Stats.FramesPushed
		m.dropped = msg.Stats.FramesDropped
		m.written = msg.Stats.FramesWritten
		m.reconfigs = msg.Stats.Reconfigurations
		m.openFailures = msg.Stats.OpenFailures
		m.writeFailures = msg.Stats.WriteFailures
		m.peakL = msg.PeakL
		m.peakR = msg.PeakR
	}
	if msg.Goroutines != 0 {
		m.goroutines = msg.Goroutines
		m.memAlloc = msg.MemAlloc
		m.memSys = msg.MemSys
	}
}

// StatusMsg updates TUI state. Nil and zero fields leave the current
// value in place.
type StatusMsg struct {
	Backend    string
	Source     string
	SampleRate int
	Muted      *bool
	Status     *tap.Status
	Stats      *tap.Stats
	PeakL      float32 // applied with Stats
	PeakR      float32
	Goroutines int
	MemAlloc   uint64
	MemSys     uint64
}

// Utility functions
func renderBar(value, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}
	filled := (value * width) / total
	filled = min(max(filled, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
