// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program and the channels back to the app
package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Control carries user actions from the TUI to the app
type Control struct {
	Mute chan bool
	Quit chan struct{}

	quitOnce sync.Once
}

// NewControl creates a control handler
func NewControl() *Control {
	return &Control{
		Mute: make(chan bool, 10),
		Quit: make(chan struct{}),
	}
}

// RequestQuit closes Quit; later calls are no-ops
func (c *Control) RequestQuit() {
	c.quitOnce.Do(func() { close(c.Quit) })
}

func (c *Control) requestMute(muted bool) {
	select {
	case c.Mute <- muted:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *Control, muted bool) Model {
	return Model{
		muted: muted,
		ctrl:  ctrl,
	}
}

// Run creates the TUI program; the caller runs it
func Run(ctrl *Control, muted bool) *tea.Program {
	return tea.NewProgram(NewModel(ctrl, muted), tea.WithAltScreen())
}
