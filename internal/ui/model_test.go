// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling, and rendering helpers
package ui

import (
	"strings"
	"testing"

	"github.com/Resonate-Protocol/bustap/pkg/tap"
	tea "github.com/charmbracelet/bubbletea"
)

func TestNewModel(t *testing.T) {
	model := NewModel(nil, false) // Control is optional for testing

	if model.open {
		t.Error("expected open to be false initially")
	}

	if model.muted {
		t.Error("expected muted to be false initially")
	}

	if model.showDebug {
		t.Error("expected showDebug to be false initially")
	}

	if !NewModel(nil, true).muted {
		t.Error("expected initial mute to be applied")
	}
}

func TestStatusMsgSinkState(t *testing.T) {
	model := NewModel(nil, false)

	model.applyStatus(StatusMsg{
		Backend: "pulse",
		Status:  &tap.Status{Target: "headphones", Open: true, Running: true},
	})

	if model.backend != "pulse" {
		t.Errorf("expected backend 'pulse', got '%s'", model.backend)
	}
	if model.target != "headphones" {
		t.Errorf("expected target 'headphones', got '%s'", model.target)
	}
	if !model.open || !model.running {
		t.Error("expected open and running after status update")
	}

	// Failure state replaces the previous snapshot
	model.applyStatus(StatusMsg{Status: &tap.Status{Target: "headphones", Open: true, Failed: true}})
	if model.running {
		t.Error("expected running to be false after failure")
	}
	if !model.failed {
		t.Error("expected failed to be true")
	}
}

func TestStatusMsgStats(t *testing.T) {
	model := NewModel(nil, false)

	model.applyStatus(StatusMsg{
		Stats: &tap.Stats{
			FramesPushed:     1000,
			FramesDropped:    50,
			FramesWritten:    900,
			Reconfigurations: 2,
			OpenFailures:     1,
			WriteFailures:    1,
			RingFill:         128,
			RingCapacity:     4096,
		},
		PeakL: 0.5,
		PeakR: 0.25,
	})

	if model.pushed != 1000 {
		t.Errorf("expected pushed 1000, got %d", model.pushed)
	}
	if model.dropped != 50 {
		t.Errorf("expected dropped 50, got %d", model.dropped)
	}
	if model.written != 900 {
		t.Errorf("expected written 900, got %d", model.written)
	}
	if model.ringFill != 128 || model.ringCapacity != 4096 {
		t.Errorf("expected ring 128/4096, got %d/%d", model.ringFill, model.ringCapacity)
	}
	if model.peakL != 0.5 || model.peakR != 0.25 {
		t.Errorf("expected peaks 0.5/0.25, got %v/%v", model.peakL, model.peakR)
	}
}

func TestStatusMsgZeroValuesKeepState(t *testing.T) {
	model := NewModel(nil, false)

	model.applyStatus(StatusMsg{Backend: "wav", Source: "Test Tone 440Hz", SampleRate: 48000})
	model.applyStatus(StatusMsg{})

	if model.backend != "wav" {
		t.Error("backend should not be cleared by empty string")
	}
	if model.source != "Test Tone 440Hz" {
		t.Error("source should not be cleared by empty string")
	}
	if model.sampleRate != 48000 {
		t.Error("sample rate should not be cleared by zero")
	}
}

func TestStatusMsgRuntimeStats(t *testing.T) {
	model := NewModel(nil, false)

	model.applyStatus(StatusMsg{
		Goroutines: 42,
		MemAlloc:   1024 * 1024,
		MemSys:     2048 * 1024,
	})

	if model.goroutines != 42 {
		t.Errorf("expected goroutines 42, got %d", model.goroutines)
	}
	if model.memAlloc != 1024*1024 {
		t.Errorf("expected memAlloc %d, got %d", 1024*1024, model.memAlloc)
	}
	if model.memSys != 2048*1024 {
		t.Errorf("expected memSys %d, got %d", 2048*1024, model.memSys)
	}
}

func TestMuteKeySendsControl(t *testing.T) {
	ctrl := NewControl()
	model := NewModel(ctrl, false)

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	m := updated.(Model)

	if !m.muted {
		t.Error("expected muted after pressing m")
	}

	select {
	case muted := <-ctrl.Mute:
		if !muted {
			t.Error("expected mute request true")
		}
	default:
		t.Error("expected a mute request on the control channel")
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	if updated.(Model).muted {
		t.Error("expected unmuted after pressing m again")
	}
}

func TestQuitKeyClosesControl(t *testing.T) {
	ctrl := NewControl()
	model := NewModel(ctrl, false)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}

	select {
	case <-ctrl.Quit:
	default:
		t.Error("expected quit channel to be closed")
	}

	// Second quit must not panic
	ctrl.RequestQuit()
}

func TestDebugToggle(t *testing.T) {
	model := NewModel(nil, false)
	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	if !updated.(Model).showDebug {
		t.Error("expected debug view after pressing d")
	}
}

func TestViewRendersSink(t *testing.T) {
	model := NewModel(nil, true)
	if model.View() != "Loading..." {
		t.Error("expected loading view before window size")
	}

	updated, _ := model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m := updated.(Model)
	m.applyStatus(StatusMsg{Backend: "pulse", Status: &tap.Status{Open: true, Running: true}})

	view := m.View()
	for _, want := range []string{"pulse → default", "Streaming", "(muted)", "q:Quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value, total, width int
		expected            string
	}{
		{0, 100, 4, "░░░░"},
		{50, 100, 4, "██░░"},
		{100, 100, 4, "████"},
		{150, 100, 4, "████"},
		{-5, 100, 4, "░░░░"},
		{10, 0, 4, "░░░░"},
	}

	for _, tt := range tests {
		result := renderBar(tt.value, tt.total, tt.width)
		if result != tt.expected {
			t.Errorf("renderBar(%d, %d, %d) = %q, expected %q",
				tt.value, tt.total, tt.width, result, tt.expected)
		}
	}
}

func TestTruncateFunction(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly ten c", 14, "exactly ten c"},
		{"this is longer than allowed", 10, "this is..."},
		{"this is longer than allowed", 15, "this is long..."},
		{"", 10, ""},
		{"abcd", 4, "abcd"},
		{"abcde", 4, "a..."},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, expected %q",
				tt.input, tt.maxLen, result, tt.expected)
		}
	}
}
