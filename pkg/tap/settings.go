// ABOUTME: Live tap settings polled from the real-time path
// ABOUTME: Target identifier and mute flag stored in atomics
package tap

import "sync/atomic"

var defaultTarget = new(string)

// Settings holds the externally configured values the tap polls each cycle.
// Setters may be called from any goroutine.
type Settings struct {
	target atomic.Pointer[string]
	mute   atomic.Bool
}

// NewSettings creates settings with an initial target and mute flag
func NewSettings(target string, mute bool) *Settings {
	s := &Settings{}
	s.SetTarget(target)
	s.SetMute(mute)
	return s
}

// SetTarget changes the sink target; "" selects the system default
func (s *Settings) SetTarget(target string) {
	s.target.Store(&target)
}

// Target returns the configured sink target
func (s *Settings) Target() string {
	return *s.loadTarget()
}

// SetMute silences the pass-through output. The tapped copy is unaffected.
func (s *Settings) SetMute(mute bool) {
	s.mute.Store(mute)
}

// Mute reports whether the pass-through output is silenced
func (s *Settings) Mute() bool {
	return s.mute.Load()
}

func (s *Settings) loadTarget() *string {
	if t := s.target.Load(); t != nil {
		return t
	}
	return defaultTarget
}
