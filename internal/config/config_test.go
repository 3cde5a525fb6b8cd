package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Resonate-Protocol/bustap/pkg/tap"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps the search paths and .env lookup away from the developer's files
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaults(t *testing.T) {
	isolate(t)

	s, err := New().Load("")
	require.NoError(t, err)

	assert.Equal(t, "pulse", s.Tap.Backend)
	assert.Equal(t, "", s.Tap.Target)
	assert.False(t, s.Tap.Mute)
	assert.Equal(t, 48000, s.Tap.SampleRate)
	assert.Equal(t, 4096, s.Tap.RingFrames)
	assert.Equal(t, 512, s.Tap.BlockFrames)
	assert.Equal(t, time.Millisecond, s.Tap.PollInterval)
	assert.Equal(t, time.Second, s.Tap.RetryInterval)
	assert.True(t, s.Tap.Heal)
	assert.Equal(t, "info", s.Log.Level)
	assert.Equal(t, "text", s.Log.Format)
	assert.Equal(t, "", s.Metrics.Listen)
	assert.Equal(t, ":8928", s.Receiver.Listen)
	assert.NotEmpty(t, s.Receiver.Name)
}

func TestLoadFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bustap.yaml")
	writeFile(t, path, `
tap:
  backend: websocket
  target: ws://studio.local:8928/tap
  mute: true
  ringframes: 1024
  pollinterval: 2ms
  retryinterval: 0s
  heal: false
log:
  level: debug
  format: json
metrics:
  listen: 127.0.0.1:9100
`)

	c := New()
	s, err := c.Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, c.File())

	assert.Equal(t, "websocket", s.Tap.Backend)
	assert.Equal(t, "ws://studio.local:8928/tap", s.Tap.Target)
	assert.True(t, s.Tap.Mute)
	assert.Equal(t, 1024, s.Tap.RingFrames)
	assert.Equal(t, 2*time.Millisecond, s.Tap.PollInterval)
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, "127.0.0.1:9100", s.Metrics.Listen)

	tc := s.Tap.TapConfig()
	assert.Equal(t, "websocket", tc.Backend)
	assert.Equal(t, 1024, tc.RingCapacity)
	assert.Equal(t, tap.NoRetryThrottle, tc.RetryInterval)
	assert.True(t, tc.DisableHeal)
	assert.Equal(t, "ws://studio.local:8928/tap", tc.Settings.Target())
	assert.True(t, tc.Settings.Mute())
}

func TestLoadSearchPath(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), `
[tap]
target = "alsa_output.usb"
`)

	c := New()
	s, err := c.Load("")
	require.NoError(t, err)
	assert.Equal(t, "alsa_output.usb", s.Tap.Target)
	assert.Equal(t, "config.toml", filepath.Base(c.File()))
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	_, err := New().Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bustap.yaml")
	writeFile(t, path, "tap:\n  target: from-file\n  ringframes: 1024\n")

	t.Setenv("BUSTAP_TAP_TARGET", "from-env")
	t.Setenv("BUSTAP_TAP_RINGFRAMES", "256")

	s, err := New().Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", s.Tap.Target)
	assert.Equal(t, 256, s.Tap.RingFrames)
}

func TestDotEnv(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, ".env"), "BUSTAP_TAP_BACKEND=wav\n")

	// Restored to unset after the test; godotenv never overrides set variables
	t.Setenv("BUSTAP_TAP_BACKEND", "")
	require.NoError(t, os.Unsetenv("BUSTAP_TAP_BACKEND"))

	s, err := New().Load("")
	require.NoError(t, err)
	assert.Equal(t, "wav", s.Tap.Backend)
}

func TestFlagsOverride(t *testing.T) {
	isolate(t)

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.String("target", "", "")
	flags.Bool("mute", false, "")
	require.NoError(t, flags.Parse([]string{"--target", "headphones", "--mute"}))

	c := New()
	require.NoError(t, c.BindFlag("tap.target", flags.Lookup("target")))
	require.NoError(t, c.BindFlag("tap.mute", flags.Lookup("mute")))
	assert.Error(t, c.BindFlag("tap.backend", flags.Lookup("backend")))

	s, err := c.Load("")
	require.NoError(t, err)
	assert.Equal(t, "headphones", s.Tap.Target)
	assert.True(t, s.Tap.Mute)
}

func TestValidate(t *testing.T) {
	valid := func() Settings {
		return Settings{
			Tap: TapSettings{
				SampleRate:    48000,
				RingFrames:    4096,
				BlockFrames:   512,
				PollInterval:  time.Millisecond,
				RetryInterval: time.Second,
			},
			Log: LogSettings{Level: "info"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero sample rate", func(s *Settings) { s.Tap.SampleRate = 0 }},
		{"ring not power of two", func(s *Settings) { s.Tap.RingFrames = 1000 }},
		{"ring too small", func(s *Settings) { s.Tap.RingFrames = 1 }},
		{"zero block", func(s *Settings) { s.Tap.BlockFrames = 0 }},
		{"zero poll", func(s *Settings) { s.Tap.PollInterval = 0 }},
		{"negative retry", func(s *Settings) { s.Tap.RetryInterval = -time.Second }},
		{"bad log level", func(s *Settings) { s.Log.Level = "shouty" }},
	}

	base := valid()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestApply(t *testing.T) {
	live := tap.NewSettings("old", false)
	TapSettings{Target: "new", Mute: true}.Apply(live)
	assert.Equal(t, "new", live.Target())
	assert.True(t, live.Mute())
}

func TestLoggerOptions(t *testing.T) {
	opts := LogSettings{Level: "warn", Format: "json", File: "x.log"}.LoggerOptions(true)
	assert.Equal(t, "warn", opts.Level)
	assert.Equal(t, "json", opts.Format)
	assert.Equal(t, "x.log", opts.File)
	assert.True(t, opts.Console)
}

func TestReloadable(t *testing.T) {
	assert.True(t, reloadable(fsnotify.Event{Op: fsnotify.Write}))
	assert.True(t, reloadable(fsnotify.Event{Op: fsnotify.Create}))
	assert.False(t, reloadable(fsnotify.Event{Op: fsnotify.Chmod}))
	assert.False(t, reloadable(fsnotify.Event{Op: fsnotify.Remove}))
}

func TestWatchReloadsTarget(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bustap.yaml")
	writeFile(t, path, "tap:\n  target: first\n")

	c := New()
	s, err := c.Load(path)
	require.NoError(t, err)

	live := tap.NewSettings(s.Tap.Target, s.Tap.Mute)
	c.Watch(func(s *Settings, err error) {
		if err == nil {
			s.Tap.Apply(live)
		}
	})

	writeFile(t, path, "tap:\n  target: second\n  mute: true\n")

	assert.Eventually(t, func() bool {
		return live.Target() == "second" && live.Mute()
	}, 5*time.Second, 10*time.Millisecond)
}
