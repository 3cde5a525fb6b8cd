// ABOUTME: Tests for the command-line interface
// ABOUTME: Covers config loading, flag binding and the informational commands
package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Resonate-Protocol/bustap/internal/discovery"
	"github.com/Resonate-Protocol/bustap/internal/receiver"
	"github.com/Resonate-Protocol/bustap/internal/version"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// isolate keeps the developer's own config files out of the test
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	return dir
}

func execute(t *testing.T, st *state, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(st)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	t.Cleanup(func() { _ = st.close() })
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	out, err := execute(t, newState(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, version.Product+" "+version.Version)
}

func TestBackendsMarksConfigured(t *testing.T) {
	isolate(t)
	t.Setenv("BUSTAP_TAP_BACKEND", "discard")

	out, err := execute(t, newState(), "backends")
	require.NoError(t, err)
	assert.Contains(t, out, "* discard\n")
	assert.Contains(t, out, "  websocket\n")
}

func TestConfigFlagLoadsFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "tap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tap:\n  backend: discard\n  target: monitor\n"), 0o644))

	st := newState()
	_, err := execute(t, st, "backends", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "discard", st.settings.Tap.Backend)
	assert.Equal(t, "monitor", st.settings.Tap.Target)
}

func TestMissingConfigFileFails(t *testing.T) {
	dir := isolate(t)
	_, err := execute(t, newState(), "backends", "--config", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "tap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tap:\n  target: from-file\n  blockframes: 256\n"), 0o644))

	st := newState()
	_, err := execute(t, st,
		"run", "--config", path, "--no-tui",
		"--backend", "discard",
		"--target", "from-flag",
		"--retry", "0",
		"--heal=false",
		"--log-level", "error",
		"--source", filepath.Join(dir, "missing.mp3"),
	)
	require.Error(t, err, "missing source file must fail before running")
	assert.Contains(t, err.Error(), "failed to start tap")

	s := st.settings
	require.NotNil(t, s)
	assert.Equal(t, "discard", s.Tap.Backend)
	assert.Equal(t, "from-flag", s.Tap.Target)
	assert.Equal(t, 256, s.Tap.BlockFrames, "unset flags keep file values")
	assert.Equal(t, time.Duration(0), s.Tap.RetryInterval)
	assert.False(t, s.Tap.Heal)
	assert.Equal(t, "error", s.Log.Level)
}

func TestReceiveFlagsBind(t *testing.T) {
	isolate(t)

	st := newState()
	_, err := execute(t, st, "receive", "--backend", "nonexistent", "--listen", "127.0.0.1:0", "--mdns=false", "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create receiver")
	assert.Equal(t, "127.0.0.1:0", st.settings.Receiver.Listen)
	assert.Equal(t, "nonexistent", st.settings.Receiver.Backend)
}

func TestPrintReceivers(t *testing.T) {
	var out bytes.Buffer
	printReceivers(&out, nil)
	assert.Equal(t, "No receivers found\n", out.String())

	out.Reset()
	printReceivers(&out, []discovery.ReceiverInfo{
		{Name: "studio", Host: "10.0.0.5", Port: 8928, Path: "/tap"},
	})
	assert.Equal(t, "studio\tws://10.0.0.5:8928/tap\n", out.String())
}

func TestServeUntilDoneStopsOnCancel(t *testing.T) {
	log, _ := test.NewNullLogger()
	r, err := receiver.New(receiver.Config{
		Name:    "test",
		Listen:  "127.0.0.1:0",
		Backend: "discard",
		Logger:  log,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveUntilDone(ctx, r) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("receiver did not stop")
	}
}
