package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logrus.Level
		wantErr bool
	}{
		{"", logrus.InfoLevel, false},
		{"debug", logrus.DebugLevel, false},
		{"WARN", logrus.WarnLevel, false},
		{"error", logrus.ErrorLevel, false},
		{"loud", logrus.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bustap.log")
	l := logrus.New()

	closeLog, err := Setup(l, Options{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)

	l.WithFields(F{"target": "default"}).Debug("Connected to audio sink")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Connected to audio sink"`)
	assert.Contains(t, string(data), `"target":"default"`)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
}

func TestSetupAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bustap.log")
	require.NoError(t, os.WriteFile(path, []byte("previous\n"), 0o644))

	l := logrus.New()
	closeLog, err := Setup(l, Options{File: path})
	require.NoError(t, err)
	l.Info("next")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "previous\n")
	assert.Contains(t, string(data), "msg=next")
}

func TestSetupErrors(t *testing.T) {
	l := logrus.New()

	_, err := Setup(l, Options{Level: "chatty"})
	assert.Error(t, err)

	_, err = Setup(l, Options{Format: "xml"})
	assert.Error(t, err)

	_, err = Setup(l, Options{File: t.TempDir()})
	assert.Error(t, err)
}

func TestSetupDiscardsWithoutOutputs(t *testing.T) {
	l := logrus.New()
	closeLog, err := Setup(l, Options{})
	require.NoError(t, err)
	assert.NoError(t, closeLog())
	l.Info("dropped")
}
