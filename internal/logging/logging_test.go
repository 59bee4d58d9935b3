package logging

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var timeZero time.Time

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "logs",
			want:    filepath.Join("logs", "rf2relay.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./logs",
			want:    filepath.Join(".", "logs", "rf2relay.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "rf2"),
			want:    filepath.Join("/var", "log", "rf2", "rf2relay.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LogFilePath(tt.logsDir, "rf2relay", sessionStart))
		})
	}
}

func TestNewZerolog(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, "warn")

	logger.Info().Msg("quiet")
	logger.Warn().Str("bucket", "relay").Msg("loud")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, `"message":"loud"`)
	assert.Contains(t, out, `"bucket":"relay"`)
	assert.Contains(t, out, `"time"`)
}

func TestNewZerolog_DefaultLevel(t *testing.T) {
	for _, level := range []string{"", "bogus"} {
		assert.Equal(t, zerolog.InfoLevel, NewZerolog(&bytes.Buffer{}, level).GetLevel(), level)
	}
}

func TestGraylogWriter(t *testing.T) {
	r, err := gelf.NewReader("127.0.0.1:0")
	require.NoError(t, err)

	w, err := NewGraylogWriter(r.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	m := NewSlogManager()
	m.Setup(Options{File: &bytes.Buffer{}, Graylog: w, Level: "info"})
	m.Logger().Info("hub listening", "addr", ":8765")

	// Setup logs its own line first.
	var shorts []string
	for range 2 {
		msg, err := r.ReadMessage()
		require.NoError(t, err)
		shorts = append(shorts, msg.Short)
	}
	assert.Contains(t, shorts[0], "Logging initialized")
	assert.Contains(t, shorts[1], "hub listening")
}
