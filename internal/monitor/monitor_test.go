package monitor

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simlink/relay/internal/arbiter"
	"github.com/simlink/relay/internal/influx"
)

type fakeSource struct {
	info    arbiter.Info
	blocked bool
}

func (f fakeSource) Info() arbiter.Info { return f.info }
func (f fakeSource) RelayBlocked() bool { return f.blocked }

type recordingWriter struct {
	mu     sync.Mutex
	points []*influxdb2_write.Point
	err    error
}

func (w *recordingWriter) WritePoint(p *influxdb2_write.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, p)
	return w.err
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.points)
}

func TestReportWritesEveryOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	points := &recordingWriter{}
	var logs bytes.Buffer

	s := NewService(Dependencies{
		Source: fakeSource{
			info:    arbiter.Info{Role: arbiter.RoleReceiver, Connected: true, PlayerIndex: 4, Batches: 12},
			blocked: true,
		},
		Session:    "race",
		StatusPath: path,
		Points:     points,
		Logger:     slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})

	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	st := s.Report(now)

	assert.Equal(t, "receiver", st.Role)
	assert.True(t, st.RelayBlocked)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var fromFile Status
	require.NoError(t, json.Unmarshal(b, &fromFile))
	assert.Equal(t, st, fromFile)

	require.Len(t, points.points, 1)
	assert.Equal(t, influx.Measurement, points.points[0].Name())
	assert.Equal(t, now, points.points[0].Time())

	assert.Contains(t, logs.String(), "role=receiver")
	assert.Contains(t, logs.String(), "batches=12")
}

func TestReportPointErrorIsLogged(t *testing.T) {
	var logs bytes.Buffer
	s := NewService(Dependencies{
		Source: fakeSource{},
		Points: &recordingWriter{err: errors.New("backup unavailable")},
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
	})

	st := s.Report(time.Now())
	assert.Equal(t, "undetermined", st.Role)
	assert.Contains(t, logs.String(), "backup unavailable")
}

func TestStartStop(t *testing.T) {
	points := &recordingWriter{}
	s := NewService(Dependencies{
		Source:   fakeSource{info: arbiter.Info{Role: arbiter.RoleSender}},
		Points:   points,
		Interval: 10 * time.Millisecond,
	})

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool { return points.count() >= 2 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	n := points.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, points.count())

	s.Stop()
}
