// Package monitor periodically reports the relay status to a status file,
// the log and the performance sink.
package monitor

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/simlink/relay/internal/arbiter"
	"github.com/simlink/relay/internal/influx"
)

// InfoSource is satisfied by *arbiter.Arbiter.
type InfoSource interface {
	Info() arbiter.Info
	RelayBlocked() bool
}

// PointWriter is satisfied by *influx.Manager.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source  InfoSource
	Session string
	// StatusPath is rewritten with the latest status as JSON. Empty disables.
	StatusPath string
	// Points receives one relay_performance point per interval. Nil disables.
	Points   PointWriter
	Interval time.Duration
	Logger   *slog.Logger
}

// Status is one status report.
type Status struct {
	Time         time.Time `json:"time"`
	Role         string    `json:"role"`
	Session      string    `json:"session"`
	Paused       bool      `json:"paused"`
	Connected    bool      `json:"connected"`
	RelayBlocked bool      `json:"relayBlocked"`
	PlayerIndex  int       `json:"playerIndex"`
	Batches      uint64    `json:"batches"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus reads the current status.
func (s *Service) GetStatus(now time.Time) Status {
	info := s.deps.Source.Info()
	return Status{
		Time:         now,
		Role:         info.Role.String(),
		Session:      s.deps.Session,
		Paused:       info.Paused,
		Connected:    info.Connected,
		RelayBlocked: s.deps.Source.RelayBlocked(),
		PlayerIndex:  info.PlayerIndex,
		Batches:      info.Batches,
	}
}

// Report writes one status to every configured output.
func (s *Service) Report(now time.Time) Status {
	st := s.GetStatus(now)
	logger := s.deps.Logger

	logger.Debug("Relay status",
		"role", st.Role, "paused", st.Paused, "connected", st.Connected,
		"playerIndex", st.PlayerIndex, "batches", st.Batches)

	if s.deps.StatusPath != "" {
		if err := writeStatusFile(s.deps.StatusPath, st); err != nil {
			logger.Error("Error writing status file", "error", err)
		}
	}

	if s.deps.Points != nil {
		point := influx.PerformancePoint(influx.Sample{
			Role:        st.Role,
			Session:     st.Session,
			Paused:      st.Paused,
			Connected:   st.Connected,
			PlayerIndex: st.PlayerIndex,
			Batches:     st.Batches,
		}, now)
		if err := s.deps.Points.WritePoint(point); err != nil {
			logger.Warn("Error writing performance point", "error", err)
		}
	}
	return st
}

func writeStatusFile(path string, st Status) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0644)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.deps.Logger.Debug("Starting status monitor", "interval", s.deps.Interval)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				s.Report(now)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.isRunning = false
	done := s.done
	s.mu.Unlock()
	<-done
}
