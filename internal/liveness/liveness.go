// Package liveness runs the poll loop over one record set: capture, resolve
// the local player, publish, and decide whether the producer has gone quiet.
package liveness

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/simlink/relay/internal/player"
	"github.com/simlink/relay/internal/snapshot"
	"github.com/simlink/relay/internal/state"
	"github.com/simlink/relay/pkg/rf2"
)

// Phase is the tracker's view of the producer.
type Phase int

const (
	// PhaseActive means the version counter is advancing.
	PhaseActive Phase = iota
	// PhaseFrozen means the counter stopped for longer than the freeze timeout.
	PhaseFrozen
)

func (p Phase) String() string {
	if p == PhaseFrozen {
		return "frozen"
	}
	return "active"
}

// Config holds the tracker's timing. Zero fields take the defaults.
type Config struct {
	FreezeTimeout  time.Duration
	ActiveInterval time.Duration
	IdleInterval   time.Duration
	MissLimit      int
	StopTimeout    time.Duration
}

// Defaults for Config.
const (
	DefaultFreezeTimeout  = 2 * time.Second
	DefaultActiveInterval = 10 * time.Millisecond
	DefaultIdleInterval   = 500 * time.Millisecond
	DefaultMissLimit      = 5
	DefaultStopTimeout    = 2 * time.Second
)

func (c Config) withDefaults() Config {
	if c.FreezeTimeout <= 0 {
		c.FreezeTimeout = DefaultFreezeTimeout
	}
	if c.ActiveInterval <= 0 {
		c.ActiveInterval = DefaultActiveInterval
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = DefaultIdleInterval
	}
	if c.MissLimit <= 0 {
		c.MissLimit = DefaultMissLimit
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	return c
}

// State is a copy of the tracker's state machine.
type State struct {
	Phase         Phase
	Paused        bool
	LastVersion   uint32
	FreezeVersion uint32
	PollInterval  time.Duration
	Misses        int
}

// Tracker polls four snapshotters and publishes into a state.Set.
type Tracker struct {
	cfg      Config
	snaps    [4]*snapshot.Snapshotter
	resolver *player.Resolver
	set      *state.Set
	logger   *slog.Logger

	mu         sync.Mutex
	st         State
	identity   player.Identity
	lastChange time.Time
	started    bool

	runMu    sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}

	freezes metric.Int64Counter
}

// New creates a tracker. A nil resolver gets one without an override.
func New(cfg Config, snaps [4]*snapshot.Snapshotter, resolver *player.Resolver, set *state.Set, logger *slog.Logger) *Tracker {
	if resolver == nil {
		resolver = player.NewResolver(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	t := &Tracker{
		cfg:      cfg,
		snaps:    snaps,
		resolver: resolver,
		set:      set,
		logger:   logger,
		identity: player.Unresolved,
		st:       State{Phase: PhaseActive, PollInterval: cfg.ActiveInterval},
	}
	t.freezes, _ = meter().Int64Counter("liveness.freezes",
		metric.WithDescription("Transitions from active to frozen"))
	return t
}

func (t *Tracker) Set() *state.Set { return t.set }

func (t *Tracker) Resolver() *player.Resolver { return t.resolver }

// Snapshotters returns the tracker's snapshotters in rf2.RecordTypes order.
func (t *Tracker) Snapshotters() [4]*snapshot.Snapshotter { return t.snaps }

// State returns a copy of the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st
}

// Step runs one poll cycle at now and returns the interval until the next.
func (t *Tracker) Step(now time.Time) time.Duration {
	var records [4][]byte
	for _, rt := range rf2.RecordTypes {
		if s := t.snaps[rt]; s != nil {
			snap := s.Capture()
			records[rt] = snap.Data
			// the set outlives the mapping a direct capture points into
			if snap.Direct {
				records[rt] = bytes.Clone(snap.Data)
			}
		}
	}
	_, version := rf2.Versions(records[rf2.TypeScoring])
	id, resolved := t.resolver.Resolve(rf2.ScoringView(records[rf2.TypeScoring]), rf2.TelemetryView(records[rf2.TypeTelemetry]))

	t.mu.Lock()
	if resolved {
		t.identity = id
		t.st.Misses = 0
	} else if t.st.Misses < t.cfg.MissLimit {
		t.st.Misses++
	}
	t.advance(now, version)
	t.st.Paused = t.st.Phase == PhaseFrozen || t.st.Misses >= t.cfg.MissLimit
	update := state.Update{Records: records, Identity: t.identity, Paused: t.st.Paused}
	interval := t.st.PollInterval
	t.mu.Unlock()

	if t.set != nil {
		t.set.Publish(update)
	}
	return interval
}

// advance runs the freeze state machine. Callers hold t.mu.
func (t *Tracker) advance(now time.Time, version uint32) {
	if !t.started {
		t.started = true
		t.st.LastVersion = version
		t.lastChange = now
		return
	}
	if version != t.st.LastVersion {
		t.st.LastVersion = version
		t.lastChange = now
		if t.st.Phase == PhaseFrozen {
			t.st.Phase = PhaseActive
			t.st.PollInterval = t.cfg.ActiveInterval
			t.logger.Info("Producer resumed", "version", version, "frozenAt", t.st.FreezeVersion)
		}
		return
	}
	if t.st.Phase == PhaseActive && now.Sub(t.lastChange) > t.cfg.FreezeTimeout {
		t.st.Phase = PhaseFrozen
		t.st.FreezeVersion = t.st.LastVersion
		t.st.PollInterval = t.cfg.IdleInterval
		t.freezes.Add(context.Background(), 1)
		t.logger.Info("Producer frozen", "version", t.st.LastVersion, "idle", now.Sub(t.lastChange))
	}
}

// IsRunning reports whether the poll loop is running.
func (t *Tracker) IsRunning() bool {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	return t.running
}

// Start launches the poll loop. It stops on Stop or when ctx ends.
func (t *Tracker) Start(ctx context.Context) {
	t.runMu.Lock()
	if t.running {
		t.runMu.Unlock()
		return
	}
	t.running = true
	t.stopChan = make(chan struct{})
	t.done = make(chan struct{})
	stop, done := t.stopChan, t.done
	t.runMu.Unlock()

	go func() {
		defer close(done)
		t.logger.Debug("Starting liveness poll loop")
		timer := time.NewTimer(0)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case now := <-timer.C:
				timer.Reset(t.Step(now))
			}
		}
	}()
}

// Stop signals the poll loop and waits up to the stop timeout for it to exit.
func (t *Tracker) Stop() {
	t.runMu.Lock()
	if !t.running {
		t.runMu.Unlock()
		return
	}
	t.running = false
	close(t.stopChan)
	done := t.done
	t.runMu.Unlock()

	select {
	case <-done:
	case <-time.After(t.cfg.StopTimeout):
		t.logger.Warn("Liveness poll loop did not stop in time", "timeout", t.cfg.StopTimeout)
	}
}
