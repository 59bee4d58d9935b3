package arbiter

import (
	"fmt"
	"time"

	"github.com/simlink/relay/internal/player"
	"github.com/simlink/relay/internal/snapshot"
	"github.com/simlink/relay/pkg/rf2"
)

// SetMode selects copy (0) or direct (1) access for scoring and telemetry.
func (a *Arbiter) SetMode(mode int) {
	m := snapshot.ModeCopy
	if mode == int(snapshot.ModeDirect) {
		m = snapshot.ModeDirect
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.local[rf2.TypeScoring].SetMode(m)
	a.local[rf2.TypeTelemetry].SetMode(m)
}

// SetProcessID attaches to another simulator instance. A sender pipeline
// is handed over to one built on the new records; the old records are
// closed only after nothing captures from them.
func (a *Arbiter) SetProcessID(processID string) {
	a.mu.Lock()
	if a.closed || processID == a.deps.ProcessID {
		a.mu.Unlock()
		return
	}

	next := a.deps.OpenRegions(processID)
	prevRegions := a.regions
	a.regions = next
	a.local = a.snapshotters(next, a.local[rf2.TypeScoring].Mode())
	a.deps.ProcessID = processID

	var prev *pipeline
	if cur := a.pipe.Load(); cur.role == RoleSender && a.ctx.Err() == nil {
		p := a.senderPipeline()
		p.start(a.ctx, a.relayErr)
		prev = a.pipe.Swap(p)
	}
	a.mu.Unlock()

	if prev != nil {
		prev.stop(a.stopTimeout())
	}
	if err := prevRegions.Close(); err != nil {
		a.logger.Warn("Failed to close previous records", "error", err)
	}
	a.logger.Info("Process id changed", "processID", processID)
}

// ProcessID returns the simulator instance currently attached.
func (a *Arbiter) ProcessID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deps.ProcessID
}

// SetPlayerOverride pins the local player to the override index.
func (a *Arbiter) SetPlayerOverride(active bool) { a.override.SetActive(active) }

// SetPlayerIndex sets the override index, clamped to the valid slot range.
func (a *Arbiter) SetPlayerIndex(index int) { a.override.SetIndex(index) }

// Override exposes the shared override for status reporting.
func (a *Arbiter) Override() *player.Override { return a.override }

// probe reads the local driving state. A panic while reading producer
// memory is reported as an error so the monitor loop keeps running.
func (a *Arbiter) probe() (status Status, err error) {
	if a.deps.Probe != nil {
		return a.deps.Probe()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe driving state: %v", r)
		}
	}()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return Status{}, nil
	}
	start := time.Now()
	scor := rf2.ScoringView(a.local[rf2.TypeScoring].Capture().Data)
	tele := rf2.TelemetryView(a.local[rf2.TypeTelemetry].Capture().Data)
	ext := rf2.ExtendedView(a.local[rf2.TypeExtended].Capture().Data)

	id, ok := a.probeRes.Resolve(scor, tele)
	if !ok || !id.Valid() {
		return Status{}, nil
	}
	status = Status{
		Resolved: true,
		Driving: scor.Control(id.ScoringIndex) == rf2.ControlLocalPlayer &&
			id.TelemetryIndex != rf2.InvalidIndex &&
			tele.Ignition(id.TelemetryIndex) > 0 &&
			ext.InRealtime(),
	}
	a.logger.Debug("Probed driving state", "player", id.ScoringIndex, "driving", status.Driving, "took", time.Since(start))
	return status, nil
}

// IsDriving reports whether the local player is in control of a running car.
func (a *Arbiter) IsDriving() bool {
	s, err := a.probe()
	return err == nil && s.Driving
}
