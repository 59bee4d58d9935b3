// Package arbiter decides whether this process relays its own simulator's
// data outward or shows data relayed from a teammate, and swaps between the
// two without consumers seeing a mix of both.
package arbiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/simlink/relay/internal/liveness"
	"github.com/simlink/relay/internal/player"
	"github.com/simlink/relay/internal/region"
	"github.com/simlink/relay/internal/relay"
	"github.com/simlink/relay/internal/snapshot"
	"github.com/simlink/relay/internal/state"
	"github.com/simlink/relay/pkg/rf2"
)

// Role is the side of the relay this process currently occupies.
type Role int32

const (
	RoleUndetermined Role = iota
	RoleSender
	RoleReceiver
)

func (r Role) String() string {
	switch r {
	case RoleSender:
		return "sender"
	case RoleReceiver:
		return "receiver"
	default:
		return "undetermined"
	}
}

// Config holds the monitor loop timing. Zero fields take defaults.
type Config struct {
	Interval       time.Duration
	StartupRetries int
	StartupDelay   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.StartupRetries < 0 {
		c.StartupRetries = 0
	}
	if c.StartupDelay <= 0 {
		c.StartupDelay = 200 * time.Millisecond
	}
	return c
}

// Status is the local driving state read by the monitor loop.
type Status struct {
	Resolved bool
	Driving  bool
}

// ProbeFunc reads the local driving state.
type ProbeFunc func() (Status, error)

// Dependencies holds what the arbiter wires together.
type Dependencies struct {
	ProcessID string
	// Regions is the local record set. When empty it is opened with
	// OpenRegions(ProcessID).
	Regions     region.Set
	OpenRegions func(processID string) region.Set
	// Mode is the access mode for scoring and telemetry.
	Mode         snapshot.Mode
	CopyRetries  int
	Override     *player.Override
	Liveness     liveness.Config
	RelayEnabled bool
	Relay        relay.Config
	// Probe replaces the local driving-state probe, for tests.
	Probe  ProbeFunc
	Logger *slog.Logger
}

// Arbiter owns the active pipeline and the monitor loop.
type Arbiter struct {
	cfg      Config
	deps     Dependencies
	logger   *slog.Logger
	override *player.Override

	// mu serializes decisions, role switches and controls.
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	closed    bool
	regions   region.Set
	local     [4]*snapshot.Snapshotter
	probeRes  *player.Resolver
	callbacks []func(Role)

	pipe         atomic.Pointer[pipeline]
	role         atomic.Int32
	relayBlocked atomic.Bool
	relayErr     chan error
	switches     metric.Int64Counter
}

// New opens the local records and returns an arbiter in RoleUndetermined.
func New(cfg Config, deps Dependencies) *Arbiter {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.OpenRegions == nil {
		logger := deps.Logger
		deps.OpenRegions = func(pid string) region.Set { return region.OpenSet(pid, logger) }
	}
	if deps.Override == nil {
		deps.Override = player.NewOverride()
	}

	a := &Arbiter{
		cfg:      cfg.withDefaults(),
		deps:     deps,
		logger:   deps.Logger,
		override: deps.Override,
		ctx:      context.Background(),
		relayErr: make(chan error, 1),
	}
	a.regions = deps.Regions
	if a.regions == (region.Set{}) {
		a.regions = deps.OpenRegions(deps.ProcessID)
	}
	a.local = a.snapshotters(a.regions, deps.Mode)
	a.probeRes = player.NewResolver(a.override)
	a.pipe.Store(idlePipeline())
	a.switches, _ = meter().Int64Counter("arbiter.role.switches",
		metric.WithDescription("Completed role handovers"))
	return a
}

// snapshotters builds the local capture set over regions. Scoring and
// telemetry use mode; the other records keep their default.
func (a *Arbiter) snapshotters(regions region.Set, mode snapshot.Mode) [4]*snapshot.Snapshotter {
	var snaps [4]*snapshot.Snapshotter
	for _, rt := range rf2.RecordTypes {
		opts := []snapshot.Option{snapshot.WithLogger(a.logger), snapshot.WithRetries(a.deps.CopyRetries)}
		if rt == rf2.TypeScoring || rt == rf2.TypeTelemetry {
			opts = append(opts, snapshot.WithMode(mode))
		}
		snaps[rt] = snapshot.New(rt, regions[rt], opts...)
	}
	return snaps
}

// Role returns the active role.
func (a *Arbiter) Role() Role { return Role(a.role.Load()) }

// OnSwitch registers a callback run after every role switch.
func (a *Arbiter) OnSwitch(fn func(Role)) {
	a.mu.Lock()
	a.callbacks = append(a.callbacks, fn)
	a.mu.Unlock()
}

// Run makes the startup decision and re-decides every interval until ctx
// ends. The active pipeline is stopped on return.
func (a *Arbiter) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.ctx, a.cancel = ctx, cancel
	a.mu.Unlock()
	defer a.shutdown()

	a.logger.Info("Role arbiter started", "interval", a.cfg.Interval, "relay", a.deps.RelayEnabled)
	status, err := a.awaitPlayer(ctx)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		a.logger.Warn("Failed to read driving state at startup", "error", err)
	}
	a.decide(ctx, status.Driving)

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-a.relayErr:
			a.handleRelayError(ctx, err)
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

// awaitPlayer gives the local player index a few tries to resolve.
func (a *Arbiter) awaitPlayer(ctx context.Context) (Status, error) {
	var (
		status Status
		err    error
	)
	for attempt := 0; ; attempt++ {
		status, err = a.probe()
		if (err == nil && status.Resolved) || attempt >= a.cfg.StartupRetries {
			return status, err
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-time.After(a.cfg.StartupDelay):
		}
	}
}

func (a *Arbiter) tick(ctx context.Context) {
	status, err := a.probe()
	if err != nil {
		a.logger.Warn("Failed to read driving state, keeping role", "role", a.Role().String(), "error", err)
		return
	}
	a.decide(ctx, status.Driving)
}

// decide switches role when the driving state calls for it.
func (a *Arbiter) decide(ctx context.Context, driving bool) {
	current := a.Role()
	switch {
	case driving && current != RoleSender:
		a.switchTo(ctx, RoleSender)
	case !driving && a.relayEnabled() && current != RoleReceiver:
		a.switchTo(ctx, RoleReceiver)
	case !driving && !a.relayEnabled() && current == RoleUndetermined:
		// nothing to receive; serve local data
		a.switchTo(ctx, RoleSender)
	}
}

func (a *Arbiter) switchTo(ctx context.Context, role Role) {
	a.mu.Lock()
	if ctx.Err() != nil {
		a.mu.Unlock()
		return
	}
	var next *pipeline
	if role == RoleSender {
		next = a.senderPipeline()
	} else {
		next = a.receiverPipeline()
	}
	next.start(ctx, a.relayErr)
	prev := a.pipe.Swap(next)
	a.role.Store(int32(role))
	callbacks := slices.Clone(a.callbacks)
	a.mu.Unlock()

	prev.stop(a.stopTimeout())
	a.switches.Add(ctx, 1, metric.WithAttributes(attribute.String("role", role.String())))
	a.logger.Info("Role switched", "from", prev.role.String(), "to", role.String())
	for _, fn := range callbacks {
		fn(role)
	}
}

// handleRelayError reacts to a relay link that gave up, either on a
// rejected key or after the reconnect budget ran out. Relaying stays
// disabled for the rest of the run and local data is served instead.
func (a *Arbiter) handleRelayError(ctx context.Context, err error) {
	if errors.Is(err, relay.ErrAuthFailed) || errors.Is(err, relay.ErrMissingActivationKey) {
		a.logger.Error("Relay authentication failed, relaying disabled", "error", err)
	} else {
		a.logger.Error("Relay link gave up, relaying disabled", "error", err)
	}
	a.relayBlocked.Store(true)
	if a.Role() == RoleReceiver {
		a.switchTo(ctx, RoleSender)
	}
}

// RelayBlocked reports whether a fatal relay error disabled relaying.
func (a *Arbiter) RelayBlocked() bool { return a.relayBlocked.Load() }

func (a *Arbiter) relayEnabled() bool {
	return a.deps.RelayEnabled && !a.relayBlocked.Load()
}

func (a *Arbiter) stopTimeout() time.Duration {
	if a.deps.Liveness.StopTimeout > 0 {
		return a.deps.Liveness.StopTimeout
	}
	return liveness.DefaultStopTimeout
}

func (a *Arbiter) shutdown() {
	prev := a.pipe.Load()
	prev.stop(a.stopTimeout())
	a.logger.Info("Role arbiter stopped", "role", a.Role().String())
}

// Close serves empty records from then on and releases the local records.
// A running Run stops switching roles and returns.
func (a *Arbiter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.cancel != nil {
		a.cancel()
	}
	prev := a.pipe.Swap(idlePipeline())
	prev.stop(a.stopTimeout())
	a.role.Store(int32(RoleUndetermined))
	if err := a.regions.Close(); err != nil {
		return fmt.Errorf("close local records: %w", err)
	}
	return nil
}

// Provider returns the consumer read surface. It stays valid across role
// switches.
func (a *Arbiter) Provider() state.Provider { return facade{a: a} }

// Info summarizes the arbiter for status reporting.
type Info struct {
	Role        Role
	Paused      bool
	PlayerIndex int
	Connected   bool
	Batches     uint64
}

func (a *Arbiter) Info() Info {
	p := a.pipe.Load()
	return Info{
		Role:        p.role,
		Paused:      p.set.IsPaused(),
		PlayerIndex: p.set.PlayerIndex(),
		Connected:   p.connected(),
		Batches:     p.batches(),
	}
}
