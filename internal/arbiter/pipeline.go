package arbiter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/simlink/relay/internal/codec"
	"github.com/simlink/relay/internal/liveness"
	"github.com/simlink/relay/internal/player"
	"github.com/simlink/relay/internal/region"
	"github.com/simlink/relay/internal/relay"
	"github.com/simlink/relay/internal/snapshot"
	"github.com/simlink/relay/internal/state"
	"github.com/simlink/relay/pkg/rf2"
)

// link is the relay half of a pipeline.
type link interface {
	Run(ctx context.Context) error
	Close() error
	Connected() bool
	Batches() uint64
}

// pipeline is everything one role runs: a tracker publishing into its own
// record set and, when relaying, a sender or receiver.
type pipeline struct {
	role    Role
	set     *state.Set
	tracker *liveness.Tracker
	link    link
	buffers region.Set
	logger  *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// idlePipeline serves empty records until the first decision.
func idlePipeline() *pipeline {
	return &pipeline{role: RoleUndetermined, set: state.NewSet()}
}

func (a *Arbiter) senderPipeline() *pipeline {
	set := state.NewSet()
	p := &pipeline{
		role:    RoleSender,
		set:     set,
		tracker: liveness.New(a.deps.Liveness, a.local, player.NewResolver(a.override), set, a.logger),
		logger:  a.logger,
	}
	if a.relayEnabled() {
		p.link = relay.NewSender(a.deps.Relay, set, a.logger)
	}
	return p
}

func (a *Arbiter) receiverPipeline() *pipeline {
	regions, bufs := region.BufferSet()
	var snaps [4]*snapshot.Snapshotter
	for _, rt := range rf2.RecordTypes {
		snaps[rt] = snapshot.New(rt, regions[rt], snapshot.WithLogger(a.logger))
	}
	set := state.NewSet()
	return &pipeline{
		role:    RoleReceiver,
		set:     set,
		tracker: liveness.New(a.deps.Liveness, snaps, player.NewResolver(a.override), set, a.logger),
		link:    relay.NewReceiver(a.deps.Relay, relay.SinkFunc(codec.ApplyTo(bufs)), a.logger),
		buffers: regions,
		logger:  a.logger,
	}
}

// start primes the record set with one poll, then runs the tracker and the
// relay link. Fatal link errors are reported on errs.
func (p *pipeline) start(ctx context.Context, errs chan<- error) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	if p.tracker != nil {
		p.tracker.Step(time.Now())
		p.tracker.Start(ctx)
	}
	if p.link == nil {
		close(p.done)
		return
	}
	go func() {
		defer close(p.done)
		if err := p.link.Run(ctx); err != nil && !errors.Is(err, relay.ErrClosed) {
			select {
			case errs <- err:
			default:
				p.logger.Error("Relay stopped", "role", p.role.String(), "error", err)
			}
		}
	}()
}

// stop closes the link first so a pending read unblocks, then the tracker.
func (p *pipeline) stop(timeout time.Duration) {
	if p.cancel == nil {
		return
	}
	if p.link != nil {
		_ = p.link.Close()
	}
	if p.tracker != nil {
		p.tracker.Stop()
	}
	p.cancel()
	select {
	case <-p.done:
	case <-time.After(timeout):
		p.logger.Warn("Relay link did not stop in time", "role", p.role.String(), "timeout", timeout)
	}
	_ = p.buffers.Close()
}

func (p *pipeline) batches() uint64 {
	if p.link == nil {
		return 0
	}
	return p.link.Batches()
}

func (p *pipeline) connected() bool {
	return p.link != nil && p.link.Connected()
}
