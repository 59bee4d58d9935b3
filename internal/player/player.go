// Package player resolves which scoring slot and which telemetry slot belong
// to the local driver. The two arrays are ordered independently and the
// telemetry array can be rebuilt from one frame to the next.
package player

import (
	"sync/atomic"

	"github.com/simlink/relay/pkg/rf2"
)

// Identity is the local player's slot in both arrays.
type Identity struct {
	ScoringIndex   int
	TelemetryIndex int
	Overridden     bool
}

// Unresolved is the identity before the first successful resolution.
var Unresolved = Identity{ScoringIndex: rf2.InvalidIndex, TelemetryIndex: rf2.InvalidIndex}

// Valid reports whether the scoring slot is set.
func (id Identity) Valid() bool {
	return id.ScoringIndex >= 0 && id.ScoringIndex < rf2.MaxVehicles
}

// ClampIndex limits an index to [rf2.InvalidIndex, rf2.MaxVehicles-1].
func ClampIndex(i int) int {
	return max(rf2.InvalidIndex, min(i, rf2.MaxVehicles-1))
}

// Override pins the scoring index manually.
type Override struct {
	active atomic.Bool
	index  atomic.Int32
}

// NewOverride returns an inactive override pinned to rf2.InvalidIndex.
func NewOverride() *Override {
	o := &Override{}
	o.index.Store(rf2.InvalidIndex)
	return o
}

func (o *Override) SetActive(active bool) { o.active.Store(active) }

// SetIndex stores i clamped to the valid slot range.
func (o *Override) SetIndex(i int) { o.index.Store(int32(ClampIndex(i))) }

func (o *Override) Active() bool { return o.active.Load() }

func (o *Override) Index() int { return int(o.index.Load()) }

// IndexMap maps telemetry vehicle ids to their current telemetry slot.
type IndexMap struct {
	slots map[int32]int
}

func NewIndexMap() *IndexMap {
	return &IndexMap{slots: make(map[int32]int, rf2.MaxVehicles)}
}

// Rebuild refreshes the map from one telemetry record. Slot order is not
// stable between polls, so this runs on every poll.
func (m *IndexMap) Rebuild(tele rf2.TelemetryView) {
	clear(m.slots)
	for i := range tele.NumVehicles() {
		m.slots[tele.VehicleID(i)] = i
	}
}

// Lookup returns the telemetry slot for a vehicle id.
func (m *IndexMap) Lookup(id int32) (int, bool) {
	i, ok := m.slots[id]
	return i, ok
}

func (m *IndexMap) Len() int { return len(m.slots) }

// Resolver derives the local player's identity from a scoring and a
// telemetry record captured in the same poll. It is not safe for
// concurrent use; each poll loop owns one.
type Resolver struct {
	override *Override
	index    *IndexMap
}

// NewResolver creates a resolver; a nil override means never overridden.
func NewResolver(override *Override) *Resolver {
	if override == nil {
		override = NewOverride()
	}
	return &Resolver{override: override, index: NewIndexMap()}
}

func (r *Resolver) Override() *Override { return r.override }

// Resolve returns the identity for this poll. ok is false when no vehicle
// carries the player flag and no override is active; callers keep their
// previous identity in that case.
func (r *Resolver) Resolve(scor rf2.ScoringView, tele rf2.TelemetryView) (Identity, bool) {
	r.index.Rebuild(tele)

	id := Identity{ScoringIndex: rf2.InvalidIndex, TelemetryIndex: rf2.InvalidIndex}
	if r.override.Active() {
		id.ScoringIndex = r.override.Index()
		id.Overridden = true
	} else {
		id.ScoringIndex = playerSlot(scor)
		if id.ScoringIndex == rf2.InvalidIndex {
			return id, false
		}
	}

	if id.Valid() {
		if slot, found := r.index.Lookup(scor.VehicleID(id.ScoringIndex)); found {
			id.TelemetryIndex = slot
		}
	}
	return id, true
}

func playerSlot(scor rf2.ScoringView) int {
	for i := range scor.NumVehicles() {
		if scor.IsPlayer(i) {
			return i
		}
	}
	return rf2.InvalidIndex
}
