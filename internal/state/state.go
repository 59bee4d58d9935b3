// Package state holds the most recent consistent record set and serves the
// consumer read surface. Local and relayed data converge here, so readers
// cannot tell which path produced it.
package state

import (
	"sync"

	"github.com/simlink/relay/internal/player"
	"github.com/simlink/relay/pkg/rf2"
)

// Provider is the read surface consumed by overlays. Every method returns
// some value; missing data reads as zero values and rf2.InvalidIndex.
type Provider interface {
	ScoringInfo() rf2.ScoringInfo
	// ScoringVehicle returns the vehicle in a scoring slot.
	ScoringVehicle(index int) rf2.VehicleScoring
	PlayerScoringVehicle() rf2.VehicleScoring
	// TelemetryVehicle returns the vehicle in a telemetry slot.
	TelemetryVehicle(index int) rf2.VehicleTelemetry
	PlayerTelemetryVehicle() rf2.VehicleTelemetry
	Extended() rf2.Extended
	ForceFeedback() rf2.ForceFeedback
	PlayerIndex() int
	Identity() player.Identity
	IsPlayer(index int) bool
	IsPaused() bool
}

// Update is one poll cycle's result, published as a unit.
type Update struct {
	Records  [4][]byte
	Identity player.Identity
	Paused   bool
}

// Set is the shared record set. A single lock covers the four records, the
// identity and the paused flag; it is only held to swap references.
type Set struct {
	mu       sync.RWMutex
	records  [4][]byte
	identity player.Identity
	paused   bool
	seq      uint64
}

// NewSet returns an empty set with an unresolved identity.
func NewSet() *Set {
	s := &Set{identity: player.Unresolved}
	for _, t := range rf2.RecordTypes {
		s.records[t] = make([]byte, rf2.Size(t))
	}
	return s
}

// Publish replaces the set's contents. Nil records keep their previous value.
func (s *Set) Publish(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t, b := range u.Records {
		if b != nil {
			s.records[t] = b
		}
	}
	s.identity = u.Identity
	s.paused = u.Paused
	s.seq++
}

// SetPaused updates only the paused flag.
func (s *Set) SetPaused(paused bool) {
	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()
}

// Sequence counts publishes.
func (s *Set) Sequence() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// RawBuffers returns the current record bytes in rf2.RecordTypes order.
// The slices must be treated as read-only.
func (s *Set) RawBuffers() [4][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

func (s *Set) record(t rf2.RecordType) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[t]
}

func (s *Set) ScoringInfo() rf2.ScoringInfo {
	return rf2.ScoringView(s.record(rf2.TypeScoring)).Info()
}

func (s *Set) ScoringVehicle(index int) rf2.VehicleScoring {
	return rf2.ScoringView(s.record(rf2.TypeScoring)).Vehicle(index)
}

func (s *Set) PlayerScoringVehicle() rf2.VehicleScoring {
	s.mu.RLock()
	b, idx := s.records[rf2.TypeScoring], s.identity.ScoringIndex
	s.mu.RUnlock()
	return rf2.ScoringView(b).Vehicle(idx)
}

func (s *Set) TelemetryVehicle(index int) rf2.VehicleTelemetry {
	return rf2.TelemetryView(s.record(rf2.TypeTelemetry)).Vehicle(index)
}

func (s *Set) PlayerTelemetryVehicle() rf2.VehicleTelemetry {
	s.mu.RLock()
	b, idx := s.records[rf2.TypeTelemetry], s.identity.TelemetryIndex
	s.mu.RUnlock()
	return rf2.TelemetryView(b).Vehicle(idx)
}

func (s *Set) Extended() rf2.Extended {
	e, _ := rf2.DecodeExtended(s.record(rf2.TypeExtended))
	return e
}

func (s *Set) ForceFeedback() rf2.ForceFeedback {
	f, _ := rf2.DecodeForceFeedback(s.record(rf2.TypeForceFeedback))
	return f
}

func (s *Set) PlayerIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.ScoringIndex
}

func (s *Set) Identity() player.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *Set) IsPlayer(index int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.Valid() && s.identity.ScoringIndex == index
}

func (s *Set) IsPaused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}
