package arbiter

import (
	"github.com/simlink/relay/internal/player"
	"github.com/simlink/relay/internal/state"
	"github.com/simlink/relay/pkg/rf2"
)

// facade forwards every read to the record set of the pipeline that is
// active at the time of the call. Each call reads exactly one set.
type facade struct {
	a *Arbiter
}

var _ state.Provider = facade{}

func (f facade) set() *state.Set { return f.a.pipe.Load().set }

func (f facade) ScoringInfo() rf2.ScoringInfo { return f.set().ScoringInfo() }

func (f facade) ScoringVehicle(index int) rf2.VehicleScoring {
	return f.set().ScoringVehicle(index)
}

func (f facade) PlayerScoringVehicle() rf2.VehicleScoring { return f.set().PlayerScoringVehicle() }

func (f facade) TelemetryVehicle(index int) rf2.VehicleTelemetry {
	return f.set().TelemetryVehicle(index)
}

func (f facade) PlayerTelemetryVehicle() rf2.VehicleTelemetry {
	return f.set().PlayerTelemetryVehicle()
}

func (f facade) Extended() rf2.Extended { return f.set().Extended() }

func (f facade) ForceFeedback() rf2.ForceFeedback { return f.set().ForceFeedback() }

func (f facade) PlayerIndex() int { return f.set().PlayerIndex() }

func (f facade) Identity() player.Identity { return f.set().Identity() }

func (f facade) IsPlayer(index int) bool { return f.set().IsPlayer(index) }

func (f facade) IsPaused() bool { return f.set().IsPaused() }
