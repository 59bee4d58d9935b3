package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simlink/relay/internal/player"
	"github.com/simlink/relay/pkg/rf2"
)

var _ Provider = (*Set)(nil)

func encode(t *testing.T, v any) []byte {
	t.Helper()
	b, err := rf2.Encode(v)
	require.NoError(t, err)
	return b
}

func TestNewSet_Defaults(t *testing.T) {
	s := NewSet()
	assert.Equal(t, rf2.InvalidIndex, s.PlayerIndex())
	assert.False(t, s.IsPaused())
	assert.False(t, s.IsPlayer(0))
	assert.False(t, s.IsPlayer(rf2.InvalidIndex))
	assert.Equal(t, rf2.VehicleScoring{}, s.PlayerScoringVehicle())
	assert.Equal(t, rf2.VehicleTelemetry{}, s.PlayerTelemetryVehicle())
	assert.Equal(t, rf2.Extended{}, s.Extended())
	for _, rt := range rf2.RecordTypes {
		assert.Len(t, s.RawBuffers()[rt], rf2.Size(rt))
	}
}

func TestPublish_ReadSurface(t *testing.T) {
	var scor rf2.Scoring
	scor.Info.NumVehicles = 2
	copy(scor.Info.TrackName[:], "Monza")
	scor.Vehicles[0].ID = 7
	scor.Vehicles[1].ID = 42
	scor.Vehicles[1].IsPlayer = 1

	var tel rf2.Telemetry
	tel.NumVehicles = 2
	tel.Vehicles[0].ID = 42
	tel.Vehicles[0].Gear = 3
	tel.Vehicles[1].ID = 7

	ext := rf2.Extended{InRealtimeFC: 1}
	ff := rf2.ForceFeedback{ForceValue: -0.25}

	s := NewSet()
	s.Publish(Update{
		Records:  [4][]byte{encode(t, &scor), encode(t, &tel), encode(t, &ext), encode(t, &ff)},
		Identity: player.Identity{ScoringIndex: 1, TelemetryIndex: 0},
		Paused:   true,
	})

	assert.Equal(t, uint64(1), s.Sequence())
	info := s.ScoringInfo()
	assert.Equal(t, "Monza", rf2.CString(info.TrackName[:]))
	assert.Equal(t, int32(42), s.PlayerScoringVehicle().ID)
	assert.Equal(t, int32(7), s.ScoringVehicle(0).ID)
	assert.Equal(t, int32(3), s.PlayerTelemetryVehicle().Gear)
	assert.Equal(t, int32(7), s.TelemetryVehicle(1).ID)
	assert.Equal(t, uint8(1), s.Extended().InRealtimeFC)
	assert.Equal(t, -0.25, s.ForceFeedback().ForceValue)
	assert.Equal(t, 1, s.PlayerIndex())
	assert.True(t, s.IsPlayer(1))
	assert.False(t, s.IsPlayer(0))
	assert.True(t, s.IsPaused())

	s.SetPaused(false)
	assert.False(t, s.IsPaused())
}

func TestPublish_NilRecordKeepsPrevious(t *testing.T) {
	ff := rf2.ForceFeedback{ForceValue: 1.5}
	s := NewSet()
	s.Publish(Update{Records: [4][]byte{rf2.TypeForceFeedback: encode(t, &ff)}, Identity: player.Unresolved})
	s.Publish(Update{Identity: player.Unresolved})
	assert.Equal(t, 1.5, s.ForceFeedback().ForceValue)
}

func TestOutOfRangeIndices(t *testing.T) {
	s := NewSet()
	assert.Equal(t, rf2.VehicleScoring{}, s.ScoringVehicle(-1))
	assert.Equal(t, rf2.VehicleScoring{}, s.ScoringVehicle(rf2.MaxVehicles))
	assert.Equal(t, rf2.VehicleTelemetry{}, s.TelemetryVehicle(9999))
}
