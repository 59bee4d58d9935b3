package rf2

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSize(t *testing.T) {
	for _, rt := range RecordTypes {
		assert.Greater(t, Size(rt), 8, rt.String())
	}
	assert.Equal(t, 16, Size(TypeForceFeedback))
	assert.Equal(t, 0, Size(RecordType(9)))
}

func TestRecordTypeString(t *testing.T) {
	assert.Equal(t, "scoring", TypeScoring.String())
	assert.Equal(t, "forcefeedback", TypeForceFeedback.String())
	assert.Equal(t, "unknown(7)", RecordType(7).String())
	assert.False(t, RecordType(4).Valid())
}

func TestVersions(t *testing.T) {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint32(b[0:], 7)
	binary.LittleEndian.PutUint32(b[4:], 6)

	begin, end := Versions(b)
	assert.Equal(t, uint32(7), begin)
	assert.Equal(t, uint32(6), end)

	begin, end = Versions(b[:5])
	assert.Zero(t, begin)
	assert.Zero(t, end)
}

func TestCString(t *testing.T) {
	var name [32]byte
	copy(name[:], "Spa")
	assert.Equal(t, "Spa", CString(name[:]))
	assert.Equal(t, "abc", CString([]byte("abc")))
}

func TestScoringViewMatchesDecode(t *testing.T) {
	var s Scoring
	s.VersionUpdateBegin = 3
	s.VersionUpdateEnd = 3
	s.Info.NumVehicles = 3
	copy(s.Info.TrackName[:], "Sebring")
	s.Vehicles[0].ID = 7
	s.Vehicles[1].ID = 42
	s.Vehicles[1].IsPlayer = 1
	s.Vehicles[1].Control = ControlLocalPlayer
	s.Vehicles[2].ID = 99
	s.Vehicles[2].Control = ControlRemote
	copy(s.Vehicles[1].DriverName[:], "Local Driver")

	b, err := Encode(&s)
	require.NoError(t, err)
	require.Len(t, b, Size(TypeScoring))

	v := ScoringView(b)
	assert.Equal(t, 3, v.NumVehicles())
	assert.Equal(t, int32(42), v.VehicleID(1))
	assert.True(t, v.IsPlayer(1))
	assert.False(t, v.IsPlayer(0))
	assert.Equal(t, ControlRemote, v.Control(2))
	info, player := v.Info(), v.Vehicle(1)
	assert.Equal(t, "Sebring", CString(info.TrackName[:]))
	assert.Equal(t, "Local Driver", CString(player.DriverName[:]))

	decoded, err := DecodeScoring(b)
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}

func TestViewsOutOfRange(t *testing.T) {
	v := ScoringView(make([]byte, 10))
	assert.Zero(t, v.NumVehicles())
	assert.Zero(t, v.VehicleID(-1))
	assert.Zero(t, v.VehicleID(MaxVehicles))
	assert.False(t, v.IsPlayer(MaxVehicles))
	assert.Equal(t, ControlNobody, v.Control(-1))
	assert.Equal(t, VehicleScoring{}, v.Vehicle(5))

	tv := TelemetryView(nil)
	assert.Zero(t, tv.NumVehicles())
	assert.Equal(t, VehicleTelemetry{}, tv.Vehicle(0))
}

func TestTelemetryView(t *testing.T) {
	var tel Telemetry
	tel.NumVehicles = 2
	tel.Vehicles[0].ID = 42
	tel.Vehicles[0].IgnitionStarter = 1
	tel.Vehicles[0].Gear = 4
	tel.Vehicles[1].ID = 7

	b, err := Encode(&tel)
	require.NoError(t, err)

	v := TelemetryView(b)
	assert.Equal(t, 2, v.NumVehicles())
	assert.Equal(t, int32(42), v.VehicleID(0))
	assert.Equal(t, uint8(1), v.Ignition(0))
	assert.Equal(t, int32(4), v.Vehicle(0).Gear)
	assert.Equal(t, int32(7), v.VehicleID(1))
}

func TestDecodeShortBufferPads(t *testing.T) {
	ff := ForceFeedback{Header: Header{VersionUpdateBegin: 1, VersionUpdateEnd: 1}, ForceValue: 0.5}
	b, err := Encode(&ff)
	require.NoError(t, err)

	got, err := DecodeForceFeedback(b[:8])
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got.VersionUpdateEnd)
	assert.Zero(t, got.ForceValue)
}

func TestExtendedView(t *testing.T) {
	var e Extended
	e.InRealtimeFC = 1
	b, err := Encode(&e)
	require.NoError(t, err)
	assert.True(t, ExtendedView(b).InRealtime())
	assert.False(t, ExtendedView(nil).InRealtime())
}
