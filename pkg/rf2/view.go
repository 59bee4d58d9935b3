package rf2

import (
	"encoding/binary"
	"reflect"
)

// Offsets of the fields the sync layer reads without decoding a full record.
var (
	scoringInfoOffset       = fieldOffset(reflect.TypeOf(Scoring{}), "Info")
	scoringVehiclesOffset   = fieldOffset(reflect.TypeOf(Scoring{}), "Vehicles")
	scoringNumVehicles      = scoringInfoOffset + fieldOffset(reflect.TypeOf(ScoringInfo{}), "NumVehicles")
	vehicleScoringSize      = binary.Size(VehicleScoring{})
	vehicleScoringIsPlayer  = fieldOffset(reflect.TypeOf(VehicleScoring{}), "IsPlayer")
	vehicleScoringControl   = fieldOffset(reflect.TypeOf(VehicleScoring{}), "Control")
	telemetryNumVehicles    = fieldOffset(reflect.TypeOf(Telemetry{}), "NumVehicles")
	telemetryVehiclesOffset = fieldOffset(reflect.TypeOf(Telemetry{}), "Vehicles")
	vehicleTelemetrySize    = binary.Size(VehicleTelemetry{})
	vehicleTelemetryIgnit   = fieldOffset(reflect.TypeOf(VehicleTelemetry{}), "IgnitionStarter")
	extendedInRealtimeFC    = fieldOffset(reflect.TypeOf(Extended{}), "InRealtimeFC")
)

// fieldOffset returns the packed byte offset of a top-level field.
func fieldOffset(t reflect.Type, name string) int {
	off := 0
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Name == name {
			return off
		}
		off += binary.Size(reflect.New(f.Type).Elem().Interface())
	}
	panic("rf2: no field " + name + " in " + t.Name())
}

func readInt32(b []byte, off int) int32 {
	if off < 0 || off+4 > len(b) {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b[off:]))
}

func readUint8(b []byte, off int) uint8 {
	if off < 0 || off >= len(b) {
		return 0
	}
	return b[off]
}

func validSlot(i int) bool {
	return i >= 0 && i < MaxVehicles
}

// ScoringView reads scoring fields straight from record bytes.
type ScoringView []byte

func (v ScoringView) NumVehicles() int {
	n := int(readInt32(v, scoringNumVehicles))
	if n < 0 {
		return 0
	}
	return min(n, MaxVehicles)
}

func (v ScoringView) vehicleOffset(i int) int {
	return scoringVehiclesOffset + i*vehicleScoringSize
}

// VehicleID returns the stable slot id, 0 for an invalid index.
func (v ScoringView) VehicleID(i int) int32 {
	if !validSlot(i) {
		return 0
	}
	return readInt32(v, v.vehicleOffset(i))
}

func (v ScoringView) IsPlayer(i int) bool {
	if !validSlot(i) {
		return false
	}
	return readUint8(v, v.vehicleOffset(i)+vehicleScoringIsPlayer) != 0
}

func (v ScoringView) Control(i int) int8 {
	if !validSlot(i) {
		return ControlNobody
	}
	return int8(readUint8(v, v.vehicleOffset(i)+vehicleScoringControl))
}

// Info decodes the session header.
func (v ScoringView) Info() ScoringInfo {
	var info ScoringInfo
	if scoringInfoOffset < len(v) {
		_ = decodeInto(v[scoringInfoOffset:], &info)
	}
	return info
}

// Vehicle decodes one vehicle; out of range slots return a zero value.
func (v ScoringView) Vehicle(i int) VehicleScoring {
	var vs VehicleScoring
	if !validSlot(i) {
		return vs
	}
	if off := v.vehicleOffset(i); off < len(v) {
		_ = decodeInto(v[off:], &vs)
	}
	return vs
}

// TelemetryView reads telemetry fields straight from record bytes.
type TelemetryView []byte

func (v TelemetryView) NumVehicles() int {
	n := int(readInt32(v, telemetryNumVehicles))
	if n < 0 {
		return 0
	}
	return min(n, MaxVehicles)
}

func (v TelemetryView) vehicleOffset(i int) int {
	return telemetryVehiclesOffset + i*vehicleTelemetrySize
}

func (v TelemetryView) VehicleID(i int) int32 {
	if !validSlot(i) {
		return 0
	}
	return readInt32(v, v.vehicleOffset(i))
}

func (v TelemetryView) Ignition(i int) uint8 {
	if !validSlot(i) {
		return 0
	}
	return readUint8(v, v.vehicleOffset(i)+vehicleTelemetryIgnit)
}

func (v TelemetryView) Vehicle(i int) VehicleTelemetry {
	var vt VehicleTelemetry
	if !validSlot(i) {
		return vt
	}
	if off := v.vehicleOffset(i); off < len(v) {
		_ = decodeInto(v[off:], &vt)
	}
	return vt
}

// ExtendedView reads extended fields straight from record bytes.
type ExtendedView []byte

func (v ExtendedView) InRealtime() bool {
	return readUint8(v, extendedInRealtimeFC) != 0
}
