// Package rf2 describes the four shared memory records published by the
// simulator plugin. Layouts are packed little-endian; every record starts
// with a begin/end version pair that the producer bumps around each write.
package rf2

import (
	"encoding/binary"
	"fmt"
)

const (
	// MaxVehicles is the fixed length of the per-vehicle arrays.
	MaxVehicles = 128

	// InvalidIndex marks an unresolved vehicle slot.
	InvalidIndex = -1

	// VersionBeginOffset and VersionEndOffset locate the version counters.
	VersionBeginOffset = 0
	VersionEndOffset   = 4
)

// RecordType identifies one of the four shared memory records.
type RecordType uint8

const (
	TypeScoring RecordType = iota
	TypeTelemetry
	TypeExtended
	TypeForceFeedback
)

// RecordTypes is the fixed order used everywhere four records travel together.
var RecordTypes = [4]RecordType{TypeScoring, TypeTelemetry, TypeExtended, TypeForceFeedback}

func (t RecordType) String() string {
	switch t {
	case TypeScoring:
		return "scoring"
	case TypeTelemetry:
		return "telemetry"
	case TypeExtended:
		return "extended"
	case TypeForceFeedback:
		return "forcefeedback"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Valid reports whether t is one of the four known records.
func (t RecordType) Valid() bool {
	return t <= TypeForceFeedback
}

var sizes = [4]int{
	binary.Size(Scoring{}),
	binary.Size(Telemetry{}),
	binary.Size(Extended{}),
	binary.Size(ForceFeedback{}),
}

// Size returns the fixed byte size of a record type, or 0 if unknown.
func Size(t RecordType) int {
	if !t.Valid() {
		return 0
	}
	return sizes[t]
}

// Versions reads the begin/end counters from raw record bytes.
// Buffers shorter than a header read as zero.
func Versions(b []byte) (begin, end uint32) {
	if len(b) < VersionEndOffset+4 {
		return 0, 0
	}
	return binary.LittleEndian.Uint32(b[VersionBeginOffset:]), binary.LittleEndian.Uint32(b[VersionEndOffset:])
}

// CString converts a fixed NUL padded byte array into a string.
func CString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Encode serializes a record (or any fixed-size layout) in wire order.
func Encode(v any) ([]byte, error) {
	return binary.Append(nil, binary.LittleEndian, v)
}

// decodeInto decodes b into v, zero padding short input.
func decodeInto(b []byte, v any) error {
	need := binary.Size(v)
	if need < 0 {
		return fmt.Errorf("rf2: %T is not a fixed-size layout", v)
	}
	if len(b) < need {
		padded := make([]byte, need)
		copy(padded, b)
		b = padded
	}
	_, err := binary.Decode(b[:need], binary.LittleEndian, v)
	return err
}

// DecodeScoring decodes a full scoring record.
func DecodeScoring(b []byte) (Scoring, error) {
	var s Scoring
	err := decodeInto(b, &s)
	return s, err
}

// DecodeTelemetry decodes a full telemetry record.
func DecodeTelemetry(b []byte) (Telemetry, error) {
	var t Telemetry
	err := decodeInto(b, &t)
	return t, err
}

// DecodeExtended decodes the extended record.
func DecodeExtended(b []byte) (Extended, error) {
	var e Extended
	err := decodeInto(b, &e)
	return e, err
}

// DecodeForceFeedback decodes the force feedback record.
func DecodeForceFeedback(b []byte) (ForceFeedback, error) {
	var f ForceFeedback
	err := decodeInto(b, &f)
	return f, err
}
