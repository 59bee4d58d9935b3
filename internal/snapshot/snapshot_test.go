package snapshot

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simlink/relay/internal/region"
	"github.com/simlink/relay/pkg/rf2"
)

// racingRegion simulates a producer that rewrites the record while it is
// being copied for the first `tearFor` copies.
type racingRegion struct {
	data    []byte
	version uint32
	tearFor int
	copies  int
	// midCopyBump also advances the end counter during the copy, so the
	// before/after check is what catches the race.
	midCopyBump bool
}

func newRacingRegion(size, tearFor int) *racingRegion {
	r := &racingRegion{data: make([]byte, size), version: 1, tearFor: tearFor}
	r.write()
	return r
}

func (r *racingRegion) write() {
	binary.LittleEndian.PutUint32(r.data[0:], r.version)
	for i := 8; i < len(r.data); i++ {
		r.data[i] = byte(r.version)
	}
	binary.LittleEndian.PutUint32(r.data[4:], r.version)
}

func (r *racingRegion) Name() string { return "racing" }
func (r *racingRegion) Size() int    { return len(r.data) }
func (r *racingRegion) Bytes() []byte {
	return r.data
}
func (r *racingRegion) Close() error { return nil }

func (r *racingRegion) Version() (uint32, uint32) {
	return binary.LittleEndian.Uint32(r.data[0:]), binary.LittleEndian.Uint32(r.data[4:])
}

func (r *racingRegion) CopyTo(dst []byte) int {
	r.copies++
	if r.copies > r.tearFor {
		return copy(dst, r.data)
	}
	// Producer starts the next write: begin moves first.
	r.version++
	binary.LittleEndian.PutUint32(r.data[0:], r.version)
	n := copy(dst[:len(dst)/2], r.data)
	for i := 8; i < len(r.data); i++ {
		r.data[i] = byte(r.version)
	}
	if r.midCopyBump {
		binary.LittleEndian.PutUint32(r.data[4:], r.version)
	}
	n += copy(dst[len(dst)/2:], r.data[len(dst)/2:])
	// Producer finishes the write after the copy.
	binary.LittleEndian.PutUint32(r.data[4:], r.version)
	return n
}

func TestCapture_Idempotent(t *testing.T) {
	buf := region.NewBuffer(rf2.TypeScoring)
	var s rf2.Scoring
	s.VersionUpdateBegin, s.VersionUpdateEnd = 4, 4
	s.Vehicles[0].ID = 11
	b, err := rf2.Encode(&s)
	require.NoError(t, err)
	_, _ = buf.Write(b)

	snap := New(rf2.TypeScoring, buf)
	first := snap.Capture()
	second := snap.Capture()

	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, uint32(4), first.Version)
	assert.False(t, first.Torn)
	assert.False(t, first.Direct)
}

func TestCapture_NeverTornWithinBudget(t *testing.T) {
	size := rf2.Size(rf2.TypeForceFeedback)
	for tearFor := 0; tearFor <= DefaultRetries; tearFor++ {
		for _, bump := range []bool{false, true} {
			r := newRacingRegion(size, tearFor)
			r.midCopyBump = bump
			snap := New(rf2.TypeForceFeedback, r, WithMode(ModeCopy))

			got := snap.Capture()
			begin, end := rf2.Versions(got.Data)
			assert.Equal(t, begin, end, "tearFor=%d bump=%v", tearFor, bump)
			assert.False(t, got.Torn, "tearFor=%d", tearFor)
			assert.Equal(t, tearFor+1, r.copies)
			for _, c := range got.Data[8:] {
				require.Equal(t, byte(end), c, "payload must come from one write")
			}
		}
	}
}

func TestCapture_BestEffortWhenBudgetExhausted(t *testing.T) {
	size := rf2.Size(rf2.TypeForceFeedback)
	r := newRacingRegion(size, 100)
	snap := New(rf2.TypeForceFeedback, r, WithMode(ModeCopy), WithRetries(3))

	got := snap.Capture()
	assert.True(t, got.Torn)
	assert.Len(t, got.Data, size)
	assert.Equal(t, 4, r.copies)
}

func TestCapture_DirectModeAliases(t *testing.T) {
	r := newRacingRegion(rf2.Size(rf2.TypeExtended), 0)
	snap := New(rf2.TypeExtended, r)
	require.Equal(t, ModeDirect, snap.Mode())

	got := snap.Capture()
	assert.True(t, got.Direct)
	assert.Equal(t, 0, r.copies, "direct access must not copy")
	assert.Same(t, &r.data[0], &got.Data[0])
}

func TestCapture_UnattachedIsZeroed(t *testing.T) {
	snap := New(rf2.TypeTelemetry, region.NewBuffer(rf2.TypeTelemetry))
	got := snap.Capture()
	assert.Len(t, got.Data, rf2.Size(rf2.TypeTelemetry))
	assert.Zero(t, got.Version)
	assert.Equal(t, make([]byte, len(got.Data)), got.Data)
}

func TestSetModeAndDefaults(t *testing.T) {
	assert.Equal(t, ModeCopy, DefaultMode(rf2.TypeScoring))
	assert.Equal(t, ModeCopy, DefaultMode(rf2.TypeTelemetry))
	assert.Equal(t, ModeDirect, DefaultMode(rf2.TypeExtended))
	assert.Equal(t, ModeDirect, DefaultMode(rf2.TypeForceFeedback))

	snap := New(rf2.TypeScoring, region.NewBuffer(rf2.TypeScoring))
	snap.SetMode(ModeDirect)
	assert.Equal(t, ModeDirect, snap.Mode())
	snap.SetMode(Mode(7))
	assert.Equal(t, ModeCopy, snap.Mode())
	assert.Equal(t, "copy", ModeCopy.String())
	assert.Equal(t, "direct", ModeDirect.String())
}
