package player

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simlink/relay/pkg/rf2"
)

func scoringBytes(t *testing.T, ids []int32, playerSlot int) rf2.ScoringView {
	t.Helper()
	var s rf2.Scoring
	s.Info.NumVehicles = int32(len(ids))
	for i, id := range ids {
		s.Vehicles[i].ID = id
		if i == playerSlot {
			s.Vehicles[i].IsPlayer = 1
		}
	}
	b, err := rf2.Encode(&s)
	require.NoError(t, err)
	return b
}

func telemetryBytes(t *testing.T, ids []int32) rf2.TelemetryView {
	t.Helper()
	var tel rf2.Telemetry
	tel.NumVehicles = int32(len(ids))
	for i, id := range ids {
		tel.Vehicles[i].ID = id
	}
	b, err := rf2.Encode(&tel)
	require.NoError(t, err)
	return b
}

func TestResolve_ReorderedArrays(t *testing.T) {
	r := NewResolver(nil)
	scor := scoringBytes(t, []int32{7, 42, 99}, 1)
	tele := telemetryBytes(t, []int32{42, 7, 99})

	id, ok := r.Resolve(scor, tele)
	require.True(t, ok)
	assert.Equal(t, Identity{ScoringIndex: 1, TelemetryIndex: 0}, id)
}

func TestResolve_DeterministicAcrossOrderings(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ids := []int32{3, 8, 15, 42, 77, 101}

	for round := 0; round < 50; round++ {
		scorIDs := append([]int32(nil), ids...)
		teleIDs := append([]int32(nil), ids...)
		rng.Shuffle(len(scorIDs), func(i, j int) { scorIDs[i], scorIDs[j] = scorIDs[j], scorIDs[i] })
		rng.Shuffle(len(teleIDs), func(i, j int) { teleIDs[i], teleIDs[j] = teleIDs[j], teleIDs[i] })
		k := rng.Intn(len(ids))

		id, ok := NewResolver(nil).Resolve(scoringBytes(t, scorIDs, k), telemetryBytes(t, teleIDs))
		require.True(t, ok)
		assert.Equal(t, k, id.ScoringIndex)
		require.GreaterOrEqual(t, id.TelemetryIndex, 0)
		assert.Equal(t, scorIDs[k], teleIDs[id.TelemetryIndex])
	}
}

func TestResolve_NoPlayerFlag(t *testing.T) {
	r := NewResolver(nil)
	id, ok := r.Resolve(scoringBytes(t, []int32{1, 2}, -1), telemetryBytes(t, []int32{1, 2}))
	assert.False(t, ok)
	assert.Equal(t, rf2.InvalidIndex, id.ScoringIndex)
	assert.Equal(t, rf2.InvalidIndex, id.TelemetryIndex)
}

func TestResolve_TelemetryNotCaughtUp(t *testing.T) {
	r := NewResolver(nil)
	id, ok := r.Resolve(scoringBytes(t, []int32{1, 2, 3}, 2), telemetryBytes(t, []int32{1, 2}))
	require.True(t, ok)
	assert.Equal(t, 2, id.ScoringIndex)
	assert.Equal(t, rf2.InvalidIndex, id.TelemetryIndex)
}

func TestResolve_Override(t *testing.T) {
	o := NewOverride()
	o.SetActive(true)
	o.SetIndex(2)
	r := NewResolver(o)

	id, ok := r.Resolve(scoringBytes(t, []int32{5, 6, 7}, 0), telemetryBytes(t, []int32{7, 6, 5}))
	require.True(t, ok)
	assert.Equal(t, Identity{ScoringIndex: 2, TelemetryIndex: 0, Overridden: true}, id)

	o.SetActive(false)
	id, ok = r.Resolve(scoringBytes(t, []int32{5, 6, 7}, 0), telemetryBytes(t, []int32{7, 6, 5}))
	require.True(t, ok)
	assert.Equal(t, Identity{ScoringIndex: 0, TelemetryIndex: 2}, id)
}

func TestOverride_Clamping(t *testing.T) {
	o := NewOverride()
	assert.Equal(t, rf2.InvalidIndex, o.Index())
	assert.False(t, o.Active())

	for _, x := range []int{math.MinInt32, -100, -2, -1, 0, 1, 64, rf2.MaxVehicles - 1, rf2.MaxVehicles, 1000, math.MaxInt32} {
		o.SetIndex(x)
		got := o.Index()
		assert.GreaterOrEqual(t, got, rf2.InvalidIndex, "x=%d", x)
		assert.LessOrEqual(t, got, rf2.MaxVehicles-1, "x=%d", x)
		if x >= rf2.InvalidIndex && x < rf2.MaxVehicles {
			assert.Equal(t, x, got)
		}
	}
}

func TestIndexMap_Rebuild(t *testing.T) {
	m := NewIndexMap()
	m.Rebuild(telemetryBytes(t, []int32{10, 20, 30}))
	assert.Equal(t, 3, m.Len())
	slot, ok := m.Lookup(20)
	assert.True(t, ok)
	assert.Equal(t, 1, slot)

	m.Rebuild(telemetryBytes(t, []int32{30, 10}))
	assert.Equal(t, 2, m.Len())
	_, ok = m.Lookup(20)
	assert.False(t, ok)
	slot, _ = m.Lookup(10)
	assert.Equal(t, 1, slot)
}

func TestIdentityValid(t *testing.T) {
	assert.False(t, Unresolved.Valid())
	assert.True(t, Identity{ScoringIndex: 0}.Valid())
	assert.False(t, Identity{ScoringIndex: rf2.MaxVehicles}.Valid())
}
