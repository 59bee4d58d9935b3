package influx

import (
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Sample is one reading of the relay state.
type Sample struct {
	Role        string
	Session     string
	Paused      bool
	Connected   bool
	PlayerIndex int
	Batches     uint64
}

// PerformancePoint converts a sample to a relay_performance point tagged by
// role and session.
func PerformancePoint(s Sample, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(Measurement,
		map[string]string{
			"role":    s.Role,
			"session": s.Session,
		},
		map[string]any{
			"paused":       s.Paused,
			"connected":    s.Connected,
			"player_index": s.PlayerIndex,
			"batches":      s.Batches,
		},
		at,
	)
}
