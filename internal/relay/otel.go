package relay

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/simlink/relay/internal/relay"

var (
	batchesSent     metric.Int64Counter
	batchesReceived metric.Int64Counter
	reconnects      metric.Int64Counter
)

func init() {
	m := otel.Meter(instrumentationName)
	batchesSent, _ = m.Int64Counter("relay.batches.sent",
		metric.WithDescription("Batches written to the relay"))
	batchesReceived, _ = m.Int64Counter("relay.batches.received",
		metric.WithDescription("Batches read from the relay"))
	reconnects, _ = m.Int64Counter("relay.reconnects",
		metric.WithDescription("Reconnect attempts after a connection failure"))
}
