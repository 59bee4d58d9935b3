package snapshot

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/simlink/relay/internal/snapshot"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
