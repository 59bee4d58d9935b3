package liveness

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/simlink/relay/internal/liveness"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
