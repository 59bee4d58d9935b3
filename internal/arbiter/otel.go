package arbiter

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/simlink/relay/internal/arbiter"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
