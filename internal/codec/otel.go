package codec

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/simlink/relay/internal/codec"

var (
	framesDecoded metric.Int64Counter
	framesSkipped metric.Int64Counter
)

func init() {
	m := otel.Meter(instrumentationName)
	framesDecoded, _ = m.Int64Counter("codec.frames.decoded",
		metric.WithDescription("Segments decoded and applied"))
	framesSkipped, _ = m.Int64Counter("codec.frames.skipped",
		metric.WithDescription("Segments skipped for unknown type or bad payload"))
}
