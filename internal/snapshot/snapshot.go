// Package snapshot copies externally-mutated records into owned buffers
// without ever returning a torn read.
package snapshot

import (
	"context"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/simlink/relay/internal/region"
	"github.com/simlink/relay/pkg/rf2"
)

// DefaultRetries bounds how often a copy is retried while the producer writes.
const DefaultRetries = 10

// Mode selects how a record is read.
type Mode int32

const (
	// ModeCopy copies the record and retries on version changes.
	ModeCopy Mode = 0
	// ModeDirect returns the live memory without copying.
	ModeDirect Mode = 1
)

func (m Mode) String() string {
	if m == ModeDirect {
		return "direct"
	}
	return "copy"
}

// DefaultMode is copy for scoring and telemetry, direct for the small or
// slow-moving records where a torn read is cheap to tolerate.
func DefaultMode(t rf2.RecordType) Mode {
	switch t {
	case rf2.TypeExtended, rf2.TypeForceFeedback:
		return ModeDirect
	default:
		return ModeCopy
	}
}

// Snapshot is one captured record.
type Snapshot struct {
	Type    rf2.RecordType
	Data    []byte
	Version uint32
	// Direct is set when Data aliases producer memory.
	Direct bool
	// Torn is set when the retry budget ran out and Data is best effort.
	Torn bool
}

// Option configures a Snapshotter.
type Option func(*Snapshotter)

func WithMode(m Mode) Option {
	return func(s *Snapshotter) { s.mode.Store(int32(m)) }
}

func WithRetries(n int) Option {
	return func(s *Snapshotter) {
		if n > 0 {
			s.retries = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Snapshotter) {
		if l != nil {
			s.logger = l
		}
	}
}

// Snapshotter captures one record type from a region.
type Snapshotter struct {
	typ     rf2.RecordType
	region  region.Region
	mode    atomic.Int32
	retries int
	logger  *slog.Logger

	attrs   metric.MeasurementOption
	retried metric.Int64Counter
	torn    metric.Int64Counter
}

// New creates a snapshotter for the record type served by r.
func New(t rf2.RecordType, r region.Region, opts ...Option) *Snapshotter {
	s := &Snapshotter{
		typ:     t,
		region:  r,
		retries: DefaultRetries,
		logger:  slog.Default(),
		attrs:   metric.WithAttributes(attribute.String("record", t.String())),
	}
	s.mode.Store(int32(DefaultMode(t)))
	for _, opt := range opts {
		opt(s)
	}

	m := meter()
	s.retried, _ = m.Int64Counter("snapshot.capture.retries",
		metric.WithDescription("Copies discarded because the producer wrote during the copy"))
	s.torn, _ = m.Int64Counter("snapshot.capture.torn",
		metric.WithDescription("Captures returned best effort after the retry budget ran out"))
	return s
}

func (s *Snapshotter) Type() rf2.RecordType { return s.typ }

func (s *Snapshotter) Mode() Mode { return Mode(s.mode.Load()) }

// SetMode switches between copy and direct access at runtime.
func (s *Snapshotter) SetMode(m Mode) {
	if m != ModeDirect {
		m = ModeCopy
	}
	if old := Mode(s.mode.Swap(int32(m))); old != m {
		s.logger.Info("Access mode changed", "record", s.typ.String(), "mode", m.String())
	}
}

// Region returns the region captured from.
func (s *Snapshotter) Region() region.Region { return s.region }

// Capture returns the current record. It never fails: an unattached or
// empty region yields a zeroed record.
func (s *Snapshotter) Capture() Snapshot {
	r := s.region
	if s.Mode() == ModeDirect {
		_, end := r.Version()
		return Snapshot{Type: s.typ, Data: r.Bytes(), Version: end, Direct: true}
	}
	return s.capture(r)
}

func (s *Snapshotter) capture(r region.Region) Snapshot {
	buf := make([]byte, rf2.Size(s.typ))
	ctx := context.Background()

	for attempt := 0; ; attempt++ {
		_, before := r.Version()
		r.CopyTo(buf)
		_, after := r.Version()

		begin, end := rf2.Versions(buf)
		if before == after && begin == end {
			return Snapshot{Type: s.typ, Data: buf, Version: end}
		}

		if attempt >= s.retries {
			s.torn.Add(ctx, 1, s.attrs)
			s.logger.Debug("Capture retry budget exhausted",
				"record", s.typ.String(), "attempts", attempt+1, "begin", begin, "end", end)
			return Snapshot{Type: s.typ, Data: buf, Version: end, Torn: true}
		}
		s.retried.Add(ctx, 1, s.attrs)
	}
}
