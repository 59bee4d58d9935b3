package relay

import (
	"context"
	"fmt"
	"log/slog"

	ws "github.com/gorilla/websocket"

	"github.com/simlink/relay/internal/codec"
	"github.com/simlink/relay/pkg/rf2"
	"github.com/simlink/relay/pkg/streaming"
)

// Sink receives decoded records.
type Sink interface {
	ApplyRecord(t rf2.RecordType, b []byte)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(rf2.RecordType, []byte)

func (f SinkFunc) ApplyRecord(t rf2.RecordType, b []byte) { f(t, b) }

// Receiver applies relayed batches to a sink.
type Receiver struct {
	*client
	sink Sink
}

func NewReceiver(cfg Config, sink Sink, logger *slog.Logger) *Receiver {
	return &Receiver{client: newClient(cfg, streaming.RoleReceiver, logger), sink: sink}
}

// Run receives until Close, ctx cancellation or a fatal handshake error.
func (r *Receiver) Run(ctx context.Context) error {
	return r.run(ctx, r.serve)
}

func (r *Receiver) serve(ctx context.Context, conn *ws.Conn) error {
	conn.SetReadLimit(codec.MaxBatchSize())
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("relay read: %w", err)
		}
		switch typ {
		case ws.TextMessage:
			r.handleText(data)
		case ws.BinaryMessage:
			r.apply(ctx, data)
		}
	}
}

func (r *Receiver) apply(ctx context.Context, data []byte) {
	res, err := codec.Decode(data, r.sink.ApplyRecord)
	if err != nil {
		r.logger.Warn("Dropped rest of malformed batch", "applied", res.Applied, "error", err)
	}
	if res.Skipped > 0 {
		r.logger.Debug("Skipped batch segments", "skipped", res.Skipped)
	}
	r.batches.Add(1)
	batchesReceived.Add(ctx, 1, r.attrs)
}
