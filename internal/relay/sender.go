package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/simlink/relay/internal/codec"
	"github.com/simlink/relay/pkg/streaming"
)

// BatchSource is what a sender relays. *state.Set satisfies it.
type BatchSource interface {
	IsPaused() bool
	RawBuffers() [4][]byte
}

// Sender relays the local record set outward.
type Sender struct {
	*client
	source BatchSource
}

func NewSender(cfg Config, source BatchSource, logger *slog.Logger) *Sender {
	return &Sender{client: newClient(cfg, streaming.RoleSender, logger), source: source}
}

// Run sends a batch every send interval while the source is not paused.
// It returns nil after Close or when ctx ends.
func (s *Sender) Run(ctx context.Context) error {
	return s.run(ctx, s.serve)
}

func (s *Sender) serve(ctx context.Context, conn *ws.Conn) error {
	readErr := make(chan error, 1)
	go func() { readErr <- s.readLoop(conn) }()

	ticker := time.NewTicker(s.cfg.SendInterval)
	defer ticker.Stop()

	for {
		if !s.source.IsPaused() {
			if err := s.sendOnce(ctx, conn); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return ErrClosed
		case err := <-readErr:
			return fmt.Errorf("relay read: %w", err)
		case <-ticker.C:
		}
	}
}

func (s *Sender) sendOnce(ctx context.Context, conn *ws.Conn) error {
	batch, err := codec.EncodeBatch(s.source.RawBuffers())
	if err != nil {
		s.logger.Error("Failed to encode batch", "error", err)
		return nil
	}
	if err := s.write(conn, ws.BinaryMessage, batch); err != nil {
		return fmt.Errorf("relay send: %w", err)
	}
	s.batches.Add(1)
	batchesSent.Add(ctx, 1, s.attrs)
	return nil
}

// readLoop drains the connection so control frames and hub replies are
// processed while the sender only writes.
func (s *Sender) readLoop(conn *ws.Conn) error {
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if typ == ws.TextMessage {
			s.handleText(data)
		}
	}
}
