// Package hub routes relay batches from one sender per session to every
// receiver of that session.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/simlink/relay/internal/codec"
	"github.com/simlink/relay/pkg/streaming"
)

const (
	helloWait     = 10 * time.Second
	writeWait     = 10 * time.Second
	defaultQueue  = 16
	shutdownGrace = 5 * time.Second
)

// Authorizer validates activation keys and records session activity.
// *store.Store satisfies it.
type Authorizer interface {
	Validate(key string) error
	Touch(session, role string, meta map[string]any) error
}

// Config holds hub settings.
type Config struct {
	Listen   string
	Path     string
	CertFile string
	KeyFile  string
	// QueueSize bounds frames buffered per receiver before dropping.
	QueueSize int
}

type outbound struct {
	messageType int
	data        []byte
}

type peer struct {
	conn    *ws.Conn
	role    streaming.Role
	session string
	send    chan outbound
	done    chan struct{}
	once    sync.Once
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

// enqueue queues a message without blocking; it reports false when dropped.
func (p *peer) enqueue(m outbound) bool {
	select {
	case <-p.done:
		return false
	case p.send <- m:
		return true
	default:
		return false
	}
}

type session struct {
	sender    *peer
	receivers map[*peer]struct{}
}

// Server is the relay hub.
type Server struct {
	cfg      Config
	auth     Authorizer
	logger   *slog.Logger
	upgrader ws.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
}

// New creates a hub. A nil authorizer accepts any non-empty key.
func New(cfg Config, auth Authorizer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		cfg.Path = "/relay"
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueue
	}
	return &Server{
		cfg:      cfg,
		auth:     auth,
		logger:   logger,
		upgrader: ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		sessions: make(map[string]*session),
	}
}

// Handler returns the hub's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.serveWS)
	return mux
}

// ListenAndServe serves until ctx ends. TLS is used when both a certificate
// and a key file are configured.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: helloWait,
	}
	errc := make(chan error, 1)
	go func() {
		tls := s.cfg.CertFile != "" && s.cfg.KeyFile != ""
		s.logger.Info("Relay hub listening", "addr", s.cfg.Listen, "path", s.cfg.Path, "tls", tls)
		if tls {
			errc <- srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			errc <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("relay hub: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	s.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Sessions lists the live sessions sorted by name.
func (s *Server) Sessions() []streaming.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]streaming.SessionInfo, 0, len(s.sessions))
	for name, sess := range s.sessions {
		out = append(out, streaming.SessionInfo{
			Name:      name,
			HasSender: sess.sender != nil,
			Receivers: len(sess.receivers),
		})
	}
	slices.SortFunc(out, func(a, b streaming.SessionInfo) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("WebSocket upgrade failed", "error", err)
		return
	}

	hello, err := s.handshake(conn)
	if err != nil {
		s.logger.Warn("Rejected relay client", "remote", r.RemoteAddr, "error", err)
		_ = conn.Close()
		return
	}

	p := &peer{
		conn:    conn,
		role:    hello.Role,
		session: hello.Session,
		send:    make(chan outbound, s.cfg.QueueSize),
		done:    make(chan struct{}),
	}
	s.join(p)
	defer s.leave(p)

	go s.writeLoop(p)
	s.readLoop(p)
}

// handshake reads the hello, checks it and answers welcome or auth_error.
func (s *Server) handshake(conn *ws.Conn) (streaming.Hello, error) {
	var hello streaming.Hello
	_ = conn.SetReadDeadline(time.Now().Add(helloWait))
	if err := conn.ReadJSON(&hello); err != nil {
		return hello, fmt.Errorf("read hello: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	reject := func(reason string) (streaming.Hello, error) {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteJSON(streaming.Control{Type: streaming.TypeAuthError, Reason: reason})
		return hello, errors.New(reason)
	}

	if hello.Role != streaming.RoleSender && hello.Role != streaming.RoleReceiver {
		return reject(fmt.Sprintf("unknown role %q", hello.Role))
	}
	if hello.Session == "" {
		return reject("missing session")
	}
	if hello.ActivationKey == "" {
		return reject("missing activation key")
	}
	if s.auth != nil {
		if err := s.auth.Validate(hello.ActivationKey); err != nil {
			return reject(err.Error())
		}
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(streaming.Control{Type: streaming.TypeWelcome}); err != nil {
		return hello, fmt.Errorf("write welcome: %w", err)
	}
	return hello, nil
}

func (s *Server) join(p *peer) {
	s.mu.Lock()
	sess, ok := s.sessions[p.session]
	if !ok {
		sess = &session{receivers: make(map[*peer]struct{})}
		s.sessions[p.session] = sess
	}
	var replaced *peer
	if p.role == streaming.RoleSender {
		replaced, sess.sender = sess.sender, p
	} else {
		sess.receivers[p] = struct{}{}
	}
	receivers := len(sess.receivers)
	s.mu.Unlock()

	if replaced != nil {
		s.logger.Info("Sender replaced", "session", p.session)
		replaced.close()
	}
	s.logger.Info("Relay client joined", "session", p.session, "role", string(p.role), "receivers", receivers)

	if s.auth != nil {
		meta := map[string]any{"receivers": receivers, "remote": p.conn.RemoteAddr().String()}
		if err := s.auth.Touch(p.session, string(p.role), meta); err != nil {
			s.logger.Error("Failed to record session", "session", p.session, "error", err)
		}
	}
}

func (s *Server) leave(p *peer) {
	p.close()
	s.mu.Lock()
	if sess, ok := s.sessions[p.session]; ok {
		if sess.sender == p {
			sess.sender = nil
		}
		delete(sess.receivers, p)
		if sess.sender == nil && len(sess.receivers) == 0 {
			delete(s.sessions, p.session)
		}
	}
	s.mu.Unlock()
	s.logger.Info("Relay client left", "session", p.session, "role", string(p.role))
}

func (s *Server) closeAll() {
	s.mu.Lock()
	var peers []*peer
	for _, sess := range s.sessions {
		if sess.sender != nil {
			peers = append(peers, sess.sender)
		}
		for r := range sess.receivers {
			peers = append(peers, r)
		}
	}
	s.mu.Unlock()
	for _, p := range peers {
		p.close()
	}
}

func (s *Server) readLoop(p *peer) {
	p.conn.SetReadLimit(codec.MaxBatchSize())
	for {
		typ, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		switch typ {
		case ws.TextMessage:
			s.handleControl(p, data)
		case ws.BinaryMessage:
			if p.role == streaming.RoleSender {
				s.fanOut(p, data)
			}
		}
	}
}

func (s *Server) handleControl(p *peer, data []byte) {
	var msg streaming.Control
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug("Non-control message received", "session", p.session)
		return
	}
	var reply streaming.Control
	switch msg.Type {
	case streaming.TypeListSessions:
		reply = streaming.Control{Type: streaming.TypeSessionList, Sessions: s.Sessions()}
	default:
		reply = streaming.Control{Type: streaming.TypeError, Reason: fmt.Sprintf("unknown message type %q", msg.Type)}
	}
	raw, err := json.Marshal(reply)
	if err != nil {
		return
	}
	p.enqueue(outbound{messageType: ws.TextMessage, data: raw})
}

// fanOut forwards a sender's batch. Slow receivers drop frames rather than
// stall the session.
func (s *Server) fanOut(from *peer, data []byte) {
	s.mu.Lock()
	sess, ok := s.sessions[from.session]
	if !ok || sess.sender != from {
		s.mu.Unlock()
		return
	}
	targets := make([]*peer, 0, len(sess.receivers))
	for r := range sess.receivers {
		targets = append(targets, r)
	}
	s.mu.Unlock()

	for _, r := range targets {
		if !r.enqueue(outbound{messageType: ws.BinaryMessage, data: data}) {
			s.logger.Debug("Receiver queue full, dropping batch", "session", from.session)
		}
	}
}

func (s *Server) writeLoop(p *peer) {
	for {
		select {
		case <-p.done:
			return
		case m := <-p.send:
			if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				p.close()
				return
			}
			if err := p.conn.WriteMessage(m.messageType, m.data); err != nil {
				s.logger.Debug("Relay write failed", "session", p.session, "error", err)
				p.close()
				return
			}
		}
	}
}
