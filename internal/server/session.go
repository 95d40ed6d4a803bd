// Package server manages individual WebSocket sessions, handling read and
// write pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// nameCounter backs default display names. It only increases and values
// are never reused, so two connections can never be assigned the same
// default name even across renames.
var nameCounter atomic.Uint64

// Session owns one WebSocket connection: its read and write halves, its
// current display name, and its display color. While registered, the name
// is the session's registry key and moves with every successful rename.
// The name and color are mutated only by the session's own read loop.
type Session struct {
	id       string
	conn     *websocket.Conn
	registry *Registry
	log      *slog.Logger

	name  string
	color string

	send chan ChatLine
	done chan struct{}

	maxMessageSize int64
	limiter        *tokenBucket
	rateLimit      RateLimitConfig
}

// NewSession creates a session for an upgraded connection. The session is
// not registered and has no name until Start is called.
func NewSession(conn *websocket.Conn, registry *Registry, addr string) *Session {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	id := uuid.NewString()
	return &Session{
		id:             id,
		conn:           conn,
		registry:       registry,
		log:            slog.With(slog.String("conn_id", id), slog.String("remote_addr", addr)),
		color:          cfg.DefaultColor,
		send:           make(chan ChatLine, cfg.SendBuffer),
		done:           make(chan struct{}),
		maxMessageSize: cfg.MaxMessageSize,
		limiter:        newTokenBucket(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
	}
}

// Start registers the session under a fresh default name and launches the
// read and write pumps.
func (s *Session) Start() {
	s.registerDefaultName()
	s.log.Info("session started", slog.String("name", s.name), slog.Int("online", s.registry.Count()))

	go s.writePump()
	go s.readPump()
}

// registerDefaultName claims the next User#<N> name. Counter values never
// repeat, so a collision only happens when a client renamed itself onto a
// not-yet-issued default name; the session then retries with the next
// counter value instead of failing the connection.
func (s *Session) registerDefaultName() {
	for {
		name := fmt.Sprintf("User#%d", nameCounter.Add(1)-1)
		if err := s.registry.Register(name, s); err == nil {
			s.name = name
			return
		}
		s.log.Debug("default name collision, retrying", slog.String("name", name))
	}
}

// Deliver queues line on the session's outbound buffer. It never blocks:
// a closed session or a full buffer drops the line and reports false.
func (s *Session) Deliver(line ChatLine) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- line:
		return true
	default:
		return false
	}
}

// readPump consumes inbound frames until the connection ends, then
// performs the session's single Active→Closed transition: deregister,
// stop the write pump, close the connection. Rename mutations and this
// cleanup run on the same goroutine, so the name read here is current.
func (s *Session) readPump() {
	defer func() {
		s.registry.Unregister(s.name)
		close(s.done)
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.log.Debug("closing connection in read pump", slog.Any("error", err))
		}
		s.log.Info("session closed", slog.String("name", s.name), slog.Int("online", s.registry.Count()))
	}()

	s.configureRead()

	for {
		kind, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.logReadEnd(err)
			return
		}
		if kind != websocket.TextMessage {
			// Binary and other frame kinds carry no chat content.
			continue
		}
		if !s.allowMessage() {
			continue
		}
		s.handleLine(string(payload))
	}
}

// handleLine routes one inbound line: command dispatch for /-prefixed
// input, broadcast otherwise. Blank lines are dropped.
func (s *Session) handleLine(raw string) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return
	}

	if rest, ok := strings.CutPrefix(text, "/"); ok {
		s.dispatchCommand(rest)
		return
	}

	line := ChatLine{Text: s.name + ": " + text, Color: s.color}
	delivered := s.registry.Broadcast(line)
	s.log.Debug("line broadcast", slog.Int("recipients", delivered))
}

// reply sends text privately to this session only.
func (s *Session) reply(text string) {
	if !s.Deliver(ChatLine{Text: text, Color: replyColor}) {
		s.log.Debug("command reply dropped, outbound buffer full")
	}
}

func (s *Session) configureRead() {
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.log.Debug("setting initial read deadline", slog.Any("error", err))
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func (s *Session) allowMessage() bool {
	if s.limiter != nil && !s.limiter.allow() {
		s.log.Debug("rate limit exceeded, discarding line",
			slog.Int("burst", s.rateLimit.Burst),
			slog.Duration("interval", s.rateLimit.RefillInterval))
		return false
	}
	return true
}

func (s *Session) logReadEnd(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		s.log.Warn("inbound line exceeded size limit", slog.Int64("limit", s.maxMessageSize))
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		s.log.Info("client disconnected", slog.Any("error", err))
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		s.log.Info("connection closed", slog.Any("error", err))
	default:
		s.log.Warn("websocket read error", slog.Any("error", err))
	}
}

// writePump drains the outbound buffer onto the wire and keeps the
// connection alive with pings. Each chat line goes out as its own text
// frame so clients can parse every frame independently. The pump exits
// when the read pump signals done or a write fails; it closes the
// connection but never touches the registry, which belongs to the read
// pump's cleanup.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.log.Debug("closing connection in write pump", slog.Any("error", err))
		}
	}()

	for {
		select {
		case line := <-s.send:
			if !s.writeLine(line) {
				return
			}
		case <-ticker.C:
			if !s.writePing() {
				return
			}
		case <-s.done:
			s.writeCloseFrame()
			return
		}
	}
}

func (s *Session) writeLine(line ChatLine) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.log.Debug("setting write deadline", slog.Any("error", err))
		return false
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, line.Encode()); err != nil {
		if !isExpectedCloseError(err) {
			s.log.Debug("writing line", slog.Any("error", err))
		}
		return false
	}
	return true
}

func (s *Session) writePing() bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.log.Debug("setting write deadline for ping", slog.Any("error", err))
		return false
	}
	if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			s.log.Debug("writing ping", slog.Any("error", err))
		}
		return false
	}
	return true
}

func (s *Session) writeCloseFrame() {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return
	}
	if err := s.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		s.log.Debug("writing close frame", slog.Any("error", err))
	}
}

// isExpectedCloseError checks if an error is expected during connection
// closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
