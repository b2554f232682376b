// Package peer drives one attached websocket connection: an inbound pump
// forwarding frames into its room and an outbound pump draining the room's
// reply sink back onto the wire, adapted from the hello/read/write loop in
// the teacher's internal/ws handler.
package peer

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"collabd/internal/room"
	"collabd/internal/wire"
)

const (
	writeTimeout = 5 * time.Second
	readLimit    = 1 << 20

	// DefaultRatePerSecond and DefaultBurst bound how many control frames a
	// single session will forward to its room per second; frames arriving
	// faster are dropped with a logged warning rather than queued, so a
	// misbehaving client cannot starve the room's mailbox. DefaultSinkBuffer
	// is the outbound queue depth handed to a new peer's room.PeerSink.
	DefaultRatePerSecond = 50
	DefaultBurst         = 20
	DefaultSinkBuffer    = 256
)

// Limits configures the per-session resilience knobs a deployment may want
// to tune: the inbound token-bucket rate and the outbound sink depth.
type Limits struct {
	RatePerSecond float64
	Burst         int
	SinkBuffer    int
}

// DefaultLimits returns the limits a Session uses when none are given
// explicitly.
func DefaultLimits() Limits {
	return Limits{RatePerSecond: DefaultRatePerSecond, Burst: DefaultBurst, SinkBuffer: DefaultSinkBuffer}
}

// Conn is the transport surface a Session needs. *websocket.Conn satisfies
// it directly; tests supply a fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	Close() error
}

// Session owns one peer's lifecycle against a single room.
type Session struct {
	conn     Conn
	reg      *room.Registry
	rm       *room.Room
	sink     *room.PeerSink
	peerID   uint64
	document string
	limiter  *rate.Limiter
}

// NewSession joins document in reg under peerID and returns a Session ready
// to Serve. Joining happens here, not in Serve, so the awareness snapshot
// delivered on join is already queued before the caller starts draining it.
// limits configures the inbound rate limit and outbound sink depth; the
// zero value is not valid, pass DefaultLimits() for the teacher's defaults.
func NewSession(conn Conn, reg *room.Registry, document string, peerID uint64, limits Limits) *Session {
	sink := room.NewPeerSinkWithBuffer(limits.SinkBuffer)
	rm := reg.Join(document, peerID, sink)

	return &Session{
		conn:     conn,
		reg:      reg,
		rm:       rm,
		sink:     sink,
		peerID:   peerID,
		document: document,
		limiter:  rate.NewLimiter(rate.Limit(limits.RatePerSecond), limits.Burst),
	}
}

// Serve runs the outbound pump in its own goroutine and blocks on the
// inbound pump until the connection closes, then tears down the join.
func (s *Session) Serve() {
	_ = s.conn.SetReadDeadline(time.Time{})
	s.conn.SetReadLimit(readLimit)

	outboundDone := make(chan struct{})
	go func() {
		defer close(outboundDone)
		s.pumpOutbound()
	}()

	s.pumpInbound()

	s.reg.Leave(s.rm, s.peerID)
	s.sink.Close()
	<-outboundDone
	_ = s.conn.Close()
}

func (s *Session) pumpInbound() {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			slog.Debug("peer: read failed", "document", s.document, "peer", s.peerID, "err", err)
			return
		}
		if messageType != websocket.BinaryMessage {
			slog.Warn("peer: non-binary frame, closing connection", "document", s.document, "peer", s.peerID, "message_type", messageType)
			return
		}
		if !s.limiter.Allow() {
			slog.Warn("peer: inbound rate limit exceeded, dropping frame", "document", s.document, "peer", s.peerID)
			continue
		}

		frame := append([]byte(nil), data...)
		if _, err := wire.DecodeFrame(frame); err != nil {
			slog.Debug("peer: malformed frame", "document", s.document, "peer", s.peerID, "err", err)
			continue
		}
		s.reg.Deliver(s.rm, s.peerID, frame)
	}
}

func (s *Session) pumpOutbound() {
	for frame := range s.sink.Frames() {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			slog.Debug("peer: write failed", "document", s.document, "peer", s.peerID, "err", err)
			return
		}
	}
	// The sink was closed (the room detached this peer, or Serve is tearing
	// down): send a websocket close frame and drop the connection so a
	// pending inbound read returns and Serve can finish.
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = s.conn.Close()
}
