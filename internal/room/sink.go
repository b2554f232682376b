package room

import (
	"log/slog"
	"sync"
)

// sinkBuffer bounds how many outbound frames a slow peer may have queued
// before the room starts dropping sends to it rather than blocking its own
// single goroutine on that peer's writer catching up.
const sinkBuffer = 256

// PeerSink is the one-way ordered outbound queue a Room actor writes frames
// into for a single attached peer. A peer session goroutine drains Frames()
// and writes each frame to its transport in order; closing the sink is how
// the room tells that goroutine the session is over.
type PeerSink struct {
	frames    chan []byte
	closeOnce sync.Once
}

// NewPeerSink allocates a sink ready to be handed to Registry.Join, sized to
// the default buffer depth.
func NewPeerSink() *PeerSink {
	return NewPeerSinkWithBuffer(sinkBuffer)
}

// NewPeerSinkWithBuffer allocates a sink with an explicit buffer depth, for
// callers that expose the queue size as configuration. A non-positive
// buffer falls back to the default.
func NewPeerSinkWithBuffer(buffer int) *PeerSink {
	if buffer <= 0 {
		buffer = sinkBuffer
	}
	return &PeerSink{frames: make(chan []byte, buffer)}
}

// Frames returns the channel a peer session drains.
func (s *PeerSink) Frames() <-chan []byte {
	return s.frames
}

// Send enqueues frame without blocking. It reports false, and logs the
// dropped frame at error level, when the sink is full or already closed, in
// which case the room skips the send entirely — a bounded trySend, but
// non-blocking rather than timeout-bound since a single goroutine drives
// every room and cannot afford to stall on one slow peer.
func (s *PeerSink) Send(frame []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
		if !ok {
			slog.Error("room: peer sink full or closed, dropping frame", "bytes", len(frame))
		}
	}()
	select {
	case s.frames <- frame:
		return true
	default:
		return false
	}
}

// Close signals the draining goroutine that no more frames are coming. Safe
// to call more than once.
func (s *PeerSink) Close() {
	s.closeOnce.Do(func() { close(s.frames) })
}
