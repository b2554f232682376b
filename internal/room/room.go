// Package room implements the per-document actor: one goroutine exclusively
// owning a document, an awareness map and the set of attached peers, driven
// by a mailbox channel. This mirrors the Room/RoomMessage actor in the
// reference implementation's room.rs, generalized from a single-sender
// unbounded channel to the Join/Leave/Frame mailbox this protocol needs.
package room

import (
	"fmt"
	"log/slog"

	"collabd/internal/crdtdoc"
	"collabd/internal/protocol"
	"collabd/internal/wire"
)

type mailboxKind int

const (
	mailboxJoin mailboxKind = iota
	mailboxLeave
	mailboxFrame
)

type mailboxMsg struct {
	kind   mailboxKind
	peerID uint64
	sink   *PeerSink
	frame  []byte
}

// mailboxBuffer bounds how many pending Join/Leave/Frame messages a room
// will hold before a sender blocks; large enough that a burst of joins or
// keystrokes never stalls the websocket read loops feeding it.
const mailboxBuffer = 256

// Room is one document's actor. Callers never touch its fields directly;
// all interaction goes through Registry, which owns the mailbox handle.
type Room struct {
	name    string
	mailbox chan mailboxMsg
	done    chan struct{}
}

// join enqueues a Join message, reporting false if the room's run loop has
// already exited — the signal a Registry uses to detect it raced a room
// that was in the middle of tearing itself down, and must retry creation.
func (r *Room) join(peerID uint64, sink *PeerSink) bool {
	select {
	case r.mailbox <- mailboxMsg{kind: mailboxJoin, peerID: peerID, sink: sink}:
		return true
	case <-r.done:
		return false
	}
}

// leave enqueues a Leave message, best-effort: if the room is already gone
// there is nothing left to clean up.
func (r *Room) leave(peerID uint64) {
	select {
	case r.mailbox <- mailboxMsg{kind: mailboxLeave, peerID: peerID}:
	case <-r.done:
	}
}

// deliver enqueues an inbound frame from peerID, best-effort for the same
// reason as leave.
func (r *Room) deliver(peerID uint64, frame []byte) {
	select {
	case r.mailbox <- mailboxMsg{kind: mailboxFrame, peerID: peerID, frame: frame}:
	case <-r.done:
	}
}

// spawn starts the actor goroutine and returns the handle immediately; the
// goroutine owns doc, awareness and peers exclusively from this point on.
// destroyed is invoked exactly once, after the last peer has left, with the
// full document state so a snapshot store can persist it.
func spawn(name string, destroyed func(name string, snapshot []byte)) *Room {
	r := &Room{
		name:    name,
		mailbox: make(chan mailboxMsg, mailboxBuffer),
		done:    make(chan struct{}),
	}
	go r.run(destroyed)
	return r
}

func (r *Room) run(destroyed func(name string, snapshot []byte)) {
	doc := crdtdoc.NewDocument()
	awareness := crdtdoc.NewAwareness()
	peers := make(map[uint64]*PeerSink)

	for msg := range r.mailbox {
		switch msg.kind {
		case mailboxJoin:
			r.handleJoin(doc, awareness, peers, msg.peerID, msg.sink)

		case mailboxLeave:
			r.handleLeave(awareness, peers, msg.peerID)
			if len(peers) == 0 {
				r.retire(doc, destroyed)
				return
			}

		case mailboxFrame:
			sink, attached := peers[msg.peerID]
			if !attached {
				// Frame from a peer the room never finished attaching (or
				// already detached); drop it silently.
				continue
			}
			ctx := &roomContext{
				name:      r.name,
				doc:       doc,
				awareness: awareness,
				peers:     peers,
				senderID:  msg.peerID,
			}
			if err := handleFrame(ctx, msg.frame); err != nil {
				slog.Warn("room: dropping peer after protocol error", "room", r.name, "peer", msg.peerID, "err", err)
				ctx.closeRequested = true
			}
			if ctx.closeRequested {
				r.handleLeave(awareness, peers, msg.peerID)
				sink.Close()
				if len(peers) == 0 {
					r.retire(doc, destroyed)
					return
				}
			}
		}
	}
}

// handleFrame calls protocol.Handle with a recover guard at the
// mailbox-processing boundary, so a panic while handling one peer's frame
// (a pathological CRDT decode, say) is treated like any other protocol
// error for that one peer instead of taking down the room's goroutine and
// every other peer attached to it.
func handleFrame(ctx *roomContext, frame []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling frame: %v", r)
		}
	}()
	return protocol.Handle(ctx, frame)
}

// handleJoin mirrors doc/document.rs's connect(): the joining peer gets the
// current awareness snapshot before it is recorded as attached, so a
// concurrent broadcast triggered by its own join can never race ahead of
// that initial snapshot.
func (r *Room) handleJoin(doc *crdtdoc.Document, awareness *crdtdoc.Awareness, peers map[uint64]*PeerSink, peerID uint64, sink *PeerSink) {
	states := awareness.States()
	if len(states) > 0 {
		sink.Send(wire.EncodeAwareness(r.name, crdtdoc.EncodeAwarenessUpdate(states)))
	}
	peers[peerID] = sink
}

func (r *Room) handleLeave(awareness *crdtdoc.Awareness, peers map[uint64]*PeerSink, peerID uint64) {
	delete(peers, peerID)
	if removed, ok := awareness.Remove(peerID); ok {
		// Tell the remaining peers this connection's cursor/selection is
		// gone, the same empty-payload convention a client uses to clear
		// its own state.
		empty := map[uint64]crdtdoc.AwarenessState{peerID: {Clock: removed.Clock + 1}}
		update := wire.EncodeAwareness(r.name, crdtdoc.EncodeAwarenessUpdate(empty))
		for id, sink := range peers {
			if id == peerID {
				continue
			}
			sink.Send(update)
		}
	}
}

func (r *Room) retire(doc *crdtdoc.Document, destroyed func(name string, snapshot []byte)) {
	snapshot := doc.EncodeFullState()
	close(r.done)
	if destroyed != nil {
		destroyed(r.name, snapshot)
	}
}
