package room

import (
	"collabd/internal/crdtdoc"
)

// roomContext is a single dispatch call's view of the room: it is
// constructed fresh for each inbound frame and is valid only for the
// duration of that call, matching the scoping of the DocumentContext this
// type generalizes from doc/context.rs.
type roomContext struct {
	name      string
	doc       *crdtdoc.Document
	awareness *crdtdoc.Awareness
	peers     map[uint64]*PeerSink
	senderID  uint64

	closeRequested bool
}

func (c *roomContext) DocumentName() string              { return c.name }
func (c *roomContext) Document() *crdtdoc.Document        { return c.doc }
func (c *roomContext) Awareness() *crdtdoc.Awareness      { return c.awareness }

func (c *roomContext) Unicast(frame []byte) {
	if sink, ok := c.peers[c.senderID]; ok {
		sink.Send(frame)
	}
}

// Broadcast fans frame out to every attached peer, including the sender —
// clients are expected to tolerate echoes of their own updates, the same
// contract the Rust DocumentContext this type replaces used.
func (c *roomContext) Broadcast(frame []byte) {
	for _, sink := range c.peers {
		sink.Send(frame)
	}
}

func (c *roomContext) Close() {
	c.closeRequested = true
}
