// Package protocol implements the message dispatch rules for the collab
// sync protocol: given a decoded frame and a Context giving access to one
// room's document, awareness map and outbound sinks, it decides what to
// mutate and what to send back.
package protocol

import "collabd/internal/crdtdoc"

// Context is the capability surface a single dispatch call needs. A Room
// actor implements it by closing over its own Document/Awareness state and
// its peer map, exposing exactly the operations the dispatcher is allowed
// to perform — mirroring the Context trait the sync handler this package
// was ported from is written against.
type Context interface {
	// DocumentName returns the name of the document this connection
	// attached to, used to reject frames addressed to a different room.
	DocumentName() string

	// Document returns the room's CRDT document for reading and mutation.
	Document() *crdtdoc.Document

	// Awareness returns the room's presence map for reading and mutation.
	Awareness() *crdtdoc.Awareness

	// Unicast sends a fully-framed message back to the connection that
	// produced the frame currently being handled.
	Unicast(frame []byte)

	// Broadcast sends a fully-framed message to every connection attached
	// to the room, including the sender.
	Broadcast(frame []byte)

	// Close tears down the connection currently being handled.
	Close()
}
