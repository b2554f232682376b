package protocol

import (
	"collabd/internal/crdtdoc"
	"collabd/internal/wire"
)

// Handle decodes one frame and dispatches it against ctx, performing the
// mutation and the unicast/broadcast side effects the message type calls
// for. It returns a *wire.Error for malformed input and a name-mismatch
// error when the frame addresses a document other than ctx's.
func Handle(ctx Context, frame []byte) error {
	decoded, err := wire.DecodeFrame(frame)
	if err != nil {
		return err
	}
	if decoded.DocumentName != ctx.DocumentName() {
		return &wire.Error{Kind: wire.NameMismatch, Msg: "frame addressed to a different document"}
	}

	switch decoded.Type {
	case wire.Sync:
		return handleSync(ctx, decoded.Body)
	case wire.Awareness:
		return handleAwareness(ctx, decoded.Body)
	case wire.QueryAwareness:
		return handleQueryAwareness(ctx)
	case wire.Close:
		ctx.Close()
		return nil
	case wire.Auth, wire.Stateless, wire.BroadcastStateless, wire.SyncStatus, wire.SyncReply:
		// Recognized but deliberately inert: no server-side authentication
		// scheme, no stateless side channel, sync-status frames are
		// client-bound acknowledgements this server only ever sends, and
		// SyncReply is a client-side framing accepted without effect.
		return nil
	default:
		return &wire.Error{Kind: wire.UnknownType, Msg: "unhandled message type"}
	}
}

func handleSync(ctx Context, body []byte) error {
	sub, payload, err := wire.DecodeSyncBody(body)
	if err != nil {
		return err
	}

	switch sub {
	case wire.Step1:
		doc := ctx.Document()
		// The server's own Step1 reply is framed as Sync, not SyncReply:
		// SyncReply is reserved for tolerating that message type on frames
		// the server receives, never for ones it emits (matching
		// write_sync_step1_inline in the reference sync codec).
		ctx.Unicast(wire.EncodeSync(ctx.DocumentName(), wire.Sync, wire.Step1, doc.StateVector()))

		update, err := doc.EncodeStateAsUpdate(payload)
		if err != nil {
			return err
		}
		ctx.Unicast(wire.EncodeSync(ctx.DocumentName(), wire.Sync, wire.Step2, update))

	case wire.Step2, wire.Update:
		doc := ctx.Document()
		if err := doc.ApplyUpdate(payload); err != nil {
			return err
		}
		// Step2 and Update are handled identically server-side; the
		// broadcast is always re-framed as Step2, matching write_sync_update
		// in the reference sync codec.
		ctx.Broadcast(wire.EncodeSync(ctx.DocumentName(), wire.Sync, wire.Step2, payload))
		ctx.Unicast(wire.EncodeSyncStatus(ctx.DocumentName(), true))
	}

	return nil
}

func handleAwareness(ctx Context, body []byte) error {
	update, err := wire.DecodeAwarenessBody(body)
	if err != nil {
		return err
	}
	states, err := crdtdoc.DecodeAwarenessUpdate(update)
	if err != nil {
		return err
	}

	changed := ctx.Awareness().Apply(states)
	if len(changed) == 0 {
		return nil
	}

	ctx.Broadcast(wire.EncodeAwareness(ctx.DocumentName(), crdtdoc.EncodeAwarenessUpdate(changed)))
	return nil
}

func handleQueryAwareness(ctx Context) error {
	states := ctx.Awareness().States()
	if len(states) == 0 {
		return nil
	}
	ctx.Unicast(wire.EncodeAwareness(ctx.DocumentName(), crdtdoc.EncodeAwarenessUpdate(states)))
	return nil
}
