package crdtdoc

import "collabd/internal/wire"

// opKind discriminates the two operations an update can carry.
type opKind uint64

const (
	opInsert opKind = 0
	opDelete opKind = 1
)

// op is one CRDT operation, uniquely identified by (origin, seq). For an
// insert that pair is also the inserted node's key; a delete additionally
// carries the key of the node it tombstones.
type op struct {
	kind   opKind
	origin uint64
	seq    uint64
	after  NodeKey // opInsert only
	ch     rune    // opInsert only
	target NodeKey // opDelete only
}

func (o op) id() NodeKey { return NodeKey{Origin: o.origin, Seq: o.seq} }

// encodeUpdate serializes a batch of ops into the opaque bytes carried
// inside a Sync/Step2 or Sync/Update var_buffer body. It reuses the wire
// package's varint primitives rather than a second implementation.
func encodeUpdate(ops []op) []byte {
	buf := wire.AppendVarUint(nil, uint64(len(ops)))
	for _, o := range ops {
		buf = wire.AppendVarUint(buf, o.origin)
		buf = wire.AppendVarUint(buf, o.seq)
		buf = wire.AppendVarUint(buf, uint64(o.kind))
		switch o.kind {
		case opInsert:
			buf = wire.AppendVarUint(buf, o.after.Origin)
			buf = wire.AppendVarUint(buf, o.after.Seq)
			buf = wire.AppendVarUint(buf, uint64(o.ch))
		case opDelete:
			buf = wire.AppendVarUint(buf, o.target.Origin)
			buf = wire.AppendVarUint(buf, o.target.Seq)
		}
	}
	return buf
}

// decodeUpdate parses bytes produced by encodeUpdate.
func decodeUpdate(buf []byte) ([]op, error) {
	count, rest, err := wire.ReadVarUint(buf)
	if err != nil {
		return nil, err
	}
	ops := make([]op, 0, count)
	for i := uint64(0); i < count; i++ {
		var o op
		var origin, seq, kind uint64
		origin, rest, err = wire.ReadVarUint(rest)
		if err != nil {
			return nil, err
		}
		seq, rest, err = wire.ReadVarUint(rest)
		if err != nil {
			return nil, err
		}
		kind, rest, err = wire.ReadVarUint(rest)
		if err != nil {
			return nil, err
		}
		o.origin, o.seq, o.kind = origin, seq, opKind(kind)

		switch o.kind {
		case opInsert:
			var afterOrigin, afterSeq, ch uint64
			afterOrigin, rest, err = wire.ReadVarUint(rest)
			if err != nil {
				return nil, err
			}
			afterSeq, rest, err = wire.ReadVarUint(rest)
			if err != nil {
				return nil, err
			}
			ch, rest, err = wire.ReadVarUint(rest)
			if err != nil {
				return nil, err
			}
			o.after = NodeKey{Origin: afterOrigin, Seq: afterSeq}
			o.ch = rune(ch)
		case opDelete:
			var targetOrigin, targetSeq uint64
			targetOrigin, rest, err = wire.ReadVarUint(rest)
			if err != nil {
				return nil, err
			}
			targetSeq, rest, err = wire.ReadVarUint(rest)
			if err != nil {
				return nil, err
			}
			o.target = NodeKey{Origin: targetOrigin, Seq: targetSeq}
		default:
			return nil, &wire.Error{Kind: wire.UnknownType, Msg: "unrecognized crdt op kind"}
		}

		ops = append(ops, o)
	}
	return ops, nil
}

// encodeStateVector serializes a per-origin sequence-count map.
func encodeStateVector(sv map[uint64]uint64) []byte {
	buf := wire.AppendVarUint(nil, uint64(len(sv)))
	for origin, seq := range sv {
		buf = wire.AppendVarUint(buf, origin)
		buf = wire.AppendVarUint(buf, seq)
	}
	return buf
}

// decodeStateVector parses bytes produced by encodeStateVector.
func decodeStateVector(buf []byte) (map[uint64]uint64, error) {
	count, rest, err := wire.ReadVarUint(buf)
	if err != nil {
		return nil, err
	}
	sv := make(map[uint64]uint64, count)
	for i := uint64(0); i < count; i++ {
		var origin, seq uint64
		origin, rest, err = wire.ReadVarUint(rest)
		if err != nil {
			return nil, err
		}
		seq, rest, err = wire.ReadVarUint(rest)
		if err != nil {
			return nil, err
		}
		sv[origin] = seq
	}
	return sv, nil
}
