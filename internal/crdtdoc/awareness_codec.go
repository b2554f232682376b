package crdtdoc

import "collabd/internal/wire"

// EncodeAwarenessUpdate serializes a batch of per-connection states into the
// opaque bytes carried inside an Awareness frame's var_buffer.
func EncodeAwarenessUpdate(states map[uint64]AwarenessState) []byte {
	buf := wire.AppendVarUint(nil, uint64(len(states)))
	for id, st := range states {
		buf = wire.AppendVarUint(buf, id)
		buf = wire.AppendVarUint(buf, st.Clock)
		buf = wire.AppendVarBuffer(buf, st.Payload)
	}
	return buf
}

// DecodeAwarenessUpdate parses bytes produced by EncodeAwarenessUpdate.
func DecodeAwarenessUpdate(buf []byte) (map[uint64]AwarenessState, error) {
	count, rest, err := wire.ReadVarUint(buf)
	if err != nil {
		return nil, err
	}
	states := make(map[uint64]AwarenessState, count)
	for i := uint64(0); i < count; i++ {
		var id, clock uint64
		var payload []byte
		id, rest, err = wire.ReadVarUint(rest)
		if err != nil {
			return nil, err
		}
		clock, rest, err = wire.ReadVarUint(rest)
		if err != nil {
			return nil, err
		}
		payload, rest, err = wire.ReadVarBuffer(rest)
		if err != nil {
			return nil, err
		}
		states[id] = AwarenessState{Clock: clock, Payload: append([]byte(nil), payload...)}
	}
	return states, nil
}
