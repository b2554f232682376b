package crdtdoc

import (
	"bytes"
	"testing"
)

func TestAwarenessApplyAcceptsNewer(t *testing.T) {
	a := NewAwareness()

	changed := a.Apply(map[uint64]AwarenessState{
		1: {Clock: 1, Payload: []byte("alice@0,0")},
	})
	if len(changed) != 1 {
		t.Fatalf("expected 1 changed entry, got %d", len(changed))
	}

	// Stale update (clock did not advance) is dropped.
	changed = a.Apply(map[uint64]AwarenessState{
		1: {Clock: 1, Payload: []byte("alice@9,9")},
	})
	if len(changed) != 0 {
		t.Fatalf("expected stale update to be dropped, got %d changes", len(changed))
	}
	if !bytes.Equal(a.States()[1].Payload, []byte("alice@0,0")) {
		t.Fatalf("stale update should not overwrite stored state")
	}

	// Newer clock is accepted.
	changed = a.Apply(map[uint64]AwarenessState{
		1: {Clock: 2, Payload: []byte("alice@1,1")},
	})
	if len(changed) != 1 {
		t.Fatalf("expected update to be accepted, got %d changes", len(changed))
	}
}

func TestAwarenessEmptyPayloadRemoves(t *testing.T) {
	a := NewAwareness()
	a.Apply(map[uint64]AwarenessState{1: {Clock: 1, Payload: []byte("x")}})

	changed := a.Apply(map[uint64]AwarenessState{1: {Clock: 0, Payload: nil}})
	if len(changed) != 1 {
		t.Fatalf("expected removal to be reported as a change")
	}
	if _, ok := a.States()[1]; ok {
		t.Fatalf("expected state to be removed")
	}
}

func TestAwarenessRemove(t *testing.T) {
	a := NewAwareness()
	a.Apply(map[uint64]AwarenessState{5: {Clock: 1, Payload: []byte("y")}})

	st, ok := a.Remove(5)
	if !ok {
		t.Fatal("expected Remove to find the entry")
	}
	if !bytes.Equal(st.Payload, []byte("y")) {
		t.Fatalf("unexpected payload %q", st.Payload)
	}
	if _, ok := a.Remove(5); ok {
		t.Fatal("expected second Remove to report absence")
	}
}

func TestAwarenessUpdateCodecRoundTrip(t *testing.T) {
	states := map[uint64]AwarenessState{
		1: {Clock: 4, Payload: []byte("a")},
		2: {Clock: 0, Payload: []byte{}},
	}
	buf := EncodeAwarenessUpdate(states)
	decoded, err := DecodeAwarenessUpdate(buf)
	if err != nil {
		t.Fatalf("DecodeAwarenessUpdate: %v", err)
	}
	if len(decoded) != len(states) {
		t.Fatalf("got %d entries, want %d", len(decoded), len(states))
	}
	for id, st := range states {
		got := decoded[id]
		if got.Clock != st.Clock || !bytes.Equal(got.Payload, st.Payload) {
			t.Fatalf("id %d: got %+v, want %+v", id, got, st)
		}
	}
}
