package room

import "testing"

func TestPeerSinkSendAndDrain(t *testing.T) {
	s := NewPeerSink()
	if !s.Send([]byte("a")) {
		t.Fatal("expected send to succeed")
	}
	if !s.Send([]byte("b")) {
		t.Fatal("expected send to succeed")
	}

	if got := <-s.Frames(); string(got) != "a" {
		t.Fatalf("got %q, want %q", got, "a")
	}
	if got := <-s.Frames(); string(got) != "b" {
		t.Fatalf("got %q, want %q", got, "b")
	}
}

func TestPeerSinkFullDropsInsteadOfBlocking(t *testing.T) {
	s := NewPeerSink()
	for i := 0; i < sinkBuffer; i++ {
		if !s.Send([]byte{byte(i)}) {
			t.Fatalf("send %d should have succeeded", i)
		}
	}
	if s.Send([]byte("overflow")) {
		t.Fatal("expected send to a full sink to report false")
	}
}

func TestPeerSinkSendAfterCloseReportsFalse(t *testing.T) {
	s := NewPeerSink()
	s.Close()
	if s.Send([]byte("x")) {
		t.Fatal("expected send on a closed sink to report false")
	}
}

func TestPeerSinkCloseIsIdempotent(t *testing.T) {
	s := NewPeerSink()
	s.Close()
	s.Close()
}
