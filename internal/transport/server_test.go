package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"collabd/internal/crdtdoc"
	"collabd/internal/ids"
	"collabd/internal/room"
	"collabd/internal/wire"
)

func startTestServer(t *testing.T) string {
	t.Helper()

	idGen, err := ids.NewGenerator(1)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	registry := room.NewRegistry(nil)
	srv := New(registry, idGen, DefaultConfig())

	httpServer := httptest.NewServer(srv.Echo())
	t.Cleanup(httpServer.Close)

	return "ws" + strings.TrimPrefix(httpServer.URL, "http")
}

func dial(t *testing.T, baseWSURL, document string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(baseWSURL+"/ws?doc="+document, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wire.DecodedFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(4 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	decoded, err := wire.DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	return decoded
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame []byte) {
	t.Helper()
	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("write message: %v", err)
	}
}

func TestTwoPeersSyncAnUpdateAcrossTheSameDocument(t *testing.T) {
	baseURL := startTestServer(t)

	alice := dial(t, baseURL, "room-1")
	defer alice.Close()
	bob := dial(t, baseURL, "room-1")
	defer bob.Close()

	doc := crdtdoc.NewDocument()
	doc.InsertLocal(1, crdtdoc.NodeKey{}, 'h')
	update := doc.EncodeFullUpdate()
	writeFrame(t, alice, wire.EncodeSync("room-1", wire.Sync, wire.Update, update))

	// Alice sees her own echo, then an ack.
	echo := readFrame(t, alice)
	if echo.Type != wire.Sync {
		t.Fatalf("alice echo type = %v, want Sync", echo.Type)
	}
	ack := readFrame(t, alice)
	if ack.Type != wire.SyncStatus {
		t.Fatalf("alice ack type = %v, want SyncStatus", ack.Type)
	}

	bobFrame := readFrame(t, bob)
	if bobFrame.Type != wire.Sync {
		t.Fatalf("bob frame type = %v, want Sync", bobFrame.Type)
	}
	if bobFrame.DocumentName != "room-1" {
		t.Fatalf("document name = %q", bobFrame.DocumentName)
	}
}

func TestPeersInDifferentDocumentsDoNotSeeEachOther(t *testing.T) {
	baseURL := startTestServer(t)

	alice := dial(t, baseURL, "room-a")
	defer alice.Close()
	bob := dial(t, baseURL, "room-b")
	defer bob.Close()

	doc := crdtdoc.NewDocument()
	doc.InsertLocal(1, crdtdoc.NodeKey{}, 'z')
	writeFrame(t, alice, wire.EncodeSync("room-a", wire.Sync, wire.Update, doc.EncodeFullUpdate()))

	// Alice gets her own echo + ack; bob gets nothing from a different room.
	readFrame(t, alice)
	readFrame(t, alice)

	_ = bob.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := bob.ReadMessage(); err == nil {
		t.Fatal("expected bob to receive nothing from a different document")
	}
}

func TestHealthReportsRoomCount(t *testing.T) {
	baseURL := startTestServer(t)

	conn := dial(t, baseURL, "room-health")
	defer conn.Close()

	// Give the join a moment to land in the registry.
	time.Sleep(50 * time.Millisecond)

	httpURL := "http" + strings.TrimPrefix(baseURL, "ws")
	resp, err := http.Get(httpURL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read health response: %v", err)
	}

	var body struct {
		Status string `json:"status"`
		Rooms  int    `json:"rooms"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal health response: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("status = %q", body.Status)
	}
	if body.Rooms != 1 {
		t.Fatalf("rooms = %d, want 1", body.Rooms)
	}
}
