package ingest

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/gardenctl/internal/testutil/testlog"
	"github.com/gorilla/websocket"
)

type call struct {
	kind Kind
	buf  []byte
	typ  uint32
	secs uint32
	text string
}

type recorder struct{ calls chan call }

func (r *recorder) OnPacketSent(buf []byte) { r.calls <- call{kind: KindPacketSent, buf: buf} }
func (r *recorder) OnPacketReceived(buf []byte) {
	r.calls <- call{kind: KindPacketReceived, buf: buf}
}
func (r *recorder) OnSystemLogLine(eventType, seconds uint32, text string) {
	r.calls <- call{kind: KindSystemLog, typ: eventType, secs: seconds, text: text}
}

func (r *recorder) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-r.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a dispatched frame")
		return call{}
	}
}

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestFrameDecode(t *testing.T) {
	f, err := DecodeFrame(Frame{Kind: KindSystemLog, EventType: 57, Seconds: 1700000000, Text: "Mist, Ward 3"}.Encode())
	if err != nil || f.EventType != 57 || f.Seconds != 1700000000 || f.Text != "Mist, Ward 3" {
		t.Fatalf("syslog frame: %+v err=%v", f, err)
	}
	if _, err := DecodeFrame(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("empty: %v", err)
	}
	if _, err := DecodeFrame([]byte{9, 1}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("unknown kind: %v", err)
	}
	if _, err := DecodeFrame([]byte{byte(KindWorldID), 1, 2}); !errors.Is(err, ErrShortFrame) {
		t.Fatalf("short world frame: %v", err)
	}
	if _, err := DecodeFrame([]byte{byte(KindSystemLog), 1, 2, 3}); !errors.Is(err, ErrShortFrame) {
		t.Fatalf("short syslog frame: %v", err)
	}
}

func TestHubDispatchesFrames(t *testing.T) {
	testlog.Start(t)
	hub := NewHub()
	rec := &recorder{calls: make(chan call, 8)}
	hub.SetHandler(rec)
	conn := dial(t, hub)

	send := func(f Frame) {
		t.Helper()
		if err := conn.WriteMessage(websocket.BinaryMessage, f.Encode()); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	send(Frame{Kind: KindWorldID, WorldID: 73})
	send(Frame{Kind: KindPacketSent, Packet: []byte{1, 2, 3}})
	_ = conn.WriteMessage(websocket.TextMessage, []byte("ignored"))
	send(Frame{Kind: KindPacketReceived, Packet: []byte{4}})
	send(Frame{Kind: KindSystemLog, EventType: 57, Seconds: 9, Text: "Ward 3"})

	c := rec.next(t)
	if c.kind != KindPacketSent || string(c.buf) != "\x01\x02\x03" {
		t.Fatalf("first call: %+v", c)
	}
	if hub.CurrentWorldID() != 73 {
		t.Fatalf("world id: %d", hub.CurrentWorldID())
	}
	if c = rec.next(t); c.kind != KindPacketReceived || len(c.buf) != 1 {
		t.Fatalf("second call: %+v", c)
	}
	if c = rec.next(t); c.kind != KindSystemLog || c.typ != 57 || c.text != "Ward 3" {
		t.Fatalf("third call: %+v", c)
	}
}

func TestLogLineBroadcast(t *testing.T) {
	testlog.Start(t)
	hub := NewHub()
	a := dial(t, hub)
	b := dial(t, hub)
	for hub.Clients() < 2 {
		time.Sleep(5 * time.Millisecond)
	}

	line := "00|2024-03-01T12:30:00.0000000Z|0|GardeningTracker|00|1|2|3|4|5|6|7|8|9||"
	hub.LogLine(line)

	for _, conn := range []*websocket.Conn{a, b} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if typ != websocket.TextMessage || string(msg) != line {
			t.Fatalf("got %d %q", typ, msg)
		}
	}

	_ = a.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("client not unregistered: %d", hub.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCloseDisconnectsAndStopsDispatch(t *testing.T) {
	testlog.Start(t)
	hub := NewHub()
	rec := &recorder{calls: make(chan call, 8)}
	hub.SetHandler(rec)
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteMessage(websocket.BinaryMessage, Frame{Kind: KindPacketSent, Packet: []byte{1}}.Encode()); err != nil {
		t.Fatalf("write: %v", err)
	}
	rec.next(t)

	hub.SetHandler(nil)
	hub.Close()
	if n := hub.Clients(); n != 0 {
		t.Fatalf("clients after close: %d", n)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("connection still open after close")
	}
	_ = conn.WriteMessage(websocket.BinaryMessage, Frame{Kind: KindPacketSent, Packet: []byte{2}}.Encode())

	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("late dial: %v", err)
	}
	defer late.Close()
	_ = late.WriteMessage(websocket.BinaryMessage, Frame{Kind: KindPacketSent, Packet: []byte{3}}.Encode())
	_ = late.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := late.ReadMessage(); err == nil {
		t.Fatalf("closed hub accepted a bridge")
	}

	select {
	case c := <-rec.calls:
		t.Fatalf("dispatched after close: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
	if n := hub.Clients(); n != 0 {
		t.Fatalf("clients after late dial: %d", n)
	}
	hub.Close()
}
