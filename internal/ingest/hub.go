// Package ingest bridges a host process to the tracker over a websocket:
// the host pushes raw packets and system log lines, the tracker's act log
// lines are pushed back.
package ingest

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/gardenctl/internal/observability"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Handler consumes decoded frames. *tracker.Tracker satisfies it.
type Handler interface {
	OnPacketSent(buf []byte)
	OnPacketReceived(buf []byte)
	OnSystemLogLine(eventType, seconds uint32, text string)
}

const (
	outQueue     = 64
	writeTimeout = 5 * time.Second
	readTimeout  = 90 * time.Second
)

type client struct {
	id   uint64
	out  chan []byte
	conn *websocket.Conn
}

// Hub accepts bridge connections and implements tracker.Host.
type Hub struct {
	upgrader websocket.Upgrader
	handler  atomic.Pointer[handlerBox]
	worldID  atomic.Uint32
	nextID   atomic.Uint64

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	readers sync.WaitGroup
}

type handlerBox struct{ h Handler }

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 16 * 1024,
			// bridges connect from localhost tooling without an Origin header
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// SetHandler installs the frame consumer. Frames arriving before a handler
// is set are dropped.
func (h *Hub) SetHandler(handler Handler) {
	if handler == nil {
		h.handler.Store(nil)
		return
	}
	h.handler.Store(&handlerBox{h: handler})
}

// LogLine broadcasts one act log line to every connected bridge. Slow
// bridges lose lines rather than block the tracker.
func (h *Hub) LogLine(line string) {
	msg := []byte(line)
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.out <- msg:
		default:
			log.Warn().Msgf("ingest.LogLine client=%d queue full", c.id)
		}
	}
}

func (h *Hub) CurrentWorldID() uint32 { return h.worldID.Load() }

func (h *Hub) SetWorldID(id uint32) { h.worldID.Store(id) }

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every bridge, refuses new ones and waits until no
// frame is being dispatched. Handlers are never called after Close returns.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), deadline)
		_ = conn.Close()
	}
	h.readers.Wait()
	log.Info().Msgf("ingest.close disconnected=%d", len(conns))
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	h.readers.Add(1)
	n := len(h.clients)
	h.mu.Unlock()
	observability.SetIngestClients(n)
	log.Info().Msgf("ingest.connect client=%d clients=%d", c.id, n)
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	observability.SetIngestClients(n)
	log.Info().Msgf("ingest.disconnect client=%d clients=%d", c.id, n)
	h.readers.Done()
}

// ServeHTTP upgrades the request and pumps frames until the bridge leaves.
func (h *Hub) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.Debug().Msgf("ingest.upgrade remote=%s err=%v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	c := &client{id: h.nextID.Add(1), out: make(chan []byte, outQueue), conn: conn}
	if !h.register(c) {
		log.Debug().Msgf("ingest.connect remote=%s refused: hub closed", r.RemoteAddr)
		return
	}
	defer h.unregister(c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case b := <-c.out:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Msgf("ingest.read client=%d err=%v", c.id, err)
			}
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		h.dispatch(c, msg)
	}
}

func (h *Hub) dispatch(c *client, msg []byte) {
	f, err := DecodeFrame(msg)
	if err != nil {
		log.Debug().Msgf("ingest.dispatch client=%d err=%v", c.id, err)
		return
	}
	if f.Kind == KindWorldID {
		h.SetWorldID(f.WorldID)
		log.Debug().Msgf("ingest.dispatch client=%d world=%d", c.id, f.WorldID)
		return
	}
	box := h.handler.Load()
	if box == nil {
		return
	}
	switch f.Kind {
	case KindPacketSent:
		box.h.OnPacketSent(f.Packet)
	case KindPacketReceived:
		box.h.OnPacketReceived(f.Packet)
	case KindSystemLog:
		box.h.OnSystemLogLine(f.EventType, f.Seconds, f.Text)
	}
}
