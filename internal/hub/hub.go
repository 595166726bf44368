// Package hub implements the broadcast hub that fans editor-originated
// events out to connected clients and routes client actions back to the
// editor.
//
// Exactly one connected socket is "the editor" at a time, elected by
// whichever socket most recently sent EDITOR_CONNECTED. Messages from the
// editor socket broadcast to every other socket and never loop back;
// messages from any other socket are forwarded to the editor, or buffered
// while no editor is attached.
package hub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/assetforge/assetforge/internal/channel"
	"github.com/assetforge/assetforge/internal/logging"
	"github.com/assetforge/assetforge/internal/protocol"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type inbound struct {
	conn *websocket.Conn
	m    protocol.Mutation
}

// Hub owns the live-channel server side. All connection state is confined
// to the run goroutine; cross-component communication happens over
// channels.
type Hub struct {
	outputRoot string
	logger     logging.Logger

	clients map[*websocket.Conn]*client
	editor  *websocket.Conn

	register   chan *client
	unregister chan *websocket.Conn
	inbox      chan inbound
	outbox     chan protocol.Mutation // host → clients broadcast
	toEditor   chan protocol.Mutation // host → editor, buffered when detached

	// pending holds actions addressed to the editor while none is attached.
	pending *channel.RequestBuffer

	handlerMutex   sync.RWMutex
	editorHandlers []func(protocol.Mutation)

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a hub that will answer editor attachment with INIT carrying
// outputRoot.
func New(outputRoot string, logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		outputRoot: outputRoot,
		logger:     logger.WithScope("hub"),
		clients:    make(map[*websocket.Conn]*client),
		register:   make(chan *client, 16),
		unregister: make(chan *websocket.Conn, 16),
		inbox:      make(chan inbound, 256),
		outbox:     make(chan protocol.Mutation, 256),
		toEditor:   make(chan protocol.Mutation, 256),
		pending:    channel.NewRequestBuffer(),
		ctx:        ctx,
		cancel:     cancel,
	}
	go h.run()
	return h
}

// OnEditorMessage registers a host-side observer for messages originating
// from the editor socket, including the synthetic EDITOR_DISCONNECTED.
func (h *Hub) OnEditorMessage(handler func(protocol.Mutation)) {
	h.handlerMutex.Lock()
	defer h.handlerMutex.Unlock()
	h.editorHandlers = append(h.editorHandlers, handler)
}

// Broadcast pushes an event toward every connected client except the
// editor socket.
func (h *Hub) Broadcast(m protocol.Mutation) {
	select {
	case h.outbox <- m:
	case <-h.ctx.Done():
	default:
		h.logger.Warn(nil, "broadcast queue full, dropping event", "type", m.Type)
	}
}

// SendToEditor delivers an action to the attached editor, or buffers it
// until one attaches.
func (h *Hub) SendToEditor(m protocol.Mutation) {
	select {
	case h.toEditor <- m:
	case <-h.ctx.Done():
	}
}

// EditorAttached reports whether an editor socket is currently elected.
func (h *Hub) EditorAttached() bool {
	// Confined state; answered via a channel round-trip would be heavier
	// than this read needs. The race is benign for its diagnostic use.
	return h.editor != nil
}

// Handler returns the HTTP handler that upgrades connections into the hub.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(h.handleWebSocket)
}

// Shutdown closes every connection and stops the hub goroutine.
func (h *Hub) Shutdown() {
	h.cancel()
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Local development tool: the channel binds loopback and carries
		// no credentials.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn(err, "websocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.ctx.Done():
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		select {
		case h.unregister <- c.conn:
		case <-h.ctx.Done():
		}
	}()

	for {
		_, data, err := c.conn.Read(h.ctx)
		if err != nil {
			return
		}
		m, err := protocol.Decode(data)
		if err != nil {
			h.logger.Warn(err, "dropping malformed message")
			continue
		}
		select {
		case h.inbox <- inbound{conn: c.conn, m: m}:
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		case <-h.ctx.Done():
			return
		}
	}
}

// run is the hub goroutine; it is the only writer of clients and editor.
func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c.conn] = c
			h.logger.Debug("client connected", "total", len(h.clients))

		case conn := <-h.unregister:
			h.dropClient(conn)

		case in := <-h.inbox:
			h.route(in)

		case m := <-h.outbox:
			h.fanOut(m, nil)

		case m := <-h.toEditor:
			h.forwardToEditor(m)

		case <-h.ctx.Done():
			for conn, c := range h.clients {
				close(c.send)
				conn.Close(websocket.StatusGoingAway, "shutting down")
			}
			h.clients = make(map[*websocket.Conn]*client)
			return
		}
	}
}

func (h *Hub) dropClient(conn *websocket.Conn) {
	c, ok := h.clients[conn]
	if !ok {
		return
	}
	delete(h.clients, conn)
	close(c.send)
	conn.Close(websocket.StatusNormalClosure, "")

	if h.editor == conn {
		h.editor = nil
		h.logger.Info("editor detached")
		// Consumers learn about the degraded state immediately.
		h.fanOut(protocol.EditorDisconnected(), nil)
		h.notifyEditorHandlers(protocol.EditorDisconnected())
	} else {
		h.logger.Debug("client disconnected", "total", len(h.clients))
	}
}

// route applies the hub's routing rule to one inbound message.
func (h *Hub) route(in inbound) {
	if in.conn == h.editor {
		// Editor-originated events broadcast to everyone else.
		h.fanOut(in.m, in.conn)
		h.notifyEditorHandlers(in.m)
		return
	}

	if in.m.Type == protocol.TypeEditorConnected {
		h.electEditor(in.conn)
		return
	}

	// Client-originated actions route to the editor, or wait for one.
	if h.editor == nil {
		h.pending.Enqueue(in.m)
		return
	}
	h.send(h.editor, in.m)
}

// electEditor marks conn as the editor socket, replacing any previous one,
// and answers with INIT followed by every action queued while no editor was
// attached.
func (h *Hub) electEditor(conn *websocket.Conn) {
	if h.editor != nil && h.editor != conn {
		h.logger.Info("editor replaced")
	}
	h.editor = conn
	h.logger.Info("editor attached")

	h.send(conn, protocol.Init(h.outputRoot))
	for _, queued := range h.pending.Drain() {
		h.send(conn, queued)
	}
}

func (h *Hub) forwardToEditor(m protocol.Mutation) {
	if h.editor == nil {
		h.pending.Enqueue(m)
		return
	}
	h.send(h.editor, m)
}

// fanOut delivers m to every client except skip.
func (h *Hub) fanOut(m protocol.Mutation, skip *websocket.Conn) {
	for conn := range h.clients {
		if conn == skip || conn == h.editor {
			continue
		}
		h.send(conn, m)
	}
}

func (h *Hub) send(conn *websocket.Conn, m protocol.Mutation) {
	c, ok := h.clients[conn]
	if !ok {
		return
	}
	data, err := protocol.Encode(m)
	if err != nil {
		h.logger.Error(err, "encoding mutation", "type", m.Type)
		return
	}
	select {
	case c.send <- data:
	default:
		// Slow consumer; drop the connection rather than block the hub.
		h.dropClient(conn)
	}
}

func (h *Hub) notifyEditorHandlers(m protocol.Mutation) {
	h.handlerMutex.RLock()
	handlers := make([]func(protocol.Mutation), len(h.editorHandlers))
	copy(handlers, h.editorHandlers)
	h.handlerMutex.RUnlock()
	for _, handler := range handlers {
		handler(m)
	}
}
