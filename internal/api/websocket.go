package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/ism7-bridge/internal/bridges/ism7"
	"github.com/nerrad567/ism7-bridge/internal/infrastructure/logging"
)

// Stream message types.
const (
	MsgSubscribe   = "subscribe"
	MsgUnsubscribe = "unsubscribe"
	MsgPing        = "ping"
	MsgPong        = "pong"
	MsgEvent       = "event"
	MsgAck         = "ack"
	MsgError       = "error"
)

const (
	streamQueueSize = 256
	streamReadLimit = 4096
	streamPingEvery = 30 * time.Second
	streamWriteWait = 10 * time.Second
	streamReadWait  = streamPingEvery + streamWriteWait
)

// allChannels is the subscription of a client that names none.
var allChannels = []string{ism7.ChannelValues, ism7.ChannelAcks, ism7.ChannelSession}

// StreamMessage is the envelope for everything sent over /api/v1/ws.
// Clients send subscribe, unsubscribe and ping with an optional ID that is
// echoed in the reply.
type StreamMessage struct {
	Type     string   `json:"type"`
	ID       string   `json:"id,omitempty"`
	Channel  string   `json:"channel,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Time     string   `json:"time,omitempty"`
	Payload  any      `json:"payload,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Hub fans bridge events out to WebSocket clients.
//
// A client's queue is only written or closed while holding the hub lock,
// so a broadcast never races a disconnect.
type Hub struct {
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
}

type streamClient struct {
	conn  *websocket.Conn
	queue chan []byte

	mu       sync.RWMutex
	channels map[string]bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Read-only stream on the internal status port.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.queue)
		delete(h.clients, c)
	}
}

// Broadcast queues an event for every client subscribed to channel.
// Clients whose queue is full miss the event.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(StreamMessage{
		Type:    MsgEvent,
		Channel: channel,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Payload: payload,
	})
	if err != nil {
		h.logger.Error("encoding stream event", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.wants(channel) {
			enqueue(c, data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *streamClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("stream client connected", "clients", n)
}

func (h *Hub) remove(c *streamClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.queue)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Debug("stream client disconnected", "clients", n)
	}
}

// reply queues a direct response to one client.
func (h *Hub) reply(c *streamClient, msg StreamMessage) {
	msg.Time = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; ok {
		enqueue(c, data)
	}
}

// enqueue must be called with the hub lock held.
func enqueue(c *streamClient, data []byte) {
	select {
	case c.queue <- data:
	default:
	}
}

var _ ism7.EventSink = (*Hub)(nil)

func (c *streamClient) wants(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

func (c *streamClient) setChannels(channels []string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		ch = strings.TrimSpace(ch)
		if ch == "" {
			continue
		}
		if on {
			c.channels[ch] = true
		} else {
			delete(c.channels, ch)
		}
	}
}

// handleWebSocket upgrades the request and streams the channels named in
// ?channels=a,b, or all of them.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	channels := allChannels
	if v := r.URL.Query().Get("channels"); v != "" {
		channels = strings.Split(v, ",")
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &streamClient{
		conn:     conn,
		queue:    make(chan []byte, streamQueueSize),
		channels: make(map[string]bool, len(channels)),
	}
	c.setChannels(channels, true)
	s.hub.add(c)

	go s.hub.writeLoop(c)
	go s.hub.readLoop(c)
}

func (h *Hub) readLoop(c *streamClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(streamReadLimit)
	//nolint:errcheck // read error surfaces below
	c.conn.SetReadDeadline(time.Now().Add(streamReadWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamReadWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("stream read failed", "error", err)
			}
			return
		}
		//nolint:errcheck // read error surfaces on the next read
		c.conn.SetReadDeadline(time.Now().Add(streamReadWait))

		var msg StreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(c, StreamMessage{Type: MsgError, Error: "invalid JSON message"})
			continue
		}
		switch msg.Type {
		case MsgSubscribe, MsgUnsubscribe:
			c.setChannels(msg.Channels, msg.Type == MsgSubscribe)
			h.reply(c, StreamMessage{Type: MsgAck, ID: msg.ID, Channels: msg.Channels})
		case MsgPing:
			h.reply(c, StreamMessage{Type: MsgPong, ID: msg.ID})
		default:
			h.reply(c, StreamMessage{Type: MsgError, ID: msg.ID, Error: "unknown message type: " + msg.Type})
		}
	}
}

func (h *Hub) writeLoop(c *streamClient) {
	ping := time.NewTicker(streamPingEvery)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // write error surfaces below
		c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.queue:
			if !ok {
				//nolint:errcheck // connection is closing
				write(websocket.CloseMessage, nil)
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
