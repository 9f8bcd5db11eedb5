package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/arcade/game/event"
	"github.com/wricardo/mcp-training/arcade/game/routing"
	"github.com/wricardo/mcp-training/arcade/game/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Pending outbound messages before updates are dropped.
	broadcastBuffer = 256
)

// Message types sent to clients
const (
	TypeStateUpdate   = "state_update"
	TypeState         = "state"
	TypeSessionClosed = "session_closed"
	TypeError         = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventMessage is an engine event plus the sound cue a client may play for it
type EventMessage struct {
	Kind    event.Kind `json:"kind"`
	Score   int        `json:"score"`
	Target  []int      `json:"target,omitempty"`
	Message string     `json:"message,omitempty"`
	Cue     string     `json:"cue,omitempty"`
}

// Message is one outbound frame
type Message struct {
	Type      string             `json:"type"`
	SessionID string             `json:"session_id"`
	State     *service.StateView `json:"state,omitempty"`
	Events    []EventMessage     `json:"events,omitempty"`
	Error     string             `json:"error,omitempty"`

	to *Client // nil broadcasts to the whole session
}

// Command is an inbound client action. Coordinates are only read by the
// drag actions, Index only by select.
type Command struct {
	Action string `mapstructure:"action"`
	Index  int    `mapstructure:"index"`
	X      int    `mapstructure:"x"`
	Y      int    `mapstructure:"y"`
}

// Client represents a WebSocket client
type Client struct {
	id        string
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

// Hub maintains the set of active clients per session. It implements
// service.Listener so every state change reaches the session's viewers.
type Hub struct {
	sessions map[string]map[*Client]bool
	svc      service.GameService

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Bind sets the service client commands are dispatched to. Call before Run.
func (h *Hub) Bind(svc service.GameService) {
	h.svc = svc
}

// Run owns the client registry until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.sessions {
				for client := range clients {
					h.unregisterClient(client)
				}
			}
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			if message.Type == TypeSessionClosed {
				h.closeSession(message.SessionID)
				continue
			}
			h.deliver(message)
		}
	}
}

// OnUpdate queues a state update for the session's clients without blocking
func (h *Hub) OnUpdate(sessionID string, state *service.StateView, events []event.Event) {
	h.enqueue(&Message{
		Type:      TypeStateUpdate,
		SessionID: sessionID,
		State:     state,
		Events:    eventMessages(events),
	})
}

// OnClose notifies and disconnects the session's clients. It shares the
// update queue so updates sent before it are delivered first.
func (h *Hub) OnClose(sessionID string) {
	h.enqueue(&Message{Type: TypeSessionClosed, SessionID: sessionID})
}

func (h *Hub) enqueue(m *Message) {
	select {
	case h.broadcast <- m:
	default:
		log.Warn().Str("session", m.SessionID).Str("type", m.Type).Msg("websocket update dropped, hub busy")
	}
}

// ServeWS upgrades the request and attaches the connection to sessionID
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		id:        uuid.NewString(),
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: strings.ToLower(sessionID),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	if h.svc != nil {
		if state, err := h.svc.GetState(r.Context(), sessionID); err == nil {
			h.enqueue(&Message{Type: TypeState, SessionID: client.sessionID, State: state, to: client})
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true

	log.Info().Str("session", client.sessionID).Str("client", client.id).
		Int("clients", len(h.sessions[client.sessionID])).Msg("websocket client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	clients, ok := h.sessions[client.sessionID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)

	if len(clients) == 0 {
		delete(h.sessions, client.sessionID)
	}

	log.Info().Str("session", client.sessionID).Str("client", client.id).
		Int("clients", len(clients)).Msg("websocket client unregistered")
}

// deliver sends a message to its target client or to every client of the session
func (h *Hub) deliver(message *Message) {
	message.SessionID = strings.ToLower(message.SessionID)
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Str("session", message.SessionID).Msg("marshal websocket message")
		return
	}

	clients := h.sessions[message.SessionID]
	for client := range clients {
		if message.to != nil && client != message.to {
			continue
		}
		select {
		case client.send <- data:
		default:
			h.unregisterClient(client)
		}
	}
}

// closeSession tells the session's clients it is gone, then drops them
func (h *Hub) closeSession(sessionID string) {
	sessionID = strings.ToLower(sessionID)
	h.deliver(&Message{Type: TypeSessionClosed, SessionID: sessionID})
	for client := range h.sessions[sessionID] {
		h.unregisterClient(client)
	}
}

// dispatch applies one client command through the bound service
func (h *Hub) dispatch(c *Client, raw map[string]any) {
	var cmd Command
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &cmd,
	})
	if err == nil {
		err = decoder.Decode(raw)
	}
	if err != nil {
		h.replyError(c, fmt.Errorf("invalid command: %w", err))
		return
	}
	if h.svc == nil {
		h.replyError(c, fmt.Errorf("commands are not accepted on this connection"))
		return
	}

	ctx := context.Background()
	p := routing.Point{X: cmd.X, Y: cmd.Y}

	switch strings.ToLower(cmd.Action) {
	case "start":
		_, err = h.svc.Start(ctx, c.sessionID)
	case "select":
		_, err = h.svc.SelectCard(ctx, c.sessionID, cmd.Index)
	case "begin":
		_, err = h.svc.BeginDrag(ctx, c.sessionID, p)
	case "extend":
		_, err = h.svc.ExtendDrag(ctx, c.sessionID, p)
	case "end":
		_, err = h.svc.EndDrag(ctx, c.sessionID)
	case "state":
		var state *service.StateView
		if state, err = h.svc.GetState(ctx, c.sessionID); err == nil {
			h.enqueue(&Message{Type: TypeState, SessionID: c.sessionID, State: state, to: c})
		}
	default:
		err = fmt.Errorf("unknown action %q", cmd.Action)
	}
	if err != nil {
		h.replyError(c, err)
	}
}

func (h *Hub) replyError(c *Client, err error) {
	log.Debug().Err(err).Str("session", c.sessionID).Str("client", c.id).Msg("websocket command rejected")
	h.enqueue(&Message{Type: TypeError, SessionID: c.sessionID, Error: err.Error(), to: c})
}

func eventMessages(events []event.Event) []EventMessage {
	if len(events) == 0 {
		return nil
	}
	out := make([]EventMessage, len(events))
	for i, e := range events {
		out[i] = EventMessage{
			Kind:    e.Kind,
			Score:   e.Score,
			Target:  e.Target,
			Message: e.Message,
			Cue:     event.Cue(e.Kind),
		}
	}
	return out
}

// readPump reads client commands until the connection drops
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("client", c.id).Msg("websocket read")
			}
			break
		}

		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			c.hub.replyError(c, fmt.Errorf("invalid JSON: %w", err))
			continue
		}
		c.hub.dispatch(c, raw)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
