package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-react/internal/dispatch"
	"github.com/nerrad567/gray-logic-react/internal/engine"
	"github.com/nerrad567/gray-logic-react/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-react/internal/infrastructure/logging"
)

// Stream message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

const (
	wsSendBufferSize = 256
	wsAllChannels    = "*"
)

// streamChannels are the channels the engine publishes on.
var streamChannels = []string{
	dispatch.ChannelReactionDispatched,
	dispatch.ChannelWorkflowReset,
	dispatch.ChannelRunChanged,
	dispatch.ChannelReactionChanged,
}

var errNoChannels = errors.New("no channels given")

// WSMessage is the envelope of every frame in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload selects channels. WorkflowID and RunID, when set,
// narrow every subscribed channel to events of that workflow or run.
// A subscribe replaces the previous filter.
type WSSubscribePayload struct {
	Channels   []string `json:"channels"`
	WorkflowID string   `json:"workflow_id,omitempty"`
	RunID      string   `json:"run_id,omitempty"`
}

// eventScope is the workflow and run an engine event belongs to.
type eventScope struct {
	workflowID string
	runID      string
}

// scopeOf extracts the scope of a broadcast payload. Unknown payloads have
// an empty scope and only reach unfiltered subscribers.
func scopeOf(payload any) eventScope {
	switch p := payload.(type) {
	case engine.ReactionEvent:
		return eventScope{workflowID: p.WorkflowID, runID: p.RunID}
	case engine.RunChange:
		return eventScope{workflowID: p.Run.WorkflowID, runID: p.Run.ID}
	case engine.ReactionChange:
		return eventScope{workflowID: p.Reaction.WorkflowID, runID: p.Reaction.RunID}
	case dispatch.ResetMessage:
		return eventScope{workflowID: p.WorkflowID}
	}
	return eventScope{}
}

// Hub fans engine events out to WebSocket subscribers.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:    cfg,
		logger: logger,
		subs:   make(map[*subscriber]struct{}),
	}
}

// Run blocks until ctx is done, then disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*subscriber]struct{})
	h.mu.Unlock()

	for s := range subs {
		s.close()
	}
}

// Broadcast sends payload on channel to every subscriber whose channels
// and filter match it. Slow subscribers drop the frame.
func (h *Hub) Broadcast(channel string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding stream event failed", "channel", channel, "error", err)
		return
	}
	scope := scopeOf(payload)

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered, dropped := 0, 0
	for s := range h.subs {
		if !s.wants(channel, scope) {
			continue
		}
		if s.deliver(frame) {
			delivered++
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("stream subscribers lagging", "channel", channel, "dropped", dropped)
	}
	if delivered > 0 {
		h.logger.Debug("stream event sent", "channel", channel, "workflow_id", scope.workflowID, "subscribers", delivered)
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	h.logger.Debug("stream subscriber connected", "subscribers", n)
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	_, ok := h.subs[s]
	delete(h.subs, s)
	n := len(h.subs)
	h.mu.Unlock()
	if ok {
		s.close()
		h.logger.Debug("stream subscriber disconnected", "subscribers", n)
	}
}

// subscriber is one WebSocket connection and what it listens to.
type subscriber struct {
	hub  *Hub
	conn *websocket.Conn
	out  chan []byte

	mu       sync.Mutex
	closed   bool
	channels map[string]struct{}
	scope    eventScope
}

func newSubscriber(hub *Hub, conn *websocket.Conn) *subscriber {
	return &subscriber{
		hub:      hub,
		conn:     conn,
		out:      make(chan []byte, wsSendBufferSize),
		channels: make(map[string]struct{}),
	}
}

// subscribe adds channels and replaces the filter. Nothing changes when
// any channel is unknown.
func (s *subscriber) subscribe(req WSSubscribePayload) error {
	if len(req.Channels) == 0 {
		return errNoChannels
	}
	for _, ch := range req.Channels {
		if ch != wsAllChannels && !slices.Contains(streamChannels, ch) {
			return fmt.Errorf("unknown channel %q", ch)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range req.Channels {
		s.channels[ch] = struct{}{}
	}
	s.scope = eventScope{workflowID: req.WorkflowID, runID: req.RunID}
	return nil
}

// unsubscribe drops channels. An empty list drops every channel and
// clears the filter.
func (s *subscriber) unsubscribe(channels []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(channels) == 0 {
		clear(s.channels)
		s.scope = eventScope{}
		return
	}
	for _, ch := range channels {
		delete(s.channels, ch)
	}
}

func (s *subscriber) subscribed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.channels))
	for ch := range s.channels {
		out = append(out, ch)
	}
	slices.Sort(out)
	return out
}

// wants reports whether an event on channel with scope ev should reach s.
// A run filter excludes workflow resets, which carry no run.
func (s *subscriber) wants(channel string, ev eventScope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, all := s.channels[wsAllChannels]
	if _, ok := s.channels[channel]; !ok && !all {
		return false
	}
	if s.scope.workflowID != "" && s.scope.workflowID != ev.workflowID {
		return false
	}
	return s.scope.runID == "" || s.scope.runID == ev.runID
}

// deliver queues frame without blocking. It returns false when the
// subscriber is gone or its buffer is full.
func (s *subscriber) deliver(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.out <- frame:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}

func (s *subscriber) reply(msg WSMessage) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	frame, err := json.Marshal(msg)
	if err != nil {
		s.hub.logger.Error("encoding stream reply failed", "type", msg.Type, "error", err)
		return
	}
	s.deliver(frame)
}

func (s *subscriber) fail(id, message string) {
	s.reply(WSMessage{Type: WSTypeError, ID: id, Payload: map[string]string{"error": message}})
}

// handle dispatches one client frame.
func (s *subscriber) handle(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.fail("", "malformed message")
		return
	}

	switch msg.Type {
	case WSTypePing:
		s.reply(WSMessage{Type: WSTypePong, ID: msg.ID})
	case WSTypeSubscribe:
		var req WSSubscribePayload
		if err := remarshal(msg.Payload, &req); err != nil {
			s.fail(msg.ID, "invalid subscribe payload")
			return
		}
		if err := s.subscribe(req); err != nil {
			s.fail(msg.ID, err.Error())
			return
		}
		s.hub.logger.Info("stream subscribed", "channels", req.Channels, "workflow_id", req.WorkflowID, "run_id", req.RunID)
		s.reply(WSMessage{Type: WSTypeResponse, ID: msg.ID, Payload: map[string]any{
			"channels":    s.subscribed(),
			"workflow_id": req.WorkflowID,
			"run_id":      req.RunID,
		}})
	case WSTypeUnsubscribe:
		var req WSSubscribePayload
		if err := remarshal(msg.Payload, &req); err != nil {
			s.fail(msg.ID, "invalid unsubscribe payload")
			return
		}
		s.unsubscribe(req.Channels)
		s.reply(WSMessage{Type: WSTypeResponse, ID: msg.ID, Payload: map[string]any{
			"channels": s.subscribed(),
		}})
	default:
		s.fail(msg.ID, fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

// remarshal converts a decoded payload into dst.
func remarshal(payload any, dst any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// ─── Connection ─────────────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWebSocket upgrades to a stream connection. Nothing is sent until
// the client subscribes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sub := newSubscriber(s.hub, conn)
	s.hub.add(sub)

	keepalive := time.Duration(s.wsCfg.PingInterval) * time.Second
	grace := time.Duration(s.wsCfg.PongTimeout) * time.Second
	go sub.writeLoop(keepalive, grace)
	go sub.readLoop(int64(s.wsCfg.MaxMessageSize), keepalive+grace)
}

func (s *subscriber) readLoop(limit int64, idle time.Duration) {
	defer func() {
		s.hub.remove(s)
		s.conn.Close()
	}()

	if limit > 0 {
		s.conn.SetReadLimit(limit)
	}
	extend := func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(idle))
	}
	extend("") //nolint:errcheck // a failed deadline surfaces on the next read
	s.conn.SetPongHandler(extend)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.logger.Warn("stream read failed", "error", err)
			}
			return
		}
		extend("") //nolint:errcheck // a failed deadline surfaces on the next read
		s.handle(data)
	}
}

func (s *subscriber) writeLoop(keepalive, grace time.Duration) {
	ticker := time.NewTicker(keepalive)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		if err := s.conn.SetWriteDeadline(time.Now().Add(grace)); err != nil {
			return err
		}
		return s.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case frame, ok := <-s.out:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // connection is going away
				return
			}
			if err := write(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
