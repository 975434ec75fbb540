package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"grimm.is/headmod/internal/events"
	"grimm.is/headmod/internal/logging"
	"grimm.is/headmod/internal/metrics"
	"grimm.is/headmod/internal/syncer"
)

// WSMessage is a topic-based message sent to clients
type WSMessage struct {
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

// wsClient represents a connected WebSocket client with subscriptions
type wsClient struct {
	conn   *websocket.Conn
	topics map[string]bool
	send   chan []byte
}

// WSManager handles websocket connections with topic-based pub/sub. It is
// also the syncer's Messenger: rule-id and rule-error deltas are pushed to
// connected UI sessions, and when no session is connected the push reports
// ErrNoReceiver so the syncer falls back to the persisted copies.
type WSManager struct {
	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
	logger     *logging.Logger
}

func NewWSManager(extraOrigins []string, logger *logging.Logger) *WSManager {
	m := &WSManager{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		logger:     logger.WithComponent("ws"),
	}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(extraOrigins),
	}
	go m.run()
	return m
}

// originChecker enforces same-origin on upgrades, with localhost and
// configured origins allowed.
func originChecker(extra []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		if strings.Contains(origin, "://localhost:") || strings.Contains(origin, "://127.0.0.1:") {
			return true
		}
		for _, o := range extra {
			if origin == o {
				return true
			}
		}

		host := r.Host
		if rest, ok := strings.CutPrefix(origin, "http://"); ok {
			return rest == host
		}
		if rest, ok := strings.CutPrefix(origin, "https://"); ok {
			return rest == host
		}
		return false
	}
}

func (m *WSManager) run() {
	for {
		select {
		case client := <-m.register:
			m.mutex.Lock()
			m.clients[client] = true
			metrics.Get().Sessions.Set(float64(len(m.clients)))
			m.mutex.Unlock()
		case client := <-m.unregister:
			m.mutex.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
				client.conn.Close()
			}
			metrics.Get().Sessions.Set(float64(len(m.clients)))
			m.mutex.Unlock()
		}
	}
}

// Publish sends a message to all clients subscribed to the given topic.
// The "status" topic is delivered to every client regardless of
// subscriptions.
func (m *WSManager) Publish(topic string, data any) {
	msg := WSMessage{Topic: topic, Data: data}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for client := range m.clients {
		if topic == "status" || client.topics[topic] {
			select {
			case client.send <- msgBytes:
			default:
				// Client buffer full, skip
			}
		}
	}
}

// SessionCount reports the number of connected clients.
func (m *WSManager) SessionCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// ruleIDsPayload mirrors the persisted rule-id bucket over the wire.
type ruleIDsPayload struct {
	Upserts map[string]int `json:"upserts,omitempty"`
	Deletes []string       `json:"deletes,omitempty"`
}

// ruleErrorsPayload mirrors the persisted rule-error bucket over the wire.
type ruleErrorsPayload struct {
	Upserts map[string]string `json:"upserts,omitempty"`
	Deletes []string          `json:"deletes,omitempty"`
}

// NotifyRuleIDs implements syncer.Messenger.
func (m *WSManager) NotifyRuleIDs(_ context.Context, upserts map[uuid.UUID]int, deletes []uuid.UUID) error {
	if m.SessionCount() == 0 {
		return syncer.ErrNoReceiver
	}
	p := ruleIDsPayload{Upserts: make(map[string]int, len(upserts))}
	for pid, rid := range upserts {
		p.Upserts[pid.String()] = rid
	}
	for _, pid := range deletes {
		p.Deletes = append(p.Deletes, pid.String())
	}
	m.Publish("rule_ids", p)
	return nil
}

// NotifyRuleErrors implements syncer.Messenger.
func (m *WSManager) NotifyRuleErrors(_ context.Context, upserts map[uuid.UUID]string, deletes []uuid.UUID) error {
	if m.SessionCount() == 0 {
		return syncer.ErrNoReceiver
	}
	p := ruleErrorsPayload{Upserts: make(map[string]string, len(upserts))}
	for pid, msg := range upserts {
		p.Upserts[pid.String()] = msg
	}
	for _, pid := range deletes {
		p.Deletes = append(p.Deletes, pid.String())
	}
	m.Publish("rule_errors", p)
	return nil
}

// NotifyUnregisterAll implements syncer.Messenger.
func (m *WSManager) NotifyUnregisterAll(context.Context) error {
	if m.SessionCount() == 0 {
		return syncer.ErrNoReceiver
	}
	m.Publish("rule_ids", ruleIDsPayload{})
	m.Publish("unregister_all", struct{}{})
	return nil
}

// ForwardEvents relays hub events to subscribed clients until the context
// is cancelled.
func (m *WSManager) ForwardEvents(ctx context.Context, hub *events.Hub) {
	ch := hub.Subscribe(64,
		events.EventProfilesChanged,
		events.EventSelectionChanged,
		events.EventPowerChanged,
		events.EventRulesSynced,
		events.EventRulesError,
	)
	defer hub.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			m.Publish(string(ev.Type), ev)
		}
	}
}

// readPump handles incoming messages from a client (subscriptions)
func (c *wsClient) readPump(m *WSManager) {
	defer func() {
		m.unregister <- c
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg struct {
			Action string   `json:"action"`
			Topics []string `json:"topics"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Action {
		case "subscribe":
			for _, topic := range msg.Topics {
				c.topics[topic] = true
			}
		case "unsubscribe":
			for _, topic := range msg.Topics {
				delete(c.topics, topic)
			}
		}
	}
}

// writePump sends messages to the client
func (c *wsClient) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
}

// handleWS upgrades the connection and starts the client pumps.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsManager.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		conn:   conn,
		topics: make(map[string]bool),
		send:   make(chan []byte, 256),
	}

	s.wsManager.register <- client

	go client.writePump()
	go client.readPump(s.wsManager)
}
