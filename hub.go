package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WSMessage represents a message from the client
type WSMessage struct {
	Action      string          `json:"action"`
	InterruptID string          `json:"interrupt_id,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
}

// HubEvent is every message the server pushes to clients.
type HubEvent struct {
	Type       string            `json:"type"`
	Phase      Phase             `json:"phase,omitempty"`
	Round      int               `json:"round,omitempty"`
	PlayerID   string            `json:"player_id,omitempty"`
	PlayerIDs  []string          `json:"player_ids,omitempty"`
	Cause      EliminationCause  `json:"cause,omitempty"`
	Tally      map[string]int    `json:"tally,omitempty"`
	Eliminated string            `json:"eliminated,omitempty"`
	Text       string            `json:"text,omitempty"`
	Winner     Faction           `json:"winner,omitempty"`
	Role       Role              `json:"role,omitempty"`
	Team       []PlayerRef       `json:"team,omitempty"`
	Interrupt  *InterruptPayload `json:"interrupt,omitempty"`
	Level      string            `json:"level,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// Client represents a websocket connection, bound to a participant or spectating.
type Client struct {
	conn     *websocket.Conn
	playerID string     // empty for spectators
	writeMu  sync.Mutex // Serialize writes to WebSocket (required by gorilla/websocket)
}

func (c *Client) write(message []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// send writes ev to this connection only.
func (c *Client) send(ev HubEvent) {
	data := encodeEvent(ev)
	if data == nil {
		return
	}
	LogWSMessage("OUT", c.playerID, string(data))
	if err := c.write(data); err != nil {
		log.Printf("WebSocket write error to player %q: %v", c.playerID, err)
	}
}

// WebSocket hub for broadcasting updates to all connected clients
type Hub struct {
	clients    map[*websocket.Conn]*Client
	broadcast  chan []byte
	register   chan *Client
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	done       chan struct{}
	wg         sync.WaitGroup

	// onConnect runs on the hub goroutine after a client registers; it must
	// write to the client directly, never through Broadcast.
	onConnect func(*Client)
	// onMessage runs on the client's read goroutine.
	onMessage func(*Client, WSMessage)
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn, 64),
		done:       make(chan struct{}),
	}
}

// stop signals the hub goroutine to exit and waits for it to finish
func (h *Hub) stop() {
	close(h.done)
	h.wg.Wait()
}

func encodeEvent(ev HubEvent) []byte {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("WebSocket encode error for %s: %v", ev.Type, err)
		return nil
	}
	return data
}

// Broadcast queues ev for every connected client.
func (h *Hub) Broadcast(ev HubEvent) {
	data := encodeEvent(ev)
	if data == nil {
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

func (h *Hub) sendToPlayer(playerID string, ev HubEvent) {
	if playerID == "" {
		return
	}
	data := encodeEvent(ev)
	if data == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.playerID != playerID {
			continue
		}
		LogWSMessage("OUT", playerID, string(data))
		if err := client.write(data); err != nil {
			log.Printf("WebSocket write error to player %s: %v", playerID, err)
		}
	}
}

func (h *Hub) run() {
	h.wg.Add(1)
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
			}
			clear(h.clients)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected (player %q). Total: %d", client.playerID, total)
			if h.onConnect != nil {
				h.onConnect(client)
			}

		case conn := <-h.unregister:
			h.mu.Lock()
			if client, ok := h.clients[conn]; ok {
				DebugLog("hub.unregister", "Player %q disconnected", client.playerID)
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected. Total: %d", total)

		case message := <-h.broadcast:
			LogWSMessage("OUT", "*", string(message))
			h.mu.Lock()
			for conn, client := range h.clients {
				if err := client.write(message); err != nil {
					log.Printf("WebSocket write error: %v", err)
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// serveWS upgrades the request and binds the connection to playerID.
func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request, playerID string) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error for player %q: %v", playerID, err)
		return
	}

	client := &Client{conn: conn, playerID: playerID}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				break
			}
			LogWSMessage("IN", client.playerID, string(message))
			var msg WSMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				log.Printf("WebSocket unmarshal error for player %q: %v", client.playerID, err)
				sendErrorToast(client, "Malformed message")
				continue
			}
			if h.onMessage != nil {
				h.onMessage(client, msg)
			}
		}
	}()
}

// hubSink pushes the game lifecycle to connected clients.
type hubSink struct {
	hub *Hub
}

func (s *hubSink) PhaseChanged(phase Phase, round int) {
	s.hub.Broadcast(HubEvent{Type: "phase", Phase: phase, Round: round})
}

func (s *hubSink) NightDeaths(ids []string) {
	s.hub.Broadcast(HubEvent{Type: "night_deaths", PlayerIDs: ids})
}

func (s *hubSink) PlayerEliminated(id string, cause EliminationCause) {
	s.hub.Broadcast(HubEvent{Type: "eliminated", PlayerID: id, Cause: cause})
}

func (s *hubSink) HunterTriggered(id string) {
	s.hub.Broadcast(HubEvent{Type: "hunter", PlayerID: id})
}

func (s *hubSink) VoteResults(tally map[string]int, eliminated string) {
	s.hub.Broadcast(HubEvent{Type: "vote_results", Tally: tally, Eliminated: eliminated})
}

func (s *hubSink) DeathCheckpoint(id string) {
	s.hub.sendToPlayer(id, HubEvent{Type: "death_checkpoint", PlayerID: id})
}

func (s *hubSink) SpeechChunk(playerID, chunk string) {
	s.hub.Broadcast(HubEvent{Type: "speech_chunk", PlayerID: playerID, Text: chunk})
}

func (s *hubSink) Speech(playerID, text string) {
	s.hub.Broadcast(HubEvent{Type: "speech", PlayerID: playerID, Text: text})
}

func (s *hubSink) GameEnded(winner Faction) {
	s.hub.Broadcast(HubEvent{Type: "game_ended", Winner: winner})
}

func (s *hubSink) GameError(err error) {
	s.hub.Broadcast(HubEvent{Type: "game_error", Level: "error", Message: err.Error()})
}

// notifyInterrupt delivers a pending decision to its player. Daytime turns are also announced,
// without the kind; a night turn would reveal the player's role.
func (h *Hub) notifyInterrupt(p InterruptPayload) {
	h.sendToPlayer(p.PlayerID, HubEvent{Type: "interrupt", Interrupt: &p})
	if p.Kind.public() {
		h.Broadcast(HubEvent{Type: "waiting", PlayerID: p.PlayerID})
	}
}
