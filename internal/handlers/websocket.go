package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"shellgame-backend/internal/models"
	"shellgame-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler pushes round and balance updates to the connected
// presentation layer. It satisfies services.Broadcaster so the engine
// can notify without knowing about websockets.
type WebSocketHandler struct {
	engine  *services.GameEngine
	wallets *services.WalletManager
	hub     *WebSocketHub
}

type WebSocketHub struct {
	clients    map[string]*websocket.Conn
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
}

type Client struct {
	Address string
	Conn    *websocket.Conn
}

type Message struct {
	Type    string      `json:"type"`
	Address string      `json:"address,omitempty"`
	RoundID string      `json:"round_id,omitempty"`
	Data    interface{} `json:"data"`
}

func NewWebSocketHandler(engine *services.GameEngine, wallets *services.WalletManager) *WebSocketHandler {
	hub := &WebSocketHub{
		clients:    make(map[string]*websocket.Conn),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 100),
	}

	go hub.run()

	return &WebSocketHandler{
		engine:  engine,
		wallets: wallets,
		hub:     hub,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	address := c.GetString("address")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &Client{
		Address: address,
		Conn:    conn,
	}

	h.hub.register <- client

	defer func() {
		h.hub.unregister <- client
		conn.Close()
	}()

	h.sendSnapshot(client)

	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		h.handleMessage(client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(client *Client, msg *Message) {
	switch msg.Type {
	case "PING":
		h.sendPong(client)
	case "SYNC":
		// Client asks for a fresh snapshot after a reconnect.
		h.sendSnapshot(client)
	}
}

// sendSnapshot replays the current session balance and in-flight round
// so a freshly attached client renders the live state.
func (h *WebSocketHandler) sendSnapshot(client *Client) {
	if session := h.wallets.Session(); session != nil && session.Address == client.Address {
		client.Conn.WriteJSON(Message{
			Type: "BALANCE_UPDATE",
			Data: gin.H{
				"balance":       session.Balance,
				"balance_known": session.BalanceKnown,
			},
		})
	}

	if round := h.engine.CurrentRound(); round != nil && round.Address == client.Address {
		client.Conn.WriteJSON(Message{
			Type:    "ROUND_UPDATE",
			RoundID: round.ID,
			Data:    round,
		})
	}
}

func (h *WebSocketHandler) sendPong(client *Client) {
	msg := Message{
		Type: "PONG",
		Data: gin.H{
			"timestamp": time.Now().Unix(),
		},
	}

	client.Conn.WriteJSON(msg)
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			hub.clients[client.Address] = client.Conn
			log.Printf("Client registered: %s", client.Address)

		case client := <-hub.unregister:
			if _, ok := hub.clients[client.Address]; ok {
				delete(hub.clients, client.Address)
				log.Printf("Client unregistered: %s", client.Address)
			}

		case message := <-hub.broadcast:
			hub.broadcastMessage(message)
		}
	}
}

func (hub *WebSocketHub) broadcastMessage(message *Message) {
	if message.Address != "" {
		if conn, ok := hub.clients[message.Address]; ok {
			conn.WriteJSON(message)
		}
	} else {
		for _, conn := range hub.clients {
			conn.WriteJSON(message)
		}
	}
}

// BroadcastRoundUpdate implements services.Broadcaster.
func (h *WebSocketHandler) BroadcastRoundUpdate(address string, round *models.GameRound) {
	msg := &Message{
		Type:    "ROUND_UPDATE",
		Address: address,
		RoundID: round.ID,
		Data:    round,
	}

	h.hub.broadcast <- msg
}

// BroadcastBalance implements services.Broadcaster.
func (h *WebSocketHandler) BroadcastBalance(address string, balance uint64, known bool) {
	msg := &Message{
		Type:    "BALANCE_UPDATE",
		Address: address,
		Data: gin.H{
			"balance":       balance,
			"balance_known": known,
		},
	}

	h.hub.broadcast <- msg
}
