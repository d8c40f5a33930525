package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced at the HTTP layer
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinPolicy decides whether userID may join group.
type JoinPolicy func(ctx context.Context, userID uuid.UUID, group string) bool

// DefaultGroups returns the groups a user joins on connect (their own id plus entitled broadcast groups).
type DefaultGroups func(ctx context.Context, userID uuid.UUID) []string

// Client represents a single WebSocket connection.
type Client struct {
	ID     string
	UserID uuid.UUID
	hub    *Hub
	conn   *websocket.Conn
	send   chan WSMessage
	logger *zap.Logger

	gmu    sync.Mutex
	groups map[string]struct{}
}

func newClient(hub *Hub, userID uuid.UUID, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan WSMessage, 256),
		logger: logger,
		groups: make(map[string]struct{}),
	}
}

func (c *Client) addGroup(g string) {
	c.gmu.Lock()
	c.groups[g] = struct{}{}
	c.gmu.Unlock()
}

func (c *Client) removeGroup(g string) {
	c.gmu.Lock()
	delete(c.groups, g)
	c.gmu.Unlock()
}

// Groups returns the groups the client is currently in.
func (c *Client) Groups() []string {
	c.gmu.Lock()
	defer c.gmu.Unlock()
	out := make([]string, 0, len(c.groups))
	for g := range c.groups {
		out = append(out, g)
	}
	return out
}

// ServeWs handles the WebSocket upgrade and runs the client loop.
// The token travels in the query string since browsers cannot set headers on upgrade.
func ServeWs(hub *Hub, logger *zap.Logger, validate func(token string) (uuid.UUID, error), defaults DefaultGroups, policy JoinPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		userID, err := validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := newClient(hub, userID, conn, logger)
		ctx := context.Background()
		for _, g := range defaults(ctx, userID) {
			hub.Join(client, g)
		}
		go client.writePump()
		client.readPump(policy)
	}
}

type groupRequest struct {
	Group string `json:"group"`
}

func (c *Client) readPump(policy JoinPolicy) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		var req groupRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.Group == "" {
			continue
		}
		switch msg.Event {
		case "join":
			if policy != nil && !policy(context.Background(), c.UserID, req.Group) {
				c.reply("join_denied", req)
				continue
			}
			c.hub.Join(c, req.Group)
			c.reply("joined", req)
		case "leave":
			c.hub.Leave(c, req.Group)
		default:
			// ignore
		}
	}
}

func (c *Client) reply(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
