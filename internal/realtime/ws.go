package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/devroom-labs/devroom-backend/internal/auth"
	"github.com/devroom-labs/devroom-backend/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// Inbound receives every message a participant sends into a room. The
// collaboration registry implements it.
type Inbound interface {
	HandleMessage(ctx context.Context, msg Message)
}

// WSHandler upgrades /ws connections and bridges them onto the hub.
type WSHandler struct {
	hub      *Hub
	inbound  Inbound
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub, inbound Inbound) *WSHandler {
	return &WSHandler{
		hub:     hub,
		inbound: inbound,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Cross-origin policy is enforced by the CORS layer; the
			// upgrade itself accepts any origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles one persistent connection. The first join is implicit in the
// projectId query parameter; explicit {type:"join"} frames are accepted and
// idempotent.
func (h *WSHandler) Serve(c *gin.Context) {
	projectID := c.Query("projectId")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "projectId is required"})
		return
	}

	subscriberID := auth.UserDBID(c)
	if subscriberID == "" {
		subscriberID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logging.ForProject(projectID).LogError("ws_upgrade", err)
		return
	}

	sub := NewSubscriber(subscriberID, 64)
	h.hub.Join(projectID, sub)

	done := make(chan struct{})
	go h.writePump(conn, sub, done)

	h.readPump(conn, projectID, sub)

	close(done)
	h.hub.Leave(projectID, sub)
	_ = conn.Close()
}

func (h *WSHandler) readPump(conn *websocket.Conn, projectID string, sub *Subscriber) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.ForProject(projectID).LogError("ws_read", err)
			}
			return
		}

		switch msg.Type {
		case "join":
			// Idempotent per connection.
			h.hub.Join(projectID, sub)
		case "leave":
			h.hub.Leave(projectID, sub)
		default:
			msg.ProjectID = projectID
			if msg.Type == "" {
				msg.Type = TypeProjectMessage
			}
			// Detached context: an in-flight AI call must outlive the
			// connection that triggered it.
			h.inbound.HandleMessage(context.Background(), msg)
		}
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, sub *Subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case msg := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
