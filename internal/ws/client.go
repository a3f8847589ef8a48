package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/easelhq/easel/internal/board"
	"github.com/easelhq/easel/internal/protocol"
	"github.com/easelhq/easel/internal/registry"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 256 * 1024
	messagesPerSecond = 100
	messageBurst      = 200
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one socket attached to one whiteboard. Its identity is ephemeral
// and lives exactly as long as the connection.
type Client struct {
	manager  *registry.Manager
	conn     *websocket.Conn
	sub      *registry.Subscription
	boardID  uuid.UUID
	userID   uuid.UUID
	username string
	color    board.Color
	limiter  *rate.Limiter
}

// ServeWs upgrades the request and attaches the socket to a whiteboard. The
// subscription pre-queues a FullSync snapshot, so the client always receives
// the full document before any delta. If the board does not exist the socket
// is closed right after the upgrade.
func ServeWs(manager *registry.Manager, w http.ResponseWriter, r *http.Request, boardID uuid.UUID) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	sub, err := manager.Subscribe(boardID)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "whiteboard not found"))
		conn.Close()
		return
	}

	userID := uuid.New()
	client := &Client{
		manager:  manager,
		conn:     conn,
		sub:      sub,
		boardID:  boardID,
		userID:   userID,
		username: "User-" + userID.String()[:8],
		color:    colorFor(userID),
		limiter:  rate.NewLimiter(rate.Limit(messagesPerSecond), messageBurst),
	}

	manager.UserJoin(boardID, client.userID, client.username, client.color)
	log.Printf("Client %s joined whiteboard %s", client.userID, boardID)

	go client.writePump()
	go client.readPump()
}

// Derives a stable display color from the connection's ephemeral id, keeping
// every channel out of the near-black range.
func colorFor(id uuid.UUID) board.Color {
	return board.Color{
		R: 55 + id[0]%200,
		G: 55 + id[1]%200,
		B: 55 + id[2]%200,
		A: 1.0,
	}
}

func (c *Client) readPump() {
	defer func() {
		c.manager.UserLeave(c.boardID, c.userID)
		c.manager.Unsubscribe(c.boardID, c.sub)
		c.conn.Close()
		log.Printf("Client %s left whiteboard %s", c.userID, c.boardID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	rateLimitWarnings := 0

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for client %s: %v", c.userID, err)
			}
			break
		}

		if !c.limiter.Allow() {
			rateLimitWarnings++
			if rateLimitWarnings%100 == 1 {
				log.Printf("Rate limit exceeded for client %s on whiteboard %s (warning #%d)",
					c.userID, c.boardID, rateLimitWarnings)
			}
			if rateLimitWarnings > 1000 {
				log.Printf("Disconnecting client %s for excessive rate limit violations", c.userID)
				return
			}
			continue
		}

		var msg protocol.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			// Answered rather than silently dropped, so the sender can tell
			// "rejected" from "lost"
			c.sendError(fmt.Sprintf("malformed message: %v", err))
			continue
		}

		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg protocol.Message) {
	switch msg.Type {
	case protocol.MsgOperation:
		if msg.Operation == nil {
			c.sendError("operation message carries no operation")
			return
		}
		if err := c.manager.ApplyOperation(c.boardID, *msg.Operation, c.userID); err != nil {
			log.Printf("Rejected %s on whiteboard %s from %s: %v",
				msg.Operation.Type, c.boardID, c.userID, err)
			c.sendError(err.Error())
		}

	case protocol.MsgCursorMove:
		if msg.Cursor == nil {
			c.sendError("cursor message carries no cursor")
			return
		}
		// Identity fields are stamped server-side; a client cannot move
		// another user's cursor
		cursor := *msg.Cursor
		cursor.UserID = c.userID
		cursor.Username = c.username
		cursor.Color = c.color
		cursor.LastUpdate = time.Now().UTC()
		c.manager.UpdateCursor(c.boardID, cursor)

	case protocol.MsgUndo:
		if _, err := c.manager.Undo(c.boardID, c.userID); err != nil {
			c.sendError(err.Error())
		}

	case protocol.MsgRedo:
		if _, err := c.manager.Redo(c.boardID, c.userID); err != nil {
			c.sendError(err.Error())
		}

	case protocol.MsgSelect:
		if msg.Selection == nil {
			c.sendError("select message carries no selection")
			return
		}
		selection := *msg.Selection
		selection.UserID = c.userID
		c.manager.SetSelection(c.boardID, selection)

	case protocol.MsgDeselect:
		c.manager.ClearSelection(c.boardID, c.userID)

	case protocol.MsgRequestSync:
		c.manager.BroadcastSync(c.boardID)

	case protocol.MsgPing:
		c.manager.Broadcast(c.boardID, protocol.NewPong())

	case protocol.MsgJoin, protocol.MsgLeave:
		// Joining and leaving are tied to the socket lifecycle, not to
		// explicit messages

	case protocol.MsgPong:
		// Keepalive reply, nothing to do

	default:
		c.sendError(fmt.Sprintf("unsupported message type: %q", msg.Type))
	}
}

// Queues an Error message on this connection only
func (c *Client) sendError(message string) {
	c.sub.Send(protocol.NewError(message))
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sub.C():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Failed to marshal %s message: %v", msg.Type, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
