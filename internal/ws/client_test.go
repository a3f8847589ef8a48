package ws_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelhq/easel/internal/board"
	"github.com/easelhq/easel/internal/protocol"
	"github.com/easelhq/easel/internal/registry"
	"github.com/easelhq/easel/internal/ws"
)

func setupServer(t *testing.T) (*httptest.Server, *registry.Manager) {
	t.Helper()
	manager := registry.NewManager(0)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.URL.Path, "/ws/")
		boardID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "bad board id", http.StatusBadRequest)
			return
		}
		ws.ServeWs(manager, w, r, boardID)
	}))
	t.Cleanup(server.Close)

	return server, manager
}

func dial(t *testing.T, server *httptest.Server, boardID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/" + boardID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg protocol.Message) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func read(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg protocol.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// Reads until a message of the wanted type arrives, skipping presence
// chatter from other connections.
func waitFor(t *testing.T, conn *websocket.Conn, want protocol.MessageType) protocol.Message {
	t.Helper()
	for i := 0; i < 20; i++ {
		msg := read(t, conn)
		if msg.Type == want {
			return msg
		}
	}
	t.Fatalf("no %s message within 20 reads", want)
	return protocol.Message{}
}

func testShape(creator uuid.UUID) board.Shape {
	now := time.Now().UTC()
	return board.Shape{
		ID:        uuid.New(),
		ShapeType: board.ShapeRectangle,
		Points:    []board.Point{{X: 0, Y: 0}, {X: 50, Y: 50}},
		Style:     board.DefaultShapeStyle(),
		CreatedBy: creator,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestFullSyncIsFirstMessage(t *testing.T) {
	server, manager := setupServer(t)
	user := uuid.New()
	boardID := manager.CreateBoard(uuid.New(), "test")
	require.NoError(t, manager.ApplyOperation(boardID, board.AddShape(testShape(user)), user))

	conn := dial(t, server, boardID)

	msg := read(t, conn)
	require.Equal(t, protocol.MsgFullSync, msg.Type)
	assert.Len(t, msg.Shapes, 1)
}

func TestUnknownBoardIsRejected(t *testing.T) {
	server, _ := setupServer(t)

	conn := dial(t, server, uuid.New())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation),
		"expected policy violation close, got %v", err)
}

func TestOperationBroadcastToAllClients(t *testing.T) {
	server, manager := setupServer(t)
	boardID := manager.CreateBoard(uuid.New(), "test")

	first := dial(t, server, boardID)
	waitFor(t, first, protocol.MsgFullSync)
	second := dial(t, server, boardID)
	waitFor(t, second, protocol.MsgFullSync)

	shape := testShape(uuid.New())
	send(t, first, protocol.Message{
		Type:      protocol.MsgOperation,
		Operation: &board.Operation{Type: board.OpAddShape, Shape: &shape},
	})

	for _, conn := range []*websocket.Conn{first, second} {
		msg := waitFor(t, conn, protocol.MsgOperation)
		require.NotNil(t, msg.Operation)
		assert.Equal(t, board.OpAddShape, msg.Operation.Type)
		assert.Equal(t, shape.ID, msg.Operation.Shape.ID)
	}
}

func TestUserJoinedAnnouncement(t *testing.T) {
	server, manager := setupServer(t)
	boardID := manager.CreateBoard(uuid.New(), "test")

	first := dial(t, server, boardID)
	waitFor(t, first, protocol.MsgFullSync)
	// A connection is announced to everyone, itself included
	waitFor(t, first, protocol.MsgUserJoined)

	dial(t, server, boardID)

	msg := waitFor(t, first, protocol.MsgUserJoined)
	require.NotNil(t, msg.UserID)
	assert.True(t, strings.HasPrefix(msg.Username, "User-"))
	require.NotNil(t, msg.Color)
	assert.GreaterOrEqual(t, msg.Color.R, uint8(55))
}

func TestRejectedOperationAnswersWithError(t *testing.T) {
	server, manager := setupServer(t)
	boardID := manager.CreateBoard(uuid.New(), "test")

	conn := dial(t, server, boardID)
	waitFor(t, conn, protocol.MsgFullSync)

	missing := uuid.New()
	send(t, conn, protocol.Message{
		Type:      protocol.MsgOperation,
		Operation: &board.Operation{Type: board.OpDeleteShape, ShapeID: &missing},
	})

	msg := waitFor(t, conn, protocol.MsgError)
	assert.Contains(t, msg.Message, "shape not found")
}

func TestMalformedMessageAnswersWithError(t *testing.T) {
	server, manager := setupServer(t)
	boardID := manager.CreateBoard(uuid.New(), "test")

	conn := dial(t, server, boardID)
	waitFor(t, conn, protocol.MsgFullSync)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	msg := waitFor(t, conn, protocol.MsgError)
	assert.Contains(t, msg.Message, "malformed")
}

func TestUndoOverSocket(t *testing.T) {
	server, manager := setupServer(t)
	boardID := manager.CreateBoard(uuid.New(), "test")

	conn := dial(t, server, boardID)
	waitFor(t, conn, protocol.MsgFullSync)

	shape := testShape(uuid.New())
	send(t, conn, protocol.Message{
		Type:      protocol.MsgOperation,
		Operation: &board.Operation{Type: board.OpAddShape, Shape: &shape},
	})
	waitFor(t, conn, protocol.MsgOperation)

	send(t, conn, protocol.Message{Type: protocol.MsgUndo})

	msg := waitFor(t, conn, protocol.MsgOperation)
	require.NotNil(t, msg.Operation)
	assert.Equal(t, board.OpDeleteShape, msg.Operation.Type)
	assert.Equal(t, shape.ID, *msg.Operation.ShapeID)
}

func TestCursorIdentityIsStampedServerSide(t *testing.T) {
	server, manager := setupServer(t)
	boardID := manager.CreateBoard(uuid.New(), "test")

	conn := dial(t, server, boardID)
	waitFor(t, conn, protocol.MsgFullSync)

	forged := uuid.New()
	send(t, conn, protocol.Message{
		Type: protocol.MsgCursorMove,
		Cursor: &board.CursorPosition{
			UserID:   forged,
			Username: "impostor",
			Position: board.Point{X: 7, Y: 8},
		},
	})

	msg := waitFor(t, conn, protocol.MsgCursorMove)
	require.NotNil(t, msg.Cursor)
	assert.Equal(t, board.Point{X: 7, Y: 8}, msg.Cursor.Position)
	assert.NotEqual(t, forged, msg.Cursor.UserID)
	assert.True(t, strings.HasPrefix(msg.Cursor.Username, "User-"))
}

func TestRequestSyncDeliversFreshSnapshot(t *testing.T) {
	server, manager := setupServer(t)
	boardID := manager.CreateBoard(uuid.New(), "test")

	conn := dial(t, server, boardID)
	waitFor(t, conn, protocol.MsgFullSync)

	shape := testShape(uuid.New())
	send(t, conn, protocol.Message{
		Type:      protocol.MsgOperation,
		Operation: &board.Operation{Type: board.OpAddShape, Shape: &shape},
	})
	waitFor(t, conn, protocol.MsgOperation)

	send(t, conn, protocol.Message{Type: protocol.MsgRequestSync})

	msg := waitFor(t, conn, protocol.MsgFullSync)
	require.Len(t, msg.Shapes, 1)
	assert.Equal(t, shape.ID, msg.Shapes[0].ID)
}

func TestDisconnectAnnouncesUserLeft(t *testing.T) {
	server, manager := setupServer(t)
	boardID := manager.CreateBoard(uuid.New(), "test")

	first := dial(t, server, boardID)
	waitFor(t, first, protocol.MsgFullSync)
	waitFor(t, first, protocol.MsgUserJoined) // own announcement

	second := dial(t, server, boardID)
	joined := waitFor(t, first, protocol.MsgUserJoined)
	second.Close()

	msg := waitFor(t, first, protocol.MsgUserLeft)
	require.NotNil(t, msg.UserID)
	assert.Equal(t, *joined.UserID, *msg.UserID)
}
