// Package protocol defines the JSON wire messages exchanged with whiteboard
// clients. Every message is a tagged union: the "type" field selects the
// variant and the remaining fields carry that variant's payload.
package protocol

import (
	"github.com/google/uuid"

	"github.com/easelhq/easel/internal/board"
)

type MessageType string

const (
	MsgJoin        MessageType = "Join"
	MsgLeave       MessageType = "Leave"
	MsgOperation   MessageType = "Operation"
	MsgCursorMove  MessageType = "CursorMove"
	MsgSelect      MessageType = "Select"
	MsgDeselect    MessageType = "Deselect"
	MsgUndo        MessageType = "Undo"
	MsgRedo        MessageType = "Redo"
	MsgRequestSync MessageType = "RequestSync"
	MsgFullSync    MessageType = "FullSync"
	MsgPing        MessageType = "Ping"
	MsgPong        MessageType = "Pong"
	MsgError       MessageType = "Error"
	MsgUserJoined  MessageType = "UserJoined"
	MsgUserLeft    MessageType = "UserLeft"
)

type Message struct {
	Type       MessageType            `json:"type"`
	UserID     *uuid.UUID             `json:"user_id,omitempty"`
	Username   string                 `json:"username,omitempty"`
	Color      *board.Color           `json:"color,omitempty"`
	Operation  *board.Operation       `json:"operation,omitempty"`
	Cursor     *board.CursorPosition  `json:"cursor,omitempty"`
	Selection  *board.Selection       `json:"selection,omitempty"`
	Shapes     []board.Shape          `json:"shapes,omitempty"`
	Cursors    []board.CursorPosition `json:"cursors,omitempty"`
	Selections []board.Selection      `json:"selections,omitempty"`
	Message    string                 `json:"message,omitempty"`
}

func NewOperation(userID uuid.UUID, op board.Operation) Message {
	return Message{Type: MsgOperation, UserID: &userID, Operation: &op}
}

func NewCursorMove(cursor board.CursorPosition) Message {
	return Message{Type: MsgCursorMove, Cursor: &cursor}
}

func NewSelect(selection board.Selection) Message {
	return Message{Type: MsgSelect, Selection: &selection}
}

func NewDeselect(userID uuid.UUID) Message {
	return Message{Type: MsgDeselect, UserID: &userID}
}

func NewFullSync(snap board.Snapshot) Message {
	return Message{
		Type:       MsgFullSync,
		Shapes:     snap.Shapes,
		Cursors:    snap.Cursors,
		Selections: snap.Selections,
	}
}

func NewPong() Message {
	return Message{Type: MsgPong}
}

func NewError(message string) Message {
	return Message{Type: MsgError, Message: message}
}

func NewUserJoined(userID uuid.UUID, username string, color board.Color) Message {
	return Message{Type: MsgUserJoined, UserID: &userID, Username: username, Color: &color}
}

func NewUserLeft(userID uuid.UUID) Message {
	return Message{Type: MsgUserLeft, UserID: &userID}
}
