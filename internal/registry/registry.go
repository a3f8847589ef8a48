// Package registry owns every active whiteboard: its document state and the
// fanout channel that delivers applied changes to all connected clients of
// that board.
package registry

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/easelhq/easel/internal/board"
	"github.com/easelhq/easel/internal/protocol"
)

var ErrBoardNotFound = errors.New("whiteboard not found")

// Outbound buffer per subscriber. A consumer that falls this far behind
// starts missing messages and must issue a RequestSync to recover.
const subscriptionBuffer = 256

// Subscription is one consumer's receive handle on a board's fanout. It only
// observes messages sent after it was created; the initial FullSync is
// pre-queued so it is always the first message received.
type Subscription struct {
	mu     sync.Mutex
	ch     chan protocol.Message
	closed bool
}

func newSubscription() *Subscription {
	return &Subscription{ch: make(chan protocol.Message, subscriptionBuffer)}
}

// C is the channel the write pump drains. It is closed when the subscriber
// is removed or the board is deleted.
func (s *Subscription) C() <-chan protocol.Message {
	return s.ch
}

// Send queues a message for this subscriber without blocking. Returns false
// when the subscription is closed or its buffer is full (the message is
// dropped, not delayed).
func (s *Subscription) Send(msg protocol.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// One live whiteboard. The mutex serializes every mutation of the document
// together with the broadcast it produces, so all subscribers observe
// operations in exactly the order they were applied.
type boardEntry struct {
	mu          sync.Mutex
	state       *board.State
	subscribers map[*Subscription]struct{}
}

func (e *boardEntry) fanout(msg protocol.Message) {
	for sub := range e.subscribers {
		sub.Send(msg)
	}
}

// Metadata about a board, for the REST surface
type Info struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Name           string    `json:"name"`
	ShapeCount     int       `json:"shape_count"`
	ActiveUsers    int       `json:"active_users"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Manager is the registry of active whiteboards. It is injected into the
// connection-accept path and the REST handlers; there is no package-global
// instance. Boards are independent: the manager lock only guards the index,
// never a document.
type Manager struct {
	mu      sync.RWMutex
	boards  map[uuid.UUID]*boardEntry
	maxUndo int
}

func NewManager(maxUndoHistory int) *Manager {
	return &Manager{
		boards:  make(map[uuid.UUID]*boardEntry),
		maxUndo: maxUndoHistory,
	}
}

// CreateBoard allocates a new empty whiteboard bound to the given
// conversation and returns its id.
func (m *Manager) CreateBoard(conversationID uuid.UUID, name string) uuid.UUID {
	id := uuid.New()
	entry := &boardEntry{
		state:       board.NewState(id, conversationID, name, m.maxUndo),
		subscribers: make(map[*Subscription]struct{}),
	}

	m.mu.Lock()
	m.boards[id] = entry
	m.mu.Unlock()

	log.Printf("Created whiteboard %s (conversation %s)", id, conversationID)
	return id
}

func (m *Manager) entry(boardID uuid.UUID) (*boardEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.boards[boardID]
	if !ok {
		return nil, ErrBoardNotFound
	}
	return entry, nil
}

// Info returns metadata about a live board
func (m *Manager) Info(boardID uuid.UUID) (Info, error) {
	entry, err := m.entry(boardID)
	if err != nil {
		return Info{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return Info{
		ID:             entry.state.ID,
		ConversationID: entry.state.ConversationID,
		Name:           entry.state.Name,
		ShapeCount:     entry.state.ShapeCount(),
		ActiveUsers:    len(entry.subscribers),
		CreatedAt:      entry.state.CreatedAt,
		UpdatedAt:      entry.state.UpdatedAt,
	}, nil
}

// DeleteBoard destroys a board, closing every subscriber's channel
func (m *Manager) DeleteBoard(boardID uuid.UUID) bool {
	m.mu.Lock()
	entry, ok := m.boards[boardID]
	delete(m.boards, boardID)
	m.mu.Unlock()

	if !ok {
		return false
	}

	entry.mu.Lock()
	for sub := range entry.subscribers {
		sub.close()
	}
	entry.subscribers = make(map[*Subscription]struct{})
	entry.mu.Unlock()

	log.Printf("Deleted whiteboard %s", boardID)
	return true
}

// Subscribe registers a new receive handle on the board's fanout. The
// registration and the FullSync snapshot happen atomically under the board
// lock: the snapshot is pre-queued as the subscription's first message, so
// no delta can be duplicated in both the snapshot and the channel.
func (m *Manager) Subscribe(boardID uuid.UUID) (*Subscription, error) {
	entry, err := m.entry(boardID)
	if err != nil {
		return nil, err
	}

	sub := newSubscription()

	entry.mu.Lock()
	sub.Send(protocol.NewFullSync(entry.state.Snapshot()))
	entry.subscribers[sub] = struct{}{}
	entry.mu.Unlock()

	return sub, nil
}

// Unsubscribe removes a receive handle and closes its channel
func (m *Manager) Unsubscribe(boardID uuid.UUID, sub *Subscription) {
	entry, err := m.entry(boardID)
	if err != nil {
		// Board already deleted; the channel was closed with it
		return
	}

	entry.mu.Lock()
	delete(entry.subscribers, sub)
	entry.mu.Unlock()
	sub.close()
}

// Broadcast delivers a message to every subscriber of a board
func (m *Manager) Broadcast(boardID uuid.UUID, msg protocol.Message) error {
	entry, err := m.entry(boardID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	entry.fanout(msg)
	entry.mu.Unlock()
	return nil
}

// ApplyOperation applies a client operation to the board's document and, on
// success, broadcasts the forward operation to all subscribers. A failed
// operation never mutates state, never produces history and is never
// broadcast.
func (m *Manager) ApplyOperation(boardID uuid.UUID, op board.Operation, userID uuid.UUID) error {
	entry, err := m.entry(boardID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if _, err := entry.state.ApplyOperation(op, userID); err != nil {
		return err
	}
	entry.fanout(protocol.NewOperation(userID, op))
	return nil
}

// Undo reverses the user's most recent own edit and broadcasts the applied
// inverse as an Operation message. Returns the applied operation, or nil
// when the user has nothing to undo.
func (m *Manager) Undo(boardID uuid.UUID, userID uuid.UUID) (*board.Operation, error) {
	entry, err := m.entry(boardID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	op := entry.state.Undo(userID)
	if op != nil {
		entry.fanout(protocol.NewOperation(userID, *op))
	}
	return op, nil
}

// Redo replays the user's most recently undone edit and broadcasts it
func (m *Manager) Redo(boardID uuid.UUID, userID uuid.UUID) (*board.Operation, error) {
	entry, err := m.entry(boardID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	op := entry.state.Redo(userID)
	if op != nil {
		entry.fanout(protocol.NewOperation(userID, *op))
	}
	return op, nil
}

// UpdateCursor records a user's cursor position and broadcasts it
func (m *Manager) UpdateCursor(boardID uuid.UUID, cursor board.CursorPosition) error {
	entry, err := m.entry(boardID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	entry.state.UpdateCursor(cursor)
	entry.fanout(protocol.NewCursorMove(cursor))
	entry.mu.Unlock()
	return nil
}

// SetSelection records a user's selection and broadcasts it
func (m *Manager) SetSelection(boardID uuid.UUID, selection board.Selection) error {
	entry, err := m.entry(boardID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	entry.state.SetSelection(selection)
	entry.fanout(protocol.NewSelect(selection))
	entry.mu.Unlock()
	return nil
}

// ClearSelection drops a user's selection and broadcasts the deselect
func (m *Manager) ClearSelection(boardID uuid.UUID, userID uuid.UUID) error {
	entry, err := m.entry(boardID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	entry.state.ClearSelection(userID)
	entry.fanout(protocol.NewDeselect(userID))
	entry.mu.Unlock()
	return nil
}

// BroadcastSync sends a fresh FullSync snapshot to every subscriber
func (m *Manager) BroadcastSync(boardID uuid.UUID) error {
	entry, err := m.entry(boardID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	entry.fanout(protocol.NewFullSync(entry.state.Snapshot()))
	entry.mu.Unlock()
	return nil
}

// UserJoin announces a new participant to every subscriber
func (m *Manager) UserJoin(boardID uuid.UUID, userID uuid.UUID, username string, color board.Color) error {
	return m.Broadcast(boardID, protocol.NewUserJoined(userID, username, color))
}

// UserLeave removes the user's presence (cursor and selection) and
// broadcasts the departure in the same state transition.
func (m *Manager) UserLeave(boardID uuid.UUID, userID uuid.UUID) {
	entry, err := m.entry(boardID)
	if err != nil {
		return
	}

	entry.mu.Lock()
	entry.state.RemoveCursor(userID)
	entry.state.ClearSelection(userID)
	entry.fanout(protocol.NewUserLeft(userID))
	entry.mu.Unlock()
}

// Snapshot returns a copy of the board's current content together with its
// metadata, for export and sync endpoints.
func (m *Manager) Snapshot(boardID uuid.UUID) (board.Snapshot, Info, error) {
	entry, err := m.entry(boardID)
	if err != nil {
		return board.Snapshot{}, Info{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	snap := entry.state.Snapshot()
	info := Info{
		ID:             entry.state.ID,
		ConversationID: entry.state.ConversationID,
		Name:           entry.state.Name,
		ShapeCount:     entry.state.ShapeCount(),
		ActiveUsers:    len(entry.subscribers),
		CreatedAt:      entry.state.CreatedAt,
		UpdatedAt:      entry.state.UpdatedAt,
	}
	return snap, info, nil
}

// Stats for the REST surface

func (m *Manager) BoardCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.boards)
}

func (m *Manager) ClientCount() int {
	m.mu.RLock()
	entries := make([]*boardEntry, 0, len(m.boards))
	for _, entry := range m.boards {
		entries = append(entries, entry)
	}
	m.mu.RUnlock()

	total := 0
	for _, entry := range entries {
		entry.mu.Lock()
		total += len(entry.subscribers)
		entry.mu.Unlock()
	}
	return total
}

func (m *Manager) ShapeCount() int {
	m.mu.RLock()
	entries := make([]*boardEntry, 0, len(m.boards))
	for _, entry := range m.boards {
		entries = append(entries, entry)
	}
	m.mu.RUnlock()

	total := 0
	for _, entry := range entries {
		entry.mu.Lock()
		total += entry.state.ShapeCount()
		entry.mu.Unlock()
	}
	return total
}

// ListBoards returns metadata for every live board
func (m *Manager) ListBoards() []Info {
	m.mu.RLock()
	entries := make([]*boardEntry, 0, len(m.boards))
	for _, entry := range m.boards {
		entries = append(entries, entry)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		infos = append(infos, Info{
			ID:             entry.state.ID,
			ConversationID: entry.state.ConversationID,
			Name:           entry.state.Name,
			ShapeCount:     entry.state.ShapeCount(),
			ActiveUsers:    len(entry.subscribers),
			CreatedAt:      entry.state.CreatedAt,
			UpdatedAt:      entry.state.UpdatedAt,
		})
		entry.mu.Unlock()
	}
	return infos
}
