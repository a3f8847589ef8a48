package board

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	ErrShapeNotFound    = errors.New("shape not found")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrUnknownOperation = errors.New("unknown operation type")
)

// Entries older than this are evicted from the front of the undo stack
const DefaultMaxUndoHistory = 100

// One step of a user's history: the operation as it was applied and the
// operation that exactly reverses it.
type HistoryEntry struct {
	ID        uuid.UUID
	Forward   Operation
	Inverse   Operation
	UserID    uuid.UUID
	Timestamp time.Time
}

// A point-in-time copy of everything a newly joined client needs
type Snapshot struct {
	Shapes     []Shape
	Cursors    []CursorPosition
	Selections []Selection
}

// State is the document of a single whiteboard: its shapes, presence maps
// and per-user undo/redo history. It is not safe for concurrent use; the
// registry serializes all access behind a per-board lock.
type State struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Name           string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	shapes     map[uuid.UUID]*Shape
	cursors    map[uuid.UUID]CursorPosition
	selections map[uuid.UUID]Selection
	undoStack  []HistoryEntry
	redoStack  []HistoryEntry
	maxUndo    int
	nextZIndex int
}

func NewState(id, conversationID uuid.UUID, name string, maxUndo int) *State {
	if maxUndo <= 0 {
		maxUndo = DefaultMaxUndoHistory
	}
	now := time.Now().UTC()
	return &State{
		ID:             id,
		ConversationID: conversationID,
		Name:           name,
		CreatedAt:      now,
		UpdatedAt:      now,
		shapes:         make(map[uuid.UUID]*Shape),
		cursors:        make(map[uuid.UUID]CursorPosition),
		selections:     make(map[uuid.UUID]Selection),
		maxUndo:        maxUndo,
	}
}

// ApplyOperation computes the inverse of op against the current state,
// applies op, and records a history entry for the acting user. The returned
// inverse is kept for history only; callers broadcast the forward operation.
// A nil inverse with a nil error means the operation applied but is not
// undoable (Clear, Group/Ungroup).
func (s *State) ApplyOperation(op Operation, userID uuid.UUID) (*Operation, error) {
	inverse, err := s.invert(op)
	if err != nil {
		return nil, err
	}

	forward := s.apply(op)
	s.UpdatedAt = time.Now().UTC()

	if inverse != nil {
		s.undoStack = append(s.undoStack, HistoryEntry{
			ID:        uuid.New(),
			Forward:   forward,
			Inverse:   *inverse,
			UserID:    userID,
			Timestamp: s.UpdatedAt,
		})
		if len(s.undoStack) > s.maxUndo {
			s.undoStack = s.undoStack[len(s.undoStack)-s.maxUndo:]
		}
		// Linear history: any new forward operation invalidates redo
		s.redoStack = s.redoStack[:0]
	}

	return inverse, nil
}

// Computes the operation that reverses op against the current state. Must be
// called before op is applied. Returns nil for operations that are accepted
// but not undoable.
func (s *State) invert(op Operation) (*Operation, error) {
	switch op.Type {
	case OpAddShape:
		if op.Shape == nil || len(op.Shape.Points) == 0 {
			return nil, ErrInvalidOperation
		}
		inv := DeleteShape(op.Shape.ID)
		return &inv, nil

	case OpUpdateShape:
		if op.Shape == nil {
			return nil, ErrInvalidOperation
		}
		old, ok := s.shapes[op.Shape.ID]
		if !ok {
			return nil, ErrShapeNotFound
		}
		inv := UpdateShape(old.Clone())
		return &inv, nil

	case OpDeleteShape:
		if op.ShapeID == nil {
			return nil, ErrInvalidOperation
		}
		old, ok := s.shapes[*op.ShapeID]
		if !ok {
			return nil, ErrShapeNotFound
		}
		inv := AddShape(old.Clone())
		return &inv, nil

	case OpMoveShapes:
		if len(op.ShapeIDs) == 0 || op.Delta == nil {
			return nil, ErrInvalidOperation
		}
		ids := make([]uuid.UUID, len(op.ShapeIDs))
		copy(ids, op.ShapeIDs)
		inv := MoveShapes(ids, Point{X: -op.Delta.X, Y: -op.Delta.Y})
		return &inv, nil

	case OpResizeShape:
		if op.ShapeID == nil || op.Bounds == nil {
			return nil, ErrInvalidOperation
		}
		old, ok := s.shapes[*op.ShapeID]
		if !ok {
			return nil, ErrShapeNotFound
		}
		if len(old.Points) < 2 {
			// Resize is a no-op on shapes without a bounding box
			return nil, nil
		}
		inv := ResizeShape(*op.ShapeID, Bounds{
			X:      old.Points[0].X,
			Y:      old.Points[0].Y,
			Width:  old.Points[1].X - old.Points[0].X,
			Height: old.Points[1].Y - old.Points[0].Y,
		})
		return &inv, nil

	case OpRotateShape:
		if op.ShapeID == nil || op.Angle == nil {
			return nil, ErrInvalidOperation
		}
		old, ok := s.shapes[*op.ShapeID]
		if !ok {
			return nil, ErrShapeNotFound
		}
		inv := RotateShape(*op.ShapeID, old.Rotation)
		return &inv, nil

	case OpBringToFront, OpSendToBack:
		if op.ShapeID == nil {
			return nil, ErrInvalidOperation
		}
		old, ok := s.shapes[*op.ShapeID]
		if !ok {
			return nil, ErrShapeNotFound
		}
		// A wholesale restore of the old shape puts back the exact z-index
		inv := UpdateShape(old.Clone())
		return &inv, nil

	case OpLockShape:
		if op.ShapeID == nil {
			return nil, ErrInvalidOperation
		}
		if _, ok := s.shapes[*op.ShapeID]; !ok {
			return nil, ErrShapeNotFound
		}
		inv := UnlockShape(*op.ShapeID)
		return &inv, nil

	case OpUnlockShape:
		if op.ShapeID == nil {
			return nil, ErrInvalidOperation
		}
		if _, ok := s.shapes[*op.ShapeID]; !ok {
			return nil, ErrShapeNotFound
		}
		inv := LockShape(*op.ShapeID)
		return &inv, nil

	case OpGroupShapes:
		if len(op.ShapeIDs) == 0 || op.GroupID == nil {
			return nil, ErrInvalidOperation
		}
		// Grouping is accepted but performs no structural change yet
		return nil, nil

	case OpUngroupShapes:
		if op.GroupID == nil {
			return nil, ErrInvalidOperation
		}
		return nil, nil

	case OpClear:
		// Clear is explicitly not undoable
		return nil, nil

	default:
		return nil, ErrUnknownOperation
	}
}

// Mutates the shape map. Existence has already been validated by invert.
// Returns the forward operation as actually applied (AddShape carries the
// assigned z-index), which is what redo replays.
func (s *State) apply(op Operation) Operation {
	switch op.Type {
	case OpAddShape:
		shape := op.Shape.Clone()
		shape.ZIndex = s.nextZIndex
		s.nextZIndex++
		s.shapes[shape.ID] = &shape
		return AddShape(shape.Clone())

	case OpUpdateShape:
		shape := op.Shape.Clone()
		s.shapes[shape.ID] = &shape

	case OpDeleteShape:
		delete(s.shapes, *op.ShapeID)
		s.purgeFromSelections(*op.ShapeID)

	case OpMoveShapes:
		s.translate(op.ShapeIDs, *op.Delta)

	case OpResizeShape:
		if shape, ok := s.shapes[*op.ShapeID]; ok && len(shape.Points) >= 2 {
			shape.Points[0] = Point{X: op.Bounds.X, Y: op.Bounds.Y}
			shape.Points[1] = Point{X: op.Bounds.X + op.Bounds.Width, Y: op.Bounds.Y + op.Bounds.Height}
		}

	case OpRotateShape:
		s.shapes[*op.ShapeID].Rotation = *op.Angle

	case OpBringToFront:
		s.shapes[*op.ShapeID].ZIndex = s.nextZIndex
		s.nextZIndex++

	case OpSendToBack:
		s.shapes[*op.ShapeID].ZIndex = s.minZIndex() - 1

	case OpLockShape:
		s.shapes[*op.ShapeID].Locked = true

	case OpUnlockShape:
		s.shapes[*op.ShapeID].Locked = false

	case OpGroupShapes, OpUngroupShapes:
		// No structural change yet

	case OpClear:
		s.shapes = make(map[uuid.UUID]*Shape)
		s.selections = make(map[uuid.UUID]Selection)
		s.nextZIndex = 0
	}

	return op.Clone()
}

// Replays a stored forward or inverse operation during undo/redo. History is
// never recorded here, and missing shapes are skipped: an inverse may
// legitimately reference a shape another user has deleted since.
func (s *State) applyNoHistory(op Operation) {
	switch op.Type {
	case OpAddShape, OpUpdateShape:
		if op.Shape != nil {
			shape := op.Shape.Clone()
			s.shapes[shape.ID] = &shape
		}

	case OpDeleteShape:
		if op.ShapeID != nil {
			delete(s.shapes, *op.ShapeID)
			s.purgeFromSelections(*op.ShapeID)
		}

	case OpMoveShapes:
		if op.Delta != nil {
			s.translate(op.ShapeIDs, *op.Delta)
		}

	case OpResizeShape:
		if op.ShapeID == nil || op.Bounds == nil {
			return
		}
		if shape, ok := s.shapes[*op.ShapeID]; ok && len(shape.Points) >= 2 {
			shape.Points[0] = Point{X: op.Bounds.X, Y: op.Bounds.Y}
			shape.Points[1] = Point{X: op.Bounds.X + op.Bounds.Width, Y: op.Bounds.Y + op.Bounds.Height}
		}

	case OpRotateShape:
		if op.ShapeID == nil || op.Angle == nil {
			return
		}
		if shape, ok := s.shapes[*op.ShapeID]; ok {
			shape.Rotation = *op.Angle
		}

	case OpBringToFront:
		if op.ShapeID == nil {
			return
		}
		if shape, ok := s.shapes[*op.ShapeID]; ok {
			shape.ZIndex = s.nextZIndex
			s.nextZIndex++
		}

	case OpSendToBack:
		if op.ShapeID == nil {
			return
		}
		if shape, ok := s.shapes[*op.ShapeID]; ok {
			shape.ZIndex = s.minZIndex() - 1
		}

	case OpLockShape:
		if op.ShapeID == nil {
			return
		}
		if shape, ok := s.shapes[*op.ShapeID]; ok {
			shape.Locked = true
		}

	case OpUnlockShape:
		if op.ShapeID == nil {
			return
		}
		if shape, ok := s.shapes[*op.ShapeID]; ok {
			shape.Locked = false
		}
	}

	s.UpdatedAt = time.Now().UTC()
}

// Undo reverses the acting user's most recent own entry, skipping entries by
// other users. The reversed entry moves to the redo stack. Returns the
// operation that was applied to the document, for rebroadcast, or nil when
// the user has nothing to undo.
func (s *State) Undo(userID uuid.UUID) *Operation {
	idx := lastEntryBy(s.undoStack, userID)
	if idx < 0 {
		return nil
	}

	entry := s.undoStack[idx]
	s.undoStack = append(s.undoStack[:idx], s.undoStack[idx+1:]...)

	s.applyNoHistory(entry.Inverse)
	s.redoStack = append(s.redoStack, entry)

	applied := entry.Inverse.Clone()
	return &applied
}

// Redo re-applies the acting user's most recently undone entry and moves it
// back onto the undo stack. Returns the replayed forward operation, or nil
// when the user has nothing to redo.
func (s *State) Redo(userID uuid.UUID) *Operation {
	idx := lastEntryBy(s.redoStack, userID)
	if idx < 0 {
		return nil
	}

	entry := s.redoStack[idx]
	s.redoStack = append(s.redoStack[:idx], s.redoStack[idx+1:]...)

	s.applyNoHistory(entry.Forward)
	s.undoStack = append(s.undoStack, entry)

	applied := entry.Forward.Clone()
	return &applied
}

func lastEntryBy(entries []HistoryEntry, userID uuid.UUID) int {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].UserID == userID {
			return i
		}
	}
	return -1
}

func (s *State) translate(ids []uuid.UUID, delta Point) {
	for _, id := range ids {
		shape, ok := s.shapes[id]
		if !ok {
			continue
		}
		for i := range shape.Points {
			shape.Points[i].X += delta.X
			shape.Points[i].Y += delta.Y
		}
	}
}

func (s *State) purgeFromSelections(shapeID uuid.UUID) {
	for userID, sel := range s.selections {
		kept := sel.ShapeIDs[:0]
		for _, id := range sel.ShapeIDs {
			if id != shapeID {
				kept = append(kept, id)
			}
		}
		sel.ShapeIDs = kept
		s.selections[userID] = sel
	}
}

func (s *State) minZIndex() int {
	min := 0
	first := true
	for _, shape := range s.shapes {
		if first || shape.ZIndex < min {
			min = shape.ZIndex
			first = false
		}
	}
	return min
}

// Presence

func (s *State) UpdateCursor(cursor CursorPosition) {
	s.cursors[cursor.UserID] = cursor
}

func (s *State) RemoveCursor(userID uuid.UUID) {
	delete(s.cursors, userID)
}

func (s *State) SetSelection(selection Selection) {
	s.selections[selection.UserID] = selection
}

func (s *State) ClearSelection(userID uuid.UUID) {
	delete(s.selections, userID)
}

// Snapshot returns a deep copy of the board's shapes (sorted by stacking
// order), cursors and selections for a FullSync.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Shapes:     make([]Shape, 0, len(s.shapes)),
		Cursors:    make([]CursorPosition, 0, len(s.cursors)),
		Selections: make([]Selection, 0, len(s.selections)),
	}

	for _, shape := range s.shapes {
		snap.Shapes = append(snap.Shapes, shape.Clone())
	}
	sort.Slice(snap.Shapes, func(i, j int) bool {
		if snap.Shapes[i].ZIndex != snap.Shapes[j].ZIndex {
			return snap.Shapes[i].ZIndex < snap.Shapes[j].ZIndex
		}
		return snap.Shapes[i].ID.String() < snap.Shapes[j].ID.String()
	})

	for _, cursor := range s.cursors {
		snap.Cursors = append(snap.Cursors, cursor)
	}
	for _, sel := range s.selections {
		ids := make([]uuid.UUID, len(sel.ShapeIDs))
		copy(ids, sel.ShapeIDs)
		sel.ShapeIDs = ids
		snap.Selections = append(snap.Selections, sel)
	}

	return snap
}

// Shape returns a copy of the shape with the given id
func (s *State) Shape(id uuid.UUID) (Shape, bool) {
	shape, ok := s.shapes[id]
	if !ok {
		return Shape{}, false
	}
	return shape.Clone(), true
}

func (s *State) ShapeCount() int {
	return len(s.shapes)
}

func (s *State) UndoDepth() int {
	return len(s.undoStack)
}

func (s *State) RedoDepth() int {
	return len(s.redoStack)
}
