package board

import (
	"github.com/google/uuid"
)

// The discriminator of an Operation
type OpType string

const (
	OpAddShape      OpType = "AddShape"
	OpUpdateShape   OpType = "UpdateShape"
	OpDeleteShape   OpType = "DeleteShape"
	OpMoveShapes    OpType = "MoveShapes"
	OpResizeShape   OpType = "ResizeShape"
	OpRotateShape   OpType = "RotateShape"
	OpBringToFront  OpType = "BringToFront"
	OpSendToBack    OpType = "SendToBack"
	OpLockShape     OpType = "LockShape"
	OpUnlockShape   OpType = "UnlockShape"
	OpGroupShapes   OpType = "GroupShapes"
	OpUngroupShapes OpType = "UngroupShapes"
	OpClear         OpType = "Clear"
)

// Operation is a discrete mutation intent sent by a client and applied to a
// board's document. It is a tagged union on the wire: Type selects the
// variant and the remaining fields carry that variant's payload.
type Operation struct {
	Type     OpType      `json:"type"`
	Shape    *Shape      `json:"shape,omitempty"`
	ShapeID  *uuid.UUID  `json:"shape_id,omitempty"`
	ShapeIDs []uuid.UUID `json:"shape_ids,omitempty"`
	Delta    *Point      `json:"delta,omitempty"`
	Bounds   *Bounds     `json:"bounds,omitempty"`
	Angle    *float64    `json:"angle,omitempty"`
	GroupID  *uuid.UUID  `json:"group_id,omitempty"`
}

func AddShape(shape Shape) Operation {
	return Operation{Type: OpAddShape, Shape: &shape}
}

func UpdateShape(shape Shape) Operation {
	return Operation{Type: OpUpdateShape, Shape: &shape}
}

func DeleteShape(shapeID uuid.UUID) Operation {
	return Operation{Type: OpDeleteShape, ShapeID: &shapeID}
}

func MoveShapes(shapeIDs []uuid.UUID, delta Point) Operation {
	return Operation{Type: OpMoveShapes, ShapeIDs: shapeIDs, Delta: &delta}
}

func ResizeShape(shapeID uuid.UUID, bounds Bounds) Operation {
	return Operation{Type: OpResizeShape, ShapeID: &shapeID, Bounds: &bounds}
}

func RotateShape(shapeID uuid.UUID, angle float64) Operation {
	return Operation{Type: OpRotateShape, ShapeID: &shapeID, Angle: &angle}
}

func BringToFront(shapeID uuid.UUID) Operation {
	return Operation{Type: OpBringToFront, ShapeID: &shapeID}
}

func SendToBack(shapeID uuid.UUID) Operation {
	return Operation{Type: OpSendToBack, ShapeID: &shapeID}
}

func LockShape(shapeID uuid.UUID) Operation {
	return Operation{Type: OpLockShape, ShapeID: &shapeID}
}

func UnlockShape(shapeID uuid.UUID) Operation {
	return Operation{Type: OpUnlockShape, ShapeID: &shapeID}
}

func GroupShapes(shapeIDs []uuid.UUID, groupID uuid.UUID) Operation {
	return Operation{Type: OpGroupShapes, ShapeIDs: shapeIDs, GroupID: &groupID}
}

func UngroupShapes(groupID uuid.UUID) Operation {
	return Operation{Type: OpUngroupShapes, GroupID: &groupID}
}

func Clear() Operation {
	return Operation{Type: OpClear}
}

// Returns a deep copy that shares no memory with the receiver
func (op Operation) Clone() Operation {
	clone := op
	if op.Shape != nil {
		shape := op.Shape.Clone()
		clone.Shape = &shape
	}
	if op.ShapeID != nil {
		id := *op.ShapeID
		clone.ShapeID = &id
	}
	if op.ShapeIDs != nil {
		clone.ShapeIDs = make([]uuid.UUID, len(op.ShapeIDs))
		copy(clone.ShapeIDs, op.ShapeIDs)
	}
	if op.Delta != nil {
		delta := *op.Delta
		clone.Delta = &delta
	}
	if op.Bounds != nil {
		bounds := *op.Bounds
		clone.Bounds = &bounds
	}
	if op.Angle != nil {
		angle := *op.Angle
		clone.Angle = &angle
	}
	if op.GroupID != nil {
		id := *op.GroupID
		clone.GroupID = &id
	}
	return clone
}
