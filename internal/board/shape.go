package board

import (
	"time"

	"github.com/google/uuid"
)

// A 2D coordinate on the drawing surface
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// The kind of drawable primitive a Shape represents
type ShapeType string

const (
	ShapeRectangle ShapeType = "Rectangle"
	ShapeEllipse   ShapeType = "Ellipse"
	ShapeLine      ShapeType = "Line"
	ShapeArrow     ShapeType = "Arrow"
	ShapeFreehand  ShapeType = "Freehand"
	ShapeText      ShapeType = "Text"
	ShapeImage     ShapeType = "Image"
	ShapeSticky    ShapeType = "Sticky"
	ShapePolygon   ShapeType = "Polygon"
	ShapeTriangle  ShapeType = "Triangle"
	ShapeDiamond   ShapeType = "Diamond"
	ShapeStar      ShapeType = "Star"
)

type StrokeStyle string

const (
	StrokeSolid  StrokeStyle = "Solid"
	StrokeDashed StrokeStyle = "Dashed"
	StrokeDotted StrokeStyle = "Dotted"
)

// Rendering attributes of a shape
type ShapeStyle struct {
	StrokeColor Color       `json:"stroke_color"`
	FillColor   *Color      `json:"fill_color,omitempty"`
	StrokeWidth float64     `json:"stroke_width"`
	StrokeStyle StrokeStyle `json:"stroke_style"`
	Opacity     float64     `json:"opacity"`
	FontSize    *float64    `json:"font_size,omitempty"`
	FontFamily  *string     `json:"font_family,omitempty"`
}

// Black stroke, width 2, solid, fully opaque
func DefaultShapeStyle() ShapeStyle {
	return ShapeStyle{
		StrokeColor: DefaultColor(),
		StrokeWidth: 2.0,
		StrokeStyle: StrokeSolid,
		Opacity:     1.0,
	}
}

// One drawable primitive on the board. The meaning of Points depends on the
// shape type: two points define a bounding box for rectangle-like shapes,
// while lines, arrows and freehand strokes carry their full point sequence.
type Shape struct {
	ID        uuid.UUID  `json:"id"`
	ShapeType ShapeType  `json:"shape_type"`
	Points    []Point    `json:"points"`
	Style     ShapeStyle `json:"style"`
	Text      *string    `json:"text,omitempty"`
	ImageURL  *string    `json:"image_url,omitempty"`
	Rotation  float64    `json:"rotation"`
	ZIndex    int        `json:"z_index"`
	Locked    bool       `json:"locked"`
	CreatedBy uuid.UUID  `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Returns a deep copy that shares no memory with the receiver
func (s Shape) Clone() Shape {
	clone := s
	clone.Points = make([]Point, len(s.Points))
	copy(clone.Points, s.Points)

	if s.Style.FillColor != nil {
		fill := *s.Style.FillColor
		clone.Style.FillColor = &fill
	}
	if s.Style.FontSize != nil {
		size := *s.Style.FontSize
		clone.Style.FontSize = &size
	}
	if s.Style.FontFamily != nil {
		family := *s.Style.FontFamily
		clone.Style.FontFamily = &family
	}
	if s.Text != nil {
		text := *s.Text
		clone.Text = &text
	}
	if s.ImageURL != nil {
		url := *s.ImageURL
		clone.ImageURL = &url
	}
	return clone
}

// An axis-aligned bounding box used by resize operations
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// A user's live pointer position. Overwritten wholesale on every update;
// never part of undo history.
type CursorPosition struct {
	UserID     uuid.UUID `json:"user_id"`
	Username   string    `json:"username"`
	Color      Color     `json:"color"`
	Position   Point     `json:"position"`
	LastUpdate time.Time `json:"last_update"`
}

// The set of shapes a user currently has selected
type Selection struct {
	UserID   uuid.UUID   `json:"user_id"`
	ShapeIDs []uuid.UUID `json:"shape_ids"`
}
