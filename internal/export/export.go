// Package export renders a whiteboard's shapes into downloadable documents.
// SVG is the lossless vector format, PDF a print-friendly rasterization of
// the same geometry, and JSON a verbatim dump of the shape data.
package export

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/easelhq/easel/internal/board"
)

type Format string

const (
	FormatSVG  Format = "svg"
	FormatPDF  Format = "pdf"
	FormatJSON Format = "json"
)

var ErrUnsupportedFormat = fmt.Errorf("unsupported export format")

// ParseFormat maps a query-string value to a Format. An empty value
// defaults to SVG.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(value) {
	case "", "svg":
		return FormatSVG, nil
	case "pdf":
		return FormatPDF, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, value)
	}
}

// Document is the input to an export: a board name and its shapes
type Document struct {
	Name   string
	Shapes []board.Shape
}

// Result carries the rendered bytes plus the HTTP metadata needed to
// serve them as a download.
type Result struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Options tune the rendered canvas. Padding is added around the content
// bounding box in canvas units; Scale multiplies the output dimensions.
// Neither affects the JSON format.
type Options struct {
	Padding float64
	Scale   float64
}

func DefaultOptions() Options {
	return Options{Padding: defaultPadding, Scale: 1.0}
}

func (o Options) normalized() Options {
	if o.Padding < 0 {
		o.Padding = 0
	}
	if o.Scale <= 0 {
		o.Scale = 1.0
	}
	return o
}

// Default padding around the content bounding box, in canvas units
const defaultPadding = 20.0

// Canvas size used when the board has no shapes
const (
	emptyCanvasWidth  = 800.0
	emptyCanvasHeight = 600.0
)

// Render produces the document in the requested format. Shapes are drawn
// in z-index order so stacking on the export matches stacking on the board.
func Render(doc Document, format Format, opts Options) (Result, error) {
	opts = opts.normalized()
	shapes := make([]board.Shape, len(doc.Shapes))
	copy(shapes, doc.Shapes)
	sort.SliceStable(shapes, func(i, j int) bool {
		return shapes[i].ZIndex < shapes[j].ZIndex
	})

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatSVG:
		data, err = renderSVG(shapes, opts)
	case FormatPDF:
		data, err = renderPDF(shapes, opts)
	case FormatJSON:
		data, err = renderJSON(doc.Name, shapes)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Result{}, err
	}

	return Result{
		Data:        data,
		ContentType: contentType(format),
		Filename:    filename(doc.Name, format),
	}, nil
}

func contentType(format Format) string {
	switch format {
	case FormatSVG:
		return "image/svg+xml"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

func filename(name string, format Format) string {
	base := sanitizeName(name)
	if base == "" {
		base = "whiteboard"
	}
	stamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s.%s", base, stamp, format)
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// canvasBounds computes the drawing area: the bounding box of every point
// of every shape, padded on all sides.
func canvasBounds(shapes []board.Shape, padding float64) board.Bounds {
	if len(shapes) == 0 {
		return board.Bounds{Width: emptyCanvasWidth, Height: emptyCanvasHeight}
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, s := range shapes {
		for _, p := range s.Points {
			minX = math.Min(minX, p.X)
			minY = math.Min(minY, p.Y)
			maxX = math.Max(maxX, p.X)
			maxY = math.Max(maxY, p.Y)
		}
	}
	if math.IsInf(minX, 1) {
		return board.Bounds{Width: emptyCanvasWidth, Height: emptyCanvasHeight}
	}

	return board.Bounds{
		X:      minX - padding,
		Y:      minY - padding,
		Width:  (maxX - minX) + 2*padding,
		Height: (maxY - minY) + 2*padding,
	}
}

// shapeBox normalizes a shape's first two points into an axis-aligned box.
// Point order is not guaranteed, so both corners are sorted.
func shapeBox(s board.Shape) (board.Bounds, bool) {
	if len(s.Points) < 2 {
		return board.Bounds{}, false
	}
	a, b := s.Points[0], s.Points[1]
	return board.Bounds{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}, true
}

// polygonVertices returns the outline of box-defined multi-sided shapes.
// Polygons carry their own vertex list; the rest are derived from the box.
func polygonVertices(s board.Shape) []board.Point {
	if s.ShapeType == board.ShapePolygon {
		return s.Points
	}

	box, ok := shapeBox(s)
	if !ok {
		return nil
	}
	cx := box.X + box.Width/2
	cy := box.Y + box.Height/2

	switch s.ShapeType {
	case board.ShapeTriangle:
		return []board.Point{
			{X: cx, Y: box.Y},
			{X: box.X + box.Width, Y: box.Y + box.Height},
			{X: box.X, Y: box.Y + box.Height},
		}
	case board.ShapeDiamond:
		return []board.Point{
			{X: cx, Y: box.Y},
			{X: box.X + box.Width, Y: cy},
			{X: cx, Y: box.Y + box.Height},
			{X: box.X, Y: cy},
		}
	case board.ShapeStar:
		outer := math.Min(box.Width, box.Height) / 2
		inner := outer * 0.4
		points := make([]board.Point, 0, 10)
		for i := 0; i < 10; i++ {
			r := outer
			if i%2 == 1 {
				r = inner
			}
			angle := float64(i)*math.Pi/5 - math.Pi/2
			points = append(points, board.Point{
				X: cx + r*math.Cos(angle),
				Y: cy + r*math.Sin(angle),
			})
		}
		return points
	default:
		return nil
	}
}

type jsonDocument struct {
	Name       string        `json:"name"`
	ExportedAt time.Time     `json:"exported_at"`
	ShapeCount int           `json:"shape_count"`
	Shapes     []board.Shape `json:"shapes"`
}

func renderJSON(name string, shapes []board.Shape) ([]byte, error) {
	return json.MarshalIndent(jsonDocument{
		Name:       name,
		ExportedAt: time.Now().UTC(),
		ShapeCount: len(shapes),
		Shapes:     shapes,
	}, "", "  ")
}
