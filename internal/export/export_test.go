package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelhq/easel/internal/board"
)

func sampleShapes() []board.Shape {
	text := "hello & <world>"
	fill, _ := board.ParseHexColor("#ffcc00")
	style := board.DefaultShapeStyle()

	stickyStyle := style
	stickyStyle.FillColor = &fill

	dashed := style
	dashed.StrokeStyle = board.StrokeDashed

	return []board.Shape{
		{
			ID: uuid.New(), ShapeType: board.ShapeRectangle,
			Points: []board.Point{{X: 0, Y: 0}, {X: 100, Y: 50}},
			Style:  style, ZIndex: 0,
		},
		{
			ID: uuid.New(), ShapeType: board.ShapeEllipse,
			Points: []board.Point{{X: 120, Y: 0}, {X: 220, Y: 80}},
			Style:  dashed, ZIndex: 1,
		},
		{
			ID: uuid.New(), ShapeType: board.ShapeFreehand,
			Points: []board.Point{{X: 5, Y: 5}, {X: 10, Y: 12}, {X: 20, Y: 8}},
			Style:  style, ZIndex: 2,
		},
		{
			ID: uuid.New(), ShapeType: board.ShapeText,
			Points: []board.Point{{X: 30, Y: 100}},
			Style:  style, Text: &text, ZIndex: 3,
		},
		{
			ID: uuid.New(), ShapeType: board.ShapeArrow,
			Points: []board.Point{{X: 0, Y: 120}, {X: 60, Y: 150}},
			Style:  style, ZIndex: 4,
		},
		{
			ID: uuid.New(), ShapeType: board.ShapeSticky,
			Points: []board.Point{{X: 200, Y: 200}, {X: 320, Y: 280}},
			Style:  stickyStyle, Text: &text, ZIndex: 5,
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
		ok    bool
	}{
		{"", FormatSVG, true},
		{"svg", FormatSVG, true},
		{"SVG", FormatSVG, true},
		{"pdf", FormatPDF, true},
		{"json", FormatJSON, true},
		{"png", "", false},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if tt.ok {
			require.NoError(t, err, "input %q", tt.input)
			assert.Equal(t, tt.want, got)
		} else {
			assert.ErrorIs(t, err, ErrUnsupportedFormat)
		}
	}
}

func TestRenderSVG(t *testing.T) {
	result, err := Render(Document{Name: "demo board", Shapes: sampleShapes()}, FormatSVG, DefaultOptions())
	require.NoError(t, err)

	svg := string(result.Data)
	assert.Equal(t, "image/svg+xml", result.ContentType)
	assert.True(t, strings.HasPrefix(result.Filename, "demo_board_"))
	assert.True(t, strings.HasSuffix(result.Filename, ".svg"))

	assert.Contains(t, svg, "<svg")
	assert.Contains(t, svg, "<rect")
	assert.Contains(t, svg, "<ellipse")
	assert.Contains(t, svg, "<path")
	assert.Contains(t, svg, "<polyline")
	assert.Contains(t, svg, `marker-end="url(#arrowhead)"`)
	assert.Contains(t, svg, `stroke-dasharray="8 4"`)
	// Text content is escaped
	assert.Contains(t, svg, "hello &amp; &lt;world&gt;")
	assert.NotContains(t, svg, "<world>")
}

func TestRenderSVGEmptyBoard(t *testing.T) {
	result, err := Render(Document{Name: "empty"}, FormatSVG, DefaultOptions())
	require.NoError(t, err)
	assert.Contains(t, string(result.Data), "<svg")
}

func TestRenderSVGStackingOrder(t *testing.T) {
	shapes := []board.Shape{
		{
			ID: uuid.New(), ShapeType: board.ShapeRectangle,
			Points: []board.Point{{X: 0, Y: 0}, {X: 10, Y: 10}},
			Style:  board.DefaultShapeStyle(), ZIndex: 5,
		},
		{
			ID: uuid.New(), ShapeType: board.ShapeEllipse,
			Points: []board.Point{{X: 0, Y: 0}, {X: 10, Y: 10}},
			Style:  board.DefaultShapeStyle(), ZIndex: 1,
		},
	}

	result, err := Render(Document{Name: "z", Shapes: shapes}, FormatSVG, DefaultOptions())
	require.NoError(t, err)

	svg := string(result.Data)
	// Lower z-index is drawn first, so the ellipse precedes the rect
	assert.Less(t, strings.Index(svg, "<ellipse"), strings.Index(svg, "<rect"))
}

func TestRenderPDF(t *testing.T) {
	result, err := Render(Document{Name: "demo", Shapes: sampleShapes()}, FormatPDF, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasSuffix(result.Filename, ".pdf"))
	require.Greater(t, len(result.Data), 4)
	assert.Equal(t, "%PDF", string(result.Data[:4]))
}

func TestRenderJSON(t *testing.T) {
	shapes := sampleShapes()
	result, err := Render(Document{Name: "demo", Shapes: shapes}, FormatJSON, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "application/json", result.ContentType)

	var doc struct {
		Name       string        `json:"name"`
		ExportedAt time.Time     `json:"exported_at"`
		ShapeCount int           `json:"shape_count"`
		Shapes     []board.Shape `json:"shapes"`
	}
	require.NoError(t, json.Unmarshal(result.Data, &doc))
	assert.Equal(t, "demo", doc.Name)
	assert.Equal(t, len(shapes), doc.ShapeCount)
	require.Len(t, doc.Shapes, len(shapes))
	assert.Equal(t, shapes[0].ID, doc.Shapes[0].ID)
}

func TestCanvasBoundsPadding(t *testing.T) {
	shapes := []board.Shape{{
		ID: uuid.New(), ShapeType: board.ShapeRectangle,
		Points: []board.Point{{X: 100, Y: 200}, {X: 300, Y: 400}},
		Style:  board.DefaultShapeStyle(),
	}}

	bounds := canvasBounds(shapes, 20)
	assert.Equal(t, 80.0, bounds.X)
	assert.Equal(t, 180.0, bounds.Y)
	assert.Equal(t, 240.0, bounds.Width)
	assert.Equal(t, 240.0, bounds.Height)

	tight := canvasBounds(shapes, 0)
	assert.Equal(t, 100.0, tight.X)
	assert.Equal(t, 200.0, tight.Width)
}

func TestRenderSVGScale(t *testing.T) {
	shapes := []board.Shape{{
		ID: uuid.New(), ShapeType: board.ShapeRectangle,
		Points: []board.Point{{X: 0, Y: 0}, {X: 100, Y: 100}},
		Style:  board.DefaultShapeStyle(),
	}}

	result, err := Render(Document{Name: "scaled", Shapes: shapes}, FormatSVG,
		Options{Padding: 0, Scale: 2})
	require.NoError(t, err)

	svg := string(result.Data)
	assert.Contains(t, svg, `width="200" height="200"`)
	assert.Contains(t, svg, `viewBox="0 0 100 100"`)
}

func TestPolygonVertices(t *testing.T) {
	diamond := board.Shape{
		ShapeType: board.ShapeDiamond,
		Points:    []board.Point{{X: 0, Y: 0}, {X: 100, Y: 100}},
	}
	assert.Len(t, polygonVertices(diamond), 4)

	star := board.Shape{
		ShapeType: board.ShapeStar,
		Points:    []board.Point{{X: 0, Y: 0}, {X: 100, Y: 100}},
	}
	assert.Len(t, polygonVertices(star), 10)

	triangle := board.Shape{
		ShapeType: board.ShapeTriangle,
		Points:    []board.Point{{X: 0, Y: 0}, {X: 100, Y: 100}},
	}
	assert.Len(t, polygonVertices(triangle), 3)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "My_Board_2", sanitizeName("My Board 2"))
	assert.Equal(t, "weeklysync", sanitizeName("weekly/sync!"))
	assert.Equal(t, "", sanitizeName("///"))
}
