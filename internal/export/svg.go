package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/easelhq/easel/internal/board"
)

func renderSVG(shapes []board.Shape, opts Options) ([]byte, error) {
	canvas := canvasBounds(shapes, opts.Padding)

	var buf bytes.Buffer
	fmt.Fprintf(&buf,
		`<svg xmlns="http://www.w3.org/2000/svg" viewBox="%g %g %g %g" width="%g" height="%g">`+"\n",
		canvas.X, canvas.Y, canvas.Width, canvas.Height,
		canvas.Width*opts.Scale, canvas.Height*opts.Scale)
	buf.WriteString(`  <defs><marker id="arrowhead" markerWidth="10" markerHeight="7" refX="9" refY="3.5" orient="auto"><polygon points="0 0, 10 3.5, 0 7" fill="context-stroke"/></marker></defs>` + "\n")

	for _, s := range shapes {
		writeShapeSVG(&buf, s)
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes(), nil
}

func writeShapeSVG(buf *bytes.Buffer, s board.Shape) {
	attrs := styleAttrs(s.Style)
	if transform := rotationTransform(s); transform != "" {
		attrs += " " + transform
	}

	switch s.ShapeType {
	case board.ShapeRectangle, board.ShapeSticky:
		box, ok := shapeBox(s)
		if !ok {
			return
		}
		fmt.Fprintf(buf, `  <rect x="%g" y="%g" width="%g" height="%g"%s/>`+"\n",
			box.X, box.Y, box.Width, box.Height, attrs)
		if s.ShapeType == board.ShapeSticky && s.Text != nil {
			writeTextLines(buf, s, box)
		}

	case board.ShapeEllipse:
		box, ok := shapeBox(s)
		if !ok {
			return
		}
		fmt.Fprintf(buf, `  <ellipse cx="%g" cy="%g" rx="%g" ry="%g"%s/>`+"\n",
			box.X+box.Width/2, box.Y+box.Height/2, box.Width/2, box.Height/2, attrs)

	case board.ShapeLine, board.ShapeArrow:
		if len(s.Points) < 2 {
			return
		}
		marker := ""
		if s.ShapeType == board.ShapeArrow {
			marker = ` marker-end="url(#arrowhead)"`
		}
		fmt.Fprintf(buf, `  <polyline points="%s" fill="none"%s%s/>`+"\n",
			pointList(s.Points), attrs, marker)

	case board.ShapeFreehand:
		if len(s.Points) == 0 {
			return
		}
		fmt.Fprintf(buf, `  <path d="%s" fill="none"%s/>`+"\n", freehandPath(s.Points), attrs)

	case board.ShapeText:
		if len(s.Points) == 0 || s.Text == nil {
			return
		}
		fmt.Fprintf(buf, `  <text x="%g" y="%g"%s%s>%s</text>`+"\n",
			s.Points[0].X, s.Points[0].Y, fontAttrs(s.Style), attrs, escapeXML(*s.Text))

	case board.ShapeImage:
		box, ok := shapeBox(s)
		if !ok || s.ImageURL == nil {
			return
		}
		fmt.Fprintf(buf, `  <image x="%g" y="%g" width="%g" height="%g" href="%s"%s/>`+"\n",
			box.X, box.Y, box.Width, box.Height, escapeXML(*s.ImageURL), attrs)

	case board.ShapePolygon, board.ShapeTriangle, board.ShapeDiamond, board.ShapeStar:
		vertices := polygonVertices(s)
		if len(vertices) < 3 {
			return
		}
		fmt.Fprintf(buf, `  <polygon points="%s"%s/>`+"\n", pointList(vertices), attrs)
	}
}

// Sticky text is rendered line by line inside the note's box
func writeTextLines(buf *bytes.Buffer, s board.Shape, box board.Bounds) {
	size := 14.0
	if s.Style.FontSize != nil {
		size = *s.Style.FontSize
	}
	for i, line := range strings.Split(*s.Text, "\n") {
		fmt.Fprintf(buf, `  <text x="%g" y="%g"%s>%s</text>`+"\n",
			box.X+8, box.Y+size+float64(i)*size*1.3, fontAttrs(s.Style), escapeXML(line))
	}
}

func styleAttrs(style board.ShapeStyle) string {
	var b strings.Builder
	fmt.Fprintf(&b, ` stroke="%s" stroke-width="%g"`, style.StrokeColor.ToRGBA(), style.StrokeWidth)
	if style.FillColor != nil {
		fmt.Fprintf(&b, ` fill="%s"`, style.FillColor.ToRGBA())
	} else {
		b.WriteString(` fill="none"`)
	}
	switch style.StrokeStyle {
	case board.StrokeDashed:
		b.WriteString(` stroke-dasharray="8 4"`)
	case board.StrokeDotted:
		b.WriteString(` stroke-dasharray="2 3"`)
	}
	if style.Opacity < 1.0 {
		fmt.Fprintf(&b, ` opacity="%g"`, style.Opacity)
	}
	return b.String()
}

func fontAttrs(style board.ShapeStyle) string {
	size := 16.0
	if style.FontSize != nil {
		size = *style.FontSize
	}
	family := "sans-serif"
	if style.FontFamily != nil {
		family = *style.FontFamily
	}
	return fmt.Sprintf(` font-size="%g" font-family="%s" fill="%s" stroke="none"`,
		size, escapeXML(family), style.StrokeColor.ToRGBA())
}

func rotationTransform(s board.Shape) string {
	if s.Rotation == 0 {
		return ""
	}
	box, ok := shapeBox(s)
	if !ok {
		return ""
	}
	return fmt.Sprintf(`transform="rotate(%g %g %g)"`,
		s.Rotation, box.X+box.Width/2, box.Y+box.Height/2)
}

func pointList(points []board.Point) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("%g,%g", p.X, p.Y)
	}
	return strings.Join(parts, " ")
}

func freehandPath(points []board.Point) string {
	var b strings.Builder
	fmt.Fprintf(&b, "M %g %g", points[0].X, points[0].Y)
	for _, p := range points[1:] {
		fmt.Fprintf(&b, " L %g %g", p.X, p.Y)
	}
	return b.String()
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
