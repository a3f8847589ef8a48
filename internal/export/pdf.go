package export

import (
	"bytes"
	"math"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/easelhq/easel/internal/board"
)

func renderPDF(shapes []board.Shape, opts Options) ([]byte, error) {
	canvas := canvasBounds(shapes, opts.Padding)

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: canvas.Width * opts.Scale, Ht: canvas.Height * opts.Scale},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	// PDF pages start at the top-left corner, so every coordinate is
	// shifted by the canvas origin
	p := &pdfPainter{pdf: pdf, offsetX: canvas.X, offsetY: canvas.Y, scale: opts.Scale}
	for _, s := range shapes {
		p.drawShape(s)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type pdfPainter struct {
	pdf     *gofpdf.Fpdf
	offsetX float64
	offsetY float64
	scale   float64
}

func (p *pdfPainter) tx(x float64) float64 { return (x - p.offsetX) * p.scale }
func (p *pdfPainter) ty(y float64) float64 { return (y - p.offsetY) * p.scale }

func (p *pdfPainter) drawShape(s board.Shape) {
	p.applyStyle(s.Style)
	styleStr := "D"
	if s.Style.FillColor != nil {
		styleStr = "FD"
	}

	switch s.ShapeType {
	case board.ShapeRectangle, board.ShapeSticky, board.ShapeImage:
		box, ok := shapeBox(s)
		if !ok {
			return
		}
		p.pdf.Rect(p.tx(box.X), p.ty(box.Y), box.Width*p.scale, box.Height*p.scale, styleStr)
		if s.ShapeType == board.ShapeSticky && s.Text != nil {
			p.drawTextLines(s, box)
		}

	case board.ShapeEllipse:
		box, ok := shapeBox(s)
		if !ok {
			return
		}
		p.pdf.Ellipse(p.tx(box.X+box.Width/2), p.ty(box.Y+box.Height/2),
			box.Width/2*p.scale, box.Height/2*p.scale, 0, styleStr)

	case board.ShapeLine, board.ShapeArrow, board.ShapeFreehand:
		if len(s.Points) < 2 {
			return
		}
		for i := 1; i < len(s.Points); i++ {
			a, b := s.Points[i-1], s.Points[i]
			p.pdf.Line(p.tx(a.X), p.ty(a.Y), p.tx(b.X), p.ty(b.Y))
		}
		if s.ShapeType == board.ShapeArrow {
			p.drawArrowhead(s.Points[len(s.Points)-2], s.Points[len(s.Points)-1])
		}

	case board.ShapeText:
		if len(s.Points) == 0 || s.Text == nil {
			return
		}
		p.applyFont(s.Style)
		p.pdf.Text(p.tx(s.Points[0].X), p.ty(s.Points[0].Y), *s.Text)

	case board.ShapePolygon, board.ShapeTriangle, board.ShapeDiamond, board.ShapeStar:
		vertices := polygonVertices(s)
		if len(vertices) < 3 {
			return
		}
		points := make([]gofpdf.PointType, len(vertices))
		for i, v := range vertices {
			points[i] = gofpdf.PointType{X: p.tx(v.X), Y: p.ty(v.Y)}
		}
		p.pdf.Polygon(points, styleStr)
	}
}

func (p *pdfPainter) applyStyle(style board.ShapeStyle) {
	stroke := style.StrokeColor
	p.pdf.SetDrawColor(int(stroke.R), int(stroke.G), int(stroke.B))
	p.pdf.SetLineWidth(style.StrokeWidth * p.scale)
	if style.FillColor != nil {
		fill := *style.FillColor
		p.pdf.SetFillColor(int(fill.R), int(fill.G), int(fill.B))
	}
	switch style.StrokeStyle {
	case board.StrokeDashed:
		p.pdf.SetDashPattern([]float64{8, 4}, 0)
	case board.StrokeDotted:
		p.pdf.SetDashPattern([]float64{2, 3}, 0)
	default:
		p.pdf.SetDashPattern([]float64{}, 0)
	}
	p.pdf.SetAlpha(style.Opacity, "Normal")
}

func (p *pdfPainter) applyFont(style board.ShapeStyle) {
	size := 16.0
	if style.FontSize != nil {
		size = *style.FontSize
	}
	stroke := style.StrokeColor
	p.pdf.SetTextColor(int(stroke.R), int(stroke.G), int(stroke.B))
	p.pdf.SetFont("Helvetica", "", size*p.scale)
}

func (p *pdfPainter) drawTextLines(s board.Shape, box board.Bounds) {
	p.applyFont(s.Style)
	size := 14.0
	if s.Style.FontSize != nil {
		size = *s.Style.FontSize
	}
	for i, line := range strings.Split(*s.Text, "\n") {
		p.pdf.Text(p.tx(box.X+8), p.ty(box.Y+size+float64(i)*size*1.3), line)
	}
}

// A short two-stroke head at the line's endpoint, matching the SVG marker
func (p *pdfPainter) drawArrowhead(from, to board.Point) {
	dx := to.X - from.X
	dy := to.Y - from.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	scale := 10.0 / length
	bx := to.X - dx*scale
	by := to.Y - dy*scale
	nx := -dy * scale * 0.35
	ny := dx * scale * 0.35
	p.pdf.Line(p.tx(to.X), p.ty(to.Y), p.tx(bx+nx), p.ty(by+ny))
	p.pdf.Line(p.tx(to.X), p.ty(to.Y), p.tx(bx-nx), p.ty(by-ny))
}
