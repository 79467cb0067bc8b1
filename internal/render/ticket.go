package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"log/slog"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Ticket describes one ticket to render: background image, field list, QR
// placement and the verification URL the code carries. Canvas is the output
// pixel size; when zero the background's native size is kept.
type Ticket struct {
	Background []byte
	Source     Size
	Canvas     Size
	Fields     []Field
	Code       *CodePlacement
	PayloadURL string
}

// TicketRenderer composites tickets as raster PNGs, ready for email
// attachments and for tiling onto print sheets.
type TicketRenderer struct {
	fonts          *FontTable
	logger         *slog.Logger
	borderFraction float64
}

func NewTicketRenderer(fonts *FontTable, borderFraction float64, logger *slog.Logger) *TicketRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	if borderFraction <= 0 {
		borderFraction = DefaultQRBorderFraction
	}
	return &TicketRenderer{fonts: fonts, logger: logger, borderFraction: borderFraction}
}

// Render decodes the background, stretches it to the canvas, draws every
// active field centered on its mapped point and embeds the QR code. A
// background that cannot be decoded fails this one ticket only.
func (r *TicketRenderer) Render(t Ticket, rc ResolveContext) ([]byte, error) {
	bg, _, err := image.Decode(bytes.NewReader(t.Background))
	if err != nil {
		return nil, fmt.Errorf("decode ticket background: %w", err)
	}

	source, err := SafeSource(t.Source)
	if err != nil {
		r.logger.Warn("ticket template has no usable source size, mapping against default",
			slog.Any("error", err))
	}

	canvasW := int(t.Canvas.W)
	canvasH := int(t.Canvas.H)
	if canvasW <= 0 || canvasH <= 0 {
		canvasW = bg.Bounds().Dx()
		canvasH = bg.Bounds().Dy()
	}
	canvas := Size{W: float64(canvasW), H: float64(canvasH)}

	if bg.Bounds().Dx() != canvasW || bg.Bounds().Dy() != canvasH {
		bg = imaging.Resize(bg, canvasW, canvasH, imaging.Lanczos)
	}

	out := image.NewNRGBA(image.Rect(0, 0, canvasW, canvasH))
	draw.Draw(out, out.Bounds(), bg, image.Point{}, draw.Src)

	black := image.NewUniform(color.Black)
	for _, field := range t.Fields {
		text, ok := Resolve(field, rc)
		if !ok || text == "" {
			continue
		}

		size := field.FontSize
		if size <= 0 {
			size = 14
		}
		face, err := r.fonts.Face(field.FontFamily, field.Bold, field.Italic, size)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Key, err)
		}

		drawer := &font.Drawer{Dst: out, Src: black, Face: face}
		width := drawer.MeasureString(text)

		// MapPoint yields bottom-left page coordinates; raster drawing runs
		// top-down, so flip back. X is the text's horizontal midpoint.
		p := MapPoint(Point{X: field.X, Y: field.Y}, source, canvas)
		drawer.Dot = fixed.Point26_6{
			X: fixed.Int26_6(p.X*64) - width/2,
			Y: fixed.Int26_6((canvas.H - p.Y) * 64),
		}
		drawer.DrawString(text)
	}

	if t.Code != nil {
		placement := scalePlacement(*t.Code, source, canvas)
		if err := EmbedCode(out, t.PayloadURL, placement, r.borderFraction); err != nil {
			return nil, fmt.Errorf("embed qr code: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode ticket png: %w", err)
	}
	return buf.Bytes(), nil
}

// scalePlacement maps a design-space barcode placement onto the canvas. The
// placement anchors a top-left box, so only the axis scales apply; the
// vertical flip used for text baselines does not. The box stays square, so
// its edge takes the smaller axis scale and a placement that was in bounds
// in design space stays in bounds on a canvas of any aspect.
func scalePlacement(pl CodePlacement, source, canvas Size) CodePlacement {
	scaleX := canvas.W / source.W
	scaleY := canvas.H / source.H
	edgeScale := scaleX
	if scaleY < edgeScale {
		edgeScale = scaleY
	}
	return CodePlacement{
		X:        pl.X * scaleX,
		Y:        pl.Y * scaleY,
		Size:     int(float64(pl.Size) * edgeScale),
		Rotation: pl.Rotation,
	}
}
