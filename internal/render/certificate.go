package render

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"

	"github.com/jung-kurt/gofpdf"
)

// Document describes one certificate to render: the template background, the
// design-space field list, and the target canvas in points.
type Document struct {
	Background []byte
	Source     Size
	Canvas     Size
	Fields     []Field
}

// CertificateRenderer composites certificates as single-page PDFs.
type CertificateRenderer struct {
	fonts  *FontTable
	logger *slog.Logger
}

func NewCertificateRenderer(fonts *FontTable, logger *slog.Logger) *CertificateRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CertificateRenderer{fonts: fonts, logger: logger}
}

// Render paints the background stretched to the full canvas, then draws
// every active field horizontally centered on its mapped point. A corrupt
// background is the only fatal failure; font selection always resolves via
// the table's fallback and unsupported glyphs were stripped by Resolve.
func (r *CertificateRenderer) Render(doc Document, rc ResolveContext) ([]byte, error) {
	source, err := SafeSource(doc.Source)
	if err != nil {
		r.logger.Warn("template has no usable source size, mapping against default",
			slog.Any("error", err))
	}

	imageType, err := sniffImageType(doc.Background)
	if err != nil {
		return nil, fmt.Errorf("template background: %w", err)
	}

	canvas := doc.Canvas
	if canvas.W <= 0 || canvas.H <= 0 {
		canvas = A4Landscape
	}

	// The background is stretched, not fitted: templates are expected to be
	// designed at the target aspect already. A mismatch distorts, so warn.
	if ratio := (source.W / source.H) / (canvas.W / canvas.H); math.Abs(ratio-1) > 0.02 {
		r.logger.Warn("template aspect ratio differs from canvas, background will stretch",
			slog.Float64("source_aspect", source.W/source.H),
			slog.Float64("canvas_aspect", canvas.W/canvas.H),
		)
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: canvas.W, Ht: canvas.H},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	bgOpts := gofpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader("background", bgOpts, bytes.NewReader(doc.Background))
	pdf.ImageOptions("background", 0, 0, canvas.W, canvas.H, false, bgOpts, 0, "")

	registered := make(map[FontStyle]struct{})
	pdf.SetTextColor(0, 0, 0)

	for _, field := range doc.Fields {
		text, ok := Resolve(field, rc)
		if !ok || text == "" {
			continue
		}

		style, ttf := r.fonts.Resolve(field.FontFamily, field.Bold, field.Italic)
		if _, done := registered[style]; !done {
			pdf.AddUTF8FontFromBytes(style.Family, style.StyleSuffix(), ttf)
			registered[style] = struct{}{}
		}

		size := field.FontSize
		if size <= 0 {
			size = 14
		}
		pdf.SetFont(style.Family, style.StyleSuffix(), size)

		// The mapped point is the text's horizontal midpoint in bottom-left
		// page coordinates; gofpdf draws top-down from the left edge.
		p := MapPoint(Point{X: field.X, Y: field.Y}, source, canvas)
		width := pdf.GetStringWidth(text)
		pdf.Text(p.X-width/2, canvas.H-p.Y, text)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("output certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// sniffImageType detects the background encoding from its magic bytes.
// gofpdf needs the type spelled out, and an unreadable image must fail this
// one document without taking the batch down.
func sniffImageType(data []byte) (string, error) {
	switch {
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}):
		return "PNG", nil
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "JPG", nil
	case len(data) == 0:
		return "", fmt.Errorf("empty image data")
	default:
		return "", fmt.Errorf("unsupported or corrupt image format")
	}
}
