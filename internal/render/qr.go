package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	qrcode "github.com/skip2/go-qrcode"
)

// CodePlacement positions a QR code on a ticket: X/Y is the code's top-left
// corner in image pixels, Size its edge length, Rotation in degrees
// counter-clockwise.
type CodePlacement struct {
	X        float64
	Y        float64
	Size     int
	Rotation float64
}

// ErrCodeOutOfBounds flags a placement whose code box does not fit the
// target image. Rejected up front; silent clipping would produce tickets
// that scan nothing.
var ErrCodeOutOfBounds = errors.New("qr placement out of bounds")

// DefaultQRBorderFraction sizes the quiet zone scanners need around the
// code, as a fraction of the code's larger dimension.
const DefaultQRBorderFraction = 0.08

// EmbedCode renders an error-correcting QR code for payloadURL, frames it in
// a white quiet zone, rotates it, and composites it onto dst. The quiet zone
// is subtracted from the placement origin so the code itself, not the
// bordered box, lands exactly at the configured point.
func EmbedCode(dst draw.Image, payloadURL string, pl CodePlacement, borderFraction float64) error {
	if pl.Size <= 0 {
		return fmt.Errorf("qr size must be positive, got %d", pl.Size)
	}
	bounds := dst.Bounds()
	if pl.X < 0 || pl.Y < 0 ||
		int(pl.X)+pl.Size > bounds.Dx() || int(pl.Y)+pl.Size > bounds.Dy() {
		return fmt.Errorf("%w: code %dpx at (%.0f, %.0f) on %dx%d image",
			ErrCodeOutOfBounds, pl.Size, pl.X, pl.Y, bounds.Dx(), bounds.Dy())
	}
	if borderFraction < 0 {
		borderFraction = DefaultQRBorderFraction
	}

	code, err := qrcode.New(payloadURL, qrcode.High)
	if err != nil {
		return fmt.Errorf("generate qr code: %w", err)
	}
	// The quiet zone is drawn explicitly below so its width is under our
	// control, not the library's.
	code.DisableBorder = true
	codeImg := code.Image(pl.Size)

	border := int(borderFraction * float64(pl.Size))
	boxSize := pl.Size + 2*border
	box := imaging.New(boxSize, boxSize, color.White)
	box = imaging.Paste(box, codeImg, image.Pt(border, border))

	rotated := box
	if pl.Rotation != 0 {
		rotated = imaging.Rotate(box, pl.Rotation, color.Transparent)
	}

	// Rotation grows the bounding box; anchoring on the code's center keeps
	// the code itself at the configured point for every angle. At zero
	// rotation this reduces to pasting at (X-border, Y-border).
	centerX := int(pl.X) + pl.Size/2
	centerY := int(pl.Y) + pl.Size/2
	offset := image.Pt(centerX-rotated.Bounds().Dx()/2, centerY-rotated.Bounds().Dy()/2)
	draw.Draw(dst, rotated.Bounds().Add(offset), rotated, image.Point{}, draw.Over)

	return nil
}
