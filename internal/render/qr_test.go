package render

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"
)

func newCanvas(w, h int, bg color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	return img
}

func TestEmbedCode_RejectsOutOfBounds(t *testing.T) {
	dst := newCanvas(800, 300, color.White)

	cases := []CodePlacement{
		{X: 650, Y: 200, Size: 120}, // overflows bottom edge
		{X: 750, Y: 50, Size: 120},  // overflows right edge
		{X: -10, Y: 50, Size: 100},
		{X: 50, Y: -10, Size: 100},
	}
	for _, pl := range cases {
		err := EmbedCode(dst, "https://example.com/v1/verify?token=x", pl, DefaultQRBorderFraction)
		if !errors.Is(err, ErrCodeOutOfBounds) {
			t.Errorf("placement %+v: err = %v, want ErrCodeOutOfBounds", pl, err)
		}
	}
}

func TestEmbedCode_OutOfBoundsErrorNamesDimensions(t *testing.T) {
	dst := newCanvas(800, 300, color.White)
	err := EmbedCode(dst, "payload", CodePlacement{X: 650, Y: 200, Size: 120}, 0.08)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, fragment := range []string{"120", "650", "200", "800", "300"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error %q does not mention %s", err, fragment)
		}
	}
}

func TestEmbedCode_RejectsNonPositiveSize(t *testing.T) {
	dst := newCanvas(100, 100, color.White)
	if err := EmbedCode(dst, "payload", CodePlacement{X: 10, Y: 10, Size: 0}, 0.08); err == nil {
		t.Fatal("expected error for zero size")
	}
}

func TestEmbedCode_DrawsCodeAndQuietZone(t *testing.T) {
	// Blue background so both black modules and the white quiet zone are
	// distinguishable from untouched pixels.
	blue := color.NRGBA{B: 255, A: 255}
	dst := newCanvas(400, 400, blue)

	pl := CodePlacement{X: 100, Y: 100, Size: 100}
	if err := EmbedCode(dst, "https://example.com/v1/verify?token=abc", pl, 0.08); err != nil {
		t.Fatalf("EmbedCode: %v", err)
	}

	var dark int
	for y := 100; y < 200; y++ {
		for x := 100; x < 200; x++ {
			r, g, b, _ := dst.At(x, y).RGBA()
			if r < 0x4000 && g < 0x4000 && b < 0x4000 {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Error("no dark modules inside the code box")
	}

	// border = int(0.08 * 100) = 8; at zero rotation the quiet zone starts
	// at X-border.
	r, g, b, _ := dst.At(100-4, 150).RGBA()
	if r < 0xF000 || g < 0xF000 || b < 0xF000 {
		t.Errorf("quiet zone pixel not white: %d %d %d", r, g, b)
	}

	// Pixels well outside the bordered box are untouched.
	got := dst.NRGBAAt(50, 50)
	if got != blue {
		t.Errorf("pixel outside placement changed: %+v", got)
	}
}

func TestEmbedCode_RotatedStaysInsideImage(t *testing.T) {
	dst := newCanvas(400, 400, color.White)
	pl := CodePlacement{X: 150, Y: 150, Size: 100, Rotation: 45}
	if err := EmbedCode(dst, "payload", pl, 0.08); err != nil {
		t.Fatalf("EmbedCode rotated: %v", err)
	}

	var dark int
	bounds := dst.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := dst.At(x, y).RGBA()
			if r < 0x4000 && g < 0x4000 && b < 0x4000 {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Error("rotated code left no dark pixels")
	}
}
