package render

import (
	"bytes"
	"strings"
	"testing"
)

func newTestFonts(t *testing.T) *FontTable {
	t.Helper()
	fonts, err := NewFontTable()
	if err != nil {
		t.Fatalf("NewFontTable: %v", err)
	}
	return fonts
}

func TestCertificateRenderer_Render(t *testing.T) {
	r := NewCertificateRenderer(newTestFonts(t), nil)

	doc := Document{
		Background: tinyPNG(t),
		Source:     Size{W: 900, H: 636},
		Fields: []Field{
			{Key: FieldName, X: 450, Y: 200, FontSize: 24, Bold: true, Active: true},
			{Key: FieldNumber, X: 450, Y: 260, FontSize: 12, Active: true},
			{Key: FieldDate, X: 450, Y: 500, FontSize: 12, Italic: true, Active: true},
			{Key: FieldToken, X: 10, Y: 620, FontSize: 8, Active: false},
		},
	}

	out, err := r.Render(doc, testResolveContext())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatal("output is not a PDF")
	}
	if got := bytes.Count(out, []byte("/Type /Page\n")); got != 1 {
		t.Errorf("page count = %d, want 1", got)
	}
}

func TestCertificateRenderer_DefaultsCanvasToA4Landscape(t *testing.T) {
	r := NewCertificateRenderer(newTestFonts(t), nil)

	out, err := r.Render(Document{Background: tinyPNG(t), Source: Size{W: 900, H: 636}}, testResolveContext())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	// gofpdf writes the page box as /MediaBox [0 0 W H].
	if !bytes.Contains(out, []byte("841.89")) || !bytes.Contains(out, []byte("595.28")) {
		t.Error("output does not carry A4 landscape dimensions")
	}
}

func TestCertificateRenderer_RejectsCorruptBackground(t *testing.T) {
	r := NewCertificateRenderer(newTestFonts(t), nil)

	_, err := r.Render(Document{Background: []byte("not an image")}, testResolveContext())
	if err == nil {
		t.Fatal("expected error for corrupt background")
	}
	if !strings.Contains(err.Error(), "background") {
		t.Errorf("error %q does not name the background", err)
	}

	if _, err := r.Render(Document{}, testResolveContext()); err == nil {
		t.Fatal("expected error for empty background")
	}
}

func TestSniffImageType(t *testing.T) {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	if got, err := sniffImageType(pngMagic); err != nil || got != "PNG" {
		t.Errorf("png sniff = %q, %v", got, err)
	}
	if got, err := sniffImageType([]byte{0xFF, 0xD8, 0xFF, 0xE0}); err != nil || got != "JPG" {
		t.Errorf("jpg sniff = %q, %v", got, err)
	}
	if _, err := sniffImageType([]byte("GIF89a")); err == nil {
		t.Error("gif accepted")
	}
	if _, err := sniffImageType(nil); err == nil {
		t.Error("empty data accepted")
	}
}
