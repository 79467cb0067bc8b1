package render

import (
	"strings"
	"testing"
)

func TestDecodeFields_Valid(t *testing.T) {
	raw := []byte(`[
		{"key":"name","x":450,"y":200,"font_size":24,"bold":true,"active":true},
		{"key":"label","label":"Peserta","x":450,"y":260,"font_size":12,"active":true},
		{"key":"token","x":10,"y":10,"font_size":8,"active":false}
	]`)

	fields, err := DecodeFields(raw, Size{W: 900, H: 636})
	if err != nil {
		t.Fatalf("DecodeFields: %v", err)
	}
	if len(fields) != 3 {
		t.Fatalf("got %d fields, want 3", len(fields))
	}
	if fields[0].Key != FieldName || !fields[0].Bold || !fields[0].Active {
		t.Errorf("first field decoded wrong: %+v", fields[0])
	}
	if fields[1].Label != "Peserta" {
		t.Errorf("label not carried: %+v", fields[1])
	}
}

func TestDecodeFields_RejectsUnknownKey(t *testing.T) {
	raw := []byte(`[{"key":"signature","x":10,"y":10,"font_size":10,"active":true}]`)
	_, err := DecodeFields(raw, Size{W: 900, H: 636})
	if err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Fatalf("err = %v, want unknown key rejection", err)
	}
}

func TestDecodeFields_RejectsUnknownJSONField(t *testing.T) {
	raw := []byte(`[{"key":"name","x":10,"y":10,"font_size":10,"active":true,"rotation":45}]`)
	if _, err := DecodeFields(raw, Size{W: 900, H: 636}); err == nil {
		t.Fatal("expected rejection of unknown JSON field, got nil")
	}
}

func TestDecodeFields_RejectsOutOfBoundsPosition(t *testing.T) {
	raw := []byte(`[{"key":"name","x":950,"y":100,"font_size":10,"active":true}]`)
	_, err := DecodeFields(raw, Size{W: 900, H: 636})
	if err == nil {
		t.Fatal("expected out-of-bounds rejection, got nil")
	}
	// The message names the offending position and the template size.
	for _, fragment := range []string{"950", "900", "636"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error %q does not mention %q", err, fragment)
		}
	}
}

func TestDecodeFields_RejectsNegativeFontSize(t *testing.T) {
	raw := []byte(`[{"key":"name","x":10,"y":10,"font_size":-3,"active":true}]`)
	if _, err := DecodeFields(raw, Size{W: 900, H: 636}); err == nil {
		t.Fatal("expected negative font size rejection, got nil")
	}
}

func TestDecodeFields_RejectsMalformedJSON(t *testing.T) {
	if _, err := DecodeFields([]byte(`{"not":"a list"}`), Size{W: 900, H: 636}); err == nil {
		t.Fatal("expected decode error, got nil")
	}
}
