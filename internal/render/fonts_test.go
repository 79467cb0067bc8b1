package render

import "testing"

func TestFontTable_ResolveKnownVariant(t *testing.T) {
	fonts, err := NewFontTable()
	if err != nil {
		t.Fatalf("NewFontTable: %v", err)
	}

	style, ttf := fonts.Resolve("Go", true, false)
	if style.Family != "Go" || !style.Bold || style.Italic {
		t.Errorf("resolved style %+v, want Go bold", style)
	}
	if len(ttf) == 0 {
		t.Error("resolved TTF is empty")
	}
	if got := style.StyleSuffix(); got != "B" {
		t.Errorf("StyleSuffix = %q, want B", got)
	}
}

func TestFontTable_UnknownFamilyFallsBack(t *testing.T) {
	fonts, err := NewFontTable()
	if err != nil {
		t.Fatalf("NewFontTable: %v", err)
	}

	style, ttf := fonts.Resolve("Comic Sans", true, true)
	if style.Family != DefaultFontFamily || style.Bold || style.Italic {
		t.Errorf("fallback style %+v, want default regular", style)
	}
	if len(ttf) == 0 {
		t.Error("fallback TTF is empty")
	}
}

func TestFontTable_CanonicalFamilyNames(t *testing.T) {
	fonts, err := NewFontTable()
	if err != nil {
		t.Fatalf("NewFontTable: %v", err)
	}

	cases := map[string]string{
		"":        "Go",
		"go":      "Go",
		"default": "Go",
		"gomono":  "Go Mono",
		"Go Mono": "Go Mono",
		"MONO":    "Go Mono",
	}
	for in, want := range cases {
		style, _ := fonts.Resolve(in, false, false)
		if style.Family != want {
			t.Errorf("Resolve(%q) family = %q, want %q", in, style.Family, want)
		}
	}
}

func TestFontTable_Face(t *testing.T) {
	fonts, err := NewFontTable()
	if err != nil {
		t.Fatalf("NewFontTable: %v", err)
	}

	face, err := fonts.Face("Go Mono", false, true, 14)
	if err != nil {
		t.Fatalf("Face: %v", err)
	}
	if face == nil {
		t.Fatal("Face returned nil")
	}
	// Second call hits the parse cache and must still work.
	if _, err := fonts.Face("Go Mono", false, true, 28); err != nil {
		t.Fatalf("cached Face: %v", err)
	}
}

func TestFontStyle_StyleSuffix(t *testing.T) {
	cases := []struct {
		style FontStyle
		want  string
	}{
		{FontStyle{}, ""},
		{FontStyle{Bold: true}, "B"},
		{FontStyle{Italic: true}, "I"},
		{FontStyle{Bold: true, Italic: true}, "BI"},
	}
	for _, tc := range cases {
		if got := tc.style.StyleSuffix(); got != tc.want {
			t.Errorf("%+v suffix = %q, want %q", tc.style, got, tc.want)
		}
	}
}
