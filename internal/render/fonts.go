package render

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// DefaultFontFamily backs every unknown family or style combination.
const DefaultFontFamily = "Go"

// FontStyle keys one variant inside the font table.
type FontStyle struct {
	Family string
	Bold   bool
	Italic bool
}

// StyleSuffix returns the gofpdf style string for the variant ("", "B", "I", "BI").
func (s FontStyle) StyleSuffix() string {
	var suffix string
	if s.Bold {
		suffix += "B"
	}
	if s.Italic {
		suffix += "I"
	}
	return suffix
}

// FontTable maps (family, bold, italic) to TTF data. Every family carries
// all four style variants; the table is validated when built so a missing
// variant is a startup failure, not a runtime surprise.
type FontTable struct {
	resources map[FontStyle][]byte

	mu    sync.Mutex
	faces map[string]*opentype.Font
}

// NewFontTable builds the table from the embedded Go font corpus.
func NewFontTable() (*FontTable, error) {
	t := &FontTable{
		resources: map[FontStyle][]byte{
			{Family: "Go"}:                            goregular.TTF,
			{Family: "Go", Bold: true}:                gobold.TTF,
			{Family: "Go", Italic: true}:              goitalic.TTF,
			{Family: "Go", Bold: true, Italic: true}:  gobolditalic.TTF,
			{Family: "Go Mono"}:                       gomono.TTF,
			{Family: "Go Mono", Bold: true}:           gomonobold.TTF,
			{Family: "Go Mono", Italic: true}:         gomonoitalic.TTF,
			{Family: "Go Mono", Bold: true, Italic: true}: gomonobolditalic.TTF,
		},
		faces: make(map[string]*opentype.Font),
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *FontTable) validate() error {
	families := make(map[string]struct{})
	for style := range t.resources {
		families[style.Family] = struct{}{}
	}
	if _, ok := families[DefaultFontFamily]; !ok {
		return fmt.Errorf("font table has no default family %q", DefaultFontFamily)
	}
	for family := range families {
		for _, bold := range []bool{false, true} {
			for _, italic := range []bool{false, true} {
				style := FontStyle{Family: family, Bold: bold, Italic: italic}
				if len(t.resources[style]) == 0 {
					return fmt.Errorf("font family %q missing variant bold=%t italic=%t", family, bold, italic)
				}
			}
		}
	}
	return nil
}

// Families lists the loaded family names.
func (t *FontTable) Families() []string {
	seen := make(map[string]struct{})
	var names []string
	for style := range t.resources {
		if _, ok := seen[style.Family]; ok {
			continue
		}
		seen[style.Family] = struct{}{}
		names = append(names, style.Family)
	}
	return names
}

// Resolve returns the TTF for the variant, falling back to the default
// family's regular style for unknown families. It never fails: the fallback
// entry is guaranteed by validate.
func (t *FontTable) Resolve(family string, bold, italic bool) (FontStyle, []byte) {
	style := FontStyle{Family: canonicalFamily(family), Bold: bold, Italic: italic}
	if ttf, ok := t.resources[style]; ok {
		return style, ttf
	}
	fallback := FontStyle{Family: DefaultFontFamily}
	return fallback, t.resources[fallback]
}

// Face returns an opentype face for raster drawing at the given point size.
// Parsed fonts are cached; faces are cheap to derive.
func (t *FontTable) Face(family string, bold, italic bool, size float64) (font.Face, error) {
	style, ttf := t.Resolve(family, bold, italic)

	key := style.Family + "/" + style.StyleSuffix()
	t.mu.Lock()
	parsed, ok := t.faces[key]
	t.mu.Unlock()
	if !ok {
		var err error
		parsed, err = opentype.Parse(ttf)
		if err != nil {
			return nil, fmt.Errorf("parse font %s: %w", key, err)
		}
		t.mu.Lock()
		t.faces[key] = parsed
		t.mu.Unlock()
	}

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("create face %s at %.1fpt: %w", key, size, err)
	}
	return face, nil
}

// canonicalFamily lets stored templates use loose family names
// (case-insensitive, "gomono" and "go mono" both accepted).
func canonicalFamily(family string) string {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(family), " ", "")) {
	case "", "go", "gosans", "default":
		return "Go"
	case "gomono", "mono", "monospace":
		return "Go Mono"
	}
	return strings.TrimSpace(family)
}
