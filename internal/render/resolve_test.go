package render

import (
	"testing"
	"time"
)

func testResolveContext() ResolveContext {
	return ResolveContext{
		ParticipantID:   4,
		ParticipantName: "Siti Rahma",
		Token:           "a1b2c3d4",
		EventID:         2,
		EventName:       "TechFest 2025",
		EventSlug:       "techfest",
		EventStart:      time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC),
		Now:             time.Date(2025, time.March, 20, 15, 4, 5, 0, time.UTC),
	}
}

func TestRomanMonth(t *testing.T) {
	cases := map[time.Month]string{
		time.January:   "I",
		time.March:     "III",
		time.September: "IX",
		time.December:  "XII",
	}
	for month, want := range cases {
		if got := RomanMonth(month); got != want {
			t.Errorf("RomanMonth(%v) = %q, want %q", month, got, want)
		}
	}
}

func TestCertificateNumber(t *testing.T) {
	got := CertificateNumber(testResolveContext())
	want := "42/techfest/III/2025"
	if got != want {
		t.Errorf("CertificateNumber = %q, want %q", got, want)
	}
}

func TestResolve_FieldContent(t *testing.T) {
	rc := testResolveContext()
	cases := []struct {
		name  string
		field Field
		want  string
	}{
		{"name upper-cased", Field{Key: FieldName, Active: true}, "SITI RAHMA"},
		{"event name", Field{Key: FieldEvent, Active: true}, "TechFest 2025"},
		{"certificate number", Field{Key: FieldNumber, Active: true}, "42/techfest/III/2025"},
		{"token", Field{Key: FieldToken, Active: true}, "a1b2c3d4"},
		{"generation date", Field{Key: FieldDate, Active: true}, "20 Maret 2025"},
		{"static label", Field{Key: FieldLabel, Label: "Speaker", Active: true}, "Speaker"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Resolve(tc.field, rc)
			if !ok {
				t.Fatalf("field %s unexpectedly skipped", tc.field.Key)
			}
			if got != tc.want {
				t.Errorf("Resolve = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolve_SkipsInactiveFields(t *testing.T) {
	rc := testResolveContext()
	for _, key := range []FieldKey{FieldName, FieldToken, FieldDate} {
		if text, ok := Resolve(Field{Key: key, Active: false}, rc); ok {
			t.Errorf("inactive %s field rendered %q, want skip", key, text)
		}
	}
}

func TestResolve_DateUsesGenerationTime(t *testing.T) {
	rc := testResolveContext()
	rc.Now = time.Date(2026, time.August, 17, 0, 0, 0, 0, time.UTC)

	got, _ := Resolve(Field{Key: FieldDate, Active: true}, rc)
	if got != "17 Agustus 2026" {
		t.Errorf("date field = %q, want %q", got, "17 Agustus 2026")
	}
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"zero​width", "zerowidth"},
		{"\uFEFFbom", "bom"},
		{"tab\tand\nnewline", "tabandnewline"},
		{"Café Łódź", "Café Łódź"},
		{"arrow → emoji \U0001F600", "arrow  emoji "},
	}
	for _, tc := range cases {
		if got := Sanitize(tc.in); got != tc.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitize_IdempotentAndNeverLengthens(t *testing.T) {
	inputs := []string{
		"", "hello", "a​‌‍b", "Zażółć gęślą jaźń", "\x00\x01\x02",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		twice := Sanitize(once)
		if once != twice {
			t.Errorf("Sanitize not idempotent on %q: %q vs %q", in, once, twice)
		}
		if len(once) > len(in) {
			t.Errorf("Sanitize lengthened %q: %d -> %d bytes", in, len(in), len(once))
		}
	}
}
