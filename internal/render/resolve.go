package render

import (
	"fmt"
	"strings"
	"time"
)

// ResolveContext carries everything the field table may reference for one
// participant of one event.
type ResolveContext struct {
	ParticipantID   uint
	ParticipantName string
	Token           string

	EventID    uint
	EventName  string
	EventSlug  string
	EventStart time.Time

	// Now is the generation timestamp used for the date field. Injected so
	// rendering stays deterministic under test.
	Now time.Time
}

var romanMonths = [...]string{
	"I", "II", "III", "IV", "V", "VI",
	"VII", "VIII", "IX", "X", "XI", "XII",
}

// RomanMonth returns the Roman numeral for a calendar month (I-XII).
func RomanMonth(m time.Month) string {
	return romanMonths[int(m)-1]
}

var longMonths = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// longDate formats "2 Januari 2006", the issued-on form printed on
// certificates.
func longDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), longMonths[int(t.Month())-1], t.Year())
}

// CertificateNumber builds the archival number printed on certificates:
// {participantId}{eventId}/{slug}/{romanMonth}/{year}, month and year taken
// from the event's start date.
func CertificateNumber(rc ResolveContext) string {
	return fmt.Sprintf("%d%d/%s/%s/%d",
		rc.ParticipantID,
		rc.EventID,
		rc.EventSlug,
		RomanMonth(rc.EventStart.Month()),
		rc.EventStart.Year(),
	)
}

// Resolve produces the literal text for one field. The second return is
// false when the field renders nothing (inactive fields, including inactive
// token fields, are skipped rather than rendered empty).
//
// The date field prints the generation date, not the event date: it
// timestamps when the document was issued.
func Resolve(f Field, rc ResolveContext) (string, bool) {
	if !f.Active {
		return "", false
	}

	var text string
	switch f.Key {
	case FieldName:
		text = strings.ToUpper(rc.ParticipantName)
	case FieldEvent:
		text = rc.EventName
	case FieldNumber:
		text = CertificateNumber(rc)
	case FieldDate:
		text = longDate(rc.Now)
	case FieldToken:
		text = rc.Token
	default:
		text = f.Label
	}

	return Sanitize(text), true
}

// Sanitize strips invisible Unicode (zero-width spaces, joiners, BOM,
// control characters) and restricts the remainder to printable ASCII plus
// extended Latin. Participant-entered text must never inject control
// characters into the output document or trip font shaping; anything the
// embedded fonts cannot carry is dropped here so the renderer never sees it.
// Sanitize is idempotent and never lengthens its input.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !printable(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// printable keeps ASCII 0x20-0x7E plus Latin-1 Supplement and Latin
// Extended-A letters.
func printable(r rune) bool {
	switch {
	case r >= 0x20 && r <= 0x7E:
		return true
	case r >= 0xC0 && r <= 0x17F:
		return true
	}
	return false
}
