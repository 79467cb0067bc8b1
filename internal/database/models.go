package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event is the owning aggregate: templates and participants hang off it.
type Event struct {
	gorm.Model
	Name     string `gorm:"size:255"`
	Slug     string `gorm:"uniqueIndex;size:64"`
	Venue    string `gorm:"size:255"`
	StartsAt time.Time

	Templates    []Template    `gorm:"constraint:OnDelete:CASCADE"`
	Participants []Participant `gorm:"constraint:OnDelete:CASCADE"`
}

// Participant is one registered attendee. Token is the unique ticket token
// carried in the QR verification URL.
type Participant struct {
	gorm.Model
	EventID  uint   `gorm:"index"`
	FullName string `gorm:"size:255"`
	Email    string `gorm:"size:255"`
	Token    string `gorm:"uniqueIndex;size:64"`
}

// Template kinds. An event holds at most one template per kind.
const (
	TemplateCertificate = "certificate"
	TemplateTicket      = "ticket"
)

// Template stores the background image reference plus the designer-placed
// field list. Fields is the raw JSON as uploaded; it is schema-validated and
// decoded into typed render fields at the API boundary, never interpreted
// loosely downstream.
type Template struct {
	gorm.Model
	EventID     uint   `gorm:"index:idx_event_kind,unique"`
	Kind        string `gorm:"index:idx_event_kind,unique;size:16"`
	ImageKey    string `gorm:"size:512"`
	ImageWidth  int
	ImageHeight int
	Fields      datatypes.JSON `gorm:"type:jsonb"`
	// Barcode placement, ticket templates only.
	BarcodeX        float64
	BarcodeY        float64
	BarcodeSize     int
	BarcodeRotation float64
}

// Artifact is the current rendered output for one (participant, template)
// pair. Regeneration overwrites this row and resets Sent; there is exactly
// one current artifact per pair.
type Artifact struct {
	gorm.Model
	ParticipantID uint   `gorm:"index:idx_participant_template,unique"`
	TemplateID    uint   `gorm:"index:idx_participant_template,unique"`
	ObjectKey     string `gorm:"size:512"`
	ContentType   string `gorm:"size:64"`
	Sent          bool
	SentAt        *time.Time
}
