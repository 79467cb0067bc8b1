package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tagaralaaziis/event36-sub000/internal/database"
)

// EventHandler covers the thin event/participant CRUD surface. The
// interesting machinery lives in the generation pipeline; these endpoints
// just feed it data.
type EventHandler struct {
	db *gorm.DB
}

func NewEventHandler(db *gorm.DB) *EventHandler {
	return &EventHandler{db: db}
}

type createEventRequest struct {
	Name     string    `json:"name" binding:"required"`
	Slug     string    `json:"slug" binding:"required"`
	Venue    string    `json:"venue"`
	StartsAt time.Time `json:"starts_at" binding:"required"`
}

type eventResponse struct {
	ID       uint      `json:"id"`
	Name     string    `json:"name"`
	Slug     string    `json:"slug"`
	Venue    string    `json:"venue,omitempty"`
	StartsAt time.Time `json:"starts_at"`
}

func toEventResponse(e database.Event) eventResponse {
	return eventResponse{
		ID:       e.ID,
		Name:     e.Name,
		Slug:     e.Slug,
		Venue:    e.Venue,
		StartsAt: e.StartsAt,
	}
}

// POST /v1/events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	event := database.Event{
		Name:     req.Name,
		Slug:     strings.ToLower(strings.TrimSpace(req.Slug)),
		Venue:    req.Venue,
		StartsAt: req.StartsAt,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			Conflict(c, "slug already in use")
			return
		}
		Internal(c, "failed to create event")
		return
	}
	c.JSON(http.StatusCreated, toEventResponse(event))
}

// GET /v1/events
func (h *EventHandler) ListEvents(c *gin.Context) {
	var events []database.Event
	if err := h.db.WithContext(c.Request.Context()).Order("starts_at DESC").Find(&events).Error; err != nil {
		Internal(c, "failed to list events")
		return
	}
	items := make([]eventResponse, 0, len(events))
	for _, e := range events {
		items = append(items, toEventResponse(e))
	}
	c.JSON(http.StatusOK, items)
}

// GET /v1/events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
	event, ok := h.loadEvent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toEventResponse(*event))
}

type createParticipantRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
}

type participantResponse struct {
	ID       uint   `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Token    string `json:"token"`
}

// POST /v1/events/:id/participants
func (h *EventHandler) CreateParticipant(c *gin.Context) {
	event, ok := h.loadEvent(c)
	if !ok {
		return
	}

	var req createParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	participant := database.Participant{
		EventID:  event.ID,
		FullName: req.FullName,
		Email:    req.Email,
		Token:    strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&participant).Error; err != nil {
		Internal(c, "failed to register participant")
		return
	}
	c.JSON(http.StatusCreated, participantResponse{
		ID:       participant.ID,
		FullName: participant.FullName,
		Email:    participant.Email,
		Token:    participant.Token,
	})
}

// GET /v1/events/:id/participants
func (h *EventHandler) ListParticipants(c *gin.Context) {
	event, ok := h.loadEvent(c)
	if !ok {
		return
	}

	var participants []database.Participant
	err := h.db.WithContext(c.Request.Context()).
		Where("event_id = ?", event.ID).
		Order("id").
		Find(&participants).Error
	if err != nil {
		Internal(c, "failed to list participants")
		return
	}

	items := make([]participantResponse, 0, len(participants))
	for _, p := range participants {
		items = append(items, participantResponse{
			ID:       p.ID,
			FullName: p.FullName,
			Email:    p.Email,
			Token:    p.Token,
		})
	}
	c.JSON(http.StatusOK, items)
}

// loadEvent resolves the :id param; it writes the error response itself.
func (h *EventHandler) loadEvent(c *gin.Context) (*database.Event, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid event id")
		return nil, false
	}

	var event database.Event
	switch err := h.db.WithContext(c.Request.Context()).First(&event, id).Error; {
	case err == nil:
		return &event, true
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "event not found")
		return nil, false
	default:
		Internal(c, "failed to load event")
		return nil, false
	}
}
