package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tagaralaaziis/event36-sub000/internal/api/middleware"
	"github.com/tagaralaaziis/event36-sub000/internal/database"
	"github.com/tagaralaaziis/event36-sub000/internal/pipeline"
	"github.com/tagaralaaziis/event36-sub000/internal/render"
)

// artifactStore is the storage slice the artifact endpoints read from.
type artifactStore interface {
	Download(ctx context.Context, objectKey string) ([]byte, error)
	PresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
}

// GenerateHandler exposes the bulk pipeline over HTTP: submit a batch, poll
// its progress, verify a scanned ticket, download the offline print sheet.
type GenerateHandler struct {
	db          *gorm.DB
	coordinator *pipeline.Coordinator
	progress    *pipeline.Progress
	storage     artifactStore
	minScale    float64
}

func NewGenerateHandler(db *gorm.DB, coordinator *pipeline.Coordinator, progress *pipeline.Progress, store artifactStore, minScale float64) *GenerateHandler {
	return &GenerateHandler{
		db:          db,
		coordinator: coordinator,
		progress:    progress,
		storage:     store,
		minScale:    minScale,
	}
}

// POST /v1/events/:id/certificates/generate (and tickets/generate)
func (h *GenerateHandler) Generate(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := eventIDParam(c)
		if !ok {
			return
		}
		ref, err := h.coordinator.EnqueueGenerate(c.Request.Context(), eventID, kind)
		if err != nil {
			h.writeBatchError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, ref)
	}
}

// POST /v1/events/:id/certificates/send (and tickets/send)
func (h *GenerateHandler) Send(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := eventIDParam(c)
		if !ok {
			return
		}
		ref, err := h.coordinator.EnqueueSend(c.Request.Context(), eventID, kind)
		if err != nil {
			h.writeBatchError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, ref)
	}
}

func (h *GenerateHandler) writeBatchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pipeline.ErrTemplateNotFound),
		errors.Is(err, pipeline.ErrInvalidTemplate),
		errors.Is(err, pipeline.ErrNoParticipants),
		errors.Is(err, pipeline.ErrNoArtifacts):
		BadRequest(c, err.Error())
	default:
		middleware.LoggerFromContext(c).Error("batch submission failed", "error", err)
		Internal(c, "failed to submit batch")
	}
}

// GET /v1/batches/:id
// Progress counters are eventually consistent with job completion; clients
// poll until the numbers add up or their own ceiling expires.
func (h *GenerateHandler) BatchProgress(c *gin.Context) {
	snapshot, err := h.progress.Read(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pipeline.ErrBatchNotFound) {
			NotFound(c, "batch not found or expired")
			return
		}
		Internal(c, "failed to read batch progress")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":         snapshot.Total,
		"generated":     snapshot.Generated,
		"sent":          snapshot.Sent,
		"success_count": snapshot.Generated + snapshot.Sent,
		"failure_count": snapshot.Failed,
		"results":       snapshot.Results,
	})
}

// GET /v1/verify?token=...
// The QR payload resolves here.
func (h *GenerateHandler) Verify(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		BadRequest(c, "missing token")
		return
	}

	var participant database.Participant
	switch err := h.db.WithContext(c.Request.Context()).
		Where("token = ?", token).
		First(&participant).Error; {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "unknown token")
		return
	default:
		Internal(c, "failed to verify token")
		return
	}

	var event database.Event
	if err := h.db.WithContext(c.Request.Context()).First(&event, participant.EventID).Error; err != nil {
		Internal(c, "failed to load event")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"participant": participant.FullName,
		"event":       event.Name,
		"starts_at":   event.StartsAt,
		"venue":       event.Venue,
	})
}

// Presigned links outlive a typical admin session but not the day.
const artifactLinkTTL = time.Hour

// GET /v1/events/:id/participants/:pid/artifacts/:kind
// Returns a time-limited download link for a generated document.
func (h *GenerateHandler) ArtifactLink(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	participantID, err := strconv.ParseUint(c.Param("pid"), 10, 64)
	if err != nil || participantID == 0 {
		BadRequest(c, "invalid participant id")
		return
	}
	kind := c.Param("kind")
	if kind != database.TemplateCertificate && kind != database.TemplateTicket {
		BadRequest(c, "kind must be certificate or ticket")
		return
	}

	var template database.Template
	switch err := h.db.WithContext(c.Request.Context()).
		Where("event_id = ? AND kind = ?", eventID, kind).
		First(&template).Error; {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "event has no such template")
		return
	default:
		Internal(c, "failed to load template")
		return
	}

	var artifact database.Artifact
	switch err := h.db.WithContext(c.Request.Context()).
		Where("participant_id = ? AND template_id = ?", participantID, template.ID).
		First(&artifact).Error; {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "no generated document for this participant")
		return
	default:
		Internal(c, "failed to load artifact")
		return
	}

	url, err := h.storage.PresignedURL(c.Request.Context(), artifact.ObjectKey, artifactLinkTTL)
	if err != nil {
		middleware.LoggerFromContext(c).Error("presign failed", "object_key", artifact.ObjectKey, "error", err)
		Internal(c, "failed to create download link")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":          url,
		"content_type": artifact.ContentType,
		"expires_in":   int(artifactLinkTTL.Seconds()),
	})
}

// Offline ticket sheets stack full-width strips, up to ten per page, and
// accept a lower legibility floor than generic packing because each strip
// spans the page width.
const (
	ticketSheetMaxCols = 1
	ticketSheetMaxRows = 10
)

// GET /v1/events/:id/tickets/sheet?page=a3|a4
// Tiles every generated ticket of the event onto print pages with cut
// guides.
func (h *GenerateHandler) TicketSheet(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	page := render.A3Portrait
	switch c.DefaultQuery("page", "a3") {
	case "a3":
		page = render.A3Portrait
	case "a4":
		page = render.A4Portrait
	default:
		BadRequest(c, "page must be a3 or a4")
		return
	}

	var template database.Template
	switch err := h.db.WithContext(c.Request.Context()).
		Where("event_id = ? AND kind = ?", eventID, database.TemplateTicket).
		First(&template).Error; {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		BadRequest(c, "event has no ticket template")
		return
	default:
		Internal(c, "failed to load template")
		return
	}

	var artifacts []database.Artifact
	err := h.db.WithContext(c.Request.Context()).
		Where("template_id = ?", template.ID).
		Order("participant_id").
		Find(&artifacts).Error
	if err != nil {
		Internal(c, "failed to list artifacts")
		return
	}
	if len(artifacts) == 0 {
		BadRequest(c, "no generated tickets; run generation first")
		return
	}

	itemW := float64(template.ImageWidth)
	itemH := float64(template.ImageHeight)
	layout, err := render.PackGrid(itemW, itemH, page, ticketSheetMaxCols, ticketSheetMaxRows, h.minScale)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	items := make([]render.SheetItem, len(artifacts))
	errs := pipeline.ForEach(c.Request.Context(), artifacts, 8, func(ctx context.Context, i int, a database.Artifact) error {
		data, err := h.storage.Download(ctx, a.ObjectKey)
		if err != nil {
			return fmt.Errorf("artifact %q: %w", a.ObjectKey, err)
		}
		items[i] = render.SheetItem{
			Name: fmt.Sprintf("ticket-%d", a.ParticipantID),
			PNG:  data,
		}
		return nil
	})
	for _, err := range errs {
		if err != nil {
			middleware.LoggerFromContext(c).Error("sheet item download failed", "error", err)
			Internal(c, "failed to collect ticket images")
			return
		}
	}

	pdfBytes, err := render.ComposeSheet(items, itemW, itemH, page, layout)
	if err != nil {
		Internal(c, "failed to compose sheet")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=tickets-event-%d.pdf", eventID))
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}

func eventIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid event id")
		return 0, false
	}
	return uint(id), true
}
