package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tagaralaaziis/event36-sub000/internal/database"
	"github.com/tagaralaaziis/event36-sub000/internal/render"
)

// TemplateHandler manages the per-event certificate and ticket templates.
// Field lists are schema-validated here, at the boundary: the renderer never
// sees an unknown key or an out-of-bounds position.
type TemplateHandler struct {
	db *gorm.DB
}

func NewTemplateHandler(db *gorm.DB) *TemplateHandler {
	return &TemplateHandler{db: db}
}

type barcodeConfig struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Size     int     `json:"size"`
	Rotation float64 `json:"rotation"`
}

type putTemplateRequest struct {
	ImageKey    string          `json:"image_key" binding:"required"`
	ImageWidth  int             `json:"image_width" binding:"required"`
	ImageHeight int             `json:"image_height" binding:"required"`
	Fields      json.RawMessage `json:"fields" binding:"required"`
	Barcode     *barcodeConfig  `json:"barcode"`
}

// PUT /v1/events/:id/templates/:kind
// Creates or replaces the event's template of the given kind.
func (h *TemplateHandler) PutTemplate(c *gin.Context) {
	eventID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || eventID == 0 {
		BadRequest(c, "invalid event id")
		return
	}
	kind := c.Param("kind")
	if kind != database.TemplateCertificate && kind != database.TemplateTicket {
		BadRequest(c, fmt.Sprintf("unknown template kind %q", kind))
		return
	}

	var event database.Event
	switch err := h.db.WithContext(c.Request.Context()).First(&event, eventID).Error; {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "event not found")
		return
	default:
		Internal(c, "failed to load event")
		return
	}

	var req putTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.ImageWidth <= 0 || req.ImageHeight <= 0 {
		BadRequest(c, "template image dimensions must be positive")
		return
	}

	source := render.Size{W: float64(req.ImageWidth), H: float64(req.ImageHeight)}
	if _, err := render.DecodeFields(req.Fields, source); err != nil {
		BadRequest(c, err.Error())
		return
	}

	template := database.Template{
		EventID:     event.ID,
		Kind:        kind,
		ImageKey:    req.ImageKey,
		ImageWidth:  req.ImageWidth,
		ImageHeight: req.ImageHeight,
		Fields:      datatypes.JSON(req.Fields),
	}
	if req.Barcode != nil {
		if kind != database.TemplateTicket {
			BadRequest(c, "barcode placement is only valid on ticket templates")
			return
		}
		if req.Barcode.Size <= 0 {
			BadRequest(c, "barcode size must be positive")
			return
		}
		if req.Barcode.X < 0 || req.Barcode.Y < 0 ||
			req.Barcode.X+float64(req.Barcode.Size) > source.W ||
			req.Barcode.Y+float64(req.Barcode.Size) > source.H {
			BadRequest(c, fmt.Sprintf("barcode %dpx at (%.0f, %.0f) exceeds template %dx%d",
				req.Barcode.Size, req.Barcode.X, req.Barcode.Y, req.ImageWidth, req.ImageHeight))
			return
		}
		template.BarcodeX = req.Barcode.X
		template.BarcodeY = req.Barcode.Y
		template.BarcodeSize = req.Barcode.Size
		template.BarcodeRotation = req.Barcode.Rotation
	}

	err = h.db.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "event_id"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"image_key", "image_width", "image_height", "fields",
			"barcode_x", "barcode_y", "barcode_size", "barcode_rotation",
		}),
	}).Create(&template).Error
	if err != nil {
		Internal(c, "failed to store template")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"event_id": event.ID,
		"kind":     kind,
	})
}

// GET /v1/events/:id/templates/:kind
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	eventID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || eventID == 0 {
		BadRequest(c, "invalid event id")
		return
	}

	var template database.Template
	switch err := h.db.WithContext(c.Request.Context()).
		Where("event_id = ? AND kind = ?", eventID, c.Param("kind")).
		First(&template).Error; {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "template not found")
		return
	default:
		Internal(c, "failed to load template")
		return
	}

	response := gin.H{
		"image_key":    template.ImageKey,
		"image_width":  template.ImageWidth,
		"image_height": template.ImageHeight,
		"fields":       json.RawMessage(template.Fields),
	}
	if template.BarcodeSize > 0 {
		response["barcode"] = barcodeConfig{
			X:        template.BarcodeX,
			Y:        template.BarcodeY,
			Size:     template.BarcodeSize,
			Rotation: template.BarcodeRotation,
		}
	}
	c.JSON(http.StatusOK, response)
}
