package api

import (
	"gorm.io/gorm"

	"github.com/tagaralaaziis/event36-sub000/internal/database"
	"github.com/tagaralaaziis/event36-sub000/internal/pipeline"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes attaches the domain routes, without an /api prefix.
func RegisterRoutes(
	router *gin.Engine,
	db *gorm.DB,
	coordinator *pipeline.Coordinator,
	progress *pipeline.Progress,
	store artifactStore,
	minSheetScale float64,
) {
	eventHandler := NewEventHandler(db)
	templateHandler := NewTemplateHandler(db)
	generateHandler := NewGenerateHandler(db, coordinator, progress, store, minSheetScale)

	v1 := router.Group("/v1")
	{
		v1.GET("/verify", generateHandler.Verify)
		v1.GET("/batches/:id", generateHandler.BatchProgress)

		events := v1.Group("/events")
		{
			events.POST("", eventHandler.CreateEvent)
			events.GET("", eventHandler.ListEvents)
			events.GET("/:id", eventHandler.GetEvent)

			events.POST("/:id/participants", eventHandler.CreateParticipant)
			events.GET("/:id/participants", eventHandler.ListParticipants)

			events.PUT("/:id/templates/:kind", templateHandler.PutTemplate)
			events.GET("/:id/templates/:kind", templateHandler.GetTemplate)

			events.POST("/:id/certificates/generate", generateHandler.Generate(database.TemplateCertificate))
			events.POST("/:id/certificates/send", generateHandler.Send(database.TemplateCertificate))
			events.POST("/:id/tickets/generate", generateHandler.Generate(database.TemplateTicket))
			events.POST("/:id/tickets/send", generateHandler.Send(database.TemplateTicket))
			events.GET("/:id/tickets/sheet", generateHandler.TicketSheet)
			events.GET("/:id/participants/:pid/artifacts/:kind", generateHandler.ArtifactLink)
		}
	}
}
