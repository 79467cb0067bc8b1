package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tagaralaaziis/event36-sub000/internal/database"
	"github.com/tagaralaaziis/event36-sub000/internal/errcode"
	"github.com/tagaralaaziis/event36-sub000/internal/pipeline"
	"github.com/tagaralaaziis/event36-sub000/internal/render"
	"github.com/tagaralaaziis/event36-sub000/internal/storage"
	"github.com/tagaralaaziis/event36-sub000/internal/tasks"
)

// blobStore is the storage surface the handlers consume; *storage.Client
// satisfies it and tests fake it.
type blobStore interface {
	Upload(ctx context.Context, objectKey string, data []byte, contentType string) error
	Download(ctx context.Context, objectKey string) ([]byte, error)
	Delete(ctx context.Context, objectKey string) error
}

// GenerateTaskHandler consumes artifact generation tasks: one participant,
// one rendered document, one artifact row.
type GenerateTaskHandler struct {
	db            *gorm.DB
	storage       blobStore
	progress      *pipeline.Progress
	certificates  *render.CertificateRenderer
	tickets       *render.TicketRenderer
	logger        *slog.Logger
	publicBaseURL string
}

func NewGenerateTaskHandler(
	db *gorm.DB,
	store blobStore,
	progress *pipeline.Progress,
	certificates *render.CertificateRenderer,
	tickets *render.TicketRenderer,
	publicBaseURL string,
	logger *slog.Logger,
) *GenerateTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerateTaskHandler{
		db:            db,
		storage:       store,
		progress:      progress,
		certificates:  certificates,
		tickets:       tickets,
		logger:        logger,
		publicBaseURL: publicBaseURL,
	}
}

// errPermanent wraps failures that retrying cannot fix (missing rows,
// invalid templates, corrupt images). They are recorded immediately with
// their business error code and the task is acked.
type errPermanent struct {
	err  error
	code int
}

func (e errPermanent) Error() string { return e.err.Error() }
func (e errPermanent) Unwrap() error { return e.err }

func permanent(err error) error { return errPermanent{err: err, code: errcode.ResourceMissing} }

func permanentCode(code int, err error) error { return errPermanent{err: err, code: code} }

// ProcessTask implements asynq.Handler.
func (h *GenerateTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	var payload tasks.ArtifactPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log := h.logger.With(
		slog.String("batch_id", payload.BatchID),
		slog.Uint64("participant_id", uint64(payload.ParticipantID)),
		slog.Uint64("event_id", uint64(payload.EventID)),
		slog.String("kind", payload.Kind),
	)

	defer func() {
		if retErr == nil {
			return
		}
		var perm errPermanent
		if errors.As(retErr, &perm) {
			// Not worth retrying: record the failure now and ack the task.
			h.recordFailure(ctx, payload, perm.err.Error(), perm.code, log)
			retErr = fmt.Errorf("%v: %w", perm.err, asynq.SkipRetry)
			return
		}
		if isFinalAttempt(ctx) {
			h.recordFailure(ctx, payload, retErr.Error(), errcode.SystemError, log)
		}
	}()

	return h.generate(ctx, payload, log)
}

func (h *GenerateTaskHandler) generate(ctx context.Context, payload tasks.ArtifactPayload, log *slog.Logger) error {
	participant, event, template, err := h.loadRow(ctx, payload)
	if err != nil {
		return err
	}

	source := render.Size{W: float64(template.ImageWidth), H: float64(template.ImageHeight)}
	fields, err := render.DecodeFields(template.Fields, source)
	if err != nil {
		return permanentCode(errcode.InvalidTemplate, err)
	}

	background, err := h.storage.Download(ctx, template.ImageKey)
	if err != nil {
		if storage.IsNoSuchKey(err) {
			return permanent(fmt.Errorf("template image %q: file not found", template.ImageKey))
		}
		return fmt.Errorf("download template image: %w", err)
	}

	rc := render.ResolveContext{
		ParticipantID:   participant.ID,
		ParticipantName: participant.FullName,
		Token:           participant.Token,
		EventID:         event.ID,
		EventName:       event.Name,
		EventSlug:       event.Slug,
		EventStart:      event.StartsAt,
		Now:             nowFunc(),
	}

	var (
		data        []byte
		contentType string
		ext         string
	)
	switch payload.Kind {
	case database.TemplateCertificate:
		data, err = h.certificates.Render(render.Document{
			Background: background,
			Source:     source,
			Canvas:     render.A4Landscape,
			Fields:     fields,
		}, rc)
		contentType, ext = "application/pdf", ".pdf"
	case database.TemplateTicket:
		ticket := render.Ticket{
			Background: background,
			Source:     source,
			Fields:     fields,
			PayloadURL: h.verifyURL(participant.Token),
		}
		if template.BarcodeSize > 0 {
			ticket.Code = &render.CodePlacement{
				X:        template.BarcodeX,
				Y:        template.BarcodeY,
				Size:     template.BarcodeSize,
				Rotation: template.BarcodeRotation,
			}
		}
		data, err = h.tickets.Render(ticket, rc)
		contentType, ext = "image/png", ".png"
	default:
		return permanentCode(errcode.InvalidTemplate, fmt.Errorf("unknown template kind %q", payload.Kind))
	}
	if err != nil {
		// Render failures are not transient: the same input renders the
		// same way on every attempt.
		return permanentCode(errcode.InvalidTemplate, fmt.Errorf("render %s: %w", payload.Kind, err))
	}

	objectKey := fmt.Sprintf("artifacts/%d/%s/%d%s", event.ID, payload.Kind, participant.ID, ext)
	if err := h.storage.Upload(ctx, objectKey, data, contentType); err != nil {
		return fmt.Errorf("upload artifact: %w", err)
	}

	// Write the file, then record it. If the record fails the file is
	// discarded so no dangling artifact reference survives.
	artifact := database.Artifact{
		ParticipantID: participant.ID,
		TemplateID:    template.ID,
		ObjectKey:     objectKey,
		ContentType:   contentType,
	}
	err = h.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "participant_id"}, {Name: "template_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"object_key":   objectKey,
			"content_type": contentType,
			"sent":         false,
			"sent_at":      nil,
		}),
	}).Create(&artifact).Error
	if err != nil {
		if delErr := h.storage.Delete(ctx, objectKey); delErr != nil {
			log.Warn("discard orphaned artifact failed", slog.Any("error", delErr))
		}
		return fmt.Errorf("record artifact: %w", err)
	}

	if err := h.progress.MarkGenerated(ctx, payload.BatchID); err != nil {
		log.Warn("update progress failed", slog.Any("error", err))
	}

	log.Info("artifact generated", slog.String("object_key", objectKey))
	return nil
}

func (h *GenerateTaskHandler) loadRow(ctx context.Context, payload tasks.ArtifactPayload) (*database.Participant, *database.Event, *database.Template, error) {
	var participant database.Participant
	if err := h.db.WithContext(ctx).First(&participant, payload.ParticipantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, permanent(fmt.Errorf("participant %d not found", payload.ParticipantID))
		}
		return nil, nil, nil, fmt.Errorf("query participant: %w", err)
	}

	var event database.Event
	if err := h.db.WithContext(ctx).First(&event, payload.EventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, permanent(fmt.Errorf("event %d not found", payload.EventID))
		}
		return nil, nil, nil, fmt.Errorf("query event: %w", err)
	}

	var template database.Template
	err := h.db.WithContext(ctx).
		Where("event_id = ? AND kind = ?", payload.EventID, payload.Kind).
		First(&template).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, permanent(fmt.Errorf("event %d has no %s template", payload.EventID, payload.Kind))
		}
		return nil, nil, nil, fmt.Errorf("query template: %w", err)
	}

	return &participant, &event, &template, nil
}

func (h *GenerateTaskHandler) verifyURL(token string) string {
	return fmt.Sprintf("%s/v1/verify?token=%s", h.publicBaseURL, url.QueryEscape(token))
}

func (h *GenerateTaskHandler) recordFailure(ctx context.Context, payload tasks.ArtifactPayload, reason string, code int, log *slog.Logger) {
	result := pipeline.FailureResult{
		ParticipantID: payload.ParticipantID,
		Reason:        reason,
		Code:          code,
	}
	if err := h.progress.MarkFailed(ctx, payload.BatchID, result); err != nil {
		log.Error("record terminal failure failed", slog.Any("error", err))
	}
	log.Error("job failed permanently", slog.String("reason", reason))
}
