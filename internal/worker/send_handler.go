package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/tagaralaaziis/event36-sub000/internal/database"
	"github.com/tagaralaaziis/event36-sub000/internal/errcode"
	"github.com/tagaralaaziis/event36-sub000/internal/mailer"
	"github.com/tagaralaaziis/event36-sub000/internal/pipeline"
	"github.com/tagaralaaziis/event36-sub000/internal/storage"
	"github.com/tagaralaaziis/event36-sub000/internal/tasks"
)

// mailSender is the outbound mail surface; *mailer.Mailer satisfies it.
type mailSender interface {
	Send(to, subject, body string, attachment *mailer.Attachment) error
}

// SendTaskHandler consumes artifact delivery tasks: download the
// participant's current artifact and mail it as an attachment.
type SendTaskHandler struct {
	db       *gorm.DB
	storage  blobStore
	progress *pipeline.Progress
	mail     mailSender
	logger   *slog.Logger
}

func NewSendTaskHandler(db *gorm.DB, store blobStore, progress *pipeline.Progress, mail mailSender, logger *slog.Logger) *SendTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendTaskHandler{
		db:       db,
		storage:  store,
		progress: progress,
		mail:     mail,
		logger:   logger,
	}
}

// ProcessTask implements asynq.Handler.
func (h *SendTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	var payload tasks.ArtifactPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log := h.logger.With(
		slog.String("batch_id", payload.BatchID),
		slog.Uint64("participant_id", uint64(payload.ParticipantID)),
		slog.String("kind", payload.Kind),
	)

	defer func() {
		if retErr == nil {
			return
		}
		var perm errPermanent
		if errors.As(retErr, &perm) {
			h.fail(ctx, payload, perm.err.Error(), perm.code, log)
			retErr = fmt.Errorf("%v: %w", perm.err, asynq.SkipRetry)
			return
		}
		if isFinalAttempt(ctx) {
			h.fail(ctx, payload, retErr.Error(), errcode.SystemError, log)
		}
	}()

	return h.send(ctx, payload, log)
}

func (h *SendTaskHandler) send(ctx context.Context, payload tasks.ArtifactPayload, log *slog.Logger) error {
	var participant database.Participant
	if err := h.db.WithContext(ctx).First(&participant, payload.ParticipantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return permanent(fmt.Errorf("participant %d not found", payload.ParticipantID))
		}
		return fmt.Errorf("query participant: %w", err)
	}
	if participant.Email == "" {
		return permanent(fmt.Errorf("participant %d has no email address", participant.ID))
	}

	var event database.Event
	if err := h.db.WithContext(ctx).First(&event, payload.EventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return permanent(fmt.Errorf("event %d not found", payload.EventID))
		}
		return fmt.Errorf("query event: %w", err)
	}

	var artifact database.Artifact
	err := h.db.WithContext(ctx).
		Joins("JOIN templates ON templates.id = artifacts.template_id").
		Where("artifacts.participant_id = ? AND templates.event_id = ? AND templates.kind = ?",
			payload.ParticipantID, payload.EventID, payload.Kind).
		First(&artifact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return permanent(fmt.Errorf("participant %d has no generated %s", payload.ParticipantID, payload.Kind))
		}
		return fmt.Errorf("query artifact: %w", err)
	}

	data, err := h.storage.Download(ctx, artifact.ObjectKey)
	if err != nil {
		if storage.IsNoSuchKey(err) {
			return permanent(fmt.Errorf("artifact %q: file not found", artifact.ObjectKey))
		}
		return fmt.Errorf("download artifact: %w", err)
	}

	subject := fmt.Sprintf("Your %s for %s", payload.Kind, event.Name)
	body := fmt.Sprintf("Hi %s,\n\nyour %s for %s is attached.\n", participant.FullName, payload.Kind, event.Name)
	attachment := &mailer.Attachment{
		Filename:    path.Base(artifact.ObjectKey),
		ContentType: artifact.ContentType,
		Content:     data,
	}
	if err := h.mail.Send(participant.Email, subject, body, attachment); err != nil {
		return fmt.Errorf("deliver mail: %w", err)
	}

	now := nowFunc()
	err = h.db.WithContext(ctx).Model(&artifact).
		Updates(map[string]interface{}{"sent": true, "sent_at": now}).Error
	if err != nil {
		// The mail is out; losing the flag means a re-send at worst.
		log.Warn("update sent flag failed", slog.Any("error", err))
	}

	if err := h.progress.MarkSent(ctx, payload.BatchID); err != nil {
		log.Warn("update progress failed", slog.Any("error", err))
	}

	log.Info("artifact sent", slog.String("email", participant.Email))
	return nil
}

func (h *SendTaskHandler) fail(ctx context.Context, payload tasks.ArtifactPayload, reason string, code int, log *slog.Logger) {
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
