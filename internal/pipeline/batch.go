package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/tagaralaaziis/event36-sub000/internal/database"
	"github.com/tagaralaaziis/event36-sub000/internal/render"
	"github.com/tagaralaaziis/event36-sub000/internal/tasks"
)

// Validation errors rejected synchronously, before any job is queued.
var (
	ErrTemplateNotFound = errors.New("event has no template of this kind")
	ErrInvalidTemplate  = errors.New("invalid template")
	ErrNoParticipants   = errors.New("event has no participants")
	ErrNoArtifacts      = errors.New("no generated artifacts to send")
)

// taskEnqueuer is the slice of asynq.Client the coordinator needs.
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// BatchRef identifies a submitted batch for progress polling.
type BatchRef struct {
	ID    string `json:"batch_id"`
	Total int    `json:"total"`
}

// Coordinator validates bulk requests and fans them out as one queue task
// per participant. Retries, backoff and progress accounting happen on the
// worker side; the coordinator only rejects bad input up front and seeds the
// progress counters.
type Coordinator struct {
	db          *gorm.DB
	client      taskEnqueuer
	progress    *Progress
	logger      *slog.Logger
	maxAttempts int
}

func NewCoordinator(db *gorm.DB, client taskEnqueuer, progress *Progress, maxAttempts int, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Coordinator{
		db:          db,
		client:      client,
		progress:    progress,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// EnqueueGenerate submits one generation job per participant of the event.
// Template presence and field geometry are validated here so a misconfigured
// template fails the request, not five hundred queued jobs.
func (c *Coordinator) EnqueueGenerate(ctx context.Context, eventID uint, kind string) (BatchRef, error) {
	template, err := c.loadTemplate(ctx, eventID, kind)
	if err != nil {
		return BatchRef{}, err
	}

	source := render.Size{W: float64(template.ImageWidth), H: float64(template.ImageHeight)}
	if _, err := render.DecodeFields(template.Fields, source); err != nil {
		return BatchRef{}, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	var participants []database.Participant
	if err := c.db.WithContext(ctx).Where("event_id = ?", eventID).Find(&participants).Error; err != nil {
		return BatchRef{}, fmt.Errorf("list participants: %w", err)
	}
	if len(participants) == 0 {
		return BatchRef{}, ErrNoParticipants
	}

	return c.submit(ctx, eventID, kind, participants, tasks.NewGenerateTask)
}

// EnqueueSend submits one delivery job per participant that has a current
// artifact for the template kind.
func (c *Coordinator) EnqueueSend(ctx context.Context, eventID uint, kind string) (BatchRef, error) {
	template, err := c.loadTemplate(ctx, eventID, kind)
	if err != nil {
		return BatchRef{}, err
	}

	var participants []database.Participant
	err = c.db.WithContext(ctx).
		Joins("JOIN artifacts ON artifacts.participant_id = participants.id AND artifacts.template_id = ? AND artifacts.deleted_at IS NULL", template.ID).
		Where("participants.event_id = ?", eventID).
		Find(&participants).Error
	if err != nil {
		return BatchRef{}, fmt.Errorf("list participants with artifacts: %w", err)
	}
	if len(participants) == 0 {
		return BatchRef{}, ErrNoArtifacts
	}

	return c.submit(ctx, eventID, kind, participants, tasks.NewSendTask)
}

func (c *Coordinator) loadTemplate(ctx context.Context, eventID uint, kind string) (*database.Template, error) {
	if kind != database.TemplateCertificate && kind != database.TemplateTicket {
		return nil, fmt.Errorf("unknown template kind %q", kind)
	}
	var template database.Template
	err := c.db.WithContext(ctx).
		Where("event_id = ? AND kind = ?", eventID, kind).
		First(&template).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	return &template, nil
}

func (c *Coordinator) submit(
	ctx context.Context,
	eventID uint,
	kind string,
	participants []database.Participant,
	build func(tasks.ArtifactPayload) (*asynq.Task, error),
) (BatchRef, error) {
	batchID := uuid.NewString()
	if err := c.progress.StartBatch(ctx, batchID, len(participants)); err != nil {
		return BatchRef{}, fmt.Errorf("progress store unavailable: %w", err)
	}

	for _, participant := range participants {
		task, err := build(tasks.ArtifactPayload{
			BatchID:       batchID,
			EventID:       eventID,
			ParticipantID: participant.ID,
			Kind:          kind,
		})
		if err != nil {
			return BatchRef{}, err
		}
		if _, err := c.client.EnqueueContext(ctx, task, asynq.MaxRetry(c.maxAttempts-1)); err != nil {
			// Queue backend failure is fatal for the batch. Jobs already
			// queued will still run; the caller gets the error immediately.
			return BatchRef{}, fmt.Errorf("enqueue participant %d: %w", participant.ID, err)
		}
	}

	c.logger.Info("batch submitted",
		slog.String("batch_id", batchID),
		slog.Uint64("event_id", uint64(eventID)),
		slog.String("kind", kind),
		slog.Int("total", len(participants)),
	)
	return BatchRef{ID: batchID, Total: len(participants)}, nil
}
