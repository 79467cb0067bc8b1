package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type constants keep queue producers and consumers in agreement.
const (
	TypeArtifactGenerate = "artifact:generate"
	TypeArtifactSend     = "artifact:send"
)

// ArtifactPayload identifies one per-participant unit of work inside a
// batch. Kind selects the template (certificate or ticket).
type ArtifactPayload struct {
	BatchID       string `json:"batch_id"`
	EventID       uint   `json:"event_id"`
	ParticipantID uint   `json:"participant_id"`
	Kind          string `json:"kind"`
}

// NewGenerateTask builds a generation task for one participant.
func NewGenerateTask(p ArtifactPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal generate payload: %w", err)
	}
	return asynq.NewTask(TypeArtifactGenerate, payload), nil
}

// NewSendTask builds an email-delivery task for one participant's current
// artifact.
func NewSendTask(p ArtifactPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal send payload: %w", err)
	}
	return asynq.NewTask(TypeArtifactSend, payload), nil
}
