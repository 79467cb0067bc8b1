package worker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/tagaralaaziis/event36-sub000/internal/database"
	"github.com/tagaralaaziis/event36-sub000/internal/errcode"
	"github.com/tagaralaaziis/event36-sub000/internal/mailer"
	"github.com/tagaralaaziis/event36-sub000/internal/tasks"
)

type sentMail struct {
	to         string
	subject    string
	body       string
	attachment *mailer.Attachment
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(to, subject, body string, attachment *mailer.Attachment) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body, attachment: attachment})
	return nil
}

func (f *fixture) seedArtifact(t *testing.T, participantID uint, objectKey string) database.Artifact {
	t.Helper()
	artifact := database.Artifact{
		ParticipantID: participantID,
		TemplateID:    f.template.ID,
		ObjectKey:     objectKey,
		ContentType:   "application/pdf",
	}
	if err := f.db.Create(&artifact).Error; err != nil {
		t.Fatalf("seed artifact: %v", err)
	}
	f.blob.objects[objectKey] = []byte("%PDF-1.4 test artifact")
	return artifact
}

func sendTask(t *testing.T, payload tasks.ArtifactPayload) *asynq.Task {
	t.Helper()
	task, err := tasks.NewSendTask(payload)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	return task
}

func TestSendTask_DeliversAttachment(t *testing.T) {
	f := newFixture(t, database.TemplateCertificate, 1)
	participant := f.participants(t)[0]
	f.seedArtifact(t, participant.ID, "artifacts/1/certificate/1.pdf")

	mail := &fakeMailer{}
	h := NewSendTaskHandler(f.db, f.blob, f.progress, mail, nil)

	if err := f.progress.StartBatch(context.Background(), "send-ok", 1); err != nil {
		t.Fatalf("start batch: %v", err)
	}
	payload := tasks.ArtifactPayload{
		BatchID:       "send-ok",
		EventID:       f.event.ID,
		ParticipantID: participant.ID,
		Kind:          database.TemplateCertificate,
	}
	if err := h.ProcessTask(context.Background(), sendTask(t, payload)); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	if len(mail.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(mail.sent))
	}
	m := mail.sent[0]
	if m.to != participant.Email {
		t.Errorf("mail to %q, want %q", m.to, participant.Email)
	}
	if !strings.Contains(m.subject, f.event.Name) {
		t.Errorf("subject %q does not name the event", m.subject)
	}
	if m.attachment == nil || m.attachment.Filename != "1.pdf" {
		t.Errorf("attachment = %+v", m.attachment)
	}

	var artifact database.Artifact
	if err := f.db.Where("participant_id = ?", participant.ID).First(&artifact).Error; err != nil {
		t.Fatalf("reload artifact: %v", err)
	}
	if !artifact.Sent || artifact.SentAt == nil {
		t.Errorf("sent flag not set: %+v", artifact)
	}

	snap, err := f.progress.Read(context.Background(), "send-ok")
	if err != nil {
		t.Fatalf("read progress: %v", err)
	}
	if snap.Sent != 1 || snap.Failed != 0 {
		t.Errorf("progress = %+v", snap)
	}
}

func TestSendTask_MissingEmailIsPermanent(t *testing.T) {
	f := newFixture(t, database.TemplateCertificate, 1)
	participant := f.participants(t)[0]
	if err := f.db.Model(&participant).Update("email", "").Error; err != nil {
		t.Fatalf("clear email: %v", err)
	}
	f.seedArtifact(t, participant.ID, "artifacts/1/certificate/2.pdf")

	mail := &fakeMailer{}
	h := NewSendTaskHandler(f.db, f.blob, f.progress, mail, nil)

	if err := f.progress.StartBatch(context.Background(), "send-noemail", 1); err != nil {
		t.Fatalf("start batch: %v", err)
	}
	payload := tasks.ArtifactPayload{
		BatchID:       "send-noemail",
		EventID:       f.event.ID,
		ParticipantID: participant.ID,
		Kind:          database.TemplateCertificate,
	}
	err := h.ProcessTask(context.Background(), sendTask(t, payload))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err = %v, want SkipRetry", err)
	}
	if len(mail.sent) != 0 {
		t.Error("mail sent despite missing address")
	}

	snap, readErr := f.progress.Read(context.Background(), "send-noemail")
	if readErr != nil {
		t.Fatalf("read progress: %v", readErr)
	}
	if snap.Failed != 1 || len(snap.Results) != 1 {
		t.Fatalf("progress = %+v", snap)
	}
	if snap.Results[0].Code != errcode.ResourceMissing {
		t.Errorf("failure code = %d, want %d", snap.Results[0].Code, errcode.ResourceMissing)
	}
}

func TestSendTask_MissingArtifactIsPermanent(t *testing.T) {
	f := newFixture(t, database.TemplateCertificate, 1)
	participant := f.participants(t)[0]

	mail := &fakeMailer{}
	h := NewSendTaskHandler(f.db, f.blob, f.progress, mail, nil)

	payload := tasks.ArtifactPayload{
		BatchID:       "send-noartifact",
		EventID:       f.event.ID,
		ParticipantID: participant.ID,
		Kind:          database.TemplateCertificate,
	}
	err := h.ProcessTask(context.Background(), sendTask(t, payload))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err = %v, want SkipRetry", err)
	}
}

func TestSendTask_MailFailureStaysRetryable(t *testing.T) {
	f := newFixture(t, database.TemplateCertificate, 1)
	participant := f.participants(t)[0]
	f.seedArtifact(t, participant.ID, "artifacts/1/certificate/3.pdf")

	mail := &fakeMailer{err: errors.New("smtp timeout")}
	h := NewSendTaskHandler(f.db, f.blob, f.progress, mail, nil)

	payload := tasks.ArtifactPayload{
		BatchID:       "send-retry",
		EventID:       f.event.ID,
		ParticipantID: participant.ID,
		Kind:          database.TemplateCertificate,
	}
	err := h.ProcessTask(context.Background(), sendTask(t, payload))
	if err == nil {
		t.Fatal("expected mail failure to surface")
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Error("smtp failure must stay retryable")
	}

	var artifact database.Artifact
	if err := f.db.Where("participant_id = ?", participant.ID).First(&artifact).Error; err != nil {
		t.Fatalf("reload artifact: %v", err)
	}
	if artifact.Sent {
		t.Error("sent flag set despite delivery failure")
	}
}
