package mailer

import (
	"fmt"
	"io"

	gomail "gopkg.in/gomail.v2"

	"github.com/tagaralaaziis/event36-sub000/internal/config"
)

// Attachment is one file going out with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Mailer sends ticket and certificate mail over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func New(cfg config.MailConfig) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send delivers one message with an optional attachment. Errors are returned
// as-is for the caller's retry policy; the mailer itself does not retry.
func (m *Mailer) Send(to, subject, body string, attachment *Attachment) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if attachment != nil {
		msg.Attach(attachment.Filename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(attachment.Content)
				return err
			}),
			gomail.SetHeader(map[string][]string{
				"Content-Type": {attachment.ContentType},
			}),
		)
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
