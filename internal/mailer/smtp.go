package mailer

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"gopkg.in/gomail.v2"

	appErr "github.com/collabdesk/engine/pkg/errors"
)

//go:embed templates/*.html
var templateFS embed.FS

var mailTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// SMTPMailer sends notifications through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

var _ Mailer = (*SMTPMailer)(nil)

func (m *SMTPMailer) SendImportReport(to string, report ImportReport) error {
	return m.send(to, "Collaborator import processed", "import_report.html", report)
}

func (m *SMTPMailer) SendImportError(to string, message string, timestamp time.Time) error {
	data := struct {
		Message   string
		Timestamp time.Time
	}{Message: message, Timestamp: timestamp}
	return m.send(to, "Collaborator import failed", "import_error.html", data)
}

func (m *SMTPMailer) send(to, subject, templateName string, data any) error {
	var body bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&body, templateName, data); err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "render mail template failed")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body.String())

	if err := m.dialer.DialAndSend(msg); err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "send mail failed")
	}
	return nil
}
