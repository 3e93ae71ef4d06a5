package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tinrooster/tedecom-v1/internal/apperrors"
	"github.com/tinrooster/tedecom-v1/internal/retry"
	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"
)

// Sender delivers composed messages. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	RatePerMinute int
}

// ReportMail describes one report delivery.
type ReportMail struct {
	ReportID    string
	Recipients  []string
	Title       string
	TypeName    string
	Format      string
	GeneratedAt time.Time
	Attachment  string
}

type Mailer struct {
	sender  Sender
	from    string
	limiter *rate.Limiter
	retry   retry.Options
	body    *template.Template
}

var reportMailTemplate = template.Must(template.New("report").Parse(`<html>
<body style="font-family: Arial, sans-serif;">
  <h2>{{.Title}}</h2>
  <p>Your scheduled report has been generated.</p>
  <table cellpadding="4">
    <tr><td><strong>Report type</strong></td><td>{{.TypeName}}</td></tr>
    <tr><td><strong>Format</strong></td><td>{{.Format}}</td></tr>
    <tr><td><strong>Generated</strong></td><td>{{.GeneratedAt.Format "2006-01-02 15:04 MST"}}</td></tr>
  </table>
  <p>The report is attached to this message.</p>
</body>
</html>`))

func NewMailer(cfg EmailConfig, opts retry.Options) *Mailer {
	username := cfg.Username
	if username == "" {
		username = cfg.From
	}
	return NewMailerWithSender(gomail.NewDialer(cfg.Host, cfg.Port, username, cfg.Password), cfg.From, cfg.RatePerMinute, opts)
}

func NewMailerWithSender(sender Sender, from string, perMinute int, opts retry.Options) *Mailer {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &Mailer{
		sender:  sender,
		from:    from,
		limiter: rate.NewLimiter(limit, 1),
		retry:   opts,
		body:    reportMailTemplate,
	}
}

func (m *Mailer) compose(mail ReportMail) (*gomail.Message, error) {
	var buf bytes.Buffer
	if err := m.body.Execute(&buf, mail); err != nil {
		return nil, fmt.Errorf("failed to render email body: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", mail.Recipients...)
	msg.SetHeader("Subject", fmt.Sprintf("Report: %s (%s)", mail.Title, mail.GeneratedAt.Format("2006-01-02")))
	msg.SetBody("text/html", buf.String())
	if mail.Attachment != "" {
		msg.Attach(mail.Attachment, gomail.Rename(filepath.Base(mail.Attachment)))
	}
	return msg, nil
}

// SendReport emails the report to its recipients. Delivery is rate limited
// and retried; exhausted attempts return a TransientIO error.
func (m *Mailer) SendReport(ctx context.Context, mail ReportMail) error {
	if len(mail.Recipients) == 0 {
		return nil
	}
	msg, err := m.compose(mail)
	if err != nil {
		return err
	}

	err = retry.Do(ctx, m.retry, "send report email", func(ctx context.Context) error {
		if err := m.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		return m.sender.DialAndSend(msg)
	})
	if err != nil {
		return apperrors.TransientIO("send report email", err)
	}

	log.Info().
		Str("component", "notify").
		Str("report_id", mail.ReportID).
		Int("recipients", len(mail.Recipients)).
		Msg("Report email sent")
	return nil
}
