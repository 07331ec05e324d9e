package utils

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"strings"
	"time"

	"equireach/models"

	"github.com/badoux/checkmail"
	"gopkg.in/gomail.v2"
)

// MailerConfig holds SMTP settings for outreach delivery
type MailerConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Encryption string
	FromEmail  string
	Timeout    time.Duration
}

// OutreachMailer transmits personalized outreach messages over SMTP
type OutreachMailer struct {
	cfg  MailerConfig
	send func(m *gomail.Message) error
}

var outreachHTML = template.Must(template.New("outreach").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Georgia, serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .notice { margin-top: 30px; font-size: 12px; color: #7f8c8d; border-top: 1px solid #eee; padding-top: 10px; }
    </style>
</head>
<body>
    {{range .Paragraphs}}<p>{{.}}</p>
    {{end}}{{if .Notice}}<div class="notice">{{.Notice}}</div>{{end}}
</body>
</html>`))

func NewOutreachMailer(cfg MailerConfig) *OutreachMailer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	switch strings.ToUpper(cfg.Encryption) {
	case "SSL", "TLS":
		dialer.SSL = true
	case "STARTTLS":
		dialer.TLSConfig = &tls.Config{ServerName: cfg.Host}
	default:
		dialer.SSL = false
	}

	return &OutreachMailer{
		cfg: cfg,
		send: func(m *gomail.Message) error {
			return dialer.DialAndSend(m)
		},
	}
}

// Send delivers a single message. One attempt, no retries.
func (om *OutreachMailer) Send(ctx context.Context, msg models.OutboundMessage) error {
	if om.cfg.Host == "" {
		return fmt.Errorf("smtp is not configured")
	}
	if err := checkmail.ValidateFormat(msg.RecipientAddress); err != nil {
		return fmt.Errorf("invalid recipient address %q: %w", msg.RecipientAddress, err)
	}

	m, err := om.buildMessage(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, om.cfg.Timeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- om.send(m)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("error sending email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("error sending email: %w", ctx.Err())
	}
}

func (om *OutreachMailer) buildMessage(msg models.OutboundMessage) (*gomail.Message, error) {
	text, notice, _ := strings.Cut(msg.Body, noticeSeparator)

	var html bytes.Buffer
	err := outreachHTML.Execute(&html, struct {
		Subject    string
		Paragraphs []string
		Notice     string
	}{
		Subject:    msg.Subject,
		Paragraphs: splitParagraphs(text),
		Notice:     notice,
	})
	if err != nil {
		return nil, fmt.Errorf("error executing template: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(om.cfg.FromEmail, msg.SenderLabel))
	m.SetHeader("To", m.FormatAddress(msg.RecipientAddress, msg.RecipientName))
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("List-Unsubscribe", fmt.Sprintf("<mailto:%s?subject=unsubscribe>", om.cfg.FromEmail))
	m.SetBody("text/plain", msg.Body)
	m.AddAlternative("text/html", html.String())
	return m, nil
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
