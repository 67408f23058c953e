// Package email provides email sending capabilities via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host      string
	Port      string
	Username  string
	Password  string
	From      string
	FromName  string
	EnableTLS bool
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

// NewService creates a new email service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// sendMultipart delivers a multipart/alternative message with a plain text part and
// an HTML part.
func (s *Service) sendMultipart(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "boundary-community"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	for _, part := range []struct{ contentType, body string }{
		{"text/plain", textBody},
		{"text/html", htmlBody},
	} {
		fmt.Fprintf(&msg, "--%s\r\n", boundary)
		fmt.Fprintf(&msg, "Content-Type: %s; charset=UTF-8\r\n", part.contentType)
		fmt.Fprintf(&msg, "\r\n")
		fmt.Fprintf(&msg, "%s\r\n", strings.ReplaceAll(part.body, "\n", "\r\n"))
		fmt.Fprintf(&msg, "\r\n")
	}
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.send(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// ReportNoticeData fills the moderator notice for a reported post or reply.
type ReportNoticeData struct {
	AppName  string
	ReportID string
	PostID   string
	ReplyID  string
	Category string
	Reason   string
	Reporter string
	Excerpt  string
}

// SendReportNotice tells a moderator that content was reported.
func (s *Service) SendReportNotice(to string, data ReportNoticeData) error {
	if data.AppName == "" {
		data.AppName = "Community"
	}
	if data.Reporter == "" {
		data.Reporter = "an anonymous visitor"
	}

	target := "post"
	if data.ReplyID != "" {
		target = "reply"
	}
	subject := fmt.Sprintf("[%s] %s reported in #%s", data.AppName, target, data.Category)
	html, err := renderTemplate(reportNoticeTemplate, data)
	if err != nil {
		return fmt.Errorf("render report notice template: %w", err)
	}

	return s.sendMultipart([]string{to}, subject, reportNoticeText(data, target), html)
}

func reportNoticeText(data ReportNoticeData, target string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s reported a %s in #%s.\n\n", data.Reporter, target, data.Category)
	fmt.Fprintf(&b, "Post: %s\n", data.PostID)
	if data.ReplyID != "" {
		fmt.Fprintf(&b, "Reply: %s\n", data.ReplyID)
	}
	fmt.Fprintf(&b, "Reason: %s\n\n", data.Reason)
	fmt.Fprintf(&b, "> %s\n\n", data.Excerpt)
	fmt.Fprintf(&b, "Report %s is waiting in the moderation queue.\n", data.ReportID)
	return b.String()
}

func renderTemplate(tmpl string, data any) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reportNoticeTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Content reported on {{.AppName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #cc3300; padding-bottom: 10px; margin-bottom: 20px; }
        .excerpt { background: #f5f5f5; border-left: 3px solid #999; padding: 12px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}} moderation</h1>
    </div>

    <p>{{.Reporter}} reported {{if .ReplyID}}reply <code>{{.ReplyID}}</code> on {{end}}post <code>{{.PostID}}</code> in <strong>#{{.Category}}</strong>.</p>

    <p><strong>Reason:</strong> {{.Reason}}</p>

    <div class="excerpt">{{.Excerpt}}</div>

    <div class="footer">
        <p>Report {{.ReportID}} is waiting in the moderation queue.</p>
    </div>
</body>
</html>`
