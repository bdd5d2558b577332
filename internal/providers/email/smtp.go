package email

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var subjects = map[string]*texttemplate.Template{
	TemplatePasswordReset: texttemplate.Must(texttemplate.New(TemplatePasswordReset).Parse("Reset your Taskboard password")),
	TemplateInviteMember:  texttemplate.Must(texttemplate.New(TemplateInviteMember).Parse("You're invited to join {{.org_name}} on Taskboard")),
	TemplateTaskAssigned:  texttemplate.Must(texttemplate.New(TemplateTaskAssigned).Parse("New task assigned: {{.title}}")),
	TemplateTaskDueSoon:   texttemplate.Must(texttemplate.New(TemplateTaskDueSoon).Parse("Task due soon: {{.title}}")),
}

var ErrNoRecipients = errors.New("no_recipients")

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPProvider struct {
	cfg      Config
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTP(cfg Config) *SMTPProvider {
	return &SMTPProvider{cfg: cfg, sendMail: smtp.SendMail}
}

func (p *SMTPProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if p.cfg.Username != "" {
		auth = smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", p.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(htmlBody)

	return p.sendMail(addr, auth, envelopeFrom(p.cfg.From), to, msg.Bytes())
}

func (p *SMTPProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	subject, body, err := Render(templateName, data)
	if err != nil {
		return err
	}
	return p.Send(ctx, to, subject, body)
}

// Render returns the subject line and HTML body for templateName.
func Render(templateName string, data map[string]any) (string, string, error) {
	subjectTmpl, ok := subjects[templateName]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", templateName)
	}
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, templateName+".html", data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", templateName, err)
	}
	var subject bytes.Buffer
	if err := subjectTmpl.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", templateName, err)
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}

func envelopeFrom(from string) string {
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			return strings.TrimSpace(from[start+1 : end])
		}
	}
	return strings.TrimSpace(from)
}
