package email

import "context"

const (
	TemplatePasswordReset = "password_reset"
	TemplateInviteMember  = "invite_member"
	TemplateTaskAssigned  = "task_assigned"
	TemplateTaskDueSoon   = "task_due_soon"
)

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}

func (p *NoOpProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	return nil
}
