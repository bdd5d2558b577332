package email

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplates(t *testing.T) {
	subject, body, err := Render(TemplatePasswordReset, map[string]any{
		"name":       "Ana",
		"reset_url":  "http://localhost/reset?token=abc",
		"expires_in": "1 hour",
	})
	require.NoError(t, err)
	assert.Equal(t, "Reset your Taskboard password", subject)
	assert.Contains(t, body, "http://localhost/reset?token=abc")

	subject, _, err = Render(TemplateTaskAssigned, map[string]any{"title": "Ship <v2>", "name": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "New task assigned: Ship <v2>", subject)

	_, _, err = Render("missing", nil)
	assert.Error(t, err)
}

func TestSMTPSendBuildsMessage(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.local", Port: 2525, From: "Taskboard <no-reply@taskboard.local>"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	p.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.Nil(t, a)
		return nil
	}

	err := p.SendTemplate(context.Background(), []string{"ana@example.com"}, TemplateInviteMember, map[string]any{
		"org_name":   "Acme",
		"inviter":    "Bob",
		"accept_url": "http://localhost/invite/1",
	})
	require.NoError(t, err)
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, "no-reply@taskboard.local", gotFrom)
	assert.Equal(t, []string{"ana@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: You're invited to join Acme on Taskboard\r\n")

	assert.ErrorIs(t, p.Send(context.Background(), nil, "s", "b"), ErrNoRecipients)
}
