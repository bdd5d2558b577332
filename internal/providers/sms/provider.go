package sms

import (
	"context"
	"errors"
)

var (
	ErrInvalidRecipient = errors.New("invalid_sms_recipient")
	ErrEmptyBody        = errors.New("empty_sms_body")
)

type Provider interface {
	Send(ctx context.Context, to string, body string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to string, body string) error {
	return nil
}
